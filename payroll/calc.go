/*
calc.go - Pro-rated salary, PF and service fee calculations

PURPOSE:
  The invoice calculation engine. Every function here is pure: same inputs,
  byte-identical decimal outputs. Stores and clocks never reach this file.

PRO-RATION RULES (evaluated in order):
  1. No date of joining                      -> full monthly salary
  2. New employee and invoice date is on or before the first day of the
     month after joining (or in the joining month)
                                             -> pro-rate the JOINING month
  3. Invoice in the joining month            -> pro-rate the joining month
  4. Joining month before invoice month      -> full monthly salary
  5. Joining month after invoice month       -> zero

  Rule 2 lets a new employee's invoice raised early the following month still
  bill the partial joining month.

  Pro-rata = monthly * daysWorked / daysInMonth, rounded once to 2 places
  half-up. daysWorked = daysInMonth - joiningDay + 1, clamped to
  [1, daysInMonth]. Joining on the 1st always bills the full month.

PF:
  Flat 1440.00 employee share and 1440.00 employer share per employee.
  ContributionAtRate is the percentage form; invoice totals do not use it.

SERVICE FEE:
  6250 per employee plus 18% GST, rounded to 2 places.
*/
package payroll

import (
	"github.com/shopspring/decimal"
)

// MoneyPlaces is the currency precision.
const MoneyPlaces = 2

var (
	// FixedEmployeePF is the employee PF share billed per employee.
	FixedEmployeePF = decimal.NewFromInt(1440)
	// FixedEmployerPF is the employer PF share billed per employee.
	FixedEmployerPF = decimal.NewFromInt(1440)

	// DefaultPFPercent is the statutory PF rate used by ContributionAtRate.
	DefaultPFPercent = decimal.NewFromInt(12)

	// ServiceFeePerEmployee is the base service fee before GST.
	ServiceFeePerEmployee = decimal.NewFromInt(6250)
	// GSTPercent is applied on the base service fee.
	GSTPercent = decimal.NewFromInt(18)

	hundred   = decimal.NewFromInt(100)
	gstFactor = decimal.RequireFromString("1.18")
)

// =============================================================================
// PRO-RATED SALARY
// =============================================================================

// ProRatedSalary returns the salary owed for the month of invoiceDate.
func ProRatedSalary(e Employee, invoiceDate Date) decimal.Decimal {
	if !e.HasJoiningDate() {
		return e.SalaryPerMonth
	}

	joined := e.DateOfJoining
	isJoiningMonth := joined.SameMonth(invoiceDate)

	if e.IsNewEmployee {
		nextMonthStart := joined.StartOfNextMonth()
		if invoiceDate.BeforeOrEqual(nextMonthStart) || isJoiningMonth {
			return joiningMonthSalary(e)
		}
	}

	switch {
	case isJoiningMonth:
		return joiningMonthSalary(e)
	case joined.MonthBefore(invoiceDate):
		return e.SalaryPerMonth
	default:
		// Invoice predates employment.
		return decimal.Zero
	}
}

// joiningMonthSalary pro-rates the monthly salary over the days worked in
// the joining month.
func joiningMonthSalary(e Employee) decimal.Decimal {
	joined := e.DateOfJoining
	if joined.Day() == 1 {
		return e.SalaryPerMonth
	}

	daysInMonth := joined.DaysInMonth()
	daysWorked := clamp(daysInMonth-joined.Day()+1, 1, daysInMonth)

	return e.SalaryPerMonth.
		Mul(decimal.NewFromInt(int64(daysWorked))).
		DivRound(decimal.NewFromInt(int64(daysInMonth)), MoneyPlaces)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// =============================================================================
// PF
// =============================================================================

// ContributionAtRate returns the employee and employer PF shares as percent
// of amount. Both shares use the same rate.
func ContributionAtRate(amount, percent decimal.Decimal) (employee, employer decimal.Decimal) {
	share := amount.Mul(percent).Div(hundred)
	return share, share
}

// =============================================================================
// EMPLOYEE TOTALS
// =============================================================================

// EmployeeTotals is the per-employee cost for one invoice month.
type EmployeeTotals struct {
	ProRatedSalary decimal.Decimal
	EmployeePF     decimal.Decimal
	EmployerPF     decimal.Decimal
	TotalCost      decimal.Decimal
}

// CalculateEmployeeTotals computes salary, both PF shares and their sum.
func CalculateEmployeeTotals(e Employee, invoiceDate Date) EmployeeTotals {
	salary := ProRatedSalary(e, invoiceDate)
	return EmployeeTotals{
		ProRatedSalary: salary,
		EmployeePF:     FixedEmployeePF,
		EmployerPF:     FixedEmployerPF,
		TotalCost:      salary.Add(FixedEmployeePF).Add(FixedEmployerPF),
	}
}

// =============================================================================
// SERVICE FEE
// =============================================================================

// ServiceFeeSplit is a service fee decomposed into base and GST.
type ServiceFeeSplit struct {
	Base  decimal.Decimal
	GST   decimal.Decimal
	Total decimal.Decimal
}

// CalculateServiceFee computes the forward service fee for employeeCount
// employees. Returns zero amounts when disabled.
func CalculateServiceFee(employeeCount int, enabled bool) ServiceFeeSplit {
	if !enabled || employeeCount <= 0 {
		return ServiceFeeSplit{Base: decimal.Zero, GST: decimal.Zero, Total: decimal.Zero}
	}
	base := ServiceFeePerEmployee.Mul(decimal.NewFromInt(int64(employeeCount)))
	gst := base.Mul(GSTPercent).Div(hundred)
	return ServiceFeeSplit{
		Base:  base,
		GST:   gst,
		Total: base.Add(gst).Round(MoneyPlaces),
	}
}

// ServiceFee returns only the total of CalculateServiceFee.
func ServiceFee(employeeCount int, enabled bool) decimal.Decimal {
	return CalculateServiceFee(employeeCount, enabled).Total
}

// SplitServiceFee recovers base and GST from a stored total fee.
// base = round(fee / 1.18, 2), gst = fee - base. This does not always invert
// CalculateServiceFee exactly; any cent of drift lands in GST.
func SplitServiceFee(fee decimal.Decimal) ServiceFeeSplit {
	if !fee.IsPositive() {
		return ServiceFeeSplit{Base: decimal.Zero, GST: decimal.Zero, Total: fee}
	}
	base := fee.DivRound(gstFactor, MoneyPlaces)
	return ServiceFeeSplit{
		Base:  base,
		GST:   fee.Sub(base).Round(MoneyPlaces),
		Total: fee,
	}
}
