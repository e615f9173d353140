package payroll

import (
	"github.com/shopspring/decimal"
)

// EmployeeLine is one row of an invoice breakdown.
type EmployeeLine struct {
	Employee Employee
	EmployeeTotals
}

// Breakdown is the detail view of an invoice.
//
// Lines are recomputed from the employee records passed in, at the
// invoice's date. The frozen Invoice totals are kept alongside and are
// never corrected, so GrandTotal can disagree with
// Invoice.TotalMonthlyPayroll when employee data changed after invoicing.
type Breakdown struct {
	Invoice Invoice
	Lines   []EmployeeLine

	TotalSalary     decimal.Decimal
	TotalEmployeePF decimal.Decimal
	TotalEmployerPF decimal.Decimal
	Subtotal        decimal.Decimal // salary + both PF shares

	MiscellaneousCost decimal.Decimal
	ServiceFee        ServiceFeeSplit
	GrandTotal        decimal.Decimal
}

// NewBreakdown derives the detail view of inv from current employees.
// Employees not referenced by inv, or no longer present, are skipped.
func NewBreakdown(inv Invoice, employees []Employee) Breakdown {
	ordered, _ := OrderEmployees(inv.EmployeeIDs, employees)

	b := Breakdown{
		Invoice:           inv,
		Lines:             make([]EmployeeLine, 0, len(ordered)),
		TotalSalary:       decimal.Zero,
		TotalEmployeePF:   decimal.Zero,
		TotalEmployerPF:   decimal.Zero,
		MiscellaneousCost: inv.MiscellaneousCost,
		ServiceFee:        SplitServiceFee(inv.ServiceFee),
	}

	for _, e := range ordered {
		totals := CalculateEmployeeTotals(e, inv.Date)
		b.Lines = append(b.Lines, EmployeeLine{Employee: e, EmployeeTotals: totals})
		b.TotalSalary = b.TotalSalary.Add(totals.ProRatedSalary)
		b.TotalEmployeePF = b.TotalEmployeePF.Add(totals.EmployeePF)
		b.TotalEmployerPF = b.TotalEmployerPF.Add(totals.EmployerPF)
	}

	b.Subtotal = b.TotalSalary.Add(b.TotalEmployeePF).Add(b.TotalEmployerPF)
	b.GrandTotal = b.Subtotal.Add(inv.MiscellaneousCost).Add(b.ServiceFee.Total)
	return b
}

// Drift is GrandTotal minus the frozen total. Zero when employee data has
// not changed since the invoice was generated.
func (b Breakdown) Drift() decimal.Decimal {
	return b.GrandTotal.Sub(b.Invoice.TotalMonthlyPayroll)
}
