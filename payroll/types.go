/*
Package payroll provides the invoicing engine for payroll consultancy billing.

PURPOSE:
  Holds the domain records (employees, frozen invoices, company settings) and
  the pure calculation functions that turn an employee set into invoice totals.
  Nothing in this package touches a database or an HTTP request; stores and
  renderers are collaborators injected by the caller.

KEY CONCEPTS IN THIS FILE (types.go):
  - Employee: salary record billed to a client consultancy
  - Invoice: frozen snapshot of totals computed at creation time
  - CompanySettings: single-row issuer details printed on invoices

DESIGN PRINCIPLES:
  1. Precision: all money is decimal.Decimal, never float64
  2. Frozen totals: an Invoice is written once and never recalculated
  3. Plain inputs: calculations take values, not store handles

SEE ALSO:
  - calc.go: pro-ration, PF and service fee
  - assembly.go: invoice generation over a store
  - breakdown.go: detail view recomputed from current employees
*/
package payroll

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type EmployeeID int64
type InvoiceID int64

// =============================================================================
// EMPLOYEE
// =============================================================================

// DefaultSalaryDay is the day of month salaries are paid when none is given.
const DefaultSalaryDay = 10

// Employee is a salaried person billed to a client consultancy.
// SalaryPerMonth is derived once at creation and stored; it is not
// recomputed if SalaryPerAnnum changes later.
type Employee struct {
	ID                EmployeeID
	Name              string
	SalaryPerAnnum    decimal.Decimal
	SalaryPerMonth    decimal.Decimal
	ClientConsultancy string
	IsNewEmployee     bool
	DateOfJoining     Date // zero when unknown
	SalaryDay         int  // informational only
	CreatedAt         time.Time
}

// HasJoiningDate reports whether a date of joining was recorded.
func (e Employee) HasJoiningDate() bool { return !e.DateOfJoining.IsZero() }

// =============================================================================
// INVOICE
// =============================================================================

// Invoice is a frozen snapshot. Monetary fields are fixed at creation and
// never recomputed from current employee data.
type Invoice struct {
	ID                  InvoiceID
	Number              string
	Date                Date
	InvoiceTo           string
	ClientConsultancy   string
	EmployeeIDs         []EmployeeID // ordered, no duplicates
	TotalMonthlyPayroll decimal.Decimal
	TotalAnnualPayroll  decimal.Decimal
	MiscellaneousCost   decimal.Decimal
	ServiceFee          decimal.Decimal
	Notes               string
	CreatedAt           time.Time
}

// HasServiceFee reports whether the invoice was billed with a service fee.
func (inv Invoice) HasServiceFee() bool { return inv.ServiceFee.IsPositive() }

// =============================================================================
// COMPANY SETTINGS
// =============================================================================

// DefaultCompanyName is used when settings are initialised without a name.
const DefaultCompanyName = "TRUEZEN TECHNOLOGIES"

// CompanySettings is the single-row issuer configuration.
type CompanySettings struct {
	CompanyName    string
	CompanyAddress string
	LogoPath       string // relative to the upload root, empty when unset
	UpdatedAt      time.Time
}

// HasLogo reports whether a logo has been uploaded.
func (s CompanySettings) HasLogo() bool { return s.LogoPath != "" }
