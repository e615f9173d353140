/*
assembly.go - Invoice generation

PURPOSE:
  Turns a billing request (client, billed-to, employee selection, service fee
  opt-in, miscellaneous cost) into a frozen Invoice and persists it.

FLOW:
  1. Validate input (no store access yet)
  2. In one store transaction:
     a. resolve employees by id
     b. per-employee totals at today's date
     c. sum monthly totals, raw annual salaries, add misc + service fee
     d. generate number, insert
  3. On a number collision at insert, retry the whole transaction

ATOMICITY:
  The invoice row and its employee links are written in WithTx. Any failure
  rolls both back; callers never observe a half-written invoice.
*/
package payroll

import (
	"context"
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

// MaxCommitAttempts bounds retries after a duplicate-number insert.
const MaxCommitAttempts = 3

// GenerateRequest is the input for Assembler.Generate.
type GenerateRequest struct {
	ClientConsultancy string
	InvoiceTo         string
	EmployeeIDs       []EmployeeID
	IncludeServiceFee bool
	MiscellaneousCost decimal.Decimal
	Notes             string
}

// Validate checks required fields and returns the de-duplicated id list.
func (r GenerateRequest) Validate() ([]EmployeeID, error) {
	if strings.TrimSpace(r.ClientConsultancy) == "" {
		return nil, invalid("client_consultancy", "is required")
	}
	if strings.TrimSpace(r.InvoiceTo) == "" {
		return nil, invalid("invoice_to", "is required")
	}
	if r.MiscellaneousCost.IsNegative() {
		return nil, invalid("miscellaneous_cost", "cannot be negative")
	}
	ids := uniqueIDs(r.EmployeeIDs)
	if len(ids) == 0 {
		return nil, invalid("employee_ids", "select at least one employee")
	}
	return ids, nil
}

// Assembler generates and persists invoices.
type Assembler struct {
	Store TxStore
	Clock Clock
}

// NewAssembler creates an assembler. A nil clock uses the system clock.
func NewAssembler(store TxStore, clock Clock) *Assembler {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Assembler{Store: store, Clock: clock}
}

// Generate builds, numbers and stores a new invoice.
func (a *Assembler) Generate(ctx context.Context, req GenerateRequest) (*Invoice, error) {
	ids, err := req.Validate()
	if err != nil {
		return nil, err
	}

	var inv *Invoice
	for attempt := 1; ; attempt++ {
		err = a.Store.WithTx(ctx, func(s Store) error {
			var txErr error
			inv, txErr = a.assemble(ctx, s, req, ids)
			return txErr
		})
		if err == nil {
			return inv, nil
		}
		if !errors.Is(err, ErrDuplicateInvoiceNumber) || attempt >= MaxCommitAttempts {
			return nil, err
		}
	}
}

func (a *Assembler) assemble(ctx context.Context, s Store, req GenerateRequest, ids []EmployeeID) (*Invoice, error) {
	employees, err := resolveEmployees(ctx, s, ids)
	if err != nil {
		return nil, err
	}

	now := a.Clock.Now()
	today := DateOf(now)

	inv := BuildInvoice(today, req, employees)
	inv.CreatedAt = now

	number, err := NewNumberGenerator(s, a.Clock).Next(ctx)
	if err != nil {
		return nil, &PersistenceError{Op: "generate invoice number", Err: err}
	}
	inv.Number = number

	if err := s.CreateInvoice(ctx, &inv); err != nil {
		if errors.Is(err, ErrDuplicateInvoiceNumber) {
			return nil, err
		}
		return nil, &PersistenceError{Op: "create invoice", Err: err}
	}
	return &inv, nil
}

// BuildInvoice computes the frozen totals for employees at invoiceDate.
// Number, ID and CreatedAt are left for the caller.
func BuildInvoice(invoiceDate Date, req GenerateRequest, employees []Employee) Invoice {
	totalMonthly := decimal.Zero
	totalAnnual := decimal.Zero
	ids := make([]EmployeeID, 0, len(employees))

	for _, e := range employees {
		totals := CalculateEmployeeTotals(e, invoiceDate)
		totalMonthly = totalMonthly.Add(totals.TotalCost)
		totalAnnual = totalAnnual.Add(e.SalaryPerAnnum)
		ids = append(ids, e.ID)
	}

	fee := ServiceFee(len(employees), req.IncludeServiceFee)
	totalMonthly = totalMonthly.Add(req.MiscellaneousCost).Add(fee)

	return Invoice{
		Date:                invoiceDate,
		InvoiceTo:           strings.TrimSpace(req.InvoiceTo),
		ClientConsultancy:   strings.TrimSpace(req.ClientConsultancy),
		EmployeeIDs:         ids,
		TotalMonthlyPayroll: totalMonthly,
		TotalAnnualPayroll:  totalAnnual,
		MiscellaneousCost:   req.MiscellaneousCost,
		ServiceFee:          fee,
		Notes:               req.Notes,
	}
}

// resolveEmployees loads ids and returns them in the requested order.
func resolveEmployees(ctx context.Context, s EmployeeStore, ids []EmployeeID) ([]Employee, error) {
	found, err := s.EmployeesByIDs(ctx, ids)
	if err != nil {
		return nil, &PersistenceError{Op: "load employees", Err: err}
	}
	if len(found) == 0 {
		return nil, invalid("employee_ids", "select at least one employee")
	}

	ordered, missing := OrderEmployees(ids, found)
	if len(missing) > 0 {
		return nil, &NotFoundError{Kind: "employee", ID: int64(missing[0])}
	}
	return ordered, nil
}

// OrderEmployees arranges employees in ids order and reports ids with no
// matching employee.
func OrderEmployees(ids []EmployeeID, employees []Employee) (ordered []Employee, missing []EmployeeID) {
	byID := make(map[EmployeeID]Employee, len(employees))
	for _, e := range employees {
		byID[e.ID] = e
	}
	ordered = make([]Employee, 0, len(ids))
	for _, id := range ids {
		e, ok := byID[id]
		if !ok {
			missing = append(missing, id)
			continue
		}
		ordered = append(ordered, e)
	}
	return ordered, missing
}

func uniqueIDs(ids []EmployeeID) []EmployeeID {
	seen := make(map[EmployeeID]bool, len(ids))
	out := make([]EmployeeID, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
