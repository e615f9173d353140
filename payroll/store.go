/*
store.go - Persistence contracts for employees, invoices and settings

PURPOSE:
  Defines what the assembly and settings code needs from a database. The
  calculation engine never sees these; only Assembler and GetOrInitSettings do.

KEY INTERFACES:
  EmployeeStore: create, delete, list, filter by id set / client
  InvoiceStore:  create, list, get, count-by-creation-date, exists-by-number
  SettingsStore: single-row get / create-if-absent / update
  TxStore:       all of the above plus WithTx for atomic writes

UNIQUENESS:
  Implementations MUST enforce a unique constraint on invoice number and
  return ErrDuplicateInvoiceNumber when it rejects an insert. The generator's
  existence probe is best effort; the constraint is the real guard.

LOOKUP CONVENTION:
  Get* methods return (nil, nil) when the record does not exist.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: SQLite
  - payroll/store/memory.go: in-memory, for tests
*/
package payroll

import "context"

// EmployeeOrder selects the ordering of ListEmployees.
type EmployeeOrder int

const (
	// OrderNewestFirst orders by creation time, newest first.
	OrderNewestFirst EmployeeOrder = iota
	// OrderByClientAndName orders by client consultancy, then name.
	OrderByClientAndName
)

// EmployeeStore persists employees.
type EmployeeStore interface {
	// CreateEmployee inserts e and sets e.ID (and e.CreatedAt when zero).
	CreateEmployee(ctx context.Context, e *Employee) error

	// DeleteEmployee removes an employee. Returns a NotFoundError when absent.
	DeleteEmployee(ctx context.Context, id EmployeeID) error

	GetEmployee(ctx context.Context, id EmployeeID) (*Employee, error)
	ListEmployees(ctx context.Context, order EmployeeOrder) ([]Employee, error)

	// EmployeesByIDs returns the employees that exist among ids, in no
	// particular order. Missing ids are skipped.
	EmployeesByIDs(ctx context.Context, ids []EmployeeID) ([]Employee, error)

	EmployeesByClient(ctx context.Context, client string) ([]Employee, error)

	// Clients returns distinct client consultancy names, sorted.
	Clients(ctx context.Context) ([]string, error)
}

// NumberLookup is the read access the invoice number generator needs.
type NumberLookup interface {
	// CountInvoicesCreatedOn counts invoices whose creation date is day.
	CountInvoicesCreatedOn(ctx context.Context, day Date) (int, error)

	InvoiceNumberExists(ctx context.Context, number string) (bool, error)
}

// InvoiceStore persists frozen invoices.
type InvoiceStore interface {
	NumberLookup

	// CreateInvoice inserts inv and its employee links, and sets inv.ID.
	// Returns ErrDuplicateInvoiceNumber on a number collision.
	CreateInvoice(ctx context.Context, inv *Invoice) error

	GetInvoice(ctx context.Context, id InvoiceID) (*Invoice, error)

	// ListInvoices returns all invoices, newest first.
	ListInvoices(ctx context.Context) ([]Invoice, error)
}

// SettingsStore persists the single company settings row.
type SettingsStore interface {
	GetSettings(ctx context.Context) (*CompanySettings, error)

	// CreateSettingsIfAbsent inserts s only when no row exists yet.
	CreateSettingsIfAbsent(ctx context.Context, s CompanySettings) error

	UpdateSettings(ctx context.Context, s CompanySettings) error
}

// Store is the full persistence surface.
type Store interface {
	EmployeeStore
	InvoiceStore
	SettingsStore
}

// TxStore wraps Store with transaction support.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction.
	// If fn returns error, everything fn wrote is rolled back.
	WithTx(ctx context.Context, fn func(Store) error) error
}
