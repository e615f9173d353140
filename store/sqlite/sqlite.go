/*
Package sqlite provides a SQLite-backed implementation of payroll.TxStore.

PURPOSE:
  Persists employees, frozen invoices and the company settings row. Queries
  go through sqlx; the schema is versioned with golang-migrate from SQL files
  embedded in the binary and applied on New().

KEY TABLES:
  employees:         Registered employees (monthly salary stored, not derived)
  invoices:          Frozen invoice headers, unique invoice_number
  invoice_employees: Ordered employee ids per invoice (no FK to employees)
  company_settings:  Single row, id = 1

STORAGE FORMATS:
  Money:      TEXT decimal strings, never REAL
  Dates:      TEXT YYYY-MM-DD
  Timestamps: TEXT RFC3339 in the writer's local zone, so substr(created_at,1,10)
              is the local creation day used for invoice numbering

UNIQUENESS:
  invoice_number carries a UNIQUE constraint. Violations surface as
  payroll.ErrDuplicateInvoiceNumber so the assembler can retry.

CONCURRENCY:
  Writes and transactions are serialised with a mutex; reads run
  concurrently under WAL. ":memory:" databases are pinned to a single
  connection because every connection would otherwise see its own database.

USAGE:
  store, err := sqlite.New("./invoices.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  asm := payroll.NewAssembler(store, payroll.SystemClock{})

SEE ALSO:
  - payroll/store.go: Interface definitions
  - payroll/store/memory.go: In-memory implementation for testing
  - store/sqlite/migrations: Schema
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/payroll-invoicing/payroll"
)

const memoryPath = ":memory:"

// Store implements payroll.TxStore using SQLite.
type Store struct {
	queries
	db      *sqlx.DB
	mu      sync.Mutex
	version uint
}

var _ payroll.TxStore = (*Store)(nil)

// New opens the database at dbPath and migrates it to the latest schema.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sqlx.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == memoryPath {
		db.SetMaxOpenConns(1)
	}

	version, err := RunMigrations(db.DB)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Store{queries: queries{db: db}, db: db, version: version}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// SchemaVersion is the migration version applied by New.
func (s *Store) SchemaVersion() uint {
	return s.version
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// =============================================================================
// TRANSACTIONAL STORE (payroll.TxStore interface)
// =============================================================================

// WithTx executes fn within a database transaction. Everything fn writes
// through the Store it receives is rolled back if fn returns an error.
func (s *Store) WithTx(ctx context.Context, fn func(payroll.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{queries{db: sqlTx}}); err != nil {
		return err
	}

	return sqlTx.Commit()
}

// txStore runs every operation on one open transaction.
type txStore struct {
	queries
}

// Writes outside WithTx take the same lock.

func (s *Store) CreateEmployee(ctx context.Context, e *payroll.Employee) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queries.CreateEmployee(ctx, e)
}

func (s *Store) DeleteEmployee(ctx context.Context, id payroll.EmployeeID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queries.DeleteEmployee(ctx, id)
}

func (s *Store) CreateInvoice(ctx context.Context, inv *payroll.Invoice) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queries.CreateInvoice(ctx, inv)
}

func (s *Store) CreateSettingsIfAbsent(ctx context.Context, cs payroll.CompanySettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queries.CreateSettingsIfAbsent(ctx, cs)
}

func (s *Store) UpdateSettings(ctx context.Context, cs payroll.CompanySettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queries.UpdateSettings(ctx, cs)
}

// queries implements payroll.Store over either the pool or a transaction.
type queries struct {
	db sqlx.ExtContext
}

// =============================================================================
// EMPLOYEES
// =============================================================================

type employeeRow struct {
	ID                int64          `db:"id"`
	Name              string         `db:"name"`
	SalaryPerAnnum    string         `db:"salary_per_annum"`
	SalaryPerMonth    string         `db:"salary_per_month"`
	ClientConsultancy string         `db:"client_consultancy"`
	IsNewEmployee     bool           `db:"is_new_employee"`
	DateOfJoining     sql.NullString `db:"date_of_joining"`
	SalaryDay         int            `db:"salary_date"`
	CreatedAt         string         `db:"created_at"`
}

const employeeColumns = `id, name, salary_per_annum, salary_per_month, client_consultancy,
	is_new_employee, date_of_joining, salary_date, created_at`

func (r employeeRow) toEmployee() (payroll.Employee, error) {
	annual, err := decimal.NewFromString(r.SalaryPerAnnum)
	if err != nil {
		return payroll.Employee{}, fmt.Errorf("employee %d: salary_per_annum: %w", r.ID, err)
	}
	monthly, err := decimal.NewFromString(r.SalaryPerMonth)
	if err != nil {
		return payroll.Employee{}, fmt.Errorf("employee %d: salary_per_month: %w", r.ID, err)
	}
	joined, err := payroll.ParseDate(r.DateOfJoining.String)
	if err != nil {
		return payroll.Employee{}, fmt.Errorf("employee %d: date_of_joining: %w", r.ID, err)
	}
	created, err := parseTimestamp(r.CreatedAt)
	if err != nil {
		return payroll.Employee{}, fmt.Errorf("employee %d: created_at: %w", r.ID, err)
	}

	return payroll.Employee{
		ID:                payroll.EmployeeID(r.ID),
		Name:              r.Name,
		SalaryPerAnnum:    annual,
		SalaryPerMonth:    monthly,
		ClientConsultancy: r.ClientConsultancy,
		IsNewEmployee:     r.IsNewEmployee,
		DateOfJoining:     joined,
		SalaryDay:         r.SalaryDay,
		CreatedAt:         created,
	}, nil
}

func (q queries) CreateEmployee(ctx context.Context, e *payroll.Employee) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	row := employeeRow{
		Name:              e.Name,
		SalaryPerAnnum:    e.SalaryPerAnnum.String(),
		SalaryPerMonth:    e.SalaryPerMonth.StringFixed(payroll.MoneyPlaces),
		ClientConsultancy: e.ClientConsultancy,
		IsNewEmployee:     e.IsNewEmployee,
		DateOfJoining:     nullDate(e.DateOfJoining),
		SalaryDay:         e.SalaryDay,
		CreatedAt:         formatTimestamp(e.CreatedAt),
	}

	res, err := sqlx.NamedExecContext(ctx, q.db, `
		INSERT INTO employees
		(name, salary_per_annum, salary_per_month, client_consultancy,
		 is_new_employee, date_of_joining, salary_date, created_at)
		VALUES (:name, :salary_per_annum, :salary_per_month, :client_consultancy,
		 :is_new_employee, :date_of_joining, :salary_date, :created_at)
	`, row)
	if err != nil {
		return fmt.Errorf("failed to insert employee: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read employee id: %w", err)
	}
	e.ID = payroll.EmployeeID(id)
	return nil
}

func (q queries) DeleteEmployee(ctx context.Context, id payroll.EmployeeID) error {
	res, err := q.db.ExecContext(ctx, "DELETE FROM employees WHERE id = ?", int64(id))
	if err != nil {
		return fmt.Errorf("failed to delete employee: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete employee: %w", err)
	}
	if n == 0 {
		return &payroll.NotFoundError{Kind: "employee", ID: int64(id)}
	}
	return nil
}

func (q queries) GetEmployee(ctx context.Context, id payroll.EmployeeID) (*payroll.Employee, error) {
	var row employeeRow
	err := sqlx.GetContext(ctx, q.db, &row,
		"SELECT "+employeeColumns+" FROM employees WHERE id = ?", int64(id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get employee: %w", err)
	}

	e, err := row.toEmployee()
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (q queries) ListEmployees(ctx context.Context, order payroll.EmployeeOrder) ([]payroll.Employee, error) {
	orderBy := "created_at DESC, id DESC"
	if order == payroll.OrderByClientAndName {
		orderBy = "client_consultancy ASC, name ASC, id ASC"
	}
	return q.selectEmployees(ctx, "SELECT "+employeeColumns+" FROM employees ORDER BY "+orderBy)
}

func (q queries) EmployeesByIDs(ctx context.Context, ids []payroll.EmployeeID) ([]payroll.Employee, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	raw := make([]int64, len(ids))
	for i, id := range ids {
		raw[i] = int64(id)
	}

	query, args, err := sqlx.In("SELECT "+employeeColumns+" FROM employees WHERE id IN (?) ORDER BY id", raw)
	if err != nil {
		return nil, fmt.Errorf("failed to build employee query: %w", err)
	}
	return q.selectEmployees(ctx, q.db.Rebind(query), args...)
}

func (q queries) EmployeesByClient(ctx context.Context, client string) ([]payroll.Employee, error) {
	return q.selectEmployees(ctx,
		"SELECT "+employeeColumns+" FROM employees WHERE client_consultancy = ? ORDER BY id", client)
}

func (q queries) Clients(ctx context.Context) ([]string, error) {
	var clients []string
	err := sqlx.SelectContext(ctx, q.db, &clients,
		"SELECT DISTINCT client_consultancy FROM employees ORDER BY client_consultancy")
	if err != nil {
		return nil, fmt.Errorf("failed to list clients: %w", err)
	}
	return clients, nil
}

func (q queries) selectEmployees(ctx context.Context, query string, args ...any) ([]payroll.Employee, error) {
	var rows []employeeRow
	if err := sqlx.SelectContext(ctx, q.db, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to query employees: %w", err)
	}

	out := make([]payroll.Employee, 0, len(rows))
	for _, r := range rows {
		e, err := r.toEmployee()
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// =============================================================================
// INVOICES
// =============================================================================

type invoiceRow struct {
	ID                  int64  `db:"id"`
	Number              string `db:"invoice_number"`
	Date                string `db:"invoice_date"`
	InvoiceTo           string `db:"invoice_to"`
	ClientConsultancy   string `db:"client_consultancy"`
	TotalMonthlyPayroll string `db:"total_monthly_payroll"`
	TotalAnnualPayroll  string `db:"total_annual_payroll"`
	MiscellaneousCost   string `db:"miscellaneous_cost"`
	ServiceFee          string `db:"service_fee"`
	Notes               string `db:"notes"`
	CreatedAt           string `db:"created_at"`
}

const invoiceColumns = `id, invoice_number, invoice_date, invoice_to, client_consultancy,
	total_monthly_payroll, total_annual_payroll, miscellaneous_cost, service_fee, notes, created_at`

type invoiceEmployeeRow struct {
	InvoiceID  int64 `db:"invoice_id"`
	EmployeeID int64 `db:"employee_id"`
}

func (r invoiceRow) toInvoice() (payroll.Invoice, error) {
	inv := payroll.Invoice{
		ID:                payroll.InvoiceID(r.ID),
		Number:            r.Number,
		InvoiceTo:         r.InvoiceTo,
		ClientConsultancy: r.ClientConsultancy,
		Notes:             r.Notes,
	}

	var err error
	if inv.Date, err = payroll.ParseDate(r.Date); err != nil {
		return inv, fmt.Errorf("invoice %d: invoice_date: %w", r.ID, err)
	}
	if inv.CreatedAt, err = parseTimestamp(r.CreatedAt); err != nil {
		return inv, fmt.Errorf("invoice %d: created_at: %w", r.ID, err)
	}

	money := []struct {
		column string
		raw    string
		dst    *decimal.Decimal
	}{
		{"total_monthly_payroll", r.TotalMonthlyPayroll, &inv.TotalMonthlyPayroll},
		{"total_annual_payroll", r.TotalAnnualPayroll, &inv.TotalAnnualPayroll},
		{"miscellaneous_cost", r.MiscellaneousCost, &inv.MiscellaneousCost},
		{"service_fee", r.ServiceFee, &inv.ServiceFee},
	}
	for _, m := range money {
		if *m.dst, err = decimal.NewFromString(m.raw); err != nil {
			return inv, fmt.Errorf("invoice %d: %s: %w", r.ID, m.column, err)
		}
	}
	return inv, nil
}

func (q queries) CreateInvoice(ctx context.Context, inv *payroll.Invoice) error {
	if inv.CreatedAt.IsZero() {
		inv.CreatedAt = time.Now()
	}

	row := invoiceRow{
		Number:              inv.Number,
		Date:                inv.Date.String(),
		InvoiceTo:           inv.InvoiceTo,
		ClientConsultancy:   inv.ClientConsultancy,
		TotalMonthlyPayroll: inv.TotalMonthlyPayroll.StringFixed(payroll.MoneyPlaces),
		TotalAnnualPayroll:  inv.TotalAnnualPayroll.StringFixed(payroll.MoneyPlaces),
		MiscellaneousCost:   inv.MiscellaneousCost.StringFixed(payroll.MoneyPlaces),
		ServiceFee:          inv.ServiceFee.StringFixed(payroll.MoneyPlaces),
		Notes:               inv.Notes,
		CreatedAt:           formatTimestamp(inv.CreatedAt),
	}

	res, err := sqlx.NamedExecContext(ctx, q.db, `
		INSERT INTO invoices
		(invoice_number, invoice_date, invoice_to, client_consultancy,
		 total_monthly_payroll, total_annual_payroll, miscellaneous_cost,
		 service_fee, notes, created_at)
		VALUES (:invoice_number, :invoice_date, :invoice_to, :client_consultancy,
		 :total_monthly_payroll, :total_annual_payroll, :miscellaneous_cost,
		 :service_fee, :notes, :created_at)
	`, row)
	if err != nil {
		if isUniqueConstraintError(err) {
			return payroll.ErrDuplicateInvoiceNumber
		}
		return fmt.Errorf("failed to insert invoice: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read invoice id: %w", err)
	}

	for pos, empID := range inv.EmployeeIDs {
		_, err := q.db.ExecContext(ctx,
			"INSERT INTO invoice_employees (invoice_id, position, employee_id) VALUES (?, ?, ?)",
			id, pos, int64(empID))
		if err != nil {
			return fmt.Errorf("failed to link invoice employee: %w", err)
		}
	}

	inv.ID = payroll.InvoiceID(id)
	return nil
}

func (q queries) GetInvoice(ctx context.Context, id payroll.InvoiceID) (*payroll.Invoice, error) {
	var row invoiceRow
	err := sqlx.GetContext(ctx, q.db, &row,
		"SELECT "+invoiceColumns+" FROM invoices WHERE id = ?", int64(id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get invoice: %w", err)
	}

	invoices, err := q.withEmployeeIDs(ctx, []invoiceRow{row},
		"SELECT invoice_id, employee_id FROM invoice_employees WHERE invoice_id = ? ORDER BY position", int64(id))
	if err != nil {
		return nil, err
	}
	return &invoices[0], nil
}

func (q queries) ListInvoices(ctx context.Context) ([]payroll.Invoice, error) {
	var rows []invoiceRow
	err := sqlx.SelectContext(ctx, q.db, &rows,
		"SELECT "+invoiceColumns+" FROM invoices ORDER BY created_at DESC, id DESC")
	if err != nil {
		return nil, fmt.Errorf("failed to list invoices: %w", err)
	}

	return q.withEmployeeIDs(ctx, rows,
		"SELECT invoice_id, employee_id FROM invoice_employees ORDER BY invoice_id, position")
}

// withEmployeeIDs converts rows and attaches the employee links returned by
// linkQuery, preserving row order.
func (q queries) withEmployeeIDs(ctx context.Context, rows []invoiceRow, linkQuery string, args ...any) ([]payroll.Invoice, error) {
	var links []invoiceEmployeeRow
	if err := sqlx.SelectContext(ctx, q.db, &links, linkQuery, args...); err != nil {
		return nil, fmt.Errorf("failed to load invoice employees: %w", err)
	}

	byInvoice := make(map[int64][]payroll.EmployeeID)
	for _, l := range links {
		byInvoice[l.InvoiceID] = append(byInvoice[l.InvoiceID], payroll.EmployeeID(l.EmployeeID))
	}

	out := make([]payroll.Invoice, 0, len(rows))
	for _, r := range rows {
		inv, err := r.toInvoice()
		if err != nil {
			return nil, err
		}
		inv.EmployeeIDs = byInvoice[r.ID]
		out = append(out, inv)
	}
	return out, nil
}

func (q queries) CountInvoicesCreatedOn(ctx context.Context, day payroll.Date) (int, error) {
	var n int
	err := sqlx.GetContext(ctx, q.db, &n,
		"SELECT COUNT(*) FROM invoices WHERE substr(created_at, 1, 10) = ?", day.String())
	if err != nil {
		return 0, fmt.Errorf("failed to count invoices: %w", err)
	}
	return n, nil
}

func (q queries) InvoiceNumberExists(ctx context.Context, number string) (bool, error) {
	var n int
	err := sqlx.GetContext(ctx, q.db, &n,
		"SELECT COUNT(*) FROM invoices WHERE invoice_number = ?", number)
	if err != nil {
		return false, fmt.Errorf("failed to check invoice number: %w", err)
	}
	return n > 0, nil
}

// =============================================================================
// SETTINGS
// =============================================================================

type settingsRow struct {
	CompanyName    string `db:"company_name"`
	CompanyAddress string `db:"company_address"`
	LogoPath       string `db:"logo_path"`
	UpdatedAt      string `db:"updated_at"`
}

func (q queries) GetSettings(ctx context.Context) (*payroll.CompanySettings, error) {
	var row settingsRow
	err := sqlx.GetContext(ctx, q.db, &row,
		"SELECT company_name, company_address, logo_path, updated_at FROM company_settings WHERE id = 1")
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get settings: %w", err)
	}

	updated, err := parseTimestamp(row.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("settings: updated_at: %w", err)
	}
	return &payroll.CompanySettings{
		CompanyName:    row.CompanyName,
		CompanyAddress: row.CompanyAddress,
		LogoPath:       row.LogoPath,
		UpdatedAt:      updated,
	}, nil
}

func (q queries) CreateSettingsIfAbsent(ctx context.Context, cs payroll.CompanySettings) error {
	_, err := sqlx.NamedExecContext(ctx, q.db, `
		INSERT INTO company_settings (id, company_name, company_address, logo_path, updated_at)
		VALUES (1, :company_name, :company_address, :logo_path, :updated_at)
		ON CONFLICT(id) DO NOTHING
	`, newSettingsRow(cs))
	if err != nil {
		return fmt.Errorf("failed to initialise settings: %w", err)
	}
	return nil
}

func (q queries) UpdateSettings(ctx context.Context, cs payroll.CompanySettings) error {
	_, err := sqlx.NamedExecContext(ctx, q.db, `
		INSERT INTO company_settings (id, company_name, company_address, logo_path, updated_at)
		VALUES (1, :company_name, :company_address, :logo_path, :updated_at)
		ON CONFLICT(id) DO UPDATE SET
			company_name = excluded.company_name,
			company_address = excluded.company_address,
			logo_path = excluded.logo_path,
			updated_at = excluded.updated_at
	`, newSettingsRow(cs))
	if err != nil {
		return fmt.Errorf("failed to update settings: %w", err)
	}
	return nil
}

func newSettingsRow(cs payroll.CompanySettings) settingsRow {
	return settingsRow{
		CompanyName:    cs.CompanyName,
		CompanyAddress: cs.CompanyAddress,
		LogoPath:       cs.LogoPath,
		UpdatedAt:      formatTimestamp(time.Now().UTC()),
	}
}

// =============================================================================
// HELPERS
// =============================================================================

func formatTimestamp(t time.Time) string {
	return t.Format(time.RFC3339)
}

func parseTimestamp(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}

func nullDate(d payroll.Date) sql.NullString {
	if d.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: d.String(), Valid: true}
}

func isUniqueConstraintError(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
