package sqlite_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/payroll-invoicing/payroll"
	"github.com/warp/payroll-invoicing/store/sqlite"
)

var nov20 = time.Date(2025, time.November, 20, 9, 0, 0, 0, time.UTC)

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func addEmployee(t *testing.T, store *sqlite.Store, in payroll.EmployeeInput) payroll.Employee {
	t.Helper()
	emp, err := payroll.NewEmployee(in)
	require.NoError(t, err)
	require.NoError(t, store.CreateEmployee(context.Background(), &emp))
	return emp
}

func TestNew_AppliesMigrations(t *testing.T) {
	store := newStore(t)
	assert.Equal(t, uint(1), store.SchemaVersion())
	assert.NoError(t, store.Ping(context.Background()))
}

func TestNew_ReopenIsNoChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "invoices.db")

	first, err := sqlite.New(path)
	require.NoError(t, err)
	addEmployee(t, first, payroll.EmployeeInput{Name: "A", SalaryPerAnnum: decimal.NewFromInt(120000), ClientConsultancy: "Acme"})
	require.NoError(t, first.Close())

	second, err := sqlite.New(path)
	require.NoError(t, err)
	defer second.Close()

	employees, err := second.ListEmployees(context.Background(), payroll.OrderNewestFirst)
	require.NoError(t, err)
	assert.Len(t, employees, 1)
}

// =============================================================================
// EMPLOYEES
// =============================================================================

func TestEmployees_RoundTrip(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	emp := addEmployee(t, store, payroll.EmployeeInput{
		Name:              "Asha Rao",
		SalaryPerAnnum:    decimal.RequireFromString("500000"),
		ClientConsultancy: "Acme",
		IsNewEmployee:     true,
		DateOfJoining:     payroll.NewDate(2025, time.November, 11),
		SalaryDay:         5,
	})
	assert.NotZero(t, emp.ID)

	got, err := store.GetEmployee(ctx, emp.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Asha Rao", got.Name)
	assert.Equal(t, "41666.67", got.SalaryPerMonth.StringFixed(2))
	assert.True(t, got.SalaryPerAnnum.Equal(decimal.NewFromInt(500000)))
	assert.True(t, got.IsNewEmployee)
	assert.Equal(t, "2025-11-11", got.DateOfJoining.String())
	assert.Equal(t, 5, got.SalaryDay)
	assert.False(t, got.CreatedAt.IsZero())

	missing, err := store.GetEmployee(ctx, 999)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestEmployees_NoJoiningDateStoredAsNull(t *testing.T) {
	store := newStore(t)
	emp := addEmployee(t, store, payroll.EmployeeInput{Name: "A", SalaryPerAnnum: decimal.NewFromInt(120000), ClientConsultancy: "Acme"})

	got, err := store.GetEmployee(context.Background(), emp.ID)
	require.NoError(t, err)
	assert.False(t, got.HasJoiningDate())
}

func TestEmployees_OrderingAndFilters(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	zed := addEmployee(t, store, payroll.EmployeeInput{Name: "Zed", SalaryPerAnnum: decimal.NewFromInt(120000), ClientConsultancy: "Beta"})
	amy := addEmployee(t, store, payroll.EmployeeInput{Name: "Amy", SalaryPerAnnum: decimal.NewFromInt(120000), ClientConsultancy: "Beta"})
	bob := addEmployee(t, store, payroll.EmployeeInput{Name: "Bob", SalaryPerAnnum: decimal.NewFromInt(120000), ClientConsultancy: "Acme"})

	newest, err := store.ListEmployees(ctx, payroll.OrderNewestFirst)
	require.NoError(t, err)
	require.Len(t, newest, 3)
	assert.Equal(t, bob.ID, newest[0].ID)

	byClient, err := store.ListEmployees(ctx, payroll.OrderByClientAndName)
	require.NoError(t, err)
	assert.Equal(t, []payroll.EmployeeID{bob.ID, amy.ID, zed.ID}, ids(byClient))

	beta, err := store.EmployeesByClient(ctx, "Beta")
	require.NoError(t, err)
	assert.Equal(t, []payroll.EmployeeID{zed.ID, amy.ID}, ids(beta))

	subset, err := store.EmployeesByIDs(ctx, []payroll.EmployeeID{amy.ID, 999, zed.ID})
	require.NoError(t, err)
	assert.ElementsMatch(t, []payroll.EmployeeID{zed.ID, amy.ID}, ids(subset))

	clients, err := store.Clients(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Acme", "Beta"}, clients)
}

func TestDeleteEmployee(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	emp := addEmployee(t, store, payroll.EmployeeInput{Name: "A", SalaryPerAnnum: decimal.NewFromInt(120000), ClientConsultancy: "Acme"})

	require.NoError(t, store.DeleteEmployee(ctx, emp.ID))

	err := store.DeleteEmployee(ctx, emp.ID)
	assert.True(t, payroll.IsNotFound(err))
}

func ids(employees []payroll.Employee) []payroll.EmployeeID {
	out := make([]payroll.EmployeeID, len(employees))
	for i, e := range employees {
		out[i] = e.ID
	}
	return out
}

// =============================================================================
// INVOICES
// =============================================================================

func sampleInvoice(number string, createdAt time.Time, employees ...payroll.EmployeeID) *payroll.Invoice {
	return &payroll.Invoice{
		Number:              number,
		Date:                payroll.DateOf(createdAt),
		InvoiceTo:           "Acme Holdings",
		ClientConsultancy:   "Acme",
		EmployeeIDs:         employees,
		TotalMonthlyPayroll: decimal.RequireFromString("131265"),
		TotalAnnualPayroll:  decimal.RequireFromString("1320000"),
		MiscellaneousCost:   decimal.RequireFromString("500"),
		ServiceFee:          decimal.RequireFromString("22125"),
		Notes:               "November",
		CreatedAt:           createdAt,
	}
}

func TestInvoices_RoundTrip(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	inv := sampleInvoice("INV-20251120-001", nov20, 3, 1, 2)
	require.NoError(t, store.CreateInvoice(ctx, inv))
	assert.NotZero(t, inv.ID)

	got, err := store.GetInvoice(ctx, inv.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "INV-20251120-001", got.Number)
	assert.Equal(t, "2025-11-20", got.Date.String())
	assert.Equal(t, []payroll.EmployeeID{3, 1, 2}, got.EmployeeIDs)
	assert.Equal(t, "131265.00", got.TotalMonthlyPayroll.StringFixed(2))
	assert.Equal(t, "22125.00", got.ServiceFee.StringFixed(2))
	assert.Equal(t, "November", got.Notes)
	assert.True(t, got.CreatedAt.Equal(nov20))

	missing, err := store.GetInvoice(ctx, 999)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestInvoices_DuplicateNumber(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateInvoice(ctx, sampleInvoice("INV-20251120-001", nov20, 1)))
	err := store.CreateInvoice(ctx, sampleInvoice("INV-20251120-001", nov20, 2))

	assert.True(t, errors.Is(err, payroll.ErrDuplicateInvoiceNumber))
	exists, err := store.InvoiceNumberExists(ctx, "INV-20251120-001")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestInvoices_ListNewestFirstAndCountByDay(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateInvoice(ctx, sampleInvoice("INV-20251119-001", nov20.AddDate(0, 0, -1), 1)))
	require.NoError(t, store.CreateInvoice(ctx, sampleInvoice("INV-20251120-001", nov20, 1, 2)))
	require.NoError(t, store.CreateInvoice(ctx, sampleInvoice("INV-20251120-002", nov20.Add(time.Hour), 2)))

	invoices, err := store.ListInvoices(ctx)
	require.NoError(t, err)
	require.Len(t, invoices, 3)
	assert.Equal(t, "INV-20251120-002", invoices[0].Number)
	assert.Equal(t, []payroll.EmployeeID{1, 2}, invoices[1].EmployeeIDs)

	n, err := store.CountInvoicesCreatedOn(ctx, payroll.DateOf(nov20))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestInvoices_SurviveEmployeeDeletion(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	emp := addEmployee(t, store, payroll.EmployeeInput{Name: "A", SalaryPerAnnum: decimal.NewFromInt(120000), ClientConsultancy: "Acme"})

	inv := sampleInvoice("INV-20251120-001", nov20, emp.ID)
	require.NoError(t, store.CreateInvoice(ctx, inv))
	require.NoError(t, store.DeleteEmployee(ctx, emp.ID))

	got, err := store.GetInvoice(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, []payroll.EmployeeID{emp.ID}, got.EmployeeIDs)
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

func TestWithTx_RollsBackOnError(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := store.WithTx(ctx, func(s payroll.Store) error {
		if err := s.CreateInvoice(ctx, sampleInvoice("INV-20251120-001", nov20, 1)); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	invoices, err := store.ListInvoices(ctx)
	require.NoError(t, err)
	assert.Empty(t, invoices)
}

func TestAssembler_GeneratesAgainstSQLite(t *testing.T) {
	// GIVEN: two employees persisted in SQLite
	store := newStore(t)
	ctx := context.Background()
	a := addEmployee(t, store, payroll.EmployeeInput{Name: "Full", SalaryPerAnnum: decimal.NewFromInt(360000), ClientConsultancy: "Acme"})
	b := addEmployee(t, store, payroll.EmployeeInput{
		Name: "Partial", SalaryPerAnnum: decimal.NewFromInt(360000), ClientConsultancy: "Acme",
		IsNewEmployee: true, DateOfJoining: payroll.NewDate(2025, time.November, 11),
	})
	asm := payroll.NewAssembler(store, payroll.FixedClock{At: nov20})
	req := payroll.GenerateRequest{
		ClientConsultancy: "Acme",
		InvoiceTo:         "Acme",
		EmployeeIDs:       []payroll.EmployeeID{a.ID, b.ID},
		IncludeServiceFee: true,
	}

	// WHEN: generating twice on the same day
	first, err := asm.Generate(ctx, req)
	require.NoError(t, err)
	second, err := asm.Generate(ctx, req)
	require.NoError(t, err)

	// THEN: 32880 + 22880 + 14750 fee, sequential numbers
	assert.Equal(t, "INV-20251120-001", first.Number)
	assert.Equal(t, "INV-20251120-002", second.Number)
	assert.Equal(t, "70510.00", first.TotalMonthlyPayroll.StringFixed(2))

	stored, err := store.GetInvoice(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, []payroll.EmployeeID{a.ID, b.ID}, stored.EmployeeIDs)
}

// =============================================================================
// SETTINGS
// =============================================================================

func TestSettings(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	none, err := store.GetSettings(ctx)
	require.NoError(t, err)
	assert.Nil(t, none)

	s, err := payroll.GetOrInitSettings(ctx, store, payroll.CompanySettings{CompanyName: "TRUEZEN TECHNOLOGIES"})
	require.NoError(t, err)
	assert.Equal(t, "TRUEZEN TECHNOLOGIES", s.CompanyName)

	// Second create must not overwrite.
	require.NoError(t, store.CreateSettingsIfAbsent(ctx, payroll.CompanySettings{CompanyName: "Other"}))

	address := "1 Main Road"
	updated, err := payroll.UpdateSettings(ctx, store, payroll.CompanySettings{}, payroll.SettingsUpdate{CompanyAddress: &address})
	require.NoError(t, err)
	assert.Equal(t, "TRUEZEN TECHNOLOGIES", updated.CompanyName)

	got, err := store.GetSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, "TRUEZEN TECHNOLOGIES", got.CompanyName)
	assert.Equal(t, "1 Main Road", got.CompanyAddress)
	assert.False(t, got.UpdatedAt.IsZero())
}
