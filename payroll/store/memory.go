// Package store provides in-memory payroll.Store implementations.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/warp/payroll-invoicing/payroll"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu    sync.RWMutex
	txMu  sync.Mutex
	state state
}

type state struct {
	employees      map[payroll.EmployeeID]payroll.Employee
	invoices       map[payroll.InvoiceID]payroll.Invoice
	numbers        map[string]payroll.InvoiceID
	settings       *payroll.CompanySettings
	nextEmployeeID payroll.EmployeeID
	nextInvoiceID  payroll.InvoiceID
}

func NewMemory() *Memory {
	return &Memory{state: state{
		employees:      make(map[payroll.EmployeeID]payroll.Employee),
		invoices:       make(map[payroll.InvoiceID]payroll.Invoice),
		numbers:        make(map[string]payroll.InvoiceID),
		nextEmployeeID: 1,
		nextInvoiceID:  1,
	}}
}

func (s state) clone() state {
	c := s
	c.employees = make(map[payroll.EmployeeID]payroll.Employee, len(s.employees))
	for k, v := range s.employees {
		c.employees[k] = v
	}
	c.invoices = make(map[payroll.InvoiceID]payroll.Invoice, len(s.invoices))
	for k, v := range s.invoices {
		c.invoices[k] = v
	}
	c.numbers = make(map[string]payroll.InvoiceID, len(s.numbers))
	for k, v := range s.numbers {
		c.numbers[k] = v
	}
	if s.settings != nil {
		cp := *s.settings
		c.settings = &cp
	}
	return c
}

// WithTx runs fn against the store and restores the prior state if fn fails.
// Transactions are serialised.
func (m *Memory) WithTx(_ context.Context, fn func(payroll.Store) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	m.mu.RLock()
	saved := m.state.clone()
	m.mu.RUnlock()

	if err := fn(m); err != nil {
		m.mu.Lock()
		m.state = saved
		m.mu.Unlock()
		return err
	}
	return nil
}

// =============================================================================
// EMPLOYEES
// =============================================================================

func (m *Memory) CreateEmployee(_ context.Context, e *payroll.Employee) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e.ID = m.state.nextEmployeeID
	m.state.nextEmployeeID++
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	m.state.employees[e.ID] = *e
	return nil
}

func (m *Memory) DeleteEmployee(_ context.Context, id payroll.EmployeeID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.state.employees[id]; !ok {
		return &payroll.NotFoundError{Kind: "employee", ID: int64(id)}
	}
	delete(m.state.employees, id)
	return nil
}

func (m *Memory) GetEmployee(_ context.Context, id payroll.EmployeeID) (*payroll.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.state.employees[id]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

func (m *Memory) ListEmployees(_ context.Context, order payroll.EmployeeOrder) ([]payroll.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := m.employeesWhere(func(payroll.Employee) bool { return true })
	switch order {
	case payroll.OrderByClientAndName:
		sort.SliceStable(out, func(i, j int) bool {
			if out[i].ClientConsultancy != out[j].ClientConsultancy {
				return out[i].ClientConsultancy < out[j].ClientConsultancy
			}
			return out[i].Name < out[j].Name
		})
	default:
		sort.SliceStable(out, func(i, j int) bool {
			if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
				return out[i].CreatedAt.After(out[j].CreatedAt)
			}
			return out[i].ID > out[j].ID
		})
	}
	return out, nil
}

func (m *Memory) EmployeesByIDs(_ context.Context, ids []payroll.EmployeeID) ([]payroll.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	want := make(map[payroll.EmployeeID]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	return m.employeesWhere(func(e payroll.Employee) bool { return want[e.ID] }), nil
}

func (m *Memory) EmployeesByClient(_ context.Context, client string) ([]payroll.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.employeesWhere(func(e payroll.Employee) bool { return e.ClientConsultancy == client }), nil
}

func (m *Memory) Clients(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := make(map[string]bool)
	var out []string
	for _, e := range m.state.employees {
		if !seen[e.ClientConsultancy] {
			seen[e.ClientConsultancy] = true
			out = append(out, e.ClientConsultancy)
		}
	}
	sort.Strings(out)
	return out, nil
}

// employeesWhere returns matching employees ordered by id. Caller holds mu.
func (m *Memory) employeesWhere(keep func(payroll.Employee) bool) []payroll.Employee {
	var out []payroll.Employee
	for _, e := range m.state.employees {
		if keep(e) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// =============================================================================
// INVOICES
// =============================================================================

func (m *Memory) CreateInvoice(_ context.Context, inv *payroll.Invoice) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, taken := m.state.numbers[inv.Number]; taken {
		return payroll.ErrDuplicateInvoiceNumber
	}
	inv.ID = m.state.nextInvoiceID
	m.state.nextInvoiceID++
	if inv.CreatedAt.IsZero() {
		inv.CreatedAt = time.Now()
	}

	stored := *inv
	stored.EmployeeIDs = append([]payroll.EmployeeID(nil), inv.EmployeeIDs...)
	m.state.invoices[inv.ID] = stored
	m.state.numbers[inv.Number] = inv.ID
	return nil
}

func (m *Memory) GetInvoice(_ context.Context, id payroll.InvoiceID) (*payroll.Invoice, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	inv, ok := m.state.invoices[id]
	if !ok {
		return nil, nil
	}
	inv.EmployeeIDs = append([]payroll.EmployeeID(nil), inv.EmployeeIDs...)
	return &inv, nil
}

func (m *Memory) ListInvoices(_ context.Context) ([]payroll.Invoice, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]payroll.Invoice, 0, len(m.state.invoices))
	for _, inv := range m.state.invoices {
		out = append(out, inv)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (m *Memory) CountInvoicesCreatedOn(_ context.Context, day payroll.Date) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := 0
	for _, inv := range m.state.invoices {
		if payroll.DateOf(inv.CreatedAt).Equal(day) {
			n++
		}
	}
	return n, nil
}

func (m *Memory) InvoiceNumberExists(_ context.Context, number string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.state.numbers[number]
	return ok, nil
}

// =============================================================================
// SETTINGS
// =============================================================================

func (m *Memory) GetSettings(_ context.Context) (*payroll.CompanySettings, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.state.settings == nil {
		return nil, nil
	}
	s := *m.state.settings
	return &s, nil
}

func (m *Memory) CreateSettingsIfAbsent(_ context.Context, s payroll.CompanySettings) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state.settings != nil {
		return nil
	}
	s.UpdatedAt = time.Now().UTC()
	m.state.settings = &s
	return nil
}

func (m *Memory) UpdateSettings(_ context.Context, s payroll.CompanySettings) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s.UpdatedAt = time.Now().UTC()
	m.state.settings = &s
	return nil
}

// SeedInvoiceNumber marks number as taken without a full invoice. Tests use
// it to simulate collisions.
func (m *Memory) SeedInvoiceNumber(number string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.numbers[number] = 0
}
