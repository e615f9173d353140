/*
handlers_test.go - HTTP tests for the invoicing API

Exercises the full router against an in-memory SQLite store:
- Employee registration, listing, filtering, deletion
- Invoice generation, history, breakdown and PDF download
- Settings defaults, updates and logo upload
- Error status mapping
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/payroll-invoicing/payroll"
	"github.com/warp/payroll-invoicing/render"
	"github.com/warp/payroll-invoicing/store/sqlite"
)

var nov20 = time.Date(2025, time.November, 20, 9, 0, 0, 0, time.UTC)

type testEnv struct {
	handler *Handler
	router  http.Handler
}

func setupTestHandler(t *testing.T) *testEnv {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	h := NewHandler(store, render.NewPDF(render.Contact{Email: "payroll@example.com", Phone: "123"}), Options{
		UploadDir: t.TempDir(),
		Clock:     payroll.FixedClock{At: nov20},
	})
	return &testEnv{handler: h, router: NewRouter(h)}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func (e *testEnv) createEmployee(t *testing.T, body map[string]any) EmployeeDTO {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/employees", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[EmployeeDTO](t, rec)
}

// seedTeam registers Full (30000/month), Partial (new, joined Nov 11) and
// Senior (50000/month, joined 2023) at Acme.
func (e *testEnv) seedTeam(t *testing.T) []int64 {
	t.Helper()
	full := e.createEmployee(t, map[string]any{"name": "Full", "salary_per_annum": "360000", "client_consultancy": "Acme"})
	partial := e.createEmployee(t, map[string]any{
		"name": "Partial", "salary_per_annum": 360000, "client_consultancy": "Acme",
		"is_new_employee": true, "date_of_joining": "2025-11-11",
	})
	senior := e.createEmployee(t, map[string]any{
		"name": "Senior", "salary_per_annum": "600000", "client_consultancy": "Acme",
		"date_of_joining": "2023-04-03",
	})
	return []int64{full.ID, partial.ID, senior.ID}
}

// =============================================================================
// EMPLOYEES
// =============================================================================

func TestCreateEmployee(t *testing.T) {
	env := setupTestHandler(t)

	emp := env.createEmployee(t, map[string]any{
		"name": "Asha Rao", "salary_per_annum": "360000", "client_consultancy": "Acme",
		"is_new_employee": true, "date_of_joining": "2025-11-11", "salary_date": 5,
	})

	assert.NotZero(t, emp.ID)
	assert.Equal(t, "30000.00", emp.SalaryPerMonth.StringFixed(2))
	assert.Equal(t, "2025-11-11", emp.DateOfJoining)
	assert.Equal(t, 5, emp.SalaryDate)
	assert.True(t, emp.IsNewEmployee)
}

func TestCreateEmployee_Validation(t *testing.T) {
	env := setupTestHandler(t)

	tests := []struct {
		name  string
		body  map[string]any
		field string
	}{
		{"missing name", map[string]any{"salary_per_annum": "1", "client_consultancy": "Acme"}, "name"},
		{"zero salary", map[string]any{"name": "A", "salary_per_annum": "0", "client_consultancy": "Acme"}, "salary_per_annum"},
		{"bad joining date", map[string]any{"name": "A", "salary_per_annum": "1", "client_consultancy": "Acme", "date_of_joining": "11/11/2025"}, "date_of_joining"},
		{"bad salary day", map[string]any{"name": "A", "salary_per_annum": "1", "client_consultancy": "Acme", "salary_date": 40}, "salary_date"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/api/employees", tt.body)
			require.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tt.field, decode[ErrorResponse](t, rec).Field)
		})
	}

	rec := env.do(t, http.MethodPost, "/api/employees", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "empty body is invalid JSON")
}

func TestListEmployeesAndClients(t *testing.T) {
	env := setupTestHandler(t)
	env.createEmployee(t, map[string]any{"name": "Zed", "salary_per_annum": "120000", "client_consultancy": "Beta"})
	env.createEmployee(t, map[string]any{"name": "Amy", "salary_per_annum": "120000", "client_consultancy": "Acme"})

	rec := env.do(t, http.MethodGet, "/api/employees?order=client", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[[]EmployeeDTO](t, rec)
	require.Len(t, list, 2)
	assert.Equal(t, "Amy", list[0].Name)

	rec = env.do(t, http.MethodGet, "/api/employees/by-client/Beta", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	beta := decode[[]EmployeeDTO](t, rec)
	require.Len(t, beta, 1)
	assert.Equal(t, "Zed", beta[0].Name)

	rec = env.do(t, http.MethodGet, "/api/clients", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"Acme", "Beta"}, decode[[]string](t, rec))
}

func TestListClients_EmptyIsArray(t *testing.T) {
	env := setupTestHandler(t)
	rec := env.do(t, http.MethodGet, "/api/clients", nil)
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestDeleteEmployee(t *testing.T) {
	env := setupTestHandler(t)
	emp := env.createEmployee(t, map[string]any{"name": "A", "salary_per_annum": "120000", "client_consultancy": "Acme"})

	rec := env.do(t, http.MethodDelete, "/api/employees/"+itoa(emp.ID), nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, http.MethodDelete, "/api/employees/"+itoa(emp.ID), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodDelete, "/api/employees/abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// INVOICES
// =============================================================================

func TestGenerateInvoice(t *testing.T) {
	// GIVEN: three Acme employees
	env := setupTestHandler(t)
	ids := env.seedTeam(t)

	// WHEN: generating with service fee and misc cost
	rec := env.do(t, http.MethodPost, "/api/invoices", map[string]any{
		"client_consultancy":  "Acme",
		"invoice_to":          "Acme Holdings Ltd",
		"employee_ids":        ids,
		"include_service_fee": true,
		"miscellaneous_cost":  "500",
		"notes":               "November payroll",
	})

	// THEN: totals are frozen and the number is the first of the day
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	inv := decode[InvoiceDTO](t, rec)
	assert.Equal(t, "INV-20251120-001", inv.InvoiceNumber)
	assert.Equal(t, "2025-11-20", inv.InvoiceDate)
	assert.Equal(t, "131265.00", inv.TotalMonthlyPayroll.StringFixed(2))
	assert.Equal(t, "1320000.00", inv.TotalAnnualPayroll.StringFixed(2))
	assert.Equal(t, "22125.00", inv.ServiceFee.StringFixed(2))
	assert.Equal(t, ids, inv.EmployeeIDs)

	rec = env.do(t, http.MethodGet, "/api/invoices", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	history := decode[[]InvoiceDTO](t, rec)
	require.Len(t, history, 1)
	assert.Equal(t, inv.InvoiceNumber, history[0].InvoiceNumber)
}

func TestGenerateInvoice_Errors(t *testing.T) {
	env := setupTestHandler(t)
	ids := env.seedTeam(t)

	tests := []struct {
		name   string
		body   map[string]any
		status int
	}{
		{"missing invoice to", map[string]any{"client_consultancy": "Acme", "employee_ids": ids}, http.StatusBadRequest},
		{"no employees", map[string]any{"client_consultancy": "Acme", "invoice_to": "Acme", "employee_ids": []int64{}}, http.StatusBadRequest},
		{"none resolve", map[string]any{"client_consultancy": "Acme", "invoice_to": "Acme", "employee_ids": []int64{98, 99}}, http.StatusBadRequest},
		{"one missing", map[string]any{"client_consultancy": "Acme", "invoice_to": "Acme", "employee_ids": []int64{ids[0], 99}}, http.StatusNotFound},
		{"negative misc", map[string]any{"client_consultancy": "Acme", "invoice_to": "Acme", "employee_ids": ids, "miscellaneous_cost": "-5"}, http.StatusBadRequest},
		{"malformed amount", map[string]any{"client_consultancy": "Acme", "invoice_to": "Acme", "employee_ids": ids, "miscellaneous_cost": "abc"}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/api/invoices", tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
		})
	}

	rec := env.do(t, http.MethodGet, "/api/invoices", nil)
	assert.Empty(t, decode[[]InvoiceDTO](t, rec), "failed requests must not persist invoices")
}

func TestGetInvoice_Breakdown(t *testing.T) {
	// GIVEN: an invoice for two employees
	env := setupTestHandler(t)
	ids := env.seedTeam(t)
	rec := env.do(t, http.MethodPost, "/api/invoices", map[string]any{
		"client_consultancy": "Acme", "invoice_to": "Acme", "employee_ids": ids[:2], "include_service_fee": true,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	inv := decode[InvoiceDTO](t, rec)

	// WHEN: one of them is deleted afterwards
	require.Equal(t, http.StatusNoContent, env.do(t, http.MethodDelete, "/api/employees/"+itoa(ids[1]), nil).Code)

	// THEN: the breakdown drops the line and reports drift; the frozen total is unchanged
	rec = env.do(t, http.MethodGet, "/api/invoices/"+itoa(inv.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	detail := decode[InvoiceDetailDTO](t, rec)

	require.Len(t, detail.Lines, 1)
	assert.Equal(t, "Full", detail.Lines[0].Employee.Name)
	assert.Equal(t, "70510.00", detail.Invoice.TotalMonthlyPayroll.StringFixed(2))
	assert.Equal(t, "12500.00", detail.ServiceFee.Base.StringFixed(2))
	assert.Equal(t, "2250.00", detail.ServiceFee.GST.StringFixed(2))
	assert.Equal(t, "47630.00", detail.GrandTotal.StringFixed(2))
	assert.Equal(t, "-22880.00", detail.Drift.StringFixed(2))
}

func TestGetInvoice_NotFoundAndBadID(t *testing.T) {
	env := setupTestHandler(t)

	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/api/invoices/42", nil).Code)
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/api/invoices/0", nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/api/invoices/42/pdf", nil).Code)
}

func TestDownloadInvoicePDF(t *testing.T) {
	env := setupTestHandler(t)
	ids := env.seedTeam(t)
	rec := env.do(t, http.MethodPost, "/api/invoices", map[string]any{
		"client_consultancy": "Acme", "invoice_to": "Acme", "employee_ids": ids, "miscellaneous_cost": 100,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	inv := decode[InvoiceDTO](t, rec)

	rec = env.do(t, http.MethodGet, "/api/invoices/"+itoa(inv.ID)+"/pdf", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), `filename="INV-20251120-001.pdf"`)
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF")))
}

// =============================================================================
// SETTINGS
// =============================================================================

func TestSettings_DefaultsAndUpdate(t *testing.T) {
	env := setupTestHandler(t)

	rec := env.do(t, http.MethodGet, "/api/settings", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, payroll.DefaultCompanyName, decode[SettingsDTO](t, rec).CompanyName)

	rec = env.do(t, http.MethodPut, "/api/settings", map[string]any{"company_address": "12 MG Road\nBengaluru"})
	require.Equal(t, http.StatusOK, rec.Code)
	s := decode[SettingsDTO](t, rec)
	assert.Equal(t, payroll.DefaultCompanyName, s.CompanyName)
	assert.Equal(t, "12 MG Road\nBengaluru", s.CompanyAddress)

	rec = env.do(t, http.MethodPut, "/api/settings", map[string]any{"company_name": "  "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "company_name", decode[ErrorResponse](t, rec).Field)
}

func uploadLogo(t *testing.T, env *testEnv, filename string, content []byte) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("logo", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/settings/logo", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	return rec
}

func TestUploadLogo(t *testing.T) {
	env := setupTestHandler(t)

	rec := uploadLogo(t, env, "Company Logo.PNG", []byte("not really a png"))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	s := decode[SettingsDTO](t, rec)
	wantName := itoa(nov20.Unix()) + "_company-logo.png"
	assert.Equal(t, filepath.Join(env.handler.UploadDir, "logos", wantName), s.LogoPath)
	assert.Equal(t, "/uploads/logos/"+wantName, s.LogoURL)

	saved, err := os.ReadFile(s.LogoPath)
	require.NoError(t, err)
	assert.Equal(t, "not really a png", string(saved))

	served := env.do(t, http.MethodGet, s.LogoURL, nil)
	assert.Equal(t, http.StatusOK, served.Code)
}

func TestUploadLogo_Rejected(t *testing.T) {
	env := setupTestHandler(t)

	rec := uploadLogo(t, env, "logo.bmp", []byte("x"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "logo", decode[ErrorResponse](t, rec).Field)

	req := httptest.NewRequest(http.MethodPost, "/api/settings/logo", strings.NewReader(""))
	req.Header.Set("Content-Type", "multipart/form-data; boundary=x")
	missing := httptest.NewRecorder()
	env.router.ServeHTTP(missing, req)
	assert.Equal(t, http.StatusBadRequest, missing.Code)
}

// =============================================================================
// DEMO / HEALTH
// =============================================================================

func TestSeedDemo_Idempotent(t *testing.T) {
	env := setupTestHandler(t)

	rec := env.do(t, http.MethodPost, "/api/demo/seed", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	first := decode[SeedResponse](t, rec)
	assert.Equal(t, len(demoEmployees), first.Created)

	rec = env.do(t, http.MethodPost, "/api/demo/seed", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, decode[SeedResponse](t, rec).Created)

	rec = env.do(t, http.MethodGet, "/api/clients", nil)
	assert.Equal(t, []string{"Infosys Consulting", "TCS Advisory", "Wipro Partners"}, decode[[]string](t, rec))
}

func TestSeedDemo_CoversProRationRules(t *testing.T) {
	env := setupTestHandler(t)
	created, err := LoadDemoEmployees(context.Background(), env.handler.Store, payroll.FixedClock{At: nov20})
	require.NoError(t, err)

	byName := map[string]payroll.Employee{}
	for _, e := range created {
		byName[e.Name] = e
	}
	today := payroll.DateOf(nov20)

	diya := byName["Diya Patel"]
	assert.Equal(t, "2025-11-11", diya.DateOfJoining.String())
	assert.Equal(t, "30000.00", payroll.ProRatedSalary(diya, today).StringFixed(2))

	ananya := byName["Ananya Iyer"]
	assert.Equal(t, "2025-10-16", ananya.DateOfJoining.String())
	assert.Equal(t, "50000.00", payroll.ProRatedSalary(ananya, today).StringFixed(2))
	assert.Equal(t, "25806.45", payroll.ProRatedSalary(ananya, payroll.NewDate(2025, time.November, 1)).StringFixed(2))
}

func TestHealth(t *testing.T) {
	env := setupTestHandler(t)
	rec := env.do(t, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode[HealthDTO](t, rec).Status)
	assert.NotEmpty(t, rec.Header().Get("Content-Type"))
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}
