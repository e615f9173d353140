/*
handlers.go - HTTP API handlers for payroll invoicing

PURPOSE:
  Exposes employee registration, invoice generation and company settings via
  a REST API. Handles HTTP request/response and JSON serialization, and
  delegates all rules to the payroll package.

ENDPOINTS:
  Employees:
    GET    /api/employees                    List (newest first, ?order=client)
    POST   /api/employees                    Register employee
    DELETE /api/employees/{id}               Delete employee
    GET    /api/employees/by-client/{client} Filter by client consultancy
    GET    /api/clients                      Distinct client names

  Invoices:
    GET    /api/invoices                     History, newest first
    POST   /api/invoices                     Generate (frozen totals)
    GET    /api/invoices/{id}                Invoice + recomputed breakdown
    GET    /api/invoices/{id}/pdf            PDF download

  Settings:
    GET    /api/settings                     Get (creates defaults once)
    PUT    /api/settings                     Update name / address
    POST   /api/settings/logo                Multipart logo upload

  Demo:
    POST   /api/demo/seed                    Load demo employees

ARCHITECTURE:
  Handler struct holds all dependencies:
  - Store: persistence (SQLite in production)
  - Assembler: invoice generation, numbering and freezing
  - Renderer: PDF output
  - Clock: "today" for uploads and demo data

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Employee or invoice not found
  - 409: Invoice number conflict after retries
  - 500: Persistence and rendering failures

SECURITY NOTE:
  No authentication. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - seed.go: Demo employees
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gosimple/slug"
	"github.com/rs/zerolog"

	"github.com/warp/payroll-invoicing/payroll"
	"github.com/warp/payroll-invoicing/render"
)

// maxLogoBytes bounds the multipart body of a logo upload.
const maxLogoBytes = 5 << 20

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Renderer turns an invoice document into PDF bytes.
type Renderer interface {
	Render(ctx context.Context, doc render.Document) ([]byte, error)
}

// Options configures a Handler. Zero values fall back to defaults.
type Options struct {
	Defaults       payroll.CompanySettings
	UploadDir      string
	AllowedOrigins []string
	Clock          payroll.Clock
	Logger         *zerolog.Logger
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store     payroll.TxStore
	Assembler *payroll.Assembler
	Renderer  Renderer

	Defaults       payroll.CompanySettings
	UploadDir      string
	AllowedOrigins []string
	Clock          payroll.Clock
	Log            zerolog.Logger
}

// NewHandler creates a new handler with the given store and renderer.
func NewHandler(store payroll.TxStore, renderer Renderer, opts Options) *Handler {
	if opts.Clock == nil {
		opts.Clock = payroll.SystemClock{}
	}
	if opts.UploadDir == "" {
		opts.UploadDir = "uploads"
	}
	if opts.Defaults.CompanyName == "" {
		opts.Defaults.CompanyName = payroll.DefaultCompanyName
	}
	log := zerolog.Nop()
	if opts.Logger != nil {
		log = *opts.Logger
	}

	return &Handler{
		Store:          store,
		Assembler:      payroll.NewAssembler(store, opts.Clock),
		Renderer:       renderer,
		Defaults:       opts.Defaults,
		UploadDir:      opts.UploadDir,
		AllowedOrigins: opts.AllowedOrigins,
		Clock:          opts.Clock,
		Log:            log,
	}
}

// =============================================================================
// EMPLOYEE HANDLERS
// =============================================================================

// ListEmployees returns all employees.
// GET /api/employees?order=client
func (h *Handler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	order := payroll.OrderNewestFirst
	if r.URL.Query().Get("order") == "client" {
		order = payroll.OrderByClientAndName
	}

	employees, err := h.Store.ListEmployees(r.Context(), order)
	if err != nil {
		h.writeDomainError(w, r, "Failed to list employees", err)
		return
	}

	writeJSON(w, http.StatusOK, toEmployeeDTOs(employees))
}

// CreateEmployee registers an employee.
// POST /api/employees
func (h *Handler) CreateEmployee(w http.ResponseWriter, r *http.Request) {
	var req CreateEmployeeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON", err)
		return
	}

	joined, err := payroll.ParseDate(strings.TrimSpace(req.DateOfJoining))
	if err != nil {
		h.writeDomainError(w, r, "Invalid employee", &payroll.ValidationError{Field: "date_of_joining", Message: err.Error()})
		return
	}

	emp, err := payroll.NewEmployee(payroll.EmployeeInput{
		Name:              req.Name,
		SalaryPerAnnum:    req.SalaryPerAnnum,
		ClientConsultancy: req.ClientConsultancy,
		IsNewEmployee:     req.IsNewEmployee,
		DateOfJoining:     joined,
		SalaryDay:         req.SalaryDate,
	})
	if err != nil {
		h.writeDomainError(w, r, "Invalid employee", err)
		return
	}

	if err := h.Store.CreateEmployee(r.Context(), &emp); err != nil {
		h.writeDomainError(w, r, "Failed to create employee", err)
		return
	}

	h.Log.Info().Int64("employee_id", int64(emp.ID)).Str("client", emp.ClientConsultancy).Msg("employee created")
	writeJSON(w, http.StatusCreated, toEmployeeDTO(emp))
}

// DeleteEmployee removes an employee. Existing invoices keep their frozen
// totals.
// DELETE /api/employees/{id}
func (h *Handler) DeleteEmployee(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	if err := h.Store.DeleteEmployee(r.Context(), payroll.EmployeeID(id)); err != nil {
		h.writeDomainError(w, r, "Failed to delete employee", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// EmployeesByClient lists employees of one client consultancy.
// GET /api/employees/by-client/{client}
func (h *Handler) EmployeesByClient(w http.ResponseWriter, r *http.Request) {
	client := chi.URLParam(r, "client")

	employees, err := h.Store.EmployeesByClient(r.Context(), client)
	if err != nil {
		h.writeDomainError(w, r, "Failed to list employees", err)
		return
	}

	writeJSON(w, http.StatusOK, toEmployeeDTOs(employees))
}

// ListClients returns distinct client consultancy names.
// GET /api/clients
func (h *Handler) ListClients(w http.ResponseWriter, r *http.Request) {
	clients, err := h.Store.Clients(r.Context())
	if err != nil {
		h.writeDomainError(w, r, "Failed to list clients", err)
		return
	}
	if clients == nil {
		clients = []string{}
	}

	writeJSON(w, http.StatusOK, clients)
}

// =============================================================================
// INVOICE HANDLERS
// =============================================================================

// ListInvoices returns invoice history, newest first.
// GET /api/invoices
func (h *Handler) ListInvoices(w http.ResponseWriter, r *http.Request) {
	invoices, err := h.Store.ListInvoices(r.Context())
	if err != nil {
		h.writeDomainError(w, r, "Failed to list invoices", err)
		return
	}

	dtos := make([]InvoiceDTO, len(invoices))
	for i, inv := range invoices {
		dtos[i] = toInvoiceDTO(inv)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GenerateInvoice freezes a new invoice for the selected employees.
// POST /api/invoices
func (h *Handler) GenerateInvoice(w http.ResponseWriter, r *http.Request) {
	var req GenerateInvoiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON", err)
		return
	}

	inv, err := h.Assembler.Generate(r.Context(), req.toDomain())
	if err != nil {
		h.writeDomainError(w, r, "Failed to generate invoice", err)
		return
	}

	h.Log.Info().
		Str("invoice_number", inv.Number).
		Int("employees", len(inv.EmployeeIDs)).
		Str("total", inv.TotalMonthlyPayroll.StringFixed(payroll.MoneyPlaces)).
		Msg("invoice generated")
	writeJSON(w, http.StatusCreated, toInvoiceDTO(*inv))
}

// GetInvoice returns the frozen invoice and a breakdown from current
// employee data.
// GET /api/invoices/{id}
func (h *Handler) GetInvoice(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	b, err := h.breakdown(r.Context(), payroll.InvoiceID(id))
	if err != nil {
		h.writeDomainError(w, r, "Failed to load invoice", err)
		return
	}

	writeJSON(w, http.StatusOK, toInvoiceDetailDTO(*b))
}

// DownloadInvoicePDF renders the invoice as a PDF attachment.
// GET /api/invoices/{id}/pdf
func (h *Handler) DownloadInvoicePDF(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	b, err := h.breakdown(ctx, payroll.InvoiceID(id))
	if err != nil {
		h.writeDomainError(w, r, "Failed to load invoice", err)
		return
	}

	settings, err := payroll.GetOrInitSettings(ctx, h.Store, h.Defaults)
	if err != nil {
		h.writeDomainError(w, r, "Failed to load settings", err)
		return
	}

	pdf, err := h.Renderer.Render(ctx, render.Document{Settings: *settings, Breakdown: *b})
	if err != nil {
		h.writeDomainError(w, r, "Failed to render invoice", err)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", b.Invoice.Number+".pdf"))
	w.Header().Set("Content-Length", strconv.Itoa(len(pdf)))
	w.WriteHeader(http.StatusOK)
	w.Write(pdf)
}

func (h *Handler) breakdown(ctx context.Context, id payroll.InvoiceID) (*payroll.Breakdown, error) {
	inv, err := h.Store.GetInvoice(ctx, id)
	if err != nil {
		return nil, &payroll.PersistenceError{Op: "load invoice", Err: err}
	}
	if inv == nil {
		return nil, &payroll.NotFoundError{Kind: "invoice", ID: int64(id)}
	}

	employees, err := h.Store.EmployeesByIDs(ctx, inv.EmployeeIDs)
	if err != nil {
		return nil, &payroll.PersistenceError{Op: "load employees", Err: err}
	}

	b := payroll.NewBreakdown(*inv, employees)
	if !b.Drift().IsZero() {
		h.Log.Debug().Str("invoice_number", inv.Number).Str("drift", b.Drift().String()).Msg("breakdown differs from frozen total")
	}
	return &b, nil
}

// =============================================================================
// SETTINGS HANDLERS
// =============================================================================

// GetSettings returns company settings, creating the defaults on first use.
// GET /api/settings
func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	s, err := payroll.GetOrInitSettings(r.Context(), h.Store, h.Defaults)
	if err != nil {
		h.writeDomainError(w, r, "Failed to load settings", err)
		return
	}

	writeJSON(w, http.StatusOK, toSettingsDTO(*s, h.UploadDir))
}

// UpdateSettings changes company name and/or address.
// PUT /api/settings
func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req UpdateSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON", err)
		return
	}

	s, err := payroll.UpdateSettings(r.Context(), h.Store, h.Defaults, payroll.SettingsUpdate{
		CompanyName:    req.CompanyName,
		CompanyAddress: req.CompanyAddress,
	})
	if err != nil {
		h.writeDomainError(w, r, "Failed to update settings", err)
		return
	}

	writeJSON(w, http.StatusOK, toSettingsDTO(*s, h.UploadDir))
}

// UploadLogo stores an uploaded logo under <upload dir>/logos and records
// its path in settings.
// POST /api/settings/logo (multipart, field "logo")
func (h *Handler) UploadLogo(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxLogoBytes)
	if err := r.ParseMultipartForm(maxLogoBytes); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid upload", err)
		return
	}

	file, header, err := r.FormFile("logo")
	if err != nil {
		h.writeDomainError(w, r, "Invalid upload", &payroll.ValidationError{Field: "logo", Message: "file is required"})
		return
	}
	defer file.Close()

	ext, err := payroll.LogoExtension(header.Filename)
	if err != nil {
		h.writeDomainError(w, r, "Invalid upload", err)
		return
	}

	path, err := h.saveLogo(file, header.Filename, ext)
	if err != nil {
		h.writeDomainError(w, r, "Failed to store logo", err)
		return
	}

	s, err := payroll.UpdateSettings(r.Context(), h.Store, h.Defaults, payroll.SettingsUpdate{LogoPath: &path})
	if err != nil {
		h.writeDomainError(w, r, "Failed to update settings", err)
		return
	}

	h.Log.Info().Str("path", path).Msg("logo uploaded")
	writeJSON(w, http.StatusOK, toSettingsDTO(*s, h.UploadDir))
}

// saveLogo writes src to <upload dir>/logos/<unix>_<slug>.<ext>.
func (h *Handler) saveLogo(src io.Reader, filename, ext string) (string, error) {
	dir := filepath.Join(h.UploadDir, "logos")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create logo directory: %w", err)
	}

	base := slug.Make(strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename)))
	if base == "" {
		base = "logo"
	}
	path := filepath.Join(dir, fmt.Sprintf("%d_%s.%s", h.Clock.Now().Unix(), base, ext))

	dst, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create logo file: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(path)
		return "", fmt.Errorf("write logo file: %w", err)
	}
	if err := dst.Close(); err != nil {
		return "", fmt.Errorf("close logo file: %w", err)
	}
	return path, nil
}

// =============================================================================
// DEMO / HEALTH
// =============================================================================

// SeedDemo loads demo employees. Already present employees are skipped.
// POST /api/demo/seed
func (h *Handler) SeedDemo(w http.ResponseWriter, r *http.Request) {
	created, err := LoadDemoEmployees(r.Context(), h.Store, h.Clock)
	if err != nil {
		h.writeDomainError(w, r, "Failed to seed demo data", err)
		return
	}

	writeJSON(w, http.StatusOK, SeedResponse{Created: len(created), Employees: toEmployeeDTOs(created)})
}

// Health reports liveness, and database reachability when the store can
// be pinged.
// GET /healthz
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if p, ok := h.Store.(interface{ Ping(context.Context) error }); ok {
		if err := p.Ping(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, "Database unavailable", err)
			return
		}
	}
	writeJSON(w, http.StatusOK, HealthDTO{Status: "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps payroll error categories to HTTP status codes.
// Internal failures are logged and their details withheld.
func (h *Handler) writeDomainError(w http.ResponseWriter, r *http.Request, message string, err error) {
	resp := ErrorResponse{Error: message, Details: err.Error()}
	status := statusFor(err)

	var verr *payroll.ValidationError
	if errors.As(err, &verr) {
		resp.Field = verr.Field
	}

	if status == http.StatusInternalServerError {
		h.Log.Error().Err(err).
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("path", r.URL.Path).
			Msg(message)
		resp.Details = ""
	}
	writeJSON(w, status, resp)
}

func statusFor(err error) int {
	switch {
	case payroll.IsClientError(err):
		return http.StatusBadRequest
	case payroll.IsNotFound(err):
		return http.StatusNotFound
	case payroll.IsConflict(err):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func parseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "Invalid id", fmt.Errorf("%q is not a positive integer", raw))
		return 0, false
	}
	return id, true
}
