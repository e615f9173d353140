/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication, decoupled from the
  payroll domain types.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

FORMATS:
  Money: decimal strings (shopspring/decimal JSON encoding). Requests accept
         either "1234.50" or 1234.50.
  Dates: "YYYY-MM-DD"
  Times: RFC3339

VALIDATION:
  Validation is done in the payroll package, not in DTOs. DTOs are pure data
  carriers.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/payroll-invoicing/payroll"
)

// =============================================================================
// EMPLOYEES
// =============================================================================

// EmployeeDTO represents an employee in API responses.
type EmployeeDTO struct {
	ID                int64           `json:"id"`
	Name              string          `json:"name"`
	SalaryPerAnnum    decimal.Decimal `json:"salary_per_annum"`
	SalaryPerMonth    decimal.Decimal `json:"salary_per_month"`
	ClientConsultancy string          `json:"client_consultancy"`
	IsNewEmployee     bool            `json:"is_new_employee"`
	DateOfJoining     string          `json:"date_of_joining,omitempty"`
	SalaryDate        int             `json:"salary_date"`
	CreatedAt         string          `json:"created_at,omitempty"`
}

// CreateEmployeeRequest is the request to register an employee.
type CreateEmployeeRequest struct {
	Name              string          `json:"name"`
	SalaryPerAnnum    decimal.Decimal `json:"salary_per_annum"`
	ClientConsultancy string          `json:"client_consultancy"`
	IsNewEmployee     bool            `json:"is_new_employee"`
	DateOfJoining     string          `json:"date_of_joining,omitempty"`
	SalaryDate        int             `json:"salary_date,omitempty"`
}

func toEmployeeDTO(e payroll.Employee) EmployeeDTO {
	return EmployeeDTO{
		ID:                int64(e.ID),
		Name:              e.Name,
		SalaryPerAnnum:    e.SalaryPerAnnum,
		SalaryPerMonth:    e.SalaryPerMonth,
		ClientConsultancy: e.ClientConsultancy,
		IsNewEmployee:     e.IsNewEmployee,
		DateOfJoining:     e.DateOfJoining.String(),
		SalaryDate:        e.SalaryDay,
		CreatedAt:         formatTime(e.CreatedAt),
	}
}

func toEmployeeDTOs(employees []payroll.Employee) []EmployeeDTO {
	dtos := make([]EmployeeDTO, len(employees))
	for i, e := range employees {
		dtos[i] = toEmployeeDTO(e)
	}
	return dtos
}

// =============================================================================
// INVOICES
// =============================================================================

// InvoiceDTO is a frozen invoice header.
type InvoiceDTO struct {
	ID                  int64           `json:"id"`
	InvoiceNumber       string          `json:"invoice_number"`
	InvoiceDate         string          `json:"invoice_date"`
	InvoiceTo           string          `json:"invoice_to"`
	ClientConsultancy   string          `json:"client_consultancy"`
	EmployeeIDs         []int64         `json:"employee_ids"`
	TotalMonthlyPayroll decimal.Decimal `json:"total_monthly_payroll"`
	TotalAnnualPayroll  decimal.Decimal `json:"total_annual_payroll"`
	MiscellaneousCost   decimal.Decimal `json:"miscellaneous_cost"`
	ServiceFee          decimal.Decimal `json:"service_fee"`
	Notes               string          `json:"notes"`
	CreatedAt           string          `json:"created_at,omitempty"`
}

// GenerateInvoiceRequest is the request to generate an invoice.
type GenerateInvoiceRequest struct {
	ClientConsultancy string          `json:"client_consultancy"`
	InvoiceTo         string          `json:"invoice_to"`
	EmployeeIDs       []int64         `json:"employee_ids"`
	IncludeServiceFee bool            `json:"include_service_fee"`
	MiscellaneousCost decimal.Decimal `json:"miscellaneous_cost"`
	Notes             string          `json:"notes"`
}

func (r GenerateInvoiceRequest) toDomain() payroll.GenerateRequest {
	ids := make([]payroll.EmployeeID, len(r.EmployeeIDs))
	for i, id := range r.EmployeeIDs {
		ids[i] = payroll.EmployeeID(id)
	}
	return payroll.GenerateRequest{
		ClientConsultancy: r.ClientConsultancy,
		InvoiceTo:         r.InvoiceTo,
		EmployeeIDs:       ids,
		IncludeServiceFee: r.IncludeServiceFee,
		MiscellaneousCost: r.MiscellaneousCost,
		Notes:             r.Notes,
	}
}

func toInvoiceDTO(inv payroll.Invoice) InvoiceDTO {
	ids := make([]int64, len(inv.EmployeeIDs))
	for i, id := range inv.EmployeeIDs {
		ids[i] = int64(id)
	}
	return InvoiceDTO{
		ID:                  int64(inv.ID),
		InvoiceNumber:       inv.Number,
		InvoiceDate:         inv.Date.String(),
		InvoiceTo:           inv.InvoiceTo,
		ClientConsultancy:   inv.ClientConsultancy,
		EmployeeIDs:         ids,
		TotalMonthlyPayroll: inv.TotalMonthlyPayroll,
		TotalAnnualPayroll:  inv.TotalAnnualPayroll,
		MiscellaneousCost:   inv.MiscellaneousCost,
		ServiceFee:          inv.ServiceFee,
		Notes:               inv.Notes,
		CreatedAt:           formatTime(inv.CreatedAt),
	}
}

// InvoiceLineDTO is one employee row of an invoice breakdown.
type InvoiceLineDTO struct {
	Employee       EmployeeDTO     `json:"employee"`
	ProRatedSalary decimal.Decimal `json:"pro_rated_salary"`
	EmployeePF     decimal.Decimal `json:"employee_pf"`
	EmployerPF     decimal.Decimal `json:"employer_pf"`
	TotalCost      decimal.Decimal `json:"total_cost"`
}

// ServiceFeeDTO is the base/GST split of a service fee.
type ServiceFeeDTO struct {
	Base  decimal.Decimal `json:"base"`
	GST   decimal.Decimal `json:"gst"`
	Total decimal.Decimal `json:"total"`
}

// InvoiceDetailDTO is the frozen invoice plus its recomputed breakdown.
// Drift is non-zero when employee data changed after invoicing.
type InvoiceDetailDTO struct {
	Invoice           InvoiceDTO       `json:"invoice"`
	Lines             []InvoiceLineDTO `json:"lines"`
	TotalSalary       decimal.Decimal  `json:"total_salary"`
	TotalEmployeePF   decimal.Decimal  `json:"total_employee_pf"`
	TotalEmployerPF   decimal.Decimal  `json:"total_employer_pf"`
	Subtotal          decimal.Decimal  `json:"subtotal"`
	MiscellaneousCost decimal.Decimal  `json:"miscellaneous_cost"`
	ServiceFee        ServiceFeeDTO    `json:"service_fee"`
	GrandTotal        decimal.Decimal  `json:"grand_total"`
	Drift             decimal.Decimal  `json:"drift"`
}

func toInvoiceDetailDTO(b payroll.Breakdown) InvoiceDetailDTO {
	lines := make([]InvoiceLineDTO, len(b.Lines))
	for i, l := range b.Lines {
		lines[i] = InvoiceLineDTO{
			Employee:       toEmployeeDTO(l.Employee),
			ProRatedSalary: l.ProRatedSalary,
			EmployeePF:     l.EmployeePF,
			EmployerPF:     l.EmployerPF,
			TotalCost:      l.TotalCost,
		}
	}
	return InvoiceDetailDTO{
		Invoice:           toInvoiceDTO(b.Invoice),
		Lines:             lines,
		TotalSalary:       b.TotalSalary,
		TotalEmployeePF:   b.TotalEmployeePF,
		TotalEmployerPF:   b.TotalEmployerPF,
		Subtotal:          b.Subtotal,
		MiscellaneousCost: b.MiscellaneousCost,
		ServiceFee: ServiceFeeDTO{
			Base:  b.ServiceFee.Base,
			GST:   b.ServiceFee.GST,
			Total: b.ServiceFee.Total,
		},
		GrandTotal: b.GrandTotal,
		Drift:      b.Drift(),
	}
}

// =============================================================================
// SETTINGS
// =============================================================================

// SettingsDTO represents the company settings.
type SettingsDTO struct {
	CompanyName    string `json:"company_name"`
	CompanyAddress string `json:"company_address"`
	LogoPath       string `json:"logo_path,omitempty"`
	LogoURL        string `json:"logo_url,omitempty"`
	UpdatedAt      string `json:"updated_at,omitempty"`
}

// UpdateSettingsRequest changes name and/or address. Omitted fields are kept.
type UpdateSettingsRequest struct {
	CompanyName    *string `json:"company_name,omitempty"`
	CompanyAddress *string `json:"company_address,omitempty"`
}

func toSettingsDTO(s payroll.CompanySettings, uploadDir string) SettingsDTO {
	dto := SettingsDTO{
		CompanyName:    s.CompanyName,
		CompanyAddress: s.CompanyAddress,
		LogoPath:       s.LogoPath,
		UpdatedAt:      formatTime(s.UpdatedAt),
	}
	if s.HasLogo() {
		if rel, err := filepath.Rel(uploadDir, s.LogoPath); err == nil {
			dto.LogoURL = "/uploads/" + filepath.ToSlash(rel)
		}
	}
	return dto
}

// =============================================================================
// MISC
// =============================================================================

// SeedResponse reports the demo employees created.
type SeedResponse struct {
	Created   int           `json:"created"`
	Employees []EmployeeDTO `json:"employees"`
}

// HealthDTO is the liveness response.
type HealthDTO struct {
	Status string `json:"status"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Field   string `json:"field,omitempty"`
	Details string `json:"details,omitempty"`
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}
