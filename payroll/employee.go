package payroll

import (
	"strings"

	"github.com/shopspring/decimal"
)

var monthsPerYear = decimal.NewFromInt(12)

// EmployeeInput is the raw data for registering an employee.
type EmployeeInput struct {
	Name              string
	SalaryPerAnnum    decimal.Decimal
	ClientConsultancy string
	IsNewEmployee     bool
	DateOfJoining     Date
	SalaryDay         int // 0 means DefaultSalaryDay
}

// NewEmployee validates in and derives the monthly salary.
// The monthly figure is annual/12 rounded to currency precision, matching a
// two-place money column.
func NewEmployee(in EmployeeInput) (Employee, error) {
	name := strings.TrimSpace(in.Name)
	client := strings.TrimSpace(in.ClientConsultancy)

	if name == "" {
		return Employee{}, invalid("name", "is required")
	}
	if client == "" {
		return Employee{}, invalid("client_consultancy", "is required")
	}
	if !in.SalaryPerAnnum.IsPositive() {
		return Employee{}, invalid("salary_per_annum", "must be greater than zero")
	}

	salaryDay := in.SalaryDay
	if salaryDay == 0 {
		salaryDay = DefaultSalaryDay
	}
	if salaryDay < 1 || salaryDay > 31 {
		return Employee{}, invalid("salary_date", "must be a day of month between 1 and 31")
	}

	return Employee{
		Name:              name,
		SalaryPerAnnum:    in.SalaryPerAnnum,
		SalaryPerMonth:    in.SalaryPerAnnum.DivRound(monthsPerYear, MoneyPlaces),
		ClientConsultancy: client,
		IsNewEmployee:     in.IsNewEmployee,
		DateOfJoining:     in.DateOfJoining,
		SalaryDay:         salaryDay,
	}, nil
}
