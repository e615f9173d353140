/*
seed.go - Demo employees for development and demonstrations

PURPOSE:
  Populates the database with a small, realistic roster spread over three
  client consultancies. Joining dates are relative to "today" so that every
  pro-ration rule shows up on a freshly generated invoice:
    - no joining date        full month
    - joined years ago       full month
    - new, joined this month pro-rated from the 11th
    - new, joined last month snaps back to the joining month on the 1st

USAGE:
  POST /api/demo/seed
  invoicer seed

NOTE:
  Seeding is additive and idempotent: an employee with the same name and
  client is never created twice. Nothing is deleted.

SEE ALSO:
  - handlers.go: SeedDemo handler
  - cmd/server/main.go: seed command
*/
package api

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/payroll-invoicing/payroll"
)

type demoEmployee struct {
	name      string
	client    string
	annual    int64
	isNew     bool
	salaryDay int
	joined    func(today payroll.Date) payroll.Date
}

func noJoiningDate(payroll.Date) payroll.Date { return payroll.Date{} }

func fixedJoiningDate(year int, month time.Month, day int) func(payroll.Date) payroll.Date {
	return func(payroll.Date) payroll.Date { return payroll.NewDate(year, month, day) }
}

// thisMonthOn returns day-of-month in today's month.
func thisMonthOn(day int) func(payroll.Date) payroll.Date {
	return func(today payroll.Date) payroll.Date {
		return payroll.NewDate(today.Year(), today.Month(), day)
	}
}

// lastMonthOn returns day-of-month in the month before today's.
func lastMonthOn(day int) func(payroll.Date) payroll.Date {
	return func(today payroll.Date) payroll.Date {
		prev := payroll.StartOfMonth(today.Year(), today.Month()).AddDays(-1)
		return payroll.NewDate(prev.Year(), prev.Month(), day)
	}
}

var demoEmployees = []demoEmployee{
	{name: "Aarav Sharma", client: "Infosys Consulting", annual: 720000, joined: fixedJoiningDate(2023, time.April, 3)},
	{name: "Diya Patel", client: "Infosys Consulting", annual: 540000, isNew: true, joined: thisMonthOn(11)},
	{name: "Kabir Mehta", client: "Wipro Partners", annual: 960000, joined: noJoiningDate},
	{name: "Ananya Iyer", client: "Wipro Partners", annual: 600000, isNew: true, salaryDay: 1, joined: lastMonthOn(16)},
	{name: "Rohan Gupta", client: "TCS Advisory", annual: 480000, salaryDay: 5, joined: fixedJoiningDate(2024, time.January, 15)},
}

// LoadDemoEmployees creates the demo roster in one transaction and returns
// the employees it created.
func LoadDemoEmployees(ctx context.Context, store payroll.TxStore, clock payroll.Clock) ([]payroll.Employee, error) {
	if clock == nil {
		clock = payroll.SystemClock{}
	}
	today := payroll.DateOf(clock.Now())

	var created []payroll.Employee
	err := store.WithTx(ctx, func(s payroll.Store) error {
		created = nil
		existing := make(map[string]map[string]bool)

		for _, d := range demoEmployees {
			names, ok := existing[d.client]
			if !ok {
				current, err := s.EmployeesByClient(ctx, d.client)
				if err != nil {
					return &payroll.PersistenceError{Op: "load employees", Err: err}
				}
				names = make(map[string]bool, len(current))
				for _, e := range current {
					names[e.Name] = true
				}
				existing[d.client] = names
			}
			if names[d.name] {
				continue
			}

			emp, err := payroll.NewEmployee(payroll.EmployeeInput{
				Name:              d.name,
				SalaryPerAnnum:    decimal.NewFromInt(d.annual),
				ClientConsultancy: d.client,
				IsNewEmployee:     d.isNew,
				DateOfJoining:     d.joined(today),
				SalaryDay:         d.salaryDay,
			})
			if err != nil {
				return err
			}
			if err := s.CreateEmployee(ctx, &emp); err != nil {
				return &payroll.PersistenceError{Op: "create employee", Err: err}
			}
			names[d.name] = true
			created = append(created, emp)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}
