/*
Package render lays out invoice documents.

PURPOSE:
  Turns a payroll.Breakdown plus company settings into a printable PDF. The
  renderer only formats; every figure comes from the breakdown already
  computed by the payroll package.

LAYOUT (top to bottom):
  - Logo (left, when a png/jpg exists on disk) and INVOICE # / DATE (right)
  - Company name, address lines, contact email and phone
  - TO block, highlighted
  - Employee table: name and details, pro-rated salary, employee PF,
    employer PF, total cost, and a SUB-TOTAL row
  - Miscellaneous cost (only when > 0)
  - Service fee block: base, GST (18%), total (only when > 0)
  - GRAND TOTAL
  - Notes, thank-you line, disclaimer
  - Page numbers

SEE ALSO:
  - payroll/breakdown.go: Figures rendered here
  - api/handlers.go: PDF download endpoint
*/
package render

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/image"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"

	"github.com/warp/payroll-invoicing/payroll"
)

// DefaultCompanyAddress is printed when settings carry no address.
const DefaultCompanyAddress = "Nyanapahalli Main Rd, Maruthi Layout, Royal Shelters, Stage 4, Bommanahalli, Bengaluru, Karnataka 560068"

const (
	thankYouLine   = "Thank you for your business!"
	disclaimerLine = "This is a computer-generated invoice. No signature required."
)

var (
	subtle    = &props.Color{Red: 102, Green: 102, Blue: 102}
	highlight = &props.Color{Red: 240, Green: 240, Blue: 240}
)

// Contact is the sender contact block printed under the company address.
type Contact struct {
	Email string
	Phone string
}

// Document is everything needed to render one invoice.
type Document struct {
	Settings  payroll.CompanySettings
	Breakdown payroll.Breakdown
}

// PDF renders documents with maroto.
type PDF struct {
	Contact Contact
}

// NewPDF creates a PDF renderer.
func NewPDF(contact Contact) *PDF {
	return &PDF{Contact: contact}
}

// Render returns the PDF bytes for doc.
func (p *PDF) Render(ctx context.Context, doc Document) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
		}).
		Build()

	m := maroto.New(cfg)
	b := doc.Breakdown
	inv := b.Invoice

	p.header(m, doc.Settings, inv)
	p.letterhead(m, doc.Settings)
	recipient(m, inv)
	employeeTable(m, b)
	charges(m, b)
	footer(m, inv)

	out, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("generate pdf for %s: %w", inv.Number, err)
	}
	return out.GetBytes(), nil
}

// =============================================================================
// SECTIONS
// =============================================================================

func (p *PDF) header(m core.Maroto, s payroll.CompanySettings, inv payroll.Invoice) {
	details := col.New(6).Add(
		text.New("INVOICE #"+inv.Number, props.Text{Size: 10, Style: fontstyle.Bold, Align: align.Right}),
		text.New("DATE: "+formatInvoiceDate(inv.Date), props.Text{Size: 10, Align: align.Right, Top: 5}),
	)

	if path, ok := logoFile(s.LogoPath); ok {
		m.AddRow(30,
			image.NewFromFileCol(6, path, props.Rect{Center: false, Percent: 90}),
			details,
		)
		return
	}
	m.AddRow(15, col.New(6), details)
}

func (p *PDF) letterhead(m core.Maroto, s payroll.CompanySettings) {
	name := s.CompanyName
	if name == "" {
		name = payroll.DefaultCompanyName
	}
	m.AddRow(7, text.NewCol(12, name, props.Text{Size: 12, Style: fontstyle.Bold}))

	address := s.CompanyAddress
	if strings.TrimSpace(address) == "" {
		address = DefaultCompanyAddress
	}
	for _, l := range strings.Split(address, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			m.AddRow(4.5, text.NewCol(12, l, props.Text{Size: 9}))
		}
	}
	if p.Contact.Email != "" {
		m.AddRow(4.5, text.NewCol(12, "Email: "+p.Contact.Email, props.Text{Size: 9}))
	}
	if p.Contact.Phone != "" {
		m.AddRow(4.5, text.NewCol(12, "Phone: "+p.Contact.Phone, props.Text{Size: 9}))
	}
	m.AddRow(6)
}

func recipient(m core.Maroto, inv payroll.Invoice) {
	m.AddRow(14,
		col.New(12).Add(
			text.New("TO:", props.Text{Size: 12, Style: fontstyle.Bold, Top: 1, Left: 2}),
			text.New(inv.InvoiceTo, props.Text{Size: 11, Top: 7, Left: 2}),
		),
	).WithStyle(&props.Cell{BackgroundColor: highlight})
	m.AddRow(8)
}

func employeeTable(m core.Maroto, b payroll.Breakdown) {
	head := props.Text{Size: 7, Style: fontstyle.Bold, Top: 2}
	headRight := head
	headRight.Align = align.Right

	m.AddRow(8,
		text.NewCol(4, "EMPLOYEE NAME", head),
		text.NewCol(2, "PRO-RATED SALARY", headRight),
		text.NewCol(2, "EMPLOYEE PF", headRight),
		text.NewCol(2, "EMPLOYER PF", headRight),
		text.NewCol(2, "TOTAL COST", headRight),
	)
	m.AddRow(1, line.NewCol(12))

	amount := props.Text{Size: 8, Align: align.Right, Top: 2}
	for _, l := range b.Lines {
		details := employeeDetails(l.Employee)
		name := col.New(4).Add(text.New(l.Employee.Name, props.Text{Size: 8, Style: fontstyle.Bold, Top: 2}))
		for i, d := range details {
			name.Add(text.New(d, props.Text{Size: 6, Color: subtle, Top: 6 + float64(i)*3}))
		}

		m.AddRow(float64(9+3*len(details)),
			name,
			text.NewCol(2, payroll.FormatINR(l.ProRatedSalary), amount),
			text.NewCol(2, payroll.FormatINR(l.EmployeePF), amount),
			text.NewCol(2, payroll.FormatINR(l.EmployerPF), amount),
			text.NewCol(2, payroll.FormatINR(l.TotalCost), amount),
		)
		m.AddRow(1, line.NewCol(12))
	}

	total := props.Text{Size: 7, Style: fontstyle.Bold, Align: align.Right, Top: 2}
	m.AddRow(8,
		text.NewCol(4, "SUB-TOTAL", props.Text{Size: 7, Style: fontstyle.Bold, Top: 2}),
		text.NewCol(2, payroll.FormatINR(b.TotalSalary), total),
		text.NewCol(2, payroll.FormatINR(b.TotalEmployeePF), total),
		text.NewCol(2, payroll.FormatINR(b.TotalEmployerPF), total),
		text.NewCol(2, payroll.FormatINR(b.Subtotal), total),
	)
	m.AddRow(8)
}

func charges(m core.Maroto, b payroll.Breakdown) {
	if b.MiscellaneousCost.IsPositive() {
		m.AddRow(8, text.NewCol(12, "Miscellaneous Cost: "+payroll.FormatINR(b.MiscellaneousCost), props.Text{Size: 11}))
	}

	if b.ServiceFee.Total.IsPositive() {
		right := props.Text{Size: 10, Align: align.Right}
		bold := props.Text{Size: 10, Style: fontstyle.Bold}
		boldRight := props.Text{Size: 10, Style: fontstyle.Bold, Align: align.Right}

		m.AddRow(7, text.NewCol(12, "Service Fee:", props.Text{Size: 11, Style: fontstyle.Bold}))
		m.AddRow(6,
			text.NewCol(9, "Base Service Fee (INR 6,250 per employee)", props.Text{Size: 10}),
			text.NewCol(3, payroll.FormatINR(b.ServiceFee.Base), right),
		)
		m.AddRow(6,
			text.NewCol(9, "GST (18%)", props.Text{Size: 10}),
			text.NewCol(3, payroll.FormatINR(b.ServiceFee.GST), right),
		)
		m.AddRow(1, line.NewCol(12))
		m.AddRow(7,
			text.NewCol(9, "Total Service Fee", bold),
			text.NewCol(3, payroll.FormatINR(b.ServiceFee.Total), boldRight),
		)
	}

	m.AddRow(4)
	m.AddRow(1, line.NewCol(12))
	m.AddRow(10,
		text.NewCol(8, "GRAND TOTAL", props.Text{Size: 12, Style: fontstyle.Bold, Top: 3}),
		text.NewCol(4, payroll.FormatINR(b.GrandTotal), props.Text{Size: 12, Style: fontstyle.Bold, Align: align.Right, Top: 3}),
	)
}

func footer(m core.Maroto, inv payroll.Invoice) {
	m.AddRow(10)
	if notes := strings.TrimSpace(inv.Notes); notes != "" {
		for _, l := range strings.Split(notes, "\n") {
			m.AddRow(4.5, text.NewCol(12, strings.TrimSpace(l), props.Text{Size: 9}))
		}
		m.AddRow(5)
	}

	m.AddRow(8, text.NewCol(12, thankYouLine, props.Text{Size: 12, Style: fontstyle.Bold, Align: align.Center}))
	m.AddRow(6, text.NewCol(12, disclaimerLine, props.Text{
		Size:  9,
		Style: fontstyle.Italic,
		Align: align.Center,
		Color: subtle,
	}))
}

// =============================================================================
// HELPERS
// =============================================================================

// formatInvoiceDate renders d as "02 JANUARY 2006".
func formatInvoiceDate(d payroll.Date) string {
	return strings.ToUpper(d.Time().Format("02 January 2006"))
}

func employeeDetails(e payroll.Employee) []string {
	var out []string
	if e.IsNewEmployee {
		s := "New Employee"
		if e.HasJoiningDate() {
			s += " | Date of Joining: " + e.DateOfJoining.Time().Format("January 02, 2006")
		}
		out = append(out, s)
	}
	if e.SalaryDay > 0 {
		out = append(out, fmt.Sprintf("Salary Date: %s of every month", ordinal(e.SalaryDay)))
	}
	return out
}

func ordinal(n int) string {
	suffix := "th"
	switch n % 100 {
	case 11, 12, 13:
	default:
		switch n % 10 {
		case 1:
			suffix = "st"
		case 2:
			suffix = "nd"
		case 3:
			suffix = "rd"
		}
	}
	return fmt.Sprintf("%d%s", n, suffix)
}

// logoFile reports whether path names an existing raster logo the PDF
// library can embed.
func logoFile(path string) (string, bool) {
	if path == "" {
		return "", false
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png", ".jpg", ".jpeg":
	default:
		return "", false
	}
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return "", false
	}
	return path, true
}
