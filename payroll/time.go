package payroll

import (
	"fmt"
	"time"
)

// =============================================================================
// DATE - Calendar day without a time component
// =============================================================================

// DateLayout is the wire and storage format for dates.
const DateLayout = "2006-01-02"

// Date is a calendar day normalised to midnight UTC.
// The zero value means "no date".
type Date struct {
	t time.Time
}

// Constructors
func NewDate(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf takes the calendar day of t in t's own location.
func DateOf(t time.Time) Date {
	if t.IsZero() {
		return Date{}
	}
	return NewDate(t.Year(), t.Month(), t.Day())
}

// ParseDate parses YYYY-MM-DD. An empty string yields the zero Date.
func ParseDate(s string) (Date, error) {
	if s == "" {
		return Date{}, nil
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q (use YYYY-MM-DD): %w", s, err)
	}
	return DateOf(t), nil
}

// Comparison
func (d Date) Before(other Date) bool        { return d.t.Before(other.t) }
func (d Date) After(other Date) bool         { return d.t.After(other.t) }
func (d Date) Equal(other Date) bool         { return d.t.Equal(other.t) }
func (d Date) BeforeOrEqual(other Date) bool { return !d.After(other) }

// SameMonth reports whether both dates fall in the same year and month.
func (d Date) SameMonth(other Date) bool {
	return d.Year() == other.Year() && d.Month() == other.Month()
}

// MonthBefore reports whether d's year/month is strictly before other's.
func (d Date) MonthBefore(other Date) bool {
	if d.Year() != other.Year() {
		return d.Year() < other.Year()
	}
	return d.Month() < other.Month()
}

// Properties
func (d Date) Year() int          { return d.t.Year() }
func (d Date) Month() time.Month  { return d.t.Month() }
func (d Date) Day() int           { return d.t.Day() }
func (d Date) IsZero() bool       { return d.t.IsZero() }
func (d Date) Time() time.Time    { return d.t }
func (d Date) AddDays(n int) Date { return Date{t: d.t.AddDate(0, 0, n)} }

// DaysInMonth returns the number of days in d's month.
func (d Date) DaysInMonth() int {
	return StartOfMonth(d.Year(), d.Month()).StartOfNextMonth().AddDays(-1).Day()
}

// StartOfNextMonth returns the first day of the month after d.
func (d Date) StartOfNextMonth() Date {
	return Date{t: time.Date(d.Year(), d.Month()+1, 1, 0, 0, 0, 0, time.UTC)}
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.t.Format(DateLayout)
}

// Compact formats d as YYYYMMDD, the form used inside invoice numbers.
func (d Date) Compact() string { return d.t.Format("20060102") }

func StartOfMonth(year int, month time.Month) Date { return NewDate(year, month, 1) }

// =============================================================================
// CLOCK
// =============================================================================

// Clock supplies the current time. Invoice dates and numbers depend on it.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock in local time.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// FixedClock always returns the same instant. Used by tests and offline tools.
type FixedClock struct {
	At time.Time
}

func (c FixedClock) Now() time.Time { return c.At }
