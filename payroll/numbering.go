package payroll

import (
	"context"
	"fmt"
)

// MaxNumberAttempts bounds the sequential probe for a free invoice number.
const MaxNumberAttempts = 1000

// NumberGenerator produces invoice numbers of the form INV-YYYYMMDD-NNN.
//
// The counter starts at (invoices created today + 1) and walks forward until
// a number is free. After MaxNumberAttempts collisions it falls back to an
// HHMMSS suffix, which can still collide; the store's unique constraint
// catches that case.
type NumberGenerator struct {
	Lookup NumberLookup
	Clock  Clock
}

// NewNumberGenerator returns a generator over lookup using clock.
func NewNumberGenerator(lookup NumberLookup, clock Clock) *NumberGenerator {
	if clock == nil {
		clock = SystemClock{}
	}
	return &NumberGenerator{Lookup: lookup, Clock: clock}
}

// Next returns a number that did not exist at probe time.
func (g *NumberGenerator) Next(ctx context.Context) (string, error) {
	now := g.Clock.Now()
	today := DateOf(now)

	count, err := g.Lookup.CountInvoicesCreatedOn(ctx, today)
	if err != nil {
		return "", fmt.Errorf("failed to count invoices for %s: %w", today, err)
	}

	for attempt := 0; attempt < MaxNumberAttempts; attempt++ {
		candidate := FormatInvoiceNumber(today, count+attempt+1)
		exists, err := g.Lookup.InvoiceNumberExists(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("failed to probe invoice number %s: %w", candidate, err)
		}
		if !exists {
			return candidate, nil
		}
	}

	return fmt.Sprintf("INV-%s-%s", today.Compact(), now.Format("150405")), nil
}

// FormatInvoiceNumber formats the sequential form of an invoice number.
func FormatInvoiceNumber(day Date, seq int) string {
	return fmt.Sprintf("INV-%s-%03d", day.Compact(), seq)
}
