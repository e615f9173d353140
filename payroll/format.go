package payroll

import (
	"strings"

	"github.com/shopspring/decimal"
)

// FormatINR renders an amount as "INR 1,234,567.89".
// Grouping is by thousands on the exact decimal string; no float conversion.
func FormatINR(amount decimal.Decimal) string {
	s := amount.StringFixed(MoneyPlaces)

	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}

	intPart, frac, _ := strings.Cut(s, ".")

	var b strings.Builder
	lead := len(intPart) % 3
	if lead > 0 {
		b.WriteString(intPart[:lead])
	}
	for i := lead; i < len(intPart); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(intPart[i : i+3])
	}

	return "INR " + sign + b.String() + "." + frac
}
