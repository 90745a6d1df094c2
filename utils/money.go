package utils

import (
	"strings"

	"github.com/shopspring/decimal"

	"praxis-billing/billing"
)

// Round2 rounds x to 2 decimal places, half away from zero.
func Round2(x float64) float64 {
	return billing.Round2(x)
}

// FormatAmount renders x the Swiss way: apostrophe thousands separator, two decimals.
func FormatAmount(x float64) string {
	s := decimal.NewFromFloat(Round2(x)).StringFixed(2)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	intPart, frac, _ := strings.Cut(s, ".")
	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte('\'')
		}
		b.WriteRune(r)
	}
	out := b.String() + "." + frac
	if neg {
		return "-" + out
	}
	return out
}
