package billing

import (
	"math"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Line is one invoice position as entered on the consultation form.
// Nil pointers mean "not filled in yet".
type Line struct {
	Quantity  *float64 `json:"quantity"`
	UnitPrice *float64 `json:"unit_price"`
	// BasePrice is the catalog price of the referenced tariff position.
	BasePrice       *float64 `json:"base_price,omitempty"`
	DiscountPercent float64  `json:"discount_percent,omitempty"`
}

// ComputeInvoiceTotal sums quantity × unit price over all lines.
// It never fails: missing or malformed values fall back to safe defaults and the
// result is never negative. The sum is not rounded.
func ComputeInvoiceTotal(lines []Line) float64 {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(lineTotal(l))
	}
	return total.InexactFloat64()
}

// LineTotal returns the quantity × unit price term of a single line.
func LineTotal(l Line) float64 {
	return lineTotal(l).InexactFloat64()
}

// ResolveUnitPrice picks the explicit unit price when it is finite, else the
// catalog base price when it is positive, else 0.
func ResolveUnitPrice(l Line) float64 {
	if l.UnitPrice != nil && isFinite(*l.UnitPrice) {
		return math.Max(0, *l.UnitPrice)
	}
	if l.BasePrice != nil && isFinite(*l.BasePrice) && *l.BasePrice > 0 {
		return *l.BasePrice
	}
	return 0
}

// ResolveQuantity returns the quantity when it is finite and positive, else 1.
func ResolveQuantity(l Line) float64 {
	if l.Quantity != nil && isFinite(*l.Quantity) && *l.Quantity > 0 {
		return *l.Quantity
	}
	return 1
}

// ApplyDiscount reduces price by percent (clamped to 0..100).
// Callers apply it to the unit price before totaling.
func ApplyDiscount(price, percent float64) float64 {
	if !isFinite(price) || price <= 0 {
		return 0
	}
	p := clampPercent(percent)
	if p == 0 {
		return price
	}
	factor := hundred.Sub(decimal.NewFromFloat(p)).Div(hundred)
	return decimal.NewFromFloat(price).Mul(factor).InexactFloat64()
}

func lineTotal(l Line) decimal.Decimal {
	return decimal.NewFromFloat(ResolveQuantity(l)).Mul(decimal.NewFromFloat(ResolveUnitPrice(l)))
}

func isFinite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}

func clampPercent(p float64) float64 {
	if !isFinite(p) || p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

// Round2 rounds half away from zero to two decimals in decimal arithmetic.
func Round2(x float64) float64 {
	if !isFinite(x) {
		return 0
	}
	return decimal.NewFromFloat(x).Round(2).InexactFloat64()
}
