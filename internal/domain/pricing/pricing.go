// Package pricing holds the money arithmetic for carts and orders: effective
// prices, line totals and the checkout tax computation. All functions are
// pure; amounts are decimal.Decimal to keep cent-exact results.
package pricing

import "github.com/shopspring/decimal"

// TaxRate is the flat checkout tax applied on top of the cart subtotal.
var TaxRate = decimal.RequireFromString("0.1")

// Line is the minimal view of a cart line the pricing functions need.
type Line struct {
	UnitPrice    decimal.Decimal
	SpecialPrice decimal.Decimal
	Quantity     int
}

// Totals bundles the three derived amounts of a cart or order.
type Totals struct {
	Subtotal decimal.Decimal
	Tax      decimal.Decimal
	Total    decimal.Decimal
}

// Money parses a monetary amount from its string form. Catalog data arrives
// from loosely-typed sources, so anything unparsable (or negative) collapses
// to zero instead of failing.
func Money(v string) decimal.Decimal {
	d, err := decimal.NewFromString(v)
	if err != nil || d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// Effective returns the price a unit actually sells for: the promotional
// special price when one is set (> 0), the catalog unit price otherwise.
func Effective(unit, special decimal.Decimal) decimal.Decimal {
	if special.IsPositive() {
		return special
	}
	if unit.IsNegative() {
		return decimal.Zero
	}
	return unit
}

// Effective returns the selling price of one unit of the line.
func (l Line) Effective() decimal.Decimal {
	return Effective(l.UnitPrice, l.SpecialPrice)
}

// Total returns the line's effective price multiplied by its quantity.
// A non-positive quantity contributes nothing.
func (l Line) Total() decimal.Decimal {
	if l.Quantity <= 0 {
		return decimal.Zero
	}
	return l.Effective().Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Subtotal sums the line totals of the given lines.
func Subtotal(lines []Line) decimal.Decimal {
	sum := decimal.Zero
	for _, l := range lines {
		sum = sum.Add(l.Total())
	}
	return sum
}

// Tax returns the tax due on a subtotal.
func Tax(subtotal decimal.Decimal) decimal.Decimal {
	return subtotal.Mul(TaxRate)
}

// GrandTotal returns the subtotal plus tax.
func GrandTotal(subtotal decimal.Decimal) decimal.Decimal {
	return subtotal.Add(Tax(subtotal))
}

// Compute derives all three amounts for a set of lines in one pass.
// Amounts are kept unrounded; rounding is a display concern.
func Compute(lines []Line) Totals {
	sub := Subtotal(lines)
	return Totals{
		Subtotal: sub,
		Tax:      Tax(sub),
		Total:    GrandTotal(sub),
	}
}
