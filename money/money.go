package money

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// TaxRate is the flat tax applied to every invoice line
var TaxRate = decimal.RequireFromString("0.10")

// Tax returns the tax on amount at the flat rate
func Tax(amount decimal.Decimal) decimal.Decimal {
	return amount.Mul(TaxRate)
}

// Total recomputes an invoice total. Totals are always derived from their
// inputs, never stored independently.
func Total(amount, tax, discount decimal.Decimal) decimal.Decimal {
	return amount.Add(tax).Sub(discount)
}

// Parse converts a decimal string into a non-negative amount
func Parse(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("amount %q must not be negative", s)
	}
	return d, nil
}
