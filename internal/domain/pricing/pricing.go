// Package pricing derives order summaries from cart prices.
package pricing

import (
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// DefaultTaxRate is the VAT applied to every order.
var DefaultTaxRate = decimal.RequireFromString("0.15")

// ErrInvalidTaxRate is returned by NewCalculator for a rate outside [0, 1].
var ErrInvalidTaxRate = errors.New("tax rate must be between 0 and 1")

// Summary is the subtotal, tax and total of a set of line items. It is
// recomputed on demand and never stored.
type Summary struct {
	Subtotal decimal.Decimal
	Tax      decimal.Decimal
	Total    decimal.Decimal
}

// Calculator computes summaries at a fixed tax rate.
type Calculator struct {
	rate decimal.Decimal
}

// NewCalculator returns a Calculator applying rate.
func NewCalculator(rate decimal.Decimal) (*Calculator, error) {
	if rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(1)) {
		return nil, ErrInvalidTaxRate
	}
	return &Calculator{rate: rate}, nil
}

// Rate returns the tax rate.
func (c *Calculator) Rate() decimal.Decimal { return c.rate }

// Summarize sums prices and applies tax. Tax is rounded to 2 decimal places
// and the total is subtotal plus rounded tax, so Subtotal+Tax == Total holds
// exactly.
func (c *Calculator) Summarize(prices ...decimal.Decimal) Summary {
	subtotal := decimal.Zero
	for _, p := range prices {
		subtotal = subtotal.Add(p)
	}
	subtotal = subtotal.Round(2)
	tax := subtotal.Mul(c.rate).Round(2)
	return Summary{
		Subtotal: subtotal,
		Tax:      tax,
		Total:    subtotal.Add(tax),
	}
}

// Summarize applies DefaultTaxRate.
func Summarize(prices ...decimal.Decimal) Summary {
	return (&Calculator{rate: DefaultTaxRate}).Summarize(prices...)
}
