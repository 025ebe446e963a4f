package money

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// ParseRate reads a tax rate expressed as a fraction, e.g. "0.18".
func ParseRate(s string) (decimal.Decimal, error) {
	r, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("money: parse rate %q: %w", s, err)
	}
	if r.IsNegative() {
		return decimal.Zero, fmt.Errorf("money: rate %s is negative", r)
	}
	return r, nil
}

// Tolerance is the installment conservation tolerance: sums must agree within
// strictly less than one cent.
var Tolerance = Cent

// WithinTolerance reports |a - b| < Tolerance.
func WithinTolerance(a, b Money) bool {
	return a.Sub(b).Abs().LessThan(Tolerance)
}
