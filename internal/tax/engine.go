// Package tax decomposes and composes tax-inclusive and tax-exclusive
// amounts under a single flat rate using truncation arithmetic.
package tax

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/renattofarid/fertiriego/internal/money"
	"github.com/renattofarid/fertiriego/internal/shared"
)

// Breakdown is the (subtotal, tax, total) triple of an amount.
// Total always equals Subtotal + Tax exactly.
type Breakdown struct {
	Subtotal money.Money `json:"subtotal"`
	Tax      money.Money `json:"tax"`
	Total    money.Money `json:"total"`
}

// Compose applies rate on top of a tax-exclusive subtotal.
func Compose(subtotal money.Money, rate decimal.Decimal) (Breakdown, error) {
	if err := check(subtotal, rate); err != nil {
		return Breakdown{}, err
	}
	tax := subtotal.MulTruncate(rate)
	return Breakdown{Subtotal: subtotal, Tax: tax, Total: subtotal.Add(tax)}, nil
}

// Decompose splits a tax-inclusive total. Tax is the difference between the
// total and the truncated subtotal, never truncated on its own.
func Decompose(total money.Money, rate decimal.Decimal) (Breakdown, error) {
	if err := check(total, rate); err != nil {
		return Breakdown{}, err
	}
	subtotal, err := total.DivTruncate(decimal.NewFromInt(1).Add(rate))
	if err != nil {
		return Breakdown{}, fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err)
	}
	return Breakdown{Subtotal: subtotal, Tax: total.Sub(subtotal), Total: total}, nil
}

func check(amount money.Money, rate decimal.Decimal) error {
	if rate.IsNegative() {
		return fmt.Errorf("%w: tax rate %s is negative", shared.ErrInvalidArgument, rate)
	}
	if amount.IsNegative() {
		return fmt.Errorf("%w: amount %s is negative", shared.ErrInvalidArgument, amount)
	}
	return nil
}
