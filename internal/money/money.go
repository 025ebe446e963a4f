// Package money implements the two-decimal monetary value used by every
// commercial document. Values are always truncated toward zero, never rounded.
package money

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// Scale is the number of fractional digits carried by Money.
const Scale int32 = 2

// Money is a decimal amount with exactly two fractional digits.
type Money struct {
	d decimal.Decimal
}

// Zero is the zero amount.
var Zero = Money{}

// Cent is the smallest representable amount.
var Cent = Money{d: decimal.New(1, -Scale)}

// New truncates d to two decimals.
func New(d decimal.Decimal) Money {
	return Money{d: d.Truncate(Scale)}
}

// FromCents builds a Money from an integer amount of cents.
func FromCents(cents int64) Money {
	return Money{d: decimal.New(cents, -Scale)}
}

// Parse reads a decimal string such as "129.80".
func Parse(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Zero, fmt.Errorf("money: parse %q: %w", s, err)
	}
	return New(d), nil
}

// ParseExact is Parse for client input: it refuses more than two decimals
// instead of truncating them.
func ParseExact(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Zero, fmt.Errorf("money: parse %q: %w", s, err)
	}
	if !d.Equal(d.Truncate(Scale)) {
		return Zero, fmt.Errorf("money: %q has more than %d decimals", s, Scale)
	}
	return Money{d: d.Truncate(Scale)}, nil
}

// MustParse is Parse for constants and tests.
func MustParse(s string) Money {
	m, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return m
}

// Sum adds amounts. Sums of two-decimal values never need truncation.
func Sum(values ...Money) Money {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v.d)
	}
	return Money{d: total}
}

// Decimal exposes the underlying value.
func (m Money) Decimal() decimal.Decimal { return m.d }

// Add returns m + o.
func (m Money) Add(o Money) Money { return Money{d: m.d.Add(o.d)} }

// Sub returns m - o.
func (m Money) Sub(o Money) Money { return Money{d: m.d.Sub(o.d)} }

// MulTruncate returns truncate2(m * factor).
func (m Money) MulTruncate(factor decimal.Decimal) Money {
	return New(m.d.Mul(factor))
}

// DivTruncate returns truncate2(m / divisor). The quotient is computed with
// an exact remainder so no intermediate rounding can push it up a cent.
func (m Money) DivTruncate(divisor decimal.Decimal) (Money, error) {
	if divisor.IsZero() {
		return Zero, fmt.Errorf("money: division by zero")
	}
	q, _ := m.d.QuoRem(divisor, Scale)
	return Money{d: q}, nil
}

// Cmp compares m and o.
func (m Money) Cmp(o Money) int { return m.d.Cmp(o.d) }

// Equal reports m == o.
func (m Money) Equal(o Money) bool { return m.d.Equal(o.d) }

// GreaterThan reports m > o.
func (m Money) GreaterThan(o Money) bool { return m.d.GreaterThan(o.d) }

// LessThan reports m < o.
func (m Money) LessThan(o Money) bool { return m.d.LessThan(o.d) }

func (m Money) IsZero() bool     { return m.d.IsZero() }
func (m Money) IsNegative() bool { return m.d.IsNegative() }
func (m Money) IsPositive() bool { return m.d.IsPositive() }

// Abs returns |m|.
func (m Money) Abs() Money { return Money{d: m.d.Abs()} }

// Cents returns the amount in minor units.
func (m Money) Cents() int64 { return m.d.Shift(Scale).IntPart() }

// String renders the amount with exactly two decimals.
func (m Money) String() string { return m.d.StringFixed(Scale) }

// MarshalJSON encodes the amount as a quoted decimal string.
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

// UnmarshalJSON accepts a quoted or bare number and truncates it.
func (m *Money) UnmarshalJSON(data []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(data); err != nil {
		return fmt.Errorf("money: %w", err)
	}
	*m = New(d)
	return nil
}

// Scan implements sql.Scanner for NUMERIC columns.
func (m *Money) Scan(src any) error {
	var d decimal.Decimal
	if err := d.Scan(src); err != nil {
		return fmt.Errorf("money: scan: %w", err)
	}
	*m = New(d)
	return nil
}

// Value implements driver.Valuer.
func (m Money) Value() (driver.Value, error) {
	return m.String(), nil
}
