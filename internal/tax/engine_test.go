package tax

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/renattofarid/fertiriego/internal/money"
	"github.com/renattofarid/fertiriego/internal/shared"
)

var igv = decimal.RequireFromString("0.18")

func TestComposeExclusiveAmount(t *testing.T) {
	b, err := Compose(money.MustParse("110.00"), igv)
	require.NoError(t, err)
	assert.Equal(t, "110.00", b.Subtotal.String())
	assert.Equal(t, "19.80", b.Tax.String())
	assert.Equal(t, "129.80", b.Total.String())
}

func TestDecomposeInclusiveAmount(t *testing.T) {
	b, err := Decompose(money.MustParse("110.00"), igv)
	require.NoError(t, err)
	assert.Equal(t, "93.22", b.Subtotal.String())
	assert.Equal(t, "16.78", b.Tax.String())
	assert.Equal(t, "110.00", b.Total.String())
}

func TestDecomposeKeepsTotalExact(t *testing.T) {
	for cents := int64(0); cents <= 5000; cents += 7 {
		total := money.FromCents(cents)
		b, err := Decompose(total, igv)
		require.NoError(t, err)
		require.True(t, b.Subtotal.Add(b.Tax).Equal(total), "total %s", total)
		require.False(t, b.Tax.IsNegative(), "total %s", total)
	}
}

func TestComposeDecomposeRoundTrip(t *testing.T) {
	for cents := int64(0); cents <= 20000; cents += 13 {
		subtotal := money.FromCents(cents)
		composed, err := Compose(subtotal, igv)
		require.NoError(t, err)
		back, err := Decompose(composed.Total, igv)
		require.NoError(t, err)

		exactTax := subtotal.Decimal().Mul(igv).Equal(composed.Tax.Decimal())
		if exactTax {
			require.True(t, back.Subtotal.Equal(subtotal), "subtotal %s", subtotal)
			continue
		}
		// Truncated tax loses under a cent, so the recovered subtotal is the
		// original or one cent below it. The round trip is exact only when the
		// composed tax was.
		diff := subtotal.Sub(back.Subtotal)
		require.True(t, diff.IsZero() || diff.Equal(money.Cent), "subtotal %s got %s", subtotal, back.Subtotal)
	}
}

func TestRoundTripLosesTruncatedCent(t *testing.T) {
	composed, err := Compose(money.MustParse("0.01"), igv)
	require.NoError(t, err)
	assert.Equal(t, "0.00", composed.Tax.String())
	assert.Equal(t, "0.01", composed.Total.String())

	back, err := Decompose(composed.Total, igv)
	require.NoError(t, err)
	assert.Equal(t, "0.00", back.Subtotal.String())
	assert.Equal(t, "0.01", back.Tax.String())
}

func TestRejectsNegativeInput(t *testing.T) {
	_, err := Compose(money.MustParse("-1.00"), igv)
	require.True(t, errors.Is(err, shared.ErrInvalidArgument))

	_, err = Decompose(money.MustParse("1.00"), decimal.RequireFromString("-0.01"))
	require.True(t, errors.Is(err, shared.ErrInvalidArgument))
}

func TestZeroRate(t *testing.T) {
	b, err := Decompose(money.MustParse("50.00"), decimal.Zero)
	require.NoError(t, err)
	assert.Equal(t, "50.00", b.Subtotal.String())
	assert.True(t, b.Tax.IsZero())
}
