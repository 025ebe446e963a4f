package money

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTruncatesTowardZero(t *testing.T) {
	cases := map[string]string{
		"93.2203389":  "93.22",
		"19.999":      "19.99",
		"0.009":       "0.00",
		"110":         "110.00",
		"-1.239":      "-1.23",
		"129.8":       "129.80",
	}
	for in, want := range cases {
		got := New(decimal.RequireFromString(in))
		assert.Equal(t, want, got.String(), in)
	}
}

func TestParseExactRefusesExtraDecimals(t *testing.T) {
	for _, in := range []string{"150.00", "150", "150.5", "150.0000"} {
		m, err := ParseExact(in)
		require.NoError(t, err, in)
		assert.True(t, m.Equal(New(decimal.RequireFromString(in))), in)
	}
	for _, in := range []string{"150.009", "0.001", "abc"} {
		_, err := ParseExact(in)
		require.Error(t, err, in)
	}
}

func TestDivTruncateUsesExactQuotient(t *testing.T) {
	got, err := MustParse("110.00").DivTruncate(decimal.RequireFromString("1.18"))
	require.NoError(t, err)
	assert.Equal(t, "93.22", got.String())

	_, err = MustParse("1.00").DivTruncate(decimal.Zero)
	require.Error(t, err)
}

func TestMulTruncate(t *testing.T) {
	got := MustParse("93.22").MulTruncate(decimal.RequireFromString("0.18"))
	assert.Equal(t, "16.77", got.String())
}

func TestSumAndCents(t *testing.T) {
	total := Sum(MustParse("0.10"), MustParse("0.20"), FromCents(5))
	assert.Equal(t, "0.35", total.String())
	assert.Equal(t, int64(35), total.Cents())
}

func TestWithinTolerance(t *testing.T) {
	assert.True(t, WithinTolerance(MustParse("300.00"), MustParse("300.00")))
	assert.False(t, WithinTolerance(MustParse("300.00"), MustParse("299.99")))
}

func TestJSONRoundTrip(t *testing.T) {
	raw, err := json.Marshal(MustParse("129.8"))
	require.NoError(t, err)
	assert.Equal(t, `"129.80"`, string(raw))

	var m Money
	require.NoError(t, json.Unmarshal([]byte(`12.345`), &m))
	assert.Equal(t, "12.34", m.String())
	require.NoError(t, json.Unmarshal([]byte(`"7.1"`), &m))
	assert.Equal(t, "7.10", m.String())
}

func TestScanAndValue(t *testing.T) {
	var m Money
	require.NoError(t, m.Scan("45.678"))
	assert.Equal(t, "45.67", m.String())
	v, err := m.Value()
	require.NoError(t, err)
	assert.Equal(t, "45.67", v)
}

func TestParseRate(t *testing.T) {
	r, err := ParseRate("0.18")
	require.NoError(t, err)
	assert.True(t, r.Equal(decimal.RequireFromString("0.18")))

	_, err = ParseRate("-0.1")
	require.Error(t, err)
	_, err = ParseRate("abc")
	require.Error(t, err)
}
