package billing

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/renattofarid/fertiriego/internal/money"
)

var (
	lima       = time.FixedZone("PET", -5*60*60)
	issuedAt   = time.Date(2026, time.January, 10, 9, 30, 0, 0, lima)
	defaultTax = decimal.RequireFromString("0.18")
)

type fixedClock struct{ now time.Time }

func (c *fixedClock) Now() time.Time { return c.now }

func sequentialIDs() func() uuid.UUID {
	var n byte
	return func() uuid.UUID {
		n++
		return uuid.UUID{15: n}
	}
}

func newTestEngine(clock *fixedClock) *Engine {
	return NewEngine(WithClock(clock.Now), WithIDGenerator(sequentialIDs()))
}

func item(qty, price string) LineItem {
	return LineItem{
		ProductID: 1,
		Quantity:  decimal.RequireFromString(qty),
		UnitPrice: money.MustParse(price),
	}
}

func header(mode PricingMode) Header {
	return Header{
		Kind:        KindSale,
		Number:      "F001-00000001",
		PricingMode: mode,
		TaxRate:     defaultTax,
		Currency:    "PEN",
		IssuedAt:    issuedAt,
	}
}

func newDoc(t *testing.T, e *Engine, pt PaymentType, mode PricingMode, items ...LineItem) *Document {
	t.Helper()
	doc, err := NewDocument(header(mode), pt)
	require.NoError(t, err)
	doc.ID = 42
	require.NoError(t, e.ReplaceLines(doc, items))
	doc.DrainEvents()
	return doc
}

// newCreditPlan returns a CREDIT document worth 300.00 split 150/150.
func newCreditPlan(t *testing.T, e *Engine) *Document {
	t.Helper()
	doc := newDoc(t, e, PaymentCredit, TaxInclusive, item("2", "150.00"))
	require.Equal(t, "300.00", doc.TotalAmount.String())
	for range 2 {
		_, err := e.AddOrUpdateInstallment(doc, nil, 30, money.MustParse("150.00"))
		require.NoError(t, err)
	}
	return doc
}

func pay(amounts ...any) PaymentInput {
	in := PaymentInput{Amounts: map[Instrument]money.Money{}, UserID: 7}
	for i := 0; i+1 < len(amounts); i += 2 {
		in.Amounts[amounts[i].(Instrument)] = money.MustParse(amounts[i+1].(string))
	}
	return in
}
