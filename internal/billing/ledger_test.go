package billing

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/renattofarid/fertiriego/internal/money"
)

func TestCreditDocumentPaidInTwoInstallments(t *testing.T) {
	e := newTestEngine(&fixedClock{now: issuedAt})
	doc := newCreditPlan(t, e)

	p1, err := e.RecordPayment(doc, 1, pay(InstrumentCash, "150.00"))
	require.NoError(t, err)
	assert.Equal(t, 1, p1.InstallmentSeq)
	assert.Equal(t, InstallmentPaid, doc.Installments[0].Status)
	assert.Equal(t, InstallmentPending, doc.Installments[1].Status)
	assert.Equal(t, StatusRegistered, doc.Status)

	_, err = e.RecordPayment(doc, 2, pay(InstrumentBankTransfer, "150.00"))
	require.NoError(t, err)
	assert.Equal(t, InstallmentPaid, doc.Installments[1].Status)
	assert.Equal(t, StatusPaid, doc.Status)
	assert.Equal(t, "0.00", doc.Pending().String())

	events := doc.DrainEvents()
	require.Len(t, events, 3)
	assert.Equal(t, EventPaymentRecorded, events[0].Type)
	assert.Equal(t, StatusRegistered, events[0].Status)
	assert.Equal(t, "150.00", events[0].Pending.String())
	assert.Equal(t, EventPaymentRecorded, events[1].Type)
	assert.Equal(t, StatusPaid, events[1].Status)
	assert.Equal(t, EventStatusChanged, events[2].Type)
	assert.Equal(t, StatusRegistered, events[2].From)
	assert.Equal(t, StatusPaid, events[2].Status)
	assert.Equal(t, int64(42), events[2].DocumentID)
	assert.Empty(t, doc.DrainEvents())
}

func TestRecordSplitsAcrossInstruments(t *testing.T) {
	clock := &fixedClock{now: issuedAt.Add(2 * time.Hour)}
	e := newTestEngine(clock)
	doc := newCreditPlan(t, e)

	in := pay(InstrumentCash, "100.00", InstrumentYape, "50.00", InstrumentPlin, "0.00")
	in.Reference = "OP-991"
	p, err := e.RecordPayment(doc, 1, in)
	require.NoError(t, err)
	assert.Equal(t, "150.00", p.Total().String())
	assert.Len(t, p.Amounts, 2, "zero amounts are dropped")
	assert.Equal(t, clock.now, p.PaidAt)
	assert.Equal(t, clock.now, p.RecordedAt)
	assert.Equal(t, "OP-991", p.Reference)
	assert.Equal(t, int64(7), p.UserID)
	assert.NotEqual(t, uuid.Nil, p.ID)
}

func TestRecordRejectsOverpayment(t *testing.T) {
	e := newTestEngine(&fixedClock{now: issuedAt})
	doc := newCreditPlan(t, e)

	_, err := e.RecordPayment(doc, 1, pay(InstrumentCash, "150.01"))
	require.ErrorIs(t, err, ErrOverpaymentRejected)
	assert.False(t, doc.HasPayments())

	_, err = e.RecordPayment(doc, 1, pay(InstrumentCash, "149.99"))
	require.NoError(t, err)
	_, err = e.RecordPayment(doc, 1, pay(InstrumentCash, "0.02"))
	require.ErrorIs(t, err, ErrOverpaymentRejected)
	_, err = e.RecordPayment(doc, 1, pay(InstrumentCash, "0.01"))
	require.NoError(t, err)
	_, err = e.RecordPayment(doc, 1, pay(InstrumentCash, "0.01"))
	require.ErrorIs(t, err, ErrOverpaymentRejected)
	assert.Equal(t, InstallmentPaid, doc.Installments[0].Status)
}

func TestRecordValidatesAmounts(t *testing.T) {
	e := newTestEngine(&fixedClock{now: issuedAt})
	doc := newCreditPlan(t, e)

	cases := map[string]PaymentInput{
		"empty":        pay(),
		"zero":         pay(InstrumentCash, "0.00"),
		"negative":     pay(InstrumentCash, "20.00", InstrumentYape, "-5.00"),
		"unknown kind": pay(Instrument("BITCOIN"), "5.00"),
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := e.RecordPayment(doc, 1, in)
			require.ErrorIs(t, err, ErrInvalidArgument)
		})
	}
	_, err := e.RecordPayment(doc, 3, pay(InstrumentCash, "5.00"))
	require.ErrorIs(t, err, ErrInstallmentNotFound)
	assert.False(t, doc.HasPayments())
}

func TestRecordRequiresBalancedCreditPlan(t *testing.T) {
	e := newTestEngine(&fixedClock{now: issuedAt})
	doc := newDoc(t, e, PaymentCredit, TaxInclusive, item("2", "150.00"))
	_, err := e.AddOrUpdateInstallment(doc, nil, 30, money.MustParse("100.00"))
	require.NoError(t, err)

	_, err = e.RecordPayment(doc, 1, pay(InstrumentCash, "10.00"))
	require.ErrorIs(t, err, ErrImbalancedInstallments)
}

func TestEditSupersedesPayment(t *testing.T) {
	e := newTestEngine(&fixedClock{now: issuedAt})
	doc := newCreditPlan(t, e)
	original, err := e.RecordPayment(doc, 1, pay(InstrumentCash, "100.00"))
	require.NoError(t, err)

	ref := "corrected"
	edited, err := e.EditPayment(doc, original.ID, PaymentEdit{
		Amounts:   map[Instrument]money.Money{InstrumentCard: money.MustParse("120.00")},
		Reference: &ref,
	})
	require.NoError(t, err)
	assert.NotEqual(t, original.ID, edited.ID)
	require.NotNil(t, edited.Supersedes)
	assert.Equal(t, original.ID, *edited.Supersedes)
	assert.Equal(t, "corrected", edited.Reference)
	assert.Equal(t, original.UserID, edited.UserID)
	assert.Equal(t, original.PaidAt, edited.PaidAt)

	require.Len(t, doc.Installments[0].Payments, 2)
	kept := doc.Installments[0].Payments[0]
	assert.Equal(t, original.ID, kept.ID)
	require.NotNil(t, kept.SupersededAt)
	assert.False(t, kept.Active())
	assert.True(t, doc.Installments[0].Payments[1].Active())
	assert.Equal(t, "120.00", doc.Installments[0].Paid().String())
	assert.Equal(t, "30.00", doc.Installments[0].Pending().String())
	require.ErrorIs(t, e.RemovePayment(doc, original.ID), ErrPaymentNotFound)

	_, err = e.EditPayment(doc, original.ID, PaymentEdit{Amounts: map[Instrument]money.Money{InstrumentCash: money.MustParse("1.00")}})
	require.ErrorIs(t, err, ErrPaymentNotFound)

	_, err = e.EditPayment(doc, edited.ID, PaymentEdit{Amounts: map[Instrument]money.Money{InstrumentCash: money.MustParse("150.01")}})
	require.ErrorIs(t, err, ErrOverpaymentRejected)

	_, err = e.EditPayment(doc, edited.ID, PaymentEdit{Amounts: map[Instrument]money.Money{InstrumentCash: money.MustParse("150.00")}})
	require.NoError(t, err)
	assert.Equal(t, InstallmentPaid, doc.Installments[0].Status)
}

func TestPaidInstallmentIsClosed(t *testing.T) {
	e := newTestEngine(&fixedClock{now: issuedAt})
	doc := newCreditPlan(t, e)
	p, err := e.RecordPayment(doc, 1, pay(InstrumentCash, "150.00"))
	require.NoError(t, err)

	_, err = e.EditPayment(doc, p.ID, PaymentEdit{Amounts: map[Instrument]money.Money{InstrumentCash: money.MustParse("100.00")}})
	require.ErrorIs(t, err, ErrInstallmentClosed)
	require.ErrorIs(t, e.RemovePayment(doc, p.ID), ErrInstallmentClosed)
	assert.Equal(t, InstallmentPaid, doc.Installments[0].Status)
}

func TestRemovePaymentRestoresPending(t *testing.T) {
	e := newTestEngine(&fixedClock{now: issuedAt})
	doc := newCreditPlan(t, e)
	p, err := e.RecordPayment(doc, 2, pay(InstrumentPlin, "60.00"))
	require.NoError(t, err)
	assert.Equal(t, PlanLocked, e.Planner.State(doc))

	require.NoError(t, e.RemovePayment(doc, p.ID))
	assert.False(t, doc.HasPayments())
	assert.Equal(t, "150.00", doc.Installments[1].Pending().String())
	assert.Equal(t, PlanComplete, e.Planner.State(doc))

	require.ErrorIs(t, e.RemovePayment(doc, p.ID), ErrPaymentNotFound)
}

func TestLedgerConservesAmounts(t *testing.T) {
	e := newTestEngine(&fixedClock{now: issuedAt})
	doc := newCreditPlan(t, e)

	steps := []struct {
		seq    int
		amount string
	}{{1, "10.00"}, {2, "0.01"}, {1, "139.99"}, {2, "75.50"}, {1, "0.01"}, {2, "74.49"}}
	for _, s := range steps {
		_, err := e.RecordPayment(doc, s.seq, pay(InstrumentCash, s.amount))
		require.NoError(t, err)
		for _, inst := range doc.Installments {
			assert.True(t, inst.Paid().Add(inst.Pending()).Equal(inst.Amount))
			assert.False(t, inst.Pending().IsNegative())
		}
	}
	assert.Equal(t, "0.00", doc.Installments[0].Pending().String())
	assert.Equal(t, "0.00", doc.Installments[1].Pending().String())
	assert.Equal(t, "300.00", doc.Paid().String())
	assert.Equal(t, StatusPaid, doc.Status)
}

func TestLedgerPendingMovesOneWay(t *testing.T) {
	e := newTestEngine(&fixedClock{now: issuedAt})
	doc := newCreditPlan(t, e)

	record := func(seq int, amount string) uuid.UUID {
		before := doc.Pending()
		p, err := e.RecordPayment(doc, seq, pay(InstrumentCash, amount))
		require.NoError(t, err)
		assert.False(t, doc.Pending().GreaterThan(before), "record %s on %d", amount, seq)
		assert.True(t, before.Sub(doc.Pending()).Equal(money.MustParse(amount)))
		return p.ID
	}
	remove := func(id uuid.UUID) {
		before := doc.Pending()
		require.NoError(t, e.RemovePayment(doc, id))
		assert.False(t, doc.Pending().LessThan(before), "remove %s", id)
	}

	a := record(1, "40.00")
	b := record(2, "0.01")
	c := record(1, "59.99")
	remove(b)

	before := doc.Pending()
	edited, err := e.EditPayment(doc, a, PaymentEdit{Amounts: map[Instrument]money.Money{InstrumentCard: money.MustParse("30.00")}})
	require.NoError(t, err)
	assert.Equal(t, "10.00", doc.Pending().Sub(before).String())

	remove(edited.ID)
	remove(c)
	assert.Equal(t, "300.00", doc.Pending().String())
	record(2, "150.00")
	record(1, "150.00")
	assert.Equal(t, "0.00", doc.Pending().String())
	assert.Equal(t, StatusPaid, doc.Status)
}

func TestLedgerRejectsCancelledDocument(t *testing.T) {
	e := newTestEngine(&fixedClock{now: issuedAt})
	doc := newCreditPlan(t, e)
	require.NoError(t, e.Cancel(doc))

	_, err := e.RecordPayment(doc, 1, pay(InstrumentCash, "1.00"))
	require.ErrorIs(t, err, ErrDocumentCancelled)
}
