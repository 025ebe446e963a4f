package billing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/renattofarid/fertiriego/internal/money"
)

func TestCashDocumentHasSingleInstallment(t *testing.T) {
	e := newTestEngine(&fixedClock{now: issuedAt})
	doc := newDoc(t, e, PaymentCash, TaxExclusive, item("10", "11.00"))

	require.Len(t, doc.Installments, 1)
	inst := doc.Installments[0]
	assert.Equal(t, 1, inst.Sequence)
	assert.Equal(t, CashDueOffsetDays, inst.DueOffsetDays)
	assert.Equal(t, "129.80", inst.Amount.String())
	assert.Equal(t, PlanComplete, e.Planner.State(doc))

	_, err := e.AddOrUpdateInstallment(doc, nil, 5, money.MustParse("10.00"))
	require.ErrorIs(t, err, ErrReadOnlyForCashPayment)
	_, err = e.RemoveInstallment(doc, 1)
	require.ErrorIs(t, err, ErrReadOnlyForCashPayment)
	require.Len(t, doc.Installments, 1)
}

func TestCashInstallmentFollowsLineChanges(t *testing.T) {
	e := newTestEngine(&fixedClock{now: issuedAt})
	doc := newDoc(t, e, PaymentCash, TaxExclusive, item("10", "11.00"))
	require.NoError(t, e.ReplaceLines(doc, []LineItem{item("1", "50.00")}))
	require.Len(t, doc.Installments, 1)
	assert.Equal(t, "59.00", doc.Installments[0].Amount.String())

	require.NoError(t, e.ReplaceLines(doc, nil))
	assert.Empty(t, doc.Installments)
}

func TestAddOrUpdateTracksRemaining(t *testing.T) {
	e := newTestEngine(&fixedClock{now: issuedAt})
	doc := newDoc(t, e, PaymentCredit, TaxInclusive, item("2", "150.00"))
	assert.Equal(t, PlanPlanning, e.Planner.State(doc))

	out, err := e.AddOrUpdateInstallment(doc, nil, 30, money.MustParse("100.00"))
	require.NoError(t, err)
	assert.Equal(t, PlanPlanning, out.State)
	assert.Equal(t, "200.00", out.Remaining.String())
	assert.ErrorIs(t, out.Warning, ErrImbalancedInstallments)

	out, err = e.AddOrUpdateInstallment(doc, nil, 60, money.MustParse("200.00"))
	require.NoError(t, err)
	assert.Equal(t, PlanComplete, out.State)
	assert.Equal(t, "0.00", out.Remaining.String())
	assert.NoError(t, out.Warning)

	seq := 1
	out, err = e.AddOrUpdateInstallment(doc, &seq, 15, money.MustParse("50.00"))
	require.NoError(t, err)
	assert.Equal(t, PlanPlanning, out.State)
	assert.Equal(t, "50.00", out.Remaining.String())
	assert.Equal(t, 15, doc.Installments[0].DueOffsetDays)
}

func TestAddOrUpdateRejectsOvercommit(t *testing.T) {
	e := newTestEngine(&fixedClock{now: issuedAt})
	doc := newDoc(t, e, PaymentCredit, TaxInclusive, item("2", "150.00"))
	_, err := e.AddOrUpdateInstallment(doc, nil, 30, money.MustParse("200.00"))
	require.NoError(t, err)

	_, err = e.AddOrUpdateInstallment(doc, nil, 60, money.MustParse("100.01"))
	require.ErrorIs(t, err, ErrExceedsDocumentTotal)
	require.Len(t, doc.Installments, 1)

	seq := 1
	_, err = e.AddOrUpdateInstallment(doc, &seq, 30, money.MustParse("300.00"))
	require.NoError(t, err, "the replaced installment does not count twice")
	_, err = e.AddOrUpdateInstallment(doc, &seq, 30, money.MustParse("300.01"))
	require.ErrorIs(t, err, ErrExceedsDocumentTotal)
	assert.Equal(t, "300.00", doc.Installments[0].Amount.String())
}

func TestAddOrUpdateValidatesInput(t *testing.T) {
	e := newTestEngine(&fixedClock{now: issuedAt})
	doc := newDoc(t, e, PaymentCredit, TaxInclusive, item("2", "150.00"))

	_, err := e.AddOrUpdateInstallment(doc, nil, -1, money.MustParse("10.00"))
	require.ErrorIs(t, err, ErrInvalidArgument)
	_, err = e.AddOrUpdateInstallment(doc, nil, 1, money.Zero)
	require.ErrorIs(t, err, ErrInvalidArgument)
	seq := 3
	_, err = e.AddOrUpdateInstallment(doc, &seq, 1, money.MustParse("10.00"))
	require.ErrorIs(t, err, ErrInstallmentNotFound)
}

func TestRemoveRenumbers(t *testing.T) {
	e := newTestEngine(&fixedClock{now: issuedAt})
	doc := newDoc(t, e, PaymentCredit, TaxInclusive, item("2", "150.00"))
	for _, amount := range []string{"100.00", "120.00", "80.00"} {
		_, err := e.AddOrUpdateInstallment(doc, nil, 30, money.MustParse(amount))
		require.NoError(t, err)
	}

	out, err := e.RemoveInstallment(doc, 2)
	require.NoError(t, err)
	assert.Equal(t, "120.00", out.Remaining.String())
	require.Len(t, doc.Installments, 2)
	assert.Equal(t, 1, doc.Installments[0].Sequence)
	assert.Equal(t, 2, doc.Installments[1].Sequence)
	assert.Equal(t, "80.00", doc.Installments[1].Amount.String())

	_, err = e.RemoveInstallment(doc, 5)
	require.ErrorIs(t, err, ErrInstallmentNotFound)
}

func TestFinalizeRequiresBalancedPlan(t *testing.T) {
	e := newTestEngine(&fixedClock{now: issuedAt})
	doc := newDoc(t, e, PaymentCredit, TaxInclusive, item("2", "150.00"))
	require.ErrorIs(t, e.Finalize(doc), ErrImbalancedInstallments)

	_, err := e.AddOrUpdateInstallment(doc, nil, 30, money.MustParse("150.00"))
	require.NoError(t, err)
	require.ErrorIs(t, e.Finalize(doc), ErrImbalancedInstallments)
	assert.False(t, doc.Finalized)

	_, err = e.AddOrUpdateInstallment(doc, nil, 60, money.MustParse("150.00"))
	require.NoError(t, err)
	require.NoError(t, e.Finalize(doc))
	assert.True(t, doc.Finalized)
	assert.Equal(t, PlanLocked, e.Planner.State(doc))

	_, err = e.AddOrUpdateInstallment(doc, nil, 90, money.MustParse("1.00"))
	require.ErrorIs(t, err, ErrPlanLocked)
	_, err = e.RemoveInstallment(doc, 1)
	require.ErrorIs(t, err, ErrPlanLocked)
}

func TestPaymentLocksPlan(t *testing.T) {
	e := newTestEngine(&fixedClock{now: issuedAt})
	doc := newCreditPlan(t, e)
	_, err := e.RecordPayment(doc, 1, pay(InstrumentCash, "10.00"))
	require.NoError(t, err)

	assert.Equal(t, PlanLocked, e.Planner.State(doc))
	seq := 2
	_, err = e.AddOrUpdateInstallment(doc, &seq, 30, money.MustParse("140.00"))
	require.ErrorIs(t, err, ErrPlanLocked)
}

func TestResyncAfterLineChange(t *testing.T) {
	e := newTestEngine(&fixedClock{now: issuedAt})
	doc := newCreditPlan(t, e)
	require.NoError(t, e.Finalize(doc))

	require.NoError(t, e.ReplaceLines(doc, []LineItem{item("2", "177.00")}))
	assert.Equal(t, "354.00", doc.TotalAmount.String())

	out, err := e.Resync(doc, 2)
	require.NoError(t, err)
	assert.Equal(t, PlanLocked, out.State)
	assert.Equal(t, "0.00", out.Remaining.String())
	assert.Equal(t, "204.00", doc.Installments[1].Amount.String())

	_, err = e.Resync(doc, 2)
	require.ErrorIs(t, err, ErrResyncNotAllowed)
}

func TestResyncRefusals(t *testing.T) {
	e := newTestEngine(&fixedClock{now: issuedAt})
	doc := newCreditPlan(t, e)
	_, err := e.RecordPayment(doc, 1, pay(InstrumentYape, "50.00"))
	require.NoError(t, err)

	_, err = e.Resync(doc, 1)
	require.ErrorIs(t, err, ErrResyncNotAllowed)
	_, err = e.Resync(doc, 2)
	require.ErrorIs(t, err, ErrResyncNotAllowed, "already matches the target")
	_, err = e.Resync(doc, 9)
	require.ErrorIs(t, err, ErrInstallmentNotFound)
}

func TestResyncWhenOthersCoverTotal(t *testing.T) {
	e := newTestEngine(&fixedClock{now: issuedAt})
	doc := newCreditPlan(t, e)
	require.NoError(t, e.Finalize(doc))
	require.NoError(t, e.ReplaceLines(doc, []LineItem{item("1", "150.00")}))

	_, err := e.Resync(doc, 2)
	require.ErrorIs(t, err, ErrResyncNotAllowed)
	assert.Equal(t, "150.00", doc.Installments[1].Amount.String())
}
