package billing

import (
	"fmt"

	"github.com/renattofarid/fertiriego/internal/money"
)

// CashDueOffsetDays is the due offset of the single cash installment.
const CashDueOffsetDays = 1

// PlanOutcome reports the plan after a successful planner call. Warning is
// ErrImbalancedInstallments while installments do not yet reconstruct the
// document total; it never blocks the edit itself.
type PlanOutcome struct {
	State     PlanState   `json:"state"`
	Remaining money.Money `json:"remaining"`
	Warning   error       `json:"-"`
}

// Planner partitions a document total into installments.
type Planner struct{}

// State derives the planner state of doc.
func (Planner) State(doc *Document) PlanState {
	if doc.Finalized || doc.HasPayments() {
		return PlanLocked
	}
	if balanced(doc) {
		return PlanComplete
	}
	return PlanPlanning
}

// Remaining is the capacity left for new installments.
func (Planner) Remaining(doc *Document) money.Money {
	return doc.TotalAmount.Sub(doc.InstallmentSum())
}

// AddOrUpdate replaces installment seq when seq is non-nil, otherwise appends
// a new installment.
func (p Planner) AddOrUpdate(doc *Document, seq *int, dueOffsetDays int, amount money.Money) (PlanOutcome, error) {
	if err := p.checkEditable(doc); err != nil {
		return PlanOutcome{}, err
	}
	if dueOffsetDays < 0 {
		return PlanOutcome{}, fmt.Errorf("%w: due offset %d is negative", ErrInvalidArgument, dueOffsetDays)
	}
	if !amount.IsPositive() {
		return PlanOutcome{}, fmt.Errorf("%w: installment amount %s must be positive", ErrInvalidArgument, amount)
	}

	others := doc.InstallmentSum()
	if seq != nil {
		current, err := doc.installment(*seq)
		if err != nil {
			return PlanOutcome{}, err
		}
		others = others.Sub(current.Amount)
	}
	projected := others.Add(amount)
	if projected.GreaterThan(doc.TotalAmount) {
		return PlanOutcome{}, fmt.Errorf("%w: projected %s over total %s", ErrExceedsDocumentTotal, projected, doc.TotalAmount)
	}

	if seq != nil {
		inst := &doc.Installments[*seq-1]
		inst.DueOffsetDays = dueOffsetDays
		inst.Amount = amount
	} else {
		doc.Installments = append(doc.Installments, Installment{
			DueOffsetDays: dueOffsetDays,
			Amount:        amount,
			Status:        InstallmentPending,
		})
	}
	doc.resequence()
	return p.outcome(doc), nil
}

// Remove deletes installment seq and renumbers the rest.
func (p Planner) Remove(doc *Document, seq int) (PlanOutcome, error) {
	if err := p.checkEditable(doc); err != nil {
		return PlanOutcome{}, err
	}
	if _, err := doc.installment(seq); err != nil {
		return PlanOutcome{}, err
	}
	doc.Installments = append(doc.Installments[:seq-1], doc.Installments[seq:]...)
	doc.resequence()
	return p.outcome(doc), nil
}

// Finalize freezes the plan. Credit plans must reconstruct the total.
func (p Planner) Finalize(doc *Document) error {
	if doc.Cancelled() {
		return ErrDocumentCancelled
	}
	if doc.Finalized {
		return nil
	}
	if len(doc.Installments) == 0 {
		return fmt.Errorf("%w: no installments planned", ErrImbalancedInstallments)
	}
	if !balanced(doc) {
		return fmt.Errorf("%w: installments %s, total %s", ErrImbalancedInstallments, doc.InstallmentSum(), doc.TotalAmount)
	}
	doc.Finalized = true
	return nil
}

// PlanCash regenerates the single cash installment from the document total.
// Documents with payments or on credit are left untouched.
func (Planner) PlanCash(doc *Document) {
	if doc.PaymentType != PaymentCash || doc.HasPayments() {
		return
	}
	if !doc.TotalAmount.IsPositive() {
		doc.Installments = nil
		return
	}
	doc.Installments = []Installment{{
		Sequence:      1,
		DueOffsetDays: CashDueOffsetDays,
		Amount:        doc.TotalAmount,
		Status:        InstallmentPending,
	}}
}

// Resync overwrites the amount of an installment without payments with the
// amount the other installments leave uncovered. It is the only amount change
// permitted on a locked plan.
func (p Planner) Resync(doc *Document, seq int) (PlanOutcome, error) {
	if doc.Cancelled() {
		return PlanOutcome{}, ErrDocumentCancelled
	}
	inst, err := doc.installment(seq)
	if err != nil {
		return PlanOutcome{}, err
	}
	if inst.HasPayments() {
		return PlanOutcome{}, fmt.Errorf("%w: installment %d has payments", ErrResyncNotAllowed, seq)
	}
	target := doc.TotalAmount.Sub(doc.InstallmentSum().Sub(inst.Amount))
	if !target.IsPositive() {
		return PlanOutcome{}, fmt.Errorf("%w: other installments already cover %s", ErrResyncNotAllowed, doc.TotalAmount)
	}
	if target.Equal(inst.Amount) {
		return PlanOutcome{}, fmt.Errorf("%w: installment %d already matches %s", ErrResyncNotAllowed, seq, target)
	}

	previous := inst.Amount
	inst.Amount = target
	if !balanced(doc) {
		inst.Amount = previous
		return PlanOutcome{}, fmt.Errorf("%w: installments %s, total %s", ErrImbalancedInstallments, doc.InstallmentSum(), doc.TotalAmount)
	}
	return p.outcome(doc), nil
}

func (p Planner) checkEditable(doc *Document) error {
	if doc.Cancelled() {
		return ErrDocumentCancelled
	}
	if doc.PaymentType == PaymentCash {
		return ErrReadOnlyForCashPayment
	}
	if p.State(doc) == PlanLocked {
		return ErrPlanLocked
	}
	return nil
}

func (p Planner) outcome(doc *Document) PlanOutcome {
	out := PlanOutcome{State: p.State(doc), Remaining: p.Remaining(doc)}
	if !balanced(doc) {
		out.Warning = ErrImbalancedInstallments
	}
	return out
}

func balanced(doc *Document) bool {
	return len(doc.Installments) > 0 && money.WithinTolerance(doc.InstallmentSum(), doc.TotalAmount)
}
