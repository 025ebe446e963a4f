package billing

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/renattofarid/fertiriego/internal/money"
)

// PaymentInput describes a new payment against one installment.
type PaymentInput struct {
	PaidAt    time.Time
	Reference string
	Amounts   map[Instrument]money.Money
	UserID    int64
}

// PaymentEdit replaces the instrument split of an existing payment.
type PaymentEdit struct {
	Amounts   map[Instrument]money.Money
	Reference *string
	UserID    int64
}

// Ledger records payments against installments. After every successful
// mutation it asks the status engine to re-derive the document status.
type Ledger struct {
	now    func() time.Time
	newID  func() uuid.UUID
	status StatusEngine
}

// NewLedger wires a ledger to its clock, id source and status engine.
func NewLedger(now func() time.Time, newID func() uuid.UUID, status StatusEngine) Ledger {
	return Ledger{now: now, newID: newID, status: status}
}

// Record appends a payment to installment seq.
func (l Ledger) Record(doc *Document, seq int, in PaymentInput) (Payment, error) {
	if doc.Cancelled() {
		return Payment{}, ErrDocumentCancelled
	}
	total, err := paymentTotal(in.Amounts)
	if err != nil {
		return Payment{}, err
	}
	if doc.PaymentType == PaymentCredit && !balanced(doc) {
		return Payment{}, fmt.Errorf("%w: installments %s, total %s", ErrImbalancedInstallments, doc.InstallmentSum(), doc.TotalAmount)
	}
	inst, err := doc.installment(seq)
	if err != nil {
		return Payment{}, err
	}
	if inst.Status == InstallmentPaid {
		return Payment{}, fmt.Errorf("%w: installment %d is already paid", ErrOverpaymentRejected, seq)
	}
	if pending := inst.Pending(); total.GreaterThan(pending) {
		return Payment{}, fmt.Errorf("%w: payment %s, pending %s", ErrOverpaymentRejected, total, pending)
	}

	now := l.now()
	paidAt := in.PaidAt
	if paidAt.IsZero() {
		paidAt = now
	}
	payment := Payment{
		ID:             l.newID(),
		InstallmentSeq: seq,
		PaidAt:         paidAt,
		Reference:      in.Reference,
		Amounts:        cleanAmounts(in.Amounts),
		UserID:         in.UserID,
		RecordedAt:     now,
	}
	inst.Payments = append(inst.Payments, payment)
	settle(inst)

	doc.raise(Event{Type: EventPaymentRecorded, InstallmentSeq: seq, PaymentID: payment.ID, Status: l.status.Derive(doc), At: now})
	l.status.Refresh(doc)
	return payment, nil
}

// Edit appends a new entry that supersedes payment id. The original stays in
// the history flagged as superseded and no longer counts as paid.
func (l Ledger) Edit(doc *Document, id uuid.UUID, edit PaymentEdit) (Payment, error) {
	if doc.Cancelled() {
		return Payment{}, ErrDocumentCancelled
	}
	inst, idx, err := doc.findPayment(id)
	if err != nil {
		return Payment{}, err
	}
	if inst.Status == InstallmentPaid {
		return Payment{}, fmt.Errorf("%w: installment %d", ErrInstallmentClosed, inst.Sequence)
	}
	total, err := paymentTotal(edit.Amounts)
	if err != nil {
		return Payment{}, err
	}
	old := inst.Payments[idx]
	if capacity := inst.Pending().Add(old.Total()); total.GreaterThan(capacity) {
		return Payment{}, fmt.Errorf("%w: payment %s, pending %s", ErrOverpaymentRejected, total, capacity)
	}

	now := l.now()
	replacement := old
	replacement.ID = l.newID()
	replacement.Amounts = cleanAmounts(edit.Amounts)
	replacement.Supersedes = &old.ID
	replacement.RecordedAt = now
	if edit.Reference != nil {
		replacement.Reference = *edit.Reference
	}
	if edit.UserID != 0 {
		replacement.UserID = edit.UserID
	}
	inst.Payments[idx].SupersededAt = &now
	inst.Payments = append(inst.Payments, replacement)
	settle(inst)

	doc.raise(Event{Type: EventPaymentEdited, InstallmentSeq: inst.Sequence, PaymentID: replacement.ID, Status: l.status.Derive(doc), At: now})
	l.status.Refresh(doc)
	return replacement, nil
}

// Remove deletes a payment and re-derives balances.
func (l Ledger) Remove(doc *Document, id uuid.UUID) error {
	if doc.Cancelled() {
		return ErrDocumentCancelled
	}
	inst, idx, err := doc.findPayment(id)
	if err != nil {
		return err
	}
	if inst.Status == InstallmentPaid {
		return fmt.Errorf("%w: installment %d", ErrInstallmentClosed, inst.Sequence)
	}
	inst.Payments = append(inst.Payments[:idx], inst.Payments[idx+1:]...)
	settle(inst)

	doc.raise(Event{Type: EventPaymentRemoved, InstallmentSeq: inst.Sequence, PaymentID: id, Status: l.status.Derive(doc), At: l.now()})
	l.status.Refresh(doc)
	return nil
}

// settle stores PAID when nothing is pending and PENDING otherwise. OVERDUE
// is never stored; the status engine derives it from the due date.
func settle(inst *Installment) {
	if inst.Amount.IsPositive() && inst.Pending().IsZero() {
		inst.Status = InstallmentPaid
		return
	}
	inst.Status = InstallmentPending
}

func paymentTotal(amounts map[Instrument]money.Money) (money.Money, error) {
	total := money.Zero
	for instrument, amount := range amounts {
		if !instrument.Valid() {
			return money.Zero, fmt.Errorf("%w: instrument %q", ErrInvalidArgument, instrument)
		}
		if amount.IsNegative() {
			return money.Zero, fmt.Errorf("%w: %s amount %s is negative", ErrInvalidArgument, instrument, amount)
		}
		total = total.Add(amount)
	}
	if !total.IsPositive() {
		return money.Zero, fmt.Errorf("%w: payment total must be positive", ErrInvalidArgument)
	}
	return total, nil
}

func cleanAmounts(amounts map[Instrument]money.Money) map[Instrument]money.Money {
	out := make(map[Instrument]money.Money, len(amounts))
	for instrument, amount := range amounts {
		if amount.IsZero() {
			continue
		}
		out[instrument] = amount
	}
	return out
}
