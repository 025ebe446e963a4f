package billing

import (
	"time"

	"github.com/renattofarid/fertiriego/internal/money"
)

// StatusEngine derives document and installment status from installment
// balances. It keeps no state of its own.
type StatusEngine struct {
	now func() time.Time
}

// NewStatusEngine returns an engine reading time from now.
func NewStatusEngine(now func() time.Time) StatusEngine {
	return StatusEngine{now: now}
}

// Derive computes the document status.
func (e StatusEngine) Derive(doc *Document) DocumentStatus {
	if doc.Cancelled() {
		return StatusCancelled
	}
	if len(doc.Installments) == 0 {
		return StatusRegistered
	}
	for _, inst := range doc.Installments {
		if inst.Status != InstallmentPaid {
			return StatusRegistered
		}
	}
	return StatusPaid
}

// InstallmentStatus is the effective status of inst, OVERDUE when it is
// pending and today is past its due date.
func (e StatusEngine) InstallmentStatus(doc *Document, inst Installment) InstallmentStatus {
	if inst.Status == InstallmentPaid {
		return InstallmentPaid
	}
	today := dateOf(e.now().In(doc.IssuedAt.Location()))
	if today.After(inst.DueDate(doc.IssuedAt)) {
		return InstallmentOverdue
	}
	return InstallmentPending
}

// Refresh stores the freshly derived status on doc and raises a
// status_changed event when it moved.
func (e StatusEngine) Refresh(doc *Document) bool {
	next := e.Derive(doc)
	if next == doc.Status {
		return false
	}
	from := doc.Status
	doc.Status = next
	doc.raise(Event{Type: EventStatusChanged, From: from, Status: next, At: e.now()})
	return true
}

// Cancel moves a REGISTERED document without payments to CANCELLED.
func (e StatusEngine) Cancel(doc *Document) error {
	if doc.Cancelled() {
		return ErrInvalidTransition
	}
	if doc.HasPayments() {
		return ErrCannotCancelWithPayments
	}
	if e.Derive(doc) != StatusRegistered {
		return ErrInvalidTransition
	}
	at := e.now()
	doc.CancelledAt = &at
	e.Refresh(doc)
	return nil
}

// InstallmentView is the read-model of one installment.
type InstallmentView struct {
	Sequence      int               `json:"sequence"`
	DueOffsetDays int               `json:"due_offset_days"`
	DueDate       time.Time         `json:"due_date"`
	Amount        money.Money       `json:"amount"`
	Paid          money.Money       `json:"paid"`
	Pending       money.Money       `json:"pending"`
	Status        InstallmentStatus `json:"status"`
	Payments      []Payment         `json:"payments"`
}

// Summary is the read-model of a document handed to presentation and export.
type Summary struct {
	ID                  int64             `json:"id"`
	Kind                Kind              `json:"kind"`
	Number              string            `json:"number"`
	PaymentType         PaymentType       `json:"payment_type"`
	PricingMode         PricingMode       `json:"pricing_mode"`
	Currency            string            `json:"currency"`
	IssuedAt            time.Time         `json:"issued_at"`
	Status              DocumentStatus    `json:"status"`
	PlanState           PlanState         `json:"plan_state"`
	Lines               []Line            `json:"lines"`
	Subtotal            money.Money       `json:"subtotal"`
	Tax                 money.Money       `json:"tax"`
	Total               money.Money       `json:"total"`
	Paid                money.Money       `json:"paid"`
	Pending             money.Money       `json:"pending"`
	Remaining           money.Money       `json:"remaining"`
	OverdueInstallments int               `json:"overdue_installments"`
	Installments        []InstallmentView `json:"installments"`
	Version             int64             `json:"version"`
	AsOf                time.Time         `json:"as_of"`
}

// Summarize builds the read-model of doc as of now.
func (e StatusEngine) Summarize(doc *Document) Summary {
	var planner Planner
	s := Summary{
		ID:           doc.ID,
		Kind:         doc.Kind,
		Number:       doc.Number,
		PaymentType:  doc.PaymentType,
		PricingMode:  doc.PricingMode,
		Currency:     doc.Currency,
		IssuedAt:     doc.IssuedAt,
		Status:       e.Derive(doc),
		PlanState:    planner.State(doc),
		Lines:        doc.Lines,
		Subtotal:     doc.Subtotal,
		Tax:          doc.TaxAmount,
		Total:        doc.TotalAmount,
		Paid:         doc.Paid(),
		Pending:      doc.Pending(),
		Remaining:    planner.Remaining(doc),
		Installments: make([]InstallmentView, 0, len(doc.Installments)),
		Version:      doc.Version,
		AsOf:         e.now(),
	}
	for _, inst := range doc.Installments {
		status := e.InstallmentStatus(doc, inst)
		if status == InstallmentOverdue {
			s.OverdueInstallments++
		}
		s.Installments = append(s.Installments, InstallmentView{
			Sequence:      inst.Sequence,
			DueOffsetDays: inst.DueOffsetDays,
			DueDate:       inst.DueDate(doc.IssuedAt),
			Amount:        inst.Amount,
			Paid:          inst.Paid(),
			Pending:       inst.Pending(),
			Status:        status,
			Payments:      inst.Payments,
		})
	}
	return s
}
