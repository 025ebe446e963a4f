package billing

import (
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"

	"github.com/renattofarid/fertiriego/internal/money"
)

// LineItem is the user input for one document line.
type LineItem struct {
	ProductID   int64           `json:"product_id"`
	Description string          `json:"description,omitempty"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   money.Money     `json:"unit_price"`
}

// Line is a LineItem with its derived amounts.
type Line struct {
	LineItem
	Subtotal money.Money `json:"subtotal"`
	Tax      money.Money `json:"tax"`
	Total    money.Money `json:"total"`
}

// Payment is one entry in an installment's payment history.
type Payment struct {
	ID             uuid.UUID                  `json:"id"`
	InstallmentSeq int                        `json:"installment_seq"`
	PaidAt         time.Time                  `json:"paid_at"`
	Reference      string                     `json:"reference,omitempty"`
	Amounts        map[Instrument]money.Money `json:"amounts"`
	UserID         int64                      `json:"user_id"`
	Supersedes     *uuid.UUID                 `json:"supersedes,omitempty"`
	SupersededAt   *time.Time                 `json:"superseded_at,omitempty"`
	RecordedAt     time.Time                  `json:"recorded_at"`
}

// Active reports whether the payment still counts towards the installment.
// Superseded entries stay in the history only.
func (p Payment) Active() bool { return p.SupersededAt == nil }

// Total sums the amounts of every instrument.
func (p Payment) Total() money.Money {
	total := money.Zero
	for _, amount := range p.Amounts {
		total = total.Add(amount)
	}
	return total
}

// Installment is one scheduled portion of the document total.
type Installment struct {
	Sequence      int               `json:"sequence"`
	DueOffsetDays int               `json:"due_offset_days"`
	Amount        money.Money       `json:"amount"`
	Status        InstallmentStatus `json:"status"`
	Payments      []Payment         `json:"payments"`
}

// Paid sums the active payments.
func (i Installment) Paid() money.Money {
	paid := money.Zero
	for _, p := range i.Payments {
		if p.Active() {
			paid = paid.Add(p.Total())
		}
	}
	return paid
}

// HasPayments reports whether any active payment is recorded.
func (i Installment) HasPayments() bool {
	for _, p := range i.Payments {
		if p.Active() {
			return true
		}
	}
	return false
}

// Pending is Amount minus Paid.
func (i Installment) Pending() money.Money {
	return i.Amount.Sub(i.Paid())
}

// DueDate is the issue date shifted by the installment offset.
func (i Installment) DueDate(issuedAt time.Time) time.Time {
	return dateOf(issuedAt).AddDate(0, 0, i.DueOffsetDays)
}

// Header carries the fields shared by every document constructor.
type Header struct {
	Kind        Kind
	Number      string
	PricingMode PricingMode
	TaxRate     decimal.Decimal
	Currency    string
	IssuedAt    time.Time
}

// Document is the aggregate owning lines, installments and payments.
type Document struct {
	ID           int64           `json:"id"`
	Kind         Kind            `json:"kind"`
	Number       string          `json:"number"`
	PaymentType  PaymentType     `json:"payment_type"`
	PricingMode  PricingMode     `json:"pricing_mode"`
	TaxRate      decimal.Decimal `json:"tax_rate"`
	Currency     string          `json:"currency"`
	IssuedAt     time.Time       `json:"issued_at"`
	Lines        []Line          `json:"lines"`
	Subtotal     money.Money     `json:"subtotal"`
	TaxAmount    money.Money     `json:"tax_amount"`
	TotalAmount  money.Money     `json:"total_amount"`
	Installments []Installment   `json:"installments"`
	Finalized    bool            `json:"finalized"`
	Status       DocumentStatus  `json:"status"`
	CancelledAt  *time.Time      `json:"cancelled_at,omitempty"`
	Version      int64           `json:"version"`
	CreatedBy    int64           `json:"created_by"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`

	events []Event
}

// NewCashDocument creates an empty document settled in a single installment.
func NewCashDocument(h Header) (*Document, error) {
	return newDocument(h, PaymentCash)
}

// NewCreditDocument creates an empty document settled by a user-declared plan.
func NewCreditDocument(h Header) (*Document, error) {
	return newDocument(h, PaymentCredit)
}

// NewDocument dispatches to the constructor matching paymentType.
func NewDocument(h Header, paymentType PaymentType) (*Document, error) {
	switch paymentType {
	case PaymentCash:
		return NewCashDocument(h)
	case PaymentCredit:
		return NewCreditDocument(h)
	}
	return nil, fmt.Errorf("%w: payment type %q", ErrInvalidArgument, paymentType)
}

func newDocument(h Header, paymentType PaymentType) (*Document, error) {
	if !h.Kind.Valid() {
		return nil, fmt.Errorf("%w: document kind %q", ErrInvalidArgument, h.Kind)
	}
	if !h.PricingMode.Valid() {
		return nil, fmt.Errorf("%w: pricing mode %q", ErrInvalidArgument, h.PricingMode)
	}
	if h.TaxRate.IsNegative() {
		return nil, fmt.Errorf("%w: tax rate %s is negative", ErrInvalidArgument, h.TaxRate)
	}
	unit, err := currency.ParseISO(h.Currency)
	if err != nil {
		return nil, fmt.Errorf("%w: currency %q", ErrInvalidArgument, h.Currency)
	}
	if h.IssuedAt.IsZero() {
		return nil, fmt.Errorf("%w: issue date required", ErrInvalidArgument)
	}
	return &Document{
		Kind:        h.Kind,
		Number:      h.Number,
		PaymentType: paymentType,
		PricingMode: h.PricingMode,
		TaxRate:     h.TaxRate,
		Currency:    unit.String(),
		IssuedAt:    h.IssuedAt,
		Status:      StatusRegistered,
	}, nil
}

// Cancelled reports whether the document reached the CANCELLED state.
func (d *Document) Cancelled() bool { return d.CancelledAt != nil }

// HasPayments reports whether any installment holds an active payment.
func (d *Document) HasPayments() bool {
	for _, inst := range d.Installments {
		if inst.HasPayments() {
			return true
		}
	}
	return false
}

// InstallmentSum adds the scheduled amounts.
func (d *Document) InstallmentSum() money.Money {
	sum := money.Zero
	for _, inst := range d.Installments {
		sum = sum.Add(inst.Amount)
	}
	return sum
}

// Pending adds the pending amount of every installment.
func (d *Document) Pending() money.Money {
	pending := money.Zero
	for _, inst := range d.Installments {
		pending = pending.Add(inst.Pending())
	}
	return pending
}

// Paid adds every recorded payment.
func (d *Document) Paid() money.Money {
	paid := money.Zero
	for _, inst := range d.Installments {
		paid = paid.Add(inst.Paid())
	}
	return paid
}

// Items returns the line inputs without derived amounts.
func (d *Document) Items() []LineItem {
	items := make([]LineItem, len(d.Lines))
	for i, l := range d.Lines {
		items[i] = l.LineItem
	}
	return items
}

// DrainEvents returns and clears events raised since the last drain.
func (d *Document) DrainEvents() []Event {
	events := d.events
	d.events = nil
	return events
}

func (d *Document) installment(seq int) (*Installment, error) {
	if seq < 1 || seq > len(d.Installments) {
		return nil, fmt.Errorf("%w: sequence %d", ErrInstallmentNotFound, seq)
	}
	return &d.Installments[seq-1], nil
}

func (d *Document) findPayment(id uuid.UUID) (*Installment, int, error) {
	for i := range d.Installments {
		for j, p := range d.Installments[i].Payments {
			if p.ID != id {
				continue
			}
			if !p.Active() {
				return nil, 0, fmt.Errorf("%w: %s was superseded", ErrPaymentNotFound, id)
			}
			return &d.Installments[i], j, nil
		}
	}
	return nil, 0, fmt.Errorf("%w: %s", ErrPaymentNotFound, id)
}

func (d *Document) resequence() {
	for i := range d.Installments {
		d.Installments[i].Sequence = i + 1
		for j := range d.Installments[i].Payments {
			d.Installments[i].Payments[j].InstallmentSeq = i + 1
		}
	}
}

func (d *Document) clone() *Document {
	c := *d
	c.Lines = slices.Clone(d.Lines)
	c.Installments = slices.Clone(d.Installments)
	for i := range c.Installments {
		c.Installments[i].Payments = clonePayments(c.Installments[i].Payments)
	}
	if d.CancelledAt != nil {
		at := *d.CancelledAt
		c.CancelledAt = &at
	}
	c.events = slices.Clone(d.events)
	return &c
}

func clonePayments(in []Payment) []Payment {
	if in == nil {
		return nil
	}
	out := make([]Payment, len(in))
	for i, p := range in {
		p.Amounts = maps.Clone(p.Amounts)
		out[i] = p
	}
	return out
}

// Validate checks the structural invariants of a document restored from
// storage.
func (d *Document) Validate() error {
	if !d.Kind.Valid() || !d.PaymentType.Valid() || !d.PricingMode.Valid() {
		return fmt.Errorf("%w: document %d has unknown enum values", ErrInvalidArgument, d.ID)
	}
	if !d.Subtotal.Add(d.TaxAmount).Equal(d.TotalAmount) {
		return fmt.Errorf("%w: document %d totals do not add up", ErrInvalidArgument, d.ID)
	}
	if d.PaymentType == PaymentCash && len(d.Installments) > 1 {
		return fmt.Errorf("%w: cash document %d has %d installments", ErrInvalidArgument, d.ID, len(d.Installments))
	}
	for i, inst := range d.Installments {
		if inst.Sequence != i+1 {
			return fmt.Errorf("%w: document %d installment order broken at %d", ErrInvalidArgument, d.ID, i+1)
		}
		if inst.Pending().IsNegative() {
			return fmt.Errorf("%w: document %d installment %d is overpaid", ErrInvalidArgument, d.ID, inst.Sequence)
		}
	}
	return nil
}

func dateOf(t time.Time) time.Time {
	y, m, day := t.Date()
	return time.Date(y, m, day, 0, 0, 0, 0, t.Location())
}
