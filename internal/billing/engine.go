package billing

import (
	"time"

	"github.com/google/uuid"

	"github.com/renattofarid/fertiriego/internal/money"
)

// Engine bundles the planner, ledger and status engine behind all-or-nothing
// operations on a Document. Each call works on a copy of the document and
// only swaps it in once every check passed.
type Engine struct {
	Planner Planner
	Ledger  Ledger
	Status  StatusEngine
}

type engineOptions struct {
	now   func() time.Time
	newID func() uuid.UUID
}

// Option customises an Engine.
type Option func(*engineOptions)

// WithClock overrides the time source used for due dates and audit times.
func WithClock(now func() time.Time) Option {
	return func(o *engineOptions) { o.now = now }
}

// WithIDGenerator overrides payment id generation.
func WithIDGenerator(newID func() uuid.UUID) Option {
	return func(o *engineOptions) { o.newID = newID }
}

// NewEngine builds an Engine.
func NewEngine(opts ...Option) *Engine {
	o := engineOptions{now: time.Now, newID: uuid.New}
	for _, opt := range opts {
		opt(&o)
	}
	status := NewStatusEngine(o.now)
	return &Engine{
		Ledger: NewLedger(o.now, o.newID, status),
		Status: status,
	}
}

func (e *Engine) transact(doc *Document, fn func(*Document) error) error {
	work := doc.clone()
	if err := fn(work); err != nil {
		return err
	}
	e.Status.Refresh(work)
	*doc = *work
	return nil
}

// ReplaceLines recomputes the document from a new set of line items.
func (e *Engine) ReplaceLines(doc *Document, items []LineItem) error {
	return e.transact(doc, func(d *Document) error {
		if err := d.checkLinesMutable(); err != nil {
			return err
		}
		agg, err := Aggregate(items, d.PricingMode, d.TaxRate)
		if err != nil {
			return err
		}
		d.applyAggregation(agg)
		e.Planner.PlanCash(d)
		return nil
	})
}

// SetPricingMode switches the pricing mode and recomputes every line from its
// quantity and unit price.
func (e *Engine) SetPricingMode(doc *Document, mode PricingMode) error {
	return e.transact(doc, func(d *Document) error {
		if err := d.checkLinesMutable(); err != nil {
			return err
		}
		agg, err := Aggregate(d.Items(), mode, d.TaxRate)
		if err != nil {
			return err
		}
		d.PricingMode = mode
		d.applyAggregation(agg)
		e.Planner.PlanCash(d)
		return nil
	})
}

// AddOrUpdateInstallment delegates to Planner.AddOrUpdate.
func (e *Engine) AddOrUpdateInstallment(doc *Document, seq *int, dueOffsetDays int, amount money.Money) (PlanOutcome, error) {
	var out PlanOutcome
	err := e.transact(doc, func(d *Document) error {
		var err error
		out, err = e.Planner.AddOrUpdate(d, seq, dueOffsetDays, amount)
		return err
	})
	return out, err
}

// RemoveInstallment delegates to Planner.Remove.
func (e *Engine) RemoveInstallment(doc *Document, seq int) (PlanOutcome, error) {
	var out PlanOutcome
	err := e.transact(doc, func(d *Document) error {
		var err error
		out, err = e.Planner.Remove(d, seq)
		return err
	})
	return out, err
}

// Resync delegates to Planner.Resync.
func (e *Engine) Resync(doc *Document, seq int) (PlanOutcome, error) {
	var out PlanOutcome
	err := e.transact(doc, func(d *Document) error {
		var err error
		out, err = e.Planner.Resync(d, seq)
		return err
	})
	return out, err
}

// Finalize delegates to Planner.Finalize.
func (e *Engine) Finalize(doc *Document) error {
	return e.transact(doc, e.Planner.Finalize)
}

// RecordPayment delegates to Ledger.Record.
func (e *Engine) RecordPayment(doc *Document, seq int, in PaymentInput) (Payment, error) {
	var p Payment
	err := e.transact(doc, func(d *Document) error {
		var err error
		p, err = e.Ledger.Record(d, seq, in)
		return err
	})
	return p, err
}

// EditPayment delegates to Ledger.Edit.
func (e *Engine) EditPayment(doc *Document, id uuid.UUID, edit PaymentEdit) (Payment, error) {
	var p Payment
	err := e.transact(doc, func(d *Document) error {
		var err error
		p, err = e.Ledger.Edit(d, id, edit)
		return err
	})
	return p, err
}

// RemovePayment delegates to Ledger.Remove.
func (e *Engine) RemovePayment(doc *Document, id uuid.UUID) error {
	return e.transact(doc, func(d *Document) error {
		return e.Ledger.Remove(d, id)
	})
}

// Cancel delegates to StatusEngine.Cancel.
func (e *Engine) Cancel(doc *Document) error {
	return e.transact(doc, e.Status.Cancel)
}

// Summarize returns the read-model of doc.
func (e *Engine) Summarize(doc *Document) Summary {
	return e.Status.Summarize(doc)
}
