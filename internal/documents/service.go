package documents

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/renattofarid/fertiriego/internal/billing"
	"github.com/renattofarid/fertiriego/internal/money"
	"github.com/renattofarid/fertiriego/internal/observability"
	"github.com/renattofarid/fertiriego/internal/platform/db"
	"github.com/renattofarid/fertiriego/internal/shared"
)

const idempotencyModule = "billing"

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// IdempotencyPort reserves request keys.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// EventPublisher hands committed status changes to background processing.
type EventPublisher interface {
	PublishStatusChanged(ctx context.Context, event billing.Event) error
}

// ServiceConfig holds defaults applied to new documents.
type ServiceConfig struct {
	TaxRate  decimal.Decimal
	Currency string
	Now      func() time.Time
}

// ServiceDeps groups optional collaborators. Nil members are skipped.
type ServiceDeps struct {
	Cache       *Cache
	Audit       AuditPort
	Idempotency IdempotencyPort
	Events      EventPublisher
	Metrics     *observability.Metrics
	Logger      *slog.Logger
}

// Service runs billing engine operations against persisted documents. Each
// mutation is one transaction: load, version check, engine call, save.
type Service struct {
	repo   Repository
	engine *billing.Engine
	cfg    ServiceConfig
	deps   ServiceDeps
}

// NewService wires the service.
func NewService(repo Repository, engine *billing.Engine, cfg ServiceConfig, deps ServiceDeps) *Service {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Currency == "" {
		cfg.Currency = "PEN"
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Service{repo: repo, engine: engine, cfg: cfg, deps: deps}
}

// Create registers a new document with its lines.
func (s *Service) Create(ctx context.Context, in CreateInput) (Result, error) {
	actor, ok := shared.IdentityFromContext(ctx)
	if !ok {
		return Result{}, shared.ErrUnauthenticated
	}
	rate := s.cfg.TaxRate
	if in.TaxRate != nil {
		parsed, err := money.ParseRate(*in.TaxRate)
		if err != nil {
			return Result{}, fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err)
		}
		rate = parsed
	}
	currency := in.Currency
	if currency == "" {
		currency = s.cfg.Currency
	}
	now := s.cfg.Now()
	issuedAt := in.IssuedAt
	if issuedAt.IsZero() {
		issuedAt = now
	}

	doc, err := billing.NewDocument(billing.Header{
		Kind:        in.Kind,
		Number:      in.Number,
		PricingMode: in.PricingMode,
		TaxRate:     rate,
		Currency:    currency,
		IssuedAt:    issuedAt,
	}, in.PaymentType)
	if err == nil {
		err = s.engine.ReplaceLines(doc, in.Lines)
	}
	if err != nil {
		s.deps.Metrics.ObserveMutation("create", err)
		return Result{}, err
	}
	doc.CreatedBy = actor.UserID
	doc.CreatedAt = now
	doc.DrainEvents()

	summary := s.engine.Summarize(doc)
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.Create(ctx, doc, summary.OverdueInstallments)
	})
	s.deps.Metrics.ObserveMutation("create", err)
	if err != nil {
		s.logFailure("create", 0, err)
		return Result{}, err
	}
	summary.ID = doc.ID
	summary.Version = doc.Version
	s.audit(ctx, actor, "create", doc.ID, map[string]any{
		"kind":         doc.Kind,
		"payment_type": doc.PaymentType,
		"total":        doc.TotalAmount.String(),
	})
	return Result{Summary: summary}, nil
}

// Get returns the read-model of a document, served from cache when possible.
func (s *Service) Get(ctx context.Context, id int64) (billing.Summary, error) {
	version, err := s.repo.Version(ctx, id)
	if err != nil {
		return billing.Summary{}, err
	}
	summary, hit, err := s.deps.Cache.FetchSummary(ctx, id, version, s.cfg.Now(), func(ctx context.Context) (billing.Summary, error) {
		doc, err := s.repo.Get(ctx, id)
		if err != nil {
			return billing.Summary{}, err
		}
		return s.engine.Summarize(doc), nil
	})
	switch {
	case err != nil:
		s.deps.Metrics.ObserveCache("error")
	case hit:
		s.deps.Metrics.ObserveCache("hit")
	default:
		s.deps.Metrics.ObserveCache("miss")
	}
	return summary, err
}

// List returns one page of documents.
func (s *Service) List(ctx context.Context, filter ListFilter, page, perPage int) ([]ListItem, shared.Pagination, error) {
	p := shared.NewPagination(page, perPage, 0)
	filter.Limit = p.PerPage
	filter.Offset = p.Offset()
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return items, shared.NewPagination(p.Page, p.PerPage, total), nil
}

// ReplaceLines recomputes the document from new line items.
func (s *Service) ReplaceLines(ctx context.Context, id, version int64, items []billing.LineItem) (Result, error) {
	return s.mutate(ctx, "replace_lines", id, version, func(doc *billing.Document, _ shared.Identity) (Result, error) {
		return Result{}, s.engine.ReplaceLines(doc, items)
	})
}

// SetPricingMode switches the pricing mode of the document.
func (s *Service) SetPricingMode(ctx context.Context, id, version int64, mode billing.PricingMode) (Result, error) {
	return s.mutate(ctx, "set_pricing_mode", id, version, func(doc *billing.Document, _ shared.Identity) (Result, error) {
		return Result{}, s.engine.SetPricingMode(doc, mode)
	})
}

// AddInstallment appends an installment to a credit plan.
func (s *Service) AddInstallment(ctx context.Context, id, version int64, in InstallmentInput) (Result, error) {
	return s.planMutation(ctx, "add_installment", id, version, func(doc *billing.Document) (billing.PlanOutcome, error) {
		return s.engine.AddOrUpdateInstallment(doc, nil, in.DueOffsetDays, in.Amount)
	})
}

// UpdateInstallment replaces installment seq.
func (s *Service) UpdateInstallment(ctx context.Context, id, version int64, seq int, in InstallmentInput) (Result, error) {
	return s.planMutation(ctx, "update_installment", id, version, func(doc *billing.Document) (billing.PlanOutcome, error) {
		return s.engine.AddOrUpdateInstallment(doc, &seq, in.DueOffsetDays, in.Amount)
	})
}

// RemoveInstallment deletes installment seq.
func (s *Service) RemoveInstallment(ctx context.Context, id, version int64, seq int) (Result, error) {
	return s.planMutation(ctx, "remove_installment", id, version, func(doc *billing.Document) (billing.PlanOutcome, error) {
		return s.engine.RemoveInstallment(doc, seq)
	})
}

// Resync realigns installment seq with the document total.
func (s *Service) Resync(ctx context.Context, id, version int64, seq int) (Result, error) {
	return s.planMutation(ctx, "resync_installment", id, version, func(doc *billing.Document) (billing.PlanOutcome, error) {
		return s.engine.Resync(doc, seq)
	})
}

// Finalize freezes the installment plan.
func (s *Service) Finalize(ctx context.Context, id, version int64) (Result, error) {
	return s.mutate(ctx, "finalize", id, version, func(doc *billing.Document, _ shared.Identity) (Result, error) {
		return Result{}, s.engine.Finalize(doc)
	})
}

// RecordPayment records a payment against installment seq. A non-empty
// idempotency key makes a retried request fail with
// shared.ErrIdempotencyConflict instead of paying twice.
func (s *Service) RecordPayment(ctx context.Context, id, version int64, seq int, in billing.PaymentInput, idempotencyKey string) (Result, error) {
	key := ""
	if idempotencyKey != "" && s.deps.Idempotency != nil {
		key = fmt.Sprintf("%s:%d:%s", idempotencyModule, id, idempotencyKey)
		if err := s.deps.Idempotency.CheckAndInsert(ctx, key, idempotencyModule); err != nil {
			s.deps.Metrics.ObserveMutation("record_payment", err)
			return Result{}, err
		}
	}
	res, err := s.mutate(ctx, "record_payment", id, version, func(doc *billing.Document, actor shared.Identity) (Result, error) {
		in.UserID = actor.UserID
		p, err := s.engine.RecordPayment(doc, seq, in)
		if err != nil {
			return Result{}, err
		}
		return Result{Payment: &p}, nil
	})
	if err != nil && key != "" {
		_ = s.deps.Idempotency.Delete(ctx, key)
	}
	if err == nil && res.Payment != nil {
		s.deps.Metrics.AddPayment(res.Summary.Currency, res.Payment.Total().Decimal().InexactFloat64())
	}
	return res, err
}

// EditPayment replaces the instrument split of a payment.
func (s *Service) EditPayment(ctx context.Context, id, version int64, paymentID uuid.UUID, edit billing.PaymentEdit) (Result, error) {
	return s.mutate(ctx, "edit_payment", id, version, func(doc *billing.Document, actor shared.Identity) (Result, error) {
		edit.UserID = actor.UserID
		p, err := s.engine.EditPayment(doc, paymentID, edit)
		if err != nil {
			return Result{}, err
		}
		return Result{Payment: &p}, nil
	})
}

// RemovePayment deletes a payment.
func (s *Service) RemovePayment(ctx context.Context, id, version int64, paymentID uuid.UUID) (Result, error) {
	return s.mutate(ctx, "remove_payment", id, version, func(doc *billing.Document, _ shared.Identity) (Result, error) {
		return Result{}, s.engine.RemovePayment(doc, paymentID)
	})
}

// Cancel moves a document without payments to CANCELLED.
func (s *Service) Cancel(ctx context.Context, id, version int64) (Result, error) {
	return s.mutate(ctx, "cancel", id, version, func(doc *billing.Document, _ shared.Identity) (Result, error) {
		return Result{}, s.engine.Cancel(doc)
	})
}

// RefreshDerived recomputes the denormalized listing columns of one document
// as of now and returns its overdue installment count. The document version
// is left unchanged.
func (s *Service) RefreshDerived(ctx context.Context, id int64) (billing.Summary, error) {
	var summary billing.Summary
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		doc, err := tx.Load(ctx, id)
		if err != nil {
			return err
		}
		s.engine.Status.Refresh(doc)
		summary = s.engine.Summarize(doc)
		return tx.UpdateDerived(ctx, doc, summary.OverdueInstallments)
	})
	return summary, concurrentWrite(id, err)
}

// OpenDocumentIDs pages through documents still awaiting payment.
func (s *Service) OpenDocumentIDs(ctx context.Context, afterID int64, limit int) ([]int64, error) {
	return s.repo.ListOpenIDs(ctx, afterID, limit)
}

func (s *Service) planMutation(ctx context.Context, op string, id, version int64, fn func(*billing.Document) (billing.PlanOutcome, error)) (Result, error) {
	return s.mutate(ctx, op, id, version, func(doc *billing.Document, _ shared.Identity) (Result, error) {
		out, err := fn(doc)
		if err != nil {
			return Result{}, err
		}
		return Result{Plan: &out}, nil
	})
}

func (s *Service) mutate(ctx context.Context, op string, id, expected int64, fn func(*billing.Document, shared.Identity) (Result, error)) (Result, error) {
	actor, ok := shared.IdentityFromContext(ctx)
	if !ok {
		return Result{}, shared.ErrUnauthenticated
	}
	var (
		res    Result
		events []billing.Event
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		doc, err := tx.Load(ctx, id)
		if err != nil {
			return err
		}
		if doc.Version != expected {
			return fmt.Errorf("%w: document %d is at version %d, not %d", billing.ErrStaleVersion, id, doc.Version, expected)
		}
		res, err = fn(doc, actor)
		if err != nil {
			return err
		}
		doc.UpdatedAt = s.cfg.Now()
		res.Summary = s.engine.Summarize(doc)
		if err := tx.Save(ctx, doc, expected, res.Summary.OverdueInstallments); err != nil {
			return err
		}
		res.Summary.Version = doc.Version
		events = doc.DrainEvents()
		return nil
	})
	err = concurrentWrite(id, err)
	s.deps.Metrics.ObserveMutation(op, err)
	if err != nil {
		s.logFailure(op, id, err)
		return Result{}, err
	}

	meta := map[string]any{"version": res.Summary.Version}
	if res.Payment != nil {
		meta["payment_id"] = res.Payment.ID.String()
		meta["amount"] = res.Payment.Total().String()
	}
	s.audit(ctx, actor, op, id, meta)
	s.dispatch(ctx, events)
	if err := s.deps.Cache.Forget(ctx, id); err != nil {
		s.deps.Logger.Warn("forget cached summaries", slog.Int64("document_id", id), slog.Any("error", err))
	}
	return res, nil
}

// concurrentWrite reports a serialization failure as a stale version, since
// another writer committed the document first.
func concurrentWrite(id int64, err error) error {
	if db.IsSerializationFailure(err) {
		return fmt.Errorf("%w: document %d changed concurrently: %v", billing.ErrStaleVersion, id, err)
	}
	return err
}

func (s *Service) dispatch(ctx context.Context, events []billing.Event) {
	for _, e := range events {
		if e.Type != billing.EventStatusChanged {
			continue
		}
		s.deps.Metrics.ObserveTransition(string(e.From), string(e.Status))
		if s.deps.Events == nil {
			continue
		}
		if err := s.deps.Events.PublishStatusChanged(ctx, e); err != nil {
			s.deps.Logger.Error("publish status change",
				slog.Int64("document_id", e.DocumentID),
				slog.String("status", string(e.Status)),
				slog.Any("error", err))
		}
	}
}

func (s *Service) audit(ctx context.Context, actor shared.Identity, op string, id int64, meta map[string]any) {
	if s.deps.Audit == nil {
		return
	}
	err := s.deps.Audit.Record(ctx, shared.AuditLog{
		ActorID:  actor.UserID,
		Action:   "billing:" + op,
		Entity:   "document",
		EntityID: strconv.FormatInt(id, 10),
		Meta:     meta,
		At:       s.cfg.Now(),
	})
	if err != nil {
		s.deps.Logger.Warn("audit record", slog.String("operation", op), slog.Int64("document_id", id), slog.Any("error", err))
	}
}

var refusals = []error{
	shared.ErrInvalidArgument,
	shared.ErrNotFound,
	shared.ErrUnauthenticated,
	shared.ErrIdempotencyConflict,
	billing.ErrExceedsDocumentTotal,
	billing.ErrOverpaymentRejected,
	billing.ErrReadOnlyForCashPayment,
	billing.ErrCannotCancelWithPayments,
	billing.ErrImbalancedInstallments,
	billing.ErrStaleVersion,
	billing.ErrPlanLocked,
	billing.ErrLinesLocked,
	billing.ErrInstallmentClosed,
	billing.ErrDocumentCancelled,
	billing.ErrInvalidTransition,
	billing.ErrResyncNotAllowed,
	billing.ErrInstallmentNotFound,
	billing.ErrPaymentNotFound,
}

// IsRefusal reports whether err is a business refusal rather than an
// infrastructure failure.
func IsRefusal(err error) bool {
	for _, target := range refusals {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func (s *Service) logFailure(op string, id int64, err error) {
	attrs := []any{slog.String("operation", op), slog.Int64("document_id", id), slog.Any("error", err)}
	if IsRefusal(err) {
		s.deps.Logger.Warn("document mutation refused", attrs...)
		return
	}
	s.deps.Logger.Error("document mutation failed", attrs...)
}
