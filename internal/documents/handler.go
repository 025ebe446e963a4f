package documents

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/renattofarid/fertiriego/internal/billing"
	"github.com/renattofarid/fertiriego/internal/platform/httpx"
	"github.com/renattofarid/fertiriego/internal/shared"
)

// IdempotencyHeader carries the client key making payment recording safe to
// retry.
const IdempotencyHeader = "Idempotency-Key"

var errorMappings = []httpx.Mapping{
	{Err: billing.ErrStaleVersion, Status: http.StatusConflict, Title: "Stale Version"},
	{Err: billing.ErrInstallmentNotFound, Status: http.StatusNotFound, Title: "Not Found"},
	{Err: billing.ErrPaymentNotFound, Status: http.StatusNotFound, Title: "Not Found"},
	{Err: billing.ErrExceedsDocumentTotal, Status: http.StatusUnprocessableEntity, Title: "Exceeds Document Total"},
	{Err: billing.ErrOverpaymentRejected, Status: http.StatusUnprocessableEntity, Title: "Overpayment Rejected"},
	{Err: billing.ErrReadOnlyForCashPayment, Status: http.StatusUnprocessableEntity, Title: "Read Only For Cash Payment"},
	{Err: billing.ErrCannotCancelWithPayments, Status: http.StatusUnprocessableEntity, Title: "Cannot Cancel With Payments"},
	{Err: billing.ErrImbalancedInstallments, Status: http.StatusUnprocessableEntity, Title: "Imbalanced Installments"},
	{Err: billing.ErrPlanLocked, Status: http.StatusUnprocessableEntity, Title: "Plan Locked"},
	{Err: billing.ErrLinesLocked, Status: http.StatusUnprocessableEntity, Title: "Lines Locked"},
	{Err: billing.ErrInstallmentClosed, Status: http.StatusUnprocessableEntity, Title: "Installment Closed"},
	{Err: billing.ErrDocumentCancelled, Status: http.StatusUnprocessableEntity, Title: "Document Cancelled"},
	{Err: billing.ErrInvalidTransition, Status: http.StatusUnprocessableEntity, Title: "Invalid Transition"},
	{Err: billing.ErrResyncNotAllowed, Status: http.StatusUnprocessableEntity, Title: "Resync Not Allowed"},
}

// Handler exposes commercial documents over JSON.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs the documents handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers document routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(RequireScope(shared.PermDocumentsView))
		r.Get("/", h.handleList)
		r.Get("/{id}", h.handleGet)
	})
	r.Group(func(r chi.Router) {
		r.Use(RequireScope(shared.PermDocumentsEdit))
		r.Post("/", h.handleCreate)
		r.Put("/{id}/lines", h.handleReplaceLines)
		r.Put("/{id}/pricing-mode", h.handleSetPricingMode)
		r.Post("/{id}/installments", h.handleAddInstallment)
		r.Put("/{id}/installments/{seq}", h.handleUpdateInstallment)
		r.Delete("/{id}/installments/{seq}", h.handleRemoveInstallment)
		r.Post("/{id}/installments/{seq}/resync", h.handleResync)
		r.Post("/{id}/finalize", h.handleFinalize)
	})
	r.Group(func(r chi.Router) {
		r.Use(RequireScope(shared.PermPaymentsRecord))
		r.Post("/{id}/installments/{seq}/payments", h.handleRecordPayment)
		r.Put("/{id}/payments/{paymentID}", h.handleEditPayment)
		r.Delete("/{id}/payments/{paymentID}", h.handleRemovePayment)
	})
	r.Group(func(r chi.Router) {
		r.Use(RequireScope(shared.PermDocumentsCancel))
		r.Post("/{id}/cancel", h.handleCancel)
	})
}

// RequireScope rejects callers without perm.
func RequireScope(perm string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := shared.IdentityFromContext(r.Context())
			if !ok {
				httpx.RespondError(w, shared.ErrUnauthenticated)
				return
			}
			if !id.HasScope(perm) {
				httpx.RespondError(w, fmt.Errorf("%w: %s required", httpx.ErrForbidden, perm))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := ListFilter{
		Kind:        billing.Kind(strings.ToUpper(q.Get("kind"))),
		Status:      billing.DocumentStatus(strings.ToUpper(q.Get("status"))),
		PaymentType: billing.PaymentType(strings.ToUpper(q.Get("payment_type"))),
		OverdueOnly: q.Get("overdue") == "true",
	}
	if filter.Kind != "" && !filter.Kind.Valid() {
		h.fail(w, r, fmt.Errorf("%w: kind %q", shared.ErrInvalidArgument, filter.Kind))
		return
	}
	switch filter.Status {
	case "", billing.StatusRegistered, billing.StatusPaid, billing.StatusCancelled:
	default:
		h.fail(w, r, fmt.Errorf("%w: status %q", shared.ErrInvalidArgument, filter.Status))
		return
	}
	if filter.PaymentType != "" && !filter.PaymentType.Valid() {
		h.fail(w, r, fmt.Errorf("%w: payment type %q", shared.ErrInvalidArgument, filter.PaymentType))
		return
	}
	page, _ := strconv.Atoi(q.Get("page"))
	perPage, _ := strconv.Atoi(q.Get("per_page"))

	items, pagination, err := h.service.List(r.Context(), filter, page, perPage)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if items == nil {
		items = []ListItem{}
	}
	httpx.JSON(w, http.StatusOK, listResponse{Items: items, Pagination: pagination})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	summary, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	setETag(w, summary.Version)
	httpx.JSON(w, http.StatusOK, summary)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if !h.decode(w, r, &req) {
		return
	}
	in, err := req.toInput()
	if err != nil {
		h.fail(w, r, err)
		return
	}
	res, err := h.service.Create(r.Context(), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Location", fmt.Sprintf("%s/%d", strings.TrimSuffix(r.URL.Path, "/"), res.Summary.ID))
	setETag(w, res.Summary.Version)
	httpx.JSON(w, http.StatusCreated, newMutationResponse(res))
}

func (h *Handler) handleReplaceLines(w http.ResponseWriter, r *http.Request) {
	var req linesRequest
	h.mutate(w, r, &req, func(id, version int64) (Result, error) {
		items, err := toItems(req.Lines)
		if err != nil {
			return Result{}, err
		}
		return h.service.ReplaceLines(r.Context(), id, version, items)
	})
}

func (h *Handler) handleSetPricingMode(w http.ResponseWriter, r *http.Request) {
	var req pricingModeRequest
	h.mutate(w, r, &req, func(id, version int64) (Result, error) {
		return h.service.SetPricingMode(r.Context(), id, version, billing.PricingMode(req.PricingMode))
	})
}

func (h *Handler) handleAddInstallment(w http.ResponseWriter, r *http.Request) {
	var req installmentRequest
	h.mutate(w, r, &req, func(id, version int64) (Result, error) {
		in, err := req.toInput()
		if err != nil {
			return Result{}, err
		}
		return h.service.AddInstallment(r.Context(), id, version, in)
	})
}

func (h *Handler) handleUpdateInstallment(w http.ResponseWriter, r *http.Request) {
	var req installmentRequest
	h.mutate(w, r, &req, func(id, version int64) (Result, error) {
		seq, err := pathSeq(r)
		if err != nil {
			return Result{}, err
		}
		in, err := req.toInput()
		if err != nil {
			return Result{}, err
		}
		return h.service.UpdateInstallment(r.Context(), id, version, seq, in)
	})
}

func (h *Handler) handleRemoveInstallment(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, nil, func(id, version int64) (Result, error) {
		seq, err := pathSeq(r)
		if err != nil {
			return Result{}, err
		}
		return h.service.RemoveInstallment(r.Context(), id, version, seq)
	})
}

func (h *Handler) handleResync(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, nil, func(id, version int64) (Result, error) {
		seq, err := pathSeq(r)
		if err != nil {
			return Result{}, err
		}
		return h.service.Resync(r.Context(), id, version, seq)
	})
}

func (h *Handler) handleFinalize(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, nil, func(id, version int64) (Result, error) {
		return h.service.Finalize(r.Context(), id, version)
	})
}

func (h *Handler) handleRecordPayment(w http.ResponseWriter, r *http.Request) {
	var req paymentRequest
	h.mutate(w, r, &req, func(id, version int64) (Result, error) {
		seq, err := pathSeq(r)
		if err != nil {
			return Result{}, err
		}
		in, err := req.toInput()
		if err != nil {
			return Result{}, err
		}
		return h.service.RecordPayment(r.Context(), id, version, seq, in, r.Header.Get(IdempotencyHeader))
	})
}

func (h *Handler) handleEditPayment(w http.ResponseWriter, r *http.Request) {
	var req paymentEditRequest
	h.mutate(w, r, &req, func(id, version int64) (Result, error) {
		paymentID, err := pathPaymentID(r)
		if err != nil {
			return Result{}, err
		}
		edit, err := req.toEdit()
		if err != nil {
			return Result{}, err
		}
		return h.service.EditPayment(r.Context(), id, version, paymentID, edit)
	})
}

func (h *Handler) handleRemovePayment(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, nil, func(id, version int64) (Result, error) {
		paymentID, err := pathPaymentID(r)
		if err != nil {
			return Result{}, err
		}
		return h.service.RemovePayment(r.Context(), id, version, paymentID)
	})
}

func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, nil, func(id, version int64) (Result, error) {
		return h.service.Cancel(r.Context(), id, version)
	})
}

// mutate parses the document id and If-Match version, decodes body into req
// when non-nil and runs op.
func (h *Handler) mutate(w http.ResponseWriter, r *http.Request, req any, op func(id, version int64) (Result, error)) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	version, err := ifMatchVersion(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if req != nil && !h.decode(w, r, req) {
		return
	}
	res, err := op(id, version)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	setETag(w, res.Summary.Version)
	httpx.JSON(w, http.StatusOK, newMutationResponse(res))
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, req any) bool {
	if err := httpx.DecodeJSON(r, req); err != nil {
		h.fail(w, r, fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err))
		return false
	}
	if err := h.validator.Struct(req); err != nil {
		h.fail(w, r, validationError(err))
		return false
	}
	return true
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if !IsRefusal(err) && !errors.Is(err, httpx.ErrPrecondition) {
		h.logger.Error("documents request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Any("error", err))
	}
	httpx.RespondError(w, err, errorMappings...)
}

func setETag(w http.ResponseWriter, version int64) {
	w.Header().Set("ETag", strconv.Quote(strconv.FormatInt(version, 10)))
}

// ifMatchVersion reads the expected document version from If-Match. Both
// quoted and weak validators are accepted.
func ifMatchVersion(r *http.Request) (int64, error) {
	raw := strings.TrimSpace(r.Header.Get("If-Match"))
	if raw == "" {
		return 0, fmt.Errorf("%w: If-Match header with the document version", httpx.ErrPrecondition)
	}
	raw = strings.Trim(strings.TrimPrefix(raw, "W/"), `"`)
	version, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || version <= 0 {
		return 0, fmt.Errorf("%w: If-Match %q is not a document version", shared.ErrInvalidArgument, raw)
	}
	return version, nil
}

func pathID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: document id %q", shared.ErrInvalidArgument, raw)
	}
	return id, nil
}

func pathSeq(r *http.Request) (int, error) {
	raw := chi.URLParam(r, "seq")
	seq, err := strconv.Atoi(raw)
	if err != nil || seq <= 0 {
		return 0, fmt.Errorf("%w: installment %q", shared.ErrInvalidArgument, raw)
	}
	return seq, nil
}

func pathPaymentID(r *http.Request) (uuid.UUID, error) {
	raw := chi.URLParam(r, "paymentID")
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: payment id %q", shared.ErrInvalidArgument, raw)
	}
	return id, nil
}
