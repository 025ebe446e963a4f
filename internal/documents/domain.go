package documents

import (
	"fmt"
	"time"

	"github.com/renattofarid/fertiriego/internal/billing"
	"github.com/renattofarid/fertiriego/internal/money"
	"github.com/renattofarid/fertiriego/internal/shared"
)

// ErrDocumentNotFound is returned when no document matches the id.
var ErrDocumentNotFound = fmt.Errorf("document %w", shared.ErrNotFound)

// ListFilter narrows document listings.
type ListFilter struct {
	Kind        billing.Kind
	Status      billing.DocumentStatus
	PaymentType billing.PaymentType
	OverdueOnly bool
	Limit       int
	Offset      int
}

// ListItem is one row of a document listing, read from the denormalized
// columns refreshed on every save and by the overdue scan.
type ListItem struct {
	ID                  int64                  `json:"id"`
	Kind                billing.Kind           `json:"kind"`
	Number              string                 `json:"number"`
	PaymentType         billing.PaymentType    `json:"payment_type"`
	Status              billing.DocumentStatus `json:"status"`
	Currency            string                 `json:"currency"`
	IssuedAt            time.Time              `json:"issued_at"`
	Total               money.Money            `json:"total"`
	Pending             money.Money            `json:"pending"`
	OverdueInstallments int                    `json:"overdue_installments"`
	Version             int64                  `json:"version"`
}

// CreateInput carries a new document.
type CreateInput struct {
	Kind        billing.Kind
	Number      string
	PaymentType billing.PaymentType
	PricingMode billing.PricingMode
	// Currency and TaxRate fall back to the service defaults when empty.
	Currency string
	TaxRate  *string
	IssuedAt time.Time
	Lines    []billing.LineItem
}

// InstallmentInput carries an installment add or update.
type InstallmentInput struct {
	DueOffsetDays int
	Amount        money.Money
}

// Result is the outcome of a successful mutation.
type Result struct {
	Summary billing.Summary
	// Plan is set by installment planner operations.
	Plan *billing.PlanOutcome
	// Payment is set by record and edit operations.
	Payment *billing.Payment
}
