package documents

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/renattofarid/fertiriego/internal/billing"
	"github.com/renattofarid/fertiriego/internal/money"
	"github.com/renattofarid/fertiriego/internal/shared"
)

type lineRequest struct {
	ProductID   int64  `json:"product_id" validate:"required,gt=0"`
	Description string `json:"description" validate:"max=255"`
	Quantity    string `json:"quantity" validate:"required,numeric"`
	UnitPrice   string `json:"unit_price" validate:"required,numeric"`
}

type createRequest struct {
	Kind        string        `json:"kind" validate:"required,oneof=PURCHASE SALE QUOTATION CREDIT_NOTE"`
	Number      string        `json:"number" validate:"max=32"`
	PaymentType string        `json:"payment_type" validate:"required,oneof=CASH CREDIT"`
	PricingMode string        `json:"pricing_mode" validate:"required,oneof=TAX_INCLUSIVE TAX_EXCLUSIVE"`
	Currency    string        `json:"currency" validate:"omitempty,len=3,alpha"`
	TaxRate     *string       `json:"tax_rate" validate:"omitempty,numeric"`
	IssuedAt    *time.Time    `json:"issued_at"`
	Lines       []lineRequest `json:"lines" validate:"dive"`
}

type linesRequest struct {
	Lines []lineRequest `json:"lines" validate:"dive"`
}

type pricingModeRequest struct {
	PricingMode string `json:"pricing_mode" validate:"required,oneof=TAX_INCLUSIVE TAX_EXCLUSIVE"`
}

type installmentRequest struct {
	DueOffsetDays int    `json:"due_offset_days" validate:"gte=0"`
	Amount        string `json:"amount" validate:"required,numeric"`
}

type paymentRequest struct {
	PaidAt    *time.Time        `json:"paid_at"`
	Reference string            `json:"reference" validate:"max=128"`
	Amounts   map[string]string `json:"amounts" validate:"required,min=1,dive,keys,oneof=CASH YAPE PLIN BANK_DEPOSIT BANK_TRANSFER CARD OTHER,endkeys,required,numeric"`
}

type paymentEditRequest struct {
	Reference *string           `json:"reference" validate:"omitempty,max=128"`
	Amounts   map[string]string `json:"amounts" validate:"required,min=1,dive,keys,oneof=CASH YAPE PLIN BANK_DEPOSIT BANK_TRANSFER CARD OTHER,endkeys,required,numeric"`
}

// listResponse wraps a page of documents.
type listResponse struct {
	Items      []ListItem        `json:"items"`
	Pagination shared.Pagination `json:"pagination"`
}

// mutationResponse is returned by every successful mutation.
type mutationResponse struct {
	Document billing.Summary  `json:"document"`
	Plan     *planResponse    `json:"plan,omitempty"`
	Payment  *billing.Payment `json:"payment,omitempty"`
}

type planResponse struct {
	State     billing.PlanState `json:"state"`
	Remaining money.Money       `json:"remaining"`
	Warning   string            `json:"warning,omitempty"`
}

func newMutationResponse(res Result) mutationResponse {
	out := mutationResponse{Document: res.Summary, Payment: res.Payment}
	if res.Plan != nil {
		out.Plan = &planResponse{State: res.Plan.State, Remaining: res.Plan.Remaining}
		if res.Plan.Warning != nil {
			out.Plan.Warning = res.Plan.Warning.Error()
		}
	}
	return out
}

// validationError flattens validator output into a single invalid-argument
// error naming every failing field.
func validationError(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err)
	}
	parts := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		parts = append(parts, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
	}
	return fmt.Errorf("%w: %s", shared.ErrInvalidArgument, strings.Join(parts, "; "))
}

func (l lineRequest) toItem() (billing.LineItem, error) {
	qty, err := decimal.NewFromString(l.Quantity)
	if err != nil {
		return billing.LineItem{}, fmt.Errorf("%w: quantity %q", shared.ErrInvalidArgument, l.Quantity)
	}
	price, err := money.ParseExact(l.UnitPrice)
	if err != nil {
		return billing.LineItem{}, fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err)
	}
	return billing.LineItem{ProductID: l.ProductID, Description: l.Description, Quantity: qty, UnitPrice: price}, nil
}

func toItems(lines []lineRequest) ([]billing.LineItem, error) {
	items := make([]billing.LineItem, 0, len(lines))
	for _, l := range lines {
		item, err := l.toItem()
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

func (r createRequest) toInput() (CreateInput, error) {
	items, err := toItems(r.Lines)
	if err != nil {
		return CreateInput{}, err
	}
	in := CreateInput{
		Kind:        billing.Kind(r.Kind),
		Number:      r.Number,
		PaymentType: billing.PaymentType(r.PaymentType),
		PricingMode: billing.PricingMode(r.PricingMode),
		Currency:    strings.ToUpper(r.Currency),
		TaxRate:     r.TaxRate,
		Lines:       items,
	}
	if r.IssuedAt != nil {
		in.IssuedAt = *r.IssuedAt
	}
	return in, nil
}

func (r installmentRequest) toInput() (InstallmentInput, error) {
	amount, err := money.ParseExact(r.Amount)
	if err != nil {
		return InstallmentInput{}, fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err)
	}
	return InstallmentInput{DueOffsetDays: r.DueOffsetDays, Amount: amount}, nil
}

func toAmounts(raw map[string]string) (map[billing.Instrument]money.Money, error) {
	out := make(map[billing.Instrument]money.Money, len(raw))
	for k, v := range raw {
		amount, err := money.ParseExact(v)
		if err != nil {
			return nil, fmt.Errorf("%w: %s amount: %v", shared.ErrInvalidArgument, k, err)
		}
		out[billing.Instrument(k)] = amount
	}
	return out, nil
}

func (r paymentRequest) toInput() (billing.PaymentInput, error) {
	amounts, err := toAmounts(r.Amounts)
	if err != nil {
		return billing.PaymentInput{}, err
	}
	in := billing.PaymentInput{Reference: r.Reference, Amounts: amounts}
	if r.PaidAt != nil {
		in.PaidAt = *r.PaidAt
	}
	return in, nil
}

func (r paymentEditRequest) toEdit() (billing.PaymentEdit, error) {
	amounts, err := toAmounts(r.Amounts)
	if err != nil {
		return billing.PaymentEdit{}, err
	}
	return billing.PaymentEdit{Reference: r.Reference, Amounts: amounts}, nil
}
