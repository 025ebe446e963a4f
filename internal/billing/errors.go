package billing

import (
	"errors"

	"github.com/renattofarid/fertiriego/internal/shared"
)

// Every refusal below leaves the document exactly as it was before the call.
var (
	ErrInvalidArgument          = shared.ErrInvalidArgument
	ErrExceedsDocumentTotal     = errors.New("installments exceed document total")
	ErrOverpaymentRejected      = errors.New("payment exceeds installment pending amount")
	ErrReadOnlyForCashPayment   = errors.New("installments are read-only for cash payment")
	ErrCannotCancelWithPayments = errors.New("document has payments and cannot be cancelled")
	// ErrImbalancedInstallments is a warning while planning and a hard error
	// when finalizing or paying against the plan.
	ErrImbalancedInstallments = errors.New("installments do not add up to document total")
	ErrStaleVersion           = errors.New("document was modified by another request")

	ErrPlanLocked          = errors.New("installment plan is locked")
	ErrLinesLocked         = errors.New("line items are locked once payments exist")
	ErrInstallmentClosed   = errors.New("installment is paid and closed")
	ErrDocumentCancelled   = errors.New("document is cancelled")
	ErrInvalidTransition   = errors.New("invalid status transition")
	ErrResyncNotAllowed    = errors.New("installment cannot be resynced")
	ErrInstallmentNotFound = errors.New("installment not found")
	ErrPaymentNotFound     = errors.New("payment not found")
)
