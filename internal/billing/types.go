package billing

// Kind enumerates the commercial documents sharing the engine.
type Kind string

const (
	KindPurchase   Kind = "PURCHASE"
	KindSale       Kind = "SALE"
	KindQuotation  Kind = "QUOTATION"
	KindCreditNote Kind = "CREDIT_NOTE"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	switch k {
	case KindPurchase, KindSale, KindQuotation, KindCreditNote:
		return true
	}
	return false
}

// PaymentType selects how the document total is settled.
type PaymentType string

const (
	PaymentCash   PaymentType = "CASH"
	PaymentCredit PaymentType = "CREDIT"
)

func (p PaymentType) Valid() bool { return p == PaymentCash || p == PaymentCredit }

// PricingMode states whether unit prices already carry tax.
type PricingMode string

const (
	TaxInclusive PricingMode = "TAX_INCLUSIVE"
	TaxExclusive PricingMode = "TAX_EXCLUSIVE"
)

func (m PricingMode) Valid() bool { return m == TaxInclusive || m == TaxExclusive }

// DocumentStatus is the document lifecycle state.
type DocumentStatus string

const (
	StatusRegistered DocumentStatus = "REGISTERED"
	StatusPaid       DocumentStatus = "PAID"
	StatusCancelled  DocumentStatus = "CANCELLED"
)

// InstallmentStatus is stored as PENDING or PAID; OVERDUE is derived on read.
type InstallmentStatus string

const (
	InstallmentPending InstallmentStatus = "PENDING"
	InstallmentOverdue InstallmentStatus = "OVERDUE"
	InstallmentPaid    InstallmentStatus = "PAID"
)

// PlanState is the installment planner state of a document.
type PlanState string

const (
	PlanPlanning PlanState = "PLANNING"
	PlanComplete PlanState = "COMPLETE"
	PlanLocked   PlanState = "LOCKED"
)

// Instrument is the means by which part of a payment was made.
type Instrument string

const (
	InstrumentCash         Instrument = "CASH"
	InstrumentYape         Instrument = "YAPE"
	InstrumentPlin         Instrument = "PLIN"
	InstrumentBankDeposit  Instrument = "BANK_DEPOSIT"
	InstrumentBankTransfer Instrument = "BANK_TRANSFER"
	InstrumentCard         Instrument = "CARD"
	InstrumentOther        Instrument = "OTHER"
)

// Instruments lists instruments in display order.
var Instruments = []Instrument{
	InstrumentCash,
	InstrumentYape,
	InstrumentPlin,
	InstrumentBankDeposit,
	InstrumentBankTransfer,
	InstrumentCard,
	InstrumentOther,
}

func (i Instrument) Valid() bool {
	for _, known := range Instruments {
		if i == known {
			return true
		}
	}
	return false
}
