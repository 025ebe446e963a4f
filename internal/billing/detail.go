package billing

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/renattofarid/fertiriego/internal/money"
	"github.com/renattofarid/fertiriego/internal/tax"
)

// PricedLine is a LineItem tagged with the pricing mode that interprets its
// unit price. Only TaxInclusiveLine and TaxExclusiveLine implement it.
type PricedLine interface {
	Item() LineItem
	Mode() PricingMode
	Breakdown(rate decimal.Decimal) (tax.Breakdown, error)
	priced()
}

// TaxInclusiveLine has a unit price that already contains tax.
type TaxInclusiveLine struct{ LineItem }

// TaxExclusiveLine has a unit price before tax.
type TaxExclusiveLine struct{ LineItem }

func (l TaxInclusiveLine) Item() LineItem    { return l.LineItem }
func (l TaxInclusiveLine) Mode() PricingMode { return TaxInclusive }
func (TaxInclusiveLine) priced()             {}

// Breakdown treats the line amount as a tax-inclusive total.
func (l TaxInclusiveLine) Breakdown(rate decimal.Decimal) (tax.Breakdown, error) {
	return tax.Decompose(l.amount(), rate)
}

func (l TaxExclusiveLine) Item() LineItem    { return l.LineItem }
func (l TaxExclusiveLine) Mode() PricingMode { return TaxExclusive }
func (TaxExclusiveLine) priced()             {}

// Breakdown treats the line amount as a tax-exclusive subtotal.
func (l TaxExclusiveLine) Breakdown(rate decimal.Decimal) (tax.Breakdown, error) {
	return tax.Compose(l.amount(), rate)
}

// amount is truncate2(quantity * unit_price).
func (l LineItem) amount() money.Money {
	return money.New(l.Quantity.Mul(l.UnitPrice.Decimal()))
}

// QuantityScale is the number of fractional digits a quantity may carry.
// It matches the precision the quantity is stored with.
const QuantityScale int32 = 4

func (l LineItem) validate() error {
	if !l.Quantity.IsPositive() {
		return fmt.Errorf("quantity %s must be positive", l.Quantity)
	}
	if !l.Quantity.Equal(l.Quantity.Truncate(QuantityScale)) {
		return fmt.Errorf("quantity %s has more than %d decimals", l.Quantity, QuantityScale)
	}
	if l.UnitPrice.IsNegative() {
		return fmt.Errorf("unit price %s is negative", l.UnitPrice)
	}
	return nil
}

// Price tags item with mode.
func (m PricingMode) Price(item LineItem) (PricedLine, error) {
	switch m {
	case TaxInclusive:
		return TaxInclusiveLine{item}, nil
	case TaxExclusive:
		return TaxExclusiveLine{item}, nil
	}
	return nil, fmt.Errorf("%w: pricing mode %q", ErrInvalidArgument, m)
}

// Aggregation holds per-line and document totals. Document totals are sums of
// the already truncated line values.
type Aggregation struct {
	Lines    []Line      `json:"lines"`
	Subtotal money.Money `json:"subtotal"`
	Tax      money.Money `json:"tax"`
	Total    money.Money `json:"total"`
}

// Aggregate prices every line from its quantity and unit price.
func Aggregate(items []LineItem, mode PricingMode, rate decimal.Decimal) (Aggregation, error) {
	if !mode.Valid() {
		return Aggregation{}, fmt.Errorf("%w: pricing mode %q", ErrInvalidArgument, mode)
	}
	agg := Aggregation{Lines: make([]Line, 0, len(items))}
	for i, item := range items {
		if err := item.validate(); err != nil {
			return Aggregation{}, fmt.Errorf("%w: line %d: %v", ErrInvalidArgument, i+1, err)
		}
		priced, err := mode.Price(item)
		if err != nil {
			return Aggregation{}, err
		}
		b, err := priced.Breakdown(rate)
		if err != nil {
			return Aggregation{}, fmt.Errorf("line %d: %w", i+1, err)
		}
		agg.Lines = append(agg.Lines, Line{LineItem: item, Subtotal: b.Subtotal, Tax: b.Tax, Total: b.Total})
		agg.Subtotal = agg.Subtotal.Add(b.Subtotal)
		agg.Tax = agg.Tax.Add(b.Tax)
		agg.Total = agg.Total.Add(b.Total)
	}
	return agg, nil
}

func (d *Document) applyAggregation(agg Aggregation) {
	d.Lines = agg.Lines
	d.Subtotal = agg.Subtotal
	d.TaxAmount = agg.Tax
	d.TotalAmount = agg.Total
}

func (d *Document) checkLinesMutable() error {
	if d.Cancelled() {
		return ErrDocumentCancelled
	}
	if d.HasPayments() {
		return ErrLinesLocked
	}
	return nil
}
