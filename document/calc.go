/*
calc.go - Line-item calculators

PURPOSE:
  Pure monetary calculations per document type. Every line's net
  contribution is a function of its own fields only, so document totals
  are order-independent sums of line nets.

RULES PER TYPE:
  Advance:    net = amount + amount*(vatRate/100) - amount*(whtRate/100)
              full decimal precision, no rounding until display
  Payment:    net = amount + sum(addition amounts); each addition amount
              is round-half-up(amount*rate/100), negated for wht and
              retention, and cached on the addition
  Expense,
  PettyCash,
  Reconciliation: net = amount

INPUT POLICY:
  Amounts and rates arrive as floats from the API layer. They are
  validated here: negative or non-finite values are rejected with
  ErrInvalidAmount rather than coerced to zero.
*/
package document

import (
	"math"

	"github.com/shopspring/decimal"
)

var oneHundred = decimal.NewFromInt(100)

// =============================================================================
// INPUT VALIDATION
// =============================================================================

// ParseAmount converts a float input into a decimal, rejecting negative
// and non-finite values.
func ParseAmount(field string, v float64) (decimal.Decimal, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return decimal.Zero, &InvalidAmountError{Field: field, Value: v, Reason: "not a finite number"}
	}
	if v < 0 {
		return decimal.Zero, &InvalidAmountError{Field: field, Value: v, Reason: "negative"}
	}
	return decimal.NewFromFloat(v), nil
}

// advance VAT and WHT rates come from closed sets.
var (
	validVATRates = map[int64]bool{0: true, 7: true}
	validWHTRates = map[int64]bool{0: true, 1: true, 2: true, 3: true, 5: true}
)

// ValidateAdvanceRates checks the VAT/WHT rates of an advance line.
func ValidateAdvanceRates(li LineItem) error {
	if !li.VATRate.IsInteger() || !validVATRates[li.VATRate.IntPart()] {
		return &InvalidAmountError{Field: "vatRate", Value: li.VATRate.InexactFloat64(), Reason: "must be 0 or 7"}
	}
	if !li.WHTRate.IsInteger() || !validWHTRates[li.WHTRate.IntPart()] {
		return &InvalidAmountError{Field: "whtRate", Value: li.WHTRate.InexactFloat64(), Reason: "must be one of 0, 1, 2, 3, 5"}
	}
	return nil
}

// =============================================================================
// PER-LINE NETS
// =============================================================================

// AdvanceLineNet computes amount + VAT - WHT at full precision.
func AdvanceLineNet(li LineItem) decimal.Decimal {
	vat := li.Amount.Mul(li.VATRate).Div(oneHundred)
	wht := li.Amount.Mul(li.WHTRate).Div(oneHundred)
	return li.Amount.Add(vat).Sub(wht)
}

// AdditionAmount computes the cached amount of a payment addition from
// its base amount and rate. VAT adds, WHT and retention deduct. The
// addition amount is rounded half-up to whole currency units; the final
// net is not rounded.
func AdditionAmount(base decimal.Decimal, typ AdditionType, rate decimal.Decimal) decimal.Decimal {
	v := base.Mul(rate).Div(oneHundred).Round(0)
	if typ == AdditionWHT || typ == AdditionRetention {
		return v.Neg()
	}
	return v
}

// RefreshAdditions recomputes every cached addition amount on a payment
// line from the current base amount and rates.
func RefreshAdditions(li *LineItem) {
	for i, a := range li.Additions {
		li.Additions[i].Amount = AdditionAmount(li.Amount, a.Type, a.Rate)
	}
}

// PaymentLineNet computes amount + sum of cached addition amounts.
func PaymentLineNet(li LineItem) decimal.Decimal {
	net := li.Amount
	for _, a := range li.Additions {
		net = net.Add(a.Amount)
	}
	return net
}

// LineNet dispatches to the calculator for the document type.
func LineNet(t DocType, li LineItem) decimal.Decimal {
	switch t {
	case DocAdvance:
		return AdvanceLineNet(li)
	case DocPayment:
		return PaymentLineNet(li)
	default:
		return li.Amount
	}
}

// =============================================================================
// TOTALS
// =============================================================================

// Totals holds the derived document total and the per-line nets in
// input order.
type Totals struct {
	TotalAmount decimal.Decimal
	PerLineNet  []decimal.Decimal
}

// ComputeTotals computes per-line nets and their sum. It is pure and
// callable freely by forms for live preview.
func ComputeTotals(t DocType, items []LineItem) Totals {
	out := Totals{TotalAmount: decimal.Zero, PerLineNet: make([]decimal.Decimal, len(items))}
	for i, li := range items {
		net := LineNet(t, li)
		out.PerLineNet[i] = net
		out.TotalAmount = out.TotalAmount.Add(net)
	}
	return out
}
