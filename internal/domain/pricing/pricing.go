// Package pricing holds the money arithmetic of a cash-on-delivery order:
// cart subtotal, parcel weight estimate and the reconciliation of the
// courier's handling fee into the amount collected from the buyer.
package pricing

import (
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// DefaultHandlingFeeRate is the share of the collected cash the courier keeps.
var DefaultHandlingFeeRate = decimal.RequireFromString("0.01")

var (
	weightPerUnit = decimal.RequireFromString("0.5")
	minWeight     = decimal.RequireFromString("0.5")
	one           = decimal.NewFromInt(1)
)

// ErrInvalidFeeRate is returned when a handling fee rate is outside [0, 1).
var ErrInvalidFeeRate = errors.New("handling fee rate must be in [0, 1)")

// UnresolvedShippingWarning accompanies a breakdown computed without a quote.
const UnresolvedShippingWarning = "delivery charge could not be resolved for this route; total excludes shipping"

// Line is the minimal view of a cart line needed for pricing.
type Line struct {
	UnitPrice decimal.Decimal
	Quantity  int
}

// Subtotal returns Σ unitPrice × quantity rounded to 2 decimal places.
func Subtotal(lines []Line) decimal.Decimal {
	sum := decimal.Zero
	for _, l := range lines {
		sum = sum.Add(l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	return sum.Round(2)
}

// ParcelWeight estimates the parcel weight in kilograms: half a kilogram per
// unit, never below half a kilogram.
func ParcelWeight(totalQuantity int) decimal.Decimal {
	w := weightPerUnit.Mul(decimal.NewFromInt(int64(totalQuantity)))
	return decimal.Max(minWeight, w)
}

// Breakdown is the buyer-facing price summary.
type Breakdown struct {
	Subtotal decimal.Decimal
	// Quote is the courier's route price; nil while the route is unresolved.
	Quote *decimal.Decimal
	// Shipping is the delivery charge plus the passed-through handling fee.
	// Nil when Quote is nil.
	Shipping *decimal.Decimal
	Total    decimal.Decimal
	Warning  string
}

// Resolved reports whether shipping was derived from a route quote.
func (b Breakdown) Resolved() bool {
	return b.Shipping != nil
}

// Reconciler grosses up subtotal and delivery quote so that, after the
// courier deducts its handling fee from the collected cash, the merchant
// still receives subtotal + quote.
type Reconciler struct {
	feeRate decimal.Decimal
	keep    decimal.Decimal
}

// NewReconciler creates a Reconciler for the given handling fee rate.
func NewReconciler(feeRate decimal.Decimal) (*Reconciler, error) {
	if feeRate.IsNegative() || feeRate.GreaterThanOrEqual(one) {
		return nil, ErrInvalidFeeRate
	}
	return &Reconciler{feeRate: feeRate, keep: one.Sub(feeRate)}, nil
}

// DefaultReconciler uses DefaultHandlingFeeRate.
func DefaultReconciler() *Reconciler {
	r, err := NewReconciler(DefaultHandlingFeeRate)
	if err != nil {
		panic(err)
	}
	return r
}

// FeeRate returns the configured handling fee rate.
func (r *Reconciler) FeeRate() decimal.Decimal {
	return r.feeRate
}

// Gross returns round((subtotal + quote) / (1 - feeRate), 2).
func (r *Reconciler) Gross(subtotal, quote decimal.Decimal) decimal.Decimal {
	return subtotal.Add(quote).Div(r.keep).Round(2)
}

// Reconcile builds the price breakdown. A nil quote means the route price is
// unknown: the total falls back to the subtotal and a warning is attached so
// the sale is not blocked by a pricing outage.
func (r *Reconciler) Reconcile(subtotal decimal.Decimal, quote *decimal.Decimal) Breakdown {
	subtotal = subtotal.Round(2)
	if quote == nil {
		return Breakdown{
			Subtotal: subtotal,
			Total:    subtotal,
			Warning:  UnresolvedShippingWarning,
		}
	}

	q := *quote
	gross := r.Gross(subtotal, q)
	shipping := gross.Sub(subtotal)
	return Breakdown{
		Subtotal: subtotal,
		Quote:    &q,
		Shipping: &shipping,
		Total:    gross,
	}
}

// AmountToCollect rounds the gross total to whole currency units, halves
// rounding up, as the courier only accepts integer COD amounts.
func AmountToCollect(total decimal.Decimal) int64 {
	return total.Round(0).IntPart()
}
