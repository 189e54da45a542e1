package checkout

import "github.com/shopspring/decimal"

// Pricing holds the store-wide charges applied on top of the cart subtotal.
type Pricing struct {
	ShippingFee int64
	TaxRate     decimal.Decimal
}

// Totals are the whole-rupee amounts frozen onto an order.
type Totals struct {
	Subtotal    int64
	ShippingFee int64
	Tax         int64
	Total       int64
}

// ComputeTotals sums the line totals and applies shipping and tax.
// Total is always Subtotal + ShippingFee + Tax.
func ComputeTotals(lineTotals []int64, pricing Pricing) Totals {
	var subtotal int64
	for _, lt := range lineTotals {
		subtotal += lt
	}
	tax := Tax(subtotal, pricing.TaxRate)
	return Totals{
		Subtotal:    subtotal,
		ShippingFee: pricing.ShippingFee,
		Tax:         tax,
		Total:       subtotal + pricing.ShippingFee + tax,
	}
}

// Tax returns rate × subtotal rounded to the nearest rupee, halves rounding up.
func Tax(subtotal int64, rate decimal.Decimal) int64 {
	if subtotal <= 0 || !rate.IsPositive() {
		return 0
	}
	return decimal.NewFromInt(subtotal).Mul(rate).Round(0).IntPart()
}
