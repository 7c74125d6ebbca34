package domain

import "math"

// PriceTier is one price level for a showtime, owned by the external catalog.
type PriceTier struct {
	Tier       string
	PriceCents int64
	Currency   string
}

type Totals struct {
	SubtotalCents   int64
	ServiceFeeCents int64
	TaxCents        int64
	TotalCents      int64
}

// ComputeTotals prices an order: service fee on the subtotal, tax on
// subtotal plus fee, each rounded independently.
func ComputeTotals(itemPrices []int64, feeRate, taxRate float64) Totals {
	var subtotal int64
	for _, p := range itemPrices {
		subtotal += p
	}
	fee := roundCents(float64(subtotal) * feeRate)
	tax := roundCents(float64(subtotal+fee) * taxRate)
	return Totals{
		SubtotalCents:   subtotal,
		ServiceFeeCents: fee,
		TaxCents:        tax,
		TotalCents:      subtotal + fee + tax,
	}
}

// ItemTax is the per-item tax share. Item-level taxes are rounded
// independently and need not sum to the order-level tax.
func ItemTax(priceCents int64, taxRate float64) int64 {
	return roundCents(float64(priceCents) * taxRate)
}

func roundCents(v float64) int64 {
	return int64(math.Round(v))
}
