package invoices

import "github.com/shopspring/decimal"

// Amount returns quantity × rate.
func (l LineItem) Amount() decimal.Decimal {
	return decimal.NewFromFloat(l.Quantity).Mul(decimal.NewFromFloat(l.Rate))
}

// ComputeTotals sums the line amounts. Subtotal and total are always equal;
// there is no tax or discount.
func ComputeTotals(items []LineItem) (subtotal, total float64) {
	sum := decimal.Zero
	for _, item := range items {
		sum = sum.Add(item.Amount())
	}
	f := sum.InexactFloat64()
	return f, f
}

func applyTotals(inv *Invoice) {
	inv.Subtotal, inv.Total = ComputeTotals(inv.LineItems)
}
