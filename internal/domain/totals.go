package domain

import "github.com/shopspring/decimal"

// Totals are the derived money figures of a sale
type Totals struct {
	Subtotal      decimal.Decimal `json:"subtotal"`
	TaxTotal      decimal.Decimal `json:"tax_total"`
	DiscountTotal decimal.Decimal `json:"discount_total"`
	GrandTotal    decimal.Decimal `json:"grand_total"`
}

// ComputeTotals derives totals from lines. It never rounds.
//
//	subtotal = Σ qty*unitPrice
//	tax      = Σ (qty*unitPrice - discount) * rate, taxed lines only
//	discount = Σ discount
//	grand    = subtotal + tax - discount
func ComputeTotals(lines []SaleLine) Totals {
	subtotal := decimal.Zero
	tax := decimal.Zero
	discount := decimal.Zero

	for i := range lines {
		l := &lines[i]
		gross := l.Gross()
		subtotal = subtotal.Add(gross)
		discount = discount.Add(l.Discount)
		if l.TaxRate != nil {
			tax = tax.Add(gross.Sub(l.Discount).Mul(*l.TaxRate))
		}
	}

	return Totals{
		Subtotal:      subtotal,
		TaxTotal:      tax,
		DiscountTotal: discount,
		GrandTotal:    subtotal.Add(tax).Sub(discount),
	}
}

// Apply copies t onto the sale header.
func (t Totals) Apply(s *Sale) {
	s.Subtotal = t.Subtotal
	s.TaxTotal = t.TaxTotal
	s.DiscountTotal = t.DiscountTotal
	s.GrandTotal = t.GrandTotal
}
