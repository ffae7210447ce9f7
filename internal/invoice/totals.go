package invoice

import "github.com/shopspring/decimal"

// Totals holds the invoice-level derived amounts. RawSubtotal is the exact
// sum of unrounded line totals; Subtotal and FinalAmount are rounded to two
// places for presentation and submission.
type Totals struct {
	RawSubtotal decimal.Decimal `json:"raw_subtotal"`
	Subtotal    decimal.Decimal `json:"subtotal"`
	FinalAmount decimal.Decimal `json:"final_amount"`
}

// LineTotal returns quantity * rate * (1 + tax/100) without rounding.
func LineTotal(quantity, rate, taxPercent decimal.Decimal) decimal.Decimal {
	return quantity.Mul(rate).Mul(one.Add(taxPercent.Shift(-2)))
}

func Round2(value decimal.Decimal) decimal.Decimal {
	return value.Round(2)
}

// ComputeTotals recomputes every line total, then the subtotal, then the
// final amount. The input slice is not modified.
func ComputeTotals(lines []LineItem, discount Input) ([]LineItem, Totals) {
	out := make([]LineItem, len(lines))
	subtotal := decimal.Zero
	for i, line := range lines {
		line.LineTotal = LineTotal(line.Quantity.amount(), line.UnitRate.amount(), line.TaxPercent.amount())
		subtotal = subtotal.Add(line.LineTotal)
		out[i] = line
	}

	return out, Totals{
		RawSubtotal: subtotal,
		Subtotal:    Round2(subtotal),
		FinalAmount: Round2(subtotal.Sub(discount.amount())),
	}
}
