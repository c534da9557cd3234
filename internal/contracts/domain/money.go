package domain

import "github.com/shopspring/decimal"

// AmountToCents converts a decimal amount to the integer cents the payment
// processor expects.
func AmountToCents(amount decimal.Decimal) int64 {
	return amount.Mul(oneHundred).Round(0).IntPart()
}

// AmountFromCents converts processor cents back to a decimal amount.
func AmountFromCents(cents int64) decimal.Decimal {
	return decimal.NewFromInt(cents).Div(oneHundred)
}
