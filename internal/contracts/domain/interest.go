package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

var oneHundred = decimal.NewFromInt(100)

// AccrueInterest computes compound interest on a principal:
// principal × (1 + rate/100)^periods. Only daily compounding accrues today;
// periods are whole days between from and now. All other frequencies return
// the principal unchanged.
func AccrueInterest(principal, ratePercent decimal.Decimal, freq CompoundFrequency, from, now time.Time) decimal.Decimal {
	if freq != CompoundDaily {
		return principal
	}
	days := int64(now.Sub(from).Hours() / 24)
	if days <= 0 {
		return principal
	}

	factor := decimal.NewFromInt(1).Add(ratePercent.Div(oneHundred))
	return principal.Mul(factor.Pow(decimal.NewFromInt(days)))
}

// LatePenalty is the flat penalty for a missed cycle:
// monthly_payment × penalty_percentage / 100. It is never compounded with
// interest.
func LatePenalty(monthlyPayment, penaltyPercentage decimal.Decimal) decimal.Decimal {
	return monthlyPayment.Mul(penaltyPercentage).Div(oneHundred)
}
