package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// WealthSnapshot is a point-in-time aggregate of a user's cash and
// portfolio value, expressed in the reporting currency.
type WealthSnapshot struct {
	UserID      string          `json:"userId" db:"user_id"`
	Currency    string          `json:"currency" db:"currency"`
	TotalCash   decimal.Decimal `json:"totalCash" db:"total_cash"`
	TotalCrypto decimal.Decimal `json:"totalCrypto" db:"total_crypto"`
	TotalStocks decimal.Decimal `json:"totalStocks" db:"total_stocks"`
	TotalWealth decimal.Decimal `json:"totalWealth" db:"total_wealth"`
	GrowthRate  decimal.Decimal `json:"growthRate" db:"growth_rate"`
	ComputedAt  time.Time       `json:"computedAt" db:"computed_at"`
}

// GrowthRate computes the percentage change of latest against the first
// value in an append-only history. With fewer than two values the rate is
// zero. A zero first value would divide by zero, so the previous rate is
// retained instead of producing Inf/NaN.
func GrowthRate(history []decimal.Decimal, previous decimal.Decimal) decimal.Decimal {
	if len(history) < 2 {
		return decimal.Zero
	}
	first := history[0]
	if first.IsZero() {
		return previous
	}
	latest := history[len(history)-1]
	hundred := decimal.NewFromInt(100)
	return latest.Sub(first).Div(first).Mul(hundred)
}
