package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Portfolio represents a collection of priced assets owned by a user.
// A user may own any number of portfolios.
type Portfolio struct {
	ID        int64     `json:"id" db:"id"`
	UserID    string    `json:"userId" db:"user_id"`
	Name      string    `json:"name" db:"name"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// PortfolioValue sums the total value of the given assets.
func PortfolioValue(assets []*Asset) decimal.Decimal {
	total := decimal.Zero
	for _, a := range assets {
		total = total.Add(a.TotalValue())
	}
	return total
}
