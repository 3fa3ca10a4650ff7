package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TradeSide represents the direction of a portfolio trade
type TradeSide string

const (
	TradeBuy  TradeSide = "BUY"
	TradeSell TradeSide = "SELL"
)

// ParseTradeSide normalizes a free-form side string.
func ParseTradeSide(s string) (TradeSide, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case string(TradeBuy):
		return TradeBuy, true
	case string(TradeSell):
		return TradeSell, true
	default:
		return "", false
	}
}

// Trade represents a BUY or SELL executed against a portfolio holding.
// Trades are the only operations allowed to change an asset's quantity.
type Trade struct {
	ID          string          `json:"id" db:"id"`
	PortfolioID int64           `json:"portfolioId" db:"portfolio_id"`
	Symbol      string          `json:"symbol" db:"symbol"`
	Side        TradeSide       `json:"side" db:"side"`
	Quantity    decimal.Decimal `json:"quantity" db:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice" db:"unit_price"`
	ExecutedAt  time.Time       `json:"executedAt" db:"executed_at"`
}
