package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// AssetClass categorizes a portfolio holding for wealth reporting
type AssetClass string

const (
	AssetClassCrypto AssetClass = "crypto"
	AssetClassStock  AssetClass = "stock"
	AssetClassShare  AssetClass = "share"
	AssetClassETF    AssetClass = "etf"
)

// WealthBucket is the reporting bucket an asset contributes to
type WealthBucket string

const (
	BucketCash   WealthBucket = "cash"
	BucketCrypto WealthBucket = "crypto"
	BucketStocks WealthBucket = "stocks"
)

// Bucket maps an asset class to its reporting bucket. Unknown or empty
// classes fall through to stocks; holdings are never dropped or rejected
// on account of their class.
func (c AssetClass) Bucket() WealthBucket {
	switch AssetClass(strings.ToLower(string(c))) {
	case AssetClassCrypto:
		return BucketCrypto
	case AssetClassStock, AssetClassShare:
		return BucketStocks
	default:
		return BucketStocks
	}
}

// Asset represents a priced holding inside a portfolio. Unit prices are
// kept in the bank currency; quantity supports fractional units.
type Asset struct {
	ID          int64           `json:"id" db:"id"`
	PortfolioID int64           `json:"portfolioId" db:"portfolio_id"`
	Symbol      string          `json:"symbol" db:"symbol"`
	Name        string          `json:"name" db:"name"`
	Class       AssetClass      `json:"class" db:"class"`
	UnitPrice   decimal.Decimal `json:"unitPrice" db:"unit_price"`
	Quantity    decimal.Decimal `json:"quantity" db:"quantity"`
	UpdatedAt   time.Time       `json:"updatedAt" db:"updated_at"`
}

// TotalValue returns unit price times quantity held.
func (a *Asset) TotalValue() decimal.Decimal {
	return a.UnitPrice.Mul(a.Quantity)
}
