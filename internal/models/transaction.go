package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType represents the kind of ledger operation
type TransactionType string

const (
	TransactionDeposit  TransactionType = "deposit"
	TransactionWithdraw TransactionType = "withdraw"
)

// ParseTransactionType normalizes a free-form type string. Matching is
// case-insensitive; anything other than deposit/withdraw is rejected.
func ParseTransactionType(s string) (TransactionType, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case string(TransactionDeposit):
		return TransactionDeposit, true
	case string(TransactionWithdraw):
		return TransactionWithdraw, true
	default:
		return "", false
	}
}

// Transaction represents a single ledger entry on an account.
// Immutable once created.
type Transaction struct {
	ID          string          `json:"id" db:"id"`
	AccountID   string          `json:"accountId" db:"account_id"`
	Type        TransactionType `json:"type" db:"type"`
	Amount      decimal.Decimal `json:"amount" db:"amount"`
	Description *string         `json:"description,omitempty" db:"description"`
	CreatedAt   time.Time       `json:"createdAt" db:"created_at"`
}
