package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account represents a bank-style account holding a cash balance.
// The balance is only ever mutated through the ledger; every change is
// paired with a Transaction record in the same database transaction.
type Account struct {
	ID        string          `json:"id" db:"id"`
	UserID    string          `json:"userId" db:"user_id"`
	Name      string          `json:"name" db:"name"`
	Type      string          `json:"type" db:"type"`
	Balance   decimal.Decimal `json:"balance" db:"balance"`
	CreatedAt time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time       `json:"updatedAt" db:"updated_at"`
}
