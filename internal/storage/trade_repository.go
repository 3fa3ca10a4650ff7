package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/ewallet-backend/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// TradeRepository handles portfolio trade (BUY/SELL) persistence
type TradeRepository struct {
	db *PostgresDB
}

// NewTradeRepository creates a new trade repository
func NewTradeRepository(db *PostgresDB) *TradeRepository {
	return &TradeRepository{db: db}
}

// Create records an executed trade.
func (r *TradeRepository) Create(ctx context.Context, trade *models.Trade) error {
	if trade.ID == "" {
		trade.ID = uuid.New().String()
	}
	if trade.ExecutedAt.IsZero() {
		trade.ExecutedAt = time.Now()
	}

	query := `
		INSERT INTO trades (id, portfolio_id, symbol, side, quantity, unit_price, executed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.db.Pool().Exec(ctx, query,
		trade.ID,
		trade.PortfolioID,
		trade.Symbol,
		string(trade.Side),
		trade.Quantity.String(),
		trade.UnitPrice.String(),
		trade.ExecutedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create trade: %w", err)
	}

	return nil
}

// ListByPortfolio returns a portfolio's trades in execution order.
func (r *TradeRepository) ListByPortfolio(ctx context.Context, portfolioID int64) ([]*models.Trade, error) {
	query := `
		SELECT id, portfolio_id, symbol, side, quantity::text, unit_price::text, executed_at
		FROM trades
		WHERE portfolio_id = $1
		ORDER BY executed_at, id
	`

	rows, err := r.db.Pool().Query(ctx, query, portfolioID)
	if err != nil {
		return nil, fmt.Errorf("failed to list trades: %w", err)
	}
	defer rows.Close()

	trades := make([]*models.Trade, 0)
	for rows.Next() {
		trade, err := scanTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trade: %w", err)
		}
		trades = append(trades, trade)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating trades: %w", err)
	}

	return trades, nil
}

func scanTrade(row pgx.Row) (*models.Trade, error) {
	var trade models.Trade
	var quantityStr, priceStr string

	if err := row.Scan(
		&trade.ID,
		&trade.PortfolioID,
		&trade.Symbol,
		&trade.Side,
		&quantityStr,
		&priceStr,
		&trade.ExecutedAt,
	); err != nil {
		return nil, err
	}

	quantity, err := decimal.NewFromString(quantityStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse quantity: %w", err)
	}
	price, err := decimal.NewFromString(priceStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse unit price: %w", err)
	}
	trade.Quantity = quantity
	trade.UnitPrice = price

	return &trade, nil
}
