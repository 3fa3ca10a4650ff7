package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ewallet-backend/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// WealthRepository persists the latest wealth snapshot per user plus an
// append-only total-wealth history used for growth calculations.
type WealthRepository struct {
	db *PostgresDB
}

// NewWealthRepository creates a new wealth repository
func NewWealthRepository(db *PostgresDB) *WealthRepository {
	return &WealthRepository{db: db}
}

// SaveSnapshot upserts the latest snapshot for a user and appends its
// total to the history, in one database transaction.
func (r *WealthRepository) SaveSnapshot(ctx context.Context, snapshot *models.WealthSnapshot) error {
	tx, err := r.db.Pool().Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) // nolint:errcheck // no-op after commit

	query := `
		INSERT INTO wealth_trackers (user_id, currency, total_cash, total_crypto, total_stocks, total_wealth, growth_rate, computed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (user_id) DO UPDATE SET
			currency = EXCLUDED.currency,
			total_cash = EXCLUDED.total_cash,
			total_crypto = EXCLUDED.total_crypto,
			total_stocks = EXCLUDED.total_stocks,
			total_wealth = EXCLUDED.total_wealth,
			growth_rate = EXCLUDED.growth_rate,
			computed_at = EXCLUDED.computed_at
	`

	if _, err := tx.Exec(ctx, query,
		snapshot.UserID,
		snapshot.Currency,
		snapshot.TotalCash.String(),
		snapshot.TotalCrypto.String(),
		snapshot.TotalStocks.String(),
		snapshot.TotalWealth.String(),
		snapshot.GrowthRate.String(),
		snapshot.ComputedAt,
	); err != nil {
		return fmt.Errorf("failed to save wealth snapshot: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO wealth_history (user_id, total_wealth, recorded_at) VALUES ($1, $2, $3)`,
		snapshot.UserID, snapshot.TotalWealth.String(), snapshot.ComputedAt,
	); err != nil {
		return fmt.Errorf("failed to append wealth history: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit wealth snapshot: %w", err)
	}

	return nil
}

// GetSnapshot returns the most recently recorded snapshot for a user, or
// nil when none has been recorded yet.
func (r *WealthRepository) GetSnapshot(ctx context.Context, userID string) (*models.WealthSnapshot, error) {
	query := `
		SELECT user_id, currency, total_cash::text, total_crypto::text, total_stocks::text, total_wealth::text, growth_rate::text, computed_at
		FROM wealth_trackers
		WHERE user_id = $1
	`

	var snapshot models.WealthSnapshot
	var cashStr, cryptoStr, stocksStr, wealthStr, growthStr string

	err := r.db.Pool().QueryRow(ctx, query, userID).Scan(
		&snapshot.UserID,
		&snapshot.Currency,
		&cashStr,
		&cryptoStr,
		&stocksStr,
		&wealthStr,
		&growthStr,
		&snapshot.ComputedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get wealth snapshot: %w", err)
	}

	fields := []struct {
		dst *decimal.Decimal
		src string
	}{
		{&snapshot.TotalCash, cashStr},
		{&snapshot.TotalCrypto, cryptoStr},
		{&snapshot.TotalStocks, stocksStr},
		{&snapshot.TotalWealth, wealthStr},
		{&snapshot.GrowthRate, growthStr},
	}
	for _, f := range fields {
		value, err := decimal.NewFromString(f.src)
		if err != nil {
			return nil, fmt.Errorf("failed to parse snapshot value: %w", err)
		}
		*f.dst = value
	}

	return &snapshot, nil
}

// HistoryPoint is one entry in a user's total-wealth history.
type HistoryPoint struct {
	TotalWealth decimal.Decimal `json:"totalWealth"`
	RecordedAt  time.Time       `json:"recordedAt"`
}

// ListHistory returns a user's wealth history in recording order.
func (r *WealthRepository) ListHistory(ctx context.Context, userID string) ([]HistoryPoint, error) {
	query := `
		SELECT total_wealth::text, recorded_at
		FROM wealth_history
		WHERE user_id = $1
		ORDER BY recorded_at, id
	`

	rows, err := r.db.Pool().Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list wealth history: %w", err)
	}
	defer rows.Close()

	history := make([]HistoryPoint, 0)
	for rows.Next() {
		var point HistoryPoint
		var wealthStr string
		if err := rows.Scan(&wealthStr, &point.RecordedAt); err != nil {
			return nil, fmt.Errorf("failed to scan history point: %w", err)
		}
		value, err := decimal.NewFromString(wealthStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse history value: %w", err)
		}
		point.TotalWealth = value
		history = append(history, point)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating wealth history: %w", err)
	}

	return history, nil
}

// HistoryValues returns just the totals from a user's history, in
// recording order, for growth-rate calculation.
func (r *WealthRepository) HistoryValues(ctx context.Context, userID string) ([]decimal.Decimal, error) {
	history, err := r.ListHistory(ctx, userID)
	if err != nil {
		return nil, err
	}
	values := make([]decimal.Decimal, len(history))
	for i, point := range history {
		values[i] = point.TotalWealth
	}
	return values, nil
}
