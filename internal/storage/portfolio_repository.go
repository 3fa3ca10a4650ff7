package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	domerrors "github.com/ewallet-backend/internal/errors"
	"github.com/ewallet-backend/internal/models"
	"github.com/jackc/pgx/v5"
)

// PortfolioRepository handles portfolio data persistence
type PortfolioRepository struct {
	db *PostgresDB
}

// NewPortfolioRepository creates a new portfolio repository
func NewPortfolioRepository(db *PostgresDB) *PortfolioRepository {
	return &PortfolioRepository{db: db}
}

// Create creates a new portfolio and fills in its generated ID.
func (r *PortfolioRepository) Create(ctx context.Context, portfolio *models.Portfolio) error {
	now := time.Now()
	portfolio.CreatedAt = now
	portfolio.UpdatedAt = now

	query := `
		INSERT INTO portfolios (user_id, name, created_at, updated_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`

	err := r.db.Pool().QueryRow(ctx, query,
		portfolio.UserID,
		portfolio.Name,
		portfolio.CreatedAt,
		portfolio.UpdatedAt,
	).Scan(&portfolio.ID)
	if err != nil {
		return fmt.Errorf("failed to create portfolio: %w", err)
	}

	return nil
}

// GetByID retrieves a portfolio by ID
func (r *PortfolioRepository) GetByID(ctx context.Context, id int64) (*models.Portfolio, error) {
	query := `
		SELECT id, user_id, name, created_at, updated_at
		FROM portfolios
		WHERE id = $1
	`

	var portfolio models.Portfolio
	err := r.db.Pool().QueryRow(ctx, query, id).Scan(
		&portfolio.ID,
		&portfolio.UserID,
		&portfolio.Name,
		&portfolio.CreatedAt,
		&portfolio.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domerrors.NewPortfolioNotFound(strconv.FormatInt(id, 10))
		}
		return nil, fmt.Errorf("failed to get portfolio: %w", err)
	}

	return &portfolio, nil
}

// ListByUser retrieves all portfolios owned by a user, oldest first.
func (r *PortfolioRepository) ListByUser(ctx context.Context, userID string) ([]*models.Portfolio, error) {
	query := `
		SELECT id, user_id, name, created_at, updated_at
		FROM portfolios
		WHERE user_id = $1
		ORDER BY created_at, id
	`

	rows, err := r.db.Pool().Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list portfolios: %w", err)
	}
	defer rows.Close()

	var portfolios []*models.Portfolio
	for rows.Next() {
		var portfolio models.Portfolio
		if err := rows.Scan(
			&portfolio.ID,
			&portfolio.UserID,
			&portfolio.Name,
			&portfolio.CreatedAt,
			&portfolio.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan portfolio: %w", err)
		}
		portfolios = append(portfolios, &portfolio)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating portfolios: %w", err)
	}

	return portfolios, nil
}

// Update renames a portfolio
func (r *PortfolioRepository) Update(ctx context.Context, portfolio *models.Portfolio) error {
	portfolio.UpdatedAt = time.Now()

	result, err := r.db.Pool().Exec(ctx,
		`UPDATE portfolios SET name = $2, updated_at = $3 WHERE id = $1`,
		portfolio.ID, portfolio.Name, portfolio.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update portfolio: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domerrors.NewPortfolioNotFound(strconv.FormatInt(portfolio.ID, 10))
	}

	return nil
}

// Delete deletes a portfolio; its assets and trades cascade with it.
func (r *PortfolioRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.Pool().Exec(ctx, `DELETE FROM portfolios WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete portfolio: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domerrors.NewPortfolioNotFound(strconv.FormatInt(id, 10))
	}
	return nil
}
