package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	domerrors "github.com/ewallet-backend/internal/errors"
	"github.com/ewallet-backend/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

// AssetRepository handles portfolio holdings. A symbol is unique within a
// portfolio (enforced by the database).
type AssetRepository struct {
	db *PostgresDB
}

// NewAssetRepository creates a new asset repository
func NewAssetRepository(db *PostgresDB) *AssetRepository {
	return &AssetRepository{db: db}
}

const assetColumns = `id, portfolio_id, symbol, name, class, unit_price::text, quantity::text, updated_at`

func scanAsset(row pgx.Row) (*models.Asset, error) {
	var asset models.Asset
	var priceStr, quantityStr string

	if err := row.Scan(
		&asset.ID,
		&asset.PortfolioID,
		&asset.Symbol,
		&asset.Name,
		&asset.Class,
		&priceStr,
		&quantityStr,
		&asset.UpdatedAt,
	); err != nil {
		return nil, err
	}

	price, err := decimal.NewFromString(priceStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse unit price: %w", err)
	}
	quantity, err := decimal.NewFromString(quantityStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse quantity: %w", err)
	}
	asset.UnitPrice = price
	asset.Quantity = quantity

	return &asset, nil
}

// Create adds a holding to a portfolio.
func (r *AssetRepository) Create(ctx context.Context, asset *models.Asset) error {
	asset.UpdatedAt = time.Now()

	query := `
		INSERT INTO assets (portfolio_id, symbol, name, class, unit_price, quantity, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`

	err := r.db.Pool().QueryRow(ctx, query,
		asset.PortfolioID,
		asset.Symbol,
		asset.Name,
		string(asset.Class),
		asset.UnitPrice.String(),
		asset.Quantity.String(),
		asset.UpdatedAt,
	).Scan(&asset.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return domerrors.NewDuplicateAsset(asset.Symbol)
		}
		return fmt.Errorf("failed to create asset: %w", err)
	}

	return nil
}

// GetBySymbol retrieves a holding by portfolio and symbol.
func (r *AssetRepository) GetBySymbol(ctx context.Context, portfolioID int64, symbol string) (*models.Asset, error) {
	query := `SELECT ` + assetColumns + ` FROM assets WHERE portfolio_id = $1 AND symbol = $2`

	asset, err := scanAsset(r.db.Pool().QueryRow(ctx, query, portfolioID, symbol))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domerrors.NewAssetNotFound(symbol)
		}
		return nil, fmt.Errorf("failed to get asset: %w", err)
	}
	return asset, nil
}

// ListByPortfolio retrieves all holdings in a portfolio.
func (r *AssetRepository) ListByPortfolio(ctx context.Context, portfolioID int64) ([]*models.Asset, error) {
	query := `SELECT ` + assetColumns + ` FROM assets WHERE portfolio_id = $1 ORDER BY symbol`

	rows, err := r.db.Pool().Query(ctx, query, portfolioID)
	if err != nil {
		return nil, fmt.Errorf("failed to list assets: %w", err)
	}
	defer rows.Close()

	var assets []*models.Asset
	for rows.Next() {
		asset, err := scanAsset(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan asset: %w", err)
		}
		assets = append(assets, asset)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating assets: %w", err)
	}

	return assets, nil
}

// ListByUser retrieves all holdings across a user's portfolios.
func (r *AssetRepository) ListByUser(ctx context.Context, userID string) ([]*models.Asset, error) {
	query := `
		SELECT a.id, a.portfolio_id, a.symbol, a.name, a.class, a.unit_price::text, a.quantity::text, a.updated_at
		FROM assets a
		JOIN portfolios p ON p.id = a.portfolio_id
		WHERE p.user_id = $1
		ORDER BY a.portfolio_id, a.symbol
	`

	rows, err := r.db.Pool().Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list user assets: %w", err)
	}
	defer rows.Close()

	var assets []*models.Asset
	for rows.Next() {
		asset, err := scanAsset(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan asset: %w", err)
		}
		assets = append(assets, asset)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating assets: %w", err)
	}

	return assets, nil
}

// UpdatePrice stores a refreshed unit price for a holding.
func (r *AssetRepository) UpdatePrice(ctx context.Context, id int64, price decimal.Decimal) error {
	result, err := r.db.Pool().Exec(ctx,
		`UPDATE assets SET unit_price = $2, updated_at = $3 WHERE id = $1`,
		id, price.String(), time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to update asset price: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domerrors.NewAssetNotFound(fmt.Sprintf("id=%d", id))
	}
	return nil
}

// UpdateQuantity stores a new quantity for a holding.
func (r *AssetRepository) UpdateQuantity(ctx context.Context, id int64, quantity decimal.Decimal) error {
	result, err := r.db.Pool().Exec(ctx,
		`UPDATE assets SET quantity = $2, updated_at = $3 WHERE id = $1`,
		id, quantity.String(), time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to update asset quantity: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domerrors.NewAssetNotFound(fmt.Sprintf("id=%d", id))
	}
	return nil
}

// Delete removes a holding from a portfolio.
func (r *AssetRepository) Delete(ctx context.Context, portfolioID int64, symbol string) error {
	result, err := r.db.Pool().Exec(ctx,
		`DELETE FROM assets WHERE portfolio_id = $1 AND symbol = $2`,
		portfolioID, symbol,
	)
	if err != nil {
		return fmt.Errorf("failed to delete asset: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domerrors.NewAssetNotFound(symbol)
	}
	return nil
}
