package service

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	domerrors "github.com/ewallet-backend/internal/errors"
	"github.com/ewallet-backend/internal/logging"
	"github.com/ewallet-backend/internal/models"
)

// Seeder populates a demo user with accounts, a portfolio and an initial
// wealth snapshot. Intended for local development and demos; seeding is
// idempotent per email.
type Seeder struct {
	users      *UserService
	ledger     *LedgerService
	portfolios *PortfolioService
	wealth     *WealthService
	logger     *logging.Logger
}

// NewSeeder creates a new seeder
func NewSeeder(users *UserService, ledger *LedgerService, portfolios *PortfolioService, wealth *WealthService, logger *logging.Logger) *Seeder {
	return &Seeder{
		users:      users,
		ledger:     ledger,
		portfolios: portfolios,
		wealth:     wealth,
		logger:     logger,
	}
}

// SeedDemoUser creates the demo user with one funded account and a
// starter portfolio, then records a first wealth snapshot. Running it
// again against the same database is a no-op.
func (s *Seeder) SeedDemoUser(ctx context.Context) (*models.User, error) {
	user, err := s.users.Register(ctx, RegisterInput{
		Email:     "demo@ewallet.local",
		Password:  "demo-password",
		FirstName: "Demo",
		LastName:  "User",
	})
	if err != nil {
		if domerrors.IsCode(err, domerrors.CodeEmailTaken) {
			s.logger.Info("demo user already seeded")
			return s.users.userRepo.GetByEmail(ctx, "demo@ewallet.local")
		}
		return nil, err
	}

	account, err := s.ledger.CreateAccount(ctx, CreateAccountInput{
		UserID: user.ID,
		Name:   "Main Account",
		Type:   "checking",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to seed account: %w", err)
	}
	if _, _, err := s.ledger.Apply(ctx, ApplyInput{
		AccountID: account.ID,
		Type:      "deposit",
		Amount:    decimal.NewFromInt(2000),
	}); err != nil {
		return nil, fmt.Errorf("failed to seed deposit: %w", err)
	}

	portfolio, err := s.portfolios.CreatePortfolio(ctx, user.ID, "Starter Portfolio")
	if err != nil {
		return nil, fmt.Errorf("failed to seed portfolio: %w", err)
	}

	holdings := []AddAssetInput{
		{PortfolioID: portfolio.ID, Symbol: "ACME", Name: "Acme Corp", Class: "stock",
			UnitPrice: decimal.NewFromInt(200), Quantity: decimal.NewFromInt(10)},
		{PortfolioID: portfolio.ID, Symbol: "BTC", Name: "Bitcoin", Class: "crypto",
			UnitPrice: decimal.NewFromInt(60000), Quantity: decimal.RequireFromString("0.1")},
	}
	for _, holding := range holdings {
		if _, err := s.portfolios.AddAsset(ctx, holding); err != nil {
			return nil, fmt.Errorf("failed to seed asset %s: %w", holding.Symbol, err)
		}
	}

	if _, err := s.wealth.RecordSnapshot(ctx, user.ID); err != nil {
		// The snapshot needs a live exchange rate; seeding the data
		// itself still succeeded.
		s.logger.WithError(err).Warn("could not record initial wealth snapshot")
	}

	s.logger.WithField("userId", user.ID).Info("demo user seeded")
	return user, nil
}
