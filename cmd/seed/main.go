// Package main seeds the database with a demo user for local
// development.
package main

import (
	"context"

	"github.com/ewallet-backend/internal/config"
	"github.com/ewallet-backend/internal/connector"
	"github.com/ewallet-backend/internal/logging"
	"github.com/ewallet-backend/internal/service"
	"github.com/ewallet-backend/internal/storage"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logging.GetGlobalLogger().WithError(err).Fatal("Failed to load configuration")
	}

	logging.InitGlobalLogger(
		logging.ParseLogLevel(cfg.Logging.Level),
		logging.ParseLogFormat(cfg.Logging.Format),
	)
	logger := logging.GetGlobalLogger()

	postgres, err := storage.NewPostgresDB(&cfg.Database.Postgres)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to Postgres")
	}
	defer postgres.Close()

	userRepo := storage.NewUserRepository(postgres)
	accountRepo := storage.NewAccountRepository(postgres)
	transactionRepo := storage.NewTransactionRepository(postgres)
	portfolioRepo := storage.NewPortfolioRepository(postgres)
	assetRepo := storage.NewAssetRepository(postgres)
	tradeRepo := storage.NewTradeRepository(postgres)
	wealthRepo := storage.NewWealthRepository(postgres)

	converter := connector.NewConverter(
		connector.NewFrankfurterClient(cfg.Currency.RatesURL),
		&cfg.Cache,
		logger,
	)

	users := service.NewUserService(userRepo, accountRepo, logger)
	ledger := service.NewLedgerService(accountRepo, transactionRepo, nil, logger)
	portfolios := service.NewPortfolioService(
		portfolioRepo, assetRepo, tradeRepo,
		nil, converter, cfg.Currency.BankCurrency,
		nil, logger,
	)
	wealth := service.NewWealthService(
		userRepo, accountRepo, assetRepo, wealthRepo,
		converter, cfg.Currency.BankCurrency, cfg.Currency.ReportingCurrency,
		nil, logger,
	)

	seeder := service.NewSeeder(users, ledger, portfolios, wealth, logger)
	user, err := seeder.SeedDemoUser(context.Background())
	if err != nil {
		logger.WithError(err).Fatal("Seeding failed")
	}

	logger.WithField("userId", user.ID).Info("seeding complete")
}
