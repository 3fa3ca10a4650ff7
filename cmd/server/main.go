// Package main provides the API server entry point for the e-wallet
// service.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/ewallet-backend/internal/api"
	"github.com/ewallet-backend/internal/config"
	"github.com/ewallet-backend/internal/connector"
	"github.com/ewallet-backend/internal/job"
	"github.com/ewallet-backend/internal/logging"
	"github.com/ewallet-backend/internal/ratelimit"
	"github.com/ewallet-backend/internal/service"
	"github.com/ewallet-backend/internal/storage"
	"github.com/ewallet-backend/internal/worker"
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
	logger.WithFields(map[string]interface{}{
		"level":  cfg.Logging.Level,
		"format": cfg.Logging.Format,
	}).Info("structured logging initialized")

	// Database connections
	postgres, err := storage.NewPostgresDB(&cfg.Database.Postgres)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to Postgres")
	}
	defer postgres.Close()

	redis, err := storage.NewRedisCache(&cfg.Database.Redis)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to Redis")
	}
	defer redis.Close()

	logger.Info("database connections established")

	// Repositories
	userRepo := storage.NewUserRepository(postgres)
	accountRepo := storage.NewAccountRepository(postgres)
	transactionRepo := storage.NewTransactionRepository(postgres)
	portfolioRepo := storage.NewPortfolioRepository(postgres)
	assetRepo := storage.NewAssetRepository(postgres)
	tradeRepo := storage.NewTradeRepository(postgres)
	wealthRepo := storage.NewWealthRepository(postgres)

	viewCache := storage.NewViewCache(redis, cfg.Cache.WealthViewTTL)

	// Provider quota budgeting. Both data connectors share one Redis
	// backed budget; interactive requests draw from the reserved pool,
	// the refresh worker from the shared pool.
	quotaCfg := ratelimit.LoadFromEnv()
	tracker, err := ratelimit.NewBudgetTracker(&ratelimit.BudgetTrackerConfig{
		Redis: redis.Client(),
		Quota: quotaCfg,
	})
	if err != nil {
		logger.WithError(err).Fatal("Failed to create quota tracker")
	}
	costs := ratelimit.NewCostRegistry(&ratelimit.CostRegistryConfig{
		DefaultCost: quotaCfg.DefaultEndpointCost,
	})
	quotaMetrics := ratelimit.NewUsageMetrics()
	budgetCfg := &ratelimit.BudgetedSourceConfig{
		Tracker:      tracker,
		CostRegistry: costs,
		Priority:     ratelimit.PriorityInteractive,
		Metrics:      quotaMetrics,
	}

	// External data connectors
	rates, err := ratelimit.NewBudgetedRateSource(
		connector.NewFrankfurterClient(cfg.Currency.RatesURL), budgetCfg)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create budgeted rate source")
	}
	prices, err := ratelimit.NewBudgetedPriceSource(
		connector.NewHTTPMarketClient(&cfg.Market), budgetCfg)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create budgeted price source")
	}
	converter := connector.NewConverter(rates, &cfg.Cache, logger)
	market := connector.NewMarketConnector(prices, &cfg.Cache, logger)

	// Services
	userService := service.NewUserService(userRepo, accountRepo, logger)
	ledgerService := service.NewLedgerService(accountRepo, transactionRepo, viewCache, logger)
	portfolioService := service.NewPortfolioService(
		portfolioRepo, assetRepo, tradeRepo,
		market, converter, cfg.Currency.BankCurrency,
		viewCache, logger,
	)
	wealthService := service.NewWealthService(
		userRepo, accountRepo, assetRepo, wealthRepo,
		converter, cfg.Currency.BankCurrency, cfg.Currency.ReportingCurrency,
		viewCache, logger,
	)

	logger.Info("services initialized")

	// Background refresh: a job queue drains wealth snapshots through a
	// bounded worker pool, and the refresh worker feeds it stalest-first.
	rootCtx, cancelBackground := context.WithCancel(context.Background())
	defer cancelBackground()

	snapshotJobs := job.NewSnapshotJobService(wealthService, logger)
	snapshotQueue := job.NewSnapshotQueue(snapshotJobs, cfg.Worker.SnapshotWorkers, logger)
	if err := snapshotQueue.Start(rootCtx); err != nil {
		logger.WithError(err).Fatal("Failed to start snapshot queue")
	}

	var refreshWorker *worker.RefreshWorker
	if cfg.Worker.Enabled {
		pacer, err := ratelimit.NewRefreshRateController(&ratelimit.RefreshRateControllerConfig{
			Tracker: tracker,
		})
		if err != nil {
			logger.WithError(err).Fatal("Failed to create refresh pacer")
		}

		refreshWorker, err = worker.NewRefreshWorker(&worker.RefreshWorkerConfig{
			Users:      userService,
			Portfolios: portfolioService,
			Wealth:     wealthService,
			Jobs:       snapshotQueue,
			Pacer:      pacer,
			Interval:   cfg.Worker.RefreshInterval,
			PageSize:   cfg.Worker.PageSize,
			Logger:     logger,
		})
		if err != nil {
			logger.WithError(err).Fatal("Failed to create refresh worker")
		}
		if err := refreshWorker.Start(rootCtx); err != nil {
			logger.WithError(err).Fatal("Failed to start refresh worker")
		}
	}

	server := api.NewServer(
		&cfg.Server, &cfg.RateLimit,
		userService, ledgerService, portfolioService, wealthService,
		logger,
	)

	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("Server failed to start")
		}
	}()

	logger.WithFields(map[string]interface{}{
		"host": cfg.Server.Host,
		"port": cfg.Server.Port,
	}).Info("server started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if refreshWorker != nil {
		if err := refreshWorker.Stop(shutdownCtx); err != nil {
			logger.WithError(err).Warn("refresh worker did not stop cleanly")
		}
	}
	if err := snapshotQueue.Stop(); err != nil {
		logger.WithError(err).Warn("snapshot queue did not stop cleanly")
	}

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Fatal("Server forced to shutdown")
	}

	logger.Info("server exited")
}
