// Package api provides the HTTP API server implementation.
package api

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/ewallet-backend/internal/config"
	"github.com/ewallet-backend/internal/logging"
	"github.com/ewallet-backend/internal/models"
	"github.com/ewallet-backend/internal/service"
	"github.com/ewallet-backend/internal/storage"
)

// Service interfaces for dependency injection and testing

// UserServiceInterface defines the interface for user operations
type UserServiceInterface interface {
	Register(ctx context.Context, input service.RegisterInput) (*models.User, error)
	Authenticate(ctx context.Context, email, password string) (*models.User, error)
	GetUser(ctx context.Context, id string) (*models.User, error)
	TotalBalance(ctx context.Context, userID string) (*models.User, []*models.Account, error)
	UpdateUser(ctx context.Context, id string, input service.UpdateUserInput) (*models.User, error)
	DeleteUser(ctx context.Context, id string) error
	ListUsers(ctx context.Context, limit, offset int) ([]*models.User, error)
}

// LedgerServiceInterface defines the interface for account and ledger operations
type LedgerServiceInterface interface {
	CreateAccount(ctx context.Context, input service.CreateAccountInput) (*models.Account, error)
	GetAccount(ctx context.Context, id string) (*models.Account, error)
	ListAccounts(ctx context.Context, userID string) ([]*models.Account, error)
	UpdateAccount(ctx context.Context, id string, name, accountType *string) (*models.Account, error)
	DeleteAccount(ctx context.Context, id string) error
	Apply(ctx context.Context, input service.ApplyInput) (*models.Account, *models.Transaction, error)
	Transfer(ctx context.Context, input service.TransferInput) error
	GetTransaction(ctx context.Context, id string) (*models.Transaction, error)
	ListTransactions(ctx context.Context, accountID string) ([]*models.Transaction, error)
}

// PortfolioServiceInterface defines the interface for portfolio operations
type PortfolioServiceInterface interface {
	CreatePortfolio(ctx context.Context, userID, name string) (*models.Portfolio, error)
	GetPortfolio(ctx context.Context, id int64) (*service.PortfolioView, error)
	ListPortfolios(ctx context.Context, userID string) ([]*models.Portfolio, error)
	RenamePortfolio(ctx context.Context, id int64, name string) (*models.Portfolio, error)
	DeletePortfolio(ctx context.Context, id int64) error
	AddAsset(ctx context.Context, input service.AddAssetInput) (*models.Asset, error)
	UpdateAsset(ctx context.Context, portfolioID int64, symbol string, input service.UpdateAssetInput) (*models.Asset, error)
	RemoveAsset(ctx context.Context, portfolioID int64, symbol string) error
	RecordTrade(ctx context.Context, input service.TradeInput) (*models.Trade, error)
	ListTrades(ctx context.Context, portfolioID int64) ([]*models.Trade, error)
	RefreshPrices(ctx context.Context, portfolioID int64) (*service.PortfolioView, error)
}

// WealthServiceInterface defines the interface for wealth aggregation
type WealthServiceInterface interface {
	GetWealthView(ctx context.Context, userID string) (*models.WealthSnapshot, error)
	RecordSnapshot(ctx context.Context, userID string) (*models.WealthSnapshot, error)
	GetHistory(ctx context.Context, userID string) ([]storage.HistoryPoint, error)
	GetLastSnapshot(ctx context.Context, userID string) (*models.WealthSnapshot, error)
}

// Server represents the HTTP API server.
type Server struct {
	router           *mux.Router
	httpServer       *http.Server
	userService      UserServiceInterface
	ledgerService    LedgerServiceInterface
	portfolioService PortfolioServiceInterface
	wealthService    WealthServiceInterface
	logger           *logging.Logger
	config           *config.ServerConfig
}

// NewServer creates a new API server instance.
func NewServer(
	cfg *config.ServerConfig,
	rateLimitCfg *config.RateLimitConfig,
	userService UserServiceInterface,
	ledgerService LedgerServiceInterface,
	portfolioService PortfolioServiceInterface,
	wealthService WealthServiceInterface,
	logger *logging.Logger,
) *Server {
	s := &Server{
		router:           mux.NewRouter(),
		userService:      userService,
		ledgerService:    ledgerService,
		portfolioService: portfolioService,
		wealthService:    wealthService,
		logger:           logger,
		config:           cfg,
	}

	s.setupRouter(rateLimitCfg)

	return s
}

// setupRouter configures the router with middleware and routes
func (s *Server) setupRouter(rateLimitCfg *config.RateLimitConfig) {
	rateLimiter := NewRateLimiter(rateLimitCfg.RequestsPerSecond, rateLimitCfg.Burst)

	// Middleware order matters: logging wraps everything, recovery
	// before anything that can panic, rate limiting after CORS so
	// preflights are never throttled.
	s.router.Use(LoggingMiddleware(s.logger))
	s.router.Use(RecoveryMiddleware(s.logger))
	s.router.Use(CORSMiddleware)
	s.router.Use(RateLimitMiddleware(rateLimiter))
	s.router.Use(CompressionMiddleware)

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         s.config.Host + ":" + s.config.Port,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")

	api := s.router.PathPrefix("/api").Subrouter()

	// User endpoints
	api.HandleFunc("/users", s.handleRegister).Methods("POST")
	api.HandleFunc("/users", s.handleListUsers).Methods("GET")
	api.HandleFunc("/users/{id}", s.handleGetUser).Methods("GET")
	api.HandleFunc("/users/{id}", s.handleUpdateUser).Methods("PUT")
	api.HandleFunc("/users/{id}", s.handleDeleteUser).Methods("DELETE")
	api.HandleFunc("/users/{id}/balance", s.handleTotalBalance).Methods("GET")
	api.HandleFunc("/auth/login", s.handleLogin).Methods("POST")

	// Account and ledger endpoints
	api.HandleFunc("/accounts", s.handleCreateAccount).Methods("POST")
	api.HandleFunc("/accounts/{id}", s.handleGetAccount).Methods("GET")
	api.HandleFunc("/accounts/{id}", s.handleUpdateAccount).Methods("PUT")
	api.HandleFunc("/accounts/{id}", s.handleDeleteAccount).Methods("DELETE")
	api.HandleFunc("/accounts/{id}/transactions", s.handleApplyTransaction).Methods("POST")
	api.HandleFunc("/accounts/{id}/transactions", s.handleListTransactions).Methods("GET")
	api.HandleFunc("/users/{id}/accounts", s.handleListAccounts).Methods("GET")
	api.HandleFunc("/transactions/{id}", s.handleGetTransaction).Methods("GET")
	api.HandleFunc("/transfers", s.handleTransfer).Methods("POST")

	// Portfolio endpoints
	api.HandleFunc("/portfolios", s.handleCreatePortfolio).Methods("POST")
	api.HandleFunc("/portfolios/{id}", s.handleGetPortfolio).Methods("GET")
	api.HandleFunc("/portfolios/{id}", s.handleRenamePortfolio).Methods("PUT")
	api.HandleFunc("/portfolios/{id}", s.handleDeletePortfolio).Methods("DELETE")
	api.HandleFunc("/portfolios/{id}/assets", s.handleAddAsset).Methods("POST")
	api.HandleFunc("/portfolios/{id}/assets/{symbol}", s.handleUpdateAsset).Methods("PUT")
	api.HandleFunc("/portfolios/{id}/assets/{symbol}", s.handleRemoveAsset).Methods("DELETE")
	api.HandleFunc("/portfolios/{id}/trades", s.handleRecordTrade).Methods("POST")
	api.HandleFunc("/portfolios/{id}/trades", s.handleListTrades).Methods("GET")
	api.HandleFunc("/portfolios/{id}/refresh", s.handleRefreshPrices).Methods("POST")
	api.HandleFunc("/users/{id}/portfolios", s.handleListPortfolios).Methods("GET")

	// Wealth endpoints
	api.HandleFunc("/users/{id}/wealth", s.handleGetWealth).Methods("GET")
	api.HandleFunc("/users/{id}/wealth/snapshots", s.handleRecordSnapshot).Methods("POST")
	api.HandleFunc("/users/{id}/wealth/snapshots/latest", s.handleGetLastSnapshot).Methods("GET")
	api.HandleFunc("/users/{id}/wealth/history", s.handleGetWealthHistory).Methods("GET")
}

// handleHealth handles health check requests.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "ewallet-backend",
	})
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.WithField("addr", s.httpServer.Addr).Info("starting API server")
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down API server")

	shutdownCtx := ctx
	if s.config.ShutdownTimeout > 0 {
		var cancel context.CancelFunc
		shutdownCtx, cancel = context.WithTimeout(ctx, s.config.ShutdownTimeout)
		defer cancel()
	}

	return s.httpServer.Shutdown(shutdownCtx)
}
