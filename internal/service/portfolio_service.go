package service

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	domerrors "github.com/ewallet-backend/internal/errors"
	"github.com/ewallet-backend/internal/logging"
	"github.com/ewallet-backend/internal/models"
)

// PortfolioRepository interface for portfolio data operations
type PortfolioRepository interface {
	Create(ctx context.Context, portfolio *models.Portfolio) error
	GetByID(ctx context.Context, id int64) (*models.Portfolio, error)
	ListByUser(ctx context.Context, userID string) ([]*models.Portfolio, error)
	Update(ctx context.Context, portfolio *models.Portfolio) error
	Delete(ctx context.Context, id int64) error
}

// AssetRepository interface for holding data operations
type AssetRepository interface {
	Create(ctx context.Context, asset *models.Asset) error
	GetBySymbol(ctx context.Context, portfolioID int64, symbol string) (*models.Asset, error)
	ListByPortfolio(ctx context.Context, portfolioID int64) ([]*models.Asset, error)
	ListByUser(ctx context.Context, userID string) ([]*models.Asset, error)
	UpdatePrice(ctx context.Context, id int64, price decimal.Decimal) error
	UpdateQuantity(ctx context.Context, id int64, quantity decimal.Decimal) error
	Delete(ctx context.Context, portfolioID int64, symbol string) error
}

// TradeRepository interface for trade records
type TradeRepository interface {
	Create(ctx context.Context, trade *models.Trade) error
	ListByPortfolio(ctx context.Context, portfolioID int64) ([]*models.Trade, error)
}

// PriceProvider serves current USD unit prices for traded symbols.
type PriceProvider interface {
	PriceFor(ctx context.Context, class models.AssetClass, symbol string) (decimal.Decimal, error)
}

// CurrencyConverter converts amounts between currencies.
type CurrencyConverter interface {
	Convert(ctx context.Context, amount decimal.Decimal, from, to string) (decimal.Decimal, error)
}

// PortfolioViewCache invalidates cached views affected by portfolio
// mutations. Matches storage.ViewCache.
type PortfolioViewCache interface {
	Invalidate(ctx context.Context, keys ...string) error
	InvalidateUser(ctx context.Context, userID string) error
	PortfolioKey(portfolioID string) string
}

// PortfolioService handles portfolios, their holdings and trades
type PortfolioService struct {
	portfolioRepo  PortfolioRepository
	assetRepo      AssetRepository
	tradeRepo      TradeRepository
	market         PriceProvider
	converter      CurrencyConverter
	bankCurrency   string
	views          PortfolioViewCache
	logger         *logging.Logger
	portfolioLocks *keyedLocks
}

// NewPortfolioService creates a new portfolio service. market, converter
// and views may be nil; price refresh then degrades accordingly.
func NewPortfolioService(
	portfolioRepo PortfolioRepository,
	assetRepo AssetRepository,
	tradeRepo TradeRepository,
	market PriceProvider,
	converter CurrencyConverter,
	bankCurrency string,
	views PortfolioViewCache,
	logger *logging.Logger,
) *PortfolioService {
	return &PortfolioService{
		portfolioRepo:  portfolioRepo,
		assetRepo:      assetRepo,
		tradeRepo:      tradeRepo,
		market:         market,
		converter:      converter,
		bankCurrency:   bankCurrency,
		views:          views,
		logger:         logger,
		portfolioLocks: newKeyedLocks(),
	}
}

// Input types

// AddAssetInput represents input for adding a holding to a portfolio
type AddAssetInput struct {
	PortfolioID int64           `json:"portfolioId"`
	Symbol      string          `json:"symbol"`
	Name        string          `json:"name"`
	Class       string          `json:"class"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	Quantity    decimal.Decimal `json:"quantity"`
}

// UpdateAssetInput represents input for repricing or resizing a holding
type UpdateAssetInput struct {
	UnitPrice *decimal.Decimal `json:"unitPrice,omitempty"`
	Quantity  *decimal.Decimal `json:"quantity,omitempty"`
}

// TradeInput represents input for executing a trade against a portfolio
type TradeInput struct {
	PortfolioID int64           `json:"portfolioId"`
	Symbol      string          `json:"symbol"`
	Side        string          `json:"side"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
}

// PortfolioView is a portfolio with its holdings and aggregate value
type PortfolioView struct {
	Portfolio  *models.Portfolio `json:"portfolio"`
	Assets     []*models.Asset   `json:"assets"`
	TotalValue decimal.Decimal   `json:"totalValue"`
}

// CreatePortfolio creates an empty portfolio for a user
func (s *PortfolioService) CreatePortfolio(ctx context.Context, userID, name string) (*models.Portfolio, error) {
	if userID == "" {
		return nil, domerrors.NewInvalidInput("userId is required")
	}
	if strings.TrimSpace(name) == "" {
		return nil, domerrors.NewInvalidInput("name is required")
	}

	portfolio := &models.Portfolio{UserID: userID, Name: strings.TrimSpace(name)}
	if err := s.portfolioRepo.Create(ctx, portfolio); err != nil {
		return nil, err
	}

	s.logger.WithFields(map[string]interface{}{
		"portfolioId": portfolio.ID,
		"userId":      userID,
	}).Info("portfolio created")

	return portfolio, nil
}

// GetPortfolio returns a portfolio together with its holdings and value
func (s *PortfolioService) GetPortfolio(ctx context.Context, id int64) (*PortfolioView, error) {
	portfolio, err := s.portfolioRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	assets, err := s.assetRepo.ListByPortfolio(ctx, id)
	if err != nil {
		return nil, err
	}
	return &PortfolioView{
		Portfolio:  portfolio,
		Assets:     assets,
		TotalValue: models.PortfolioValue(assets),
	}, nil
}

// ListPortfolios retrieves all portfolios owned by a user
func (s *PortfolioService) ListPortfolios(ctx context.Context, userID string) ([]*models.Portfolio, error) {
	return s.portfolioRepo.ListByUser(ctx, userID)
}

// RenamePortfolio renames a portfolio
func (s *PortfolioService) RenamePortfolio(ctx context.Context, id int64, name string) (*models.Portfolio, error) {
	if strings.TrimSpace(name) == "" {
		return nil, domerrors.NewInvalidInput("name is required")
	}
	portfolio, err := s.portfolioRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	portfolio.Name = strings.TrimSpace(name)
	if err := s.portfolioRepo.Update(ctx, portfolio); err != nil {
		return nil, err
	}
	return portfolio, nil
}

// DeletePortfolio removes a portfolio with its holdings and trades.
func (s *PortfolioService) DeletePortfolio(ctx context.Context, id int64) error {
	portfolio, err := s.portfolioRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.portfolioRepo.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx, portfolio)
	return nil
}

// AddAsset adds a holding to a portfolio. Symbols are stored uppercased
// and must be unique within the portfolio.
func (s *PortfolioService) AddAsset(ctx context.Context, input AddAssetInput) (*models.Asset, error) {
	symbol := strings.ToUpper(strings.TrimSpace(input.Symbol))
	if symbol == "" {
		return nil, domerrors.NewInvalidInput("symbol is required")
	}
	if input.UnitPrice.IsNegative() {
		return nil, domerrors.NewInvalidAmount(input.UnitPrice.String())
	}
	if input.Quantity.IsNegative() {
		return nil, domerrors.NewInvalidAmount(input.Quantity.String())
	}

	portfolio, err := s.portfolioRepo.GetByID(ctx, input.PortfolioID)
	if err != nil {
		return nil, err
	}

	asset := &models.Asset{
		PortfolioID: input.PortfolioID,
		Symbol:      symbol,
		Name:        strings.TrimSpace(input.Name),
		Class:       models.AssetClass(strings.ToLower(strings.TrimSpace(input.Class))),
		UnitPrice:   input.UnitPrice,
		Quantity:    input.Quantity,
	}
	if err := s.assetRepo.Create(ctx, asset); err != nil {
		return nil, err
	}

	s.invalidate(ctx, portfolio)
	return asset, nil
}

// UpdateAsset reprices or resizes a holding directly, outside the trade
// path. Used for manual corrections.
func (s *PortfolioService) UpdateAsset(ctx context.Context, portfolioID int64, symbol string, input UpdateAssetInput) (*models.Asset, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))

	asset, err := s.assetRepo.GetBySymbol(ctx, portfolioID, symbol)
	if err != nil {
		return nil, err
	}

	if input.UnitPrice != nil {
		if input.UnitPrice.IsNegative() {
			return nil, domerrors.NewInvalidAmount(input.UnitPrice.String())
		}
		if err := s.assetRepo.UpdatePrice(ctx, asset.ID, *input.UnitPrice); err != nil {
			return nil, err
		}
		asset.UnitPrice = *input.UnitPrice
	}
	if input.Quantity != nil {
		if input.Quantity.IsNegative() {
			return nil, domerrors.NewInvalidAmount(input.Quantity.String())
		}
		if err := s.assetRepo.UpdateQuantity(ctx, asset.ID, *input.Quantity); err != nil {
			return nil, err
		}
		asset.Quantity = *input.Quantity
	}

	s.invalidateByID(ctx, portfolioID)
	return asset, nil
}

// RemoveAsset removes a holding from a portfolio
func (s *PortfolioService) RemoveAsset(ctx context.Context, portfolioID int64, symbol string) error {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if err := s.assetRepo.Delete(ctx, portfolioID, symbol); err != nil {
		return err
	}
	s.invalidateByID(ctx, portfolioID)
	return nil
}

// RecordTrade executes a BUY or SELL against a holding. A BUY raises the
// quantity and marks the holding to the trade price; a SELL lowers it and
// cannot exceed the quantity held. Trades on the same portfolio are
// serialized.
func (s *PortfolioService) RecordTrade(ctx context.Context, input TradeInput) (*models.Trade, error) {
	side, ok := models.ParseTradeSide(input.Side)
	if !ok {
		return nil, domerrors.NewInvalidInput("side must be BUY or SELL")
	}
	if !input.Quantity.IsPositive() {
		return nil, domerrors.NewInvalidAmount(input.Quantity.String())
	}
	if input.UnitPrice.IsNegative() {
		return nil, domerrors.NewInvalidAmount(input.UnitPrice.String())
	}
	symbol := strings.ToUpper(strings.TrimSpace(input.Symbol))

	lockKey := "portfolio:" + strconv.FormatInt(input.PortfolioID, 10)
	s.portfolioLocks.Lock(lockKey)
	defer s.portfolioLocks.Unlock(lockKey)

	asset, err := s.assetRepo.GetBySymbol(ctx, input.PortfolioID, symbol)
	if err != nil {
		return nil, err
	}

	var newQuantity decimal.Decimal
	switch side {
	case models.TradeBuy:
		newQuantity = asset.Quantity.Add(input.Quantity)
	case models.TradeSell:
		if asset.Quantity.LessThan(input.Quantity) {
			return nil, domerrors.NewInvalidInput("cannot sell more than the quantity held")
		}
		newQuantity = asset.Quantity.Sub(input.Quantity)
	}

	if err := s.assetRepo.UpdateQuantity(ctx, asset.ID, newQuantity); err != nil {
		return nil, err
	}
	if side == models.TradeBuy && input.UnitPrice.IsPositive() {
		if err := s.assetRepo.UpdatePrice(ctx, asset.ID, input.UnitPrice); err != nil {
			return nil, err
		}
	}

	trade := &models.Trade{
		PortfolioID: input.PortfolioID,
		Symbol:      symbol,
		Side:        side,
		Quantity:    input.Quantity,
		UnitPrice:   input.UnitPrice,
		ExecutedAt:  time.Now(),
	}
	if err := s.tradeRepo.Create(ctx, trade); err != nil {
		return nil, err
	}

	s.invalidateByID(ctx, input.PortfolioID)
	s.logger.WithFields(map[string]interface{}{
		"portfolioId": input.PortfolioID,
		"symbol":      symbol,
		"side":        string(side),
		"quantity":    input.Quantity.String(),
	}).Info("trade recorded")

	return trade, nil
}

// ListTrades returns a portfolio's trades in execution order
func (s *PortfolioService) ListTrades(ctx context.Context, portfolioID int64) ([]*models.Trade, error) {
	if _, err := s.portfolioRepo.GetByID(ctx, portfolioID); err != nil {
		return nil, err
	}
	return s.tradeRepo.ListByPortfolio(ctx, portfolioID)
}

// RefreshPrices marks every holding in a portfolio to the current market
// price, converted into the bank currency. A holding whose price cannot
// be refreshed keeps its last stored price.
func (s *PortfolioService) RefreshPrices(ctx context.Context, portfolioID int64) (*PortfolioView, error) {
	if s.market == nil {
		return nil, domerrors.NewInvalidInput("no market data provider configured")
	}

	portfolio, err := s.portfolioRepo.GetByID(ctx, portfolioID)
	if err != nil {
		return nil, err
	}
	assets, err := s.assetRepo.ListByPortfolio(ctx, portfolioID)
	if err != nil {
		return nil, err
	}

	for _, asset := range assets {
		usdPrice, err := s.market.PriceFor(ctx, asset.Class, asset.Symbol)
		if err != nil {
			s.logger.WithError(err).WithField("symbol", asset.Symbol).Warn("price refresh skipped")
			continue
		}

		price := usdPrice
		if s.converter != nil && !strings.EqualFold(s.bankCurrency, "USD") {
			converted, err := s.converter.Convert(ctx, usdPrice, "USD", s.bankCurrency)
			if err != nil {
				s.logger.WithError(err).WithField("symbol", asset.Symbol).Warn("price conversion skipped")
				continue
			}
			price = converted
		}

		if err := s.assetRepo.UpdatePrice(ctx, asset.ID, price); err != nil {
			return nil, err
		}
		asset.UnitPrice = price
	}

	s.invalidate(ctx, portfolio)
	return &PortfolioView{
		Portfolio:  portfolio,
		Assets:     assets,
		TotalValue: models.PortfolioValue(assets),
	}, nil
}

func (s *PortfolioService) invalidate(ctx context.Context, portfolio *models.Portfolio) {
	if s.views == nil {
		return
	}
	key := s.views.PortfolioKey(strconv.FormatInt(portfolio.ID, 10))
	if err := s.views.Invalidate(ctx, key); err != nil {
		s.logger.WithError(err).Warn("failed to invalidate portfolio view")
	}
	if err := s.views.InvalidateUser(ctx, portfolio.UserID); err != nil {
		s.logger.WithError(err).Warn("failed to invalidate user views")
	}
}

func (s *PortfolioService) invalidateByID(ctx context.Context, portfolioID int64) {
	if s.views == nil {
		return
	}
	portfolio, err := s.portfolioRepo.GetByID(ctx, portfolioID)
	if err != nil {
		return
	}
	s.invalidate(ctx, portfolio)
}
