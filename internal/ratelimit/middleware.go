package ratelimit

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/ewallet-backend/internal/connector"
)

// ErrQuotaExhausted is returned when a provider call does not fit in
// the remaining quota. Connectors treat it like any provider failure
// and serve cached or fallback data instead.
var ErrQuotaExhausted = errors.New("provider quota exhausted")

// BudgetedSourceConfig holds the shared configuration for budgeted sources.
type BudgetedSourceConfig struct {
	// Tracker is the quota budget tracker. Required.
	Tracker *BudgetTracker

	// CostRegistry maps endpoints to quota costs. Required.
	CostRegistry *CostRegistry

	// Priority is the default pool to draw from when the context does
	// not carry one. Defaults to PriorityInteractive.
	Priority Priority

	// Metrics receives per-endpoint counters. Optional.
	Metrics *UsageMetrics
}

func (c *BudgetedSourceConfig) validate() error {
	if c == nil {
		return errors.New("configuration is required")
	}
	if c.Tracker == nil {
		return errors.New("tracker is required")
	}
	if c.CostRegistry == nil {
		return errors.New("cost registry is required")
	}
	return nil
}

// acquire charges the endpoint's cost against the pool selected by the
// context (or the configured default) before the provider is called.
func (c *BudgetedSourceConfig) acquire(ctx context.Context, endpoint string) error {
	cost := c.CostRegistry.GetCost(endpoint)
	priority := PriorityFromContext(ctx, c.Priority)

	allowed, waitTime := c.Tracker.TryConsume(ctx, cost, priority)
	if !allowed {
		if c.Metrics != nil {
			c.Metrics.RecordDenied(endpoint)
		}
		return fmt.Errorf("%w: %s (retry in %s)", ErrQuotaExhausted, endpoint, waitTime)
	}

	if c.Metrics != nil {
		c.Metrics.RecordAllowed(endpoint, cost)
	}
	if err := c.Tracker.RecordEndpointUsage(ctx, endpoint, cost); err != nil {
		// Monitoring only, the call itself proceeds.
		_ = err
	}
	return nil
}

// BudgetedPriceSource wraps a price source with quota enforcement.
type BudgetedPriceSource struct {
	source connector.PriceSource
	cfg    *BudgetedSourceConfig
}

// NewBudgetedPriceSource creates a quota-enforcing price source.
func NewBudgetedPriceSource(source connector.PriceSource, cfg *BudgetedSourceConfig) (*BudgetedPriceSource, error) {
	if source == nil {
		return nil, errors.New("price source is required")
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &BudgetedPriceSource{source: source, cfg: cfg}, nil
}

// CryptoPrice charges the crypto endpoint cost, then delegates.
func (s *BudgetedPriceSource) CryptoPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	if err := s.cfg.acquire(ctx, EndpointCryptoPrice); err != nil {
		return decimal.Zero, err
	}
	return s.source.CryptoPrice(ctx, symbol)
}

// StockQuote charges the quote endpoint cost, then delegates.
func (s *BudgetedPriceSource) StockQuote(ctx context.Context, symbol string) (decimal.Decimal, error) {
	if err := s.cfg.acquire(ctx, EndpointStockQuote); err != nil {
		return decimal.Zero, err
	}
	return s.source.StockQuote(ctx, symbol)
}

// BudgetedRateSource wraps an exchange-rate source with quota enforcement.
type BudgetedRateSource struct {
	source connector.RateSource
	cfg    *BudgetedSourceConfig
}

// NewBudgetedRateSource creates a quota-enforcing rate source.
func NewBudgetedRateSource(source connector.RateSource, cfg *BudgetedSourceConfig) (*BudgetedRateSource, error) {
	if source == nil {
		return nil, errors.New("rate source is required")
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &BudgetedRateSource{source: source, cfg: cfg}, nil
}

// FetchRate charges the rates endpoint cost, then delegates.
func (s *BudgetedRateSource) FetchRate(ctx context.Context, from, to string) (decimal.Decimal, error) {
	if err := s.cfg.acquire(ctx, EndpointExchangeRate); err != nil {
		return decimal.Zero, err
	}
	return s.source.FetchRate(ctx, from, to)
}
