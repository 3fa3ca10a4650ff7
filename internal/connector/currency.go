// Package connector integrates the external data providers: exchange
// rates and market prices. Each connector caches responses and degrades
// gracefully when a provider is down.
package connector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ewallet-backend/internal/circuitbreaker"
	"github.com/ewallet-backend/internal/config"
	domerrors "github.com/ewallet-backend/internal/errors"
	"github.com/ewallet-backend/internal/logging"
	"github.com/ewallet-backend/internal/retry"
	"github.com/ewallet-backend/internal/storage"
)

// RateSource fetches a spot exchange rate between two currencies.
type RateSource interface {
	FetchRate(ctx context.Context, from, to string) (decimal.Decimal, error)
}

// FrankfurterClient fetches exchange rates from a Frankfurter-compatible
// API (https://api.frankfurter.app). Transient failures are retried with
// exponential backoff.
type FrankfurterClient struct {
	baseURL  string
	client   *http.Client
	retryCfg *retry.Config
}

// NewFrankfurterClient creates a rate source backed by the given API base URL.
func NewFrankfurterClient(baseURL string) *FrankfurterClient {
	return &FrankfurterClient{
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: 10 * time.Second},
		retryCfg: retry.DefaultConfig(),
	}
}

type frankfurterResponse struct {
	Base  string                 `json:"base"`
	Rates map[string]json.Number `json:"rates"`
}

// FetchRate fetches the latest rate for one unit of from expressed in to.
func (c *FrankfurterClient) FetchRate(ctx context.Context, from, to string) (decimal.Decimal, error) {
	url := fmt.Sprintf("%s/latest?from=%s&to=%s", c.baseURL, from, to)

	var parsed frankfurterResponse
	result := retry.WithExponentialBackoff(ctx, c.retryCfg, func(ctx context.Context, attempt int) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return fmt.Errorf("failed to build rate request: %w", err)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			return fmt.Errorf("rate request failed: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return fmt.Errorf("rate API returned status %d: %s", resp.StatusCode, string(body))
		}

		if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
			return fmt.Errorf("failed to decode rate response: %w", err)
		}
		return nil
	})
	if !result.Success {
		return decimal.Zero, result.LastError
	}

	raw, ok := parsed.Rates[to]
	if !ok {
		return decimal.Zero, fmt.Errorf("rate response missing currency %s", to)
	}
	rate, err := decimal.NewFromString(raw.String())
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to parse rate %q: %w", raw.String(), err)
	}
	if rate.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, fmt.Errorf("rate API returned non-positive rate %s", rate)
	}

	return rate, nil
}

// Converter converts amounts between currencies. Fresh rates are cached
// for the configured TTL; when the provider is unreachable the last
// successfully fetched rate is used instead, however old. Conversion
// fails only when no rate for the pair was ever fetched.
type Converter struct {
	source  RateSource
	cache   *storage.TTLCache
	breaker *circuitbreaker.CircuitBreaker
	logger  *logging.Logger

	mu    sync.RWMutex
	stale map[string]decimal.Decimal
}

// NewConverter creates a converter over the given rate source. A circuit
// breaker in front of the source stops hammering the rate API while it is
// down; open-circuit errors take the same stale-rate path as fetch errors.
func NewConverter(source RateSource, cfg *config.CacheConfig, logger *logging.Logger) *Converter {
	return &Converter{
		source:  source,
		cache:   storage.NewTTLCache(cfg.Capacity, cfg.RateTTL),
		breaker: circuitbreaker.NewCircuitBreaker(circuitbreaker.DefaultConfig("frankfurter"), logger),
		logger:  logger,
		stale:   make(map[string]decimal.Decimal),
	}
}

func rateKey(from, to string) string {
	return strings.ToUpper(from) + ":" + strings.ToUpper(to)
}

// Rate returns the conversion rate from one currency to another.
func (c *Converter) Rate(ctx context.Context, from, to string) (decimal.Decimal, error) {
	from = strings.ToUpper(from)
	to = strings.ToUpper(to)
	if from == to {
		return decimal.NewFromInt(1), nil
	}

	key := rateKey(from, to)
	if cached, ok := c.cache.Get(key); ok {
		return cached.(decimal.Decimal), nil
	}

	var rate decimal.Decimal
	err := c.breaker.Execute(ctx, func() error {
		var fetchErr error
		rate, fetchErr = c.source.FetchRate(ctx, from, to)
		return fetchErr
	})
	if err != nil {
		c.mu.RLock()
		stale, ok := c.stale[key]
		c.mu.RUnlock()
		if ok {
			c.logger.WithError(err).WithField("pair", key).Warn("rate fetch failed, using last known rate")
			return stale, nil
		}
		return decimal.Zero, domerrors.NewConversionUnavailable(from, to, err)
	}

	c.cache.Set(key, rate)
	c.mu.Lock()
	c.stale[key] = rate
	c.mu.Unlock()

	return rate, nil
}

// Convert converts an amount from one currency to another.
func (c *Converter) Convert(ctx context.Context, amount decimal.Decimal, from, to string) (decimal.Decimal, error) {
	if strings.EqualFold(from, to) {
		return amount, nil
	}
	rate, err := c.Rate(ctx, from, to)
	if err != nil {
		return decimal.Zero, err
	}
	return amount.Mul(rate), nil
}
