package ratelimit

import (
	"sync"
)

// Endpoint costs express how scarce each provider call is relative to
// the others. Stock quotes are weighted heavily: the quote provider's
// free tier allows far fewer calls per day than the crypto or rates
// providers allow per minute.
const (
	CostCryptoPrice  = 1
	CostStockQuote   = 5
	CostExchangeRate = 1
)

// Provider endpoint names.
const (
	EndpointCryptoPrice  = "coingecko.simple_price"
	EndpointStockQuote   = "alphavantage.global_quote"
	EndpointExchangeRate = "frankfurter.latest"
)

// CostRegistry maps provider endpoints to their quota costs.
// It is safe for concurrent use.
type CostRegistry struct {
	mu          sync.RWMutex
	costs       map[string]int
	defaultCost int
}

// CostRegistryConfig holds configuration for the registry.
type CostRegistryConfig struct {
	// DefaultCost is the quota cost for unknown endpoints.
	// If zero, uses the package default.
	DefaultCost int

	// Overrides allows custom costs for specific endpoints.
	// These override the built-in defaults.
	Overrides map[string]int
}

// NewCostRegistry creates a registry with the default endpoint costs.
// If cfg is nil, default configuration is used.
func NewCostRegistry(cfg *CostRegistryConfig) *CostRegistry {
	costs := map[string]int{
		EndpointCryptoPrice:  CostCryptoPrice,
		EndpointStockQuote:   CostStockQuote,
		EndpointExchangeRate: CostExchangeRate,
	}

	defaultCost := DefaultEndpointCost

	if cfg != nil {
		if cfg.DefaultCost > 0 {
			defaultCost = cfg.DefaultCost
		}
		for endpoint, cost := range cfg.Overrides {
			if cost > 0 {
				costs[endpoint] = cost
			}
		}
	}

	return &CostRegistry{
		costs:       costs,
		defaultCost: defaultCost,
	}
}

// GetCost returns the quota cost for a provider endpoint.
// Unknown endpoints are charged the default cost.
func (r *CostRegistry) GetCost(endpoint string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if cost, ok := r.costs[endpoint]; ok {
		return cost
	}
	return r.defaultCost
}

// SetCost allows runtime cost updates for a specific endpoint.
// The cost must be positive; zero or negative values are ignored.
func (r *CostRegistry) SetCost(endpoint string, cost int) {
	if cost <= 0 {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.costs[endpoint] = cost
}

// GetDefaultCost returns the configured default cost for unknown endpoints.
func (r *CostRegistry) GetDefaultCost() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.defaultCost
}

// KnownEndpoints returns a list of all known endpoint names.
func (r *CostRegistry) KnownEndpoints() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	endpoints := make([]string, 0, len(r.costs))
	for endpoint := range r.costs {
		endpoints = append(endpoints, endpoint)
	}
	return endpoints
}
