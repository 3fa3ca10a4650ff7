package ratelimit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultEndpointCosts(t *testing.T) {
	registry := NewCostRegistry(nil)

	assert.Equal(t, CostCryptoPrice, registry.GetCost(EndpointCryptoPrice))
	assert.Equal(t, CostStockQuote, registry.GetCost(EndpointStockQuote))
	assert.Equal(t, CostExchangeRate, registry.GetCost(EndpointExchangeRate))
}

func TestUnknownEndpointUsesDefaultCost(t *testing.T) {
	registry := NewCostRegistry(nil)
	assert.Equal(t, DefaultEndpointCost, registry.GetCost("somevendor.unknown"))

	registry = NewCostRegistry(&CostRegistryConfig{DefaultCost: 7})
	assert.Equal(t, 7, registry.GetCost("somevendor.unknown"))
	assert.Equal(t, 7, registry.GetDefaultCost())
}

func TestCostOverrides(t *testing.T) {
	registry := NewCostRegistry(&CostRegistryConfig{
		Overrides: map[string]int{
			EndpointStockQuote: 10,
			"invalid":          0, // ignored
		},
	})

	assert.Equal(t, 10, registry.GetCost(EndpointStockQuote))
	assert.Equal(t, DefaultEndpointCost, registry.GetCost("invalid"))
}

func TestSetCostAtRuntime(t *testing.T) {
	registry := NewCostRegistry(nil)

	registry.SetCost(EndpointCryptoPrice, 3)
	assert.Equal(t, 3, registry.GetCost(EndpointCryptoPrice))

	// Non-positive costs are ignored.
	registry.SetCost(EndpointCryptoPrice, 0)
	assert.Equal(t, 3, registry.GetCost(EndpointCryptoPrice))
	registry.SetCost(EndpointCryptoPrice, -1)
	assert.Equal(t, 3, registry.GetCost(EndpointCryptoPrice))
}

func TestKnownEndpoints(t *testing.T) {
	registry := NewCostRegistry(nil)

	endpoints := registry.KnownEndpoints()
	assert.Len(t, endpoints, 3)
	assert.Contains(t, endpoints, EndpointCryptoPrice)
	assert.Contains(t, endpoints, EndpointStockQuote)
	assert.Contains(t, endpoints, EndpointExchangeRate)
}

func TestQuotaConfigValidate(t *testing.T) {
	valid := NewQuotaConfig()
	assert.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*QuotaConfig)
	}{
		{"zero total", func(c *QuotaConfig) { c.TotalQuota = 0 }},
		{"negative reserved", func(c *QuotaConfig) { c.ReservedQuota = -1 }},
		{"negative shared", func(c *QuotaConfig) { c.SharedQuota = -1 }},
		{"pools exceed total", func(c *QuotaConfig) { c.ReservedQuota = c.TotalQuota }},
		{"zero window", func(c *QuotaConfig) { c.WindowSizeMs = 0 }},
		{"warning above pause", func(c *QuotaConfig) { c.WarningThreshold = 95 }},
		{"threshold out of range", func(c *QuotaConfig) { c.PauseThreshold = 101 }},
		{"zero endpoint cost", func(c *QuotaConfig) { c.DefaultEndpointCost = 0 }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := NewQuotaConfig()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadFromEnvDefaults(t *testing.T) {
	cfg := LoadFromEnv()
	assert.Equal(t, DefaultTotalQuota, cfg.TotalQuota)
	assert.Equal(t, DefaultReservedQuota, cfg.ReservedQuota)
	assert.Equal(t, DefaultSharedQuota, cfg.SharedQuota)
}

func TestLoadFromEnvOverrides(t *testing.T) {
	t.Setenv(EnvTotalQuota, "100")
	t.Setenv(EnvReservedQuota, "60")
	t.Setenv(EnvSharedQuota, "40")
	t.Setenv(EnvWindowSizeMs, "30000")

	cfg := LoadFromEnv()
	assert.Equal(t, 100, cfg.TotalQuota)
	assert.Equal(t, 60, cfg.ReservedQuota)
	assert.Equal(t, 40, cfg.SharedQuota)
	assert.Equal(t, 30000, cfg.WindowSizeMs)
}

func TestLoadFromEnvFallsBackOnInvalidCombination(t *testing.T) {
	t.Setenv(EnvTotalQuota, "10")
	t.Setenv(EnvReservedQuota, "20")

	// Reserved exceeds total, so the whole config falls back to defaults.
	cfg := LoadFromEnv()
	assert.Equal(t, DefaultTotalQuota, cfg.TotalQuota)
	assert.Equal(t, DefaultReservedQuota, cfg.ReservedQuota)
}
