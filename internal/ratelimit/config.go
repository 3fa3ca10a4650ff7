// Package ratelimit budgets outbound requests to the external market
// data providers. The free tiers of those APIs allow only a handful of
// calls per window, so interactive requests and the background refresh
// worker draw from separate pools of a shared quota tracked in Redis.
package ratelimit

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
)

// Default quota configuration values, sized for the providers' free tiers.
const (
	DefaultTotalQuota       = 30    // Total weighted requests per window
	DefaultReservedQuota    = 20    // Reserved for interactive requests
	DefaultSharedQuota      = 10    // Available for background refresh
	DefaultWindowSizeMs     = 60000 // 1 minute sliding window
	DefaultWarningThreshold = 80    // Percentage at which to emit warning
	DefaultPauseThreshold   = 90    // Percentage at which background refresh pauses
	DefaultEndpointCost     = 2     // Default cost for unknown endpoints
)

// Environment variable names for quota configuration.
const (
	EnvTotalQuota       = "MARKET_QUOTA_TOTAL"
	EnvReservedQuota    = "MARKET_QUOTA_RESERVED"
	EnvSharedQuota      = "MARKET_QUOTA_SHARED"
	EnvWindowSizeMs     = "MARKET_QUOTA_WINDOW_MS"
	EnvWarningThreshold = "MARKET_QUOTA_WARNING_THRESHOLD"
	EnvPauseThreshold   = "MARKET_QUOTA_PAUSE_THRESHOLD"
	EnvEndpointCost     = "MARKET_QUOTA_DEFAULT_COST"
)

// QuotaConfig holds all provider quota configuration.
// Configuration is loaded from environment variables with fallback to defaults.
type QuotaConfig struct {
	// TotalQuota is the total weighted request budget per window.
	// Environment: MARKET_QUOTA_TOTAL, Default: 30
	TotalQuota int

	// ReservedQuota is the budget reserved for interactive requests.
	// Environment: MARKET_QUOTA_RESERVED, Default: 20
	ReservedQuota int

	// SharedQuota is the budget available for the background refresh worker.
	// Environment: MARKET_QUOTA_SHARED, Default: 10
	SharedQuota int

	// WindowSizeMs is the sliding window size in milliseconds.
	// Environment: MARKET_QUOTA_WINDOW_MS, Default: 60000
	WindowSizeMs int

	// WarningThreshold is the usage percentage at which to emit warnings.
	// Environment: MARKET_QUOTA_WARNING_THRESHOLD, Default: 80
	WarningThreshold int

	// PauseThreshold is the usage percentage at which background refresh pauses.
	// Environment: MARKET_QUOTA_PAUSE_THRESHOLD, Default: 90
	PauseThreshold int

	// DefaultEndpointCost is the cost charged for unknown provider endpoints.
	// Environment: MARKET_QUOTA_DEFAULT_COST, Default: 2
	DefaultEndpointCost int
}

// NewQuotaConfig creates a QuotaConfig with default values.
func NewQuotaConfig() *QuotaConfig {
	return &QuotaConfig{
		TotalQuota:          DefaultTotalQuota,
		ReservedQuota:       DefaultReservedQuota,
		SharedQuota:         DefaultSharedQuota,
		WindowSizeMs:        DefaultWindowSizeMs,
		WarningThreshold:    DefaultWarningThreshold,
		PauseThreshold:      DefaultPauseThreshold,
		DefaultEndpointCost: DefaultEndpointCost,
	}
}

// LoadFromEnv loads configuration from environment variables.
// Invalid values are logged as warnings and defaults are used instead.
func LoadFromEnv() *QuotaConfig {
	cfg := NewQuotaConfig()

	if val := getEnvInt(EnvTotalQuota, DefaultTotalQuota); val > 0 {
		cfg.TotalQuota = val
	} else if os.Getenv(EnvTotalQuota) != "" {
		log.Printf("WARNING: Invalid %s value, using default %d", EnvTotalQuota, DefaultTotalQuota)
	}

	if val := getEnvInt(EnvReservedQuota, DefaultReservedQuota); val >= 0 {
		cfg.ReservedQuota = val
	} else if os.Getenv(EnvReservedQuota) != "" {
		log.Printf("WARNING: Invalid %s value, using default %d", EnvReservedQuota, DefaultReservedQuota)
	}

	if val := getEnvInt(EnvSharedQuota, DefaultSharedQuota); val >= 0 {
		cfg.SharedQuota = val
	} else if os.Getenv(EnvSharedQuota) != "" {
		log.Printf("WARNING: Invalid %s value, using default %d", EnvSharedQuota, DefaultSharedQuota)
	}

	if val := getEnvInt(EnvWindowSizeMs, DefaultWindowSizeMs); val > 0 {
		cfg.WindowSizeMs = val
	} else if os.Getenv(EnvWindowSizeMs) != "" {
		log.Printf("WARNING: Invalid %s value, using default %d", EnvWindowSizeMs, DefaultWindowSizeMs)
	}

	if val := getEnvInt(EnvWarningThreshold, DefaultWarningThreshold); val >= 0 && val <= 100 {
		cfg.WarningThreshold = val
	} else if os.Getenv(EnvWarningThreshold) != "" {
		log.Printf("WARNING: Invalid %s value, using default %d", EnvWarningThreshold, DefaultWarningThreshold)
	}

	if val := getEnvInt(EnvPauseThreshold, DefaultPauseThreshold); val >= 0 && val <= 100 {
		cfg.PauseThreshold = val
	} else if os.Getenv(EnvPauseThreshold) != "" {
		log.Printf("WARNING: Invalid %s value, using default %d", EnvPauseThreshold, DefaultPauseThreshold)
	}

	if val := getEnvInt(EnvEndpointCost, DefaultEndpointCost); val > 0 {
		cfg.DefaultEndpointCost = val
	} else if os.Getenv(EnvEndpointCost) != "" {
		log.Printf("WARNING: Invalid %s value, using default %d", EnvEndpointCost, DefaultEndpointCost)
	}

	if err := cfg.Validate(); err != nil {
		log.Printf("WARNING: Quota configuration validation failed: %v. Using defaults.", err)
		return NewQuotaConfig()
	}

	return cfg
}

// Validate ensures configuration is valid.
func (c *QuotaConfig) Validate() error {
	if c.TotalQuota <= 0 {
		return errors.New("TotalQuota must be positive")
	}
	if c.ReservedQuota < 0 {
		return errors.New("ReservedQuota cannot be negative")
	}
	if c.SharedQuota < 0 {
		return errors.New("SharedQuota cannot be negative")
	}
	if c.ReservedQuota+c.SharedQuota > c.TotalQuota {
		return fmt.Errorf("ReservedQuota (%d) + SharedQuota (%d) = %d exceeds TotalQuota (%d)",
			c.ReservedQuota, c.SharedQuota, c.ReservedQuota+c.SharedQuota, c.TotalQuota)
	}
	if c.WindowSizeMs <= 0 {
		return errors.New("WindowSizeMs must be positive")
	}
	if c.WarningThreshold < 0 || c.WarningThreshold > 100 {
		return fmt.Errorf("WarningThreshold must be between 0 and 100, got %d", c.WarningThreshold)
	}
	if c.PauseThreshold < 0 || c.PauseThreshold > 100 {
		return fmt.Errorf("PauseThreshold must be between 0 and 100, got %d", c.PauseThreshold)
	}
	if c.WarningThreshold > c.PauseThreshold {
		return fmt.Errorf("WarningThreshold (%d) cannot be greater than PauseThreshold (%d)",
			c.WarningThreshold, c.PauseThreshold)
	}
	if c.DefaultEndpointCost <= 0 {
		return errors.New("DefaultEndpointCost must be positive")
	}
	return nil
}

// getEnvInt reads an environment variable and parses it as an integer.
// Returns the default value if unset and -1 if set but unparsable.
func getEnvInt(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}

	intVal, err := strconv.Atoi(val)
	if err != nil {
		return -1
	}

	return intVal
}

// String returns a string representation of the configuration for logging.
func (c *QuotaConfig) String() string {
	return fmt.Sprintf(
		"QuotaConfig{TotalQuota: %d, ReservedQuota: %d, SharedQuota: %d, WindowSizeMs: %d, WarningThreshold: %d%%, PauseThreshold: %d%%, DefaultEndpointCost: %d}",
		c.TotalQuota, c.ReservedQuota, c.SharedQuota, c.WindowSizeMs,
		c.WarningThreshold, c.PauseThreshold, c.DefaultEndpointCost,
	)
}
