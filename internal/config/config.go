// Package config provides configuration management for the e-wallet service.
// It loads configuration from environment variables and .env files.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Cache     CacheConfig
	Currency  CurrencyConfig
	Market    MarketConfig
	RateLimit RateLimitConfig
	Worker    WorkerConfig
	Logging   LoggingConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Postgres PostgresConfig
	Redis    RedisConfig
}

// PostgresConfig holds Postgres configuration
type PostgresConfig struct {
	Host           string
	Port           string
	Database       string
	User           string
	Password       string
	MaxConnections int
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host           string
	Port           string
	Password       string
	DB             int
	MaxConnections int
}

// CacheConfig holds cache sizing and TTL configuration
type CacheConfig struct {
	Capacity      int           // max entries per in-memory cache
	RateTTL       time.Duration // currency rates
	PriceTTL      time.Duration // market prices
	WealthViewTTL time.Duration // rendered wealth views in Redis
}

// CurrencyConfig holds currency conversion configuration
type CurrencyConfig struct {
	BankCurrency      string // currency account balances are held in
	ReportingCurrency string // currency wealth totals are expressed in
	RatesURL          string // exchange-rate API base URL
}

// MarketConfig holds market data provider configuration
type MarketConfig struct {
	CryptoURL string
	QuoteURL  string
	QuoteKey  string
}

// RateLimitConfig holds API rate limiting configuration
type RateLimitConfig struct {
	RequestsPerSecond int
	Burst             int
}

// WorkerConfig holds background refresh worker configuration
type WorkerConfig struct {
	Enabled         bool
	RefreshInterval time.Duration
	SnapshotWorkers int
	PageSize        int
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// LoadConfig loads configuration from .env file and environment variables
func LoadConfig() (*Config, error) {
	// .env file is optional - environment variables can be set directly
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	config := &Config{
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getEnv("SERVER_PORT", "8080"),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:     getEnvAsDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Database: DatabaseConfig{
			Postgres: PostgresConfig{
				Host:           getEnv("POSTGRES_HOST", "localhost"),
				Port:           getEnv("POSTGRES_PORT", "5432"),
				Database:       getEnv("POSTGRES_DB", "ewallet"),
				User:           getEnv("POSTGRES_USER", "ewallet"),
				Password:       getEnv("POSTGRES_PASSWORD", ""),
				MaxConnections: getEnvAsInt("POSTGRES_MAX_CONNECTIONS", 50),
			},
			Redis: RedisConfig{
				Host:           getEnv("REDIS_HOST", "localhost"),
				Port:           getEnv("REDIS_PORT", "6379"),
				Password:       getEnv("REDIS_PASSWORD", ""),
				DB:             getEnvAsInt("REDIS_DB", 0),
				MaxConnections: getEnvAsInt("REDIS_MAX_CONNECTIONS", 20),
			},
		},
		Cache: CacheConfig{
			Capacity:      getEnvAsInt("CACHE_CAPACITY", 1024),
			RateTTL:       getEnvAsDuration("CACHE_RATE_TTL", time.Hour),
			PriceTTL:      getEnvAsDuration("CACHE_PRICE_TTL", 2*time.Minute),
			WealthViewTTL: getEnvAsDuration("CACHE_WEALTH_VIEW_TTL", 30*time.Second),
		},
		Currency: CurrencyConfig{
			BankCurrency:      getEnv("BANK_CURRENCY", "CHF"),
			ReportingCurrency: getEnv("REPORTING_CURRENCY", "USD"),
			RatesURL:          getEnv("RATES_URL", "https://api.frankfurter.app"),
		},
		Market: MarketConfig{
			CryptoURL: getEnv("MARKET_CRYPTO_URL", "https://api.coingecko.com/api/v3"),
			QuoteURL:  getEnv("MARKET_QUOTE_URL", "https://www.alphavantage.co"),
			QuoteKey:  getEnv("MARKET_QUOTE_API_KEY", ""),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: getEnvAsInt("RATE_LIMIT_RPS", 50),
			Burst:             getEnvAsInt("RATE_LIMIT_BURST", 10),
		},
		Worker: WorkerConfig{
			Enabled:         getEnvAsBool("WORKER_ENABLED", true),
			RefreshInterval: getEnvAsDuration("WORKER_REFRESH_INTERVAL", 15*time.Minute),
			SnapshotWorkers: getEnvAsInt("WORKER_SNAPSHOT_WORKERS", 4),
			PageSize:        getEnvAsInt("WORKER_PAGE_SIZE", 100),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	return config, nil
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as an integer with a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsBool gets an environment variable as a boolean with a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration gets an environment variable as a duration with a default value
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
