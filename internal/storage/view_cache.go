package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// ViewCache caches rendered read-model views (wealth summaries, portfolio
// views) in Redis with a short TTL. Writers invalidate the affected user's
// keys so stale views never outlive a mutation by more than the TTL.
type ViewCache struct {
	redis *RedisCache
	ttl   time.Duration
}

// NewViewCache creates a new view cache
func NewViewCache(redis *RedisCache, ttl time.Duration) *ViewCache {
	return &ViewCache{redis: redis, ttl: ttl}
}

// ViewKeyType represents different types of cached views
type ViewKeyType string

const (
	// ViewKeyWealth is for per-user wealth summaries
	ViewKeyWealth ViewKeyType = "wealth"
	// ViewKeyPortfolio is for portfolio views
	ViewKeyPortfolio ViewKeyType = "portfolio"
)

// Key builds a cache key of the form <type>:<param1>:<param2>:...
func (c *ViewCache) Key(keyType ViewKeyType, params ...string) string {
	normalized := make([]string, len(params))
	for i, p := range params {
		normalized[i] = strings.ToLower(p)
	}
	return strings.Join(append([]string{string(keyType)}, normalized...), ":")
}

// WealthKey builds the cache key for a user's wealth view.
func (c *ViewCache) WealthKey(userID string) string {
	return c.Key(ViewKeyWealth, userID)
}

// PortfolioKey builds the cache key for a portfolio view.
func (c *ViewCache) PortfolioKey(portfolioID string) string {
	return c.Key(ViewKeyPortfolio, portfolioID)
}

// Set stores a value with the configured TTL.
func (c *ViewCache) Set(ctx context.Context, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}
	return c.redis.Set(ctx, key, data, c.ttl)
}

// Get retrieves a value and deserializes it into dest. A missing key is a
// cache miss, not an error.
func (c *ViewCache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	data, err := c.redis.Get(ctx, key)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("failed to get from cache: %w", err)
	}
	if err := json.Unmarshal([]byte(data), dest); err != nil {
		return false, fmt.Errorf("failed to unmarshal cached value: %w", err)
	}
	return true, nil
}

// Invalidate removes one or more keys from cache.
func (c *ViewCache) Invalidate(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return c.redis.Del(ctx, keys...)
}

// InvalidateUser removes every cached view derived from a user's state.
func (c *ViewCache) InvalidateUser(ctx context.Context, userID string) error {
	keys, err := c.redis.Keys(ctx, c.Key(ViewKeyWealth, userID)+"*")
	if err != nil {
		return fmt.Errorf("failed to find keys: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	return c.redis.Del(ctx, keys...)
}
