package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Default budget tracker values.
const (
	DefaultWindowSize = time.Minute     // 1 minute sliding window
	DefaultKeyTTL     = 2 * time.Minute // TTL for Redis keys (window + buffer)
)

// Redis key prefixes for quota tracking.
const (
	KeyPrefixTotal    = "quota:total:"
	KeyPrefixReserved = "quota:reserved:"
	KeyPrefixShared   = "quota:shared:"
	KeyPrefixEndpoint = "quota:endpoint:"
)

// Priority levels for budget allocation.
type Priority int

const (
	// PriorityInteractive is for user-facing requests (uses reserved budget).
	PriorityInteractive Priority = iota
	// PriorityBackground is for the refresh worker (uses shared budget).
	PriorityBackground
)

// String returns a string representation of the priority level.
func (p Priority) String() string {
	switch p {
	case PriorityInteractive:
		return "interactive"
	case PriorityBackground:
		return "background"
	default:
		return "unknown"
	}
}

type priorityContextKey struct{}

// WithPriority returns a context carrying the given priority. Budgeted
// sources consult it so a single connector stack can serve both
// interactive handlers and the background worker.
func WithPriority(ctx context.Context, priority Priority) context.Context {
	return context.WithValue(ctx, priorityContextKey{}, priority)
}

// PriorityFromContext returns the priority stored in the context, or
// the fallback when none is set.
func PriorityFromContext(ctx context.Context, fallback Priority) Priority {
	if p, ok := ctx.Value(priorityContextKey{}).(Priority); ok {
		return p
	}
	return fallback
}

// BudgetTracker coordinates provider quota consumption across processes
// using Redis. It implements a sliding window limiter with separate
// pools for interactive (reserved) and background (shared) requests.
type BudgetTracker struct {
	redis            redis.Cmdable
	totalBudget      int
	reservedBudget   int
	sharedBudget     int
	windowSize       time.Duration
	keyTTL           time.Duration
	warningThreshold float64
	pauseThreshold   float64
}

// BudgetTrackerConfig holds configuration for the budget tracker.
type BudgetTrackerConfig struct {
	// Redis is the Redis client for cross-process coordination.
	// Required - the tracker cannot function without Redis.
	Redis redis.Cmdable

	// Quota carries the budget sizes and thresholds. Required.
	Quota *QuotaConfig

	// KeyTTL is the TTL for Redis keys. Default: window size plus buffer.
	KeyTTL time.Duration
}

// UsageStats contains current consumption metrics.
type UsageStats struct {
	TotalUsed      int
	ReservedUsed   int
	SharedUsed     int
	TotalBudget    int
	ReservedBudget int
	SharedBudget   int
	WindowStart    time.Time
}

// NewBudgetTracker creates a tracker with the given configuration.
// Returns an error if the configuration is invalid.
func NewBudgetTracker(cfg *BudgetTrackerConfig) (*BudgetTracker, error) {
	if cfg == nil {
		return nil, errors.New("configuration is required")
	}
	if cfg.Redis == nil {
		return nil, errors.New("redis client is required")
	}
	if cfg.Quota == nil {
		return nil, errors.New("quota configuration is required")
	}
	if err := cfg.Quota.Validate(); err != nil {
		return nil, fmt.Errorf("invalid quota configuration: %w", err)
	}

	windowSize := time.Duration(cfg.Quota.WindowSizeMs) * time.Millisecond

	keyTTL := cfg.KeyTTL
	if keyTTL == 0 {
		keyTTL = windowSize * 2
	}

	return &BudgetTracker{
		redis:            cfg.Redis,
		totalBudget:      cfg.Quota.TotalQuota,
		reservedBudget:   cfg.Quota.ReservedQuota,
		sharedBudget:     cfg.Quota.SharedQuota,
		windowSize:       windowSize,
		keyTTL:           keyTTL,
		warningThreshold: float64(cfg.Quota.WarningThreshold),
		pauseThreshold:   float64(cfg.Quota.PauseThreshold),
	}, nil
}

// getWindowTimestamp returns the timestamp for the current sliding
// window, aligned to the window size boundary.
func (t *BudgetTracker) getWindowTimestamp() int64 {
	return time.Now().Truncate(t.windowSize).UnixMilli()
}

func (t *BudgetTracker) getKeys(windowTS int64) (totalKey, reservedKey, sharedKey string) {
	tsStr := strconv.FormatInt(windowTS, 10)
	totalKey = KeyPrefixTotal + tsStr
	reservedKey = KeyPrefixReserved + tsStr
	sharedKey = KeyPrefixShared + tsStr
	return
}

// consumeScript atomically checks and increments both the total and the
// pool counter so concurrent consumers never exceed the budget.
var consumeScript = redis.NewScript(`
	local totalKey = KEYS[1]
	local poolKey = KEYS[2]
	local cost = tonumber(ARGV[1])
	local totalBudget = tonumber(ARGV[2])
	local poolBudget = tonumber(ARGV[3])
	local ttl = tonumber(ARGV[4])

	local totalUsed = tonumber(redis.call('GET', totalKey) or '0')
	local poolUsed = tonumber(redis.call('GET', poolKey) or '0')

	if totalUsed + cost > totalBudget then
		return {0, totalUsed, poolUsed}
	end
	if poolUsed + cost > poolBudget then
		return {0, totalUsed, poolUsed}
	end

	redis.call('INCRBY', totalKey, cost)
	redis.call('EXPIRE', totalKey, ttl)
	redis.call('INCRBY', poolKey, cost)
	redis.call('EXPIRE', poolKey, ttl)

	return {1, totalUsed + cost, poolUsed + cost}
`)

// TryConsume attempts to consume quota from the pool matching the
// priority.
//
// Returns:
//   - allowed: true if the consumption was allowed
//   - waitTime: suggested wait before retrying if not allowed
func (t *BudgetTracker) TryConsume(ctx context.Context, cost int, priority Priority) (bool, time.Duration) {
	if cost <= 0 {
		return true, 0
	}

	windowTS := t.getWindowTimestamp()
	totalKey, reservedKey, sharedKey := t.getKeys(windowTS)

	var poolKey string
	var poolBudget int
	if priority == PriorityInteractive {
		poolKey = reservedKey
		poolBudget = t.reservedBudget
	} else {
		poolKey = sharedKey
		poolBudget = t.sharedBudget
	}

	ttlSeconds := int(t.keyTTL.Seconds())
	if ttlSeconds < 1 {
		ttlSeconds = 1
	}

	result, err := consumeScript.Run(ctx, t.redis, []string{totalKey, poolKey},
		cost, t.totalBudget, poolBudget, ttlSeconds).Int64Slice()
	if err != nil {
		// On Redis error, deny the request to stay inside the quota.
		return false, t.calculateWaitTime(windowTS)
	}

	if result[0] != 1 {
		return false, t.calculateWaitTime(windowTS)
	}

	return true, 0
}

// calculateWaitTime returns the time until the next window starts.
func (t *BudgetTracker) calculateWaitTime(windowTS int64) time.Duration {
	windowEnd := time.UnixMilli(windowTS).Add(t.windowSize)
	waitTime := time.Until(windowEnd)
	if waitTime < 0 {
		waitTime = 0
	}
	return waitTime + time.Millisecond
}

// GetUsage returns current quota usage statistics.
func (t *BudgetTracker) GetUsage(ctx context.Context) (*UsageStats, error) {
	windowTS := t.getWindowTimestamp()
	totalKey, reservedKey, sharedKey := t.getKeys(windowTS)

	pipe := t.redis.Pipeline()
	totalCmd := pipe.Get(ctx, totalKey)
	reservedCmd := pipe.Get(ctx, reservedKey)
	sharedCmd := pipe.Get(ctx, sharedKey)

	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to read quota usage: %w", err)
	}

	return &UsageStats{
		TotalUsed:      parseIntOrZero(totalCmd),
		ReservedUsed:   parseIntOrZero(reservedCmd),
		SharedUsed:     parseIntOrZero(sharedCmd),
		TotalBudget:    t.totalBudget,
		ReservedBudget: t.reservedBudget,
		SharedBudget:   t.sharedBudget,
		WindowStart:    time.UnixMilli(windowTS),
	}, nil
}

// parseIntOrZero parses a Redis string result as int, treating missing
// keys as zero usage.
func parseIntOrZero(cmd *redis.StringCmd) int {
	val, err := cmd.Int()
	if err != nil {
		return 0
	}
	return val
}

// RecordEndpointUsage records quota consumption for a specific provider
// endpoint. This is monitoring only and does not affect budgets.
func (t *BudgetTracker) RecordEndpointUsage(ctx context.Context, endpoint string, cost int) error {
	if cost <= 0 || endpoint == "" {
		return nil
	}

	windowTS := t.getWindowTimestamp()
	key := fmt.Sprintf("%s%s:%d", KeyPrefixEndpoint, endpoint, windowTS)

	pipe := t.redis.Pipeline()
	pipe.IncrBy(ctx, key, int64(cost))
	pipe.Expire(ctx, key, t.keyTTL)
	_, err := pipe.Exec(ctx)

	return err
}

// AvailableBudget returns the remaining budget for a priority level.
func (t *BudgetTracker) AvailableBudget(ctx context.Context, priority Priority) (int, error) {
	stats, err := t.GetUsage(ctx)
	if err != nil {
		return 0, err
	}

	var available int
	if priority == PriorityInteractive {
		available = t.reservedBudget - stats.ReservedUsed
	} else {
		available = t.sharedBudget - stats.SharedUsed
	}
	if available < 0 {
		available = 0
	}
	return available, nil
}

// TotalUtilization returns the total budget utilization as a percentage (0-100).
func (t *BudgetTracker) TotalUtilization(ctx context.Context) (float64, error) {
	stats, err := t.GetUsage(ctx)
	if err != nil {
		return 0, err
	}

	if t.totalBudget == 0 {
		return 100, nil
	}

	return float64(stats.TotalUsed) * 100 / float64(t.totalBudget), nil
}

// IsWarningThreshold returns true if utilization reached the warning level.
func (t *BudgetTracker) IsWarningThreshold(ctx context.Context) (bool, error) {
	utilization, err := t.TotalUtilization(ctx)
	if err != nil {
		return false, err
	}
	return utilization >= t.warningThreshold, nil
}

// IsPauseThreshold returns true if utilization reached the level at
// which background refresh should pause.
func (t *BudgetTracker) IsPauseThreshold(ctx context.Context) (bool, error) {
	utilization, err := t.TotalUtilization(ctx)
	if err != nil {
		return false, err
	}
	return utilization >= t.pauseThreshold, nil
}

// GetWindowSize returns the configured window size.
func (t *BudgetTracker) GetWindowSize() time.Duration {
	return t.windowSize
}
