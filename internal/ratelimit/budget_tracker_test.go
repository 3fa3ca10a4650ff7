package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testQuotaConfig() *QuotaConfig {
	return &QuotaConfig{
		TotalQuota:          10,
		ReservedQuota:       6,
		SharedQuota:         4,
		WindowSizeMs:        60000,
		WarningThreshold:    80,
		PauseThreshold:      90,
		DefaultEndpointCost: 2,
	}
}

func setupTracker(t *testing.T, quota *QuotaConfig) *BudgetTracker {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	tracker, err := NewBudgetTracker(&BudgetTrackerConfig{
		Redis: client,
		Quota: quota,
	})
	require.NoError(t, err)
	return tracker
}

func TestTryConsumeWithinBudget(t *testing.T) {
	tracker := setupTracker(t, testQuotaConfig())
	ctx := context.Background()

	allowed, wait := tracker.TryConsume(ctx, 3, PriorityInteractive)
	assert.True(t, allowed)
	assert.Zero(t, wait)

	stats, err := tracker.GetUsage(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalUsed)
	assert.Equal(t, 3, stats.ReservedUsed)
	assert.Equal(t, 0, stats.SharedUsed)
}

func TestTryConsumeDeniesOverPoolBudget(t *testing.T) {
	tracker := setupTracker(t, testQuotaConfig())
	ctx := context.Background()

	// Shared pool holds 4.
	allowed, _ := tracker.TryConsume(ctx, 4, PriorityBackground)
	require.True(t, allowed)

	allowed, wait := tracker.TryConsume(ctx, 1, PriorityBackground)
	assert.False(t, allowed)
	assert.Positive(t, wait)
}

func TestPoolsAreIndependent(t *testing.T) {
	tracker := setupTracker(t, testQuotaConfig())
	ctx := context.Background()

	// Exhaust the shared pool; the reserved pool must stay usable.
	allowed, _ := tracker.TryConsume(ctx, 4, PriorityBackground)
	require.True(t, allowed)

	allowed, _ = tracker.TryConsume(ctx, 6, PriorityInteractive)
	assert.True(t, allowed)

	// Total budget is now exhausted for both pools.
	allowed, _ = tracker.TryConsume(ctx, 1, PriorityInteractive)
	assert.False(t, allowed)
}

func TestTotalBudgetCapsPools(t *testing.T) {
	tracker := setupTracker(t, &QuotaConfig{
		TotalQuota:          5,
		ReservedQuota:       4,
		SharedQuota:         1,
		WindowSizeMs:        60000,
		WarningThreshold:    80,
		PauseThreshold:      90,
		DefaultEndpointCost: 1,
	})
	ctx := context.Background()

	require.True(t, first(tracker.TryConsume(ctx, 4, PriorityInteractive)))
	require.True(t, first(tracker.TryConsume(ctx, 1, PriorityBackground)))

	allowed, _ := tracker.TryConsume(ctx, 1, PriorityBackground)
	assert.False(t, allowed)
}

func first(allowed bool, _ time.Duration) bool { return allowed }

func TestZeroCostAlwaysAllowed(t *testing.T) {
	tracker := setupTracker(t, testQuotaConfig())

	allowed, wait := tracker.TryConsume(context.Background(), 0, PriorityBackground)
	assert.True(t, allowed)
	assert.Zero(t, wait)
}

func TestNewWindowResetsUsage(t *testing.T) {
	quota := testQuotaConfig()
	quota.WindowSizeMs = 20
	tracker := setupTracker(t, quota)
	ctx := context.Background()

	allowed, _ := tracker.TryConsume(ctx, 6, PriorityInteractive)
	require.True(t, allowed)

	// A fresh window uses fresh keys, so the full pool is available again.
	time.Sleep(30 * time.Millisecond)

	allowed, _ = tracker.TryConsume(ctx, 6, PriorityInteractive)
	assert.True(t, allowed)
}

func TestUtilizationThresholds(t *testing.T) {
	tracker := setupTracker(t, testQuotaConfig())
	ctx := context.Background()

	warning, err := tracker.IsWarningThreshold(ctx)
	require.NoError(t, err)
	assert.False(t, warning)

	// 9 of 10 used: warning and pause both trip.
	require.True(t, first(tracker.TryConsume(ctx, 6, PriorityInteractive)))
	require.True(t, first(tracker.TryConsume(ctx, 3, PriorityBackground)))

	utilization, err := tracker.TotalUtilization(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 90.0, utilization, 0.001)

	warning, err = tracker.IsWarningThreshold(ctx)
	require.NoError(t, err)
	assert.True(t, warning)

	pause, err := tracker.IsPauseThreshold(ctx)
	require.NoError(t, err)
	assert.True(t, pause)
}

func TestAvailableBudgetPerPriority(t *testing.T) {
	tracker := setupTracker(t, testQuotaConfig())
	ctx := context.Background()

	require.True(t, first(tracker.TryConsume(ctx, 2, PriorityInteractive)))

	available, err := tracker.AvailableBudget(ctx, PriorityInteractive)
	require.NoError(t, err)
	assert.Equal(t, 4, available)

	available, err = tracker.AvailableBudget(ctx, PriorityBackground)
	require.NoError(t, err)
	assert.Equal(t, 4, available)
}

func TestRecordEndpointUsage(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	tracker, err := NewBudgetTracker(&BudgetTrackerConfig{
		Redis: client,
		Quota: testQuotaConfig(),
	})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, tracker.RecordEndpointUsage(ctx, EndpointStockQuote, 5))

	keys, err := client.Keys(ctx, KeyPrefixEndpoint+"*").Result()
	require.NoError(t, err)
	require.Len(t, keys, 1)

	val, err := client.Get(ctx, keys[0]).Int()
	require.NoError(t, err)
	assert.Equal(t, 5, val)
}

func TestNewBudgetTrackerValidation(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	_, err := NewBudgetTracker(nil)
	assert.Error(t, err)

	_, err = NewBudgetTracker(&BudgetTrackerConfig{Quota: testQuotaConfig()})
	assert.Error(t, err)

	_, err = NewBudgetTracker(&BudgetTrackerConfig{Redis: client})
	assert.Error(t, err)

	bad := testQuotaConfig()
	bad.ReservedQuota = 20
	_, err = NewBudgetTracker(&BudgetTrackerConfig{Redis: client, Quota: bad})
	assert.Error(t, err)
}

func TestPriorityFromContext(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, PriorityInteractive, PriorityFromContext(ctx, PriorityInteractive))

	ctx = WithPriority(ctx, PriorityBackground)
	assert.Equal(t, PriorityBackground, PriorityFromContext(ctx, PriorityInteractive))
}
