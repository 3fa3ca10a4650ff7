package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ewallet-backend/internal/logging"
)

func newTestBreaker(timeout time.Duration) *CircuitBreaker {
	cfg := &Config{
		Name:             "test-provider",
		MaxFailures:      3,
		FailureThreshold: 0.5,
		Timeout:          timeout,
		HalfOpenMaxCalls: 2,
	}
	return NewCircuitBreaker(cfg, logging.NewLogger(logging.LevelError, logging.FormatText))
}

var errProvider = errors.New("provider unavailable")

func fail() error    { return errProvider }
func succeed() error { return nil }

func TestStaysClosedOnSuccess(t *testing.T) {
	cb := newTestBreaker(time.Minute)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		require.NoError(t, cb.Execute(ctx, succeed))
	}
	assert.Equal(t, StateClosed, cb.GetState())
}

func TestOpensAfterConsecutiveFailures(t *testing.T) {
	cb := newTestBreaker(time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		err := cb.Execute(ctx, fail)
		assert.ErrorIs(t, err, errProvider)
	}
	assert.Equal(t, StateOpen, cb.GetState())

	// Calls are rejected without reaching the provider while open.
	err := cb.Execute(ctx, func() error {
		t.Fatal("provider called while circuit open")
		return nil
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)
}

func TestHalfOpenClosesAfterSuccessfulProbes(t *testing.T) {
	cb := newTestBreaker(10 * time.Millisecond)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		cb.Execute(ctx, fail) // nolint:errcheck
	}
	require.Equal(t, StateOpen, cb.GetState())

	time.Sleep(20 * time.Millisecond)

	require.NoError(t, cb.Execute(ctx, succeed))
	assert.Equal(t, StateHalfOpen, cb.GetState())
	require.NoError(t, cb.Execute(ctx, succeed))
	assert.Equal(t, StateClosed, cb.GetState())
}

func TestHalfOpenReopensOnFailure(t *testing.T) {
	cb := newTestBreaker(10 * time.Millisecond)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		cb.Execute(ctx, fail) // nolint:errcheck
	}
	time.Sleep(20 * time.Millisecond)

	err := cb.Execute(ctx, fail)
	assert.ErrorIs(t, err, errProvider)
	assert.Equal(t, StateOpen, cb.GetState())
}

func TestResetClosesCircuit(t *testing.T) {
	cb := newTestBreaker(time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		cb.Execute(ctx, fail) // nolint:errcheck
	}
	require.Equal(t, StateOpen, cb.GetState())

	cb.Reset()
	assert.Equal(t, StateClosed, cb.GetState())
	assert.NoError(t, cb.Execute(ctx, succeed))
}

func TestStatsReflectCalls(t *testing.T) {
	cb := newTestBreaker(time.Minute)
	ctx := context.Background()

	cb.Execute(ctx, succeed) // nolint:errcheck
	cb.Execute(ctx, fail)    // nolint:errcheck

	stats := cb.GetStats()
	assert.Equal(t, "test-provider", stats.Name)
	assert.Equal(t, 2, stats.TotalCalls)
	assert.Equal(t, 1, stats.Failures)
	assert.Equal(t, 1, stats.Successes)
	assert.InDelta(t, 0.5, stats.FailureRate, 0.001)
}
