package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastConfig() *Config {
	return &Config{
		MaxAttempts:  3,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
	}
}

func TestSucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	result := WithExponentialBackoff(context.Background(), fastConfig(), func(ctx context.Context, attempt int) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})

	assert.True(t, result.Success)
	assert.Equal(t, 3, result.Attempts)
	assert.NoError(t, result.LastError)
}

func TestGivesUpAfterMaxAttempts(t *testing.T) {
	failure := errors.New("provider down")
	calls := 0
	result := WithExponentialBackoff(context.Background(), fastConfig(), func(ctx context.Context, attempt int) error {
		calls++
		return failure
	})

	assert.False(t, result.Success)
	assert.Equal(t, 3, calls)
	assert.ErrorIs(t, result.LastError, failure)
}

func TestStopsOnContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	cfg := &Config{
		MaxAttempts:  10,
		InitialDelay: 50 * time.Millisecond,
		MaxDelay:     time.Second,
		Multiplier:   2.0,
	}

	calls := 0
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	result := WithExponentialBackoff(ctx, cfg, func(ctx context.Context, attempt int) error {
		calls++
		return errors.New("still failing")
	})

	assert.False(t, result.Success)
	assert.ErrorIs(t, result.LastError, context.Canceled)
	assert.Less(t, calls, 10)
}

func TestDoWrapsLastError(t *testing.T) {
	failure := errors.New("no quote")
	err := Do(context.Background(), func(ctx context.Context, attempt int) error {
		if attempt == 1 {
			return failure
		}
		return nil
	})
	require.NoError(t, err)

	err = Do(context.Background(), func(ctx context.Context, attempt int) error {
		return failure
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, failure)
}

func TestDelayIsCappedAtMaxDelay(t *testing.T) {
	cfg := &Config{
		MaxAttempts:  5,
		InitialDelay: time.Millisecond,
		MaxDelay:     4 * time.Millisecond,
		Multiplier:   10.0,
	}

	assert.Equal(t, time.Millisecond, calculateDelay(cfg, 1))
	assert.Equal(t, 4*time.Millisecond, calculateDelay(cfg, 2))
	assert.Equal(t, 4*time.Millisecond, calculateDelay(cfg, 4))
}
