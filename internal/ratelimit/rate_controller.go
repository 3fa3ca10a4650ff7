package ratelimit

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Default refresh controller configuration values.
const (
	DefaultBaseDelay = 500 * time.Millisecond
	DefaultMaxDelay  = 30 * time.Second
)

// ErrContextCancelled is returned when the context is cancelled while
// waiting for quota capacity.
var ErrContextCancelled = errors.New("context cancelled while waiting for quota capacity")

// RefreshRateController paces the background refresh worker. When total
// quota utilization crosses the pause threshold the controller holds
// the worker back with exponential backoff, so interactive requests
// keep their share of the provider budget.
type RefreshRateController struct {
	tracker          *BudgetTracker
	baseDelay        time.Duration
	maxDelay         time.Duration
	currentDelay     time.Duration
	consecutiveFails int
	mu               sync.Mutex
}

// RefreshRateControllerConfig holds configuration for the controller.
type RefreshRateControllerConfig struct {
	// Tracker is the quota budget tracker. Required.
	Tracker *BudgetTracker

	// BaseDelay is the initial backoff delay. Default: 500ms.
	BaseDelay time.Duration

	// MaxDelay is the maximum backoff delay. Default: 30s.
	MaxDelay time.Duration
}

// Validate checks if the configuration is valid.
func (c *RefreshRateControllerConfig) Validate() error {
	if c.Tracker == nil {
		return errors.New("tracker is required")
	}
	if c.BaseDelay < 0 {
		return errors.New("base delay cannot be negative")
	}
	if c.MaxDelay < 0 {
		return errors.New("max delay cannot be negative")
	}
	if c.MaxDelay > 0 && c.BaseDelay > 0 && c.BaseDelay > c.MaxDelay {
		return errors.New("base delay cannot exceed max delay")
	}
	return nil
}

// NewRefreshRateController creates a controller with the given configuration.
func NewRefreshRateController(cfg *RefreshRateControllerConfig) (*RefreshRateController, error) {
	if cfg == nil {
		return nil, errors.New("configuration is required")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	baseDelay := cfg.BaseDelay
	if baseDelay == 0 {
		baseDelay = DefaultBaseDelay
	}

	maxDelay := cfg.MaxDelay
	if maxDelay == 0 {
		maxDelay = DefaultMaxDelay
	}

	return &RefreshRateController{
		tracker:      cfg.Tracker,
		baseDelay:    baseDelay,
		maxDelay:     maxDelay,
		currentDelay: baseDelay,
	}, nil
}

// WaitForCapacity blocks until quota utilization drops below the pause
// threshold or the context is cancelled.
func (c *RefreshRateController) WaitForCapacity(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ErrContextCancelled
		default:
		}

		if !c.ShouldPause(ctx) {
			c.RecordSuccess()
			return nil
		}

		c.RecordFailure()

		c.mu.Lock()
		delay := c.currentDelay
		c.mu.Unlock()

		select {
		case <-ctx.Done():
			return ErrContextCancelled
		case <-time.After(delay):
		}
	}
}

// RecordSuccess resets the backoff after capacity was available.
func (c *RefreshRateController) RecordSuccess() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.consecutiveFails = 0
	c.currentDelay = c.baseDelay
}

// RecordFailure grows the backoff while the quota stays saturated.
func (c *RefreshRateController) RecordFailure() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.consecutiveFails++

	newDelay := c.baseDelay
	for i := 0; i < c.consecutiveFails; i++ {
		newDelay *= 2
		if newDelay > c.maxDelay {
			newDelay = c.maxDelay
			break
		}
	}
	c.currentDelay = newDelay
}

// ShouldPause returns true if background refresh should pause.
func (c *RefreshRateController) ShouldPause(ctx context.Context) bool {
	isPause, err := c.tracker.IsPauseThreshold(ctx)
	if err != nil {
		// On error, pause rather than risk blowing the quota.
		return true
	}
	return isPause
}

// GetCurrentDelay returns the current backoff delay.
func (c *RefreshRateController) GetCurrentDelay() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentDelay
}

// GetConsecutiveFailures returns the number of consecutive saturated checks.
func (c *RefreshRateController) GetConsecutiveFailures() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.consecutiveFails
}
