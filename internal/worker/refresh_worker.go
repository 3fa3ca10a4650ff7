// Package worker runs the background refresh loop that keeps market
// prices and wealth snapshots current without user interaction.
package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ewallet-backend/internal/job"
	"github.com/ewallet-backend/internal/logging"
	"github.com/ewallet-backend/internal/models"
	"github.com/ewallet-backend/internal/ratelimit"
	"github.com/ewallet-backend/internal/service"
)

// UserDirectory pages through registered users.
type UserDirectory interface {
	ListUsers(ctx context.Context, limit, offset int) ([]*models.User, error)
}

// PortfolioRefresher lists a user's portfolios and re-prices them.
type PortfolioRefresher interface {
	ListPortfolios(ctx context.Context, userID string) ([]*models.Portfolio, error)
	RefreshPrices(ctx context.Context, portfolioID int64) (*service.PortfolioView, error)
}

// WealthRefresher reads and records wealth snapshots.
type WealthRefresher interface {
	SnapshotSource
	RecordSnapshot(ctx context.Context, userID string) (*models.WealthSnapshot, error)
}

// SnapshotEnqueuer hands snapshot work to the job queue.
type SnapshotEnqueuer interface {
	Enqueue(ctx context.Context, input *job.SnapshotJobInput) (*job.SnapshotResult, error)
}

// Pacer holds the worker back while the provider quota is saturated.
type Pacer interface {
	WaitForCapacity(ctx context.Context) error
}

// RefreshWorker periodically refreshes portfolio prices and records
// wealth snapshots for every user, stalest views first. All provider
// traffic it causes runs at background priority so interactive requests
// keep their quota share.
type RefreshWorker struct {
	users      UserDirectory
	portfolios PortfolioRefresher
	wealth     WealthRefresher
	jobs       SnapshotEnqueuer
	pacer      Pacer
	queue      *StalenessQueue
	interval   time.Duration
	pageSize   int
	logger     *logging.Logger

	mu                  sync.RWMutex
	running             bool
	lastCycleTime       time.Time
	lastCycleDuration   time.Duration
	usersProcessed      int
	portfoliosRefreshed int
	stopCh              chan struct{}
	doneCh              chan struct{}
}

// RefreshWorkerConfig holds configuration for the refresh worker.
type RefreshWorkerConfig struct {
	Users      UserDirectory
	Portfolios PortfolioRefresher
	Wealth     WealthRefresher

	// Jobs is optional. When set, snapshots are enqueued instead of
	// recorded inline, so the job queue controls concurrency.
	Jobs SnapshotEnqueuer

	// Pacer is optional. When set, the worker waits for quota capacity
	// before refreshing each user.
	Pacer Pacer

	// Interval between refresh cycles. Default: 15 minutes, minimum: 1 minute.
	Interval time.Duration

	// PageSize for user listing. Default: 100.
	PageSize int

	Logger *logging.Logger
}

// NewRefreshWorker creates a refresh worker from the configuration.
func NewRefreshWorker(cfg *RefreshWorkerConfig) (*RefreshWorker, error) {
	if cfg.Users == nil {
		return nil, fmt.Errorf("user directory cannot be nil")
	}
	if cfg.Portfolios == nil {
		return nil, fmt.Errorf("portfolio refresher cannot be nil")
	}
	if cfg.Wealth == nil {
		return nil, fmt.Errorf("wealth refresher cannot be nil")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	interval := cfg.Interval
	if interval == 0 {
		interval = 15 * time.Minute
	}
	if interval < time.Minute {
		return nil, fmt.Errorf("refresh interval must be at least 1 minute, got %v", interval)
	}

	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = 100
	}

	return &RefreshWorker{
		users:      cfg.Users,
		portfolios: cfg.Portfolios,
		wealth:     cfg.Wealth,
		jobs:       cfg.Jobs,
		pacer:      cfg.Pacer,
		queue:      NewStalenessQueue(),
		interval:   interval,
		pageSize:   pageSize,
		logger:     cfg.Logger,
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
	}, nil
}

// Start begins the periodic refresh loop.
func (w *RefreshWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("refresh worker is already running")
	}
	w.running = true
	w.mu.Unlock()

	w.logger.WithField("interval", w.interval.String()).Info("refresh worker started")

	go w.loop(ctx)
	return nil
}

// Stop gracefully stops the worker, waiting for the current cycle to
// finish or the context to expire.
func (w *RefreshWorker) Stop(ctx context.Context) error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return fmt.Errorf("refresh worker is not running")
	}
	w.mu.Unlock()

	close(w.stopCh)

	select {
	case <-w.doneCh:
		w.logger.Info("refresh worker stopped")
	case <-ctx.Done():
		return ctx.Err()
	}

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()

	return nil
}

func (w *RefreshWorker) loop(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			result, err := w.RunCycle(ctx)
			if err != nil {
				w.logger.WithError(err).Error("refresh cycle failed")
				continue
			}
			w.logger.WithFields(map[string]interface{}{
				"users":      result.UsersProcessed,
				"portfolios": result.PortfoliosRefreshed,
				"duration":   result.Duration.String(),
			}).Info("refresh cycle completed")
		}
	}
}

// CycleResult summarizes one refresh cycle.
type CycleResult struct {
	UsersProcessed      int
	PortfoliosRefreshed int
	SnapshotsScheduled  int
	Duration            time.Duration
}

// RunCycle refreshes every user once, stalest first. It is exported so
// an operator can trigger a cycle outside the schedule.
func (w *RefreshWorker) RunCycle(ctx context.Context) (*CycleResult, error) {
	start := time.Now()
	ctx = ratelimit.WithPriority(ctx, ratelimit.PriorityBackground)

	users, err := w.listAllUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	w.queue.Rebuild(ctx, users, w.wealth)

	result := &CycleResult{}
	for _, userID := range w.queue.Ordered() {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		case <-w.stopCh:
			return result, nil
		default:
		}

		if w.pacer != nil {
			if err := w.pacer.WaitForCapacity(ctx); err != nil {
				w.logger.WithError(err).Warn("refresh cycle cut short waiting for quota capacity")
				break
			}
		}

		result.PortfoliosRefreshed += w.refreshUser(ctx, userID)

		if w.scheduleSnapshot(ctx, userID) {
			result.SnapshotsScheduled++
		}
		result.UsersProcessed++
	}

	result.Duration = time.Since(start)

	w.mu.Lock()
	w.lastCycleTime = start
	w.lastCycleDuration = result.Duration
	w.usersProcessed = result.UsersProcessed
	w.portfoliosRefreshed = result.PortfoliosRefreshed
	w.mu.Unlock()

	return result, nil
}

func (w *RefreshWorker) listAllUsers(ctx context.Context) ([]*models.User, error) {
	var all []*models.User
	offset := 0
	for {
		page, err := w.users.ListUsers(ctx, w.pageSize, offset)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(page) < w.pageSize {
			return all, nil
		}
		offset += w.pageSize
	}
}

// refreshUser re-prices all of the user's portfolios and returns how
// many were refreshed. Individual failures are logged and skipped.
func (w *RefreshWorker) refreshUser(ctx context.Context, userID string) int {
	portfolios, err := w.portfolios.ListPortfolios(ctx, userID)
	if err != nil {
		w.logger.WithError(err).WithField("userId", userID).Warn("failed to list portfolios for refresh")
		return 0
	}

	refreshed := 0
	for _, portfolio := range portfolios {
		if _, err := w.portfolios.RefreshPrices(ctx, portfolio.ID); err != nil {
			w.logger.WithError(err).WithFields(map[string]interface{}{
				"userId":      userID,
				"portfolioId": portfolio.ID,
			}).Warn("failed to refresh portfolio prices")
			continue
		}
		refreshed++
	}
	return refreshed
}

func (w *RefreshWorker) scheduleSnapshot(ctx context.Context, userID string) bool {
	if w.jobs != nil {
		if _, err := w.jobs.Enqueue(ctx, &job.SnapshotJobInput{UserIDs: []string{userID}}); err != nil {
			w.logger.WithError(err).WithField("userId", userID).Warn("failed to enqueue snapshot job")
			return false
		}
		return true
	}

	if _, err := w.wealth.RecordSnapshot(ctx, userID); err != nil {
		w.logger.WithError(err).WithField("userId", userID).Warn("failed to record wealth snapshot")
		return false
	}
	return true
}

// Status represents the current state of the refresh worker.
type Status struct {
	Running             bool          `json:"running"`
	LastCycleTime       time.Time     `json:"lastCycleTime"`
	LastCycleDuration   time.Duration `json:"lastCycleDuration"`
	UsersProcessed      int           `json:"usersProcessed"`
	PortfoliosRefreshed int           `json:"portfoliosRefreshed"`
	IntervalSeconds     int           `json:"intervalSeconds"`
}

// GetStatus returns the worker's current status.
func (w *RefreshWorker) GetStatus() *Status {
	w.mu.RLock()
	defer w.mu.RUnlock()

	return &Status{
		Running:             w.running,
		LastCycleTime:       w.lastCycleTime,
		LastCycleDuration:   w.lastCycleDuration,
		UsersProcessed:      w.usersProcessed,
		PortfoliosRefreshed: w.portfoliosRefreshed,
		IntervalSeconds:     int(w.interval.Seconds()),
	}
}
