// Package job queues and executes wealth snapshot work. The refresh
// worker and operators enqueue per-user snapshot jobs; a bounded worker
// pool drains them by priority so a burst of snapshot requests cannot
// monopolize the database or the provider quota.
package job

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ewallet-backend/internal/logging"
	"github.com/ewallet-backend/internal/models"
	"github.com/ewallet-backend/internal/retry"
)

// Job statuses.
const (
	StatusQueued     = "queued"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// SnapshotRecorder computes and persists a wealth snapshot for a user.
type SnapshotRecorder interface {
	RecordSnapshot(ctx context.Context, userID string) (*models.WealthSnapshot, error)
}

// SnapshotJobInput requests snapshot jobs, one per user.
type SnapshotJobInput struct {
	UserIDs  []string `json:"userIds"`
	Priority *int     `json:"priority,omitempty"`
}

// SnapshotResult is the result of enqueueing snapshot jobs.
type SnapshotResult struct {
	JobID     string    `json:"jobId"` // first job ID
	JobIDs    []string  `json:"jobIds"`
	Status    string    `json:"status"`
	StartedAt time.Time `json:"startedAt"`
}

// SnapshotJobRecord tracks one per-user snapshot job.
type SnapshotJobRecord struct {
	JobID       string                 `json:"jobId"`
	UserID      string                 `json:"userId"`
	Status      string                 `json:"status"`
	Priority    int                    `json:"priority"`
	StartedAt   time.Time              `json:"startedAt"`
	CompletedAt *time.Time             `json:"completedAt,omitempty"`
	Error       *string                `json:"error,omitempty"`
	RetryCount  int                    `json:"retryCount"`
	Snapshot    *models.WealthSnapshot `json:"snapshot,omitempty"`
}

// SnapshotJobService creates job records and executes them against the
// wealth recorder. Records are kept in memory; snapshots themselves are
// cheap to recompute, so jobs do not survive a restart.
type SnapshotJobService struct {
	recorder SnapshotRecorder
	logger   *logging.Logger

	mu      sync.RWMutex
	records map[string]*SnapshotJobRecord
}

// NewSnapshotJobService creates a snapshot job service.
func NewSnapshotJobService(recorder SnapshotRecorder, logger *logging.Logger) *SnapshotJobService {
	return &SnapshotJobService{
		recorder: recorder,
		logger:   logger,
		records:  make(map[string]*SnapshotJobRecord),
	}
}

// Execute creates queued job records for the input, one per user.
func (s *SnapshotJobService) Execute(ctx context.Context, input *SnapshotJobInput) (*SnapshotResult, []*SnapshotJobRecord, error) {
	if len(input.UserIDs) == 0 {
		return nil, nil, fmt.Errorf("at least one user is required")
	}

	priority := 0
	if input.Priority != nil {
		priority = *input.Priority
	}

	startedAt := time.Now()
	jobIDs := make([]string, 0, len(input.UserIDs))
	records := make([]*SnapshotJobRecord, 0, len(input.UserIDs))

	s.mu.Lock()
	for _, userID := range input.UserIDs {
		record := &SnapshotJobRecord{
			JobID:     uuid.New().String(),
			UserID:    userID,
			Status:    StatusQueued,
			Priority:  priority,
			StartedAt: startedAt,
		}
		s.records[record.JobID] = record
		jobIDs = append(jobIDs, record.JobID)
		records = append(records, record)
	}
	s.mu.Unlock()

	return &SnapshotResult{
		JobID:     jobIDs[0],
		JobIDs:    jobIDs,
		Status:    StatusQueued,
		StartedAt: startedAt,
	}, records, nil
}

// executeSnapshot runs one job, retrying transient recorder failures.
func (s *SnapshotJobService) executeSnapshot(ctx context.Context, record *SnapshotJobRecord) {
	s.setStatus(record, StatusInProgress, nil)

	var snapshot *models.WealthSnapshot
	result := retry.WithExponentialBackoff(ctx, retry.DefaultConfig(), func(ctx context.Context, attempt int) error {
		var err error
		snapshot, err = s.recorder.RecordSnapshot(ctx, record.UserID)
		return err
	})

	s.mu.Lock()
	record.RetryCount = result.Attempts - 1
	s.mu.Unlock()

	if !result.Success {
		msg := result.LastError.Error()
		s.setStatus(record, StatusFailed, &msg)
		s.logger.WithError(result.LastError).WithFields(map[string]interface{}{
			"jobId":  record.JobID,
			"userId": record.UserID,
		}).Warn("snapshot job failed")
		return
	}

	s.mu.Lock()
	record.Snapshot = snapshot
	s.mu.Unlock()
	s.setStatus(record, StatusCompleted, nil)
}

func (s *SnapshotJobService) setStatus(record *SnapshotJobRecord, status string, errMsg *string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record.Status = status
	record.Error = errMsg
	if status == StatusCompleted || status == StatusFailed {
		now := time.Now()
		record.CompletedAt = &now
	}
}

// GetProgress returns the current state of a job.
func (s *SnapshotJobService) GetProgress(jobID string) (*SnapshotJobRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.records[jobID]
	if !ok {
		return nil, fmt.Errorf("snapshot job not found: %s", jobID)
	}

	copied := *record
	return &copied, nil
}

// Cancel marks a queued job as failed so the queue skips it. Jobs that
// already completed or failed cannot be cancelled.
func (s *SnapshotJobService) Cancel(jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[jobID]
	if !ok {
		return fmt.Errorf("snapshot job not found: %s", jobID)
	}
	if record.Status == StatusCompleted || record.Status == StatusFailed {
		return fmt.Errorf("snapshot job already %s", record.Status)
	}

	msg := "job cancelled"
	record.Status = StatusFailed
	record.Error = &msg
	now := time.Now()
	record.CompletedAt = &now
	return nil
}

// isCancelled reports whether the job was cancelled while queued.
func (s *SnapshotJobService) isCancelled(jobID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.records[jobID]
	return ok && record.Status == StatusFailed && record.CompletedAt != nil
}
