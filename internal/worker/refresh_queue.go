package worker

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ewallet-backend/internal/models"
)

// SnapshotSource reports the last recorded wealth snapshot for a user.
type SnapshotSource interface {
	GetLastSnapshot(ctx context.Context, userID string) (*models.WealthSnapshot, error)
}

// UserStaleness holds a user together with how stale their wealth view is.
type UserStaleness struct {
	UserID         string
	LastSnapshotAt time.Time // zero when no snapshot was ever recorded
	Staleness      time.Duration
}

// StalenessQueue orders users by how long ago their wealth snapshot was
// recorded, so the refresh worker spends provider quota on the stalest
// views first. Users without any snapshot sort before everyone else.
type StalenessQueue struct {
	mu      sync.RWMutex
	entries []UserStaleness
}

// NewStalenessQueue creates an empty queue.
func NewStalenessQueue() *StalenessQueue {
	return &StalenessQueue{}
}

// Rebuild replaces the queue contents with the given users, ordered
// stalest first. Snapshot lookups that fail are treated as never
// snapshotted so those users are not starved.
func (q *StalenessQueue) Rebuild(ctx context.Context, users []*models.User, snapshots SnapshotSource) {
	now := time.Now()
	entries := make([]UserStaleness, 0, len(users))

	for _, user := range users {
		entry := UserStaleness{UserID: user.ID}

		snapshot, err := snapshots.GetLastSnapshot(ctx, user.ID)
		if err == nil && snapshot != nil {
			entry.LastSnapshotAt = snapshot.ComputedAt
			entry.Staleness = now.Sub(snapshot.ComputedAt)
		} else {
			entry.Staleness = now.Sub(time.Time{})
		}

		entries = append(entries, entry)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Staleness > entries[j].Staleness
	})

	q.mu.Lock()
	q.entries = entries
	q.mu.Unlock()
}

// Ordered returns the user IDs, stalest first.
func (q *StalenessQueue) Ordered() []string {
	q.mu.RLock()
	defer q.mu.RUnlock()

	ids := make([]string, len(q.entries))
	for i, entry := range q.entries {
		ids[i] = entry.UserID
	}
	return ids
}

// SplitByAge returns the users whose snapshot is older than maxAge (or
// missing entirely) separately from those still considered fresh.
func (q *StalenessQueue) SplitByAge(maxAge time.Duration) (stale []string, fresh []string) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	for _, entry := range q.entries {
		if entry.Staleness > maxAge {
			stale = append(stale, entry.UserID)
		} else {
			fresh = append(fresh, entry.UserID)
		}
	}
	return stale, fresh
}

// Count returns the number of users in the queue.
func (q *StalenessQueue) Count() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.entries)
}
