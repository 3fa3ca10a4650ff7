package job

import (
	"container/heap"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ewallet-backend/internal/logging"
)

// SnapshotQueue drains snapshot jobs through a bounded worker pool.
// Higher priority jobs run first.
type SnapshotQueue struct {
	mu sync.RWMutex

	queue     *priorityQueue
	executor  *SnapshotJobService
	workers   int
	workerSem chan struct{}
	logger    *logging.Logger

	started bool
	stopCh  chan struct{}
	doneCh  chan struct{}
	active  map[string]struct{}
}

// NewSnapshotQueue creates a queue draining into the given executor.
func NewSnapshotQueue(executor *SnapshotJobService, workers int, logger *logging.Logger) *SnapshotQueue {
	if workers <= 0 {
		workers = 4
	}

	return &SnapshotQueue{
		queue:     &priorityQueue{},
		executor:  executor,
		workers:   workers,
		workerSem: make(chan struct{}, workers),
		logger:    logger,
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
		active:    make(map[string]struct{}),
	}
}

// Start begins draining the queue.
func (q *SnapshotQueue) Start(ctx context.Context) error {
	q.mu.Lock()
	if q.started {
		q.mu.Unlock()
		return fmt.Errorf("snapshot queue already started")
	}
	q.started = true
	heap.Init(q.queue)
	q.mu.Unlock()

	go q.processJobs(ctx)
	return nil
}

// Stop stops draining. Jobs already handed to a worker finish.
func (q *SnapshotQueue) Stop() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.started {
		return fmt.Errorf("snapshot queue not started")
	}
	q.started = false
	close(q.stopCh)
	return nil
}

// Enqueue creates job records for the input and queues them.
func (q *SnapshotQueue) Enqueue(ctx context.Context, input *SnapshotJobInput) (*SnapshotResult, error) {
	result, records, err := q.executor.Execute(ctx, input)
	if err != nil {
		return nil, err
	}

	q.mu.Lock()
	for _, record := range records {
		heap.Push(q.queue, &queueItem{record: record, priority: record.Priority, index: -1})
	}
	q.mu.Unlock()

	return result, nil
}

func (q *SnapshotQueue) processJobs(ctx context.Context) {
	defer close(q.doneCh)

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-q.stopCh:
			return
		case <-ticker.C:
			q.processNext(ctx)
		}
	}
}

func (q *SnapshotQueue) processNext(ctx context.Context) {
	select {
	case q.workerSem <- struct{}{}:
	default:
		return // all workers busy
	}

	q.mu.Lock()
	if q.queue.Len() == 0 {
		q.mu.Unlock()
		<-q.workerSem
		return
	}
	item := heap.Pop(q.queue).(*queueItem)
	q.active[item.record.JobID] = struct{}{}
	q.mu.Unlock()

	go func() {
		defer func() {
			q.mu.Lock()
			delete(q.active, item.record.JobID)
			q.mu.Unlock()
			<-q.workerSem
		}()

		if q.executor.isCancelled(item.record.JobID) {
			return
		}
		q.executor.executeSnapshot(ctx, item.record)
	}()
}

// QueueSize returns the number of jobs waiting.
func (q *SnapshotQueue) QueueSize() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.queue.Len()
}

// ActiveJobs returns the number of jobs currently executing.
func (q *SnapshotQueue) ActiveJobs() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.active)
}

type queueItem struct {
	record   *SnapshotJobRecord
	priority int
	index    int
}

// priorityQueue implements heap.Interface; higher priority pops first.
type priorityQueue []*queueItem

func (pq priorityQueue) Len() int { return len(pq) }

func (pq priorityQueue) Less(i, j int) bool {
	return pq[i].priority > pq[j].priority
}

func (pq priorityQueue) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
	pq[i].index = i
	pq[j].index = j
}

func (pq *priorityQueue) Push(x interface{}) {
	item := x.(*queueItem)
	item.index = len(*pq)
	*pq = append(*pq, item)
}

func (pq *priorityQueue) Pop() interface{} {
	old := *pq
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*pq = old[0 : n-1]
	return item
}
