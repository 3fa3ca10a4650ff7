package ratelimit

import (
	"sync"
	"time"
)

// UsageMetrics tracks allowed and denied provider calls per endpoint.
// It is process-local and safe for concurrent use.
type UsageMetrics struct {
	mu        sync.RWMutex
	endpoints map[string]*endpointCounters
	startedAt time.Time
}

type endpointCounters struct {
	allowed    int64
	denied     int64
	costSpent  int64
	lastDenied time.Time
}

// EndpointMetrics is a snapshot of counters for one endpoint.
type EndpointMetrics struct {
	Endpoint   string    `json:"endpoint"`
	Allowed    int64     `json:"allowed"`
	Denied     int64     `json:"denied"`
	CostSpent  int64     `json:"costSpent"`
	LastDenied time.Time `json:"lastDenied,omitempty"`
}

// MetricsSnapshot is a point-in-time view of all endpoint metrics.
type MetricsSnapshot struct {
	StartedAt time.Time         `json:"startedAt"`
	Endpoints []EndpointMetrics `json:"endpoints"`
}

// NewUsageMetrics creates an empty metrics collector.
func NewUsageMetrics() *UsageMetrics {
	return &UsageMetrics{
		endpoints: make(map[string]*endpointCounters),
		startedAt: time.Now(),
	}
}

func (m *UsageMetrics) counters(endpoint string) *endpointCounters {
	if c, ok := m.endpoints[endpoint]; ok {
		return c
	}
	c := &endpointCounters{}
	m.endpoints[endpoint] = c
	return c
}

// RecordAllowed records a provider call that fit in the budget.
func (m *UsageMetrics) RecordAllowed(endpoint string, cost int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c := m.counters(endpoint)
	c.allowed++
	c.costSpent += int64(cost)
}

// RecordDenied records a provider call rejected for lack of budget.
func (m *UsageMetrics) RecordDenied(endpoint string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c := m.counters(endpoint)
	c.denied++
	c.lastDenied = time.Now()
}

// Snapshot returns the current counters for all endpoints.
func (m *UsageMetrics) Snapshot() *MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snapshot := &MetricsSnapshot{
		StartedAt: m.startedAt,
		Endpoints: make([]EndpointMetrics, 0, len(m.endpoints)),
	}
	for endpoint, c := range m.endpoints {
		snapshot.Endpoints = append(snapshot.Endpoints, EndpointMetrics{
			Endpoint:   endpoint,
			Allowed:    c.allowed,
			Denied:     c.denied,
			CostSpent:  c.costSpent,
			LastDenied: c.lastDenied,
		})
	}
	return snapshot
}

// Reset clears all counters.
func (m *UsageMetrics) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.endpoints = make(map[string]*endpointCounters)
	m.startedAt = time.Now()
}
