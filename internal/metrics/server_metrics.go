// Package metrics collects request counters and latency distributions for
// the API server.
package metrics

import (
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// RouteGroup classifies a request for latency tracking.
type RouteGroup string

const (
	GroupRead   RouteGroup = "read"
	GroupWrite  RouteGroup = "write"
	GroupImport RouteGroup = "import"
	GroupExport RouteGroup = "export"
)

// ServerMetrics tracks API request counts and latencies.
type ServerMetrics struct {
	Requests     atomic.Uint64
	ClientErrors atomic.Uint64
	ServerErrors atomic.Uint64
	RateLimited  atomic.Uint64

	mu        sync.RWMutex
	latencies map[RouteGroup]*Histogram
	startTime time.Time
	size      int
}

// NewServerMetrics creates a collector retaining size samples per group.
func NewServerMetrics(size int) *ServerMetrics {
	return &ServerMetrics{
		latencies: make(map[RouteGroup]*Histogram),
		startTime: time.Now(),
		size:      size,
	}
}

// Observe records one completed request.
func (m *ServerMetrics) Observe(group RouteGroup, status int, d time.Duration) {
	m.Requests.Add(1)
	switch {
	case status == http.StatusTooManyRequests:
		m.RateLimited.Add(1)
		m.ClientErrors.Add(1)
	case status >= 500:
		m.ServerErrors.Add(1)
	case status >= 400:
		m.ClientErrors.Add(1)
	}
	m.histogram(group).Record(d)
}

func (m *ServerMetrics) histogram(group RouteGroup) *Histogram {
	m.mu.RLock()
	h, ok := m.latencies[group]
	m.mu.RUnlock()
	if ok {
		return h
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if h, ok = m.latencies[group]; !ok {
		h = NewHistogram(m.size)
		m.latencies[group] = h
	}
	return h
}

// Stats is a point-in-time view of the server metrics.
type Stats struct {
	Requests     uint64                      `json:"requests"`
	ClientErrors uint64                      `json:"clientErrors"`
	ServerErrors uint64                      `json:"serverErrors"`
	RateLimited  uint64                      `json:"rateLimited"`
	SuccessRate  float64                     `json:"successRate"` // percentage
	Latency      map[RouteGroup]LatencyStats `json:"latency"`
	Uptime       string                      `json:"uptime"`
}

// Snapshot returns the current statistics.
func (m *ServerMetrics) Snapshot() *Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	st := &Stats{
		Requests:     m.Requests.Load(),
		ClientErrors: m.ClientErrors.Load(),
		ServerErrors: m.ServerErrors.Load(),
		RateLimited:  m.RateLimited.Load(),
		Latency:      make(map[RouteGroup]LatencyStats, len(m.latencies)),
		Uptime:       time.Since(m.startTime).Round(time.Second).String(),
	}
	if st.Requests > 0 {
		failed := st.ClientErrors + st.ServerErrors
		st.SuccessRate = float64(st.Requests-failed) / float64(st.Requests) * 100
	}
	for group, h := range m.latencies {
		st.Latency[group] = h.Stats()
	}
	return st
}

// Reset clears all counters and samples.
func (m *ServerMetrics) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Requests.Store(0)
	m.ClientErrors.Store(0)
	m.ServerErrors.Store(0)
	m.RateLimited.Store(0)
	for _, h := range m.latencies {
		h.Reset()
	}
	m.startTime = time.Now()
}
