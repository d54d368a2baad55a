package metrics

import (
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHistogram_Stats(t *testing.T) {
	h := NewHistogram(10)
	for i := 1; i <= 5; i++ {
		h.Record(time.Duration(i) * time.Millisecond)
	}

	st := h.Stats()
	assert.Equal(t, 5, st.Count)
	assert.InDelta(t, 3.0, st.Mean, 0.001)
	assert.InDelta(t, 3.0, st.P50, 0.001)
	assert.InDelta(t, 1.0, st.Min, 0.001)
	assert.InDelta(t, 5.0, st.Max, 0.001)
	assert.InDelta(t, 4.8, st.P95, 0.001)
}

func TestHistogram_Empty(t *testing.T) {
	assert.Equal(t, LatencyStats{}, NewHistogram(4).Stats())
}

func TestHistogram_WrapsOldestSamples(t *testing.T) {
	h := NewHistogram(3)
	for _, ms := range []int{100, 1, 2, 3} {
		h.Record(time.Duration(ms) * time.Millisecond)
	}

	st := h.Stats()
	assert.Equal(t, 3, st.Count)
	assert.InDelta(t, 3.0, st.Max, 0.001)

	h.Reset()
	assert.Equal(t, 0, h.Count())
}

func TestServerMetrics_Observe(t *testing.T) {
	m := NewServerMetrics(16)
	m.Observe(GroupRead, http.StatusOK, 2*time.Millisecond)
	m.Observe(GroupRead, http.StatusNotFound, time.Millisecond)
	m.Observe(GroupImport, http.StatusTooManyRequests, time.Millisecond)
	m.Observe(GroupWrite, http.StatusInternalServerError, time.Millisecond)

	st := m.Snapshot()
	assert.Equal(t, uint64(4), st.Requests)
	assert.Equal(t, uint64(2), st.ClientErrors)
	assert.Equal(t, uint64(1), st.ServerErrors)
	assert.Equal(t, uint64(1), st.RateLimited)
	assert.InDelta(t, 25.0, st.SuccessRate, 0.001)
	require.Contains(t, st.Latency, GroupRead)
	assert.Equal(t, 2, st.Latency[GroupRead].Count)
	assert.NotContains(t, st.Latency, GroupExport)

	m.Reset()
	st = m.Snapshot()
	assert.Zero(t, st.Requests)
	assert.Equal(t, 0, st.Latency[GroupRead].Count)
}

func TestServerMetrics_Concurrent(t *testing.T) {
	m := NewServerMetrics(64)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				m.Observe(GroupRead, http.StatusOK, time.Millisecond)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, uint64(400), m.Snapshot().Requests)
}
