package processor

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/nimasrn/ledger-book/internal/model"
)

// ServiceMetrics keeps in-process counters for the periodic log line; the
// Prometheus side lives in pkg/prom.
type ServiceMetrics struct {
	totalProcessed  atomic.Int64
	totalFailed     atomic.Int64
	totalDurationNs atomic.Int64
	startedAt       time.Time

	mu     sync.Mutex
	byKind map[model.EventKind]int64
}

func NewServiceMetrics() *ServiceMetrics {
	return &ServiceMetrics{
		startedAt: time.Now(),
		byKind:    make(map[model.EventKind]int64),
	}
}

func (m *ServiceMetrics) RecordSuccess(kind model.EventKind, duration time.Duration) {
	m.totalProcessed.Add(1)
	m.totalDurationNs.Add(int64(duration))

	m.mu.Lock()
	m.byKind[kind]++
	m.mu.Unlock()
}

func (m *ServiceMetrics) RecordFailure() {
	m.totalFailed.Add(1)
}

func (m *ServiceMetrics) Processed(kind model.EventKind) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.byKind[kind]
}

func (m *ServiceMetrics) GetStats() map[string]interface{} {
	processed := m.totalProcessed.Load()
	failed := m.totalFailed.Load()
	durationNs := m.totalDurationNs.Load()
	elapsed := time.Since(m.startedAt).Seconds()

	rate := 0.0
	if elapsed > 0 {
		rate = float64(processed) / elapsed
	}
	avg := time.Duration(0)
	if processed > 0 {
		avg = time.Duration(durationNs / processed)
	}

	return map[string]interface{}{
		"total_processed": processed,
		"total_failed":    failed,
		"rate_per_second": rate,
		"avg_duration_ms": avg.Milliseconds(),
		"uptime_seconds":  elapsed,
	}
}
