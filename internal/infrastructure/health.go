package infrastructure

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"reportingtool.io/reporting/internal/pkg/logger"
	"reportingtool.io/reporting/internal/pkg/worker"
)

// Pinger is anything that can verify database connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthStatus is the result of the last connectivity check.
type HealthStatus struct {
	Healthy     bool      `json:"healthy"`
	Checked     bool      `json:"checked"`
	LastChecked time.Time `json:"last_checked"`
	Error       string    `json:"error,omitempty"`
}

// HealthMonitor periodically pings the database and keeps the last result.
type HealthMonitor struct {
	pinger   Pinger
	interval time.Duration
	timeout  time.Duration

	mu     sync.RWMutex
	status HealthStatus
}

// NewHealthMonitor creates a monitor that checks every interval.
func NewHealthMonitor(pinger Pinger, interval time.Duration) *HealthMonitor {
	timeout := 5 * time.Second
	if interval > 0 && interval < timeout {
		timeout = interval
	}
	return &HealthMonitor{
		pinger:   pinger,
		interval: interval,
		timeout:  timeout,
	}
}

// Check pings once, records the result and logs state transitions.
func (m *HealthMonitor) Check(ctx context.Context) HealthStatus {
	pingCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	err := m.pinger.Ping(pingCtx)
	next := HealthStatus{
		Healthy:     err == nil,
		Checked:     true,
		LastChecked: time.Now(),
	}
	if err != nil {
		next.Error = err.Error()
	}

	m.mu.Lock()
	prev := m.status
	m.status = next
	m.mu.Unlock()

	switch {
	case !next.Healthy && (prev.Healthy || !prev.Checked):
		logger.Error("Database health check failed", zap.Error(err))
	case next.Healthy && prev.Checked && !prev.Healthy:
		logger.Info("Database connectivity restored")
	}
	return next
}

// Status returns the last recorded result.
func (m *HealthMonitor) Status() HealthStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

// Start schedules the periodic check loop on the worker pool. The loop ends
// when the pool shuts down.
func (m *HealthMonitor) Start(pool *worker.Pool) error {
	if m.interval <= 0 {
		return nil
	}
	return pool.SubmitDetached(func(ctx context.Context) {
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()

		m.Check(ctx)
		for {
			select {
			case <-ticker.C:
				m.Check(ctx)
			case <-ctx.Done():
				return
			}
		}
	})
}
