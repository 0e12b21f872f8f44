package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"reportingtool.io/reporting/internal/pkg/logger"
)

// Start schedules background work: the periodic database check.
func (a *Application) Start(_ context.Context) error {
	if a.Health == nil || a.Pool == nil {
		return nil
	}
	if err := a.Health.Start(a.Pool); err != nil {
		return fmt.Errorf("start health monitor: %w", err)
	}
	return nil
}

// Shutdown stops background work and disposes the connection pool.
func (a *Application) Shutdown() {
	if a.Pool != nil {
		logger.Info("Stopping worker pool", zap.Any("pool", a.Pool.Metrics()))
		a.Pool.Shutdown()
	}
	if a.Sessions != nil {
		if stats := a.Sessions.Stats(); stats.Active != 0 {
			logger.Warn("Database sessions still open at shutdown", zap.Int64("active", stats.Active))
		}
	}
	if a.DB != nil {
		a.DB.Close()
		logger.Info("Database closed")
	}
}
