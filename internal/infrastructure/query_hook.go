package infrastructure

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"
	"go.uber.org/zap"

	"reportingtool.io/reporting/internal/pkg/logger"
)

// SlowQueryHook logs statements that exceed a duration threshold or fail.
type SlowQueryHook struct {
	threshold time.Duration
}

var _ bun.QueryHook = (*SlowQueryHook)(nil)

// NewSlowQueryHook creates a hook reporting queries slower than threshold.
func NewSlowQueryHook(threshold time.Duration) *SlowQueryHook {
	return &SlowQueryHook{threshold: threshold}
}

// BeforeQuery implements bun.QueryHook.
func (h *SlowQueryHook) BeforeQuery(ctx context.Context, _ *bun.QueryEvent) context.Context {
	return ctx
}

// AfterQuery implements bun.QueryHook.
func (h *SlowQueryHook) AfterQuery(_ context.Context, event *bun.QueryEvent) {
	elapsed := time.Since(event.StartTime)

	switch {
	case event.Err != nil && !errors.Is(event.Err, sql.ErrNoRows) && !errors.Is(event.Err, sql.ErrTxDone):
		logger.Warn("Query failed",
			zap.String("operation", event.Operation()),
			zap.Duration("elapsed", elapsed),
			zap.Error(event.Err),
		)
	case elapsed >= h.threshold:
		logger.Warn("Slow query",
			zap.String("operation", event.Operation()),
			zap.String("query", event.Query),
			zap.Duration("elapsed", elapsed),
			zap.Duration("threshold", h.threshold),
		)
	}
}
