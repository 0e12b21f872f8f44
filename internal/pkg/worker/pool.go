// Package worker provides goroutine pool management.
//
// Background work goes through the pool with context propagation instead of
// naked goroutines, so shutdown can cancel and wait for it.
package worker

import (
	"context"
	"errors"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"reportingtool.io/reporting/internal/pkg/logger"
)

// ErrPoolClosed is returned when submitting to a closed pool.
var ErrPoolClosed = errors.New("worker pool is closed")

// Task is a context-aware task function.
type Task func(ctx context.Context)

// Pool wraps ants.Pool. Tasks receive the service lifecycle context.
type Pool struct {
	pool *ants.Pool

	serviceCtx    context.Context
	serviceCancel context.CancelFunc
}

// DefaultPoolSize is used when a non-positive size is configured.
const DefaultPoolSize = 16

const shutdownTimeout = 30 * time.Second

// NewPool creates a worker pool of the given size.
func NewPool(ctx context.Context, size int) (*Pool, error) {
	if size <= 0 {
		size = DefaultPoolSize
	}
	serviceCtx, serviceCancel := context.WithCancel(ctx)

	panicHandler := func(p interface{}) {
		logger.Error("Worker panic recovered",
			zap.Any("panic", p),
			zap.Stack("stack"),
		)
	}

	p, err := ants.NewPool(size,
		ants.WithPanicHandler(panicHandler),
		ants.WithNonblocking(false),
		ants.WithExpiryDuration(10*time.Second),
	)
	if err != nil {
		serviceCancel()
		return nil, err
	}

	return &Pool{
		pool:          p,
		serviceCtx:    serviceCtx,
		serviceCancel: serviceCancel,
	}, nil
}

// SubmitDetached submits a background task bound to the service lifecycle
// context. It survives request cancellation but stops on Shutdown.
func (p *Pool) SubmitDetached(task Task) error {
	return p.submit(func() {
		select {
		case <-p.serviceCtx.Done():
			logger.Debug("Detached task skipped: service shutting down")
			return
		default:
		}
		task(p.serviceCtx)
	})
}

func (p *Pool) submit(fn func()) error {
	if err := p.pool.Submit(fn); err != nil {
		if errors.Is(err, ants.ErrPoolClosed) {
			return ErrPoolClosed
		}
		return err
	}
	return nil
}

// Shutdown cancels detached tasks and waits for running ones.
func (p *Pool) Shutdown() {
	p.serviceCancel()
	if err := p.pool.ReleaseTimeout(shutdownTimeout); err != nil {
		logger.Warn("Worker pool shutdown timeout", zap.Error(err))
	}
}

// Metrics returns pool metrics for observability.
func (p *Pool) Metrics() map[string]int {
	return map[string]int{
		"running": p.pool.Running(),
		"free":    p.pool.Free(),
		"cap":     p.pool.Cap(),
	}
}
