package infrastructure

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/uptrace/bun"
	"go.uber.org/zap"

	apperrors "reportingtool.io/reporting/internal/pkg/errors"
	"reportingtool.io/reporting/internal/pkg/logger"
)

// Session is a dedicated database connection bound to one caller for one
// logical unit of work. It must not be shared between goroutines serving
// different requests.
//
// Entities written through a session keep their in-memory values after
// commit; nothing is reloaded from storage.
type Session struct {
	conn     bun.Conn
	provider *SessionProvider

	closeOnce sync.Once
	closeErr  error
}

// DB returns the query interface bound to the session connection.
func (s *Session) DB() bun.IDB {
	return s.conn
}

// RunInTx runs fn inside a transaction on the session connection.
// The transaction commits when fn returns nil and rolls back otherwise,
// including when fn panics.
func (s *Session) RunInTx(ctx context.Context, fn func(ctx context.Context, tx bun.Tx) error) error {
	return s.conn.RunInTx(ctx, &sql.TxOptions{}, fn)
}

// Close returns the connection to the pool. Only the first call releases;
// later calls return the first result.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.conn.Close()
		s.provider.active.Add(-1)
		s.provider.released.Add(1)
	})
	return s.closeErr
}

// SessionStats is a snapshot of session accounting.
type SessionStats struct {
	Acquired int64 `json:"acquired"`
	Released int64 `json:"released"`
	Active   int64 `json:"active"`
}

// SessionProvider hands out sessions from the shared pool.
type SessionProvider struct {
	db *bun.DB

	acquired atomic.Int64
	released atomic.Int64
	active   atomic.Int64
}

// NewSessionProvider creates a provider over db.
func NewSessionProvider(db *bun.DB) *SessionProvider {
	return &SessionProvider{db: db}
}

// Acquire opens a new session. The caller owns it and must Close it.
// Connection failures are reported as DATABASE_UNAVAILABLE; cancellation of
// ctx is returned as is.
func (p *SessionProvider) Acquire(ctx context.Context) (*Session, error) {
	conn, err := p.db.Conn(ctx)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return nil, fmt.Errorf("acquire session: %w", err)
		}
		return nil, fmt.Errorf("acquire session: %w", apperrors.ErrDatabaseUnavailablef(err))
	}
	p.acquired.Add(1)
	p.active.Add(1)
	return &Session{conn: conn, provider: p}, nil
}

// WithSession acquires a session, runs fn with it and releases it on every
// exit path: normal return, error, panic or cancellation of ctx.
func (p *SessionProvider) WithSession(ctx context.Context, fn func(ctx context.Context, s *Session) error) error {
	s, err := p.Acquire(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := s.Close(); cerr != nil && !errors.Is(cerr, sql.ErrConnDone) {
			logger.Warn("failed to release database session", zap.Error(cerr))
		}
	}()
	return fn(ctx, s)
}

// Stats returns the current session counters.
func (p *SessionProvider) Stats() SessionStats {
	return SessionStats{
		Acquired: p.acquired.Load(),
		Released: p.released.Load(),
		Active:   p.active.Load(),
	}
}
