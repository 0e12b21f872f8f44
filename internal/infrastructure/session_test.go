package infrastructure_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"

	"reportingtool.io/reporting/internal/infrastructure"
	apperrors "reportingtool.io/reporting/internal/pkg/errors"
	"reportingtool.io/reporting/internal/schema"
	"reportingtool.io/reporting/internal/testutil"
)

func assertAllReleased(t *testing.T, db *infrastructure.Database, p *infrastructure.SessionProvider, want int64) {
	t.Helper()
	stats := p.Stats()
	assert.Equal(t, want, stats.Acquired, "acquired")
	assert.Equal(t, want, stats.Released, "released")
	assert.Zero(t, stats.Active, "active")
	assert.Zero(t, db.SQL.Stats().InUse, "connections still checked out of the pool")
}

func TestWithSession_ReleasesOnSuccess(t *testing.T) {
	db := testutil.OpenSQLite(t, "session-success")
	p := infrastructure.NewSessionProvider(db.DB)

	err := p.WithSession(context.Background(), func(ctx context.Context, s *infrastructure.Session) error {
		assert.Equal(t, int64(1), p.Stats().Active)
		return s.DB().NewSelect().ColumnExpr("1").Scan(ctx, new(int))
	})
	require.NoError(t, err)
	assertAllReleased(t, db, p, 1)
}

func TestWithSession_ReleasesOnError(t *testing.T) {
	db := testutil.OpenSQLite(t, "session-error")
	p := infrastructure.NewSessionProvider(db.DB)

	boom := errors.New("boom")
	err := p.WithSession(context.Background(), func(context.Context, *infrastructure.Session) error {
		return boom
	})
	require.ErrorIs(t, err, boom)
	assertAllReleased(t, db, p, 1)
}

func TestWithSession_ReleasesOnPanic(t *testing.T) {
	db := testutil.OpenSQLite(t, "session-panic")
	p := infrastructure.NewSessionProvider(db.DB)

	assert.Panics(t, func() {
		_ = p.WithSession(context.Background(), func(context.Context, *infrastructure.Session) error {
			panic("handler blew up")
		})
	})
	assertAllReleased(t, db, p, 1)
}

func TestWithSession_ReleasesOnCancellation(t *testing.T) {
	db := testutil.OpenSQLite(t, "session-cancel")
	p := infrastructure.NewSessionProvider(db.DB)

	ctx, cancel := context.WithCancel(context.Background())
	err := p.WithSession(ctx, func(ctx context.Context, s *infrastructure.Session) error {
		cancel()
		<-ctx.Done()
		return ctx.Err()
	})
	require.ErrorIs(t, err, context.Canceled)
	assertAllReleased(t, db, p, 1)
}

func TestSession_CloseIsIdempotent(t *testing.T) {
	db := testutil.OpenSQLite(t, "session-double-close")
	p := infrastructure.NewSessionProvider(db.DB)

	s, err := p.Acquire(context.Background())
	require.NoError(t, err)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	assertAllReleased(t, db, p, 1)
}

func TestAcquire_CancelledContext(t *testing.T) {
	db := testutil.OpenSQLite(t, "session-precancelled")
	p := infrastructure.NewSessionProvider(db.DB)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := p.WithSession(ctx, func(context.Context, *infrastructure.Session) error {
		called = true
		return nil
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
	assertAllReleased(t, db, p, 0)
}

func TestAcquire_ClosedDatabaseIsUnavailable(t *testing.T) {
	db := testutil.OpenSQLite(t, "session-closed")
	p := infrastructure.NewSessionProvider(db.DB)
	db.Close()

	_, err := p.Acquire(context.Background())
	require.Error(t, err)
	appErr, ok := apperrors.IsAppError(err)
	require.True(t, ok, "expected AppError, got %v", err)
	assert.Equal(t, apperrors.CodeDatabaseUnavailable, appErr.Code)
}

func TestSession_RunInTx_ValuesSurviveCommit(t *testing.T) {
	db := testutil.OpenSQLite(t, "session-commit")
	p := infrastructure.NewSessionProvider(db.DB)
	ctx := context.Background()

	report := &schema.ReportDefinition{Name: "Headcount", Datasource: "hr_db", Query: "SELECT 1"}
	err := p.WithSession(ctx, func(ctx context.Context, s *infrastructure.Session) error {
		return s.RunInTx(ctx, func(ctx context.Context, tx bun.Tx) error {
			_, err := tx.NewInsert().Model(report).Returning("id").Exec(ctx)
			return err
		})
	})
	require.NoError(t, err)

	// Attributes stay readable after the session is gone; no reload happens.
	assert.NotZero(t, report.ID)
	assert.Equal(t, "Headcount", report.Name)
	assert.Nil(t, report.Description)

	count, err := db.DB.NewSelect().Model((*schema.ReportDefinition)(nil)).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestSession_RunInTx_RollsBackOnError(t *testing.T) {
	db := testutil.OpenSQLite(t, "session-rollback")
	p := infrastructure.NewSessionProvider(db.DB)
	ctx := context.Background()

	boom := errors.New("abort")
	err := p.WithSession(ctx, func(ctx context.Context, s *infrastructure.Session) error {
		return s.RunInTx(ctx, func(ctx context.Context, tx bun.Tx) error {
			report := &schema.ReportDefinition{Name: "Payroll", Datasource: "finance", Query: "SELECT 2"}
			if _, err := tx.NewInsert().Model(report).Exec(ctx); err != nil {
				return err
			}
			return boom
		})
	})
	require.ErrorIs(t, err, boom)

	count, err := db.DB.NewSelect().Model((*schema.ReportDefinition)(nil)).Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
	assertAllReleased(t, db, p, 1)
}
