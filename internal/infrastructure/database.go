// Package infrastructure provides database and connection pool setup.
//
// A single pgxpool backs both the bun ORM (through stdlib.OpenDBFromPool)
// and any raw pgx access, so the process holds exactly one pool.
package infrastructure

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"github.com/uptrace/bun/extra/bundebug"
	"go.uber.org/zap"

	"reportingtool.io/reporting/internal/config"
	apperrors "reportingtool.io/reporting/internal/pkg/errors"
	"reportingtool.io/reporting/internal/pkg/logger"
	"reportingtool.io/reporting/internal/schema"
)

// Database owns the process-wide connection pool and the ORM handle on top of it.
// It is created once by the composition root and closed at shutdown.
type Database struct {
	// Pool is the shared pgx pool. Nil for the sqlite driver.
	Pool *pgxpool.Pool

	// SQL is the *sql.DB view of Pool used by bun.
	SQL *sql.DB

	// DB is the bun ORM handle.
	DB *bun.DB

	driver string
}

// NewDatabase connects to the configured database and verifies connectivity.
// Connectivity failures are reported as DATABASE_UNAVAILABLE; no retry is attempted.
func NewDatabase(ctx context.Context, cfg config.DatabaseConfig) (*Database, error) {
	var (
		d   *Database
		err error
	)
	switch cfg.Driver {
	case config.DriverSQLite:
		d, err = openSQLite(cfg)
	case config.DriverPostgres, "":
		d, err = openPostgres(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}

	if cfg.Echo {
		d.DB.AddQueryHook(bundebug.NewQueryHook(
			bundebug.WithVerbose(true),
			bundebug.FromEnv("BUNDEBUG"),
		))
	}
	if cfg.SlowQueryThreshold > 0 {
		d.DB.AddQueryHook(NewSlowQueryHook(cfg.SlowQueryThreshold))
	}

	pingCtx := ctx
	if cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		pingCtx, cancel = context.WithTimeout(ctx, cfg.ConnectTimeout)
		defer cancel()
	}
	if err := d.Ping(pingCtx); err != nil {
		d.Close()
		return nil, fmt.Errorf("ping database: %w", apperrors.ErrDatabaseUnavailablef(err))
	}

	d.DB.RegisterModel(schema.Models()...)

	logger.Info("Database connection pool created",
		zap.String("driver", d.driver),
		zap.Int32("max_conns", cfg.MaxConns),
		zap.Bool("echo", cfg.Echo),
	)
	return d, nil
}

func openPostgres(ctx context.Context, cfg config.DatabaseConfig) (*Database, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}
	// Zero values keep the pgxpool defaults.
	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolConfig.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime
	}
	if cfg.ConnectTimeout > 0 {
		poolConfig.ConnConfig.ConnectTimeout = cfg.ConnectTimeout
	}
	poolConfig.HealthCheckPeriod = time.Minute

	poolConfig.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		_, err := conn.Exec(ctx, "SET timezone = 'UTC'")
		return err
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", apperrors.ErrDatabaseUnavailablef(err))
	}

	sqlDB := stdlib.OpenDBFromPool(pool)
	return &Database{
		Pool:   pool,
		SQL:    sqlDB,
		DB:     bun.NewDB(sqlDB, pgdialect.New()),
		driver: config.DriverPostgres,
	}, nil
}

func openSQLite(cfg config.DatabaseConfig) (*Database, error) {
	sqlDB, err := sql.Open(sqliteshim.ShimName, cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if cfg.MaxConns > 0 {
		sqlDB.SetMaxOpenConns(int(cfg.MaxConns))
	}
	return &Database{
		SQL:    sqlDB,
		DB:     bun.NewDB(sqlDB, sqlitedialect.New()),
		driver: config.DriverSQLite,
	}, nil
}

// Driver returns the configured driver name.
func (d *Database) Driver() string {
	return d.driver
}

// Ping verifies that a connection can be obtained and used.
func (d *Database) Ping(ctx context.Context) error {
	return d.DB.PingContext(ctx)
}

// EnsureSchema creates missing tables and their indexes.
// It never alters existing tables; use it for development databases only.
func (d *Database) EnsureSchema(ctx context.Context) error {
	for _, model := range schema.Models() {
		if _, err := d.DB.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("create table for %T: %w", model, err)
		}
	}
	_, err := d.DB.NewCreateIndex().
		Model((*schema.ReportDefinition)(nil)).
		Index("ix_report_definitions_id").
		Column("id").
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("create index ix_report_definitions_id: %w", err)
	}
	logger.Info("Database schema ensured", zap.Int("models", len(schema.Models())))
	return nil
}

// Close releases the ORM handle and the pool.
func (d *Database) Close() {
	if d.DB != nil {
		_ = d.DB.Close()
	}
	if d.Pool != nil {
		d.Pool.Close()
	}
}
