// Package testutil provides database fixtures for tests.
package testutil

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"reportingtool.io/reporting/internal/config"
	"reportingtool.io/reporting/internal/infrastructure"
	"reportingtool.io/reporting/internal/pkg/logger"
)

var nonIdentChars = regexp.MustCompile(`[^a-z0-9_]+`)

// OpenSQLite opens an isolated in-memory SQLite database with the schema created.
// It needs no external services.
func OpenSQLite(t *testing.T, prefix string) *infrastructure.Database {
	t.Helper()
	_ = logger.Init("error", "json")

	db, err := infrastructure.NewDatabase(context.Background(), SQLiteConfig(prefix))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(db.Close)

	if err := db.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}
	return db
}

// SQLiteConfig returns the configuration of a fresh, uniquely named
// in-memory SQLite database.
func SQLiteConfig(prefix string) config.DatabaseConfig {
	return config.DatabaseConfig{
		Driver: config.DriverSQLite,
		Name:   newSchemaName(prefix),
	}
}

// OpenPostgres opens a database backed by PostgreSQL with an isolated schema per test.
// The test is skipped when TEST_DATABASE_URL/DATABASE_URL is not set.
func OpenPostgres(t *testing.T, prefix string) *infrastructure.Database {
	t.Helper()
	_ = logger.Init("error", "json")

	dsn := strings.TrimSpace(os.Getenv("TEST_DATABASE_URL"))
	if dsn == "" {
		dsn = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	}
	if dsn == "" {
		t.Skip("PostgreSQL test DSN not set: set TEST_DATABASE_URL or DATABASE_URL")
	}

	schema := newSchemaName(prefix)
	ctx := context.Background()

	adminPool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("open postgres admin pool: %v", err)
	}
	t.Cleanup(adminPool.Close)

	if err := adminPool.Ping(ctx); err != nil {
		t.Fatalf("ping postgres: %v", err)
	}

	if _, err := adminPool.Exec(ctx, fmt.Sprintf(`CREATE SCHEMA "%s"`, schema)); err != nil {
		t.Fatalf("create test schema %q: %v", schema, err)
	}
	t.Cleanup(func() {
		_, _ = adminPool.Exec(ctx, fmt.Sprintf(`DROP SCHEMA IF EXISTS "%s" CASCADE`, schema))
	})

	schemaDSN, err := dsnWithSearchPath(dsn, schema)
	if err != nil {
		t.Fatalf("build postgres DSN with search_path: %v", err)
	}

	db, err := infrastructure.NewDatabase(ctx, config.DatabaseConfig{
		Driver: config.DriverPostgres,
		URL:    schemaDSN,
	})
	if err != nil {
		t.Fatalf("open postgres test database: %v", err)
	}
	t.Cleanup(db.Close)

	if err := db.EnsureSchema(ctx); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}
	return db
}

func dsnWithSearchPath(dsn, schema string) (string, error) {
	if strings.Contains(dsn, "://") {
		u, err := url.Parse(dsn)
		if err != nil {
			return "", fmt.Errorf("parse DSN: %w", err)
		}
		q := u.Query()
		q.Set("search_path", schema)
		u.RawQuery = q.Encode()
		return u.String(), nil
	}

	if strings.Contains(dsn, "search_path=") {
		re := regexp.MustCompile(`search_path=\S+`)
		return re.ReplaceAllString(dsn, "search_path="+schema), nil
	}
	return dsn + " search_path=" + schema, nil
}

func newSchemaName(prefix string) string {
	base := strings.ToLower(prefix)
	base = strings.ReplaceAll(base, "-", "_")
	base = nonIdentChars.ReplaceAllString(base, "_")
	base = strings.Trim(base, "_")
	if base == "" {
		base = "test"
	}

	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")
	const maxPostgresIdentLen = 63
	maxBaseLen := maxPostgresIdentLen - len("t__") - len(suffix)
	if maxBaseLen < 1 {
		maxBaseLen = 1
	}
	if len(base) > maxBaseLen {
		base = base[:maxBaseLen]
	}
	return fmt.Sprintf("t_%s_%s", base, suffix)
}
