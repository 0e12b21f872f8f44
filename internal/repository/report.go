// Package repository implements persistence for report definitions.
//
// Repositories are stateless: every call takes the bun.IDB of the caller's
// session (or transaction), so the unit of work is decided by the caller.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/uptrace/bun"

	apperrors "reportingtool.io/reporting/internal/pkg/errors"
	"reportingtool.io/reporting/internal/schema"
)

// PostgreSQL SQLSTATE for not_null_violation.
const pgNotNullViolation = "23502"

// ReportFilter narrows List results.
type ReportFilter struct {
	Datasource string
}

// ReportRepository reads and writes report_definitions.
type ReportRepository struct{}

// NewReportRepository creates a ReportRepository.
func NewReportRepository() *ReportRepository {
	return &ReportRepository{}
}

// Create inserts report and sets its storage-assigned ID.
func (r *ReportRepository) Create(ctx context.Context, db bun.IDB, report *schema.ReportDefinition) error {
	report.ID = 0
	if _, err := db.NewInsert().Model(report).Returning("id").Exec(ctx); err != nil {
		return fmt.Errorf("insert report definition: %w", mapError(err))
	}
	return nil
}

// Get loads a report by ID.
func (r *ReportRepository) Get(ctx context.Context, db bun.IDB, id int64) (*schema.ReportDefinition, error) {
	report := new(schema.ReportDefinition)
	err := db.NewSelect().Model(report).Where("rd.id = ?", id).Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("get report definition %d: %w", id, mapError(err))
	}
	return report, nil
}

// List returns reports ordered by ID.
func (r *ReportRepository) List(ctx context.Context, db bun.IDB, filter ReportFilter) ([]schema.ReportDefinition, error) {
	reports := make([]schema.ReportDefinition, 0)
	q := db.NewSelect().Model(&reports).Order("rd.id ASC")
	if filter.Datasource != "" {
		q = q.Where("rd.datasource = ?", filter.Datasource)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("list report definitions: %w", mapError(err))
	}
	return reports, nil
}

// Update overwrites the mutable columns of the report identified by report.ID.
// The ID itself is never changed.
func (r *ReportRepository) Update(ctx context.Context, db bun.IDB, report *schema.ReportDefinition) error {
	res, err := db.NewUpdate().
		Model(report).
		Column("name", "description", "datasource", "query").
		WherePK().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update report definition %d: %w", report.ID, mapError(err))
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("update report definition %d: %w", report.ID, apperrors.ErrNotFound)
	}
	return nil
}

// Delete removes the report with the given ID.
func (r *ReportRepository) Delete(ctx context.Context, db bun.IDB, id int64) error {
	res, err := db.NewDelete().
		Model((*schema.ReportDefinition)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("delete report definition %d: %w", id, mapError(err))
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("delete report definition %d: %w", id, apperrors.ErrNotFound)
	}
	return nil
}

// ListDatasources returns the distinct datasource identifiers referenced by
// stored reports, sorted.
func (r *ReportRepository) ListDatasources(ctx context.Context, db bun.IDB) ([]string, error) {
	datasources := make([]string, 0)
	err := db.NewSelect().
		Model((*schema.ReportDefinition)(nil)).
		Distinct().
		Column("datasource").
		Order("datasource ASC").
		Scan(ctx, &datasources)
	if err != nil {
		return nil, fmt.Errorf("list datasources: %w", mapError(err))
	}
	return datasources, nil
}

// mapError translates driver errors into the package sentinels.
func mapError(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return apperrors.ErrNotFound
	}
	if isNotNullViolation(err) {
		return fmt.Errorf("%w: %v", apperrors.ErrConstraintViolation, err)
	}
	return err
}

func isNotNullViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgNotNullViolation
	}
	// sqlite drivers only expose the message.
	return strings.Contains(err.Error(), "NOT NULL constraint failed")
}
