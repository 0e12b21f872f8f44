// Package service contains the report definition use cases.
package service

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/uptrace/bun"
	"go.uber.org/zap"

	apperrors "reportingtool.io/reporting/internal/pkg/errors"
	"reportingtool.io/reporting/internal/pkg/logger"
	"reportingtool.io/reporting/internal/repository"
	"reportingtool.io/reporting/internal/schema"
)

// Session is the unit-of-work handle the service runs on.
// *infrastructure.Session satisfies it.
type Session interface {
	DB() bun.IDB
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx bun.Tx) error) error
}

// ReportStore persists report definitions.
type ReportStore interface {
	Create(ctx context.Context, db bun.IDB, report *schema.ReportDefinition) error
	Get(ctx context.Context, db bun.IDB, id int64) (*schema.ReportDefinition, error)
	List(ctx context.Context, db bun.IDB, filter repository.ReportFilter) ([]schema.ReportDefinition, error)
	Update(ctx context.Context, db bun.IDB, report *schema.ReportDefinition) error
	Delete(ctx context.Context, db bun.IDB, id int64) error
	ListDatasources(ctx context.Context, db bun.IDB) ([]string, error)
}

// ReportInput carries the writable fields of a report definition.
type ReportInput struct {
	Name        string  `json:"name"`
	Description *string `json:"description"`
	Datasource  string  `json:"datasource"`
	Query       string  `json:"query"`
}

// ReportService validates and persists report definitions.
type ReportService struct {
	store ReportStore
}

// NewReportService creates a ReportService.
func NewReportService(store ReportStore) *ReportService {
	return &ReportService{store: store}
}

// Create validates in and stores a new report definition.
// The returned value is the in-memory entity after commit.
func (s *ReportService) Create(ctx context.Context, sess Session, in ReportInput) (*schema.ReportDefinition, error) {
	if err := validateReportInput(in); err != nil {
		return nil, err
	}
	report := &schema.ReportDefinition{}
	applyInput(report, in)

	err := sess.RunInTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		return s.store.Create(ctx, tx, report)
	})
	if err != nil {
		return nil, s.translate(err, 0)
	}
	logger.Info("Report definition created",
		zap.Int64("report_id", report.ID),
		zap.String("datasource", report.Datasource),
	)
	return report, nil
}

// Get returns one report definition.
func (s *ReportService) Get(ctx context.Context, sess Session, id int64) (*schema.ReportDefinition, error) {
	report, err := s.store.Get(ctx, sess.DB(), id)
	if err != nil {
		return nil, s.translate(err, id)
	}
	return report, nil
}

// List returns report definitions, optionally filtered by datasource.
func (s *ReportService) List(ctx context.Context, sess Session, datasource string) ([]schema.ReportDefinition, error) {
	reports, err := s.store.List(ctx, sess.DB(), repository.ReportFilter{
		Datasource: strings.TrimSpace(datasource),
	})
	if err != nil {
		return nil, s.translate(err, 0)
	}
	return reports, nil
}

// Update replaces the writable fields of report id.
func (s *ReportService) Update(ctx context.Context, sess Session, id int64, in ReportInput) (*schema.ReportDefinition, error) {
	if err := validateReportInput(in); err != nil {
		return nil, err
	}

	var report *schema.ReportDefinition
	err := sess.RunInTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		current, err := s.store.Get(ctx, tx, id)
		if err != nil {
			return err
		}
		applyInput(current, in)
		if err := s.store.Update(ctx, tx, current); err != nil {
			return err
		}
		report = current
		return nil
	})
	if err != nil {
		return nil, s.translate(err, id)
	}
	logger.Info("Report definition updated", zap.Int64("report_id", id))
	return report, nil
}

// Delete removes report id.
func (s *ReportService) Delete(ctx context.Context, sess Session, id int64) error {
	err := sess.RunInTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		return s.store.Delete(ctx, tx, id)
	})
	if err != nil {
		return s.translate(err, id)
	}
	logger.Info("Report definition deleted", zap.Int64("report_id", id))
	return nil
}

// Datasources returns the datasource identifiers referenced by stored reports.
func (s *ReportService) Datasources(ctx context.Context, sess Session) ([]string, error) {
	datasources, err := s.store.ListDatasources(ctx, sess.DB())
	if err != nil {
		return nil, s.translate(err, 0)
	}
	return datasources, nil
}

func (s *ReportService) translate(err error, id int64) error {
	if _, ok := apperrors.IsAppError(err); ok {
		return err
	}
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case errors.Is(err, apperrors.ErrNotFound):
		return apperrors.ErrReportNotFoundf(id)
	case errors.Is(err, apperrors.ErrConstraintViolation):
		return apperrors.Wrap(err, apperrors.CodeConstraintFailed,
			"report definition violates a storage constraint", http.StatusBadRequest)
	default:
		return apperrors.Wrap(err, apperrors.CodeReportPersist,
			"report definition storage failed", http.StatusInternalServerError)
	}
}

func applyInput(report *schema.ReportDefinition, in ReportInput) {
	report.Name = strings.TrimSpace(in.Name)
	report.Description = in.Description
	report.Datasource = strings.TrimSpace(in.Datasource)
	report.Query = in.Query
}

func validateReportInput(in ReportInput) error {
	var fields []apperrors.FieldError

	required := func(field, value string) bool {
		if strings.TrimSpace(value) == "" {
			fields = append(fields, apperrors.FieldError{
				Field:   field,
				Code:    apperrors.CodeFieldRequired,
				Message: field + " is required",
			})
			return false
		}
		return true
	}
	maxLen := func(field, value string, limit int) {
		if utf8.RuneCountInString(strings.TrimSpace(value)) > limit {
			fields = append(fields, apperrors.FieldError{
				Field:   field,
				Code:    apperrors.CodeFieldTooLong,
				Message: field + " exceeds maximum length",
			})
		}
	}

	if required("name", in.Name) {
		maxLen("name", in.Name, schema.NameMaxLen)
	}
	if required("datasource", in.Datasource) {
		maxLen("datasource", in.Datasource, schema.DatasourceMaxLen)
	}
	required("query", in.Query)

	if len(fields) > 0 {
		return apperrors.ErrValidationFailedf(fields)
	}
	return nil
}
