// Package main seeds sample report definitions.
//
// Seeding is idempotent by report name: definitions whose name already
// exists are left untouched.
package main

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"reportingtool.io/reporting/internal/config"
	"reportingtool.io/reporting/internal/infrastructure"
	"reportingtool.io/reporting/internal/pkg/logger"
	"reportingtool.io/reporting/internal/repository"
	"reportingtool.io/reporting/internal/service"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "seed error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if err := logger.Init(cfg.Log.Level, cfg.Log.Format); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()

	ctx := context.Background()

	db, err := infrastructure.NewDatabase(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("init database: %w", err)
	}
	defer db.Close()

	if err := db.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}

	logger.Info("Starting data seeding...")

	sessions := infrastructure.NewSessionProvider(db.DB)
	reports := service.NewReportService(repository.NewReportRepository())

	created, err := seedReports(ctx, sessions, reports, sampleReports())
	if err != nil {
		return fmt.Errorf("seed reports: %w", err)
	}

	logger.Info("Data seeding completed successfully", zap.Int("created", created))
	return nil
}

func strPtr(s string) *string { return &s }

func sampleReports() []service.ReportInput {
	return []service.ReportInput{
		{
			Name:        "Monthly Sales by Region",
			Description: strPtr("Revenue per sales region for the current month"),
			Datasource:  "sales_dw",
			Query:       "SELECT region, SUM(amount) AS revenue FROM sales WHERE sold_at >= date_trunc('month', now()) GROUP BY region ORDER BY revenue DESC",
		},
		{
			Name:        "Active Headcount",
			Description: strPtr("Employees currently on payroll, by department"),
			Datasource:  "hr_db",
			Query:       "SELECT department, COUNT(*) FROM employees WHERE terminated_at IS NULL GROUP BY department",
		},
		{
			Name:       "Open Invoices",
			Datasource: "finance",
			Query:      "SELECT invoice_no, customer, amount_due FROM invoices WHERE paid_at IS NULL",
		},
	}
}

// seedReports creates every input whose name is not stored yet and returns
// how many were created.
func seedReports(ctx context.Context, sessions *infrastructure.SessionProvider, reports *service.ReportService, inputs []service.ReportInput) (int, error) {
	created := 0
	err := sessions.WithSession(ctx, func(ctx context.Context, sess *infrastructure.Session) error {
		existing, err := reports.List(ctx, sess, "")
		if err != nil {
			return err
		}
		names := make(map[string]struct{}, len(existing))
		for _, r := range existing {
			names[r.Name] = struct{}{}
		}

		for _, in := range inputs {
			if _, ok := names[in.Name]; ok {
				logger.Info("Report already exists, skipping", zap.String("report", in.Name))
				continue
			}
			report, err := reports.Create(ctx, sess, in)
			if err != nil {
				return fmt.Errorf("create report %q: %w", in.Name, err)
			}
			names[report.Name] = struct{}{}
			created++
			logger.Info("Seeded report definition",
				zap.String("report", report.Name),
				zap.Int64("report_id", report.ID),
			)
		}
		return nil
	})
	return created, err
}
