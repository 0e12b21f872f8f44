// Package app is the composition root: it wires storage, services, handlers
// and the HTTP router, and owns their lifecycle.
package app

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"

	"reportingtool.io/reporting/internal/api/handlers"
	"reportingtool.io/reporting/internal/config"
	"reportingtool.io/reporting/internal/infrastructure"
	"reportingtool.io/reporting/internal/pkg/worker"
	"reportingtool.io/reporting/internal/repository"
	"reportingtool.io/reporting/internal/service"
)

// Application holds composed application dependencies.
type Application struct {
	Config   *config.Config
	Router   *gin.Engine
	DB       *infrastructure.Database
	Pool     *worker.Pool
	Sessions *infrastructure.SessionProvider
	Health   *infrastructure.HealthMonitor
}

// Bootstrap initializes all dependencies using manual DI.
// Nothing is left open when it returns an error.
func Bootstrap(ctx context.Context, cfg *config.Config) (*Application, error) {
	db, err := infrastructure.NewDatabase(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("init database: %w", err)
	}

	if cfg.Database.AutoCreate {
		if err := db.EnsureSchema(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
	}

	pool, err := worker.NewPool(ctx, cfg.Worker.PoolSize)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init worker pool: %w", err)
	}

	sessions := infrastructure.NewSessionProvider(db.DB)
	health := infrastructure.NewHealthMonitor(db, cfg.Worker.HealthCheckInterval)

	server := handlers.NewServer(handlers.ServerDeps{
		Reports:   service.NewReportService(repository.NewReportRepository()),
		Readiness: health,
	})

	router, err := newRouter(cfg, server, sessions)
	if err != nil {
		pool.Shutdown()
		db.Close()
		return nil, fmt.Errorf("init router: %w", err)
	}

	return &Application{
		Config:   cfg,
		Router:   router,
		DB:       db,
		Pool:     pool,
		Sessions: sessions,
		Health:   health,
	}, nil
}
