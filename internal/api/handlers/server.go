// Package handlers implements the HTTP handlers of the reporting API.
//
// Route registration lives in internal/app; handlers only read the request,
// call the service and render the result.
package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"reportingtool.io/reporting/internal/api/middleware"
	"reportingtool.io/reporting/internal/infrastructure"
	apperrors "reportingtool.io/reporting/internal/pkg/errors"
	"reportingtool.io/reporting/internal/service"
)

// ReadinessChecker reports database connectivity.
// *infrastructure.HealthMonitor satisfies it.
type ReadinessChecker interface {
	Status() infrastructure.HealthStatus
	Check(ctx context.Context) infrastructure.HealthStatus
}

// Server holds the handler dependencies.
type Server struct {
	reports   *service.ReportService
	readiness ReadinessChecker
}

// ServerDeps holds all dependencies for creating a Server.
type ServerDeps struct {
	Reports   *service.ReportService
	Readiness ReadinessChecker
}

// NewServer creates a new Server with all dependencies.
func NewServer(deps ServerDeps) *Server {
	return &Server{
		reports:   deps.Reports,
		readiness: deps.Readiness,
	}
}

// requestSession returns the session opened by middleware.DBSession.
// A missing session is a wiring bug and surfaces as a 500.
func requestSession(c *gin.Context) (*infrastructure.Session, bool) {
	sess, ok := middleware.SessionFrom(c)
	if !ok {
		_ = c.Error(apperrors.Internal("SESSION_MISSING", "no database session bound to request"))
		return nil, false
	}
	return sess, true
}
