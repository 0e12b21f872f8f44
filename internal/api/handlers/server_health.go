package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	healthStatusOK       = "ok"
	healthStatusDegraded = "degraded"
)

// HealthResponse is the body of the health endpoints.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// GetHealth handles GET /health. It never touches the database and always
// answers {"status":"ok"}.
func (s *Server) GetHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{Status: healthStatusOK})
}

// GetReadiness handles GET /health/ready using the last database check,
// probing once if no check has run yet.
func (s *Server) GetReadiness(c *gin.Context) {
	status := s.readiness.Status()
	if !status.Checked {
		status = s.readiness.Check(c.Request.Context())
	}

	resp := HealthResponse{
		Status: healthStatusOK,
		Checks: map[string]string{"database": "ok"},
	}
	httpStatus := http.StatusOK
	if !status.Healthy {
		resp.Status = healthStatusDegraded
		resp.Checks["database"] = "error"
		httpStatus = http.StatusServiceUnavailable
	}

	c.JSON(httpStatus, resp)
}
