package app

import (
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"reportingtool.io/reporting/internal/api/handlers"
	"reportingtool.io/reporting/internal/api/middleware"
	"reportingtool.io/reporting/internal/api/openapi"
	"reportingtool.io/reporting/internal/config"
)

const apiBasePath = "/api/v1"

var defaultAllowedOrigins = []string{
	"http://localhost:3000",
	"http://127.0.0.1:3000",
}

func newRouter(cfg *config.Config, server *handlers.Server, sessions middleware.SessionAcquirer) (*gin.Engine, error) {
	validator, err := middleware.NewOpenAPIValidator(apiBasePath)
	if err != nil {
		return nil, err
	}

	router := gin.New()
	router.Use(
		gin.Recovery(),
		middleware.RequestID(),
		middleware.AccessLog(),
		cors.New(buildCORSConfig(cfg)),
	)

	router.GET("/health", server.GetHealth)
	router.GET("/health/ready", server.GetReadiness)
	router.GET("/openapi.yaml", func(c *gin.Context) {
		c.Data(http.StatusOK, "application/yaml", openapi.Raw())
	})

	v1 := router.Group(apiBasePath, validator, middleware.ErrorHandler(), middleware.DBSession(sessions))
	v1.GET("/reports", server.ListReports)
	v1.POST("/reports", server.CreateReport)
	v1.GET("/reports/:id", server.GetReport)
	v1.PUT("/reports/:id", server.UpdateReport)
	v1.DELETE("/reports/:id", server.DeleteReport)
	v1.GET("/datasources", server.ListDatasources)

	return router, nil
}

// buildCORSConfig derives the CORS policy. A "*" origin is dropped unless
// UnsafeAllowAllOrigins is set, in which case credentials are disabled.
func buildCORSConfig(cfg *config.Config) cors.Config {
	out := cors.Config{
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", middleware.RequestIDHeader},
		ExposeHeaders:    []string{middleware.RequestIDHeader},
		AllowCredentials: cfg.Server.AllowCredentials,
		MaxAge:           12 * time.Hour,
	}

	if cfg.Server.UnsafeAllowAllOrigins && slices.Contains(cfg.Server.AllowedOrigins, "*") {
		out.AllowAllOrigins = true
		out.AllowCredentials = false
		return out
	}

	origins := make([]string, 0, len(cfg.Server.AllowedOrigins))
	for _, origin := range cfg.Server.AllowedOrigins {
		origin = strings.TrimSpace(origin)
		if origin == "" || origin == "*" {
			continue
		}
		origins = append(origins, origin)
	}
	if len(origins) == 0 {
		origins = slices.Clone(defaultAllowedOrigins)
	}
	out.AllowOrigins = origins
	return out
}
