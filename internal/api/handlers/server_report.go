package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/oapi-codegen/runtime"

	apperrors "reportingtool.io/reporting/internal/pkg/errors"
	"reportingtool.io/reporting/internal/schema"
	"reportingtool.io/reporting/internal/service"
)

// ReportList is the body of GET /reports.
type ReportList struct {
	Items []schema.ReportDefinition `json:"items"`
}

// DatasourceList is the body of GET /datasources.
type DatasourceList struct {
	Items []string `json:"items"`
}

// ListReports handles GET /reports.
func (s *Server) ListReports(c *gin.Context) {
	sess, ok := requestSession(c)
	if !ok {
		return
	}
	reports, err := s.reports.List(c.Request.Context(), sess, c.Query("datasource"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, ReportList{Items: reports})
}

// CreateReport handles POST /reports.
func (s *Server) CreateReport(c *gin.Context) {
	sess, ok := requestSession(c)
	if !ok {
		return
	}
	var in service.ReportInput
	if !bindReportInput(c, &in) {
		return
	}
	report, err := s.reports.Create(c.Request.Context(), sess, in)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, report)
}

// GetReport handles GET /reports/{id}.
func (s *Server) GetReport(c *gin.Context) {
	id, ok := bindReportID(c)
	if !ok {
		return
	}
	sess, ok := requestSession(c)
	if !ok {
		return
	}
	report, err := s.reports.Get(c.Request.Context(), sess, id)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// UpdateReport handles PUT /reports/{id}.
func (s *Server) UpdateReport(c *gin.Context) {
	id, ok := bindReportID(c)
	if !ok {
		return
	}
	sess, ok := requestSession(c)
	if !ok {
		return
	}
	var in service.ReportInput
	if !bindReportInput(c, &in) {
		return
	}
	report, err := s.reports.Update(c.Request.Context(), sess, id, in)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// DeleteReport handles DELETE /reports/{id}.
func (s *Server) DeleteReport(c *gin.Context) {
	id, ok := bindReportID(c)
	if !ok {
		return
	}
	sess, ok := requestSession(c)
	if !ok {
		return
	}
	if err := s.reports.Delete(c.Request.Context(), sess, id); err != nil {
		_ = c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ListDatasources handles GET /datasources.
func (s *Server) ListDatasources(c *gin.Context) {
	sess, ok := requestSession(c)
	if !ok {
		return
	}
	datasources, err := s.reports.Datasources(c.Request.Context(), sess)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, DatasourceList{Items: datasources})
}

func bindReportID(c *gin.Context) (int64, bool) {
	var id int64
	err := runtime.BindStyledParameterWithOptions("simple", "id", c.Param("id"), &id,
		runtime.BindStyledParameterOptions{
			ParamLocation: runtime.ParamLocationPath,
			Explode:       false,
			Required:      true,
		})
	if err != nil || id < 1 {
		_ = c.Error(apperrors.BadRequest(apperrors.CodeReportIDInvalid, "report id must be a positive integer"))
		return 0, false
	}
	return id, true
}

func bindReportInput(c *gin.Context, in *service.ReportInput) bool {
	if err := c.ShouldBindJSON(in); err != nil {
		_ = c.Error(apperrors.Wrap(err, apperrors.CodeInvalidRequestBody,
			"request body must be a JSON report definition", http.StatusBadRequest))
		return false
	}
	return true
}
