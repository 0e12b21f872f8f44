package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/gorillamux"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"reportingtool.io/reporting/internal/api/openapi"
	"reportingtool.io/reporting/internal/pkg/logger"
)

const (
	codeOpenAPIRouteInvalid    = "OPENAPI_ROUTE_INVALID"
	codeOpenAPIRequestInvalid  = "OPENAPI_REQUEST_INVALID"
	codeOpenAPIResponseInvalid = "OPENAPI_RESPONSE_INVALID"
)

// contractValidator checks traffic under basePath against the embedded
// API contract.
type contractValidator struct {
	routes   routers.Router
	basePath string
}

// NewOpenAPIValidator validates requests and responses under basePath.
// Requests the contract does not describe pass through untouched.
func NewOpenAPIValidator(basePath string) (gin.HandlerFunc, error) {
	doc, err := openapi.GetSwagger()
	if err != nil {
		return nil, err
	}
	// Paths are matched after basePath is stripped, never by host.
	doc.Servers = nil

	routes, err := gorillamux.NewRouter(doc)
	if err != nil {
		return nil, fmt.Errorf("build contract router: %w", err)
	}
	v := &contractValidator{routes: routes}
	if trimmed := strings.Trim(strings.TrimSpace(basePath), "/"); trimmed != "" {
		v.basePath = "/" + trimmed
	}
	return v.handle, nil
}

func (v *contractValidator) handle(c *gin.Context) {
	input, err := v.requestInput(c.Request)
	if err != nil {
		if isPathNotFoundError(err) {
			c.Next()
			return
		}
		abortWithOpenAPIError(c, http.StatusBadRequest, codeOpenAPIRouteInvalid, err.Error())
		return
	}
	if err := openapi3filter.ValidateRequest(c.Request.Context(), input); err != nil {
		abortWithOpenAPIError(c, http.StatusBadRequest, codeOpenAPIRequestInvalid, err.Error())
		return
	}

	rec := &responseRecorder{ResponseWriter: c.Writer, status: http.StatusOK}
	c.Writer = rec
	// A panic discards the recorded response so the outer recovery
	// writes straight to the client.
	defer func() { c.Writer = rec.ResponseWriter }()

	c.Next()

	v.checkResponse(c, input, rec)
	if err := rec.commit(); err != nil {
		logger.Warn("Failed to write validated response",
			zap.String("path", c.Request.URL.Path),
			zap.Error(err),
		)
	}
}

// requestInput resolves the contract route for req. Requests outside
// basePath report routers.ErrPathNotFound.
func (v *contractValidator) requestInput(req *http.Request) (*openapi3filter.RequestValidationInput, error) {
	rel, ok := strings.CutPrefix(req.URL.Path, v.basePath)
	if !ok || (rel != "" && !strings.HasPrefix(rel, "/")) {
		return nil, routers.ErrPathNotFound
	}
	if rel == "" {
		rel = "/"
	}

	lookup := *req
	u := *req.URL
	u.Path = rel
	u.RawPath = ""
	lookup.URL = &u

	route, params, err := v.routes.FindRoute(&lookup)
	if err != nil {
		return nil, err
	}
	return &openapi3filter.RequestValidationInput{
		Request:    req,
		PathParams: params,
		Route:      route,
		Options:    &openapi3filter.Options{MultiError: true},
	}, nil
}

func (v *contractValidator) checkResponse(c *gin.Context, input *openapi3filter.RequestValidationInput, rec *responseRecorder) {
	out := &openapi3filter.ResponseValidationInput{
		RequestValidationInput: input,
		Status:                 rec.Status(),
		Header:                 rec.Header().Clone(),
		Options:                &openapi3filter.Options{IncludeResponseStatus: true},
	}
	if rec.body.Len() > 0 {
		out.SetBodyBytes(rec.body.Bytes())
	}
	err := openapi3filter.ValidateResponse(c.Request.Context(), out)
	if err == nil {
		return
	}
	logger.Error("Response violates API contract",
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.Int("status", rec.Status()),
		zap.String("request_id", GetRequestID(c)),
		zap.Error(err),
	)
	rec.replaceJSON(http.StatusInternalServerError, gin.H{
		"code":    codeOpenAPIResponseInvalid,
		"message": "response does not conform to the API contract",
	})
}

func isPathNotFoundError(err error) bool {
	if errors.Is(err, routers.ErrPathNotFound) {
		return true
	}
	var routeErr *routers.RouteError
	return errors.As(err, &routeErr) && routeErr.Reason == routers.ErrPathNotFound.Error()
}

func abortWithOpenAPIError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"code":    code,
		"message": message,
	})
}

// responseRecorder holds the handler's response until it has been checked.
type responseRecorder struct {
	gin.ResponseWriter
	body    bytes.Buffer
	status  int
	written bool
}

func (r *responseRecorder) WriteHeader(code int) {
	if r.written {
		return
	}
	r.status = code
	r.written = true
}

func (r *responseRecorder) WriteHeaderNow() {
	r.written = true
}

func (r *responseRecorder) Write(data []byte) (int, error) {
	r.written = true
	return r.body.Write(data)
}

func (r *responseRecorder) WriteString(s string) (int, error) {
	r.written = true
	return r.body.WriteString(s)
}

func (r *responseRecorder) Status() int { return r.status }

func (r *responseRecorder) Size() int {
	if !r.written {
		return -1
	}
	return r.body.Len()
}

func (r *responseRecorder) Written() bool { return r.written }

func (r *responseRecorder) replaceJSON(status int, payload gin.H) {
	data, err := json.Marshal(payload)
	if err != nil {
		data = []byte(`{"code":"` + codeOpenAPIResponseInvalid + `"}`)
	}
	r.status = status
	r.written = true
	r.body.Reset()
	r.body.Write(data)
	r.Header().Set("Content-Type", "application/json; charset=utf-8")
}

// commit sends the recorded status and body to the underlying writer.
func (r *responseRecorder) commit() error {
	r.ResponseWriter.WriteHeader(r.status)
	r.ResponseWriter.WriteHeaderNow()
	if r.body.Len() == 0 {
		return nil
	}
	_, err := r.ResponseWriter.Write(r.body.Bytes())
	return err
}
