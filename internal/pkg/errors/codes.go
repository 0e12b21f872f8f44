package errors

import (
	"net/http"
	"strconv"
)

// Error codes. Backend logs are always in English; clients key off the code.

// Report definition error codes.
const (
	CodeReportNotFound   = "REPORT_NOT_FOUND"
	CodeReportIDInvalid  = "REPORT_ID_INVALID"
	CodeReportPersist    = "REPORT_PERSIST_FAILED"
	CodeConstraintFailed = "CONSTRAINT_VIOLATION"
)

// Storage error codes.
const (
	CodeDatabaseUnavailable = "DATABASE_UNAVAILABLE"
)

// Validation error codes.
const (
	CodeInvalidRequestBody = "INVALID_REQUEST_BODY"
	CodeValidationFailed   = "VALIDATION_FAILED"
	CodeFieldRequired      = "FIELD_REQUIRED"
	CodeFieldTooLong       = "FIELD_TOO_LONG"
)

// Convenience constructors using predefined codes.

// ErrReportNotFoundf creates a report not found error.
func ErrReportNotFoundf(id int64) *AppError {
	return Wrap(ErrNotFound, CodeReportNotFound,
		"report definition "+strconv.FormatInt(id, 10)+" not found", http.StatusNotFound)
}

// ErrDatabaseUnavailablef wraps a connectivity failure.
func ErrDatabaseUnavailablef(err error) *AppError {
	return Wrap(err, CodeDatabaseUnavailable, "database is unavailable", http.StatusServiceUnavailable)
}

// ErrValidationFailedf creates a 400 error carrying field-level details.
func ErrValidationFailedf(fieldErrors []FieldError) *AppError {
	return Wrap(ErrBadRequest, CodeValidationFailed, "request validation failed", http.StatusBadRequest).
		WithFieldErrors(fieldErrors)
}
