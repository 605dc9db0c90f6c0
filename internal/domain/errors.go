package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes shared between the API surface and the pipeline. The
// validation code doubles as the Temporal application-error type, so a
// rejected user story fails its workflow without burning retries.
const (
	ErrCodeValidation      = "VALIDATION_ERROR"
	ErrCodeNotFound        = "NOT_FOUND"
	ErrCodeConflict        = "CONFLICT"
	ErrCodeBadRequest      = "BAD_REQUEST"
	ErrCodeRateLimited     = "RATE_LIMITED"
	ErrCodePayloadTooLarge = "PAYLOAD_TOO_LARGE"

	ErrCodeInternal       = "INTERNAL_ERROR"
	ErrCodeServiceUnavail = "SERVICE_UNAVAILABLE"

	ErrCodeExecutionFailed = "EXECUTION_FAILED"
	ErrCodeReportGenFailed = "REPORT_GENERATION_FAILED"
)

// DomainError is the error type returned by repositories and services.
// It carries no transport assumptions; the HTTP layer maps codes to
// status lines on its own.
type DomainError struct {
	Code    string
	Message string
	Details map[string]any
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is matches on code, so errors.Is(err, ErrNotFoundVal) holds for any
// not-found error regardless of which resource was missing.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// Sentinels for errors.Is checks. Constructors below wrap these, so
// callers can branch on the category without inspecting codes.
var (
	ErrNotFoundVal      = &DomainError{Code: ErrCodeNotFound, Message: "not found"}
	ErrAlreadyExistsVal = &DomainError{Code: ErrCodeConflict, Message: "already exists"}
	ErrInvalidInputVal  = &DomainError{Code: ErrCodeValidation, Message: "invalid input"}
)

// IsSentinelError reports whether err belongs to the sentinel's category.
func IsSentinelError(err error, sentinel *DomainError) bool {
	var domainErr *DomainError
	return errors.As(err, &domainErr) && domainErr.Code == sentinel.Code
}

// IsNotFoundError reports whether err is a not-found error.
func IsNotFoundError(err error) bool {
	return IsSentinelError(err, ErrNotFoundVal)
}

// NotFoundError reports a missing resource, such as a run ID that no
// row matches.
func NotFoundError(resource string, id any) *DomainError {
	return &DomainError{
		Code:    ErrCodeNotFound,
		Message: fmt.Sprintf("%s not found: %v", resource, id),
		Details: map[string]any{"resource": resource, "id": id},
		Err:     ErrNotFoundVal,
	}
}

// AlreadyExistsError reports a uniqueness violation.
func AlreadyExistsError(resource, field, value string) *DomainError {
	return &DomainError{
		Code:    ErrCodeConflict,
		Message: fmt.Sprintf("%s with %s '%s' already exists", resource, field, value),
		Details: map[string]any{"resource": resource, "field": field, "value": value},
		Err:     ErrAlreadyExistsVal,
	}
}

// ValidationError rejects a field of user input.
func ValidationError(field, message string) *DomainError {
	return &DomainError{
		Code:    ErrCodeValidation,
		Message: message,
		Details: map[string]any{"field": field},
		Err:     ErrInvalidInputVal,
	}
}

// AppError is a service-layer failure that already knows how it should
// be reported over HTTP.
type AppError struct {
	Code       string
	Message    string
	HTTPStatus int
	Cause      error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// ErrServiceUnavailable reports a missing backing service, such as the
// API answering run queries while running without a database.
func ErrServiceUnavailable(service string) *AppError {
	return &AppError{
		Code:       ErrCodeServiceUnavail,
		Message:    fmt.Sprintf("Service unavailable: %s", service),
		HTTPStatus: http.StatusServiceUnavailable,
	}
}

// ErrExecutionFailed wraps a browser session or runner failure.
func ErrExecutionFailed(reason string, err error) *AppError {
	return &AppError{
		Code:       ErrCodeExecutionFailed,
		Message:    fmt.Sprintf("Test execution failed: %s", reason),
		HTTPStatus: http.StatusUnprocessableEntity,
		Cause:      err,
	}
}

// ErrReportGenFailed wraps a report build or publish failure.
func ErrReportGenFailed(reason string, err error) *AppError {
	return &AppError{
		Code:       ErrCodeReportGenFailed,
		Message:    fmt.Sprintf("Report generation failed: %s", reason),
		HTTPStatus: http.StatusUnprocessableEntity,
		Cause:      err,
	}
}
