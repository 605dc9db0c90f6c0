// Package httputil holds the response envelope and request helpers
// shared by every API handler.
package httputil

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/storyqa/storyqa/internal/domain"
)

// Response is the envelope every endpoint answers with. Success mirrors
// the status class so clients can branch without re-deriving it.
type Response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   *Error `json:"error,omitempty"`
	Meta    *Meta  `json:"meta,omitempty"`
}

// Error is the wire form of a failed request.
type Error struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// Meta carries pagination counters on list endpoints.
type Meta struct {
	Page       int `json:"page,omitempty"`
	PerPage    int `json:"per_page,omitempty"`
	Total      int `json:"total,omitempty"`
	TotalPages int `json:"total_pages,omitempty"`
}

func write(w http.ResponseWriter, status int, resp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}

// JSON writes data inside the standard envelope.
func JSON(w http.ResponseWriter, status int, data any) {
	write(w, status, Response{
		Success: status >= 200 && status < 300,
		Data:    data,
	})
}

// JSONWithMeta writes a list response with pagination counters.
func JSONWithMeta(w http.ResponseWriter, status int, data any, meta *Meta) {
	write(w, status, Response{
		Success: true,
		Data:    data,
		Meta:    meta,
	})
}

// JSONError writes an error envelope with the given code and message.
func JSONError(w http.ResponseWriter, status int, code, message string, details map[string]any) {
	write(w, status, Response{
		Success: false,
		Error: &Error{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}

// ErrorFromDomain maps a service or repository error onto the wire.
// Unknown error types are reported as a bare 500 so internals never
// leak into responses.
func ErrorFromDomain(w http.ResponseWriter, err error) {
	var domainErr *domain.DomainError
	if errors.As(err, &domainErr) {
		JSONError(w, statusForCode(domainErr.Code), domainErr.Code, domainErr.Message, domainErr.Details)
		return
	}

	var appErr *domain.AppError
	if errors.As(err, &appErr) {
		JSONError(w, appErr.HTTPStatus, appErr.Code, appErr.Message, nil)
		return
	}

	JSONError(w, http.StatusInternalServerError, domain.ErrCodeInternal, "Internal server error", nil)
}

func statusForCode(code string) int {
	switch code {
	case domain.ErrCodeNotFound:
		return http.StatusNotFound
	case domain.ErrCodeConflict:
		return http.StatusConflict
	case domain.ErrCodeValidation, domain.ErrCodeBadRequest:
		return http.StatusBadRequest
	case domain.ErrCodeRateLimited:
		return http.StatusTooManyRequests
	case domain.ErrCodePayloadTooLarge:
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusInternalServerError
	}
}

// DecodeJSON strictly decodes the request body into v. Unknown fields
// are rejected so client typos surface as 400s instead of silently
// dropped settings.
func DecodeJSON(r *http.Request, v any) error {
	if r.Body == nil {
		return domain.ValidationError("body", "request body is required")
	}

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return domain.ValidationError("body", "invalid JSON: "+err.Error())
	}
	return nil
}

// Pagination is the resolved page window for a list request.
type Pagination struct {
	Page    int
	PerPage int
	Offset  int
}

// GetPagination reads page and per_page query params, clamping per_page
// to maxPerPage. Absent or unparseable values fall back to defaults.
func GetPagination(r *http.Request, defaultPerPage, maxPerPage int) Pagination {
	page := queryInt(r, "page", 1)
	perPage := queryInt(r, "per_page", defaultPerPage)
	if perPage > maxPerPage {
		perPage = maxPerPage
	}

	return Pagination{
		Page:    page,
		PerPage: perPage,
		Offset:  (page - 1) * perPage,
	}
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

// CalculateTotalPages rounds total/perPage up to whole pages.
func CalculateTotalPages(total, perPage int) int {
	if perPage <= 0 {
		return 0
	}
	pages := total / perPage
	if total%perPage > 0 {
		pages++
	}
	return pages
}
