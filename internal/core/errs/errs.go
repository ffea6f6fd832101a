package errs

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Machine-readable error codes returned in API error envelopes. These are
// part of the wire contract and must stay stable.
const (
	CodeValidation = "VALIDATION_ERROR"
	CodeNotFound   = "NOT_FOUND"
	CodeConflict   = "CONFLICT"
	CodeRateLimit  = "RATE_LIMIT_EXCEEDED"
	CodeNotionAPI  = "NOTION_API_ERROR"
	CodeInternal   = "INTERNAL_ERROR"
)

// ValidationError reports malformed caller input.
type ValidationError struct {
	Message string
	Field   string
}

func (e *ValidationError) Error() string { return e.Message }

// NotFoundError reports a missing entity.
type NotFoundError struct {
	EntityType string
	EntityID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s with ID '%s' not found", e.EntityType, e.EntityID)
}

// ConflictError reports a duplicate resource.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string { return e.Message }

// NotionAPIError carries a non-2xx response from the Notion API.
type NotionAPIError struct {
	StatusCode int
	Code       string
	Message    string
	RetryAfter time.Duration
}

func (e *NotionAPIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("notion api error: status %d, code %s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("notion api error: status %d: %s", e.StatusCode, e.Message)
}

// RateLimitError is returned when rate-limit retries against the Notion API
// are exhausted.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return "Notion API rate limit exceeded. Please try again later."
}

// InternalError wraps an unexpected local failure. The original cause is
// kept for diagnostics but never exposed on the wire.
type InternalError struct {
	Message string
	Err     error
}

func (e *InternalError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *InternalError) Unwrap() error { return e.Err }

// IsRateLimited reports whether err is a rate-limit signal from the upstream
// API: an HTTP 429, or an error body carrying a rate-limit marker.
func IsRateLimited(err error) bool {
	var apiErr *NotionAPIError
	if !errors.As(err, &apiErr) {
		return false
	}
	if apiErr.StatusCode == http.StatusTooManyRequests {
		return true
	}
	body := strings.ToLower(apiErr.Code + " " + apiErr.Message)
	return strings.Contains(body, "rate_limit") || strings.Contains(body, "rate limit")
}

// IsDomainError reports whether err is one of the typed errors above.
// Service layers wrap anything else in an InternalError before it reaches a
// handler.
func IsDomainError(err error) bool {
	var (
		validationErr *ValidationError
		notFoundErr   *NotFoundError
		conflictErr   *ConflictError
		rateLimitErr  *RateLimitError
		apiErr        *NotionAPIError
		internalErr   *InternalError
	)
	return errors.As(err, &validationErr) ||
		errors.As(err, &notFoundErr) ||
		errors.As(err, &conflictErr) ||
		errors.As(err, &rateLimitErr) ||
		errors.As(err, &apiErr) ||
		errors.As(err, &internalErr)
}

// Classify maps an error to its stable code and HTTP status. Unknown errors
// classify as internal.
func Classify(err error) (code string, status int) {
	var (
		validationErr *ValidationError
		notFoundErr   *NotFoundError
		conflictErr   *ConflictError
		rateLimitErr  *RateLimitError
		apiErr        *NotionAPIError
	)
	switch {
	case errors.As(err, &validationErr):
		return CodeValidation, http.StatusBadRequest
	case errors.As(err, &notFoundErr):
		return CodeNotFound, http.StatusNotFound
	case errors.As(err, &conflictErr):
		return CodeConflict, http.StatusConflict
	case errors.As(err, &rateLimitErr):
		return CodeRateLimit, http.StatusServiceUnavailable
	case errors.As(err, &apiErr):
		switch apiErr.StatusCode {
		case http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound:
			return CodeNotionAPI, apiErr.StatusCode
		case http.StatusTooManyRequests:
			return CodeRateLimit, http.StatusTooManyRequests
		default:
			return CodeNotionAPI, http.StatusBadGateway
		}
	default:
		return CodeInternal, http.StatusInternalServerError
	}
}

// Details returns the structured detail payload for an error, or nil when
// the error carries none. Internal errors never expose details.
func Details(err error) map[string]any {
	var (
		validationErr *ValidationError
		notFoundErr   *NotFoundError
		rateLimitErr  *RateLimitError
		apiErr        *NotionAPIError
	)
	switch {
	case errors.As(err, &validationErr):
		if validationErr.Field == "" {
			return nil
		}
		return map[string]any{"field": validationErr.Field}
	case errors.As(err, &notFoundErr):
		return map[string]any{
			"entity_type": notFoundErr.EntityType,
			"entity_id":   notFoundErr.EntityID,
		}
	case errors.As(err, &rateLimitErr):
		if rateLimitErr.RetryAfter <= 0 {
			return nil
		}
		return map[string]any{"retry_after": int(rateLimitErr.RetryAfter.Seconds())}
	case errors.As(err, &apiErr):
		details := map[string]any{"status_code": apiErr.StatusCode}
		if apiErr.Code != "" {
			details["notion_code"] = apiErr.Code
		}
		return details
	default:
		return nil
	}
}
