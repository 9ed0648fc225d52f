// Package errmap maps domain errors to HTTP responses. Every domain error
// has an explicit mapping; anything else is an opaque 500.
package errmap

import (
	"errors"
	"net/http"

	"github.com/technotrac/authcore/internal/domain"
)

// HTTPError represents an HTTP error response.
type HTTPError struct {
	StatusCode        int    `json:"-"`
	Code              string `json:"code"`
	Message           string `json:"message"`
	RetryAfterSeconds int    `json:"retry_after_seconds,omitempty"`
	// Retryable tells clients the same request may succeed later.
	Retryable bool `json:"retryable"`
}

func (e HTTPError) Error() string {
	return e.Message
}

// httpMapping defines a domain error to HTTP status/code mapping.
type httpMapping struct {
	err        error
	statusCode int
	code       string
}

// httpMappings maps domain errors to HTTP status codes and error codes.
// Order matters: first match wins (via errors.Is).
var httpMappings = []httpMapping{
	// Resource errors
	{domain.ErrNotFound, http.StatusNotFound, "NOT_FOUND"},
	{domain.ErrAlreadyExists, http.StatusConflict, "ALREADY_EXISTS"},

	// Auth errors
	{domain.ErrInvalidToken, http.StatusUnauthorized, "UNAUTHENTICATED"},
	{domain.ErrForbidden, http.StatusForbidden, "PERMISSION_DENIED"},

	// OTP errors
	{domain.ErrInvalidCode, http.StatusBadRequest, "INVALID_OTP"},
	{domain.ErrTooManyAttempts, http.StatusBadRequest, "TOO_MANY_ATTEMPTS"},

	// Validation errors
	{domain.ErrInvalidInput, http.StatusBadRequest, "INVALID_ARGUMENT"},
	{domain.ErrEmptyID, http.StatusBadRequest, "INVALID_ARGUMENT"},
	{domain.ErrInvalidID, http.StatusBadRequest, "INVALID_ARGUMENT"},
	{domain.ErrInvalidPhoneNumber, http.StatusBadRequest, "INVALID_PHONE"},
	{domain.ErrInvalidRole, http.StatusBadRequest, "INVALID_ROLE"},

	// Rate limiting
	{domain.ErrRateLimited, http.StatusTooManyRequests, "RATE_LIMITED"},

	// Availability
	{domain.ErrDeliveryFailed, http.StatusBadGateway, "DELIVERY_FAILED"},
	{domain.ErrStoreUnavailable, http.StatusServiceUnavailable, "UNAVAILABLE"},
}

// ToHTTPError converts a domain error to an HTTP error. The message is the
// matched sentinel's text, never the wrapped chain, so store addresses and
// vendor responses stay server-side.
func ToHTTPError(err error) HTTPError {
	if err == nil {
		return HTTPError{StatusCode: http.StatusOK}
	}
	for _, m := range httpMappings {
		if errors.Is(err, m.err) {
			he := HTTPError{
				StatusCode: m.statusCode,
				Code:       m.code,
				Message:    m.err.Error(),
				Retryable:  domain.IsRetryable(err),
			}
			var rle *domain.RateLimitError
			if errors.As(err, &rle) {
				he.RetryAfterSeconds = rle.RetryAfterSeconds()
			}
			return he
		}
	}
	// Never expose internal error details to clients
	return HTTPError{StatusCode: http.StatusInternalServerError, Code: "INTERNAL", Message: "internal error"}
}

// ToHTTPStatusCode extracts just the HTTP status code for a domain error.
func ToHTTPStatusCode(err error) int {
	return ToHTTPError(err).StatusCode
}
