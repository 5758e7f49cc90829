package httpclient

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Common errors returned by the client.
var (
	// ErrDisallowed indicates robots.txt forbids fetching the URL.
	ErrDisallowed = errors.New("disallowed by robots.txt")

	// ErrTooLarge indicates the response body exceeded the configured limit.
	ErrTooLarge = errors.New("response body too large")

	// ErrRetriesExhausted indicates every attempt failed with a transient error.
	ErrRetriesExhausted = errors.New("retries exhausted")
)

// StatusError is returned for a final non-2xx response.
type StatusError struct {
	Method     string
	StatusCode int
	URL        string
	Body       []byte

	retryAfter time.Duration
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: status %d %s", e.Method, e.URL, e.StatusCode, http.StatusText(e.StatusCode))
}

// IsNotFound returns true if the error is a 404 or 410 status.
func IsNotFound(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode == http.StatusNotFound || se.StatusCode == http.StatusGone
	}
	return false
}

// IsRateLimited returns true if the error is a 429 status.
func IsRateLimited(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode == http.StatusTooManyRequests
	}
	return false
}

// transient reports whether a status code is worth retrying.
func transient(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}
