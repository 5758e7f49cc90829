package biblio

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/matsen/linkharvest/internal/httpclient"
)

// Common errors returned by the adapters. Callers in the resolution cascade
// treat every error as "no result".
var (
	// ErrNoResult indicates the service answered but had no usable work.
	ErrNoResult = errors.New("no bibliographic result")

	// ErrNoCredentials indicates a service that needs a token was not configured.
	ErrNoCredentials = errors.New("service credentials not configured")

	// ErrInvalidResponse indicates a payload that could not be parsed.
	ErrInvalidResponse = errors.New("invalid response")
)

// APIError is a non-2xx answer or transport failure from one service.
type APIError struct {
	Service    string
	StatusCode int // 0 for transport failures
	Err        error
}

func (e *APIError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s API error (status %d): %v", e.Service, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s API error: %v", e.Service, e.Err)
}

func (e *APIError) Unwrap() error { return e.Err }

// IsNotFound returns true if the error means the service has no such work.
func IsNotFound(err error) bool {
	if errors.Is(err, ErrNoResult) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusNotFound
	}
	return false
}

func wrapHTTPError(service string, err error) error {
	var se *httpclient.StatusError
	if errors.As(err, &se) {
		return &APIError{Service: service, StatusCode: se.StatusCode, Err: err}
	}
	return &APIError{Service: service, Err: err}
}
