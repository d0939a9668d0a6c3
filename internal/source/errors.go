package source

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/matsen/bibfix/internal/reference"
)

// Common errors returned by source adapters.
var (
	// ErrSourceUnavailable is wrapped by every transport or availability failure.
	// "No results" is never an error; adapters return an empty slice.
	ErrSourceUnavailable = errors.New("source unavailable")

	// ErrRateLimited indicates the source rejected the request with HTTP 429.
	ErrRateLimited = errors.New("source rate limit exceeded")

	// ErrInvalidResponse indicates a response body that could not be decoded.
	ErrInvalidResponse = errors.New("invalid response from source")
)

// APIError is a non-2xx HTTP response from a source.
type APIError struct {
	Source     reference.Source
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s API error (status %d): %s", e.Source, e.StatusCode, e.Message)
}

// Unwrap makes every APIError match ErrSourceUnavailable, and 429 responses
// also match ErrRateLimited.
func (e *APIError) Unwrap() []error {
	if e.StatusCode == http.StatusTooManyRequests {
		return []error{ErrSourceUnavailable, ErrRateLimited}
	}
	return []error{ErrSourceUnavailable}
}

// IsUnavailable returns true if the error is a source availability failure.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrSourceUnavailable)
}

// IsRateLimited returns true if the error indicates rate limiting.
func IsRateLimited(err error) bool {
	return errors.Is(err, ErrRateLimited)
}

// IsNotFound returns true if the source answered 404.
func IsNotFound(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusNotFound
	}
	return false
}

// unavailable wraps err as an availability failure of src.
func unavailable(src reference.Source, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrSourceUnavailable, src, err)
}

// invalid wraps a decoding failure of src.
func invalid(src reference.Source, what string, err error) error {
	return fmt.Errorf("%w: %w: %s: parsing %s: %v", ErrSourceUnavailable, ErrInvalidResponse, src, what, err)
}
