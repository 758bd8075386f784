// internal/domain/errors.go
package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrUnauthorized is returned by the backend client when the API responds with HTTP 401.
// Callers can check for it using errors.Is.
var ErrUnauthorized = errors.New("unauthorized")

// ErrMissingCode is reported when the OAuth redirect carries no authorization code.
var ErrMissingCode = errors.New("no authorization code received")

// APIError is a non-2xx response from the backend.
// Message holds the backend's structured "message" field and is empty when the body had none.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("backend API error: %d %s: %s", e.StatusCode, http.StatusText(e.StatusCode), e.Message)
	}
	return fmt.Sprintf("backend API error: %d %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// Unwrap lets errors.Is(err, ErrUnauthorized) match 401 responses.
func (e *APIError) Unwrap() error {
	if e.StatusCode == http.StatusUnauthorized {
		return ErrUnauthorized
	}
	return nil
}

// MessageOr returns the backend's structured message carried by err, or fallback
// when err carries none (transport failures, undecodable bodies).
func MessageOr(err error, fallback string) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return fallback
}
