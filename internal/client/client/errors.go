package client

import (
	"errors"
	"fmt"
)

var (
	ErrUnavailable  = errors.New("server unavailable")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrRejected     = errors.New("request rejected")
)

// APIError is a non-2xx answer from the backend.
type APIError struct {
	Status  int
	Message string
	kind    error
	// token the failed request was sent with, empty for anonymous calls.
	token string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s (http %d)", e.kind, e.Status)
	}
	return fmt.Sprintf("%s (http %d): %s", e.kind, e.Status, e.Message)
}

func (e *APIError) Unwrap() error { return e.kind }

// IssuedFor reports whether the refused request carried token.
func (e *APIError) IssuedFor(token string) bool { return e.token == token }
