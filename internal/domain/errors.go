package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrInvalidRequest signals a search request that failed validation.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrViewLimitReached signals that no more views can be opened.
	ErrViewLimitReached = errors.New("view limit reached")

	// ErrNetworkFailure signals that a backend query did not complete:
	// transport error, non-2xx status or a rejected envelope.
	ErrNetworkFailure = errors.New("backend network failure")
	// ErrMalformedResponse signals a backend answer without a usable total or category map.
	ErrMalformedResponse = errors.New("malformed backend response")
)

// BackendStatusError wraps ErrNetworkFailure with the upstream status.
type BackendStatusError struct {
	StatusCode int
	Message    string
}

func (e *BackendStatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: status %d", ErrNetworkFailure.Error(), e.StatusCode)
	}
	return fmt.Sprintf("%s: status %d: %s", ErrNetworkFailure.Error(), e.StatusCode, e.Message)
}

func (e *BackendStatusError) Unwrap() error { return ErrNetworkFailure }

// NewBackendStatus creates a backend status error.
func NewBackendStatus(statusCode int, message string) error {
	return &BackendStatusError{StatusCode: statusCode, Message: message}
}
