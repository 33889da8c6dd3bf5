package searchfront

import "github.com/kailas-cloud/searchfront/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrNotFound          = domain.ErrNotFound
	ErrInvalidRequest    = domain.ErrInvalidRequest
	ErrViewLimitReached  = domain.ErrViewLimitReached
	ErrNetworkFailure    = domain.ErrNetworkFailure
	ErrMalformedResponse = domain.ErrMalformedResponse
)
