package health

import "context"

// StorePinger checks snapshot store availability.
type StorePinger interface {
	Ping(ctx context.Context) error
}

// BackendChecker checks upstream search API availability.
type BackendChecker interface {
	HealthCheck(ctx context.Context) error
}
