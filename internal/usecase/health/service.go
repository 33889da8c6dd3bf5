package health

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/searchfront/internal/logger"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates the snapshot store is down; searches still work.
	Degraded Status = "degraded"
	// Unhealthy indicates the backend is down and no search can succeed.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// Component names in Report.Checks.
const (
	ComponentBackend = "backend"
	ComponentStore   = "snapshot_store"
)

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

// Service coordinates health checks.
type Service struct {
	backend BackendChecker
	store   StorePinger
}

// New creates a Service. store can be nil when persistence is disabled.
func New(backend BackendChecker, store StorePinger) *Service {
	return &Service{backend: backend, store: store}
}

// Check runs all component checks concurrently.
func (s *Service) Check(ctx context.Context) Report {
	var (
		mu     sync.Mutex
		checks = make(map[string]CheckResult, 2)
		g      errgroup.Group
	)
	record := func(name string, err error) {
		res := CheckOK
		if err != nil {
			res = CheckError
			logger.FromContext(ctx).Warn("Health check failed", zap.String("component", name), zap.Error(err))
		}
		mu.Lock()
		checks[name] = res
		mu.Unlock()
	}

	g.Go(func() error {
		record(ComponentBackend, s.backend.HealthCheck(ctx))
		return nil
	})
	if s.store != nil {
		g.Go(func() error {
			record(ComponentStore, s.store.Ping(ctx))
			return nil
		})
	}
	_ = g.Wait()

	status := Healthy
	switch {
	case checks[ComponentBackend] == CheckError:
		status = Unhealthy
	case checks[ComponentStore] == CheckError:
		status = Degraded
	}

	return Report{Status: status, Checks: checks}
}
