package view

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/kailas-cloud/searchfront/internal/domain"
	"github.com/kailas-cloud/searchfront/internal/domain/search/request"
	domview "github.com/kailas-cloud/searchfront/internal/domain/view"
	"github.com/kailas-cloud/searchfront/internal/metrics"
	"github.com/kailas-cloud/searchfront/internal/usecase/search"
)

// Service owns the open views of this replica. Each view has its own
// orchestrator and state; the view id is the only handle clients get.
type Service struct {
	backend search.Backend
	store   SnapshotStore
	clock   clockwork.Clock
	logger  *zap.Logger

	refine          search.Config
	maxViews        int
	idleTTL         time.Duration
	sweepInterval   time.Duration
	defaultPageSize int
	maxPageSize     int

	mu    sync.Mutex
	views map[string]*entry
}

type entry struct {
	id       string
	orch     *search.Orchestrator
	state    *state
	lastUsed time.Time // guarded by Service.mu
}

// New creates a view service. store can be nil when persistence is disabled.
func New(backend search.Backend, store SnapshotStore, clock clockwork.Clock, logger *zap.Logger) *Service {
	return &Service{
		backend:         backend,
		store:           store,
		clock:           clock,
		logger:          logger,
		refine:          search.DefaultConfig(),
		maxViews:        1000,
		idleTTL:         15 * time.Minute,
		sweepInterval:   time.Minute,
		defaultPageSize: 20,
		maxPageSize:     100,
		views:           make(map[string]*entry),
	}
}

// WithRefinement sets the refinement timings for views opened afterwards.
func (s *Service) WithRefinement(cfg search.Config) *Service {
	s.refine = cfg
	return s
}

// WithLimits sets the view cap and idle expiry. Non-positive values keep the defaults.
func (s *Service) WithLimits(maxViews int, idleTTL, sweepInterval time.Duration) *Service {
	if maxViews > 0 {
		s.maxViews = maxViews
	}
	if idleTTL > 0 {
		s.idleTTL = idleTTL
	}
	if sweepInterval > 0 {
		s.sweepInterval = sweepInterval
	}
	return s
}

// WithPagination sets page size defaults. Non-positive values keep the defaults.
func (s *Service) WithPagination(defaultPageSize, maxPageSize int) *Service {
	if defaultPageSize > 0 {
		s.defaultPageSize = defaultPageSize
	}
	if maxPageSize > 0 {
		s.maxPageSize = maxPageSize
	}
	return s
}

// Open creates a view in the idle state.
func (s *Service) Open(_ context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.views) >= s.maxViews {
		return "", fmt.Errorf("open view: %w (max %d)", domain.ErrViewLimitReached, s.maxViews)
	}

	id := uuid.NewString()
	logger := s.logger.With(zap.String("view_id", id))
	st := newState(id, s.clock, s.store, logger)
	e := &entry{
		id:       id,
		orch:     search.New(s.backend, st, s.clock, logger).WithConfig(s.refine),
		state:    st,
		lastUsed: s.clock.Now(),
	}
	s.views[id] = e
	st.Flush()

	metrics.ViewsActive.Inc()
	logger.Debug("View opened")
	return id, nil
}

// Search starts a refinement sequence in the view, superseding any running one.
func (s *Service) Search(_ context.Context, id string, req request.Request) error {
	e, err := s.get(id)
	if err != nil {
		return err
	}
	e.orch.StartSearch(req)
	return nil
}

// Cancel stops the view's running sequence, keeping the results shown so far.
func (s *Service) Cancel(_ context.Context, id string) error {
	e, err := s.get(id)
	if err != nil {
		return err
	}
	e.orch.Cancel()
	return nil
}

// Snapshot returns the view's current state. Views owned by another replica
// are read from the snapshot store.
func (s *Service) Snapshot(ctx context.Context, id string) (domview.Snapshot, error) {
	e, err := s.get(id)
	if err == nil {
		return e.state.snapshot(), nil
	}
	if !errors.Is(err, domain.ErrNotFound) || s.store == nil {
		return domview.Snapshot{}, err
	}
	snap, err := s.store.Load(ctx, id)
	if err != nil {
		return domview.Snapshot{}, fmt.Errorf("view %s: %w", id, err)
	}
	return snap, nil
}

// Results returns the snapshot plus the requested pages: one page of the
// named category, or page 1 of every category when name is empty.
func (s *Service) Results(
	ctx context.Context, id, name string, page, pageSize int,
) (domview.Snapshot, []domview.Page, error) {
	snap, err := s.Snapshot(ctx, id)
	if err != nil {
		return domview.Snapshot{}, nil, err
	}
	pageSize = s.clampPageSize(pageSize)

	if name == "" {
		return snap, snap.FirstPages(pageSize), nil
	}
	p, err := snap.Page(name, page, pageSize)
	if err != nil {
		return domview.Snapshot{}, nil, fmt.Errorf("view %s: %w", id, err)
	}
	return snap, []domview.Page{p}, nil
}

// Subscribe streams the view's snapshots, starting with the current one.
// The channel is closed by the returned func or when the view closes.
func (s *Service) Subscribe(_ context.Context, id string) (<-chan domview.Snapshot, func(), error) {
	e, err := s.get(id)
	if err != nil {
		return nil, nil, err
	}
	ch, unsubscribe, ok := e.state.subscribe()
	if !ok {
		return nil, nil, fmt.Errorf("view %s: %w", id, domain.ErrNotFound)
	}
	return ch, unsubscribe, nil
}

// Close cancels the view's sequence, releases its subscribers and forgets it.
func (s *Service) Close(ctx context.Context, id string) error {
	s.mu.Lock()
	e, ok := s.views[id]
	if ok {
		delete(s.views, id)
	}
	s.mu.Unlock()

	if !ok {
		return fmt.Errorf("view %s: %w", id, domain.ErrNotFound)
	}
	s.release(ctx, e)
	return nil
}

// Sweep closes views idle longer than the idle TTL. Views with live
// subscribers are never idle. Returns the number of views closed.
func (s *Service) Sweep(ctx context.Context) int {
	cutoff := s.clock.Now().Add(-s.idleTTL)

	s.mu.Lock()
	var expired []*entry
	for id, e := range s.views {
		if e.lastUsed.Before(cutoff) && e.state.subscribers() == 0 {
			expired = append(expired, e)
			delete(s.views, id)
		}
	}
	s.mu.Unlock()

	for _, e := range expired {
		s.release(ctx, e)
	}
	if len(expired) > 0 {
		s.logger.Info("Idle views closed", zap.Int("count", len(expired)))
	}
	return len(expired)
}

// Run sweeps idle views every sweep interval until ctx is done.
func (s *Service) Run(ctx context.Context) {
	ticker := s.clock.NewTicker(s.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			s.Sweep(ctx)
		}
	}
}

// Shutdown closes every view. Snapshots are left in the store to expire.
func (s *Service) Shutdown() {
	s.mu.Lock()
	all := make([]*entry, 0, len(s.views))
	for id, e := range s.views {
		all = append(all, e)
		delete(s.views, id)
	}
	s.mu.Unlock()

	for _, e := range all {
		e.orch.Close()
		e.state.close()
		metrics.ViewsActive.Dec()
	}
}

// Len returns the number of open views.
func (s *Service) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.views)
}

func (s *Service) get(id string) (*entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.views[id]
	if !ok {
		return nil, fmt.Errorf("view %s: %w", id, domain.ErrNotFound)
	}
	e.lastUsed = s.clock.Now()
	return e, nil
}

func (s *Service) release(ctx context.Context, e *entry) {
	e.orch.Close()
	e.state.close()
	metrics.ViewsActive.Dec()

	if s.store != nil {
		if err := s.store.Delete(ctx, e.id); err != nil {
			s.logger.Warn("Failed to delete view snapshot", zap.String("view_id", e.id), zap.Error(err))
		}
	}
	s.logger.Debug("View closed", zap.String("view_id", e.id))
}

// PageSize clamps a requested page size to the configured bounds; zero or
// negative picks the default.
func (s *Service) PageSize(n int) int {
	return s.clampPageSize(n)
}

func (s *Service) clampPageSize(n int) int {
	if n <= 0 {
		return s.defaultPageSize
	}
	return min(n, s.maxPageSize)
}
