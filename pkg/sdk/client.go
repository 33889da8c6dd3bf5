package searchfront

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"

	dbRedis "github.com/kailas-cloud/searchfront/internal/db/redis"
	"github.com/kailas-cloud/searchfront/internal/domain/search/request"
	domview "github.com/kailas-cloud/searchfront/internal/domain/view"
	"github.com/kailas-cloud/searchfront/internal/repository/snapshot"
	"github.com/kailas-cloud/searchfront/internal/transport/backend"
	healthuc "github.com/kailas-cloud/searchfront/internal/usecase/health"
	searchuc "github.com/kailas-cloud/searchfront/internal/usecase/search"
	viewuc "github.com/kailas-cloud/searchfront/internal/usecase/view"
)

const defaultReadinessTimeout = 10 * time.Second

// viewUseCase is the internal interface for view operations.
type viewUseCase interface {
	Open(ctx context.Context) (string, error)
	Search(ctx context.Context, id string, req request.Request) error
	Cancel(ctx context.Context, id string) error
	Snapshot(ctx context.Context, id string) (domview.Snapshot, error)
	Results(ctx context.Context, id, name string, page, pageSize int) (domview.Snapshot, []domview.Page, error)
	Subscribe(ctx context.Context, id string) (<-chan domview.Snapshot, func(), error)
	Close(ctx context.Context, id string) error
}

// Client is the searchfront SDK entry point.
type Client struct {
	viewSvc   viewUseCase
	healthSvc healthUseCase
	obs       *observer
	shutdown  func()
}

// New creates a Client. When a snapshot store is configured, ctx bounds
// the initial readiness check.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := &clientConfig{
		narrowSource: "tg",
		broadSource:  "all",
		snapshotTTL:  time.Hour,
		clock:        clockwork.NewRealClock(),
	}
	for _, o := range opts {
		o.apply(cfg)
	}

	if cfg.baseURL == "" {
		return nil, errors.New("searchfront: backend url required (use WithBackend)")
	}
	if cfg.narrowSource == cfg.broadSource {
		return nil, fmt.Errorf("searchfront: narrow and broad sources must differ, both are %q", cfg.narrowSource)
	}

	client, err := backend.NewClient(&backend.Config{
		BaseURL:      cfg.baseURL,
		SearchPath:   "/api/search",
		HealthPath:   "/api/health",
		Token:        cfg.token,
		Timeout:      cfg.backendTimeout,
		NarrowSource: cfg.narrowSource,
		BroadSource:  cfg.broadSource,
		Logger:       engineLogger(cfg.logger),
	})
	if err != nil {
		return nil, fmt.Errorf("searchfront: %w", err)
	}

	var store *dbRedis.Store
	if len(cfg.addrs) > 0 {
		store, err = dbRedis.NewStore(dbRedis.Config{
			Addrs:      cfg.addrs,
			Password:   cfg.password,
			Standalone: cfg.standalone,
		})
		if err != nil {
			return nil, fmt.Errorf("searchfront: create snapshot store: %w", err)
		}
		if err := store.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
			store.Close()
			return nil, fmt.Errorf("searchfront: snapshot store not ready: %w", err)
		}
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		if store != nil {
			store.Close()
		}
		return nil, err
	}
	return wireClient(backend.NewCoalescer(client), client, store, cfg, obs), nil
}

// wireClient builds the view engine. store may be nil.
func wireClient(
	querier searchuc.Backend, checker healthuc.BackendChecker, store *dbRedis.Store,
	cfg *clientConfig, obs *observer,
) *Client {
	logger := engineLogger(cfg.logger)

	// Nil interfaces, not typed nil pointers, when persistence is off.
	var (
		snapshots viewuc.SnapshotStore
		pinger    healthuc.StorePinger
	)
	if store != nil {
		snapshots = snapshot.New(store, cfg.snapshotTTL, nil, logger)
		pinger = store
	}

	refine := searchuc.DefaultConfig()
	if cfg.refine != nil {
		refine = *cfg.refine
	}

	views := viewuc.New(querier, snapshots, cfg.clock, logger).
		WithRefinement(refine).
		WithLimits(cfg.maxViews, cfg.idleTTL, 0).
		WithPagination(cfg.defaultPageSize, cfg.maxPageSize)

	runCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		views.Run(runCtx)
	}()

	return &Client{
		viewSvc:   views,
		healthSvc: healthuc.New(checker, pinger),
		obs:       obs,
		shutdown: func() {
			cancel()
			<-done
			views.Shutdown()
			if store != nil {
				store.Close()
			}
		},
	}
}

// Close stops every view and releases all resources.
func (c *Client) Close() {
	if c.shutdown != nil {
		c.shutdown()
	}
}

// OpenView creates an idle view.
func (c *Client) OpenView(ctx context.Context) (_ *View, err error) {
	start := time.Now()
	defer func() { c.obs.observe("view.open", start, err) }()

	id, err := c.viewSvc.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("open view: %w", err)
	}
	return c.View(id), nil
}

// View returns a handle to an existing view. No call is made until the
// handle is used.
func (c *Client) View(id string) *View {
	return &View{id: id, svc: c.viewSvc, obs: c.obs}
}
