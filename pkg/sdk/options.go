package searchfront

import (
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"

	searchuc "github.com/kailas-cloud/searchfront/internal/usecase/search"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	baseURL        string
	token          string
	narrowSource   string
	broadSource    string
	backendTimeout time.Duration

	addrs       []string
	password    string
	standalone  bool
	snapshotTTL time.Duration

	refine *searchuc.Config

	maxViews        int
	idleTTL         time.Duration
	defaultPageSize int
	maxPageSize     int

	clock      clockwork.Clock
	logger     *slog.Logger
	metricsReg prometheus.Registerer
}

// WithBackend sets the upstream search API base URL. Required.
func WithBackend(baseURL string) Option {
	return optionFunc(func(c *clientConfig) {
		c.baseURL = baseURL
	})
}

// WithBackendToken sends the token as a Bearer credential on every upstream call.
func WithBackendToken(token string) Option {
	return optionFunc(func(c *clientConfig) {
		c.token = token
	})
}

// WithSources names the narrow and broad upstream sources.
// Defaults: "tg" and "all".
func WithSources(narrow, broad string) Option {
	return optionFunc(func(c *clientConfig) {
		c.narrowSource = narrow
		c.broadSource = broad
	})
}

// WithBackendTimeout bounds a single upstream query. Default: 15s.
func WithBackendTimeout(d time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.backendTimeout = d
	})
}

// WithRedis persists view snapshots in a Redis instance.
func WithRedis(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.addrs = []string{addr}
		c.password = password
	})
}

// WithValkey persists view snapshots in a Valkey instance.
func WithValkey(addr, password string) Option {
	return WithRedis(addr, password)
}

// WithStandalone disables cluster topology discovery.
// Use for standalone Valkey/Redis instances.
func WithStandalone() Option {
	return optionFunc(func(c *clientConfig) {
		c.standalone = true
	})
}

// WithSnapshotTTL sets how long persisted snapshots live. Default: 1h.
func WithSnapshotTTL(d time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.snapshotTTL = d
	})
}

// WithRefinement overrides the refinement timings: the loading safety
// timeout and the minimum gaps before the second and third broad queries.
// A non-positive loading timeout keeps the 5s default. A zero gap sends the
// next broad query as soon as the previous one completes.
func WithRefinement(loadingTimeout, secondGap, thirdGap time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.refine = &searchuc.Config{
			LoadingTimeout: loadingTimeout,
			SecondGap:      secondGap,
			ThirdGap:       thirdGap,
		}
	})
}

// WithMaxViews caps the number of open views. Default: 1000.
func WithMaxViews(n int) Option {
	return optionFunc(func(c *clientConfig) {
		c.maxViews = n
	})
}

// WithIdleTTL closes views nobody touched or watched for d. Default: 15m.
func WithIdleTTL(d time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.idleTTL = d
	})
}

// WithPageSize sets the default and maximum category page size.
// Defaults: 20 and 100.
func WithPageSize(defaultSize, maxSize int) Option {
	return optionFunc(func(c *clientConfig) {
		c.defaultPageSize = defaultSize
		c.maxPageSize = maxSize
	})
}

// WithClock replaces the wall clock driving refinement timers.
func WithClock(clock clockwork.Clock) Option {
	return optionFunc(func(c *clientConfig) {
		c.clock = clock
	})
}

// WithLogger enables structured logging for SDK operations and for the
// engine underneath (backend failures, dropped results, store errors).
// Pass nil to disable (default). Uses standard library slog.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithPrometheus registers SDK metrics (operation counts and durations)
// on the given registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}
