package search

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/kailas-cloud/searchfront/internal/domain"
	"github.com/kailas-cloud/searchfront/internal/domain/search/request"
	"github.com/kailas-cloud/searchfront/internal/domain/search/response"
	"github.com/kailas-cloud/searchfront/internal/domain/search/source"
	"github.com/kailas-cloud/searchfront/internal/metrics"
)

// Phase is the refinement sequence position.
type Phase string

// Refinement phases.
const (
	PhaseIdle    Phase = "idle"
	PhasePrimary Phase = "primary"
	PhaseBroad1  Phase = "broad-1"
	PhaseBroad2  Phase = "broad-2"
	PhaseBroad3  Phase = "broad-3"
	PhaseDone    Phase = "done"
)

// Config holds the refinement timings.
type Config struct {
	// LoadingTimeout clears the loading flag if the primary query is still running.
	LoadingTimeout time.Duration
	// SecondGap is the minimum time between the first and second broad query completions.
	SecondGap time.Duration
	// ThirdGap is the minimum time between the second and third broad query completions.
	ThirdGap time.Duration
}

// DefaultConfig returns the stock timings: 5s, 2s, 3s.
func DefaultConfig() Config {
	return Config{
		LoadingTimeout: 5 * time.Second,
		SecondGap:      2 * time.Second,
		ThirdGap:       3 * time.Second,
	}
}

// Orchestrator runs one staggered refinement sequence per search and
// publishes monotonically improving results to a Sink.
type Orchestrator struct {
	backend Backend
	sink    Sink
	clock   clockwork.Clock
	cfg     Config
	logger  *zap.Logger

	mu      sync.Mutex
	current *session
	seq     uint64
	closed  bool
	wg      sync.WaitGroup
}

// session is the state of one refinement sequence. It is replaced, never
// reused, when a newer search starts.
type session struct {
	id     uint64
	req    request.Request
	ctx    context.Context
	cancel context.CancelFunc
	logger *zap.Logger
	start  time.Time

	// guarded by Orchestrator.mu
	phase        Phase
	bestTotal    int
	best         response.Response
	primaryDone  bool
	loadingTimer clockwork.Timer
	secondTimer  clockwork.Timer
	thirdTimer   clockwork.Timer
}

// New creates an orchestrator with the default timings.
func New(backend Backend, sink Sink, clock clockwork.Clock, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		backend: backend,
		sink:    sink,
		clock:   clock,
		cfg:     DefaultConfig(),
		logger:  logger,
	}
}

// WithConfig overrides timings. Non-positive loading timeout keeps the default;
// negative gaps are treated as zero.
func (o *Orchestrator) WithConfig(cfg Config) *Orchestrator {
	if cfg.LoadingTimeout > 0 {
		o.cfg.LoadingTimeout = cfg.LoadingTimeout
	}
	o.cfg.SecondGap = max(cfg.SecondGap, 0)
	o.cfg.ThirdGap = max(cfg.ThirdGap, 0)
	return o
}

// StartSearch supersedes any running sequence and starts a new one.
// Results are delivered to the sink; the call does not block on the backend.
func (o *Orchestrator) StartSearch(req request.Request) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return
	}
	o.supersedeLocked(outcomeSuperseded)

	o.seq++
	ctx, cancel := context.WithCancel(context.Background())
	s := &session{
		id:     o.seq,
		req:    req,
		ctx:    ctx,
		cancel: cancel,
		logger: o.logger.With(zap.Uint64("search_id", o.seq), zap.String("keyword", req.Keyword())),
		start:  o.clock.Now(),
		phase:  PhasePrimary,
	}
	o.current = s

	o.sink.SetKeyword(req.Keyword())
	o.sink.SetSearching(true)
	o.sink.SetLoading(true)
	o.sink.SetUpdating(false)
	o.sink.SetUpdateCount(0)
	o.sink.SetTotal(0)
	o.sink.SetResults(nil)
	o.sink.SetSearchTime(0)
	o.sink.SetPhase(PhasePrimary)
	o.sink.Flush()

	s.loadingTimer = o.clock.AfterFunc(o.cfg.LoadingTimeout, func() { o.loadingTimedOut(s) })

	s.logger.Debug("Search started")

	o.wg.Add(1)
	go o.run(s)
}

// Cancel stops the running sequence, if any, and turns all activity flags off.
func (o *Orchestrator) Cancel() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.cancelLocked()
}

// Close cancels the running sequence and waits for its goroutine to exit.
// Later StartSearch calls are ignored.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	o.closed = true
	o.cancelLocked()
	o.mu.Unlock()

	o.wg.Wait()
}

func (o *Orchestrator) cancelLocked() {
	if o.current == nil {
		return
	}
	o.supersedeLocked(outcomeCanceled)
	o.sink.SetSearching(false)
	o.sink.SetLoading(false)
	o.sink.SetUpdating(false)
	o.sink.SetPhase(PhaseIdle)
	o.sink.Flush()
}

// Sequence outcomes reported by refinement_sequences_total.
const (
	outcomeCompleted  = "completed"
	outcomeSuperseded = "superseded"
	outcomeCanceled   = "canceled"
)

// supersedeLocked drops the current session: timers stopped, context
// cancelled, reference discarded so its late results are ignored.
func (o *Orchestrator) supersedeLocked(outcome string) {
	s := o.current
	if s == nil {
		return
	}
	o.current = nil
	stopTimersLocked(s)
	s.cancel()
	metrics.RefinementSequencesTotal.WithLabelValues(outcome).Inc()
	s.logger.Debug("Search stopped", zap.String("outcome", outcome), zap.String("phase", string(s.phase)))
}

func stopTimersLocked(s *session) {
	for _, t := range []clockwork.Timer{s.loadingTimer, s.secondTimer, s.thirdTimer} {
		if t != nil {
			t.Stop()
		}
	}
}

// run is the whole refinement sequence for one session.
func (o *Orchestrator) run(s *session) {
	defer o.wg.Done()

	// Primary: narrow source. Publishes if well formed, always clears loading.
	resp, err := o.query(s, PhasePrimary, source.Narrow)
	ok := o.update(s, func() {
		s.primaryDone = true
		if s.loadingTimer != nil {
			s.loadingTimer.Stop()
		}
		o.sink.SetSearchTime(o.clock.Since(s.start))
		if err == nil {
			o.publishLocked(s, PhasePrimary, resp)
		}
		o.sink.SetLoading(false)
		s.phase = PhaseBroad1
		o.sink.SetPhase(PhaseBroad1)
	})
	if !ok {
		return
	}

	// First broad query.
	resp, err = o.query(s, PhaseBroad1, source.Broad)
	var broadDone time.Time
	ok = o.update(s, func() {
		if err == nil {
			o.publishLocked(s, PhaseBroad1, resp)
		}
		broadDone = o.clock.Now()
		o.sink.SetUpdating(true)
		o.sink.SetUpdateCount(1)
		s.phase = PhaseBroad2
		o.sink.SetPhase(PhaseBroad2)
	})
	if !ok {
		return
	}

	// Second broad query, at least SecondGap after the first one completed.
	if !o.wait(s, o.cfg.SecondGap-o.clock.Since(broadDone), &s.secondTimer) {
		return
	}
	resp, err = o.query(s, PhaseBroad2, source.Broad)
	ok = o.update(s, func() {
		if err == nil {
			o.publishLocked(s, PhaseBroad2, resp)
		}
		broadDone = o.clock.Now()
		o.sink.SetUpdateCount(2)
		s.phase = PhaseBroad3
		o.sink.SetPhase(PhaseBroad3)
	})
	if !ok {
		return
	}

	// Third and final broad query.
	if !o.wait(s, o.cfg.ThirdGap-o.clock.Since(broadDone), &s.thirdTimer) {
		return
	}
	resp, err = o.query(s, PhaseBroad3, source.Broad)
	o.update(s, func() {
		if err == nil {
			o.publishLocked(s, PhaseBroad3, resp)
		}
		o.finishLocked(s)
	})
}

// query runs one backend call and validates the answer. Failures are
// logged and counted; they never stop the sequence.
func (o *Orchestrator) query(s *session, phase Phase, src source.Source) (response.Response, error) {
	start := time.Now()
	resp, err := o.backend.Query(s.ctx, s.req.WithSource(src))
	if err == nil {
		err = resp.Validate()
	}
	metrics.BackendQueryDuration.WithLabelValues(string(src)).Observe(time.Since(start).Seconds())

	status := "ok"
	switch {
	case err == nil:
	case s.ctx.Err() != nil:
		status = "canceled"
	case errors.Is(err, domain.ErrMalformedResponse):
		status = "malformed"
	default:
		status = "network"
	}
	metrics.BackendQueriesTotal.WithLabelValues(string(src), string(phase), status).Inc()

	switch status {
	case "ok":
		s.logger.Debug("Backend query completed",
			zap.String("phase", string(phase)),
			zap.String("source", string(src)),
			zap.Int("total", resp.Total()),
			zap.Duration("duration", time.Since(start)),
		)
	case "canceled":
		s.logger.Debug("Backend query abandoned",
			zap.String("phase", string(phase)),
			zap.String("source", string(src)),
		)
	default:
		s.logger.Warn("Backend query failed",
			zap.String("phase", string(phase)),
			zap.String("source", string(src)),
			zap.String("reason", status),
			zap.Error(err),
		)
	}
	return resp, err
}

// update runs fn under the lock if s is still the current session and
// flushes the sink. Returns false when s has been superseded.
func (o *Orchestrator) update(s *session, fn func()) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.current != s {
		return false
	}
	fn()
	o.sink.Flush()
	return true
}

// wait blocks for d (zero if negative) on the injected clock. The timer is
// stored in slot so supersession can stop it. Returns false when s was
// superseded before or while waiting.
func (o *Orchestrator) wait(s *session, d time.Duration, slot *clockwork.Timer) bool {
	fired := make(chan struct{})

	o.mu.Lock()
	if o.current != s {
		o.mu.Unlock()
		return false
	}
	*slot = o.clock.AfterFunc(max(d, 0), func() { close(fired) })
	o.mu.Unlock()

	select {
	case <-fired:
		return s.ctx.Err() == nil
	case <-s.ctx.Done():
		return false
	}
}

// publishLocked shows resp if it does not lower the displayed total.
// Equal totals replace the display.
func (o *Orchestrator) publishLocked(s *session, phase Phase, resp response.Response) {
	total := resp.Total()
	if total < s.bestTotal {
		metrics.RefinementPublishesTotal.WithLabelValues(string(phase), "regressed").Inc()
		s.logger.Debug("Result discarded, fewer items than displayed",
			zap.String("phase", string(phase)),
			zap.Int("total", total),
			zap.Int("best_total", s.bestTotal),
		)
		return
	}
	s.bestTotal = total
	s.best = resp
	o.sink.SetTotal(total)
	o.sink.SetResults(resp.Groups())
	metrics.RefinementPublishesTotal.WithLabelValues(string(phase), "published").Inc()
}

func (o *Orchestrator) finishLocked(s *session) {
	stopTimersLocked(s)
	s.phase = PhaseDone
	o.sink.SetUpdating(false)
	o.sink.SetSearching(false)
	o.sink.SetPhase(PhaseDone)
	o.current = nil
	s.cancel()
	metrics.RefinementSequencesTotal.WithLabelValues(outcomeCompleted).Inc()
	s.logger.Debug("Search completed",
		zap.Int("best_total", s.bestTotal),
		zap.Int("categories", len(s.best.Groups())),
	)
}

func (o *Orchestrator) loadingTimedOut(s *session) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.current != s || s.primaryDone {
		return
	}
	s.logger.Warn("Primary query still running, releasing loading state",
		zap.Duration("timeout", o.cfg.LoadingTimeout),
	)
	o.sink.SetLoading(false)
	o.sink.Flush()
}
