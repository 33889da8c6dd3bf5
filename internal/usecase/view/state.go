package view

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/kailas-cloud/searchfront/internal/domain/search/category"
	domview "github.com/kailas-cloud/searchfront/internal/domain/view"
	"github.com/kailas-cloud/searchfront/internal/usecase/search"
)

const saveTimeout = 2 * time.Second

// Compile-time check: state implements search.Sink.
var _ search.Sink = (*state)(nil)

// state is the sink of one view. Setters stage changes; Flush publishes
// them as one snapshot to subscribers and the snapshot store.
type state struct {
	clock  clockwork.Clock
	store  SnapshotStore
	logger *zap.Logger

	mu        sync.Mutex
	staged    domview.Snapshot
	published domview.Snapshot
	subs      map[chan domview.Snapshot]struct{}
	closed    bool

	saveKick chan struct{}
	stop     chan struct{}
	done     chan struct{}
}

func newState(id string, clock clockwork.Clock, store SnapshotStore, logger *zap.Logger) *state {
	st := &state{
		clock:  clock,
		store:  store,
		logger: logger,
		staged: domview.Snapshot{ViewID: id, Phase: string(search.PhaseIdle)},
		subs:   make(map[chan domview.Snapshot]struct{}),
		done:   make(chan struct{}),
	}
	if store != nil {
		st.saveKick = make(chan struct{}, 1)
		st.stop = make(chan struct{})
		go st.saveLoop()
	} else {
		close(st.done)
	}
	return st
}

func (st *state) SetKeyword(kw string) { st.stage(func(s *domview.Snapshot) { s.Keyword = kw }) }
func (st *state) SetSearching(v bool)  { st.stage(func(s *domview.Snapshot) { s.Searching = v }) }
func (st *state) SetLoading(v bool)    { st.stage(func(s *domview.Snapshot) { s.Loading = v }) }
func (st *state) SetUpdating(v bool)   { st.stage(func(s *domview.Snapshot) { s.Updating = v }) }
func (st *state) SetUpdateCount(n int) {
	st.stage(func(s *domview.Snapshot) { s.UpdateCount = n })
}
func (st *state) SetTotal(n int) { st.stage(func(s *domview.Snapshot) { s.Total = n }) }
func (st *state) SetResults(groups []category.Group) {
	st.stage(func(s *domview.Snapshot) { s.Results = groups })
}
func (st *state) SetSearchTime(d time.Duration) {
	st.stage(func(s *domview.Snapshot) { s.SearchTimeMs = d.Milliseconds() })
}
func (st *state) SetPhase(p search.Phase) {
	st.stage(func(s *domview.Snapshot) { s.Phase = string(p) })
}

func (st *state) stage(fn func(*domview.Snapshot)) {
	st.mu.Lock()
	fn(&st.staged)
	st.mu.Unlock()
}

// Flush publishes the staged state. It never blocks: each subscriber keeps
// only the newest snapshot and persistence happens on the save loop.
func (st *state) Flush() {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.closed {
		return
	}

	st.staged.Version++
	st.staged.UpdatedAt = st.clock.Now()
	st.published = st.staged

	for ch := range st.subs {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- st.published:
		default:
		}
	}

	if st.saveKick != nil {
		select {
		case st.saveKick <- struct{}{}:
		default:
		}
	}
}

func (st *state) snapshot() domview.Snapshot {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.published
}

// subscribe registers a subscriber primed with the current snapshot.
func (st *state) subscribe() (<-chan domview.Snapshot, func(), bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.closed {
		return nil, nil, false
	}
	ch := make(chan domview.Snapshot, 1)
	ch <- st.published
	st.subs[ch] = struct{}{}

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			st.mu.Lock()
			defer st.mu.Unlock()
			if _, ok := st.subs[ch]; ok {
				delete(st.subs, ch)
				close(ch)
			}
		})
	}
	return ch, unsubscribe, true
}

func (st *state) subscribers() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.subs)
}

// close releases every subscriber and stops the save loop.
func (st *state) close() {
	st.mu.Lock()
	if st.closed {
		st.mu.Unlock()
		return
	}
	st.closed = true
	for ch := range st.subs {
		delete(st.subs, ch)
		close(ch)
	}
	st.mu.Unlock()

	if st.stop != nil {
		close(st.stop)
	}
	<-st.done
}

func (st *state) saveLoop() {
	defer close(st.done)
	for {
		select {
		case <-st.stop:
			return
		case <-st.saveKick:
			snap := st.snapshot()
			ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
			if err := st.store.Save(ctx, snap); err != nil {
				st.logger.Warn("Failed to persist view snapshot",
					zap.Uint64("version", snap.Version),
					zap.Error(err),
				)
			}
			cancel()
		}
	}
}
