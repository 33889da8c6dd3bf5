package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/searchfront/internal/db"
	"github.com/kailas-cloud/searchfront/internal/domain"
	"github.com/kailas-cloud/searchfront/internal/domain/view"
)

const keyPrefix = "searchfront:view:"

// kv is the consumer interface for snapshot persistence (ISP).
type kv interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, key string) error
}

// Store keeps the latest snapshot of every view as a JSON string with a TTL.
type Store struct {
	kv      kv
	ttl     time.Duration
	opTotal *prometheus.CounterVec
	logger  *zap.Logger
}

// New creates a snapshot store. opTotal is a counter vec with labels
// "op" and "result", passed explicitly; nil disables counting.
func New(s kv, ttl time.Duration, opTotal *prometheus.CounterVec, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{kv: s, ttl: ttl, opTotal: opTotal, logger: logger}
}

// Save writes the snapshot, replacing any older one.
func (s *Store) Save(ctx context.Context, snap view.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		s.inc("save", "error")
		return fmt.Errorf("encode snapshot %s: %w", snap.ViewID, err)
	}
	if err := s.kv.SetWithTTL(ctx, key(snap.ViewID), data, s.ttl); err != nil {
		s.inc("save", "error")
		return fmt.Errorf("save snapshot %s: %w", snap.ViewID, err)
	}
	s.inc("save", "ok")
	return nil
}

// Load returns the stored snapshot or domain.ErrNotFound.
func (s *Store) Load(ctx context.Context, viewID string) (view.Snapshot, error) {
	data, err := s.kv.Get(ctx, key(viewID))
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			s.inc("load", "miss")
			return view.Snapshot{}, fmt.Errorf("snapshot %s: %w", viewID, domain.ErrNotFound)
		}
		s.inc("load", "error")
		return view.Snapshot{}, fmt.Errorf("load snapshot %s: %w", viewID, err)
	}

	var snap view.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		// A corrupt entry is as good as none; the owner will overwrite it.
		s.logger.Warn("Failed to decode stored snapshot", zap.String("view_id", viewID), zap.Error(err))
		s.inc("load", "error")
		return view.Snapshot{}, fmt.Errorf("snapshot %s: %w", viewID, domain.ErrNotFound)
	}
	s.inc("load", "ok")
	return snap, nil
}

// Delete removes the stored snapshot. Missing snapshots are not an error.
func (s *Store) Delete(ctx context.Context, viewID string) error {
	if err := s.kv.Del(ctx, key(viewID)); err != nil {
		s.inc("delete", "error")
		return fmt.Errorf("delete snapshot %s: %w", viewID, err)
	}
	s.inc("delete", "ok")
	return nil
}

func (s *Store) inc(op, result string) {
	if s.opTotal != nil {
		s.opTotal.WithLabelValues(op, result).Inc()
	}
}

func key(viewID string) string {
	return keyPrefix + viewID
}
