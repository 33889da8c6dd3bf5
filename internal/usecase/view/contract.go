package view

import (
	"context"

	domview "github.com/kailas-cloud/searchfront/internal/domain/view"
)

// SnapshotStore persists the latest snapshot of each view so any replica
// can serve reads for it.
type SnapshotStore interface {
	Save(ctx context.Context, snap domview.Snapshot) error
	Load(ctx context.Context, viewID string) (domview.Snapshot, error)
	Delete(ctx context.Context, viewID string) error
}
