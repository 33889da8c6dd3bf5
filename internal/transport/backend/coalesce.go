package backend

import (
	"context"
	"fmt"

	"golang.org/x/sync/singleflight"

	"github.com/kailas-cloud/searchfront/internal/domain/search/request"
	"github.com/kailas-cloud/searchfront/internal/domain/search/response"
	"github.com/kailas-cloud/searchfront/internal/metrics"
)

// querier is the consumer interface for the wrapped backend (ISP).
type querier interface {
	Query(ctx context.Context, req request.Request) (response.Response, error)
}

// Coalescer shares one in-flight backend call among identical concurrent
// queries, e.g. many views searching the same keyword at once.
type Coalescer struct {
	inner querier
	group singleflight.Group
}

// NewCoalescer wraps a backend.
func NewCoalescer(inner querier) *Coalescer {
	return &Coalescer{inner: inner}
}

// Query runs req or joins an identical call already in flight. The shared
// call runs detached from any single caller's cancellation; each caller
// still stops waiting when its own context ends.
func (c *Coalescer) Query(ctx context.Context, req request.Request) (response.Response, error) {
	ch := c.group.DoChan(req.Key(), func() (any, error) {
		return c.inner.Query(context.WithoutCancel(ctx), req)
	})

	select {
	case res := <-ch:
		if res.Shared {
			metrics.BackendCoalescedTotal.Inc()
		}
		if res.Err != nil {
			return response.Response{}, res.Err //nolint:wrapcheck // already classified by the inner backend
		}
		resp, ok := res.Val.(response.Response)
		if !ok {
			return response.Response{}, fmt.Errorf("coalesced query returned %T", res.Val)
		}
		return resp, nil
	case <-ctx.Done():
		return response.Response{}, fmt.Errorf("coalesced query: %w", ctx.Err())
	}
}
