package search

import (
	"context"
	"time"

	"github.com/kailas-cloud/searchfront/internal/domain/search/category"
	"github.com/kailas-cloud/searchfront/internal/domain/search/request"
	"github.com/kailas-cloud/searchfront/internal/domain/search/response"
)

// Backend runs one search against the upstream service.
type Backend interface {
	Query(ctx context.Context, req request.Request) (response.Response, error)
}

// Sink receives the observable search state. Setters are called with the
// orchestrator lock held and must not block or call back into it.
// Flush marks the end of one consistent batch of updates.
type Sink interface {
	SetKeyword(kw string)
	SetSearching(v bool)
	SetLoading(v bool)
	SetUpdating(v bool)
	SetUpdateCount(n int)
	SetTotal(n int)
	SetResults(groups []category.Group)
	SetSearchTime(d time.Duration)
	SetPhase(p Phase)
	Flush()
}
