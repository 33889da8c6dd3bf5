package searchfront

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/kailas-cloud/searchfront/internal/domain"
	"github.com/kailas-cloud/searchfront/internal/domain/search/category"
	"github.com/kailas-cloud/searchfront/internal/domain/search/request"
	"github.com/kailas-cloud/searchfront/internal/domain/search/response"
	"github.com/kailas-cloud/searchfront/internal/domain/search/source"
	domview "github.com/kailas-cloud/searchfront/internal/domain/view"
	healthuc "github.com/kailas-cloud/searchfront/internal/usecase/health"
)

// --- viewUseCase mock ---

type mockViewUC struct {
	openFn      func(ctx context.Context) (string, error)
	searchFn    func(ctx context.Context, id string, req request.Request) error
	cancelFn    func(ctx context.Context, id string) error
	snapshotFn  func(ctx context.Context, id string) (domview.Snapshot, error)
	resultsFn   func(ctx context.Context, id, name string, page, pageSize int) (domview.Snapshot, []domview.Page, error)
	subscribeFn func(ctx context.Context, id string) (<-chan domview.Snapshot, func(), error)
	closeFn     func(ctx context.Context, id string) error
}

func (m *mockViewUC) Open(ctx context.Context) (string, error) {
	return m.openFn(ctx)
}

func (m *mockViewUC) Search(ctx context.Context, id string, req request.Request) error {
	return m.searchFn(ctx, id, req)
}

func (m *mockViewUC) Cancel(ctx context.Context, id string) error {
	return m.cancelFn(ctx, id)
}

func (m *mockViewUC) Snapshot(ctx context.Context, id string) (domview.Snapshot, error) {
	return m.snapshotFn(ctx, id)
}

func (m *mockViewUC) Results(
	ctx context.Context, id, name string, page, pageSize int,
) (domview.Snapshot, []domview.Page, error) {
	return m.resultsFn(ctx, id, name, page, pageSize)
}

func (m *mockViewUC) Subscribe(ctx context.Context, id string) (<-chan domview.Snapshot, func(), error) {
	return m.subscribeFn(ctx, id)
}

func (m *mockViewUC) Close(ctx context.Context, id string) error {
	return m.closeFn(ctx, id)
}

// --- healthUseCase mock ---

type mockHealthUC struct {
	report healthuc.Report
}

func (m *mockHealthUC) Check(context.Context) healthuc.Report { return m.report }

// --- upstream fakes ---

// fakeBackend answers immediately with a per-source total of aliyun links.
type fakeBackend struct {
	totals map[source.Source]int
	calls  atomic.Int32
}

func (b *fakeBackend) Query(ctx context.Context, req request.Request) (response.Response, error) {
	b.calls.Add(1)
	if err := ctx.Err(); err != nil {
		return response.Response{}, err
	}
	total := b.totals[req.Source()]
	items := make([]category.Item, total)
	for i := range items {
		items[i] = category.Item{URL: "https://drive/" + string(req.Source()), Password: "pw"}
	}
	return response.New(&total, []string{"aliyun"}, map[string][]category.Item{"aliyun": items}), nil
}

type fakeChecker struct{ err error }

func (f *fakeChecker) HealthCheck(context.Context) error { return f.err }

// failingBackend rejects every query the way an upstream 502 does.
type failingBackend struct {
	calls atomic.Int32
}

func (b *failingBackend) Query(context.Context, request.Request) (response.Response, error) {
	b.calls.Add(1)
	return response.Response{}, domain.NewBackendStatus(502, "bad gateway")
}

// recordHandler is a slog.Handler that keeps every record with the
// attributes it was derived with.
type recordHandler struct {
	mu    *sync.Mutex
	recs  *[]slog.Record
	attrs []slog.Attr
}

func newRecordHandler() *recordHandler {
	return &recordHandler{mu: &sync.Mutex{}, recs: &[]slog.Record{}}
}

func (h *recordHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *recordHandler) Handle(_ context.Context, r slog.Record) error {
	r = r.Clone()
	r.AddAttrs(h.attrs...)
	h.mu.Lock()
	*h.recs = append(*h.recs, r)
	h.mu.Unlock()
	return nil
}

func (h *recordHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &recordHandler{mu: h.mu, recs: h.recs, attrs: append(append([]slog.Attr(nil), h.attrs...), attrs...)}
}

func (h *recordHandler) WithGroup(string) slog.Handler { return h }

func (h *recordHandler) find(msg string) (slog.Record, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, r := range *h.recs {
		if r.Message == msg {
			return r, true
		}
	}
	return slog.Record{}, false
}

func recordAttrs(r slog.Record) map[string]string {
	out := map[string]string{}
	r.Attrs(func(a slog.Attr) bool {
		out[a.Key] = a.Value.String()
		return true
	})
	return out
}
