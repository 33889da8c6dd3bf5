package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/kailas-cloud/searchfront/internal/domain/search/category"
	"github.com/kailas-cloud/searchfront/internal/domain/search/request"
	"github.com/kailas-cloud/searchfront/internal/domain/search/response"
	"github.com/kailas-cloud/searchfront/internal/domain/search/source"
	healthuc "github.com/kailas-cloud/searchfront/internal/usecase/health"
	viewuc "github.com/kailas-cloud/searchfront/internal/usecase/view"
)

// --- Mocks ---

type fakeBackend struct {
	totals map[source.Source]int
}

func (b *fakeBackend) Query(ctx context.Context, req request.Request) (response.Response, error) {
	if err := ctx.Err(); err != nil {
		return response.Response{}, err
	}
	total := b.totals[req.Source()]
	items := make([]category.Item, total)
	for i := range items {
		items[i] = category.Item{URL: "https://drive/" + string(req.Source())}
	}
	return response.New(&total, []string{"aliyun", "baidu"}, map[string][]category.Item{
		"aliyun": items,
		"baidu":  items[:total/2],
	}), nil
}

type fakeChecker struct{ err error }

func (f *fakeChecker) HealthCheck(context.Context) error { return f.err }

// --- Helpers ---

type testEnv struct {
	views   *viewuc.Service
	checker *fakeChecker
	router  chi.Router
}

func newTestEnv(t *testing.T, maxViews int) *testEnv {
	t.Helper()
	backend := &fakeBackend{totals: map[source.Source]int{source.Narrow: 4, source.Broad: 10}}
	views := viewuc.New(backend, nil, clockwork.NewFakeClock(), zap.NewNop()).
		WithLimits(maxViews, time.Hour, time.Minute).
		WithPagination(2, 5)
	t.Cleanup(views.Shutdown)

	checker := &fakeChecker{}
	srv := NewServer(views, healthuc.New(checker, nil), zap.NewNop())
	r := chi.NewRouter()
	srv.Routes(r)
	return &testEnv{views: views, checker: checker, router: r}
}

func (e *testEnv) do(method, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, http.NoBody)
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

func (e *testEnv) open(t *testing.T) string {
	t.Helper()
	rr := e.do(http.MethodPost, "/v1/views")
	if rr.Code != http.StatusCreated {
		t.Fatalf("open view: status %d: %s", rr.Code, rr.Body)
	}
	var resp OpenViewResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return resp.ID
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return resp
}

func decodeView(t *testing.T, rr *httptest.ResponseRecorder) ViewResponse {
	t.Helper()
	var resp ViewResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode view: %v", err)
	}
	return resp
}

// eventuallyView polls GET /v1/views/{id} until cond holds.
func (e *testEnv) eventuallyView(t *testing.T, target string, cond func(ViewResponse) bool) ViewResponse {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		rr := e.do(http.MethodGet, target)
		if rr.Code != http.StatusOK {
			t.Fatalf("get view: status %d: %s", rr.Code, rr.Body)
		}
		v := decodeView(t, rr)
		if cond(v) {
			return v
		}
		if time.Now().After(deadline) {
			t.Fatalf("condition not met, last view: %+v", v)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// --- Tests ---

func TestOpenView(t *testing.T) {
	env := newTestEnv(t, 10)
	rr := env.do(http.MethodPost, "/v1/views")

	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", rr.Code)
	}
	var resp OpenViewResponse
	_ = json.NewDecoder(rr.Body).Decode(&resp)
	if resp.ID == "" {
		t.Fatal("expected view id")
	}
	if loc := rr.Header().Get("Location"); loc != "/v1/views/"+resp.ID {
		t.Errorf("Location = %q", loc)
	}
}

func TestOpenView_LimitReached(t *testing.T) {
	env := newTestEnv(t, 1)
	env.open(t)

	rr := env.do(http.MethodPost, "/v1/views")
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rr.Code)
	}
	if got := decodeError(t, rr); got.Code != CodeViewLimitReached {
		t.Errorf("code = %s, want %s", got.Code, CodeViewLimitReached)
	}
}

func TestGetView_Initial(t *testing.T) {
	env := newTestEnv(t, 10)
	id := env.open(t)

	rr := env.do(http.MethodGet, "/v1/views/"+id)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	v := decodeView(t, rr)
	if v.ID != id || v.Searching || v.Total != 0 {
		t.Errorf("unexpected initial view: %+v", v)
	}
	if v.Categories == nil {
		t.Error("categories must encode as an empty list")
	}
}

func TestGetView_NotFound(t *testing.T) {
	env := newTestEnv(t, 10)

	for _, target := range []string{
		"/v1/views/missing",
		"/v1/views/missing/stream",
	} {
		rr := env.do(http.MethodGet, target)
		if rr.Code != http.StatusNotFound {
			t.Errorf("%s: status = %d, want 404", target, rr.Code)
			continue
		}
		if got := decodeError(t, rr); got.Code != CodeViewNotFound {
			t.Errorf("%s: code = %s", target, got.Code)
		}
	}
}

func TestStartSearch_PublishesNarrowResults(t *testing.T) {
	env := newTestEnv(t, 10)
	id := env.open(t)

	rr := env.do(http.MethodPost, "/v1/views/"+id+"/search?kw=movie&cloud_types=aliyun")
	if rr.Code != http.StatusAccepted {
		t.Fatalf("status = %d: %s", rr.Code, rr.Body)
	}
	var accepted SearchAcceptedResponse
	_ = json.NewDecoder(rr.Body).Decode(&accepted)
	if accepted.ViewID != id || accepted.Keyword != "movie" {
		t.Errorf("unexpected accepted body: %+v", accepted)
	}

	v := env.eventuallyView(t, "/v1/views/"+id, func(v ViewResponse) bool { return v.Total > 0 })
	if v.Keyword != "movie" {
		t.Errorf("keyword = %q", v.Keyword)
	}
	if v.Total < 4 {
		t.Errorf("total = %d, want at least the narrow total", v.Total)
	}
	if len(v.Categories) != 2 {
		t.Fatalf("categories = %+v", v.Categories)
	}
	if v.Categories[0].Category != "baidu" || v.Categories[1].Category != "aliyun" {
		t.Errorf("categories not in priority order: %s, %s", v.Categories[0].Category, v.Categories[1].Category)
	}
	aliyun := v.Categories[1]
	if aliyun.Page != 1 || aliyun.PageSize != 2 || len(aliyun.Items) != 2 || !aliyun.HasMore {
		t.Errorf("unexpected aliyun page: %+v", aliyun)
	}
}

func TestGetView_CategoryPage(t *testing.T) {
	env := newTestEnv(t, 10)
	id := env.open(t)
	env.do(http.MethodPost, "/v1/views/"+id+"/search?kw=movie")
	env.eventuallyView(t, "/v1/views/"+id, func(v ViewResponse) bool { return v.Total > 0 })

	rr := env.do(http.MethodGet, "/v1/views/"+id+"?category=aliyun&page=2&page_size=50")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rr.Code, rr.Body)
	}
	v := decodeView(t, rr)
	if len(v.Categories) != 1 {
		t.Fatalf("categories = %+v", v.Categories)
	}
	if p := v.Categories[0]; p.Page != 2 || p.PageSize != 5 {
		t.Errorf("page size must be clamped to max: %+v", p)
	}

	rr = env.do(http.MethodGet, "/v1/views/"+id+"?category=quark")
	if rr.Code != http.StatusNotFound {
		t.Errorf("unknown category: status = %d, want 404", rr.Code)
	}
}

func TestStartSearch_Invalid(t *testing.T) {
	env := newTestEnv(t, 10)
	id := env.open(t)

	rr := env.do(http.MethodPost, "/v1/views/"+id+"/search?kw=%20")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
	got := decodeError(t, rr)
	if got.Code != CodeValidationFailed {
		t.Errorf("code = %s", got.Code)
	}
	if !strings.Contains(got.Message, "keyword") {
		t.Errorf("message should describe the input: %q", got.Message)
	}

	rr = env.do(http.MethodPost, "/v1/views/missing/search?kw=movie")
	if rr.Code != http.StatusNotFound {
		t.Errorf("unknown view: status = %d, want 404", rr.Code)
	}
}

func TestCancelSearch(t *testing.T) {
	env := newTestEnv(t, 10)
	id := env.open(t)
	env.do(http.MethodPost, "/v1/views/"+id+"/search?kw=movie")

	rr := env.do(http.MethodDelete, "/v1/views/"+id+"/search")
	if rr.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rr.Code)
	}
	env.eventuallyView(t, "/v1/views/"+id, func(v ViewResponse) bool {
		return !v.Searching && !v.Loading
	})
}

func TestCloseView(t *testing.T) {
	env := newTestEnv(t, 10)
	id := env.open(t)

	if rr := env.do(http.MethodDelete, "/v1/views/"+id); rr.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rr.Code)
	}
	if rr := env.do(http.MethodGet, "/v1/views/"+id); rr.Code != http.StatusNotFound {
		t.Errorf("closed view: status = %d, want 404", rr.Code)
	}
	if rr := env.do(http.MethodDelete, "/v1/views/"+id); rr.Code != http.StatusNotFound {
		t.Errorf("second close: status = %d, want 404", rr.Code)
	}
}

func TestHealthCheck(t *testing.T) {
	env := newTestEnv(t, 10)

	rr := env.do(http.MethodGet, "/health")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	var resp HealthResponse
	_ = json.NewDecoder(rr.Body).Decode(&resp)
	if resp.Status != string(healthuc.Healthy) || resp.Checks[healthuc.ComponentBackend] != "ok" {
		t.Errorf("unexpected health: %+v", resp)
	}

	env.checker.err = errors.New("connection refused")
	rr = env.do(http.MethodGet, "/health")
	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rr.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, 10)
	if rr := env.do(http.MethodGet, "/metrics"); rr.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rr.Code)
	}
}

func TestUnknownRoute(t *testing.T) {
	env := newTestEnv(t, 10)

	rr := env.do(http.MethodGet, "/v2/anything")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rr.Code)
	}
	if got := decodeError(t, rr); got.Code != CodeBadRequest {
		t.Errorf("code = %s", got.Code)
	}

	if rr := env.do(http.MethodPut, "/v1/views"); rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rr.Code)
	}
}
