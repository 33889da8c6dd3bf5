package searchfront

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/kailas-cloud/searchfront/internal/domain/search/category"
	"github.com/kailas-cloud/searchfront/internal/domain/search/request"
	domview "github.com/kailas-cloud/searchfront/internal/domain/view"
)

func TestView_Search_PassesFilters(t *testing.T) {
	var got request.Request
	mock := &mockViewUC{
		searchFn: func(_ context.Context, id string, req request.Request) error {
			if id != "v1" {
				t.Errorf("id = %q, want v1", id)
			}
			got = req
			return nil
		},
	}

	v := &View{id: "v1", svc: mock}
	err := v.Search(context.Background(), " movie ",
		WithChannels("c1", "c2"),
		WithPlugins("p1"),
		WithCloudTypes("aliyun"),
		WithConcurrency(4),
		WithRefresh(),
		WithExt(map[string]any{"title_en": "Movie"}),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got.Keyword() != "movie" {
		t.Errorf("keyword = %q", got.Keyword())
	}
	f := got.Filters()
	if !slices.Equal(f.Channels, []string{"c1", "c2"}) || !slices.Equal(f.Plugins, []string{"p1"}) {
		t.Errorf("lists = %v / %v", f.Channels, f.Plugins)
	}
	if !slices.Equal(f.CloudTypes, []string{"aliyun"}) {
		t.Errorf("cloud types = %v", f.CloudTypes)
	}
	if f.Conc != 4 || !f.Refresh || f.Ext["title_en"] != "Movie" {
		t.Errorf("unexpected filters: %+v", f)
	}
}

func TestView_Search_InvalidKeyword(t *testing.T) {
	v := &View{id: "v1", svc: &mockViewUC{}}
	err := v.Search(context.Background(), "   ")
	if !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
}

func TestView_Search_Error(t *testing.T) {
	mock := &mockViewUC{
		searchFn: func(context.Context, string, request.Request) error {
			return ErrNotFound
		},
	}
	v := &View{id: "gone", svc: mock}
	if err := v.Search(context.Background(), "movie"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestView_Snapshot(t *testing.T) {
	mock := &mockViewUC{
		snapshotFn: func(context.Context, string) (domview.Snapshot, error) {
			return domview.Snapshot{
				ViewID:       "v1",
				Version:      7,
				Total:        3,
				SearchTimeMs: 1500,
				Phase:        "broad-1",
				Results: []category.Group{
					{Key: "baidu", Items: []category.Item{{URL: "https://pan.baidu.com/s/1", Password: "abcd"}}},
				},
			}, nil
		},
	}

	v := &View{id: "v1", svc: mock}
	snap, err := v.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.Version != 7 || snap.Total != 3 || snap.Phase != PhaseBroad1 {
		t.Errorf("unexpected snapshot: %+v", snap)
	}
	if snap.SearchTime != 1500*time.Millisecond {
		t.Errorf("SearchTime = %v", snap.SearchTime)
	}
	if len(snap.Categories) != 1 || snap.Categories[0].Name != "baidu" {
		t.Fatalf("categories = %+v", snap.Categories)
	}
	if snap.Categories[0].Items[0].Password != "abcd" {
		t.Errorf("items not converted: %+v", snap.Categories[0].Items)
	}
}

func TestView_Page(t *testing.T) {
	mock := &mockViewUC{
		resultsFn: func(_ context.Context, _, name string, page, pageSize int) (domview.Snapshot, []domview.Page, error) {
			if name != "aliyun" || page != 2 || pageSize != 10 {
				t.Errorf("unexpected args: %q %d %d", name, page, pageSize)
			}
			return domview.Snapshot{}, []domview.Page{{
				Category: "aliyun", Page: 2, PageSize: 10, TotalItems: 25, HasMore: true,
				Items: []category.Item{{URL: "https://a"}},
			}}, nil
		},
	}

	v := &View{id: "v1", svc: mock}
	p, err := v.Page(context.Background(), "aliyun", 2, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.TotalItems != 25 || !p.HasMore || len(p.Items) != 1 {
		t.Errorf("unexpected page: %+v", p)
	}
}

func TestView_Page_RequiresCategory(t *testing.T) {
	v := &View{id: "v1", svc: &mockViewUC{}}
	if _, err := v.Page(context.Background(), "", 1, 10); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
}

func TestView_Watch_StopsOnContext(t *testing.T) {
	in := make(chan domview.Snapshot, 1)
	in <- domview.Snapshot{ViewID: "v1", Version: 1}
	unsubscribed := make(chan struct{})
	mock := &mockViewUC{
		subscribeFn: func(context.Context, string) (<-chan domview.Snapshot, func(), error) {
			return in, func() { close(unsubscribed) }, nil
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	v := &View{id: "v1", svc: mock}
	out, err := v.Watch(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	first := <-out
	if first.Version != 1 {
		t.Errorf("Version = %d, want 1", first.Version)
	}

	cancel()
	select {
	case <-unsubscribed:
	case <-time.After(time.Second):
		t.Fatal("watch did not unsubscribe after cancel")
	}
	if _, ok := <-out; ok {
		t.Error("expected closed channel")
	}
}

func TestView_Watch_EndsWithView(t *testing.T) {
	in := make(chan domview.Snapshot)
	mock := &mockViewUC{
		subscribeFn: func(context.Context, string) (<-chan domview.Snapshot, func(), error) {
			return in, func() {}, nil
		},
	}

	v := &View{id: "v1", svc: mock}
	out, err := v.Watch(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	close(in)

	select {
	case _, ok := <-out:
		if ok {
			t.Error("expected closed channel")
		}
	case <-time.After(time.Second):
		t.Fatal("watch did not end with the view")
	}
}

func TestView_Close(t *testing.T) {
	closed := ""
	mock := &mockViewUC{
		closeFn: func(_ context.Context, id string) error {
			closed = id
			return nil
		},
	}

	v := &View{id: "v1", svc: mock}
	if err := v.Close(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if closed != "v1" {
		t.Errorf("closed = %q, want v1", closed)
	}
}
