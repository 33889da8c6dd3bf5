package searchfront

import (
	"context"
	"fmt"
	"time"

	"github.com/kailas-cloud/searchfront/internal/domain/search/category"
	"github.com/kailas-cloud/searchfront/internal/domain/search/request"
	domview "github.com/kailas-cloud/searchfront/internal/domain/view"
)

// View is a handle to one search view.
type View struct {
	id  string
	svc viewUseCase
	obs *observer
}

// ID returns the view id.
func (v *View) ID() string { return v.id }

// Search starts a refinement sequence, superseding any running one. It
// returns once the sequence is scheduled; follow progress with Watch or
// Snapshot.
func (v *View) Search(ctx context.Context, keyword string, opts ...SearchOption) (err error) {
	start := time.Now()
	defer func() { v.obs.observe("view.search", start, err) }()

	var filters request.Filters
	for _, o := range opts {
		o.applySearch(&filters)
	}
	req, err := request.New(keyword, filters)
	if err != nil {
		return fmt.Errorf("search: %w: %w", ErrInvalidRequest, err)
	}
	if err := v.svc.Search(ctx, v.id, req); err != nil {
		return fmt.Errorf("search: %w", err)
	}
	return nil
}

// Cancel stops the running sequence, keeping the results shown so far.
func (v *View) Cancel(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { v.obs.observe("view.cancel", start, err) }()

	if err := v.svc.Cancel(ctx, v.id); err != nil {
		return fmt.Errorf("cancel: %w", err)
	}
	return nil
}

// Snapshot returns the view's current state.
func (v *View) Snapshot(ctx context.Context) (_ Snapshot, err error) {
	start := time.Now()
	defer func() { v.obs.observe("view.snapshot", start, err) }()

	snap, err := v.svc.Snapshot(ctx, v.id)
	if err != nil {
		return Snapshot{}, fmt.Errorf("snapshot: %w", err)
	}
	return fromInternalSnapshot(&snap), nil
}

// Page returns one page (1-based) of a category. pageSize <= 0 picks the
// default size.
func (v *View) Page(ctx context.Context, categoryName string, page, pageSize int) (_ Page, err error) {
	start := time.Now()
	defer func() { v.obs.observe("view.page", start, err) }()

	if categoryName == "" {
		return Page{}, fmt.Errorf("page: %w: category is required", ErrInvalidRequest)
	}
	_, pages, err := v.svc.Results(ctx, v.id, categoryName, page, pageSize)
	if err != nil {
		return Page{}, fmt.Errorf("page: %w", err)
	}
	if len(pages) == 0 {
		return Page{}, fmt.Errorf("page %q: %w", categoryName, ErrNotFound)
	}
	return fromInternalPage(&pages[0]), nil
}

// Watch streams the view's snapshots, starting with the current one. Slow
// readers skip intermediate versions. The channel closes when ctx is done
// or the view is closed.
func (v *View) Watch(ctx context.Context) (_ <-chan Snapshot, err error) {
	start := time.Now()
	defer func() { v.obs.observe("view.watch", start, err) }()

	in, unsubscribe, err := v.svc.Subscribe(ctx, v.id)
	if err != nil {
		return nil, fmt.Errorf("watch: %w", err)
	}

	out := make(chan Snapshot)
	go func() {
		defer close(out)
		defer unsubscribe()
		for {
			select {
			case <-ctx.Done():
				return
			case snap, ok := <-in:
				if !ok {
					return
				}
				select {
				case out <- fromInternalSnapshot(&snap):
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// Close cancels the view's sequence and forgets it.
func (v *View) Close(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { v.obs.observe("view.close", start, err) }()

	if err := v.svc.Close(ctx, v.id); err != nil {
		return fmt.Errorf("close view: %w", err)
	}
	return nil
}

// --- Converters ---

func fromInternalSnapshot(s *domview.Snapshot) Snapshot {
	cats := make([]Category, 0, len(s.Results))
	for _, g := range s.Results {
		cats = append(cats, Category{Name: g.Key, Items: fromInternalItems(g.Items)})
	}
	return Snapshot{
		ViewID:      s.ViewID,
		Version:     s.Version,
		Keyword:     s.Keyword,
		Searching:   s.Searching,
		Loading:     s.Loading,
		Updating:    s.Updating,
		UpdateCount: s.UpdateCount,
		Total:       s.Total,
		SearchTime:  time.Duration(s.SearchTimeMs) * time.Millisecond,
		Phase:       Phase(s.Phase),
		Categories:  cats,
		UpdatedAt:   s.UpdatedAt,
	}
}

func fromInternalPage(p *domview.Page) Page {
	return Page{
		Category:   p.Category,
		Page:       p.Page,
		PageSize:   p.PageSize,
		TotalItems: p.TotalItems,
		HasMore:    p.HasMore,
		Items:      fromInternalItems(p.Items),
	}
}

func fromInternalItems(items []category.Item) []Item {
	out := make([]Item, len(items))
	for i, it := range items {
		out[i] = Item{
			URL:      it.URL,
			Password: it.Password,
			Note:     it.Note,
			Datetime: it.Datetime,
			Source:   it.Source,
			Images:   it.Images,
		}
	}
	return out
}
