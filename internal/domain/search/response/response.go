package response

import (
	"fmt"

	"github.com/kailas-cloud/searchfront/internal/domain"
	"github.com/kailas-cloud/searchfront/internal/domain/search/category"
)

// Response is one backend answer with its categories normalized and ordered.
type Response struct {
	total         *int
	groups        []category.Group
	hasCategories bool
}

// New builds a response from the raw backend fields. keys carries the
// category order as emitted by the backend; byKey is nil when the backend
// sent no category map.
func New(total *int, keys []string, byKey map[string][]category.Item) Response {
	r := Response{total: total, hasCategories: byKey != nil}
	if byKey != nil {
		r.groups = category.Build(keys, byKey)
	}
	return r
}

// Validate reports a malformed response.
func (r *Response) Validate() error {
	if r.total == nil {
		return fmt.Errorf("%w: total is absent", domain.ErrMalformedResponse)
	}
	if *r.total < 0 {
		return fmt.Errorf("%w: negative total %d", domain.ErrMalformedResponse, *r.total)
	}
	if !r.hasCategories {
		return fmt.Errorf("%w: merged_by_type is absent", domain.ErrMalformedResponse)
	}
	return nil
}

// Total returns the reported result count (0 when absent).
func (r *Response) Total() int {
	if r.total == nil {
		return 0
	}
	return *r.total
}

// Groups returns the ordered categories.
func (r *Response) Groups() []category.Group { return r.groups }
