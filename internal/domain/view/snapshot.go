// Package view holds the externally visible state of a search view.
package view

import (
	"fmt"
	"time"

	"github.com/kailas-cloud/searchfront/internal/domain"
	"github.com/kailas-cloud/searchfront/internal/domain/search/category"
)

// Snapshot is a point-in-time copy of a view's search state. Version grows
// by one on every published change.
type Snapshot struct {
	ViewID       string           `json:"view_id"`
	Version      uint64           `json:"version"`
	Keyword      string           `json:"keyword,omitempty"`
	Searching    bool             `json:"searching"`
	Loading      bool             `json:"loading"`
	Updating     bool             `json:"updating"`
	UpdateCount  int              `json:"update_count"`
	Total        int              `json:"total"`
	SearchTimeMs int64            `json:"search_time_ms"`
	Phase        string           `json:"phase"`
	Results      []category.Group `json:"results"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

// Page is one slice of a category's items.
type Page struct {
	Category   string          `json:"category"`
	Page       int             `json:"page"`
	PageSize   int             `json:"page_size"`
	TotalItems int             `json:"total_items"`
	HasMore    bool            `json:"has_more"`
	Items      []category.Item `json:"items"`
}

// Page returns page (1-based) of the named category. The name is normalized
// the same way backend keys are, so "115" finds "pan115".
func (s *Snapshot) Page(name string, page, pageSize int) (Page, error) {
	key := category.Normalize(name)
	for _, g := range s.Results {
		if g.Key == key {
			return paginate(g, page, pageSize), nil
		}
	}
	return Page{}, fmt.Errorf("category %q: %w", name, domain.ErrNotFound)
}

// FirstPages returns page 1 of every category in display order.
func (s *Snapshot) FirstPages(pageSize int) []Page {
	pages := make([]Page, 0, len(s.Results))
	for _, g := range s.Results {
		pages = append(pages, paginate(g, 1, pageSize))
	}
	return pages
}

func paginate(g category.Group, page, pageSize int) Page {
	page = max(page, 1)
	pageSize = max(pageSize, 1)

	total := len(g.Items)
	pages := total / pageSize
	if total%pageSize != 0 {
		pages++
	}
	// Compare page counts first so huge page numbers cannot overflow the offset.
	start := total
	if page-1 < pages {
		start = (page - 1) * pageSize
	}
	end := start + min(pageSize, total-start)

	return Page{
		Category:   g.Key,
		Page:       page,
		PageSize:   pageSize,
		TotalItems: total,
		HasMore:    end < total,
		Items:      g.Items[start:end:end],
	}
}
