package request

import (
	"fmt"
	"slices"
	"sort"
	"strconv"
	"strings"

	"github.com/kailas-cloud/searchfront/internal/domain/search/source"
)

// Search parameter limits.
const (
	// MaxKeywordLength is the maximum allowed keyword length in bytes.
	MaxKeywordLength = 512
	MaxConcurrency   = 64
	// DefaultResultMode asks the backend for results merged by category.
	DefaultResultMode = "merge"
)

// Filters are the user-selected narrowing options. The orchestrator copies
// them verbatim into every phase.
type Filters struct {
	Channels   []string
	Plugins    []string
	CloudTypes []string
	Conc       int
	Refresh    bool
	ResultMode string
	Ext        map[string]any
}

// Request is a validated search query.
type Request struct {
	keyword string
	filters Filters
	src     source.Source
}

// New validates and normalizes search parameters.
// Defaults: source=narrow, result mode=merge.
func New(keyword string, filters Filters) (Request, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return Request{}, fmt.Errorf("keyword is required")
	}
	if len(keyword) > MaxKeywordLength {
		return Request{}, fmt.Errorf("keyword too long (max %d bytes)", MaxKeywordLength)
	}
	if filters.Conc < 0 {
		return Request{}, fmt.Errorf("conc must not be negative")
	}
	if filters.Conc > MaxConcurrency {
		filters.Conc = MaxConcurrency
	}
	if filters.ResultMode == "" {
		filters.ResultMode = DefaultResultMode
	}
	filters.Channels = compact(filters.Channels)
	filters.Plugins = compact(filters.Plugins)
	filters.CloudTypes = compact(filters.CloudTypes)

	return Request{keyword: keyword, filters: filters, src: source.Narrow}, nil
}

// WithSource returns a copy of the request aimed at the given source.
func (r Request) WithSource(s source.Source) Request {
	r.src = s
	return r
}

// Keyword returns the search keyword.
func (r Request) Keyword() string { return r.keyword }

// Filters returns the narrowing options.
func (r Request) Filters() Filters { return r.filters }

// Source returns the backend source selector.
func (r Request) Source() source.Source { return r.src }

// Key returns a stable identity for the request including its source.
// Two requests with equal keys produce the same backend call.
func (r Request) Key() string {
	var b strings.Builder
	b.WriteString(string(r.src))
	b.WriteByte('|')
	b.WriteString(r.keyword)
	writeList(&b, "ch", r.filters.Channels)
	writeList(&b, "pl", r.filters.Plugins)
	writeList(&b, "ct", r.filters.CloudTypes)
	b.WriteString("|conc=")
	b.WriteString(strconv.Itoa(r.filters.Conc))
	b.WriteString("|refresh=")
	b.WriteString(strconv.FormatBool(r.filters.Refresh))
	b.WriteString("|res=")
	b.WriteString(r.filters.ResultMode)
	if len(r.filters.Ext) > 0 {
		keys := make([]string, 0, len(r.filters.Ext))
		for k := range r.filters.Ext {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "|ext.%s=%v", k, r.filters.Ext[k])
		}
	}
	return b.String()
}

func writeList(b *strings.Builder, name string, items []string) {
	if len(items) == 0 {
		return
	}
	sorted := slices.Clone(items)
	sort.Strings(sorted)
	b.WriteByte('|')
	b.WriteString(name)
	b.WriteByte('=')
	b.WriteString(strings.Join(sorted, ","))
}

// compact trims entries and drops empties and duplicates, keeping first occurrence order.
func compact(items []string) []string {
	if len(items) == 0 {
		return nil
	}
	out := make([]string, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, it := range items {
		it = strings.TrimSpace(it)
		if it == "" {
			continue
		}
		if _, ok := seen[it]; ok {
			continue
		}
		seen[it] = struct{}{}
		out = append(out, it)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
