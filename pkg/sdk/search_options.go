package searchfront

import "github.com/kailas-cloud/searchfront/internal/domain/search/request"

// SearchOption narrows a search.
type SearchOption interface {
	applySearch(*request.Filters)
}

// searchOptionFunc adapts a function to the SearchOption interface.
type searchOptionFunc func(*request.Filters)

func (f searchOptionFunc) applySearch(r *request.Filters) { f(r) }

// WithChannels restricts the narrow source to the given channels.
func WithChannels(channels ...string) SearchOption {
	return searchOptionFunc(func(f *request.Filters) {
		f.Channels = append(f.Channels, channels...)
	})
}

// WithPlugins restricts the broad source to the given plugins.
func WithPlugins(plugins ...string) SearchOption {
	return searchOptionFunc(func(f *request.Filters) {
		f.Plugins = append(f.Plugins, plugins...)
	})
}

// WithCloudTypes keeps only the given drive types, e.g. "aliyun", "115".
func WithCloudTypes(types ...string) SearchOption {
	return searchOptionFunc(func(f *request.Filters) {
		f.CloudTypes = append(f.CloudTypes, types...)
	})
}

// WithConcurrency sets the upstream fan-out hint.
func WithConcurrency(n int) SearchOption {
	return searchOptionFunc(func(f *request.Filters) {
		f.Conc = n
	})
}

// WithRefresh asks the upstream to bypass its cache.
func WithRefresh() SearchOption {
	return searchOptionFunc(func(f *request.Filters) {
		f.Refresh = true
	})
}

// WithExt forwards plugin-specific parameters verbatim.
func WithExt(ext map[string]any) SearchOption {
	return searchOptionFunc(func(f *request.Filters) {
		f.Ext = ext
	})
}
