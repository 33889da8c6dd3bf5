package chi

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/oapi-codegen/runtime"

	"github.com/kailas-cloud/searchfront/internal/domain"
	"github.com/kailas-cloud/searchfront/internal/domain/search/request"
)

// searchParams mirrors the query string of POST /v1/views/{id}/search.
// Optional parameters are pointers, as the binder expects.
type searchParams struct {
	Keyword    string
	Channels   *[]string
	Plugins    *[]string
	CloudTypes *[]string
	Conc       *int
	Refresh    *bool
	ResultMode *string
	Ext        *string
}

// resultParams mirrors the query string of GET /v1/views/{id}.
type resultParams struct {
	Category *string
	Page     *int
	PageSize *int
}

type queryBinding struct {
	name     string
	required bool
	dest     any
}

func bindQuery(q url.Values, bindings []queryBinding) error {
	for _, b := range bindings {
		if err := runtime.BindQueryParameter("form", true, b.required, b.name, q, b.dest); err != nil {
			return fmt.Errorf("%w: %w", domain.ErrInvalidRequest, err)
		}
	}
	return nil
}

// parseSearchRequest builds a request from the query string. List filters
// accept both repeated keys and comma-separated values.
func parseSearchRequest(q url.Values) (request.Request, error) {
	var p searchParams
	err := bindQuery(q, []queryBinding{
		{"kw", true, &p.Keyword},
		{"channels", false, &p.Channels},
		{"plugins", false, &p.Plugins},
		{"cloud_types", false, &p.CloudTypes},
		{"conc", false, &p.Conc},
		{"refresh", false, &p.Refresh},
		{"res", false, &p.ResultMode},
		{"ext", false, &p.Ext},
	})
	if err != nil {
		return request.Request{}, err
	}

	filters := request.Filters{
		Channels:   splitList(p.Channels),
		Plugins:    splitList(p.Plugins),
		CloudTypes: splitList(p.CloudTypes),
	}
	if p.Conc != nil {
		filters.Conc = *p.Conc
	}
	if p.Refresh != nil {
		filters.Refresh = *p.Refresh
	}
	if p.ResultMode != nil {
		filters.ResultMode = *p.ResultMode
	}
	if p.Ext != nil && strings.TrimSpace(*p.Ext) != "" {
		if err := json.Unmarshal([]byte(*p.Ext), &filters.Ext); err != nil {
			return request.Request{}, fmt.Errorf("%w: ext must be a JSON object: %w", domain.ErrInvalidRequest, err)
		}
	}

	req, err := request.New(p.Keyword, filters)
	if err != nil {
		return request.Request{}, fmt.Errorf("%w: %w", domain.ErrInvalidRequest, err)
	}
	return req, nil
}

func parseResultParams(q url.Values) (category string, page, pageSize int, err error) {
	var p resultParams
	err = bindQuery(q, []queryBinding{
		{"category", false, &p.Category},
		{"page", false, &p.Page},
		{"page_size", false, &p.PageSize},
	})
	if err != nil {
		return "", 0, 0, err
	}
	if p.Category != nil {
		category = strings.TrimSpace(*p.Category)
	}
	page = 1
	if p.Page != nil {
		if *p.Page < 1 {
			return "", 0, 0, fmt.Errorf("%w: page must be at least 1", domain.ErrInvalidRequest)
		}
		page = *p.Page
	}
	if p.PageSize != nil {
		if *p.PageSize < 1 {
			return "", 0, 0, fmt.Errorf("%w: page_size must be at least 1", domain.ErrInvalidRequest)
		}
		pageSize = *p.PageSize
	}
	return category, page, pageSize, nil
}

func splitList(values *[]string) []string {
	if values == nil {
		return nil
	}
	var out []string
	for _, v := range *values {
		out = append(out, strings.Split(v, ",")...)
	}
	return out
}
