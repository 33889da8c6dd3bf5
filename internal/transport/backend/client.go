package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/searchfront/internal/domain"
	"github.com/kailas-cloud/searchfront/internal/domain/search/category"
	"github.com/kailas-cloud/searchfront/internal/domain/search/request"
	"github.com/kailas-cloud/searchfront/internal/domain/search/response"
	"github.com/kailas-cloud/searchfront/internal/domain/search/source"
)

// maxErrorBody caps how much of a failed response is kept for the error message.
const maxErrorBody = 512

// Client queries the upstream search API over HTTP.
type Client struct {
	http       *http.Client
	searchURL  string
	healthURL  string
	token      string
	sourceName map[source.Source]string
	logger     *zap.Logger
}

// Config holds the upstream search API settings.
type Config struct {
	BaseURL      string
	SearchPath   string
	HealthPath   string
	Token        string
	Timeout      time.Duration
	NarrowSource string
	BroadSource  string
	Logger       *zap.Logger
}

// NewClient creates an upstream search client.
func NewClient(cfg *Config) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("backend base url is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		http:      &http.Client{Timeout: timeout},
		searchURL: base + cfg.SearchPath,
		healthURL: base + cfg.HealthPath,
		token:     cfg.Token,
		sourceName: map[source.Source]string{
			source.Narrow: cfg.NarrowSource,
			source.Broad:  cfg.BroadSource,
		},
		logger: logger,
	}, nil
}

// searchBody is the upstream request payload.
type searchBody struct {
	Keyword    string         `json:"kw"`
	Channels   []string       `json:"channels,omitempty"`
	Plugins    []string       `json:"plugins,omitempty"`
	CloudTypes []string       `json:"cloud_types,omitempty"`
	Conc       int            `json:"conc,omitempty"`
	Refresh    bool           `json:"refresh,omitempty"`
	ResultMode string         `json:"res,omitempty"`
	Source     string         `json:"src"`
	Ext        map[string]any `json:"ext,omitempty"`
}

// payload is the result part of an upstream answer. MergedByType stays raw
// so category order survives decoding.
type payload struct {
	Total        *int            `json:"total"`
	MergedByType json.RawMessage `json:"merged_by_type"`
}

// envelope covers both the wrapped {code, message, data} form and a bare payload.
type envelope struct {
	Code    *int            `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	payload
}

// Query implements search.Backend.
func (c *Client) Query(ctx context.Context, req request.Request) (response.Response, error) {
	f := req.Filters()
	body, err := json.Marshal(searchBody{
		Keyword:    req.Keyword(),
		Channels:   f.Channels,
		Plugins:    f.Plugins,
		CloudTypes: f.CloudTypes,
		Conc:       f.Conc,
		Refresh:    f.Refresh,
		ResultMode: f.ResultMode,
		Source:     c.sourceName[req.Source()],
		Ext:        f.Ext,
	})
	if err != nil {
		return response.Response{}, fmt.Errorf("encode search request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.searchURL, bytes.NewReader(body))
	if err != nil {
		return response.Response{}, fmt.Errorf("create search request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if c.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return response.Response{}, fmt.Errorf("%w: %w", domain.ErrNetworkFailure, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		c.logger.Debug("Backend returned error status",
			zap.Int("status", resp.StatusCode),
			zap.String("source", string(req.Source())),
		)
		return response.Response{}, domain.NewBackendStatus(resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return response.Response{}, fmt.Errorf("%w: read body: %w", domain.ErrNetworkFailure, err)
	}
	return decode(raw)
}

// HealthCheck verifies the upstream API answers on its health path.
func (c *Client) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.healthURL, http.NoBody)
	if err != nil {
		return fmt.Errorf("create health request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("backend health: %w", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("backend health: status %d", resp.StatusCode)
	}
	return nil
}

// decode parses an upstream answer. A non-zero envelope code is a rejected
// request; anything that does not parse is malformed.
func decode(raw []byte) (response.Response, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return response.Response{}, fmt.Errorf("%w: decode: %v", domain.ErrMalformedResponse, err)
	}
	if env.Code != nil && *env.Code != 0 {
		return response.Response{}, domain.NewBackendStatus(http.StatusOK, fmt.Sprintf("code %d: %s", *env.Code, env.Message))
	}

	p := env.payload
	if len(env.Data) > 0 && !isNull(env.Data) {
		p = payload{}
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return response.Response{}, fmt.Errorf("%w: decode data: %v", domain.ErrMalformedResponse, err)
		}
	}

	keys, byKey, err := decodeOrdered(p.MergedByType)
	if err != nil {
		return response.Response{}, fmt.Errorf("%w: merged_by_type: %v", domain.ErrMalformedResponse, err)
	}
	return response.New(p.Total, keys, byKey), nil
}

// decodeOrdered reads a JSON object of item lists and returns its keys in
// document order. Absent or null input yields a nil map.
func decodeOrdered(raw json.RawMessage) ([]string, map[string][]category.Item, error) {
	if len(raw) == 0 || isNull(raw) {
		return nil, nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return nil, nil, err //nolint:wrapcheck // wrapped by decode
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, nil, errors.New("expected object")
	}

	keys := make([]string, 0, 8)
	byKey := make(map[string][]category.Item, 8)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, nil, err //nolint:wrapcheck // wrapped by decode
		}
		key, ok := tok.(string)
		if !ok {
			return nil, nil, fmt.Errorf("unexpected token %v", tok)
		}
		var items []category.Item
		if err := dec.Decode(&items); err != nil {
			return nil, nil, fmt.Errorf("category %q: %w", key, err)
		}
		if _, dup := byKey[key]; !dup {
			keys = append(keys, key)
		}
		byKey[key] = items
	}
	return keys, byKey, nil
}

func isNull(raw json.RawMessage) bool {
	return string(bytes.TrimSpace(raw)) == "null"
}
