package chi

import (
	"time"

	domview "github.com/kailas-cloud/searchfront/internal/domain/view"
)

// OpenViewResponse is the body of POST /v1/views.
type OpenViewResponse struct {
	ID string `json:"id"`
}

// SearchAcceptedResponse is the body of POST /v1/views/{id}/search.
type SearchAcceptedResponse struct {
	ViewID  string `json:"view_id"`
	Keyword string `json:"keyword"`
}

// ViewResponse is the body of GET /v1/views/{id} and each stream message.
type ViewResponse struct {
	ID           string         `json:"id"`
	Version      uint64         `json:"version"`
	Keyword      string         `json:"keyword,omitempty"`
	Searching    bool           `json:"searching"`
	Loading      bool           `json:"loading"`
	Updating     bool           `json:"updating"`
	UpdateCount  int            `json:"update_count"`
	Total        int            `json:"total"`
	SearchTimeMs int64          `json:"search_time_ms"`
	Phase        string         `json:"phase"`
	Categories   []domview.Page `json:"categories"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func viewToResponse(snap *domview.Snapshot, pages []domview.Page) ViewResponse {
	if pages == nil {
		pages = []domview.Page{}
	}
	return ViewResponse{
		ID:           snap.ViewID,
		Version:      snap.Version,
		Keyword:      snap.Keyword,
		Searching:    snap.Searching,
		Loading:      snap.Loading,
		Updating:     snap.Updating,
		UpdateCount:  snap.UpdateCount,
		Total:        snap.Total,
		SearchTimeMs: snap.SearchTimeMs,
		Phase:        snap.Phase,
		Categories:   pages,
		UpdatedAt:    snap.UpdatedAt,
	}
}
