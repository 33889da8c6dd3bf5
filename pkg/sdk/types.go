package searchfront

import "time"

// Phase names a step of the refinement sequence.
type Phase string

// Phase constants.
const (
	PhaseIdle    Phase = "idle"
	PhasePrimary Phase = "primary"
	PhaseBroad1  Phase = "broad-1"
	PhaseBroad2  Phase = "broad-2"
	PhaseBroad3  Phase = "broad-3"
	PhaseDone    Phase = "done"
)

// Item is one link in a category.
type Item struct {
	URL      string
	Password string
	Note     string
	Datetime string
	Source   string
	Images   []string
}

// Category is a drive type with its links, in display order.
type Category struct {
	Name  string
	Items []Item
}

// Snapshot is a point-in-time copy of a view. Version grows by one on
// every published change.
type Snapshot struct {
	ViewID      string
	Version     uint64
	Keyword     string
	Searching   bool
	Loading     bool
	Updating    bool
	UpdateCount int
	Total       int
	SearchTime  time.Duration
	Phase       Phase
	Categories  []Category
	UpdatedAt   time.Time
}

// Page is one slice of a category's items.
type Page struct {
	Category   string
	Page       int
	PageSize   int
	TotalItems int
	HasMore    bool
	Items      []Item
}

// HealthStatus represents the aggregated system health.
type HealthStatus struct {
	Status string            // "ok", "degraded", "error"
	Checks map[string]string // component → "ok"/"error"
}
