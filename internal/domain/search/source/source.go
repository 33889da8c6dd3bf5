package source

// Source selects which backend search path serves a query.
type Source string

// Search source constants.
const (
	// Narrow is the fast, limited-scope path.
	Narrow Source = "narrow"
	// Broad is the slower, exhaustive path.
	Broad Source = "broad"
)

// IsValid checks if the source is one of the supported values.
func (s Source) IsValid() bool {
	return s == Narrow || s == Broad
}
