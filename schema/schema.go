package schema

import (
	"fmt"
	"slices"
)

// ============================================================================
// SCHEMA — Column classes of an arbitrary table
// ============================================================================
// The general dashboard knows nothing about its input ahead of time. Every
// column is tagged with exactly one Class by Classify; rendering code reads
// the tags and never inspects cell types itself.
// ============================================================================

// Class is the role a column plays in the general dashboard.
type Class int

const (
	Categorical Class = iota
	Numeric
	Datetime
)

func (c Class) String() string {
	switch c {
	case Numeric:
		return "numeric"
	case Categorical:
		return "categorical"
	case Datetime:
		return "datetime"
	default:
		return fmt.Sprintf("class(%d)", int(c))
	}
}

// MarshalText renders the class by name in JSON payloads.
func (c Class) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// Classification partitions the columns of a table. Each list keeps table
// order; every column appears in exactly one list.
type Classification struct {
	Numeric     []string `json:"numeric"`
	Categorical []string `json:"categorical"`
	Datetime    []string `json:"datetime"`

	// Layouts holds the time layout chosen for every datetime column that
	// was parsed from text.
	Layouts map[string]string `json:"layouts,omitempty"`
}

// ClassOf returns the class of the named column.
func (c Classification) ClassOf(name string) (Class, bool) {
	switch {
	case slices.Contains(c.Numeric, name):
		return Numeric, true
	case slices.Contains(c.Categorical, name):
		return Categorical, true
	case slices.Contains(c.Datetime, name):
		return Datetime, true
	}
	return 0, false
}

// Len returns the number of classified columns.
func (c Classification) Len() int {
	return len(c.Numeric) + len(c.Categorical) + len(c.Datetime)
}

func (c *Classification) add(name string, class Class) {
	switch class {
	case Numeric:
		c.Numeric = append(c.Numeric, name)
	case Datetime:
		c.Datetime = append(c.Datetime, name)
	default:
		c.Categorical = append(c.Categorical, name)
	}
}

// Profile is the per-column metadata shown next to the general dashboard.
type Profile struct {
	Name            string   `json:"name"`
	DisplayName     string   `json:"displayName"`
	Class           Class    `json:"class"`
	Kind            string   `json:"kind"`
	Layout          string   `json:"layout,omitempty"`
	SampleValues    []string `json:"sampleValues"`
	NullCount       int      `json:"nullCount"`
	UniqueCount     int      `json:"uniqueCount"`
	CardinalityHint string   `json:"cardinalityHint"` // "low", "medium", "high"
}
