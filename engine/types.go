package engine

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spektr-org/lens/table"
)

// ============================================================================
// ENGINE TYPES — Filters, metrics and render-ready output
// ============================================================================
// Every operation takes a *table.Table and returns fresh values. Nothing in
// this package keeps state between calls.
// ============================================================================

// ============================================================================
// FILTERS
// ============================================================================

// Filters define which rows to include.
// Dimensions: column → accepted values (OR within a column).
// Ranges: datetime column → closed calendar-day interval.
// Constraints AND-combine across columns. An empty selection is no
// restriction.
type Filters struct {
	Dimensions map[string][]string  `json:"dimensions,omitempty"`
	Ranges     map[string]DateRange `json:"ranges,omitempty"`
}

// HasFilter returns true if a constraint is set on the column.
func (f Filters) HasFilter(column string) bool {
	if vals, ok := f.Dimensions[column]; ok && len(vals) > 0 {
		return true
	}
	if r, ok := f.Ranges[column]; ok && !r.IsZero() {
		return true
	}
	return false
}

// IsEmpty returns true if no constraint is set.
func (f Filters) IsEmpty() bool {
	for _, vals := range f.Dimensions {
		if len(vals) > 0 {
			return false
		}
	}
	for _, r := range f.Ranges {
		if !r.IsZero() {
			return false
		}
	}
	return true
}

// DateRange is a closed interval of calendar days. A zero Start or End
// leaves that side open.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// IsZero reports whether the range imposes no constraint.
func (r DateRange) IsZero() bool { return r.Start.IsZero() && r.End.IsZero() }

// Contains reports whether t falls on a day inside the range. Days are
// compared in the location of each time.
func (r DateRange) Contains(t time.Time) bool {
	d := dayNumber(t)
	if !r.Start.IsZero() && d < dayNumber(r.Start) {
		return false
	}
	if !r.End.IsZero() && d > dayNumber(r.End) {
		return false
	}
	return true
}

func dayNumber(t time.Time) int {
	y, m, d := t.Date()
	return y*10000 + int(m)*100 + d
}

type dateRangeJSON struct {
	Start string `json:"start,omitempty"`
	End   string `json:"end,omitempty"`
}

// MarshalJSON writes both ends as YYYY-MM-DD.
func (r DateRange) MarshalJSON() ([]byte, error) {
	var out dateRangeJSON
	if !r.Start.IsZero() {
		out.Start = r.Start.Format(time.DateOnly)
	}
	if !r.End.IsZero() {
		out.End = r.End.Format(time.DateOnly)
	}
	return json.Marshal(out)
}

// UnmarshalJSON accepts YYYY-MM-DD or RFC 3339 for either end.
func (r *DateRange) UnmarshalJSON(b []byte) error {
	var in dateRangeJSON
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	parsed, err := ParseDateRange(in.Start, in.End)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// ParseDateRange builds a range from two YYYY-MM-DD (or RFC 3339) bounds.
// An empty bound leaves that side open.
func ParseDateRange(start, end string) (DateRange, error) {
	s, err := ParseDay(start)
	if err != nil {
		return DateRange{}, fmt.Errorf("start: %w", err)
	}
	e, err := ParseDay(end)
	if err != nil {
		return DateRange{}, fmt.Errorf("end: %w", err)
	}
	return DateRange{Start: s, End: e}, nil
}

// ParseDay parses one range bound; "" is the zero time.
func ParseDay(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

// ============================================================================
// METRICS
// ============================================================================
// Averages, ratios and modes of an empty input are reported as unavailable
// rather than as zero.

// Metric is a numeric KPI that may be unavailable.
type Metric struct {
	Value     float64 `json:"value"`
	Available bool    `json:"available"`
}

// Some returns an available metric.
func Some(v float64) Metric { return Metric{Value: v, Available: true} }

// Unavailable is the metric of an empty input.
var Unavailable = Metric{}

// Format renders the metric with fn, or "unavailable".
func (m Metric) Format(fn func(float64) string) string {
	if !m.Available {
		return "unavailable"
	}
	return fn(m.Value)
}

// TextMetric is a text KPI (a mode) that may be unavailable.
type TextMetric struct {
	Value     string `json:"value"`
	Available bool   `json:"available"`
}

// Matrix is a square matrix of metrics over named columns, e.g. pairwise
// correlations.
type Matrix struct {
	Columns []string   `json:"columns"`
	Values  [][]Metric `json:"values"`
}

// ============================================================================
// GROUP — Intermediate computation result
// ============================================================================

// Group represents a grouped/aggregated result.
// Builders convert these into ChartConfig or TableData.
type Group struct {
	Key   table.Value `json:"-"`
	Label string      `json:"label"`
	Value float64     `json:"value"`
	Count int         `json:"count"`
}

// ============================================================================
// QUERY / RESULT — Ad-hoc grouped queries
// ============================================================================

// Query defines one ad-hoc aggregation over a table.
type Query struct {
	Filters     Filters `json:"filters"`
	GroupBy     string  `json:"groupBy,omitempty"`
	Measure     string  `json:"measure,omitempty"`
	Aggregation string  `json:"aggregation" validate:"omitempty,oneof=sum mean count min max"`
	SortBy      string  `json:"sortBy,omitempty" validate:"omitempty,oneof=key_asc key_desc value_asc value_desc"`
	Limit       int     `json:"limit,omitempty" validate:"gte=0"`
	Visualize   string  `json:"visualize,omitempty" validate:"omitempty,oneof=bar line pie table text"`
	Title       string  `json:"title,omitempty"`
}

// Result is the engine's render-ready output for a Query.
type Result struct {
	Type  string `json:"type"` // "chart", "table", "text"
	Title string `json:"title"`
	Reply string `json:"reply"`
	Rows  int    `json:"rows"`
	Empty bool   `json:"empty"`

	// Exactly one of these is populated based on Type:
	ChartConfig *ChartConfig `json:"chartConfig,omitempty"`
	TableData   *TableData   `json:"tableData,omitempty"`
	Data        *TextData    `json:"data,omitempty"`
}

// TextData is the answer to a query without grouping.
type TextData struct {
	Value    string  `json:"value"`
	RawValue float64 `json:"rawValue"`
	Unit     string  `json:"unit,omitempty"`
	Count    int     `json:"count"`
}

// ============================================================================
// CHART TYPES
// ============================================================================

// ChartConfig defines how to render a chart.
type ChartConfig struct {
	ChartType  string        `json:"chartType"` // "bar", "line", "pie", "heatmap"
	Title      string        `json:"title"`
	XAxis      string        `json:"xAxis,omitempty"`
	YAxis      string        `json:"yAxis,omitempty"`
	Series     []ChartSeries `json:"series"`
	Colors     []string      `json:"colors,omitempty"`
	ShowLegend bool          `json:"showLegend"`
	ShowGrid   bool          `json:"showGrid"`
}

// ChartSeries represents a data series in a chart.
type ChartSeries struct {
	Name  string       `json:"name"`
	Data  []ChartPoint `json:"data"`
	Color string       `json:"color,omitempty"`
}

// ChartPoint represents a single data point.
type ChartPoint struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
}

// ============================================================================
// TABLE TYPES
// ============================================================================

// TableData defines how to render a table.
type TableData struct {
	Title   string     `json:"title"`
	Columns []Column   `json:"columns"`
	Rows    [][]string `json:"rows"`
	Summary *Summary   `json:"summary,omitempty"`
}

// Column defines a table column.
type Column struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Type  string `json:"type"`  // "text", "number", "datetime"
	Align string `json:"align"` // "left", "center", "right"
}

// Summary provides totals or aggregations for a table.
type Summary struct {
	Label  string            `json:"label"`
	Values map[string]string `json:"values"`
}
