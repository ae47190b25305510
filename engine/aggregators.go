package engine

import (
	"fmt"
	"math"
	"slices"
	"sort"

	"github.com/spektr-org/lens/schema"
	"github.com/spektr-org/lens/table"
)

// ============================================================================
// AGGREGATORS — Grouping, Aggregation, and Sorting over a table
// ============================================================================
// Groups come back ordered ascending by key (chronological for time keys).
// Null keys form no group; null measure cells are skipped.
// ============================================================================

// Aggregations understood by GroupAndAggregate.
const (
	AggSum   = "sum"
	AggMean  = "mean"
	AggCount = "count"
	AggMin   = "min"
	AggMax   = "max"
)

// GroupAndAggregate is the main entry point for the aggregation pipeline.
// Pipeline: group → aggregate → sort → limit.
//
// With AggMean, AggMin or AggMax a group whose measure cells are all null
// has no value and is left out.
func GroupAndAggregate(t *table.Table, key, measure, aggregation, sortBy string, limit int) []Group {
	groups := aggregate(groupRows(t, key), t, measure, aggregation)
	SortGroups(groups, sortBy)
	if limit > 0 && len(groups) > limit {
		groups = groups[:limit]
	}
	return groups
}

// SumBy sums measure per distinct key.
func SumBy(t *table.Table, key, measure string) []Group {
	return GroupAndAggregate(t, key, measure, AggSum, "", 0)
}

// MeanBy averages measure per distinct key.
func MeanBy(t *table.Table, key, measure string) []Group {
	return GroupAndAggregate(t, key, measure, AggMean, "", 0)
}

// CountBy counts rows per distinct key, most frequent first. Equal counts
// keep ascending key order.
func CountBy(t *table.Table, key string) []Group {
	return GroupAndAggregate(t, key, "", AggCount, "value_desc", 0)
}

// ============================================================================
// GROUPING
// ============================================================================

type rowGroup struct {
	key  table.Value
	rows []int
}

func groupRows(t *table.Table, key string) []rowGroup {
	col, ok := t.Column(key)
	if !ok {
		return nil
	}

	index := make(map[string]int)
	var groups []rowGroup
	for i, v := range col.Values {
		if v.Null {
			continue
		}
		k := v.String()
		g, seen := index[k]
		if !seen {
			g = len(groups)
			index[k] = g
			groups = append(groups, rowGroup{key: v})
		}
		groups[g].rows = append(groups[g].rows, i)
	}

	slices.SortStableFunc(groups, func(a, b rowGroup) int { return table.Compare(a.key, b.key) })
	return groups
}

// ============================================================================
// AGGREGATION
// ============================================================================

func aggregate(groups []rowGroup, t *table.Table, measure, aggregation string) []Group {
	col, _ := t.Column(measure)

	out := make([]Group, 0, len(groups))
	for _, g := range groups {
		group := Group{Key: g.key, Label: g.key.String(), Count: len(g.rows)}

		if aggregation == AggCount {
			group.Value = float64(len(g.rows))
			out = append(out, group)
			continue
		}

		values := make([]float64, 0, len(g.rows))
		for _, r := range g.rows {
			if r < len(col.Values) {
				if f, ok := col.Values[r].Number(); ok {
					values = append(values, f)
				}
			}
		}

		switch aggregation {
		case AggMean:
			m := mean(values)
			if !m.Available {
				continue
			}
			group.Value = m.Value
		case AggMin, AggMax:
			if len(values) == 0 {
				continue
			}
			if aggregation == AggMin {
				group.Value = slices.Min(values)
			} else {
				group.Value = slices.Max(values)
			}
		default:
			group.Value = sum(values)
		}
		out = append(out, group)
	}
	return out
}

func numbers(t *table.Table, column string) []float64 {
	col, ok := t.Column(column)
	if !ok {
		return nil
	}
	out := make([]float64, 0, len(col.Values))
	for _, v := range col.Values {
		if f, ok := v.Number(); ok {
			out = append(out, f)
		}
	}
	return out
}

func sum(values []float64) float64 {
	var total float64
	for _, v := range values {
		total += v
	}
	return total
}

func mean(values []float64) Metric {
	if len(values) == 0 {
		return Unavailable
	}
	return Some(sum(values) / float64(len(values)))
}

// ============================================================================
// SCALAR KPIs
// ============================================================================

// Sum adds the non-null numeric cells of a column. Empty input sums to 0.
func Sum(t *table.Table, column string) float64 {
	return sum(numbers(t, column))
}

// Mean averages the non-null numeric cells of a column; unavailable when
// there are none.
func Mean(t *table.Table, column string) Metric {
	return mean(numbers(t, column))
}

// Min returns the smallest non-null numeric cell; unavailable when there
// are none.
func Min(t *table.Table, column string) Metric {
	values := numbers(t, column)
	if len(values) == 0 {
		return Unavailable
	}
	return Some(slices.Min(values))
}

// Max returns the largest non-null numeric cell; unavailable when there
// are none.
func Max(t *table.Table, column string) Metric {
	values := numbers(t, column)
	if len(values) == 0 {
		return Unavailable
	}
	return Some(slices.Max(values))
}

// NUnique counts distinct non-null values of a column.
func NUnique(t *table.Table, column string) int {
	col, ok := t.Column(column)
	if !ok {
		return 0
	}
	seen := make(map[string]bool)
	for _, v := range col.Values {
		if !v.Null {
			seen[v.String()] = true
		}
	}
	return len(seen)
}

// Mode returns the most frequent non-null value of a column. Ties go to the
// smallest value. An empty or all-null column has no mode.
func Mode(t *table.Table, column string) TextMetric {
	counts := CountBy(t, column)
	if len(counts) == 0 {
		return TextMetric{}
	}
	return TextMetric{Value: counts[0].Label, Available: true}
}

// TopN returns the n groups with the largest values. Equal values keep
// their input order. groups itself is not reordered.
func TopN(groups []Group, n int) []Group {
	out := slices.Clone(groups)
	SortGroups(out, "value_desc")
	if n >= 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// Correlation returns the Pearson correlation of every pair of columns,
// each pair computed over the rows where both cells are non-null numbers.
// A pair with fewer than two such rows, or with zero variance on either
// side, is unavailable.
func Correlation(t *table.Table, columns []string) Matrix {
	m := Matrix{Columns: slices.Clone(columns), Values: make([][]Metric, len(columns))}
	for i := range columns {
		m.Values[i] = make([]Metric, len(columns))
	}

	for i := range columns {
		for j := i; j < len(columns); j++ {
			r := pearson(t, columns[i], columns[j])
			if i == j && r.Available {
				r = Some(1)
			}
			m.Values[i][j] = r
			m.Values[j][i] = r
		}
	}
	return m
}

func pearson(t *table.Table, a, b string) Metric {
	colA, okA := t.Column(a)
	colB, okB := t.Column(b)
	if !okA || !okB {
		return Unavailable
	}

	var xs, ys []float64
	for i := range colA.Values {
		x, okX := colA.Values[i].Number()
		y, okY := colB.Values[i].Number()
		if okX && okY {
			xs = append(xs, x)
			ys = append(ys, y)
		}
	}
	if len(xs) < 2 {
		return Unavailable
	}

	mx, my := sum(xs)/float64(len(xs)), sum(ys)/float64(len(ys))
	var sxy, sxx, syy float64
	for i := range xs {
		dx, dy := xs[i]-mx, ys[i]-my
		sxy += dx * dy
		sxx += dx * dx
		syy += dy * dy
	}
	if sxx == 0 || syy == 0 {
		return Unavailable
	}
	return Some(sxy / math.Sqrt(sxx*syy))
}

// ============================================================================
// SORTING
// ============================================================================

// SortGroups sorts aggregate groups by the specified sort mode. Sorting is
// stable; an unknown mode keeps the current order.
func SortGroups(groups []Group, sortBy string) {
	switch sortBy {
	case "value_desc":
		sort.SliceStable(groups, func(i, j int) bool { return groups[i].Value > groups[j].Value })
	case "value_asc":
		sort.SliceStable(groups, func(i, j int) bool { return groups[i].Value < groups[j].Value })
	case "key_asc":
		sort.SliceStable(groups, func(i, j int) bool { return table.Compare(groups[i].Key, groups[j].Key) < 0 })
	case "key_desc":
		sort.SliceStable(groups, func(i, j int) bool { return table.Compare(groups[i].Key, groups[j].Key) > 0 })
	default:
		// preserve grouping order
	}
}

// ============================================================================
// FORMATTING UTILITIES
// ============================================================================

// FormatCurrency formats an amount with currency prefix and comma separators.
// An empty currency formats the bare number.
func FormatCurrency(amount float64, currency string) string {
	negative := amount < 0
	if negative {
		amount = -amount
	}

	cents := int64(math.Round(amount * 100))
	intPart, decPart := cents/100, cents%100

	result := fmt.Sprintf("%s.%02d", FormatInt(int(intPart)), decPart)
	if currency != "" {
		result = currency + " " + result
	}
	if negative {
		result = "-" + result
	}
	return result
}

// FormatInt formats an integer with comma separators.
func FormatInt(n int) string {
	if n < 0 {
		return "-" + FormatInt(-n)
	}
	if n < 1000 {
		return fmt.Sprintf("%d", n)
	}
	return fmt.Sprintf("%s,%03d", FormatInt(n/1000), n%1000)
}

// RoundTo2 rounds to 2 decimal places.
func RoundTo2(v float64) float64 {
	return math.Round(v*100) / 100
}

// LabelForAggregation returns a human-readable label for an aggregation type.
func LabelForAggregation(aggregation string) string {
	switch aggregation {
	case AggSum:
		return "Total"
	case AggCount:
		return "Count"
	case AggMean:
		return "Average"
	case AggMax:
		return "Maximum"
	case AggMin:
		return "Minimum"
	default:
		return "Value"
	}
}

// LabelForDimension returns a title-cased label for a column name.
func LabelForDimension(dimension string) string {
	return schema.DisplayName(dimension)
}
