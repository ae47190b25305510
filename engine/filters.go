package engine

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"time"

	"github.com/spektr-org/lens/table"
)

// ============================================================================
// FILTERS — Row mask over a table
// ============================================================================
// One pass per active constraint. The mask starts all-true and each
// constraint can only clear entries, so the result does not depend on the
// order constraints are visited in.
// ============================================================================

// Mask returns the inclusion mask of f over t, one entry per row.
//
// A categorical constraint passes rows whose cell text is one of the
// accepted values; a range constraint passes time cells on a day inside the
// range. Null cells fail every active constraint, and a constraint on a
// column t lacks fails every row.
func Mask(t *table.Table, f Filters) []bool {
	mask := make([]bool, t.NumRows())
	for i := range mask {
		mask[i] = true
	}

	for name, allowed := range f.Dimensions {
		if len(allowed) == 0 {
			continue
		}
		col, ok := t.Column(name)
		if !ok {
			clear(mask)
			return mask
		}
		set := make(map[string]bool, len(allowed))
		for _, v := range allowed {
			set[v] = true
		}
		for i, v := range col.Values {
			if mask[i] && (v.Null || !set[v.String()]) {
				mask[i] = false
			}
		}
	}

	for name, r := range f.Ranges {
		if r.IsZero() {
			continue
		}
		col, ok := t.Column(name)
		if !ok {
			clear(mask)
			return mask
		}
		for i, v := range col.Values {
			if mask[i] && (v.Null || v.Kind != table.KindTime || !r.Contains(v.Time)) {
				mask[i] = false
			}
		}
	}

	return mask
}

// ApplyFilters returns a fresh table holding the rows of t that pass f, in
// their original order. t is never modified; an empty f yields a copy of t.
func ApplyFilters(t *table.Table, f Filters) *table.Table {
	mask := Mask(t, f)
	rows := make([]int, 0, len(mask))
	for i, keep := range mask {
		if keep {
			rows = append(rows, i)
		}
	}
	return t.Subset(rows)
}

// ErrInvalidFilter is wrapped by every error Validate reports.
var ErrInvalidFilter = errors.New("invalid filter")

// Validate reports constraints that can never match: unknown columns,
// ranges on non-datetime columns and ranges whose start is after their end.
func (f Filters) Validate(t *table.Table) error {
	var errs []error

	for _, name := range sortedKeys(f.Dimensions) {
		if len(f.Dimensions[name]) > 0 && !t.Has(name) {
			errs = append(errs, fmt.Errorf("%w: unknown column %q", ErrInvalidFilter, name))
		}
	}
	for _, name := range sortedKeys(f.Ranges) {
		r := f.Ranges[name]
		if r.IsZero() {
			continue
		}
		col, ok := t.Column(name)
		switch {
		case !ok:
			errs = append(errs, fmt.Errorf("%w: unknown column %q", ErrInvalidFilter, name))
		case col.Kind != table.KindTime:
			errs = append(errs, fmt.Errorf("%w: column %q is not a datetime column", ErrInvalidFilter, name))
		}
		if !r.Start.IsZero() && !r.End.IsZero() && dayNumber(r.Start) > dayNumber(r.End) {
			errs = append(errs, fmt.Errorf("%w: range on %q starts after it ends", ErrInvalidFilter, name))
		}
	}

	return errors.Join(errs...)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ============================================================================
// FILTER WIDGET SUPPORT
// ============================================================================

// Options returns the distinct non-null values of a column as canonical
// text, sorted (numbers numerically, times chronologically). A missing
// column has no options.
func Options(t *table.Table, column string) []string {
	col, ok := t.Column(column)
	if !ok {
		return nil
	}

	seen := make(map[string]bool)
	var distinct []table.Value
	for _, v := range col.Values {
		if v.Null || seen[v.String()] {
			continue
		}
		seen[v.String()] = true
		distinct = append(distinct, v)
	}
	slices.SortStableFunc(distinct, table.Compare)

	out := make([]string, len(distinct))
	for i, v := range distinct {
		out[i] = v.String()
	}
	return out
}

// TimeBounds returns the earliest and latest non-null time in a column.
// ok is false when the column is missing, not a datetime column, or has no
// non-null cells.
func TimeBounds(t *table.Table, column string) (minT, maxT time.Time, ok bool) {
	col, found := t.Column(column)
	if !found || col.Kind != table.KindTime {
		return time.Time{}, time.Time{}, false
	}
	for _, v := range col.Values {
		if v.Null {
			continue
		}
		if !ok || v.Time.Before(minT) {
			minT = v.Time
		}
		if !ok || v.Time.After(maxT) {
			maxT = v.Time
		}
		ok = true
	}
	return minT, maxT, ok
}
