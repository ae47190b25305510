package schema

import (
	"strings"
	"time"

	"github.com/spektr-org/lens/table"
)

// ============================================================================
// DATE PARSING
// ============================================================================
// A text column is read as dates with the single layout that parses the
// most distinct values. Month-first numeric dates are listed before
// day-first ones, so a column where both parse everything reads US-style.
// ============================================================================

// Layouts are the candidate time layouts, in preference order.
var Layouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006/01/02",
	"1/2/2006 15:04:05",
	"1/2/2006 15:04",
	"1/2/2006",
	"2/1/2006 15:04:05",
	"2/1/2006 15:04",
	"2/1/2006",
	"2.1.2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"2 Jan 2006",
	"2 January 2006",
	"02-Jan-2006",
	"Jan-2006",
	"January 2006",
	"2006-01",
}

// InferLayout returns the layout that parses the most distinct values and
// how many values (not distinct) it parsed. Nulls are skipped. The result is
// "" and 0 when no layout parses anything.
func InferLayout(values []table.Value) (string, int) {
	counts := make(map[string]int)
	for _, v := range values {
		if v.Null {
			continue
		}
		counts[strings.TrimSpace(v.String())]++
	}

	best, bestDistinct, bestTotal := "", 0, 0
	for _, layout := range Layouts {
		distinct, total := 0, 0
		for s, n := range counts {
			if _, err := time.Parse(layout, s); err == nil {
				distinct++
				total += n
			}
		}
		if distinct > bestDistinct {
			best, bestDistinct, bestTotal = layout, distinct, total
		}
	}
	return best, bestTotal
}

// ParseTimes converts col to KindTime. Cells that are already times are
// kept, nulls stay null, and every other cell is parsed from its text with
// the inferred layout. Cells the layout cannot read fall back to the other
// candidates in order and become null when none fits.
//
// It returns the converted column, the chosen layout and the number of
// non-null times in the result.
func ParseTimes(col table.Column) (table.Column, string, int) {
	out := table.Column{Name: col.Name, Kind: table.KindTime, Values: make([]table.Value, len(col.Values))}

	if col.Kind == table.KindTime {
		parsed := 0
		for i, v := range col.Values {
			out.Values[i] = v
			if !v.Null {
				parsed++
			}
		}
		return out, "", parsed
	}

	layout, _ := InferLayout(col.Values)
	parsed := 0
	for i, v := range col.Values {
		if v.Null || layout == "" {
			out.Values[i] = table.NullValue(table.KindTime)
			continue
		}
		t, ok := parseWith(layout, strings.TrimSpace(v.String()))
		if !ok {
			out.Values[i] = table.NullValue(table.KindTime)
			continue
		}
		out.Values[i] = table.TimeValue(t)
		parsed++
	}
	return out, layout, parsed
}

func parseWith(primary, s string) (time.Time, bool) {
	if t, err := time.Parse(primary, s); err == nil {
		return t, true
	}
	for _, layout := range Layouts {
		if layout == primary {
			continue
		}
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
