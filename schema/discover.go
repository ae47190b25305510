package schema

import (
	"log/slog"
	"slices"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/spektr-org/lens/table"
)

// ============================================================================
// CLASSIFICATION — general variant typer
// ============================================================================
// Per column, in table order:
//   1. time storage           → Datetime
//   2. text with ≥ 1 date     → parsed to times, Datetime
//   3. int or float storage   → Numeric
//   4. anything else          → Categorical
//
// Numeric storage is never re-read as dates.
// ============================================================================

// Classify returns a copy of t with date-like text columns converted to
// times, together with the class of every column. t is not modified.
func Classify(t *table.Table) (*table.Table, Classification) {
	return ClassifyWithLogger(t, nil)
}

// ClassifyWithLogger is Classify with debug logging of each decision.
func ClassifyWithLogger(t *table.Table, logger *slog.Logger) (*table.Table, Classification) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	logger = logger.With(slog.String("component", "schema"))

	out := t.Clone()
	cls := Classification{Layouts: map[string]string{}}

	for i := 0; i < t.NumCols(); i++ {
		col := t.ColumnAt(i)

		switch col.Kind {
		case table.KindTime:
			cls.add(col.Name, Datetime)

		case table.KindString:
			parsed, layout, n := ParseTimes(col)
			if n == 0 {
				cls.add(col.Name, Categorical)
				continue
			}
			// Same length as every other column, cannot fail.
			_ = out.SetColumn(parsed)
			cls.add(col.Name, Datetime)
			cls.Layouts[col.Name] = layout
			logger.Debug("text column read as dates",
				slog.String("column", col.Name),
				slog.String("layout", layout),
				slog.Int("parsed", n),
				slog.Int("rows", col.Len()))

		case table.KindInt, table.KindFloat:
			cls.add(col.Name, Numeric)

		default:
			cls.add(col.Name, Categorical)
		}
	}

	logger.Debug("classified table",
		slog.Int("numeric", len(cls.Numeric)),
		slog.Int("categorical", len(cls.Categorical)),
		slog.Int("datetime", len(cls.Datetime)))

	return out, cls
}

// ============================================================================
// PROFILES
// ============================================================================

// Profiles describes every column of a classified table, in table order.
func Profiles(t *table.Table, cls Classification) []Profile {
	out := make([]Profile, 0, t.NumCols())
	for i := 0; i < t.NumCols(); i++ {
		col := t.ColumnAt(i)
		class, _ := cls.ClassOf(col.Name)

		distinct := distinctValues(col)
		out = append(out, Profile{
			Name:            col.Name,
			DisplayName:     DisplayName(col.Name),
			Class:           class,
			Kind:            col.Kind.String(),
			Layout:          cls.Layouts[col.Name],
			SampleValues:    collectSamples(distinct, 10),
			NullCount:       col.NullCount(),
			UniqueCount:     len(distinct),
			CardinalityHint: cardinalityHint(len(distinct)),
		})
	}
	return out
}

// distinctValues returns the distinct non-null cells of col in sorted order.
func distinctValues(col table.Column) []table.Value {
	seen := make(map[string]bool)
	var out []table.Value
	for _, v := range col.Values {
		if v.Null {
			continue
		}
		key := v.String()
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, v)
	}
	slices.SortStableFunc(out, table.Compare)
	return out
}

// collectSamples picks up to maxSamples representative values.
func collectSamples(distinct []table.Value, maxSamples int) []string {
	if len(distinct) > maxSamples {
		distinct = distinct[:maxSamples]
	}
	samples := make([]string, len(distinct))
	for i, v := range distinct {
		samples[i] = v.String()
	}
	return samples
}

func cardinalityHint(unique int) string {
	switch {
	case unique <= 10:
		return "low"
	case unique <= 100:
		return "medium"
	default:
		return "high"
	}
}

// ============================================================================
// STRING UTILITIES
// ============================================================================

// DisplayName cleans a column name for chart titles and axis labels.
// "invoice_date" → "Invoice Date", "shopping-mall" → "Shopping Mall".
// Names that already contain spaces are only trimmed.
func DisplayName(s string) string {
	if strings.Contains(strings.TrimSpace(s), " ") {
		return strings.TrimSpace(s)
	}

	s = strings.ReplaceAll(s, "_", " ")
	s = strings.ReplaceAll(s, "-", " ")
	// Casers keep state between calls, so each call gets its own.
	return cases.Title(language.English).String(strings.Join(strings.Fields(s), " "))
}
