package engine

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/spektr-org/lens/table"
)

// ============================================================================
// EXECUTOR — Ad-hoc grouped queries
// ============================================================================
// Entry point: Execute(t, query, opts...)
//
// Pipeline:
//   1. Validate the query against the table
//   2. Apply filters → fresh table
//   3. Group and aggregate (or reduce to one value without GroupBy)
//   4. Dispatch to builder (chart / table / text)
//   5. Return Result
// ============================================================================

// ErrInvalidQuery is wrapped by every query that cannot run on the table.
var ErrInvalidQuery = errors.New("invalid query")

// Execute runs q against t and returns a render-ready Result. An empty
// filtered table is not an error: the result has Empty set.
func Execute(t *table.Table, q Query, opts ...Option) (*Result, error) {
	cfg := applyOptions(opts)

	q, err := normalize(t, q, cfg)
	if err != nil {
		return nil, err
	}

	filtered := ApplyFilters(t, q.Filters)
	cfg.Logger.Debug("query filtered",
		slog.Int("rows", t.NumRows()),
		slog.Int("matched", filtered.NumRows()),
		slog.String("group_by", q.GroupBy),
		slog.String("measure", q.Measure),
		slog.String("aggregation", q.Aggregation))

	if filtered.NumRows() == 0 {
		return &Result{
			Type:  "text",
			Title: q.Title,
			Reply: "No records match your query filters. Try broadening your search.",
			Empty: true,
		}, nil
	}

	result := &Result{Title: q.Title, Rows: filtered.NumRows()}

	if q.GroupBy == "" {
		result.Type = "text"
		result.Data = buildText(filtered, q, cfg.Currency)
		result.Reply = fmt.Sprintf("%s of %s over %s rows: %s.",
			LabelForAggregation(q.Aggregation), measureLabel(q), FormatInt(filtered.NumRows()), result.Data.Value)
		return result, nil
	}

	groups := GroupAndAggregate(filtered, q.GroupBy, q.Measure, q.Aggregation, q.SortBy, q.Limit)
	result.Reply = fmt.Sprintf("%d groups from %s rows.", len(groups), FormatInt(filtered.NumRows()))

	switch q.Visualize {
	case "table":
		result.Type = "table"
		result.TableData = BuildGroupTable(q.Title, LabelForDimension(q.GroupBy), q.Aggregation, groups, cfg.Currency)
	default:
		result.Type = "chart"
		result.ChartConfig = BuildChart(ChartSpec{
			Type:  q.Visualize,
			Title: q.Title,
			XAxis: LabelForDimension(q.GroupBy),
			YAxis: LabelForAggregation(q.Aggregation),
		}, groups)
		if result.ChartConfig == nil {
			result.Type = "text"
			result.Reply = "Not enough data to generate a chart."
		}
	}

	return result, nil
}

// normalize fills defaults and checks every column the query names.
func normalize(t *table.Table, q Query, cfg *config) (Query, error) {
	if err := q.Filters.Validate(t); err != nil {
		return q, fmt.Errorf("%w: %w", ErrInvalidQuery, err)
	}

	if q.Aggregation == "" {
		q.Aggregation = AggSum
	}
	if q.Measure == "" {
		q.Measure = cfg.DefaultMeasure
	}
	if q.Visualize == "text" {
		q.GroupBy = ""
	}
	if q.Visualize == "" && q.GroupBy != "" {
		q.Visualize = "bar"
	}
	if q.SortBy == "" && q.Visualize != "line" {
		q.SortBy = "value_desc"
	}

	if q.GroupBy != "" && !t.Has(q.GroupBy) {
		return q, fmt.Errorf("%w: unknown group-by column %q", ErrInvalidQuery, q.GroupBy)
	}
	if q.Aggregation != AggCount {
		col, ok := t.Column(q.Measure)
		switch {
		case q.Measure == "":
			return q, fmt.Errorf("%w: %s needs a measure", ErrInvalidQuery, q.Aggregation)
		case !ok:
			return q, fmt.Errorf("%w: unknown measure %q", ErrInvalidQuery, q.Measure)
		case !col.Kind.IsNumeric():
			return q, fmt.Errorf("%w: measure %q is not numeric", ErrInvalidQuery, q.Measure)
		}
	}

	if q.Title == "" {
		q.Title = LabelForAggregation(q.Aggregation) + " of " + measureLabel(q)
		if q.GroupBy != "" {
			q.Title += " by " + LabelForDimension(q.GroupBy)
		}
	}
	return q, nil
}

func measureLabel(q Query) string {
	if q.Aggregation == AggCount {
		return "Rows"
	}
	return LabelForDimension(q.Measure)
}

// buildText reduces the filtered table to one value.
func buildText(t *table.Table, q Query, unit string) *TextData {
	var m Metric
	switch q.Aggregation {
	case AggCount:
		n := t.NumRows()
		return &TextData{Value: FormatInt(n), RawValue: float64(n), Count: n}
	case AggMean:
		m = Mean(t, q.Measure)
	case AggMin:
		m = Min(t, q.Measure)
	case AggMax:
		m = Max(t, q.Measure)
	default:
		m = Some(Sum(t, q.Measure))
	}

	return &TextData{
		Value:    m.Format(func(v float64) string { return FormatCurrency(v, unit) }),
		RawValue: m.Value,
		Unit:     unit,
		Count:    t.NumRows(),
	}
}
