package dashboard

import (
	"fmt"
	"time"

	"github.com/spektr-org/lens/engine"
	"github.com/spektr-org/lens/schema"
	"github.com/spektr-org/lens/table"
)

// DateBounds is the span of one datetime column.
type DateBounds struct {
	Column string    `json:"column"`
	Min    time.Time `json:"min"`
	Max    time.Time `json:"max"`
}

// CategoryOptions are the choices offered for one categorical column.
type CategoryOptions struct {
	Column  string   `json:"column"`
	Options []string `json:"options"`
}

// GeneralOptions are the sidebar choices of the general dashboard.
type GeneralOptions struct {
	Dates      []DateBounds      `json:"dates"`
	Categories []CategoryOptions `json:"categories"`
}

// GeneralKPIs summarise the first numeric and first categorical column.
// Metrics of a missing column are unavailable.
type GeneralKPIs struct {
	NumericColumn     string            `json:"numericColumn,omitempty"`
	Sum               engine.Metric     `json:"sum"`
	Mean              engine.Metric     `json:"mean"`
	CategoricalColumn string            `json:"categoricalColumn,omitempty"`
	Mode              engine.TextMetric `json:"mode"`
	TotalRows         int               `json:"totalRows"`
}

// GeneralReport is everything the general dashboard renders for one filter
// selection.
type GeneralReport struct {
	Classification schema.Classification `json:"classification"`
	Profiles       []schema.Profile      `json:"profiles"`
	Options        GeneralOptions        `json:"options"`
	Applied        engine.Filters        `json:"applied"`
	Rows           int                   `json:"rows"`
	Empty          bool                  `json:"empty"`
	Preview        *engine.TableData     `json:"preview"`
	KPIs           GeneralKPIs           `json:"kpis"`
	Trends         []engine.ChartConfig  `json:"trends"`
	Counts         []engine.ChartConfig  `json:"counts"`
	Correlation    *engine.Matrix        `json:"correlation,omitempty"`
	Heatmap        *engine.ChartConfig   `json:"heatmap,omitempty"`
}

// Err returns ErrEmptyResult when the filters matched no rows.
func (r *GeneralReport) Err() error {
	if r.Empty {
		return ErrEmptyResult
	}
	return nil
}

// BuildGeneralReport filters a classified table and aggregates it. base is
// not modified.
func BuildGeneralReport(base *table.Table, cls schema.Classification, f engine.Filters, cfg ReportConfig) *GeneralReport {
	filtered := engine.ApplyFilters(base, f)

	preview := cfg.PreviewRows
	if preview <= 0 {
		preview = 5
	}

	report := &GeneralReport{
		Classification: cls,
		Profiles:       schema.Profiles(base, cls),
		Options:        BuildGeneralOptions(base, cls, f),
		Applied:        f,
		Rows:           filtered.NumRows(),
		Empty:          filtered.NumRows() == 0,
		Preview:        engine.BuildTable(fmt.Sprintf("Top %d rows", preview), filtered.Head(preview)),
		KPIs:           generalKPIs(filtered, cls),
	}

	for _, dt := range cls.Datetime {
		for _, num := range cls.Numeric {
			if chart := trendChart(filtered, dt, num); chart != nil {
				report.Trends = append(report.Trends, *chart)
			}
		}
	}

	for _, cat := range cls.Categorical {
		chart := engine.BuildChart(engine.ChartSpec{
			Type:  "bar",
			Title: "Counts of " + cat,
			XAxis: cat,
			YAxis: "count",
		}, engine.CountBy(filtered, cat))
		if chart != nil {
			report.Counts = append(report.Counts, *chart)
		}
	}

	if len(cls.Numeric) > 1 {
		m := engine.Correlation(filtered, cls.Numeric)
		report.Correlation = &m
		report.Heatmap = engine.BuildHeatmap("Correlation of numeric columns", m)
	}

	return report
}

// BuildGeneralOptions computes the sidebar choices. Date bounds span the
// whole base table. Categorical options narrow as the sidebar is read top to
// bottom: each column offers only the values left after the date ranges and
// the selections of the categorical columns before it.
func BuildGeneralOptions(base *table.Table, cls schema.Classification, f engine.Filters) GeneralOptions {
	var opts GeneralOptions
	for _, dt := range cls.Datetime {
		if minT, maxT, ok := engine.TimeBounds(base, dt); ok {
			opts.Dates = append(opts.Dates, DateBounds{Column: dt, Min: minT, Max: maxT})
		}
	}

	narrowed := engine.ApplyFilters(base, engine.Filters{Ranges: f.Ranges})
	for _, cat := range cls.Categorical {
		opts.Categories = append(opts.Categories, CategoryOptions{
			Column:  cat,
			Options: engine.Options(narrowed, cat),
		})
		if selected := f.Dimensions[cat]; len(selected) > 0 {
			narrowed = engine.ApplyFilters(narrowed, engine.Filters{
				Dimensions: map[string][]string{cat: selected},
			})
		}
	}
	return opts
}

func generalKPIs(t *table.Table, cls schema.Classification) GeneralKPIs {
	kpis := GeneralKPIs{TotalRows: t.NumRows()}
	if len(cls.Numeric) > 0 {
		num := cls.Numeric[0]
		kpis.NumericColumn = num
		kpis.Sum = engine.Some(engine.Sum(t, num))
		kpis.Mean = engine.Mean(t, num)
	}
	if len(cls.Categorical) > 0 {
		cat := cls.Categorical[0]
		kpis.CategoricalColumn = cat
		kpis.Mode = engine.Mode(t, cat)
	}
	return kpis
}

// trendChart plots num against dt row by row, in table order. Rows where
// either cell is null are left out.
func trendChart(t *table.Table, dt, num string) *engine.ChartConfig {
	var points []engine.ChartPoint
	for i := 0; i < t.NumRows(); i++ {
		x := t.Value(i, dt)
		y, ok := t.Value(i, num).Number()
		if x.Null || !ok {
			continue
		}
		points = append(points, engine.ChartPoint{Label: x.String(), Value: y})
	}
	return engine.BuildPointChart(engine.ChartSpec{
		Type:  "line",
		Title: fmt.Sprintf("%s over %s", num, dt),
		XAxis: dt,
		YAxis: num,
	}, points)
}
