package engine

// ============================================================================
// CHART BUILDER — Produces ChartConfig from groups, points or a matrix
// ============================================================================

// Default color palette for chart series.
var defaultColors = []string{
	"#4F46E5", "#10B981", "#F59E0B", "#EF4444", "#8B5CF6",
	"#06B6D4", "#EC4899", "#84CC16", "#F97316", "#6366F1",
}

// ChartSpec names a chart and its axes.
type ChartSpec struct {
	Type  string // "bar", "line", "pie"; empty means bar
	Title string
	XAxis string
	YAxis string
}

// BuildChart produces a single-series ChartConfig from aggregated groups.
// It returns nil when there is nothing to draw.
func BuildChart(spec ChartSpec, groups []Group) *ChartConfig {
	if len(groups) == 0 {
		return nil
	}

	points := make([]ChartPoint, 0, len(groups))
	for _, g := range groups {
		points = append(points, ChartPoint{
			Label: g.Label,
			Value: RoundTo2(g.Value),
		})
	}
	return BuildPointChart(spec, points)
}

// BuildPointChart produces a single-series ChartConfig from raw points, in
// the order given. It returns nil when there is nothing to draw.
func BuildPointChart(spec ChartSpec, points []ChartPoint) *ChartConfig {
	if len(points) == 0 {
		return nil
	}

	chartType := spec.Type
	if chartType == "" {
		chartType = "bar"
	}

	seriesName := spec.YAxis
	if seriesName == "" {
		seriesName = "Value"
	}

	config := &ChartConfig{
		ChartType:  chartType,
		Title:      spec.Title,
		XAxis:      spec.XAxis,
		YAxis:      spec.YAxis,
		Series:     []ChartSeries{{Name: seriesName, Data: points}},
		ShowLegend: chartType == "pie",
		ShowGrid:   chartType != "pie",
	}

	// Pie slices each take a color; other charts color the series.
	if chartType == "pie" {
		config.Colors = assignColors(len(points))
	} else {
		config.Colors = assignColors(len(config.Series))
	}
	return config
}

// BuildHeatmap produces a heatmap with one series per matrix row. Cells
// that are unavailable are left out of their series.
func BuildHeatmap(title string, m Matrix) *ChartConfig {
	if len(m.Columns) == 0 {
		return nil
	}

	series := make([]ChartSeries, 0, len(m.Columns))
	for i, row := range m.Values {
		points := make([]ChartPoint, 0, len(row))
		for j, cell := range row {
			if !cell.Available {
				continue
			}
			points = append(points, ChartPoint{
				Label: m.Columns[j],
				Value: RoundTo2(cell.Value),
			})
		}
		series = append(series, ChartSeries{Name: m.Columns[i], Data: points})
	}

	return &ChartConfig{
		ChartType:  "heatmap",
		Title:      title,
		Series:     series,
		Colors:     []string{"#EF4444", "#F3F4F6", "#4F46E5"},
		ShowLegend: true,
	}
}

func assignColors(count int) []string {
	colors := make([]string, count)
	for i := 0; i < count; i++ {
		colors[i] = defaultColors[i%len(defaultColors)]
	}
	return colors
}
