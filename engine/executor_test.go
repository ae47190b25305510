package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spektr-org/lens/internal/testutil"
)

func TestExecuteChart(t *testing.T) {
	res, err := Execute(sales(t), Query{
		GroupBy: "customer_id",
		Measure: "revenue",
	}, WithLogger(testutil.NewTestLogger(t)))
	require.NoError(t, err)

	assert.Equal(t, "chart", res.Type)
	assert.Equal(t, 5, res.Rows)
	require.NotNil(t, res.ChartConfig)
	assert.Equal(t, "bar", res.ChartConfig.ChartType)
	assert.Equal(t, "Total of Revenue by Customer Id", res.ChartConfig.Title)

	points := res.ChartConfig.Series[0].Data
	require.Len(t, points, 3)
	assert.Equal(t, ChartPoint{Label: "C1", Value: 150}, points[0])
}

func TestExecuteTable(t *testing.T) {
	res, err := Execute(sales(t), Query{
		GroupBy:     "category",
		Aggregation: AggCount,
		Visualize:   "table",
		SortBy:      "key_asc",
	}, WithCurrency("$"))
	require.NoError(t, err)

	require.NotNil(t, res.TableData)
	assert.Equal(t, [][]string{{"Books", "2", "2"}, {"Electronics", "2", "2"}}, res.TableData.Rows)
	assert.Equal(t, "4", res.TableData.Summary.Values["count"])
}

func TestExecuteText(t *testing.T) {
	res, err := Execute(sales(t), Query{
		Aggregation: AggMean,
		Filters:     Filters{Dimensions: map[string][]string{"category": {"Electronics"}}},
	}, WithDefaultMeasure("revenue"), WithCurrency("$"))
	require.NoError(t, err)

	assert.Equal(t, "text", res.Type)
	require.NotNil(t, res.Data)
	assert.Equal(t, "$ 75.00", res.Data.Value)
	assert.Equal(t, 2, res.Data.Count)
}

func TestExecuteEmpty(t *testing.T) {
	res, err := Execute(sales(t), Query{
		GroupBy: "category",
		Measure: "revenue",
		Filters: Filters{Dimensions: map[string][]string{"category": {"Garden"}}},
	})
	require.NoError(t, err)
	assert.True(t, res.Empty)
	assert.Nil(t, res.ChartConfig)
}

func TestExecuteInvalid(t *testing.T) {
	tbl := sales(t)
	for name, q := range map[string]Query{
		"unknown group":   {GroupBy: "region", Measure: "revenue"},
		"missing measure": {GroupBy: "category"},
		"text measure":    {GroupBy: "category", Measure: "customer_id"},
		"bad filter":      {Measure: "revenue", Filters: Filters{Dimensions: map[string][]string{"region": {"EU"}}}},
	} {
		_, err := Execute(tbl, q)
		assert.ErrorIs(t, err, ErrInvalidQuery, name)
	}
}

func TestBuildHeatmapSkipsUnavailable(t *testing.T) {
	chart := BuildHeatmap("Correlation", Matrix{
		Columns: []string{"a", "b"},
		Values:  [][]Metric{{Some(1), Unavailable}, {Unavailable, Some(1)}},
	})
	require.NotNil(t, chart)
	assert.Equal(t, "heatmap", chart.ChartType)
	assert.Len(t, chart.Series, 2)
	assert.Len(t, chart.Series[0].Data, 1)
	assert.Nil(t, BuildHeatmap("x", Matrix{}))
}
