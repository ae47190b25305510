package dashboard

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spektr-org/lens/engine"
	"github.com/spektr-org/lens/internal/testutil"
)

const ordersCSV = `date,region,channel,units,price
2024-01-01,North,Online,10,2.5
2024-01-02,South,Store,20,3.5
2024-02-01,North,Online,,4.0
2024-02-03,East,Store,5,1.0
`

func generalSession(t *testing.T) *Session {
	t.Helper()
	s := NewSession(VariantGeneral, WithLogger(testutil.NewTestLogger(t)), WithPreviewRows(2))
	require.NoError(t, s.Load(context.Background(), "orders.csv", strings.NewReader(ordersCSV)))
	return s
}

func TestGeneralReport(t *testing.T) {
	s := generalSession(t)

	r, err := s.General(engine.Filters{})
	require.NoError(t, err)
	require.NoError(t, r.Err())

	assert.Equal(t, []string{"date"}, r.Classification.Datetime)
	assert.Equal(t, []string{"region", "channel"}, r.Classification.Categorical)
	assert.Equal(t, []string{"units", "price"}, r.Classification.Numeric)
	assert.Equal(t, "2006-01-02", r.Classification.Layouts["date"])
	assert.Len(t, r.Profiles, 5)

	assert.Equal(t, 4, r.Rows)
	assert.Equal(t, "units", r.KPIs.NumericColumn)
	assert.Equal(t, engine.Some(35), r.KPIs.Sum)
	require.True(t, r.KPIs.Mean.Available)
	assert.InDelta(t, 35.0/3, r.KPIs.Mean.Value, 1e-9)
	assert.Equal(t, "region", r.KPIs.CategoricalColumn)
	assert.Equal(t, engine.TextMetric{Value: "North", Available: true}, r.KPIs.Mode)
	assert.Equal(t, 4, r.KPIs.TotalRows)

	require.NotNil(t, r.Preview)
	assert.Len(t, r.Preview.Rows, 2)

	require.Len(t, r.Trends, 2)
	assert.Equal(t, "units over date", r.Trends[0].Title)
	assert.Equal(t, "line", r.Trends[0].ChartType)
	// the row with no units is skipped, the rest stay in table order
	assert.Equal(t, []string{"2024-01-01", "2024-01-02", "2024-02-03"}, labels(&r.Trends[0]))
	assert.Equal(t, []float64{10, 20, 5}, values(&r.Trends[0]))
	assert.Equal(t, "price over date", r.Trends[1].Title)
	assert.Len(t, r.Trends[1].Series[0].Data, 4)

	require.Len(t, r.Counts, 2)
	assert.Equal(t, "Counts of region", r.Counts[0].Title)
	assert.Equal(t, []string{"North", "East", "South"}, labels(&r.Counts[0]))
	assert.Equal(t, []float64{2, 1, 1}, values(&r.Counts[0]))

	require.NotNil(t, r.Correlation)
	assert.Equal(t, []string{"units", "price"}, r.Correlation.Columns)
	assert.Equal(t, engine.Some(1), r.Correlation.Values[0][0])
	assert.Equal(t, r.Correlation.Values[0][1], r.Correlation.Values[1][0])
	require.NotNil(t, r.Heatmap)
	assert.Equal(t, "heatmap", r.Heatmap.ChartType)
	assert.Len(t, r.Heatmap.Series, 2)
}

func TestGeneralOptionsNarrowSequentially(t *testing.T) {
	s := generalSession(t)

	r, err := s.General(engine.Filters{})
	require.NoError(t, err)
	require.Len(t, r.Options.Dates, 1)
	assert.Equal(t, "date", r.Options.Dates[0].Column)
	assert.Equal(t, "2024-01-01", r.Options.Dates[0].Min.Format(time.DateOnly))
	assert.Equal(t, "2024-02-03", r.Options.Dates[0].Max.Format(time.DateOnly))
	require.Len(t, r.Options.Categories, 2)
	assert.Equal(t, []string{"East", "North", "South"}, r.Options.Categories[0].Options)
	assert.Equal(t, []string{"Online", "Store"}, r.Options.Categories[1].Options)

	january := engine.DateRange{
		Start: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
	}
	r, err = s.General(engine.Filters{Ranges: map[string]engine.DateRange{"date": january}})
	require.NoError(t, err)
	assert.Equal(t, 2, r.Rows)
	assert.Equal(t, []string{"North", "South"}, r.Options.Categories[0].Options)
	// date bounds always span the whole table
	assert.Equal(t, "2024-02-03", r.Options.Dates[0].Max.Format(time.DateOnly))

	r, err = s.General(engine.Filters{Dimensions: map[string][]string{"region": {"North"}}})
	require.NoError(t, err)
	assert.Equal(t, []string{"East", "North", "South"}, r.Options.Categories[0].Options)
	assert.Equal(t, []string{"Online"}, r.Options.Categories[1].Options)
}

func TestGeneralReportEmpty(t *testing.T) {
	s := generalSession(t)

	r, err := s.General(engine.Filters{Dimensions: map[string][]string{"region": {"West"}}})
	require.NoError(t, err)
	assert.True(t, r.Empty)
	assert.ErrorIs(t, r.Err(), ErrEmptyResult)

	assert.Equal(t, engine.Some(0), r.KPIs.Sum)
	assert.False(t, r.KPIs.Mean.Available)
	assert.False(t, r.KPIs.Mode.Available)
	assert.Zero(t, r.KPIs.TotalRows)
	assert.Empty(t, r.Trends)
	assert.Empty(t, r.Counts)
	assert.Empty(t, r.Preview.Rows)
}

func TestGeneralReportWithoutNumericColumns(t *testing.T) {
	s := NewSession(VariantGeneral)
	require.NoError(t, s.Load(context.Background(), "names.csv", strings.NewReader("name,team\nAda,red\nBo,blue\nCy,red\n")))

	r, err := s.General(engine.Filters{})
	require.NoError(t, err)
	assert.Empty(t, r.KPIs.NumericColumn)
	assert.False(t, r.KPIs.Sum.Available)
	assert.False(t, r.KPIs.Mean.Available)
	assert.Equal(t, engine.TextMetric{Value: "Ada", Available: true}, r.KPIs.Mode)
	assert.Empty(t, r.Trends)
	assert.Nil(t, r.Correlation)
	assert.Nil(t, r.Heatmap)
	assert.Len(t, r.Counts, 2)
}

func TestGeneralLoadKeepsAllRows(t *testing.T) {
	s := NewSession(VariantGeneral)
	require.NoError(t, s.Load(context.Background(), "sparse.csv", strings.NewReader("a,b\n,\n1,\n,x\n")))

	info, ok := s.Info()
	require.True(t, ok)
	assert.Equal(t, 3, info.Rows)
	assert.Equal(t, []string{"a", "b"}, info.Columns)
}

func TestSessionOptions(t *testing.T) {
	g := generalSession(t)
	opts, err := g.Options()
	require.NoError(t, err)
	assert.Nil(t, opts.Retail)
	require.NotNil(t, opts.General)
	assert.Len(t, opts.General.Categories, 2)

	r := retailSession(t)
	opts, err = r.Options()
	require.NoError(t, err)
	assert.Nil(t, opts.General)
	require.NotNil(t, opts.Retail)
	assert.Equal(t, []string{"Female", "Male"}, opts.Retail.Genders)

	_, err = NewSession(VariantGeneral).Options()
	assert.ErrorIs(t, err, ErrNoData)
}
