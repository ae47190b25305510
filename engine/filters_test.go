package engine

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spektr-org/lens/table"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// sales is a small cleaned-retail style table used across engine tests.
func sales(t *testing.T) *table.Table {
	t.Helper()
	str := func(ss ...string) []table.Value {
		out := make([]table.Value, len(ss))
		for i, s := range ss {
			if s == "" {
				out[i] = table.NullValue(table.KindString)
			} else {
				out[i] = table.StringValue(s)
			}
		}
		return out
	}
	tbl, err := table.New(
		table.Column{Name: "invoice_no", Kind: table.KindString, Values: str("I1", "I2", "I3", "I4", "I5")},
		table.Column{Name: "customer_id", Kind: table.KindString, Values: str("C1", "C2", "C1", "C3", "C2")},
		table.Column{Name: "category", Kind: table.KindString, Values: str("Electronics", "Books", "Electronics", "Books", "")},
		table.Column{Name: "invoice_date", Kind: table.KindTime, Values: []table.Value{
			table.TimeValue(day(2024, 1, 5)),
			table.TimeValue(time.Date(2024, 1, 31, 23, 59, 0, 0, time.UTC)),
			table.TimeValue(day(2024, 2, 1)),
			table.NullValue(table.KindTime),
			table.TimeValue(day(2024, 3, 10)),
		}},
		table.Column{Name: "revenue", Kind: table.KindFloat, Values: []table.Value{
			table.FloatValue(100), table.FloatValue(20), table.FloatValue(50),
			table.FloatValue(30), table.NullValue(table.KindFloat),
		}},
	)
	require.NoError(t, err)
	return tbl
}

func column(t *testing.T, tbl *table.Table, name string) []string {
	t.Helper()
	col, ok := tbl.Column(name)
	require.True(t, ok, name)
	out := make([]string, len(col.Values))
	for i, v := range col.Values {
		out[i] = v.String()
	}
	return out
}

func TestApplyFiltersElectronics(t *testing.T) {
	tbl := sales(t)
	out := ApplyFilters(tbl, Filters{
		Dimensions: map[string][]string{"category": {"Electronics"}},
		Ranges:     map[string]DateRange{"invoice_date": {}},
	})

	assert.Equal(t, []string{"Electronics", "Electronics"}, column(t, out, "category"))
	assert.Equal(t, []string{"I1", "I3"}, column(t, out, "invoice_no"))
}

func TestApplyFiltersNoOp(t *testing.T) {
	tbl := sales(t)
	for _, f := range []Filters{
		{},
		{Dimensions: map[string][]string{"category": nil, "missing": {}}},
		{Ranges: map[string]DateRange{"invoice_date": {}, "missing": {}}},
	} {
		out := ApplyFilters(tbl, f)
		assert.Equal(t, tbl.Records(), out.Records())
		assert.NotSame(t, tbl, out)
	}
}

func TestApplyFiltersSubsetAndIdempotent(t *testing.T) {
	tbl := sales(t)
	f := Filters{
		Dimensions: map[string][]string{"customer_id": {"C1", "C2"}},
		Ranges:     map[string]DateRange{"invoice_date": {Start: day(2024, 1, 1), End: day(2024, 2, 29)}},
	}

	once := ApplyFilters(tbl, f)
	twice := ApplyFilters(once, f)
	assert.Equal(t, once.Records(), twice.Records())

	all := map[string]bool{}
	for _, id := range column(t, tbl, "invoice_no") {
		all[id] = true
	}
	for _, id := range column(t, once, "invoice_no") {
		assert.True(t, all[id])
	}
	assert.Equal(t, []string{"I1", "I2", "I3"}, column(t, once, "invoice_no"))
}

func TestApplyFiltersDoesNotMutateInput(t *testing.T) {
	tbl := sales(t)
	before := tbl.Records()
	_ = ApplyFilters(tbl, Filters{Dimensions: map[string][]string{"category": {"Books"}}})
	assert.Equal(t, before, tbl.Records())
}

func TestMaskRules(t *testing.T) {
	tbl := sales(t)

	tests := []struct {
		name string
		f    Filters
		want []bool
	}{
		{"or within a column", Filters{Dimensions: map[string][]string{"category": {"Books", "Electronics"}}},
			[]bool{true, true, true, true, false}},
		{"and across columns", Filters{Dimensions: map[string][]string{"category": {"Books"}, "customer_id": {"C2"}}},
			[]bool{false, true, false, false, false}},
		{"range is inclusive by day", Filters{Ranges: map[string]DateRange{"invoice_date": {Start: day(2024, 1, 5), End: day(2024, 1, 31)}}},
			[]bool{true, true, false, false, false}},
		{"open start", Filters{Ranges: map[string]DateRange{"invoice_date": {End: day(2024, 2, 1)}}},
			[]bool{true, true, true, false, false}},
		{"unknown column fails every row", Filters{Dimensions: map[string][]string{"region": {"EU"}}},
			[]bool{false, false, false, false, false}},
		{"match is exact", Filters{Dimensions: map[string][]string{"category": {"electronics"}}},
			[]bool{false, false, false, false, false}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Mask(tbl, tt.f))
		})
	}
}

func TestValidate(t *testing.T) {
	tbl := sales(t)

	assert.NoError(t, Filters{Dimensions: map[string][]string{"category": {"Books"}}}.Validate(tbl))
	assert.NoError(t, Filters{Dimensions: map[string][]string{"region": nil}}.Validate(tbl))

	err := Filters{
		Dimensions: map[string][]string{"region": {"EU"}},
		Ranges: map[string]DateRange{
			"category":     {Start: day(2024, 1, 1)},
			"invoice_date": {Start: day(2024, 2, 1), End: day(2024, 1, 1)},
		},
	}.Validate(tbl)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidFilter)
	assert.Contains(t, err.Error(), `unknown column "region"`)
	assert.Contains(t, err.Error(), `"category" is not a datetime column`)
	assert.Contains(t, err.Error(), "starts after it ends")
}

func TestOptionsAndTimeBounds(t *testing.T) {
	tbl := sales(t)

	assert.Equal(t, []string{"Books", "Electronics"}, Options(tbl, "category"))
	assert.Equal(t, []string{"20", "30", "50", "100"}, Options(tbl, "revenue"))
	assert.Nil(t, Options(tbl, "missing"))

	minT, maxT, ok := TimeBounds(tbl, "invoice_date")
	require.True(t, ok)
	assert.Equal(t, day(2024, 1, 5), minT)
	assert.Equal(t, day(2024, 3, 10), maxT)

	_, _, ok = TimeBounds(tbl, "category")
	assert.False(t, ok)
	_, _, ok = TimeBounds(tbl.Head(0), "invoice_date")
	assert.False(t, ok)
}

func TestDateRangeJSON(t *testing.T) {
	var f Filters
	require.NoError(t, json.Unmarshal([]byte(`{"ranges":{"invoice_date":{"start":"2024-01-01","end":"2024-01-31T00:00:00Z"}}}`), &f))
	r := f.Ranges["invoice_date"]
	assert.Equal(t, day(2024, 1, 1), r.Start)
	assert.Equal(t, day(2024, 1, 31), r.End)

	b, err := json.Marshal(DateRange{End: day(2024, 2, 1)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"end":"2024-02-01"}`, string(b))

	assert.Error(t, json.Unmarshal([]byte(`{"start":"yesterday"}`), &r))
}

func TestParseDateRange(t *testing.T) {
	r, err := ParseDateRange("2024-01-01", "")
	require.NoError(t, err)
	assert.Equal(t, DateRange{Start: day(2024, 1, 1)}, r)

	_, err = ParseDateRange("bad", "2024-01-01")
	assert.ErrorContains(t, err, "start")
	_, err = ParseDateRange("", "31/01/2024")
	assert.ErrorContains(t, err, "end")
}

func TestFiltersIsEmpty(t *testing.T) {
	assert.True(t, Filters{}.IsEmpty())
	assert.True(t, Filters{Dimensions: map[string][]string{"a": {}}}.IsEmpty())
	f := Filters{Ranges: map[string]DateRange{"d": {Start: day(2024, 1, 1)}}}
	assert.False(t, f.IsEmpty())
	assert.True(t, f.HasFilter("d"))
	assert.False(t, f.HasFilter("a"))
}
