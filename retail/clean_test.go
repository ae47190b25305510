package retail

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spektr-org/lens/internal/testutil"
	"github.com/spektr-org/lens/table"
)

func read(t *testing.T, csv string) *table.Table {
	t.Helper()
	tbl, err := table.ReadCSV(strings.NewReader(csv))
	require.NoError(t, err)
	return tbl
}

func floats(t *testing.T, tbl *table.Table, name string) []float64 {
	t.Helper()
	col, ok := tbl.Column(name)
	require.True(t, ok, name)
	out := make([]float64, len(col.Values))
	for i, v := range col.Values {
		out[i], _ = v.Number()
	}
	return out
}

func TestCleanScenario(t *testing.T) {
	raw := read(t, `invoice_no,customer_id,invoice_date,quantity,price
INV1,C1,2024-01-05,2,10.0
INV2,C2,2024-01-20,-1,5.0
INV3,C1,2024-02-01,1,20.0
`)

	out, err := Clean(raw, WithLogger(testutil.NewTestLogger(t)))
	require.NoError(t, err)
	require.Equal(t, 2, out.NumRows())

	assert.Equal(t, []float64{20, 20}, floats(t, out, ColRevenue))
	assert.Equal(t, "2024-01-01", out.Value(0, ColMonth).String())
	assert.Equal(t, "2024-02-01", out.Value(1, ColMonth).String())
	assert.Equal(t, "INV3", out.Value(1, ColInvoiceNo).String())

	customers := map[string]bool{}
	total := 0.0
	for i := 0; i < out.NumRows(); i++ {
		customers[out.Value(i, ColCustomerID).String()] = true
		total += out.Value(i, ColRevenue).Float
	}
	// C2's only row has a negative quantity and is dropped
	assert.Len(t, customers, 1)
	assert.Equal(t, 40.0, total)

	// no age column
	assert.Equal(t, Unknown, out.Value(0, ColAgeGroup).String())

	// input untouched
	assert.Equal(t, 3, raw.NumRows())
	assert.False(t, raw.Has(ColRevenue))
}

func TestCleanRowInvariants(t *testing.T) {
	raw := read(t, `invoice_no,customer_id,invoice_date,quantity,price,age
I1,C1,2024-01-05,2.9,1.5,30
I2,C2,not a date,1,1,30
I3,,2024-01-05,1,1,30
I4,C4,2024-01-05,abc,1,30
I5,C5,2024-01-05,1,free,30
I6,C6,2024-01-05,1,-3,30
I7,C7,2024-01-05,0,4,30
I8,C8,2024-01-05,3,0,30
I9,C9,2024-03-31 18:45:00,1,2.25,
`)

	out, err := Clean(raw)
	require.NoError(t, err)

	var ids []string
	for i := 0; i < out.NumRows(); i++ {
		ids = append(ids, out.Value(i, ColInvoiceNo).String())

		qty := out.Value(i, ColQuantity)
		price := out.Value(i, ColPrice)
		rev := out.Value(i, ColRevenue)
		assert.Equal(t, table.KindInt, qty.Kind)
		assert.Greater(t, qty.Int, int64(0))
		assert.GreaterOrEqual(t, price.Float, 0.0)
		assert.Equal(t, float64(qty.Int)*price.Float, rev.Float)
		assert.False(t, out.Value(i, ColMonth).Null)
	}
	assert.Equal(t, []string{"I1", "I8", "I9"}, ids)

	// 2.9 truncates to 2
	assert.Equal(t, int64(2), out.Value(0, ColQuantity).Int)
	assert.Equal(t, 3.0, out.Value(0, ColRevenue).Float)

	// datetime keeps its location, month is midnight on the 1st
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), out.Value(2, ColMonth).Time)

	// missing age falls into the first bucket
	assert.Equal(t, "25-34", out.Value(0, ColAgeGroup).String())
	assert.Equal(t, "≤24", out.Value(2, ColAgeGroup).String())
}

func TestCleanMissingColumns(t *testing.T) {
	raw := read(t, "invoice_no,price,category\nI1,3,Books\n")

	_, err := Clean(raw)
	var se *SchemaError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, []string{ColCustomerID, ColInvoiceDate, ColQuantity}, se.Missing)
	assert.Contains(t, err.Error(), "customer_id, invoice_date, quantity")
}

func TestCleanEmptyTable(t *testing.T) {
	out, err := Clean(read(t, "invoice_no,customer_id,invoice_date,quantity,price\n"))
	require.NoError(t, err)
	assert.Equal(t, 0, out.NumRows())
	assert.True(t, out.Has(ColRevenue))
	assert.True(t, out.Has(ColAgeGroup))
}

func TestCleanKeepsOptionalColumns(t *testing.T) {
	raw := read(t, `invoice_no,customer_id,gender,age,category,quantity,price,payment_method,invoice_date,shopping_mall
I138884,C241288,Female,28,Clothing,5,1500.4,Credit Card,5/8/2022,Kanyon
I317333,C111565,Male,21,Shoes,3,1800.51,Debit Card,12/12/2021,Forum Istanbul
I173702,C988172,Female,66,Shoes,5,3000.85,Credit Card,16/05/2021,Metropol AVM
`)

	out, err := Clean(raw)
	require.NoError(t, err)
	require.Equal(t, 3, out.NumRows())

	assert.Equal(t, "Kanyon", out.Value(0, ColShoppingMall).String())
	assert.Equal(t, []string{"25-34", "≤24", "65+"}, []string{
		out.Value(0, ColAgeGroup).String(),
		out.Value(1, ColAgeGroup).String(),
		out.Value(2, ColAgeGroup).String(),
	})
	// day-first layout wins for this sample
	assert.Equal(t, "2022-08-01", out.Value(0, ColMonth).String())
	assert.Equal(t, "2021-05-01", out.Value(2, ColMonth).String())
}

func TestAgeGroup(t *testing.T) {
	tests := []struct {
		age  int
		want string
	}{
		{0, "≤24"}, {24, "≤24"}, {25, "25-34"}, {34, "25-34"}, {35, "35-44"},
		{44, "35-44"}, {45, "45-54"}, {54, "45-54"}, {55, "55-64"}, {64, "55-64"},
		{65, "65+"}, {120, "65+"}, {121, "≤24"}, {-5, "≤24"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, AgeGroup(tt.age), "age %d", tt.age)
	}
}

func TestAgeGroupIsTotal(t *testing.T) {
	labels := map[string]bool{}
	for _, l := range AgeGroups {
		labels[l] = true
	}
	for age := 0; age <= 120; age++ {
		assert.True(t, labels[AgeGroup(age)], "age %d", age)
	}
}
