package schema

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spektr-org/lens/internal/testutil"
	"github.com/spektr-org/lens/table"
)

// ============================================================================
// CLASSIFICATION TESTS
// ============================================================================

var ordersCSV = `Order ID,Customer Name,Category,Region,Order Date,Ship Date,Quantity,Unit Price,Discount,Currency
ORD-10001,James Wilson,Technology,North America,2025-08-01,2025-08-03,2,29.99,0.00,USD
ORD-10002,Maria Santos,Furniture,South America,2025-08-01,2025-08-07,1,349.99,0.10,BRL
ORD-10003,Yuki Tanaka,Office Supplies,Asia Pacific,2025-08-02,not shipped,5,12.50,0.00,JPY
ORD-10004,Hans Mueller,Furniture,Europe,2025-08-02,,1,599.00,0.15,EUR
ORD-10005,Priya Sharma,Technology,Asia Pacific,2025-08-03,2025-08-06,1,299.99,0.05,INR
`

func loadOrders(t *testing.T) *table.Table {
	t.Helper()
	tbl, err := table.ReadCSV(strings.NewReader(ordersCSV))
	require.NoError(t, err)
	return tbl
}

func TestClassifyOrders(t *testing.T) {
	tbl := loadOrders(t)
	typed, cls := ClassifyWithLogger(tbl, testutil.NewTestLogger(t))

	assert.Equal(t, []string{"Quantity", "Unit Price", "Discount"}, cls.Numeric)
	assert.Equal(t, []string{"Order Date", "Ship Date"}, cls.Datetime)
	assert.Equal(t, []string{"Order ID", "Customer Name", "Category", "Region", "Currency"}, cls.Categorical)
	assert.Equal(t, "2006-01-02", cls.Layouts["Order Date"])

	ship, ok := typed.Column("Ship Date")
	require.True(t, ok)
	assert.Equal(t, table.KindTime, ship.Kind)
	assert.True(t, ship.Values[2].Null, "unparseable text becomes null")
	assert.True(t, ship.Values[3].Null)
	assert.Equal(t, "2025-08-07", ship.Values[1].String())

	// input untouched
	raw, _ := tbl.Column("Ship Date")
	assert.Equal(t, table.KindString, raw.Kind)
}

func TestClassifyIsPartition(t *testing.T) {
	inputs := []string{
		ordersCSV,
		"a,b\n1,x\n2,y\n",
		"only\n\n\n",
		"d,n\n2024-01-01,1.5\n,\n",
	}
	for _, input := range inputs {
		tbl, err := table.ReadCSV(strings.NewReader(input))
		require.NoError(t, err)

		_, cls := Classify(tbl)
		assert.Equal(t, tbl.NumCols(), cls.Len())

		seen := map[string]int{}
		for _, names := range [][]string{cls.Numeric, cls.Categorical, cls.Datetime} {
			for _, n := range names {
				seen[n]++
			}
		}
		for _, name := range tbl.Names() {
			assert.Equal(t, 1, seen[name], "column %q classified exactly once", name)
		}
	}
}

func TestClassifyKeepsIntegersNumeric(t *testing.T) {
	tbl, err := table.ReadCSV(strings.NewReader("year,code\n2024,20240105\n2025,20250105\n"))
	require.NoError(t, err)

	_, cls := Classify(tbl)
	assert.Equal(t, []string{"year", "code"}, cls.Numeric)
	assert.Empty(t, cls.Datetime)
}

func TestClassifyAllNullColumnIsCategorical(t *testing.T) {
	tbl, err := table.ReadCSV(strings.NewReader("a,empty\n1,\n2,\n"))
	require.NoError(t, err)

	_, cls := Classify(tbl)
	class, ok := cls.ClassOf("empty")
	require.True(t, ok)
	assert.Equal(t, Categorical, class)
}

func TestClassifyKeepsTimeStorage(t *testing.T) {
	col, _, _ := ParseTimes(table.Column{Name: "d", Kind: table.KindString, Values: []table.Value{
		table.StringValue("2024-01-05"),
	}})
	tbl := table.MustNew(col)

	_, cls := Classify(tbl)
	assert.Equal(t, []string{"d"}, cls.Datetime)
	assert.Empty(t, cls.Layouts)
}

// ============================================================================
// PROFILE TESTS
// ============================================================================

func TestProfiles(t *testing.T) {
	typed, cls := Classify(loadOrders(t))
	profiles := Profiles(typed, cls)
	require.Len(t, profiles, typed.NumCols())

	byName := map[string]Profile{}
	for _, p := range profiles {
		byName[p.Name] = p
	}

	cat := byName["Category"]
	assert.Equal(t, Categorical, cat.Class)
	assert.Equal(t, []string{"Furniture", "Office Supplies", "Technology"}, cat.SampleValues)
	assert.Equal(t, 3, cat.UniqueCount)
	assert.Equal(t, "low", cat.CardinalityHint)

	qty := byName["Quantity"]
	assert.Equal(t, Numeric, qty.Class)
	assert.Equal(t, []string{"1", "2", "5"}, qty.SampleValues, "numeric samples sort numerically")

	ship := byName["Ship Date"]
	assert.Equal(t, Datetime, ship.Class)
	assert.Equal(t, 2, ship.NullCount)
	assert.Equal(t, "2006-01-02", ship.Layout)
}

func TestCardinalityHint(t *testing.T) {
	assert.Equal(t, "low", cardinalityHint(10))
	assert.Equal(t, "medium", cardinalityHint(11))
	assert.Equal(t, "medium", cardinalityHint(100))
	assert.Equal(t, "high", cardinalityHint(101))
}

func TestDisplayName(t *testing.T) {
	tests := map[string]string{
		"invoice_date":   "Invoice Date",
		"shopping-mall":  "Shopping Mall",
		"age":            "Age",
		"Unit Price":     "Unit Price",
		"payment_method": "Payment Method",
	}
	for in, want := range tests {
		assert.Equal(t, want, DisplayName(in), in)
	}
}

func TestClassMarshalText(t *testing.T) {
	b, err := Datetime.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "datetime", string(b))
}
