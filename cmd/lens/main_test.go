package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spektr-org/lens/engine"
	"github.com/spektr-org/lens/table"
)

const shoppingCSV = `invoice_no,customer_id,invoice_date,quantity,price,category,shopping_mall,payment_method,gender,age
I1,C1,2024-01-05,2,10,Books,Mall A,Cash,Female,22
I2,C2,2024-01-20,1,50,Toys,Mall B,Card,Male,40
I3,C1,2024-02-03,3,10,Books,Mall A,Card,Female,22
`

func writeData(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	path := filepath.Join(dir, "shopping.csv")
	require.NoError(t, os.WriteFile(path, []byte(shoppingCSV), 0o600))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestParseFilters(t *testing.T) {
	f, err := parseFilters(
		[]string{"region=North", "region=East", "channel=web"},
		[]string{"date=2024-01-01..2024-03-31", "shipped=..2024-02-01"},
	)
	require.NoError(t, err)
	assert.Equal(t, []string{"North", "East"}, f.Dimensions["region"])
	assert.Equal(t, []string{"web"}, f.Dimensions["channel"])
	assert.Equal(t, engine.DateRange{
		Start: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC),
	}, f.Ranges["date"])
	assert.True(t, f.Ranges["shipped"].Start.IsZero())
	assert.Equal(t, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), f.Ranges["shipped"].End)

	_, err = parseFilters([]string{"region"}, nil)
	assert.Error(t, err)
	_, err = parseFilters(nil, []string{"date=2024-01-01"})
	assert.Error(t, err)
	_, err = parseFilters(nil, []string{"date=bad..2024-01-01"})
	assert.ErrorContains(t, err, "invalid range")
}

func TestBadDateFlags(t *testing.T) {
	path := writeData(t)

	_, err := run(t, "explore", "--data", path, "--range", "invoice_date=bad..2024-01-01")
	assert.ErrorContains(t, err, `invalid range "invoice_date=bad..2024-01-01"`)

	_, err = run(t, "retail", "--data", path, "--from", "01/05/2024")
	assert.ErrorContains(t, err, "invalid --from/--to")
}

func TestRetailJSON(t *testing.T) {
	path := writeData(t)

	out, err := run(t, "retail", "--data", path, "--category", "Books", "-o", "json")
	require.NoError(t, err)

	var report struct {
		Rows int `json:"rows"`
		KPIs struct {
			TotalRevenue float64 `json:"totalRevenue"`
			Transactions int     `json:"transactions"`
		} `json:"kpis"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, 2, report.Rows)
	assert.Equal(t, 50.0, report.KPIs.TotalRevenue)
	assert.Equal(t, 2, report.KPIs.Transactions)
}

func TestRetailTableAndExport(t *testing.T) {
	path := writeData(t)
	export := filepath.Join(t.TempDir(), "books.xlsx")

	out, err := run(t, "retail", "--data", path, "--currency", "USD", "--from", "2024-01-01", "--to", "2024-01-31", "--out", export)
	require.NoError(t, err)
	assert.Contains(t, out, "USD 70.00")

	f, err := os.Open(export)
	require.NoError(t, err)
	defer f.Close()
	exported, err := table.ReadXLSX(f)
	require.NoError(t, err)
	assert.Equal(t, 2, exported.NumRows())

	_, err = run(t, "retail", "--data", path, "--out", "rows.pdf")
	assert.ErrorContains(t, err, "unsupported export format")
}

func TestExploreCSV(t *testing.T) {
	path := writeData(t)

	out, err := run(t, "explore", "--data", path, "--filter", "category=Toys", "-o", "csv")
	require.NoError(t, err)
	assert.Contains(t, out, "invoice_no,customer_id")
	assert.Contains(t, out, "I2,C2")
	assert.NotContains(t, out, "I1,C1")
}

func TestDiscover(t *testing.T) {
	path := writeData(t)

	out, err := run(t, "discover", "--data", path, "-o", "csv")
	require.NoError(t, err)
	assert.Contains(t, out, "column,class,layout")
	assert.Contains(t, out, "invoice_date,datetime,2006-01-02")
	assert.Contains(t, out, "price,numeric,")
	assert.Contains(t, out, "category,categorical,")
}

func TestQueryCSV(t *testing.T) {
	path := writeData(t)

	out, err := run(t, "query", "--data", path, "--group-by", "category", "-o", "csv")
	require.NoError(t, err)
	assert.Equal(t, "Category,Total\nBooks,50\nToys,50\n", out)

	out, err = run(t, "query", "--data", path, "--agg", "count", "-o", "csv")
	require.NoError(t, err)
	assert.Contains(t, out, "Summary,Value,Unit\n")
	assert.Contains(t, out, ",3,")

	_, err = run(t, "query", "--data", path, "--agg", "median")
	assert.ErrorContains(t, err, "invalid query")

	_, err = run(t, "query", "--data", path, "--group-by", "colour")
	assert.ErrorIs(t, err, engine.ErrInvalidQuery)
}

func TestInvalidConfig(t *testing.T) {
	path := writeData(t)

	_, err := run(t, "retail", "--data", path, "-o", "yaml")
	assert.Error(t, err)

	_, err = run(t, "retail", "--data", filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "lens "+version+"\n", out)
}
