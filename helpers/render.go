package helpers

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/spektr-org/lens/dashboard"
	"github.com/spektr-org/lens/engine"
	"github.com/spektr-org/lens/schema"
)

// ============================================================================
// TEXT RENDERING — Terminal output for reports and query results
// ============================================================================

// newWriter prints title on its own line and returns a table writer mirrored
// to w. go-pretty wraps a table title to the table width, which splits long
// titles over narrow tables.
func newWriter(w io.Writer, title string) table.Writer {
	if title != "" {
		_, _ = fmt.Fprintln(w, title)
	}
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	return t
}

// RenderTableData renders a TableData with its summary row, if any.
func RenderTableData(w io.Writer, td *engine.TableData) {
	if td == nil {
		return
	}
	t := newWriter(w, td.Title)

	header := make(table.Row, len(td.Columns))
	for i, c := range td.Columns {
		header[i] = c.Label
	}
	t.AppendHeader(header)

	configs := make([]table.ColumnConfig, 0, len(td.Columns))
	for i, c := range td.Columns {
		if c.Align == "right" {
			configs = append(configs, table.ColumnConfig{Number: i + 1, Align: text.AlignRight})
		}
	}
	t.SetColumnConfigs(configs)

	for _, r := range td.Rows {
		row := make(table.Row, len(r))
		for i, cell := range r {
			row[i] = cell
		}
		t.AppendRow(row)
	}
	if td.Summary != nil {
		footer := make(table.Row, len(td.Columns))
		for i, c := range td.Columns {
			footer[i] = td.Summary.Values[c.Key]
		}
		if len(footer) > 0 && footer[0] == "" {
			footer[0] = td.Summary.Label
		}
		t.AppendFooter(footer)
	}
	t.Render()
	_, _ = fmt.Fprintf(w, "(%d rows)\n", len(td.Rows))
}

// RenderChart renders the points of every series as a two-column table.
func RenderChart(w io.Writer, c *engine.ChartConfig) {
	if c == nil {
		return
	}
	for _, s := range c.Series {
		title := c.Title
		if len(c.Series) > 1 {
			title = fmt.Sprintf("%s: %s", c.Title, s.Name)
		}
		t := newWriter(w, title)
		x := c.XAxis
		if x == "" {
			x = "Label"
		}
		t.AppendHeader(table.Row{x, s.Name})
		t.SetColumnConfigs([]table.ColumnConfig{{Number: 2, Align: text.AlignRight}})
		for _, p := range s.Data {
			t.AppendRow(table.Row{p.Label, engine.RoundTo2(p.Value)})
		}
		t.Render()
	}
}

// RenderResult renders an ad-hoc query result.
func RenderResult(w io.Writer, r *engine.Result) {
	switch {
	case r.TableData != nil:
		RenderTableData(w, r.TableData)
	case r.ChartConfig != nil:
		RenderChart(w, r.ChartConfig)
	}
	_, _ = fmt.Fprintln(w, r.Reply)
}

// RenderRetail renders the retail KPIs followed by every chart present.
func RenderRetail(w io.Writer, r *dashboard.RetailReport) {
	money := func(v float64) string { return engine.FormatCurrency(v, r.Currency) }

	t := newWriter(w, "Retail KPIs")
	t.AppendRows([]table.Row{
		{"Total Revenue", money(r.KPIs.TotalRevenue)},
		{"Transactions", engine.FormatInt(r.KPIs.Transactions)},
		{"Unique Customers", engine.FormatInt(r.KPIs.UniqueCustomers)},
		{"Avg Order Value", r.KPIs.AverageOrderValue.Format(money)},
	})
	t.SetColumnConfigs([]table.ColumnConfig{{Number: 2, Align: text.AlignRight}})
	t.Render()

	if r.Empty {
		_, _ = fmt.Fprintln(w, dashboard.ErrEmptyResult.Error())
		return
	}
	for _, c := range []*engine.ChartConfig{
		r.Charts.MonthlyRevenue,
		r.Charts.RevenueByCategory,
		r.Charts.RevenueByPayment,
		r.Charts.TopCustomers,
		r.Charts.RevenueByMall,
		r.Charts.RevenueByAgeGroup,
	} {
		RenderChart(w, c)
	}
}

// RenderGeneral renders the general KPIs, preview and charts.
func RenderGeneral(w io.Writer, r *dashboard.GeneralReport) {
	plain := func(v float64) string { return engine.FormatCurrency(v, "") }

	t := newWriter(w, "KPIs")
	if r.KPIs.NumericColumn != "" {
		t.AppendRows([]table.Row{
			{"Sum of " + r.KPIs.NumericColumn, r.KPIs.Sum.Format(plain)},
			{"Mean of " + r.KPIs.NumericColumn, r.KPIs.Mean.Format(plain)},
		})
	}
	if r.KPIs.CategoricalColumn != "" {
		mode := "unavailable"
		if r.KPIs.Mode.Available {
			mode = r.KPIs.Mode.Value
		}
		t.AppendRow(table.Row{"Most common " + r.KPIs.CategoricalColumn, mode})
	}
	t.AppendRow(table.Row{"Total rows", engine.FormatInt(r.KPIs.TotalRows)})
	t.Render()

	if r.Empty {
		_, _ = fmt.Fprintln(w, dashboard.ErrEmptyResult.Error())
		return
	}

	RenderTableData(w, r.Preview)
	for i := range r.Trends {
		RenderChart(w, &r.Trends[i])
	}
	for i := range r.Counts {
		RenderChart(w, &r.Counts[i])
	}
	if r.Correlation != nil {
		RenderMatrix(w, "Correlation of numeric columns", *r.Correlation)
	}
}

// RenderMatrix renders a square metric matrix, unavailable cells blank.
func RenderMatrix(w io.Writer, title string, m engine.Matrix) {
	t := newWriter(w, title)
	header := table.Row{""}
	for _, c := range m.Columns {
		header = append(header, c)
	}
	t.AppendHeader(header)
	for i, row := range m.Values {
		cells := table.Row{m.Columns[i]}
		for _, cell := range row {
			if cell.Available {
				cells = append(cells, fmt.Sprintf("%.2f", cell.Value))
			} else {
				cells = append(cells, "")
			}
		}
		t.AppendRow(cells)
	}
	t.Render()
}

// RenderProfiles renders one line per column profile.
func RenderProfiles(w io.Writer, profiles []schema.Profile) {
	t := newWriter(w, "Columns")
	t.AppendHeader(table.Row{"Column", "Class", "Kind", "Layout", "Nulls", "Unique", "Cardinality", "Samples"})
	for _, p := range profiles {
		t.AppendRow(table.Row{
			p.Name, p.Class.String(), p.Kind, p.Layout,
			p.NullCount, p.UniqueCount, p.CardinalityHint,
			strings.Join(p.SampleValues, ", "),
		})
	}
	t.Render()
}
