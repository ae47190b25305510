package engine

import (
	"fmt"

	"github.com/spektr-org/lens/table"
)

// ============================================================================
// TABLE BUILDER — Produces TableData from rows or groups
// ============================================================================

// BuildTable renders the rows of t, one TableData row per table row.
func BuildTable(title string, t *table.Table) *TableData {
	columns := make([]Column, 0, t.NumCols())
	for i := 0; i < t.NumCols(); i++ {
		col := t.ColumnAt(i)
		c := Column{Key: col.Name, Label: LabelForDimension(col.Name), Type: "text", Align: "left"}
		switch {
		case col.Kind.IsNumeric():
			c.Type, c.Align = "number", "right"
		case col.Kind == table.KindTime:
			c.Type = "datetime"
		}
		columns = append(columns, c)
	}

	records := t.Records()
	return &TableData{
		Title:   title,
		Columns: columns,
		Rows:    records[1:],
	}
}

// BuildGroupTable renders aggregated groups with a total row.
func BuildGroupTable(title, keyLabel, aggregation string, groups []Group, unit string) *TableData {
	columns := []Column{
		{Key: "group", Label: keyLabel, Type: "text", Align: "left"},
		{Key: "value", Label: LabelForAggregation(aggregation), Type: "number", Align: "right"},
		{Key: "count", Label: "Count", Type: "number", Align: "center"},
	}

	rows := make([][]string, 0, len(groups))
	var totalValue float64
	var totalCount int

	for _, g := range groups {
		rows = append(rows, []string{
			g.Label,
			formatValue(g.Value, aggregation, unit),
			fmt.Sprintf("%d", g.Count),
		})
		totalValue += g.Value
		totalCount += g.Count
	}

	data := &TableData{
		Title:   title,
		Columns: columns,
		Rows:    rows,
	}

	// Totals of means, minima and maxima mean nothing.
	if aggregation == AggSum || aggregation == AggCount {
		data.Summary = &Summary{
			Label: "Total",
			Values: map[string]string{
				"value": formatValue(totalValue, aggregation, unit),
				"count": FormatInt(totalCount),
			},
		}
	}
	return data
}

func formatValue(v float64, aggregation, unit string) string {
	if aggregation == AggCount {
		return FormatInt(int(v))
	}
	return FormatCurrency(v, unit)
}
