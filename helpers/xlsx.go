package helpers

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/spektr-org/lens/table"
)

// DefaultSheet is the sheet name exports write to.
const DefaultSheet = "Data"

// WriteXLSX writes t as a single-sheet workbook. Numeric cells are stored
// as numbers, times as formatted text, nulls as empty cells.
func WriteXLSX(w io.Writer, t *table.Table, sheet string) error {
	if sheet == "" {
		sheet = DefaultSheet
	}

	f := excelize.NewFile()
	defer f.Close()

	// Rename the default sheet rather than add one, so the workbook has a
	// single sheet and reads back through the loader's first-sheet rule.
	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	header := make([]any, t.NumCols())
	for i, name := range t.Names() {
		header[i] = name
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for r := 0; r < t.NumRows(); r++ {
		cells := make([]any, t.NumCols())
		for c, v := range t.Row(r) {
			cells[c] = cellValue(v)
		}
		axis, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, axis, &cells); err != nil {
			return fmt.Errorf("failed to write row %d: %w", r+1, err)
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func cellValue(v table.Value) any {
	if v.Null {
		return nil
	}
	switch v.Kind {
	case table.KindInt:
		return v.Int
	case table.KindFloat:
		return v.Float
	default:
		return v.String()
	}
}
