package table

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// ReadXLSX reads the first worksheet of a workbook. The first row is the
// header; storage kinds are inferred exactly as for CSV.
func ReadXLSX(r io.Reader) (*Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, &LoadError{Source: "xlsx", Err: err}
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, &LoadError{Source: "xlsx", Err: ErrNoColumns}
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, &LoadError{Source: "xlsx", Err: fmt.Errorf("sheet %q: %w", sheets[0], err)}
	}
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, &LoadError{Source: "xlsx", Err: ErrNoColumns}
	}

	t, err := FromRecords(rows[0], rows[1:])
	if err != nil {
		return nil, &LoadError{Source: "xlsx", Err: err}
	}
	return t, nil
}
