// Package helpers writes tables and reports out of the process: CSV and
// spreadsheet exports, and plain-text renderings for terminals.
package helpers

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/spektr-org/lens/table"
)

// ============================================================================
// CSV HELPER — Writes a table as CSV
// ============================================================================
// Cells are written with the same text a loaded table shows: nulls become
// empty fields, midnight times print as dates. Writing a table and reading
// it back yields the same column kinds.
// ============================================================================

// WriteCSV writes t, header first, to w.
func WriteCSV(w io.Writer, t *table.Table) error {
	cw := csv.NewWriter(w)
	if err := cw.WriteAll(t.Records()); err != nil {
		return fmt.Errorf("failed to write CSV: %w", err)
	}
	return nil
}
