package table

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ============================================================================
// LOADER — CSV / XLSX / Parquet → Table
// ============================================================================
// Every call re-reads and re-parses its source. Nothing is cached between
// calls; the caller owns the returned Table.
// ============================================================================

// ErrNoColumns is returned (wrapped in a LoadError) for sources without a
// header row.
var ErrNoColumns = errors.New("source has no columns")

// LoadError reports an unreadable or unparseable source.
type LoadError struct {
	Source string
	Err    error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load %s: %v", e.Source, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// LoadFile reads a table from disk. The format follows the file extension:
// .xlsx and .parquet have dedicated readers, anything else is read as CSV.
func LoadFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &LoadError{Source: path, Err: err}
	}
	defer f.Close()

	return Read(path, f)
}

// Read parses r according to the extension of name (a path or an uploaded
// file name).
func Read(name string, r io.Reader) (*Table, error) {
	var (
		t   *Table
		err error
	)
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx":
		t, err = ReadXLSX(r)
	case ".parquet":
		t, err = ReadParquet(r)
	default:
		t, err = ReadCSV(r)
	}

	var le *LoadError
	if errors.As(err, &le) && name != "" {
		le.Source = name
	}
	return t, err
}

// ReadCSV parses CSV text. The first record is the header; every later
// record is a data row. Rows with too few fields are padded with nulls and
// extra fields are ignored.
func ReadCSV(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, &LoadError{Source: "csv", Err: err}
	}
	if len(records) == 0 {
		return nil, &LoadError{Source: "csv", Err: ErrNoColumns}
	}

	t, err := FromRecords(records[0], records[1:])
	if err != nil {
		return nil, &LoadError{Source: "csv", Err: err}
	}
	return t, nil
}

// FromRecords builds a table from a header and text rows, inferring each
// column's storage kind:
//
//   - every non-null cell parses as an integer → KindInt
//   - every non-null cell parses as a float    → KindFloat
//   - otherwise (including all-null columns)   → KindString
func FromRecords(header []string, rows [][]string) (*Table, error) {
	if len(header) == 0 {
		return nil, ErrNoColumns
	}

	names := uniqueNames(header)
	columns := make([]Column, len(names))
	for i, name := range names {
		raw := make([]string, len(rows))
		for j, row := range rows {
			if i < len(row) {
				raw[j] = row[i]
			}
		}
		columns[i] = inferColumn(name, raw)
	}

	return New(columns...)
}

// nullTokens are the cell texts read as missing values.
var nullTokens = map[string]bool{
	"": true, "NA": true, "N/A": true, "n/a": true, "NaN": true, "nan": true,
	"null": true, "NULL": true, "None": true, "#N/A": true, "<NA>": true,
}

// IsNullToken reports whether a raw cell reads as a missing value.
func IsNullToken(s string) bool {
	return nullTokens[strings.TrimSpace(s)]
}

func inferColumn(name string, raw []string) Column {
	allInt, allFloat, seen := true, true, false
	for _, s := range raw {
		s = strings.TrimSpace(s)
		if nullTokens[s] {
			continue
		}
		seen = true
		if allInt {
			if _, err := strconv.ParseInt(s, 10, 64); err != nil {
				allInt = false
			}
		}
		if !allInt {
			if _, err := strconv.ParseFloat(s, 64); err != nil {
				allFloat = false
				break
			}
		}
	}

	kind := KindString
	switch {
	case !seen:
	case allInt:
		kind = KindInt
	case allFloat:
		kind = KindFloat
	}

	values := make([]Value, len(raw))
	for i, s := range raw {
		s = strings.TrimSpace(s)
		if nullTokens[s] {
			values[i] = NullValue(kind)
			continue
		}
		switch kind {
		case KindInt:
			n, _ := strconv.ParseInt(s, 10, 64)
			values[i] = IntValue(n)
		case KindFloat:
			f, _ := strconv.ParseFloat(s, 64)
			values[i] = FloatValue(f)
		default:
			values[i] = StringValue(s)
		}
	}

	return Column{Name: name, Kind: kind, Values: values}
}

// uniqueNames trims header cells and de-duplicates repeats as name.1,
// name.2, …
func uniqueNames(header []string) []string {
	seen := make(map[string]int, len(header))
	out := make([]string, len(header))
	for i, h := range header {
		name := strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if name == "" {
			name = fmt.Sprintf("column_%d", i+1)
		}
		if n, dup := seen[name]; dup {
			seen[name] = n + 1
			name = fmt.Sprintf("%s.%d", name, n+1)
		} else {
			seen[name] = 0
		}
		out[i] = name
	}
	return out
}
