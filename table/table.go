// Package table holds the in-memory tabular model shared by every stage of
// the dashboard pipeline, plus the loaders that build it from CSV, XLSX and
// Parquet sources.
//
// A Table is an ordered list of named, typed columns of equal length. Rows
// have no identity beyond their position. Tables handed between pipeline
// stages are treated as immutable: every transformation (Subset, Clone,
// Head) returns a fresh Table whose value slices are not shared with the
// source.
package table

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ============================================================================
// KIND — storage type of a column
// ============================================================================

// Kind is the storage type of a column.
type Kind int

const (
	KindString Kind = iota
	KindInt
	KindFloat
	KindTime
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindTime:
		return "time"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// IsNumeric reports whether the kind stores integers or floats.
func (k Kind) IsNumeric() bool { return k == KindInt || k == KindFloat }

// ============================================================================
// VALUE — one cell
// ============================================================================

// Value is a single typed cell. Null cells carry their column's kind and a
// zero payload.
type Value struct {
	Kind  Kind      `json:"kind"`
	Null  bool      `json:"null,omitempty"`
	Str   string    `json:"str,omitempty"`
	Int   int64     `json:"int,omitempty"`
	Float float64   `json:"float,omitempty"`
	Time  time.Time `json:"time,omitempty"`
}

func StringValue(s string) Value  { return Value{Kind: KindString, Str: s} }
func IntValue(i int64) Value      { return Value{Kind: KindInt, Int: i} }
func FloatValue(f float64) Value  { return Value{Kind: KindFloat, Float: f} }
func TimeValue(t time.Time) Value { return Value{Kind: KindTime, Time: t} }
func NullValue(k Kind) Value      { return Value{Kind: k, Null: true} }

// Number returns the numeric payload of an int or float cell.
// ok is false for null cells and non-numeric kinds.
func (v Value) Number() (float64, bool) {
	if v.Null {
		return 0, false
	}
	switch v.Kind {
	case KindInt:
		return float64(v.Int), true
	case KindFloat:
		return v.Float, true
	}
	return 0, false
}

// String returns the canonical text of the cell. Categorical filters and
// group keys match on this text. Null cells render as "".
func (v Value) String() string {
	if v.Null {
		return ""
	}
	switch v.Kind {
	case KindInt:
		return strconv.FormatInt(v.Int, 10)
	case KindFloat:
		return strconv.FormatFloat(v.Float, 'f', -1, 64)
	case KindTime:
		if h, m, s := v.Time.Clock(); h == 0 && m == 0 && s == 0 && v.Time.Nanosecond() == 0 {
			return v.Time.Format(time.DateOnly)
		}
		return v.Time.Format(time.DateTime)
	default:
		return v.Str
	}
}

// Compare orders two cells: numbers numerically, times chronologically,
// everything else by text. Nulls sort after every non-null value.
func Compare(a, b Value) int {
	switch {
	case a.Null && b.Null:
		return 0
	case a.Null:
		return 1
	case b.Null:
		return -1
	}

	if x, ok := a.Number(); ok {
		if y, ok := b.Number(); ok {
			switch {
			case x < y:
				return -1
			case x > y:
				return 1
			}
			return 0
		}
	}

	if a.Kind == KindTime && b.Kind == KindTime {
		return a.Time.Compare(b.Time)
	}

	return strings.Compare(a.String(), b.String())
}

// ============================================================================
// COLUMN
// ============================================================================

// Column is a named, typed sequence of cells.
type Column struct {
	Name   string  `json:"name"`
	Kind   Kind    `json:"kind"`
	Values []Value `json:"values"`
}

// Len returns the number of cells.
func (c Column) Len() int { return len(c.Values) }

// NullCount returns how many cells are null.
func (c Column) NullCount() int {
	n := 0
	for _, v := range c.Values {
		if v.Null {
			n++
		}
	}
	return n
}

func (c Column) clone() Column {
	values := make([]Value, len(c.Values))
	copy(values, c.Values)
	return Column{Name: c.Name, Kind: c.Kind, Values: values}
}

// ============================================================================
// TABLE
// ============================================================================

// Table is an ordered collection of equal-length columns.
type Table struct {
	columns []Column
	index   map[string]int
	rows    int
}

// New builds a Table from columns. All columns must have the same length
// and distinct names. The columns are copied.
func New(columns ...Column) (*Table, error) {
	t := &Table{index: make(map[string]int, len(columns))}
	for i, c := range columns {
		if _, dup := t.index[c.Name]; dup {
			return nil, fmt.Errorf("duplicate column %q", c.Name)
		}
		if i > 0 && c.Len() != t.rows {
			return nil, fmt.Errorf("column %q has %d values, want %d", c.Name, c.Len(), t.rows)
		}
		t.rows = c.Len()
		t.index[c.Name] = i
		t.columns = append(t.columns, c.clone())
	}
	return t, nil
}

// MustNew is New for fixtures; it panics on error.
func MustNew(columns ...Column) *Table {
	t, err := New(columns...)
	if err != nil {
		panic(err)
	}
	return t
}

func (t *Table) NumRows() int { return t.rows }
func (t *Table) NumCols() int { return len(t.columns) }

// Names returns column names in table order.
func (t *Table) Names() []string {
	names := make([]string, len(t.columns))
	for i, c := range t.columns {
		names[i] = c.Name
	}
	return names
}

// Has reports whether the table has a column with the given name.
func (t *Table) Has(name string) bool {
	_, ok := t.index[name]
	return ok
}

// Column returns the named column. The returned Values slice belongs to the
// table and must not be modified.
func (t *Table) Column(name string) (Column, bool) {
	i, ok := t.index[name]
	if !ok {
		return Column{}, false
	}
	return t.columns[i], true
}

// ColumnAt returns the i-th column (read-only, see Column).
func (t *Table) ColumnAt(i int) Column { return t.columns[i] }

// Value returns the cell at row/column. A missing column or out-of-range row
// yields a null string cell.
func (t *Table) Value(row int, name string) Value {
	i, ok := t.index[name]
	if !ok || row < 0 || row >= t.rows {
		return NullValue(KindString)
	}
	return t.columns[i].Values[row]
}

// Row returns the cells of one row in column order.
func (t *Table) Row(row int) []Value {
	out := make([]Value, len(t.columns))
	for i, c := range t.columns {
		out[i] = c.Values[row]
	}
	return out
}

// SetColumn adds col, or replaces the column of the same name in place.
// It is meant for building a working copy; tables already handed to other
// stages must not be modified.
func (t *Table) SetColumn(col Column) error {
	if len(t.columns) > 0 && col.Len() != t.rows {
		return fmt.Errorf("column %q has %d values, want %d", col.Name, col.Len(), t.rows)
	}
	if len(t.columns) == 0 {
		t.rows = col.Len()
	}
	if i, ok := t.index[col.Name]; ok {
		t.columns[i] = col
		return nil
	}
	t.index[col.Name] = len(t.columns)
	t.columns = append(t.columns, col)
	return nil
}

// Clone returns a deep copy.
func (t *Table) Clone() *Table {
	out := &Table{
		columns: make([]Column, len(t.columns)),
		index:   make(map[string]int, len(t.index)),
		rows:    t.rows,
	}
	for i, c := range t.columns {
		out.columns[i] = c.clone()
		out.index[c.Name] = i
	}
	return out
}

// Subset returns a fresh table holding the given rows, in the given order.
func (t *Table) Subset(rows []int) *Table {
	out := &Table{
		columns: make([]Column, len(t.columns)),
		index:   make(map[string]int, len(t.index)),
		rows:    len(rows),
	}
	for i, c := range t.columns {
		values := make([]Value, len(rows))
		for j, r := range rows {
			values[j] = c.Values[r]
		}
		out.columns[i] = Column{Name: c.Name, Kind: c.Kind, Values: values}
		out.index[c.Name] = i
	}
	return out
}

// Head returns the first n rows (all rows when n exceeds the row count).
func (t *Table) Head(n int) *Table {
	if n > t.rows {
		n = t.rows
	}
	if n < 0 {
		n = 0
	}
	rows := make([]int, n)
	for i := range rows {
		rows[i] = i
	}
	return t.Subset(rows)
}

// Records renders the table as text rows (header first), the shape CSV and
// spreadsheet writers consume.
func (t *Table) Records() [][]string {
	out := make([][]string, 0, t.rows+1)
	out = append(out, t.Names())
	for r := 0; r < t.rows; r++ {
		row := make([]string, len(t.columns))
		for i, c := range t.columns {
			row[i] = c.Values[r].String()
		}
		out = append(out, row)
	}
	return out
}
