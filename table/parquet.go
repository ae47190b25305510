package table

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
)

// ReadParquet reads a Parquet file through Arrow. Integer and floating
// point columns keep their storage; timestamps and dates become KindTime;
// every other Arrow type is carried as text.
func ReadParquet(r io.Reader) (*Table, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, &LoadError{Source: "parquet", Err: err}
	}

	pf, err := file.NewParquetReader(bytes.NewReader(data), file.WithReadProps(&parquet.ReaderProperties{}))
	if err != nil {
		return nil, &LoadError{Source: "parquet", Err: err}
	}
	defer pf.Close()

	reader, err := pqarrow.NewFileReader(pf, pqarrow.ArrowReadProperties{}, memory.NewGoAllocator())
	if err != nil {
		return nil, &LoadError{Source: "parquet", Err: err}
	}

	tbl, err := reader.ReadTable(context.Background())
	if err != nil {
		return nil, &LoadError{Source: "parquet", Err: err}
	}
	defer tbl.Release()

	if tbl.NumCols() == 0 {
		return nil, &LoadError{Source: "parquet", Err: ErrNoColumns}
	}

	fields := tbl.Schema().Fields()
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.Name
	}
	names = uniqueNames(names)

	columns := make([]Column, len(fields))
	for i := range fields {
		col, err := arrowColumn(names[i], fields[i].Type, tbl.Column(i).Data().Chunks())
		if err != nil {
			return nil, &LoadError{Source: "parquet", Err: err}
		}
		columns[i] = col
	}

	t, err := New(columns...)
	if err != nil {
		return nil, &LoadError{Source: "parquet", Err: err}
	}
	return t, nil
}

func arrowKind(dt arrow.DataType) Kind {
	switch dt.ID() {
	case arrow.INT8, arrow.INT16, arrow.INT32, arrow.INT64,
		arrow.UINT8, arrow.UINT16, arrow.UINT32, arrow.UINT64:
		return KindInt
	case arrow.FLOAT16, arrow.FLOAT32, arrow.FLOAT64:
		return KindFloat
	case arrow.TIMESTAMP, arrow.DATE32, arrow.DATE64:
		return KindTime
	default:
		return KindString
	}
}

func arrowColumn(name string, dt arrow.DataType, chunks []arrow.Array) (Column, error) {
	kind := arrowKind(dt)
	col := Column{Name: name, Kind: kind}

	for _, chunk := range chunks {
		for i := 0; i < chunk.Len(); i++ {
			if chunk.IsNull(i) {
				col.Values = append(col.Values, NullValue(kind))
				continue
			}
			v, err := arrowValue(chunk, i)
			if err != nil {
				return Column{}, fmt.Errorf("column %q: %w", name, err)
			}
			col.Values = append(col.Values, v)
		}
	}
	return col, nil
}

func arrowValue(arr arrow.Array, i int) (Value, error) {
	switch a := arr.(type) {
	case *array.Int8:
		return IntValue(int64(a.Value(i))), nil
	case *array.Int16:
		return IntValue(int64(a.Value(i))), nil
	case *array.Int32:
		return IntValue(int64(a.Value(i))), nil
	case *array.Int64:
		return IntValue(a.Value(i)), nil
	case *array.Uint8:
		return IntValue(int64(a.Value(i))), nil
	case *array.Uint16:
		return IntValue(int64(a.Value(i))), nil
	case *array.Uint32:
		return IntValue(int64(a.Value(i))), nil
	case *array.Uint64:
		return IntValue(int64(a.Value(i))), nil
	case *array.Float16:
		return FloatValue(float64(a.Value(i).Float32())), nil
	case *array.Float32:
		return FloatValue(float64(a.Value(i))), nil
	case *array.Float64:
		return FloatValue(a.Value(i)), nil
	case *array.Timestamp:
		unit := a.DataType().(*arrow.TimestampType).Unit
		return TimeValue(a.Value(i).ToTime(unit).UTC()), nil
	case *array.Date32:
		return TimeValue(a.Value(i).ToTime().UTC()), nil
	case *array.Date64:
		return TimeValue(a.Value(i).ToTime().UTC()), nil
	case *array.String:
		return StringValue(a.Value(i)), nil
	case *array.LargeString:
		return StringValue(a.Value(i)), nil
	}

	if arrowKind(arr.DataType()) != KindString {
		return Value{}, fmt.Errorf("unsupported arrow type %s", arr.DataType())
	}
	return StringValue(arr.ValueStr(i)), nil
}
