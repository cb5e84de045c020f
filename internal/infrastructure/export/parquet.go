package export

import (
	"fmt"
	"io"
	"sort"

	"github.com/parquet-go/parquet-go"
)

const parquetBatchSize = 1000

func init() {
	Register(&ParquetFormat{})
}

// ParquetFormat writes a table with optional typed columns using the Row API.
type ParquetFormat struct{}

func (f *ParquetFormat) Name() string        { return "parquet" }
func (f *ParquetFormat) Extension() string   { return ".parquet" }
func (f *ParquetFormat) ContentType() string { return "application/vnd.apache.parquet" }

func (f *ParquetFormat) Write(w io.Writer, table Table) error {
	group := make(parquet.Group, len(table.Columns))
	for _, col := range table.Columns {
		group[col.Name] = parquet.Optional(columnNode(col.Kind))
	}
	schema := parquet.NewSchema("report", group)

	// Group fields are laid out in name order; map table positions onto leaf indexes.
	leafOrder := make([]int, len(table.Columns))
	for i := range leafOrder {
		leafOrder[i] = i
	}
	sort.SliceStable(leafOrder, func(a, b int) bool {
		return table.Columns[leafOrder[a]].Name < table.Columns[leafOrder[b]].Name
	})

	writer := parquet.NewWriter(w, schema, parquet.Compression(&parquet.Snappy))

	batch := make([]parquet.Row, 0, parquetBatchSize)
	for _, row := range table.Rows {
		out := make(parquet.Row, len(leafOrder))
		for leaf, colIdx := range leafOrder {
			var cell any
			if colIdx < len(row) {
				cell = row[colIdx]
			}
			out[leaf] = toParquetValue(cell, leaf)
		}
		batch = append(batch, out)

		if len(batch) == parquetBatchSize {
			if _, err := writer.WriteRows(batch); err != nil {
				return fmt.Errorf("failed to write parquet rows: %w", err)
			}
			batch = batch[:0]
		}
	}

	if len(batch) > 0 {
		if _, err := writer.WriteRows(batch); err != nil {
			return fmt.Errorf("failed to write parquet rows: %w", err)
		}
	}

	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to close parquet writer: %w", err)
	}
	return nil
}

func columnNode(kind ColumnKind) parquet.Node {
	switch kind {
	case KindInt:
		return parquet.Int(64)
	case KindFloat:
		return parquet.Leaf(parquet.DoubleType)
	default:
		return parquet.String()
	}
}

func toParquetValue(cell any, columnIndex int) parquet.Value {
	switch v := cell.(type) {
	case int64:
		return parquet.Int64Value(v).Level(0, 1, columnIndex)
	case float64:
		if v != v { // NaN
			return parquet.NullValue().Level(0, 0, columnIndex)
		}
		return parquet.DoubleValue(v).Level(0, 1, columnIndex)
	case string:
		return parquet.ByteArrayValue([]byte(v)).Level(0, 1, columnIndex)
	case nil:
		return parquet.NullValue().Level(0, 0, columnIndex)
	default:
		return parquet.ByteArrayValue([]byte(fmt.Sprintf("%v", v))).Level(0, 1, columnIndex)
	}
}
