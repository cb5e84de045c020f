package export

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"math"
)

func init() {
	Register(&JSONLFormat{})
}

// JSONLFormat writes one JSON object per row with keys in column order.
type JSONLFormat struct{}

func (f *JSONLFormat) Name() string        { return "jsonl" }
func (f *JSONLFormat) Extension() string   { return ".jsonl" }
func (f *JSONLFormat) ContentType() string { return "application/x-ndjson" }

func (f *JSONLFormat) Write(w io.Writer, table Table) error {
	buffered := bufio.NewWriter(w)

	keys := make([][]byte, len(table.Columns))
	for i, col := range table.Columns {
		key, err := json.Marshal(col.Name)
		if err != nil {
			return fmt.Errorf("failed to encode column %s: %w", col.Name, err)
		}
		keys[i] = key
	}

	for _, row := range table.Rows {
		if err := buffered.WriteByte('{'); err != nil {
			return err
		}
		for i := range table.Columns {
			if i > 0 {
				_ = buffered.WriteByte(',')
			}
			_, _ = buffered.Write(keys[i])
			_ = buffered.WriteByte(':')

			var cell any
			if i < len(row) {
				cell = row[i]
			}
			if v, ok := cell.(float64); ok && (math.IsNaN(v) || math.IsInf(v, 0)) {
				cell = nil
			}

			value, err := json.Marshal(cell)
			if err != nil {
				return fmt.Errorf("failed to encode %s: %w", table.Columns[i].Name, err)
			}
			_, _ = buffered.Write(value)
		}
		if _, err := buffered.WriteString("}\n"); err != nil {
			return err
		}
	}

	return buffered.Flush()
}
