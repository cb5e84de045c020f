package export

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
)

func init() {
	Register(&DelimitedFormat{name: "csv", delimiter: ',', contentType: "text/csv"})
	Register(&DelimitedFormat{name: "tsv", delimiter: '\t', contentType: "text/tab-separated-values"})
}

// DelimitedFormat handles CSV and TSV files.
type DelimitedFormat struct {
	name        string
	delimiter   rune
	contentType string
}

func (f *DelimitedFormat) Name() string        { return f.name }
func (f *DelimitedFormat) Extension() string   { return "." + f.name }
func (f *DelimitedFormat) ContentType() string { return f.contentType }

func (f *DelimitedFormat) Write(w io.Writer, table Table) error {
	buffered := bufio.NewWriter(w)
	writer := csv.NewWriter(buffered)
	writer.Comma = f.delimiter

	header := make([]string, len(table.Columns))
	for i, col := range table.Columns {
		header[i] = col.Name
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write %s header: %w", f.name, err)
	}

	record := make([]string, len(table.Columns))
	for _, row := range table.Rows {
		for i := range record {
			record[i] = ""
			if i < len(row) {
				record[i] = formatCell(row[i])
			}
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write %s row: %w", f.name, err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return err
	}
	return buffered.Flush()
}

func formatCell(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		if val != val { // NaN
			return ""
		}
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", val)
	}
}
