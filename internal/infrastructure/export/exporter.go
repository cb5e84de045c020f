package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dreschagin/vrops-selfmon/internal/application/port"
	"github.com/dreschagin/vrops-selfmon/internal/domain/entity"
	"github.com/dreschagin/vrops-selfmon/pkg/logger"
)

// Exporter writes <node>_metrics and <node>_metric_names files in every configured format.
type Exporter struct {
	formats []Format
	logger  *logger.Logger
}

func NewExporter(formatNames []string, log *logger.Logger) (*Exporter, error) {
	formats, err := Resolve(formatNames)
	if err != nil {
		return nil, err
	}
	return &Exporter{formats: formats, logger: log}, nil
}

func (e *Exporter) ExportNode(ctx context.Context, dir string, table *entity.NodeTable) ([]port.ReportFile, error) {
	node := table.Node().String()
	metrics := MetricsTable(table)
	names := NamesTable(table)

	files := make([]port.ReportFile, 0, 2*len(e.formats))
	for _, format := range e.formats {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		for _, item := range []struct {
			kind   string
			suffix string
			table  Table
		}{
			{port.ReportKindMetrics, "_metrics", metrics},
			{port.ReportKindNames, "_metric_names", names},
		} {
			path := filepath.Join(dir, node+item.suffix+format.Extension())
			size, err := writeFile(path, format, item.table)
			if err != nil {
				return nil, fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
			}

			files = append(files, port.ReportFile{
				Node:        node,
				Kind:        item.kind,
				Format:      format.Name(),
				Path:        path,
				ContentType: format.ContentType(),
				SizeBytes:   size,
			})
			e.logger.Debug("Report written", "node", node, "path", path, "bytes", size)
		}
	}

	return files, nil
}

// writeFile writes through a temp file in the same directory so a failed export never leaves a partial report.
func writeFile(path string, format Format, table Table) (int64, error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return 0, err
	}
	tmpPath := tmp.Name()

	if err := format.Write(tmp, table); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return 0, err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return 0, err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return 0, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// MetricsTable lays the node's series out as rows by timestamp and columns by short id.
func MetricsTable(table *entity.NodeTable) Table {
	frame := table.Frame()

	columns := make([]Column, 0, len(frame.Columns)+1)
	columns = append(columns, Column{Name: "timestamp", Kind: KindInt})
	for _, id := range frame.Columns {
		columns = append(columns, Column{Name: id.String(), Kind: KindFloat})
	}

	rows := make([][]any, 0, len(frame.Rows))
	for _, fr := range frame.Rows {
		row := make([]any, len(columns))
		row[0] = fr.Timestamp
		for i, v := range fr.Values {
			if fr.Present[i] {
				row[i+1] = v
			}
		}
		rows = append(rows, row)
	}

	return Table{Columns: columns, Rows: rows}
}

// NamesTable lists index, kpi marker, short id, service and stat key per series.
// The leading index column is the zero-based row number expected by existing report readers.
func NamesTable(table *entity.NodeTable) Table {
	columns := []Column{
		{Name: "index", Kind: KindInt},
		{Name: "kpi", Kind: KindString},
		{Name: "name", Kind: KindString},
		{Name: "object", Kind: KindString},
		{Name: "metric", Kind: KindString},
	}

	names := table.Names()
	rows := make([][]any, 0, len(names))
	for i, d := range names {
		rows = append(rows, []any{int64(i), d.KPIMarker(), d.ShortID.String(), d.Service, d.Key})
	}

	return Table{Columns: columns, Rows: rows}
}
