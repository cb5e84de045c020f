package port

import (
	"context"

	"github.com/dreschagin/vrops-selfmon/internal/domain/entity"
)

const (
	ReportKindMetrics = "metrics"
	ReportKindNames   = "names"
)

// ReportFile описывает один записанный файл отчета
type ReportFile struct {
	Node        string
	Kind        string
	Format      string
	Path        string
	ContentType string
	SizeBytes   int64
}

// ReportExporter записывает таблицы узла в файлы отчета (Port)
type ReportExporter interface {
	// ExportNode пишет таблицу данных и таблицу имен узла во все настроенные форматы
	ExportNode(ctx context.Context, dir string, table *entity.NodeTable) ([]ReportFile, error)
}
