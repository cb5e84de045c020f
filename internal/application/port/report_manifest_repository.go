package port

import (
	"context"
	"time"
)

// ReportManifest запись индекса выгруженного файла отчета.
type ReportManifest struct {
	RunID        string
	Host         string
	Node         string
	Kind         string
	Format       string
	S3Key        string
	URL          string
	ContentType  string
	SizeBytes    int64
	CollectedAt  time.Time
	LastModified time.Time
	ExpiresAt    time.Time
}

// ReportListQuery определяет параметры выборки отчетов узла.
type ReportListQuery struct {
	Node   string
	Kind   string
	Limit  int
	Cursor string
	From   time.Time
	To     time.Time
}

// ReportListPage содержит результат выборки и курсор следующей страницы.
type ReportListPage struct {
	Items      []ReportManifest
	NextCursor string
}

// ReportManifestRepository определяет интерфейс индекса отчетов.
type ReportManifestRepository interface {
	PutBatch(ctx context.Context, records []ReportManifest) error
	ListByNode(ctx context.Context, query ReportListQuery) (ReportListPage, error)
}
