package repository

import (
	"context"
	"time"

	"github.com/dreschagin/vrops-selfmon/internal/domain/entity"
	"github.com/dreschagin/vrops-selfmon/internal/domain/valueobject"
)

// SampleRepository определяет архив собранных рядов и телеметрии запусков (Port)
// Реализация находится в Infrastructure слое
type SampleRepository interface {
	// SaveRun сохраняет итог запуска и все ряды его результата одной транзакцией
	SaveRun(ctx context.Context, summary *entity.RunSummary, result *entity.CollectionResult) error

	// SaveTelemetry сохраняет точки телеметрии сборщика
	SaveTelemetry(ctx context.Context, metrics []*entity.Metric) error

	// FindSeries возвращает значения метрики узла в пределах окна, по возрастанию времени
	FindSeries(ctx context.Context, node valueobject.NodeName, key string, window valueobject.TimeRange) (valueobject.TimeSeries, error)

	// DeleteOlderThan удаляет значения старше cutoff и возвращает число удаленных строк
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
