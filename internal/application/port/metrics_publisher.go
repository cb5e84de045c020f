package port

import (
	"context"

	"github.com/dreschagin/vrops-selfmon/internal/domain/entity"
)

// MetricsPublisher defines the interface for publishing collector telemetry to external observability platforms.
type MetricsPublisher interface {
	// PublishBatch publishes multiple metrics in a single operation.
	// Implementations should handle batching constraints (e.g., CloudWatch's 1000 metrics/request limit).
	PublishBatch(ctx context.Context, metrics []*entity.Metric) error

	// Flush forces immediate publication of any buffered metrics.
	// Should be called during graceful shutdown to prevent data loss.
	Flush(ctx context.Context) error
}

// RunMetricsRecorder records run outcomes into a local metrics registry
type RunMetricsRecorder interface {
	ObserveRun(summary *entity.RunSummary)
}
