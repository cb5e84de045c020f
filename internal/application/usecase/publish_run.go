package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/dreschagin/vrops-selfmon/internal/application/dto"
	"github.com/dreschagin/vrops-selfmon/internal/application/port"
	"github.com/dreschagin/vrops-selfmon/internal/domain/entity"
	"github.com/dreschagin/vrops-selfmon/internal/domain/repository"
	"github.com/dreschagin/vrops-selfmon/internal/domain/service"
	"github.com/dreschagin/vrops-selfmon/internal/domain/valueobject"
	"github.com/dreschagin/vrops-selfmon/pkg/logger"
)

// PublishRunSinks groups the optional run sinks. Nil fields are skipped.
type PublishRunSinks struct {
	Notifier  port.RunNotifier
	Events    port.EventPublisher
	Uploader  *UploadReportsUseCase
	HostProbe port.HostProbe
	Metrics   port.MetricsPublisher
	Recorder  port.RunMetricsRecorder
	Samples   repository.SampleRepository
	Status    port.RunStatusCache
}

// PublishRunUseCase fans run lifecycle events out to every configured sink.
// Sink failures are logged and never change the run status.
type PublishRunUseCase struct {
	sinks     PublishRunSinks
	validator *service.MetricValidator
	logger    *logger.Logger
	now       func() time.Time
}

func NewPublishRunUseCase(sinks PublishRunSinks, validator *service.MetricValidator, log *logger.Logger) *PublishRunUseCase {
	return &PublishRunUseCase{
		sinks:     sinks,
		validator: validator,
		logger:    log,
		now:       time.Now,
	}
}

func (uc *PublishRunUseCase) OnState(ctx context.Context, summary *entity.RunSummary) {
	event := &dto.RunEventDTO{
		Type:      "state",
		RunID:     summary.RunID,
		State:     summary.State.String(),
		Timestamp: uc.now().UTC(),
	}
	uc.emit(ctx, event)
}

func (uc *PublishRunUseCase) OnFinished(ctx context.Context, summary *entity.RunSummary, result *entity.CollectionResult) {
	// sinks still run when the run itself was cancelled
	ctx = context.WithoutCancel(ctx)

	if summary.Succeeded() {
		uc.uploadReports(ctx, summary)
	}

	summary.Telemetry = uc.buildTelemetry(ctx, summary)
	telemetry := summary.Telemetry
	if uc.validator != nil {
		valid, errs := uc.validator.FilterValid(telemetry)
		for _, err := range errs {
			uc.logger.Warn("Dropping invalid telemetry point", "run_id", summary.RunID, "error", err.Error())
		}
		telemetry = valid
	}

	if uc.sinks.Metrics != nil && len(telemetry) > 0 {
		if err := uc.sinks.Metrics.PublishBatch(ctx, telemetry); err != nil {
			uc.logger.Warn("Failed to publish run telemetry", "run_id", summary.RunID, "error", err.Error())
		}
	}

	if uc.sinks.Recorder != nil {
		uc.sinks.Recorder.ObserveRun(summary)
	}

	if uc.sinks.Samples != nil {
		if summary.Succeeded() && result != nil {
			if err := uc.sinks.Samples.SaveRun(ctx, summary, result); err != nil {
				uc.logger.Warn("Failed to archive collected series", "run_id", summary.RunID, "error", err.Error())
			}
		}
		if len(telemetry) > 0 {
			if err := uc.sinks.Samples.SaveTelemetry(ctx, telemetry); err != nil {
				uc.logger.Warn("Failed to archive run telemetry", "run_id", summary.RunID, "error", err.Error())
			}
		}
	}

	summaryDTO := dto.NewRunSummaryDTO(summary)
	if uc.sinks.Status != nil {
		if err := uc.sinks.Status.SaveLatest(ctx, summaryDTO); err != nil {
			uc.logger.Warn("Failed to cache run status", "run_id", summary.RunID, "error", err.Error())
		}
	}

	uc.emit(ctx, &dto.RunEventDTO{
		Type:      "finished",
		RunID:     summary.RunID,
		State:     summary.State.String(),
		Timestamp: uc.now().UTC(),
		Summary:   summaryDTO,
	})
}

func (uc *PublishRunUseCase) emit(ctx context.Context, event *dto.RunEventDTO) {
	if uc.sinks.Notifier != nil {
		uc.sinks.Notifier.BroadcastRunEvent(event)
	}
	if uc.sinks.Events != nil {
		if err := uc.sinks.Events.PublishRunEvent(ctx, event); err != nil {
			uc.logger.Warn("Failed to publish run event", "run_id", event.RunID, "type", event.Type, "error", err.Error())
		}
	}
}

func (uc *PublishRunUseCase) uploadReports(ctx context.Context, summary *entity.RunSummary) {
	if uc.sinks.Uploader == nil {
		return
	}

	var files []port.ReportFile
	for _, node := range summary.Nodes {
		for _, out := range node.Outputs {
			files = append(files, port.ReportFile{
				Node:        node.Node,
				Kind:        out.Kind,
				Format:      out.Format,
				Path:        out.Path,
				ContentType: out.ContentType,
				SizeBytes:   out.SizeBytes,
			})
		}
	}
	if len(files) == 0 {
		return
	}

	uploaded, err := uc.sinks.Uploader.Execute(ctx, UploadReportsCommand{
		RunID:       summary.RunID,
		Host:        summary.Host,
		CollectedAt: summary.StartedAt,
		Files:       files,
	})
	if err != nil {
		uc.logger.Warn("Failed to upload reports", "run_id", summary.RunID, "error", err.Error())
		return
	}

	byNode := make(map[string][]string, len(summary.Nodes))
	for _, item := range uploaded.Items {
		byNode[item.Node] = append(byNode[item.Node], item.S3Key)
	}
	for i := range summary.Nodes {
		summary.Nodes[i].Artifacts = byNode[summary.Nodes[i].Node]
	}

	uc.logger.Info("Uploaded reports", "run_id", summary.RunID, "files", len(uploaded.Items))
}

func (uc *PublishRunUseCase) buildTelemetry(ctx context.Context, summary *entity.RunSummary) []*entity.Metric {
	collectedAt := summary.FinishedAt
	if collectedAt.IsZero() {
		collectedAt = uc.now()
	}

	raw := []struct {
		metricType valueobject.MetricType
		value      float64
	}{
		{valueobject.RunDuration, summary.Duration().Seconds()},
		{valueobject.ObjectsCollected, float64(summary.ObjectsCollected)},
		{valueobject.ObjectsSkipped, float64(summary.ObjectsSkipped)},
		{valueobject.SeriesCollected, float64(summary.SeriesCollected)},
	}

	metrics := make([]*entity.Metric, 0, len(raw)+4)
	for _, r := range raw {
		m, err := entity.NewMetricWithDefaultUnit(summary.RunID, r.metricType, r.value, collectedAt)
		if err != nil {
			uc.logger.Warn("Skipping run telemetry point", "type", r.metricType.String(), "error", err.Error())
			continue
		}
		m.SetLabel("host", summary.Host)
		m.SetLabel("status", summary.Status.String())
		metrics = append(metrics, m)
	}

	if uc.sinks.HostProbe == nil {
		return metrics
	}

	samples, err := uc.sinks.HostProbe.Sample(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		uc.logger.Warn("Host probe failed", "run_id", summary.RunID, "error", err.Error())
	}
	for _, s := range samples {
		m, err := entity.NewMetricWithDefaultUnit(summary.RunID, s.Type, s.Value, collectedAt)
		if err != nil {
			uc.logger.Warn("Skipping host sample", "type", s.Type.String(), "error", err.Error())
			continue
		}
		m.SetLabel("host", summary.Host)
		for k, v := range s.Labels {
			m.SetLabel(k, v)
		}
		metrics = append(metrics, m)
	}

	return metrics
}
