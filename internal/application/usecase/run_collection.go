package usecase

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/dreschagin/vrops-selfmon/internal/application/port"
	"github.com/dreschagin/vrops-selfmon/internal/domain/entity"
	"github.com/dreschagin/vrops-selfmon/internal/domain/service"
	"github.com/dreschagin/vrops-selfmon/internal/domain/valueobject"
	"github.com/dreschagin/vrops-selfmon/pkg/logger"
)

// RunListener receives run lifecycle callbacks. Implementations must not fail the run.
type RunListener interface {
	OnState(ctx context.Context, summary *entity.RunSummary)
	OnFinished(ctx context.Context, summary *entity.RunSummary, result *entity.CollectionResult)
}

type RunCollectionCommand struct {
	Credentials *entity.Credentials
	Spec        *entity.PayloadSpec
	ReportDir   string
	// Window adds begin/end params unless the credentials payload sets them
	Window time.Duration
}

// RunCollectionUseCase drives one run: acquire, health, collect, export, release
type RunCollectionUseCase struct {
	session    *SessionUseCase
	collector  *CollectMetricsUseCase
	exporter   port.ReportExporter
	aggregator *service.MetricAggregator
	listener   RunListener
	logger     *logger.Logger
	now        func() time.Time
}

func NewRunCollectionUseCase(
	session *SessionUseCase,
	collector *CollectMetricsUseCase,
	exporter port.ReportExporter,
	aggregator *service.MetricAggregator,
	listener RunListener,
	log *logger.Logger,
) *RunCollectionUseCase {
	return &RunCollectionUseCase{
		session:    session,
		collector:  collector,
		exporter:   exporter,
		aggregator: aggregator,
		listener:   listener,
		logger:     log,
		now:        time.Now,
	}
}

// Execute runs the collection and always returns a finished summary.
// The error is non-nil exactly when the summary status is FAILURE.
func (uc *RunCollectionUseCase) Execute(ctx context.Context, cmd RunCollectionCommand) (*entity.RunSummary, error) {
	if cmd.Credentials == nil || cmd.Spec == nil {
		return nil, fmt.Errorf("credentials and payload spec are required")
	}

	summary := entity.NewRunSummary(cmd.Credentials.Host(), uc.now())
	uc.logger.Info("Starting to collect self-monitoring object metrics",
		"run_id", summary.RunID,
		"host", summary.Host,
		"services", cmd.Spec.Len(),
	)
	uc.notifyState(ctx, summary)

	var result *entity.CollectionResult
	err := uc.prepareReportDir(cmd.ReportDir)
	if err == nil {
		result, err = uc.runWithSession(ctx, cmd, summary)
	}

	status := valueobject.StatusSuccess
	if err != nil {
		status = valueobject.StatusFailure
		uc.recordFailure(summary, err)
	}
	summary.Finish(status, uc.now())

	uc.logger.Info("Metric Collection status: "+status.String(), "run_id", summary.RunID)
	uc.logger.Info(fmt.Sprintf("Run time: %.3f seconds", summary.Duration().Seconds()), "run_id", summary.RunID)

	if uc.listener != nil {
		uc.listener.OnFinished(ctx, summary, result)
	}

	return summary, err
}

func (uc *RunCollectionUseCase) prepareReportDir(dir string) error {
	if dir == "" {
		return &EnvelopeError{Stage: StageExport, Kind: KindExport, Message: "report directory is required"}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &EnvelopeError{
			Stage:   StageExport,
			Kind:    KindExport,
			Message: fmt.Sprintf("failed to create report directory: %v", err),
			Err:     err,
		}
	}
	return nil
}

// runWithSession releases the token on every path once it was acquired
func (uc *RunCollectionUseCase) runWithSession(
	ctx context.Context,
	cmd RunCollectionCommand,
	summary *entity.RunSummary,
) (result *entity.CollectionResult, err error) {
	session, err := uc.session.Acquire(ctx, cmd.Credentials)
	if err != nil {
		return nil, err
	}
	uc.advance(ctx, summary, valueobject.StateAuthenticated)

	defer func() {
		summary.ReleaseStatus = uc.session.Release(context.WithoutCancel(ctx), session)
		uc.advance(ctx, summary, valueobject.StateReleased)
	}()

	return uc.collectAndExport(ctx, session, cmd, summary)
}

func (uc *RunCollectionUseCase) collectAndExport(
	ctx context.Context,
	session *entity.Session,
	cmd RunCollectionCommand,
	summary *entity.RunSummary,
) (*entity.CollectionResult, error) {
	if _, err := uc.session.CheckClusterHealth(ctx, session); err != nil {
		return nil, err
	}
	uc.advance(ctx, summary, valueobject.StateHealthChecked)
	uc.advance(ctx, summary, valueobject.StateCollecting)

	params := cmd.Credentials.QueryParams()
	if cmd.Window > 0 {
		window, err := valueobject.NewTimeRangeEndingAt(uc.now(), cmd.Window)
		if err != nil {
			return nil, fmt.Errorf("invalid collection window: %w", err)
		}
		if params.Get("begin") == "" && params.Get("end") == "" {
			params.Set("begin", window.BeginParam())
			params.Set("end", window.EndParam())
		}
	}

	result, _, err := uc.collector.Execute(ctx, CollectMetricsCommand{
		Session: session,
		Spec:    cmd.Spec,
		Params:  params,
		Counter: valueobject.NewShortIDCounter(),
	})
	if err != nil {
		return nil, err
	}

	summary.ObjectsCollected = result.ObjectsCollected()
	summary.ObjectsSkipped = len(result.Skipped())
	summary.SeriesCollected = result.SeriesCount()
	summary.Skipped = result.Skipped()
	summary.KPIs = uc.aggregator.SummarizeKPIs(result)

	uc.advance(ctx, summary, valueobject.StateExporting)

	for _, table := range result.Nodes() {
		files, err := uc.exporter.ExportNode(ctx, cmd.ReportDir, table)
		if err != nil {
			uc.logger.Error(fmt.Sprintf("Unable to save %s metric data, FAILURE", table.Node()), err)
			return result, &EnvelopeError{
				Stage:   StageExport,
				Kind:    KindExport,
				Message: fmt.Sprintf("node %s: %v", table.Node(), err),
				Err:     err,
			}
		}

		summary.Nodes = append(summary.Nodes, nodeReport(table, files))
		uc.logger.Info(fmt.Sprintf("Saved %s metric data, SUCCESS", table.Node()), "series", table.Len())
	}

	return result, nil
}

func nodeReport(table *entity.NodeTable, files []port.ReportFile) entity.NodeReport {
	report := entity.NodeReport{
		Node:   table.Node().String(),
		Series: table.Len(),
	}
	for _, f := range files {
		report.Outputs = append(report.Outputs, entity.ReportOutput{
			Kind:        f.Kind,
			Format:      f.Format,
			Path:        f.Path,
			ContentType: f.ContentType,
			SizeBytes:   f.SizeBytes,
		})
		switch {
		case f.Kind == port.ReportKindMetrics && report.MetricsFile == "":
			report.MetricsFile = f.Path
		case f.Kind == port.ReportKindNames && report.NamesFile == "":
			report.NamesFile = f.Path
		}
	}
	return report
}

func (uc *RunCollectionUseCase) advance(ctx context.Context, summary *entity.RunSummary, to valueobject.RunState) {
	if summary.Advance(to) {
		uc.notifyState(ctx, summary)
	}
}

func (uc *RunCollectionUseCase) notifyState(ctx context.Context, summary *entity.RunSummary) {
	uc.logger.Debug("Run state changed", "run_id", summary.RunID, "state", summary.State.String())
	if uc.listener != nil {
		uc.listener.OnState(ctx, summary)
	}
}

func (uc *RunCollectionUseCase) recordFailure(summary *entity.RunSummary, err error) {
	summary.Error = err.Error()

	if envErr, ok := AsEnvelopeError(err); ok {
		summary.FailureStage = string(envErr.Stage)
		summary.FailureKind = string(envErr.Kind)
		summary.FailureStatus = envErr.StatusCode
		summary.Error = envErr.Message
		uc.logger.Error("Run failed", envErr,
			"run_id", summary.RunID,
			"stage", envErr.Stage,
		)
		return
	}

	summary.FailureStage = "run"
	summary.FailureKind = string(KindTransport)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		summary.FailureKind = "cancelled"
	}
	uc.logger.Error("Run failed", err, "run_id", summary.RunID)
}
