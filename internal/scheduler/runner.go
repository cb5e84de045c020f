package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dreschagin/vrops-selfmon/internal/application/dto"
	"github.com/dreschagin/vrops-selfmon/internal/application/usecase"
	"github.com/dreschagin/vrops-selfmon/internal/domain/entity"
	"github.com/dreschagin/vrops-selfmon/pkg/logger"
)

// ErrRunInProgress is returned when a run is requested while another one is still active.
var ErrRunInProgress = errors.New("collection run already in progress")

// Collector executes a single collection run.
type Collector interface {
	Execute(ctx context.Context, cmd usecase.RunCollectionCommand) (*entity.RunSummary, error)
}

// Pruner drops archived samples older than cutoff.
type Pruner interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// CommandLoader builds the run command. Input files are re-read on every run
// so edits to the object list take effect without a restart.
type CommandLoader func() (usecase.RunCollectionCommand, error)

type Config struct {
	Interval   time.Duration
	RunTimeout time.Duration
	Retention  time.Duration
}

// Status describes the scheduler itself, independent of run outcomes.
type Status struct {
	StartedAt time.Time     `json:"started_at"`
	Interval  time.Duration `json:"interval"`
	LastRunAt time.Time     `json:"last_run_at,omitempty"`
	LastError string        `json:"last_error,omitempty"`
	Running   bool          `json:"running"`
}

type Runner struct {
	collector Collector
	load      CommandLoader
	pruner    Pruner
	cfg       Config
	log       *logger.Logger
	now       func() time.Time

	runMu sync.Mutex

	mu          sync.RWMutex
	startedAt   time.Time
	lastRunAt   time.Time
	lastError   string
	running     bool
	lastSummary *dto.RunSummaryDTO
}

// NewRunner creates a runner. pruner may be nil when the sample archive is disabled.
func NewRunner(collector Collector, load CommandLoader, pruner Pruner, cfg Config, log *logger.Logger) *Runner {
	return &Runner{
		collector: collector,
		load:      load,
		pruner:    pruner,
		cfg:       cfg,
		log:       log,
		now:       time.Now,
		startedAt: time.Now(),
	}
}

// Start runs a collection immediately and then once per interval until ctx is cancelled.
func (r *Runner) Start(ctx context.Context) {
	r.log.Info("Collection scheduler started", "interval", r.cfg.Interval.String())
	r.tick(ctx)

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.tick(ctx)
		case <-ctx.Done():
			r.log.Info("Collection scheduler stopped")
			return
		}
	}
}

func (r *Runner) tick(ctx context.Context) {
	_, err := r.RunOnce(ctx)
	if errors.Is(err, ErrRunInProgress) {
		r.log.Warn("Skipping scheduled run, previous run still active")
	}
	// other errors are already stored and logged by RunOnce
}

// RunOnce executes one run unless another one is active.
// A FAILURE run returns its summary together with the error.
func (r *Runner) RunOnce(ctx context.Context) (*entity.RunSummary, error) {
	if !r.runMu.TryLock() {
		return nil, ErrRunInProgress
	}
	defer r.runMu.Unlock()

	r.setRunning(true)
	defer r.setRunning(false)

	cmd, err := r.load()
	if err != nil {
		wrappedErr := fmt.Errorf("failed to load run inputs: %w", err)
		r.updateFailure(r.now(), wrappedErr)
		r.log.Error("Scheduled run aborted", wrappedErr)
		return nil, wrappedErr
	}

	runCtx := ctx
	if r.cfg.RunTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, r.cfg.RunTimeout)
		defer cancel()
	}

	summary, err := r.collector.Execute(runCtx, cmd)
	runAt := r.now()

	if summary != nil {
		r.storeSummary(dto.NewRunSummaryDTO(summary))
	}
	if err != nil {
		r.updateFailure(runAt, err)
	} else {
		r.updateSuccess(runAt)
	}

	r.prune(ctx)

	return summary, err
}

// Snapshot returns the summary of the last finished run (implements usecase.RunSnapshotSource)
func (r *Runner) Snapshot() (*dto.RunSummaryDTO, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.lastSummary == nil {
		return nil, false
	}
	copied := *r.lastSummary
	copied.Nodes = append([]dto.NodeReportDTO(nil), r.lastSummary.Nodes...)
	return &copied, true
}

func (r *Runner) Status() Status {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return Status{
		StartedAt: r.startedAt,
		Interval:  r.cfg.Interval,
		LastRunAt: r.lastRunAt,
		LastError: r.lastError,
		Running:   r.running,
	}
}

func (r *Runner) prune(ctx context.Context) {
	if r.pruner == nil || r.cfg.Retention <= 0 {
		return
	}

	cutoff := r.now().Add(-r.cfg.Retention)
	deleted, err := r.pruner.DeleteOlderThan(context.WithoutCancel(ctx), cutoff)
	if err != nil {
		r.log.Warn("Failed to prune archived samples", "error", err.Error())
		return
	}
	if deleted > 0 {
		r.log.Info("Pruned archived samples", "deleted", deleted, "cutoff", cutoff.UTC().Format(time.RFC3339))
	}
}

func (r *Runner) setRunning(running bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.running = running
}

func (r *Runner) storeSummary(summary *dto.RunSummaryDTO) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.lastSummary = summary
}

func (r *Runner) updateFailure(runAt time.Time, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.lastRunAt = runAt
	r.lastError = err.Error()
}

func (r *Runner) updateSuccess(runAt time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.lastRunAt = runAt
	r.lastError = ""
}
