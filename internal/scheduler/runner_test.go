package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dreschagin/vrops-selfmon/internal/application/usecase"
	"github.com/dreschagin/vrops-selfmon/internal/domain/entity"
	"github.com/dreschagin/vrops-selfmon/internal/domain/valueobject"
	"github.com/dreschagin/vrops-selfmon/pkg/logger"
)

type stubCollector struct {
	calls   int
	status  valueobject.RunStatus
	err     error
	started chan struct{}
	release chan struct{}
}

func (c *stubCollector) Execute(ctx context.Context, cmd usecase.RunCollectionCommand) (*entity.RunSummary, error) {
	c.calls++
	if c.started != nil {
		close(c.started)
		<-c.release
	}
	summary := entity.NewRunSummary("vrops.local", time.Unix(1700000000, 0))
	summary.Finish(c.status, time.Unix(1700000005, 0))
	return summary, c.err
}

type stubPruner struct {
	cutoffs []time.Time
	err     error
}

func (p *stubPruner) DeleteOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	p.cutoffs = append(p.cutoffs, cutoff)
	return 3, p.err
}

func okLoader() (usecase.RunCollectionCommand, error) {
	return usecase.RunCollectionCommand{ReportDir: "/tmp/reports"}, nil
}

func newTestRunner(collector Collector, load CommandLoader, pruner Pruner, retention time.Duration) *Runner {
	r := NewRunner(collector, load, pruner, Config{Interval: time.Minute, Retention: retention}, logger.New("error"))
	r.now = func() time.Time { return time.Unix(1700003600, 0) }
	return r
}

func TestRunner_RunOnceStoresSnapshot(t *testing.T) {
	collector := &stubCollector{status: valueobject.StatusSuccess}
	pruner := &stubPruner{}
	r := newTestRunner(collector, okLoader, pruner, time.Hour)

	if _, ok := r.Snapshot(); ok {
		t.Fatal("expected empty snapshot before first run")
	}

	summary, err := r.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary == nil || !summary.Succeeded() {
		t.Fatalf("expected successful summary, got %+v", summary)
	}

	snapshot, ok := r.Snapshot()
	if !ok {
		t.Fatal("expected snapshot after run")
	}
	if snapshot.Status != "SUCCESS" || snapshot.Host != "vrops.local" {
		t.Fatalf("unexpected snapshot: %+v", snapshot)
	}

	if len(pruner.cutoffs) != 1 || !pruner.cutoffs[0].Equal(time.Unix(1700000000, 0)) {
		t.Fatalf("expected prune with cutoff now-retention, got %v", pruner.cutoffs)
	}

	status := r.Status()
	if status.LastError != "" || status.Running {
		t.Fatalf("unexpected status: %+v", status)
	}
}

func TestRunner_FailedRunKeepsSummaryAndError(t *testing.T) {
	collector := &stubCollector{status: valueobject.StatusFailure, err: errors.New("acquire failed")}
	r := newTestRunner(collector, okLoader, nil, time.Hour)

	summary, err := r.RunOnce(context.Background())
	if err == nil || summary == nil {
		t.Fatalf("expected summary and error, got %v %v", summary, err)
	}

	snapshot, ok := r.Snapshot()
	if !ok || snapshot.Status != "FAILURE" {
		t.Fatalf("expected failure snapshot, got %+v", snapshot)
	}
	if r.Status().LastError != "acquire failed" {
		t.Fatalf("expected last error recorded, got %q", r.Status().LastError)
	}
}

func TestRunner_LoaderErrorSkipsCollection(t *testing.T) {
	collector := &stubCollector{status: valueobject.StatusSuccess}
	pruner := &stubPruner{}
	r := newTestRunner(collector, func() (usecase.RunCollectionCommand, error) {
		return usecase.RunCollectionCommand{}, errors.New("open objects.json: no such file")
	}, pruner, time.Hour)

	if _, err := r.RunOnce(context.Background()); err == nil {
		t.Fatal("expected loader error")
	}
	if collector.calls != 0 {
		t.Fatalf("collector must not run, got %d calls", collector.calls)
	}
	if len(pruner.cutoffs) != 0 {
		t.Fatal("prune must not run without a collection")
	}
}

func TestRunner_RejectsOverlappingRuns(t *testing.T) {
	collector := &stubCollector{
		status:  valueobject.StatusSuccess,
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	r := newTestRunner(collector, okLoader, nil, 0)

	done := make(chan error, 1)
	go func() {
		_, err := r.RunOnce(context.Background())
		done <- err
	}()

	<-collector.started
	if !r.Status().Running {
		t.Fatal("expected running status")
	}
	if _, err := r.RunOnce(context.Background()); !errors.Is(err, ErrRunInProgress) {
		t.Fatalf("expected ErrRunInProgress, got %v", err)
	}

	close(collector.release)
	if err := <-done; err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if collector.calls != 1 {
		t.Fatalf("expected single collection, got %d", collector.calls)
	}
}

func TestRunner_PruneDisabledWithoutRetention(t *testing.T) {
	pruner := &stubPruner{}
	r := newTestRunner(&stubCollector{status: valueobject.StatusSuccess}, okLoader, pruner, 0)

	if _, err := r.RunOnce(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pruner.cutoffs) != 0 {
		t.Fatalf("expected no prune, got %v", pruner.cutoffs)
	}
}
