package hostprobe

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/dreschagin/vrops-selfmon/internal/application/port"
	"github.com/dreschagin/vrops-selfmon/internal/domain/valueobject"
)

func staticProbe(samples ...port.HostSample) probe {
	return func(context.Context) ([]port.HostSample, error) {
		return samples, nil
	}
}

func TestSystemProbe_KeepsOrderAndJoinsErrors(t *testing.T) {
	p := &SystemProbe{probes: []probe{
		staticProbe(port.HostSample{Type: valueobject.HostCPU, Value: 10}),
		func(context.Context) ([]port.HostSample, error) { return nil, errors.New("no procfs") },
		staticProbe(port.HostSample{Type: valueobject.HostMemory, Value: 20}),
	}}

	samples, err := p.Sample(context.Background())
	if err == nil || err.Error() != "no procfs" {
		t.Fatalf("expected joined probe error, got %v", err)
	}
	if len(samples) != 2 {
		t.Fatalf("expected 2 samples, got %d", len(samples))
	}
	if samples[0].Type != valueobject.HostCPU || samples[1].Type != valueobject.HostMemory {
		t.Fatalf("unexpected order: %+v", samples)
	}
}

func TestSampleDisks_ReportsReachablePaths(t *testing.T) {
	dir := t.TempDir()
	measure := sampleDisks([]string{dir, filepath.Join(dir, "missing", "deeper")})

	samples, err := measure(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(samples) != 1 {
		t.Fatalf("expected 1 sample, got %d", len(samples))
	}
	if samples[0].Type != valueobject.ReportDisk || samples[0].Labels["path"] != dir {
		t.Fatalf("unexpected sample: %+v", samples[0])
	}
	if samples[0].Value < 0 || samples[0].Value > 100 {
		t.Fatalf("expected percentage, got %v", samples[0].Value)
	}
}

func TestSampleProcessRSS(t *testing.T) {
	samples, err := sampleProcessRSS(context.Background())
	if err != nil {
		t.Skipf("process info unavailable: %v", err)
	}
	if len(samples) != 1 || samples[0].Type != valueobject.ProcessRSS || samples[0].Value <= 0 {
		t.Fatalf("unexpected samples: %+v", samples)
	}
}

func TestUniquePaths(t *testing.T) {
	dir := t.TempDir()
	got := uniquePaths([]string{dir, " ", dir + string(filepath.Separator), dir})
	if len(got) != 1 || got[0] != dir {
		t.Fatalf("expected single cleaned path, got %v", got)
	}
}
