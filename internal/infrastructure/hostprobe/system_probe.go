package hostprobe

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dreschagin/vrops-selfmon/internal/application/port"
)

// probe одно измерение хоста
type probe func(ctx context.Context) ([]port.HostSample, error)

// SystemProbe собирает нагрузку хоста сборщика через gopsutil.
// Реализует интерфейс port.HostProbe
type SystemProbe struct {
	probes []probe
}

// NewSystemProbe создает probe для CPU, памяти, процесса и разделов с каталогами отчетов
func NewSystemProbe(diskPaths []string) *SystemProbe {
	probes := []probe{
		sampleCPU(500 * time.Millisecond),
		sampleMemory,
		sampleProcessRSS,
	}
	if paths := uniquePaths(diskPaths); len(paths) > 0 {
		probes = append(probes, sampleDisks(paths))
	}

	return &SystemProbe{probes: probes}
}

// Sample запускает все измерения параллельно.
// Порядок результата совпадает с порядком измерений; ошибки отдельных измерений объединяются.
func (p *SystemProbe) Sample(ctx context.Context) ([]port.HostSample, error) {
	results := make([][]port.HostSample, len(p.probes))
	errs := make([]error, len(p.probes))

	var wg sync.WaitGroup
	for i, measure := range p.probes {
		wg.Add(1)
		go func(i int, measure probe) {
			defer wg.Done()
			results[i], errs[i] = measure(ctx)
		}(i, measure)
	}
	wg.Wait()

	samples := make([]port.HostSample, 0, len(p.probes))
	for _, r := range results {
		samples = append(samples, r...)
	}

	return samples, errors.Join(errs...)
}

func uniquePaths(paths []string) []string {
	seen := make(map[string]struct{}, len(paths))
	out := make([]string, 0, len(paths))
	for _, path := range paths {
		path = strings.TrimSpace(path)
		if path == "" {
			continue
		}
		if abs, err := filepath.Abs(path); err == nil {
			path = abs
		}
		if _, ok := seen[path]; ok {
			continue
		}
		seen[path] = struct{}{}
		out = append(out, path)
	}
	return out
}
