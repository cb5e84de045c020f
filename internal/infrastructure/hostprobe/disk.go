package hostprobe

import (
	"context"

	"github.com/dreschagin/vrops-selfmon/internal/application/port"
	"github.com/dreschagin/vrops-selfmon/internal/domain/valueobject"
	"github.com/shirou/gopsutil/v3/disk"
)

// sampleDisks измеряет заполненность разделов, на которых лежат каталоги отчетов.
// Недоступный путь пропускается, ошибка возвращается только если не удалось ни одного измерения.
func sampleDisks(paths []string) probe {
	return func(ctx context.Context) ([]port.HostSample, error) {
		samples := make([]port.HostSample, 0, len(paths))
		var lastErr error

		for _, path := range paths {
			usage, err := disk.UsageWithContext(ctx, path)
			if err != nil {
				lastErr = err
				continue
			}
			samples = append(samples, port.HostSample{
				Type:   valueobject.ReportDisk,
				Value:  usage.UsedPercent,
				Labels: map[string]string{"path": path},
			})
		}

		if len(samples) == 0 && lastErr != nil {
			return nil, lastErr
		}
		return samples, nil
	}
}
