package hostprobe

import (
	"context"
	"strconv"
	"time"

	"github.com/dreschagin/vrops-selfmon/internal/application/port"
	"github.com/dreschagin/vrops-selfmon/internal/domain/valueobject"
	"github.com/shirou/gopsutil/v3/cpu"
)

// sampleCPU измеряет общую загрузку CPU за окно interval
func sampleCPU(interval time.Duration) probe {
	return func(ctx context.Context) ([]port.HostSample, error) {
		percentages, err := cpu.PercentWithContext(ctx, interval, false)
		if err != nil {
			return nil, err
		}
		if len(percentages) == 0 {
			return nil, nil
		}

		cores, _ := cpu.CountsWithContext(ctx, true)

		return []port.HostSample{{
			Type:   valueobject.HostCPU,
			Value:  percentages[0],
			Labels: map[string]string{"cores": strconv.Itoa(cores)},
		}}, nil
	}
}
