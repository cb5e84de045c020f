package hostprobe

import (
	"context"

	"github.com/dreschagin/vrops-selfmon/internal/application/port"
	"github.com/dreschagin/vrops-selfmon/internal/domain/valueobject"
	"github.com/shirou/gopsutil/v3/mem"
)

// sampleMemory измеряет процент занятой памяти хоста
func sampleMemory(ctx context.Context) ([]port.HostSample, error) {
	vmStat, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return nil, err
	}

	return []port.HostSample{{
		Type:  valueobject.HostMemory,
		Value: vmStat.UsedPercent,
	}}, nil
}
