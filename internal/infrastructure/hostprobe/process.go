package hostprobe

import (
	"context"
	"os"

	"github.com/dreschagin/vrops-selfmon/internal/application/port"
	"github.com/dreschagin/vrops-selfmon/internal/domain/valueobject"
	"github.com/shirou/gopsutil/v3/process"
)

const bytesPerMB = 1024 * 1024

// sampleProcessRSS измеряет резидентную память процесса сборщика в MB
func sampleProcessRSS(ctx context.Context) ([]port.HostSample, error) {
	proc, err := process.NewProcessWithContext(ctx, int32(os.Getpid()))
	if err != nil {
		return nil, err
	}

	info, err := proc.MemoryInfoWithContext(ctx)
	if err != nil {
		return nil, err
	}

	return []port.HostSample{{
		Type:  valueobject.ProcessRSS,
		Value: float64(info.RSS) / bytesPerMB,
	}}, nil
}
