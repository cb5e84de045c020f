package port

import (
	"context"

	"github.com/dreschagin/vrops-selfmon/internal/domain/valueobject"
)

// HostSample представляет сырое измерение хоста сборщика
type HostSample struct {
	Type   valueobject.MetricType
	Value  float64
	Labels map[string]string
}

// HostProbe измеряет нагрузку хоста, на котором работает сборщик (Port)
type HostProbe interface {
	// Sample собирает все доступные измерения; ошибки отдельных измерений пропускаются
	Sample(ctx context.Context) ([]HostSample, error)
}
