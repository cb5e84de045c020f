package dto

import (
	"time"

	"github.com/dreschagin/vrops-selfmon/internal/domain/entity"
)

// MetricDTO представляет точку телеметрии для передачи между слоями
type MetricDTO struct {
	ID          string            `json:"id"`
	RunID       string            `json:"run_id"`
	Type        string            `json:"type"`
	Value       float64           `json:"value"`
	Unit        string            `json:"unit"`
	Labels      map[string]string `json:"labels,omitempty"`
	CollectedAt time.Time         `json:"collected_at"`
}

// FromEntity конвертирует Domain Entity в DTO
func FromEntity(metric *entity.Metric) *MetricDTO {
	return &MetricDTO{
		ID:          metric.ID(),
		RunID:       metric.RunID(),
		Type:        metric.Type().String(),
		Value:       metric.Value().Raw(),
		Unit:        metric.Value().Unit(),
		Labels:      metric.Labels(),
		CollectedAt: metric.CollectedAt(),
	}
}

// ToMetricDTOs конвертирует слайс Entity в слайс DTO
func ToMetricDTOs(metrics []*entity.Metric) []*MetricDTO {
	dtos := make([]*MetricDTO, len(metrics))
	for i, m := range metrics {
		dtos[i] = FromEntity(m)
	}
	return dtos
}

// SamplePointDTO одна точка архивного ряда
type SamplePointDTO struct {
	Timestamp int64   `json:"timestamp"`
	Value     float64 `json:"value"`
}

// SeriesHistoryDTO архивный ряд метрики узла с агрегатами
type SeriesHistoryDTO struct {
	Node    string           `json:"node"`
	Key     string           `json:"key"`
	From    time.Time        `json:"from"`
	To      time.Time        `json:"to"`
	Points  []SamplePointDTO `json:"points"`
	Average float64          `json:"average"`
	Min     float64          `json:"min"`
	Max     float64          `json:"max"`
	P95     float64          `json:"p95"`
}
