package entity

import (
	"time"

	"github.com/dreschagin/vrops-selfmon/internal/domain/valueobject"
	"github.com/google/uuid"
)

// Metric представляет точку телеметрии самого сборщика (длительность запуска, нагрузка хоста)
type Metric struct {
	id          string
	runID       string
	metricType  valueobject.MetricType
	value       valueobject.MetricValue
	labels      map[string]string
	collectedAt time.Time
}

// NewMetric создает новую точку телеметрии (Factory Method)
func NewMetric(
	runID string,
	metricType valueobject.MetricType,
	value valueobject.MetricValue,
	collectedAt time.Time,
) (*Metric, error) {
	if err := metricType.Validate(); err != nil {
		return nil, err
	}

	if collectedAt.IsZero() {
		collectedAt = time.Now()
	}

	return &Metric{
		id:          uuid.New().String(),
		runID:       runID,
		metricType:  metricType,
		value:       value,
		labels:      make(map[string]string),
		collectedAt: collectedAt,
	}, nil
}

// NewMetricWithDefaultUnit создает точку с единицей измерения по умолчанию для типа
func NewMetricWithDefaultUnit(runID string, metricType valueobject.MetricType, raw float64, collectedAt time.Time) (*Metric, error) {
	value, err := valueobject.NewMetricValue(raw, metricType.DefaultUnit())
	if err != nil {
		return nil, err
	}
	return NewMetric(runID, metricType, value, collectedAt)
}

func (m *Metric) ID() string {
	return m.id
}

func (m *Metric) RunID() string {
	return m.runID
}

func (m *Metric) Type() valueobject.MetricType {
	return m.metricType
}

func (m *Metric) Value() valueobject.MetricValue {
	return m.value
}

// Labels возвращает копию меток
func (m *Metric) Labels() map[string]string {
	result := make(map[string]string, len(m.labels))
	for k, v := range m.labels {
		result[k] = v
	}
	return result
}

func (m *Metric) SetLabel(key, value string) {
	m.labels[key] = value
}

func (m *Metric) CollectedAt() time.Time {
	return m.collectedAt
}
