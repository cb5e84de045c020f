package valueobject

import "errors"

// MetricType представляет тип телеметрии самого сборщика (Value Object)
type MetricType string

const (
	RunDuration      MetricType = "run_duration"
	ObjectsCollected MetricType = "objects_collected"
	ObjectsSkipped   MetricType = "objects_skipped"
	SeriesCollected  MetricType = "series_collected"
	HostCPU          MetricType = "host_cpu"
	HostMemory       MetricType = "host_memory"
	ReportDisk       MetricType = "report_disk"
	ProcessRSS       MetricType = "process_rss"
)

// Validate проверяет валидность типа метрики
func (mt MetricType) Validate() error {
	if _, ok := metricUnits[mt]; !ok {
		return errors.New("invalid metric type")
	}
	return nil
}

// DefaultUnit возвращает единицу измерения для типа
func (mt MetricType) DefaultUnit() string {
	return metricUnits[mt]
}

// IsHost сообщает, описывает ли метрика хост сборщика, а не сам запуск
func (mt MetricType) IsHost() bool {
	switch mt {
	case HostCPU, HostMemory, ReportDisk, ProcessRSS:
		return true
	default:
		return false
	}
}

// String возвращает строковое представление типа метрики
func (mt MetricType) String() string {
	return string(mt)
}

var metricUnits = map[MetricType]string{
	RunDuration:      "s",
	ObjectsCollected: "count",
	ObjectsSkipped:   "count",
	SeriesCollected:  "count",
	HostCPU:          "%",
	HostMemory:       "%",
	ReportDisk:       "%",
	ProcessRSS:       "MB",
}
