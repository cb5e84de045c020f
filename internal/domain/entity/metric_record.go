package entity

import "github.com/dreschagin/vrops-selfmon/internal/domain/valueobject"

// StatEntry представляет одну метрику из ответа статистики объекта
type StatEntry struct {
	Key    string
	Series valueobject.TimeSeries
}

// MetricRecord представляет нормализованную метрику с коротким идентификатором
type MetricRecord struct {
	Key     string
	ShortID valueobject.ShortID
	KPI     bool
	Service string
	Object  string
	Series  valueobject.TimeSeries
}

// NameDescriptor строка таблицы имен: kpi, name, object, metric
type NameDescriptor struct {
	ShortID valueobject.ShortID
	KPI     bool
	Service string
	Key     string
}

// Descriptor возвращает строку таблицы имен для записи
func (r MetricRecord) Descriptor() NameDescriptor {
	return NameDescriptor{
		ShortID: r.ShortID,
		KPI:     r.KPI,
		Service: r.Service,
		Key:     r.Key,
	}
}

// KPIMarker возвращает значение ячейки kpi: "kpi" или пустую строку
func (d NameDescriptor) KPIMarker() string {
	if d.KPI {
		return "kpi"
	}
	return ""
}
