package postgres

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/dreschagin/vrops-selfmon/internal/domain/entity"
	"github.com/dreschagin/vrops-selfmon/internal/domain/valueobject"
)

// RunDBModel представляет итог запуска в БД
type RunDBModel struct {
	RunID            string
	Host             string
	Status           string
	FailureStage     sql.NullString
	FailureKind      sql.NullString
	Error            sql.NullString
	ObjectsCollected int
	ObjectsSkipped   int
	SeriesCollected  int
	StartedAt        time.Time
	FinishedAt       time.Time
}

// SampleDBModel представляет одно значение ряда в БД
type SampleDBModel struct {
	RunID       string
	Node        string
	ShortID     string
	Service     string
	MetricKey   string
	KPI         bool
	TimestampMS int64
	Value       float64
	CollectedAt time.Time
}

// TelemetryDBModel представляет точку телеметрии сборщика в БД
type TelemetryDBModel struct {
	ID          string
	RunID       string
	MetricType  string
	Value       float64
	Unit        string
	Labels      []byte // JSON
	CollectedAt time.Time
}

// ToRunModel конвертирует итог запуска в DB Model
func ToRunModel(summary *entity.RunSummary) *RunDBModel {
	return &RunDBModel{
		RunID:            summary.RunID,
		Host:             summary.Host,
		Status:           summary.Status.String(),
		FailureStage:     nullString(summary.FailureStage),
		FailureKind:      nullString(summary.FailureKind),
		Error:            nullString(summary.Error),
		ObjectsCollected: summary.ObjectsCollected,
		ObjectsSkipped:   summary.ObjectsSkipped,
		SeriesCollected:  summary.SeriesCollected,
		StartedAt:        summary.StartedAt.UTC(),
		FinishedAt:       summary.FinishedAt.UTC(),
	}
}

// ToSampleModels разворачивает таблицы узлов в строки значений.
// Порядок: узлы в порядке появления, ряды в порядке таблицы имен.
func ToSampleModels(runID string, result *entity.CollectionResult, collectedAt time.Time) []SampleDBModel {
	if result == nil {
		return nil
	}

	models := make([]SampleDBModel, 0, result.SeriesCount())
	for _, table := range result.Nodes() {
		node := table.Node().String()
		for _, name := range table.Names() {
			series, ok := table.Series(name.ShortID)
			if !ok {
				continue
			}
			for _, sample := range series {
				models = append(models, SampleDBModel{
					RunID:       runID,
					Node:        node,
					ShortID:     name.ShortID.String(),
					Service:     name.Service,
					MetricKey:   name.Key,
					KPI:         name.KPI,
					TimestampMS: sample.Timestamp,
					Value:       sample.Value,
					CollectedAt: collectedAt.UTC(),
				})
			}
		}
	}

	return models
}

// ToTelemetryModel конвертирует Domain Entity в DB Model
func ToTelemetryModel(metric *entity.Metric) (*TelemetryDBModel, error) {
	var labelsBytes []byte
	var err error

	labels := metric.Labels()
	if len(labels) > 0 {
		labelsBytes, err = json.Marshal(labels)
		if err != nil {
			return nil, err
		}
	}

	return &TelemetryDBModel{
		ID:          metric.ID(),
		RunID:       metric.RunID(),
		MetricType:  metric.Type().String(),
		Value:       metric.Value().Raw(),
		Unit:        metric.Value().Unit(),
		Labels:      labelsBytes,
		CollectedAt: metric.CollectedAt().UTC(),
	}, nil
}

// ScanSampleRow сканирует строку (ts_ms, value) в значение ряда
func ScanSampleRow(row interface {
	Scan(dest ...interface{}) error
}) (valueobject.Sample, error) {
	var sample valueobject.Sample
	if err := row.Scan(&sample.Timestamp, &sample.Value); err != nil {
		return valueobject.Sample{}, err
	}
	return sample, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
