package entity

import (
	"time"

	"github.com/dreschagin/vrops-selfmon/internal/domain/valueobject"
	"github.com/google/uuid"
)

// ReportOutput один записанный файл отчета узла
type ReportOutput struct {
	Kind        string
	Format      string
	Path        string
	ContentType string
	SizeBytes   int64
}

// NodeReport описывает файлы, выгруженные для одного узла.
// Artifacts заполняется ключами внешнего хранилища после выгрузки.
type NodeReport struct {
	Node        string
	Series      int
	MetricsFile string
	NamesFile   string
	Outputs     []ReportOutput
	Artifacts   []string
}

// KPISummary агрегаты KPI-ряда за запуск
type KPISummary struct {
	Node    string
	ShortID string
	Service string
	Key     string
	Samples int
	Min     float64
	Max     float64
	Avg     float64
	Last    float64
}

// RunSummary итог одного запуска сборщика
type RunSummary struct {
	RunID            string
	Host             string
	State            valueobject.RunState
	Status           valueobject.RunStatus
	StartedAt        time.Time
	FinishedAt       time.Time
	ObjectsCollected int
	ObjectsSkipped   int
	SeriesCollected  int
	ReleaseStatus    int
	FailureStage     string
	FailureKind      string
	FailureStatus    int
	Error            string
	Nodes            []NodeReport
	Skipped          []SkippedObject
	KPIs             []KPISummary
	Telemetry        []*Metric
}

// NewRunSummary создает итог в состоянии Init
func NewRunSummary(host string, startedAt time.Time) *RunSummary {
	return &RunSummary{
		RunID:     uuid.New().String(),
		Host:      host,
		State:     valueobject.StateInit,
		Status:    valueobject.StatusPending,
		StartedAt: startedAt,
	}
}

// Advance переводит запуск в следующее состояние; недопустимый переход игнорируется
func (r *RunSummary) Advance(to valueobject.RunState) bool {
	if !r.State.CanTransition(to) {
		return false
	}
	r.State = to
	return true
}

// Finish фиксирует итог запуска
func (r *RunSummary) Finish(status valueobject.RunStatus, finishedAt time.Time) {
	r.Advance(valueobject.StateDone)
	r.Status = status
	r.FinishedAt = finishedAt
}

func (r *RunSummary) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

func (r *RunSummary) Succeeded() bool {
	return r.Status == valueobject.StatusSuccess
}
