package dto

import (
	"time"

	"github.com/dreschagin/vrops-selfmon/internal/domain/entity"
)

// RunSummaryDTO итог запуска для API, кеша и брокера
type RunSummaryDTO struct {
	RunID            string          `json:"run_id"`
	Host             string          `json:"host"`
	State            string          `json:"state"`
	Status           string          `json:"status"`
	StartedAt        time.Time       `json:"started_at"`
	FinishedAt       time.Time       `json:"finished_at"`
	DurationSeconds  float64         `json:"duration_seconds"`
	ObjectsCollected int             `json:"objects_collected"`
	ObjectsSkipped   int             `json:"objects_skipped"`
	SeriesCollected  int             `json:"series_collected"`
	ReleaseStatus    int             `json:"release_status,omitempty"`
	Failure          *RunFailureDTO  `json:"failure,omitempty"`
	Nodes            []NodeReportDTO `json:"nodes"`
	Skipped          []SkippedDTO    `json:"skipped,omitempty"`
	KPIs             []KPISummaryDTO `json:"kpis,omitempty"`
	Telemetry        []*MetricDTO    `json:"telemetry,omitempty"`
}

// RunFailureDTO причина неуспешного запуска
type RunFailureDTO struct {
	Stage      string `json:"stage"`
	Kind       string `json:"kind"`
	StatusCode int    `json:"status_code,omitempty"`
	Message    string `json:"message"`
}

type NodeReportDTO struct {
	Node        string   `json:"node"`
	Series      int      `json:"series"`
	MetricsFile string   `json:"metrics_file"`
	NamesFile   string   `json:"names_file"`
	Artifacts   []string `json:"artifacts,omitempty"`
}

type SkippedDTO struct {
	Service    string `json:"service"`
	Identifier string `json:"identifier"`
	Name       string `json:"name"`
	Reason     string `json:"reason"`
}

type KPISummaryDTO struct {
	Node    string  `json:"node"`
	ShortID string  `json:"short_id"`
	Service string  `json:"service"`
	Key     string  `json:"key"`
	Samples int     `json:"samples"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Avg     float64 `json:"avg"`
	Last    float64 `json:"last"`
}

// NewRunSummaryDTO конвертирует итог запуска в DTO
func NewRunSummaryDTO(summary *entity.RunSummary) *RunSummaryDTO {
	out := &RunSummaryDTO{
		RunID:            summary.RunID,
		Host:             summary.Host,
		State:            summary.State.String(),
		Status:           summary.Status.String(),
		StartedAt:        summary.StartedAt,
		FinishedAt:       summary.FinishedAt,
		DurationSeconds:  summary.Duration().Seconds(),
		ObjectsCollected: summary.ObjectsCollected,
		ObjectsSkipped:   summary.ObjectsSkipped,
		SeriesCollected:  summary.SeriesCollected,
		ReleaseStatus:    summary.ReleaseStatus,
		Nodes:            make([]NodeReportDTO, 0, len(summary.Nodes)),
	}

	if summary.FailureStage != "" {
		out.Failure = &RunFailureDTO{
			Stage:      summary.FailureStage,
			Kind:       summary.FailureKind,
			StatusCode: summary.FailureStatus,
			Message:    summary.Error,
		}
	}

	for _, n := range summary.Nodes {
		out.Nodes = append(out.Nodes, NodeReportDTO{
			Node:        n.Node,
			Series:      n.Series,
			MetricsFile: n.MetricsFile,
			NamesFile:   n.NamesFile,
			Artifacts:   n.Artifacts,
		})
	}

	for _, s := range summary.Skipped {
		out.Skipped = append(out.Skipped, SkippedDTO{
			Service:    s.Service,
			Identifier: s.Identifier,
			Name:       s.Name,
			Reason:     s.Reason,
		})
	}

	for _, k := range summary.KPIs {
		out.KPIs = append(out.KPIs, KPISummaryDTO(k))
	}

	if len(summary.Telemetry) > 0 {
		out.Telemetry = ToMetricDTOs(summary.Telemetry)
	}

	return out
}

// RunEventDTO событие жизненного цикла запуска для WebSocket и NATS
type RunEventDTO struct {
	Type      string         `json:"type"` // "state", "finished"
	RunID     string         `json:"run_id"`
	State     string         `json:"state"`
	Timestamp time.Time      `json:"timestamp"`
	Summary   *RunSummaryDTO `json:"summary,omitempty"`
}
