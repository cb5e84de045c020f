package prometheus

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dreschagin/vrops-selfmon/internal/domain/entity"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "vrops_selfmon"

// RunMetrics bundles prometheus collectors describing collector runs.
type RunMetrics struct {
	registry *prometheus.Registry

	RunsTotal        *prometheus.CounterVec
	RunDuration      prometheus.Histogram
	FailuresTotal    *prometheus.CounterVec
	LastRunTimestamp *prometheus.GaugeVec
	ObjectsCollected prometheus.Gauge
	ObjectsSkipped   prometheus.Gauge
	SeriesCollected  prometheus.Gauge
	KPILastValue     *prometheus.GaugeVec

	RequestsTotal      *prometheus.CounterVec
	RequestDurationSec *prometheus.HistogramVec

	textfilePath string
	mu           sync.Mutex
}

// New registers the run collectors in registry; textfilePath may be empty.
func New(registry *prometheus.Registry, textfilePath string) *RunMetrics {
	m := &RunMetrics{
		registry:     registry,
		textfilePath: strings.TrimSpace(textfilePath),
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Total number of collector runs by final status.",
		}, []string{"status"}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Collector run duration in seconds.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}),
		FailuresTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "run_failures_total",
			Help:      "Total number of failed runs by stage and failure kind.",
		}, []string{"stage", "kind"}),
		LastRunTimestamp: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last run with the given status finished.",
		}, []string{"status"}),
		ObjectsCollected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "objects_collected",
			Help:      "Objects with data in the last run.",
		}),
		ObjectsSkipped: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "objects_skipped",
			Help:      "Objects without data in the last run.",
		}),
		SeriesCollected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "series_collected",
			Help:      "Metric series exported in the last run.",
		}),
		KPILastValue: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "kpi_last_value",
			Help:      "Last collected value of each KPI series.",
		}, []string{"node", "service", "key"}),
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of API requests.",
		}, []string{"route", "method", "status"}),
		RequestDurationSec: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "API request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method", "status"}),
	}

	registry.MustRegister(
		m.RunsTotal,
		m.RunDuration,
		m.FailuresTotal,
		m.LastRunTimestamp,
		m.ObjectsCollected,
		m.ObjectsSkipped,
		m.SeriesCollected,
		m.KPILastValue,
		m.RequestsTotal,
		m.RequestDurationSec,
	)

	return m
}

// ObserveRun records a finished run and rewrites the textfile when configured.
func (m *RunMetrics) ObserveRun(summary *entity.RunSummary) {
	if summary == nil {
		return
	}

	status := summary.Status.String()
	m.RunsTotal.WithLabelValues(status).Inc()
	m.RunDuration.Observe(summary.Duration().Seconds())
	m.LastRunTimestamp.WithLabelValues(status).Set(float64(summary.FinishedAt.Unix()))

	if !summary.Succeeded() {
		m.FailuresTotal.WithLabelValues(summary.FailureStage, summary.FailureKind).Inc()
	}

	m.ObjectsCollected.Set(float64(summary.ObjectsCollected))
	m.ObjectsSkipped.Set(float64(summary.ObjectsSkipped))
	m.SeriesCollected.Set(float64(summary.SeriesCollected))

	// Series that disappeared since the previous run must not linger.
	m.KPILastValue.Reset()
	for _, kpi := range summary.KPIs {
		m.KPILastValue.WithLabelValues(kpi.Node, kpi.Service, kpi.Key).Set(kpi.Last)
	}

	if m.textfilePath != "" {
		// Best effort; the next run rewrites the file.
		_ = m.WriteTextfile()
	}
}

// WriteTextfile dumps the registry in the node_exporter textfile format.
func (m *RunMetrics) WriteTextfile() error {
	if m.textfilePath == "" {
		return fmt.Errorf("textfile path is not configured")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := prometheus.WriteToTextfile(m.textfilePath, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}

// Handler serves the registry for scraping.
func (m *RunMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware counts API requests by route, method and status.
func (m *RunMetrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		startedAt := time.Now()
		wrapped := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		status := strconv.Itoa(wrapped.statusCode)
		route := normalizeRoute(r.URL.Path)
		m.RequestsTotal.WithLabelValues(route, r.Method, status).Inc()
		m.RequestDurationSec.WithLabelValues(route, r.Method, status).Observe(time.Since(startedAt).Seconds())
	})
}

func normalizeRoute(path string) string {
	switch {
	case path == "/ws", path == "/metrics", path == "/healthz", path == "/readyz":
		return path
	case strings.HasPrefix(path, "/api/v1/runs"):
		return "/api/v1/runs*"
	case strings.HasPrefix(path, "/api/v1/reports"):
		return "/api/v1/reports"
	case strings.HasPrefix(path, "/api/v1/series"):
		return "/api/v1/series"
	case strings.HasPrefix(path, "/api/"):
		return "/api/*"
	default:
		return "other"
	}
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (rw *statusRecorder) WriteHeader(statusCode int) {
	rw.statusCode = statusCode
	rw.ResponseWriter.WriteHeader(statusCode)
}

// Hijack passes websocket upgrades through wrapped ResponseWriter.
func (rw *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	return hijacker.Hijack()
}

func (rw *statusRecorder) Flush() {
	if flusher, ok := rw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}
