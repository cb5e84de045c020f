package prometheus

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dreschagin/vrops-selfmon/internal/domain/entity"
	"github.com/dreschagin/vrops-selfmon/internal/domain/valueobject"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func finishedRun(status valueobject.RunStatus) *entity.RunSummary {
	started := time.Date(2026, 2, 7, 12, 0, 0, 0, time.UTC)
	summary := entity.NewRunSummary("vrops.local", started)
	summary.ObjectsCollected = 3
	summary.ObjectsSkipped = 1
	summary.SeriesCollected = 12
	summary.KPIs = []entity.KPISummary{
		{Node: "node-1", ShortID: "m0", Service: "ServiceA", Key: "cpu_usage", Last: 42},
	}
	if status == valueobject.StatusFailure {
		summary.FailureStage = "health"
		summary.FailureKind = "precondition"
	}
	summary.Finish(status, started.Add(30*time.Second))
	return summary
}

func TestObserveRun_RecordsOutcome(t *testing.T) {
	m := New(prometheus.NewRegistry(), "")

	m.ObserveRun(finishedRun(valueobject.StatusSuccess))
	m.ObserveRun(finishedRun(valueobject.StatusFailure))
	m.ObserveRun(nil)

	if got := testutil.ToFloat64(m.RunsTotal.WithLabelValues("SUCCESS")); got != 1 {
		t.Fatalf("expected 1 successful run, got %v", got)
	}
	if got := testutil.ToFloat64(m.FailuresTotal.WithLabelValues("health", "precondition")); got != 1 {
		t.Fatalf("expected 1 failure, got %v", got)
	}
	if got := testutil.ToFloat64(m.SeriesCollected); got != 12 {
		t.Fatalf("expected 12 series, got %v", got)
	}
	if got := testutil.ToFloat64(m.KPILastValue.WithLabelValues("node-1", "ServiceA", "cpu_usage")); got != 42 {
		t.Fatalf("expected KPI value 42, got %v", got)
	}
	if got := testutil.CollectAndCount(m.RunDuration); got != 1 {
		t.Fatalf("expected one duration histogram, got %d", got)
	}
}

func TestWriteTextfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "selfmon.prom")
	m := New(prometheus.NewRegistry(), path)

	m.ObserveRun(finishedRun(valueobject.StatusSuccess))

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("expected textfile to be written: %v", err)
	}
	if !strings.Contains(string(data), `vrops_selfmon_runs_total{status="SUCCESS"} 1`) {
		t.Fatalf("unexpected textfile content:\n%s", data)
	}

	if err := New(prometheus.NewRegistry(), "").WriteTextfile(); err == nil {
		t.Fatal("expected error without path")
	}
}

func TestMiddlewareAndHandler(t *testing.T) {
	m := New(prometheus.NewRegistry(), "")

	api := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	api.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/runs/latest", nil))

	if got := testutil.ToFloat64(m.RequestsTotal.WithLabelValues("/api/v1/runs*", http.MethodGet, "404")); got != 1 {
		t.Fatalf("expected request to be counted, got %v", got)
	}

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rec.Body.String(), "vrops_selfmon_http_requests_total") {
		t.Fatalf("expected metrics output, got %s", rec.Body.String())
	}
}

func TestNormalizeRoute(t *testing.T) {
	tests := map[string]string{
		"/ws":             "/ws",
		"/healthz":        "/healthz",
		"/api/v1/runs":    "/api/v1/runs*",
		"/api/v1/reports": "/api/v1/reports",
		"/api/v1/series":  "/api/v1/series",
		"/api/v2/unknown": "/api/*",
		"/favicon.ico":    "other",
	}
	for path, want := range tests {
		if got := normalizeRoute(path); got != want {
			t.Fatalf("normalizeRoute(%s) = %s, want %s", path, got, want)
		}
	}
}
