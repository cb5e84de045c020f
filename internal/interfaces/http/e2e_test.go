package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dreschagin/vrops-selfmon/internal/application/dto"
	"github.com/dreschagin/vrops-selfmon/internal/application/port"
	"github.com/dreschagin/vrops-selfmon/internal/application/usecase"
	"github.com/dreschagin/vrops-selfmon/internal/domain/entity"
	"github.com/dreschagin/vrops-selfmon/internal/domain/service"
	"github.com/dreschagin/vrops-selfmon/internal/domain/valueobject"
	wsInfra "github.com/dreschagin/vrops-selfmon/internal/infrastructure/notification/websocket"
	"github.com/dreschagin/vrops-selfmon/internal/interfaces/http/handler"
	"github.com/dreschagin/vrops-selfmon/internal/interfaces/http/middleware"
	"github.com/dreschagin/vrops-selfmon/internal/scheduler"
	"github.com/dreschagin/vrops-selfmon/pkg/config"
	"github.com/dreschagin/vrops-selfmon/pkg/logger"
	"github.com/gorilla/websocket"
)

const testToken = "test-token"

type memorySampleRepo struct {
	mu     sync.RWMutex
	series map[string]valueobject.TimeSeries
}

func newMemorySampleRepo() *memorySampleRepo {
	return &memorySampleRepo{series: make(map[string]valueobject.TimeSeries)}
}

func (r *memorySampleRepo) SaveRun(_ context.Context, _ *entity.RunSummary, _ *entity.CollectionResult) error {
	return nil
}

func (r *memorySampleRepo) SaveTelemetry(_ context.Context, _ []*entity.Metric) error {
	return nil
}

func (r *memorySampleRepo) FindSeries(_ context.Context, node valueobject.NodeName, key string, window valueobject.TimeRange) (valueobject.TimeSeries, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make(valueobject.TimeSeries, 0)
	for _, s := range r.series[node.String()+"|"+key] {
		if window.Contains(s.Timestamp) {
			result = append(result, s)
		}
	}
	return result, nil
}

func (r *memorySampleRepo) DeleteOlderThan(_ context.Context, _ time.Time) (int64, error) {
	return 0, nil
}

type memoryManifests struct {
	records []port.ReportManifest
}

func (m *memoryManifests) PutBatch(_ context.Context, records []port.ReportManifest) error {
	m.records = append(m.records, records...)
	return nil
}

func (m *memoryManifests) ListByNode(_ context.Context, query port.ReportListQuery) (port.ReportListPage, error) {
	page := port.ReportListPage{}
	for _, record := range m.records {
		if record.Node != query.Node {
			continue
		}
		if query.Kind != "" && record.Kind != query.Kind {
			continue
		}
		page.Items = append(page.Items, record)
	}
	return page, nil
}

type fakeTrigger struct {
	mu      sync.Mutex
	running bool
	calls   chan struct{}
}

func (f *fakeTrigger) RunOnce(_ context.Context) (*entity.RunSummary, error) {
	f.calls <- struct{}{}
	summary := entity.NewRunSummary("vrops.local", time.Now())
	summary.Finish(valueobject.StatusSuccess, time.Now())
	return summary, nil
}

func (f *fakeTrigger) Status() scheduler.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return scheduler.Status{Interval: time.Minute, Running: f.running}
}

type staticSnapshot struct {
	summary *dto.RunSummaryDTO
}

func (s staticSnapshot) Snapshot() (*dto.RunSummaryDTO, bool) {
	return s.summary, s.summary != nil
}

type testServer struct {
	*httptest.Server
	hub     *wsInfra.Hub
	trigger *fakeTrigger
}

func newTestServer(t *testing.T, snapshot *dto.RunSummaryDTO) *testServer {
	t.Helper()
	log := logger.New("error")

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	hub := wsInfra.NewHub(log)
	go hub.Run(ctx)

	authConfig := middleware.AuthConfig{Enabled: true, BearerToken: testToken}
	websocketHandler := handler.NewWebSocketHandler(hub, []string{"http://localhost:8085"}, authConfig, log)

	samples := newMemorySampleRepo()
	seedSeries(samples)
	seriesUC := usecase.NewGetSeriesHistoryUseCase(samples, service.NewMetricAggregator(), log)

	manifests := &memoryManifests{}
	_ = manifests.PutBatch(ctx, []port.ReportManifest{
		{RunID: "run-1", Node: "node-1", Kind: port.ReportKindMetrics, Format: "csv", S3Key: "selfmon/vrops.local/2026/01/02/run-1/node-1_metrics.csv", URL: "https://storage.local/a", CollectedAt: time.Now().UTC()},
		{RunID: "run-1", Node: "node-1", Kind: port.ReportKindNames, Format: "csv", S3Key: "selfmon/vrops.local/2026/01/02/run-1/node-1_metric_names.csv", URL: "https://storage.local/b", CollectedAt: time.Now().UTC()},
	})
	listUC := usecase.NewListReportsUseCase(nil, manifests, usecase.ListReportsConfig{}, log)

	trigger := &fakeTrigger{calls: make(chan struct{}, 1)}
	lastRunUC := usecase.NewGetLastRunUseCase(nil, staticSnapshot{summary: snapshot}, log)

	router := NewRouter(
		handler.NewRunAPIHandler(ctx, lastRunUC, trigger, log),
		handler.NewSeriesAPIHandler(seriesUC, 24*time.Hour, log),
		handler.NewReportsAPIHandler(listUC, "vrops.local", log),
		websocketHandler,
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("vrops_selfmon_runs_total 1\n"))
		}),
		nil,
		middleware.NewIPRateLimiter(100, 100),
		nil,
		config.SecurityConfig{
			AllowedOrigins: []string{"http://localhost:8085"},
			AuthEnabled:    true,
			AuthToken:      testToken,
		},
		log,
	)

	server := httptest.NewServer(router.Setup())
	t.Cleanup(server.Close)
	return &testServer{Server: server, hub: hub, trigger: trigger}
}

func seedSeries(repo *memorySampleRepo) {
	now := time.Now().UnixMilli()
	repo.series["node-1|cpu|capacity_contentionPct"] = valueobject.TimeSeries{
		{Timestamp: now - int64(2*time.Hour/time.Millisecond), Value: 99},
		{Timestamp: now - int64(20*time.Minute/time.Millisecond), Value: 10},
		{Timestamp: now - int64(10*time.Minute/time.Millisecond), Value: 30},
	}
}

func authHeaders() map[string]string {
	return map[string]string{"Authorization": "Bearer " + testToken}
}

func TestE2EHealthEndpoints(t *testing.T) {
	server := newTestServer(t, nil)

	for _, path := range []string{"/healthz", "/readyz", "/metrics"} {
		resp, err := http.Get(server.URL + path)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200 for %s, got %d", path, resp.StatusCode)
		}
	}
}

func TestE2ELatestRun(t *testing.T) {
	t.Run("no runs yet", func(t *testing.T) {
		server := newTestServer(t, nil)
		resp := doRequest(t, server.Client(), http.MethodGet, server.URL+"/api/v1/runs/latest", nil, authHeaders())
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", resp.StatusCode)
		}
	})

	t.Run("requires auth", func(t *testing.T) {
		server := newTestServer(t, nil)
		resp := doRequest(t, server.Client(), http.MethodGet, server.URL+"/api/v1/runs/latest", nil, nil)
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", resp.StatusCode)
		}
	})

	t.Run("returns snapshot", func(t *testing.T) {
		server := newTestServer(t, &dto.RunSummaryDTO{RunID: "run-42", Status: "SUCCESS", Host: "vrops.local"})
		resp := doRequest(t, server.Client(), http.MethodGet, server.URL+"/api/v1/runs/latest", nil, authHeaders())
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200, got %d", resp.StatusCode)
		}

		var summary dto.RunSummaryDTO
		if err := json.NewDecoder(resp.Body).Decode(&summary); err != nil {
			t.Fatalf("decode summary: %v", err)
		}
		if summary.RunID != "run-42" || summary.Status != "SUCCESS" {
			t.Fatalf("unexpected summary: %+v", summary)
		}
	})
}

func TestE2ETriggerRun(t *testing.T) {
	server := newTestServer(t, nil)

	resp := doRequest(t, server.Client(), http.MethodPost, server.URL+"/api/v1/runs", nil, authHeaders())
	resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.StatusCode)
	}

	select {
	case <-server.trigger.calls:
	case <-time.After(2 * time.Second):
		t.Fatal("expected run to be triggered")
	}

	server.trigger.mu.Lock()
	server.trigger.running = true
	server.trigger.mu.Unlock()

	resp = doRequest(t, server.Client(), http.MethodPost, server.URL+"/api/v1/runs", nil, authHeaders())
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 while running, got %d", resp.StatusCode)
	}

	resp = doRequest(t, server.Client(), http.MethodGet, server.URL+"/api/v1/runs", nil, authHeaders())
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405 for GET /api/v1/runs, got %d", resp.StatusCode)
	}
}

func TestE2ESeriesHistory(t *testing.T) {
	server := newTestServer(t, nil)
	client := server.Client()

	tests := []struct {
		name   string
		query  string
		status int
	}{
		{"missing key", "?node=node-1", http.StatusBadRequest},
		{"unsanitized node", "?node=node-1!!&key=cpu", http.StatusBadRequest},
		{"bad window", "?node=node-1&key=cpu&window=abc", http.StatusBadRequest},
		{"window too large", "?node=node-1&key=cpu&window=48h", http.StatusBadRequest},
		{"ok", "?node=node-1&key=cpu%7Ccapacity_contentionPct&window=1h", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := doRequest(t, client, http.MethodGet, server.URL+"/api/v1/series"+tt.query, nil, authHeaders())
			defer resp.Body.Close()
			if resp.StatusCode != tt.status {
				t.Fatalf("expected %d, got %d", tt.status, resp.StatusCode)
			}
			if tt.status != http.StatusOK {
				return
			}

			var history dto.SeriesHistoryDTO
			if err := json.NewDecoder(resp.Body).Decode(&history); err != nil {
				t.Fatalf("decode history: %v", err)
			}
			if len(history.Points) != 2 {
				t.Fatalf("expected 2 points inside window, got %d", len(history.Points))
			}
			if history.Min != 10 || history.Max != 30 || history.Average != 20 {
				t.Fatalf("unexpected aggregates: %+v", history)
			}
		})
	}
}

func TestE2EReports(t *testing.T) {
	server := newTestServer(t, nil)
	client := server.Client()

	resp := doRequest(t, client, http.MethodGet, server.URL+"/api/v1/reports?node=node-1&kind=names", nil, authHeaders())
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var payload struct {
		Items []struct {
			Node  string `json:"node"`
			Kind  string `json:"kind"`
			S3Key string `json:"s3_key"`
		} `json:"items"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode reports: %v", err)
	}
	if len(payload.Items) != 1 || payload.Items[0].Kind != port.ReportKindNames {
		t.Fatalf("unexpected items: %+v", payload.Items)
	}

	bad := doRequest(t, client, http.MethodGet, server.URL+"/api/v1/reports?node=node-1&kind=bogus", nil, authHeaders())
	bad.Body.Close()
	if bad.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid kind, got %d", bad.StatusCode)
	}
}

func TestE2EWebSocketRequiresTokenAndStreamsEvents(t *testing.T) {
	server := newTestServer(t, nil)
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"

	if _, resp, err := websocket.DefaultDialer.Dial(wsURL, nil); err == nil {
		t.Fatal("expected dial without token to fail")
	} else if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %v", resp)
	}

	conn, _, err := websocket.DefaultDialer.Dial(wsURL+"?token="+testToken, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for server.hub.ClientCount() != 1 {
		if time.Now().After(deadline) {
			t.Fatal("client was not registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	server.hub.BroadcastRunEvent(&dto.RunEventDTO{Type: "state", RunID: "run-9", State: "collecting"})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg struct {
		Type string          `json:"type"`
		Data dto.RunEventDTO `json:"data"`
	}
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if msg.Type != "state" || msg.Data.RunID != "run-9" {
		t.Fatalf("unexpected message: %+v", msg)
	}
}

func doRequest(t *testing.T, client *http.Client, method, url string, body *bytes.Buffer, headers map[string]string) *http.Response {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		reader = bytes.NewReader(body.Bytes())
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	return resp
}
