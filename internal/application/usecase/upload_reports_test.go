package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/dreschagin/vrops-selfmon/internal/application/port"
	"github.com/dreschagin/vrops-selfmon/pkg/logger"
)

type putCall struct {
	key         string
	contentType string
	body        []byte
}

type mockArtifactStorage struct {
	calls []putCall
	errAt map[string]error

	objectsByPrefix map[string][]port.StoredObject
	listErr         error
	lastPrefix      string
	lastLimit       int
}

func (m *mockArtifactStorage) PutObject(_ context.Context, key, contentType string, body []byte) (string, error) {
	m.calls = append(m.calls, putCall{key: key, contentType: contentType, body: body})
	if err, ok := m.errAt[key]; ok {
		return "", err
	}
	return "https://example.com/" + key, nil
}

func (m *mockArtifactStorage) ListObjects(_ context.Context, prefix string, limit int) ([]port.StoredObject, error) {
	m.lastPrefix = prefix
	m.lastLimit = limit
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.objectsByPrefix[prefix], nil
}

func (m *mockArtifactStorage) GetObjectURL(_ context.Context, key string) (string, error) {
	return "https://signed.example.com/" + key, nil
}

type mockManifestRepository struct {
	saved     []port.ReportManifest
	putErr    error
	page      port.ReportListPage
	listErr   error
	lastQuery port.ReportListQuery
}

func (m *mockManifestRepository) PutBatch(_ context.Context, records []port.ReportManifest) error {
	if m.putErr != nil {
		return m.putErr
	}
	m.saved = append(m.saved, records...)
	return nil
}

func (m *mockManifestRepository) ListByNode(_ context.Context, query port.ReportListQuery) (port.ReportListPage, error) {
	m.lastQuery = query
	if m.listErr != nil {
		return port.ReportListPage{}, m.listErr
	}
	return m.page, nil
}

func newTestUploadUseCase(storage port.ArtifactStorage, manifests port.ReportManifestRepository) *UploadReportsUseCase {
	uc := NewUploadReportsUseCase(storage, manifests, UploadReportsConfig{KeyPrefix: "selfmon", ManifestTTLDays: 30}, logger.New("error"))
	uc.readFile = func(path string) ([]byte, error) {
		if strings.Contains(path, "missing") {
			return nil, errors.New("no such file")
		}
		return []byte("timestamp,m0\n1,2\n"), nil
	}
	return uc
}

func reportFiles(node string) []port.ReportFile {
	return []port.ReportFile{
		{Node: node, Kind: port.ReportKindMetrics, Format: "csv", Path: "/tmp/reports/" + node + "_metrics.csv", ContentType: "text/csv"},
		{Node: node, Kind: port.ReportKindNames, Format: "csv", Path: "/tmp/reports/" + node + "_metric_names.csv", ContentType: "text/csv"},
	}
}

func TestUploadReportsUseCase_Success(t *testing.T) {
	storage := &mockArtifactStorage{}
	manifests := &mockManifestRepository{}
	uc := newTestUploadUseCase(storage, manifests)

	collectedAt := time.Date(2026, 2, 7, 12, 34, 56, 0, time.UTC)
	res, err := uc.Execute(context.Background(), UploadReportsCommand{
		RunID:       "run-1",
		Host:        "10.0.0.5",
		CollectedAt: collectedAt,
		Files:       reportFiles("node-1"),
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	if len(res.Items) != 2 || len(storage.calls) != 2 {
		t.Fatalf("expected 2 uploads, got items=%d calls=%d", len(res.Items), len(storage.calls))
	}

	wantKeys := []string{
		"selfmon/10.0.0.5/2026/02/07/run-1/node-1_metrics.csv",
		"selfmon/10.0.0.5/2026/02/07/run-1/node-1_metric_names.csv",
	}
	for i, want := range wantKeys {
		if res.Items[i].S3Key != want {
			t.Fatalf("item %d: expected key %s, got %s", i, want, res.Items[i].S3Key)
		}
		if storage.calls[i].contentType != "text/csv" {
			t.Fatalf("unexpected content type: %s", storage.calls[i].contentType)
		}
	}

	if len(manifests.saved) != 2 {
		t.Fatalf("expected 2 manifests, got %d", len(manifests.saved))
	}
	manifest := manifests.saved[0]
	if manifest.Node != "node-1" || manifest.RunID != "run-1" || manifest.Kind != port.ReportKindMetrics {
		t.Fatalf("unexpected manifest: %+v", manifest)
	}
	if !manifest.ExpiresAt.Equal(collectedAt.AddDate(0, 0, 30)) {
		t.Fatalf("unexpected expiry: %s", manifest.ExpiresAt)
	}
	if manifest.SizeBytes == 0 {
		t.Fatal("expected size to be recorded")
	}
}

func TestUploadReportsUseCase_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		command UploadReportsCommand
		wantErr string
	}{
		{
			name:    "invalid host",
			command: UploadReportsCommand{RunID: "run-1", Host: "bad host", Files: reportFiles("node-1")},
			wantErr: "invalid host",
		},
		{
			name:    "missing run id",
			command: UploadReportsCommand{Host: "10.0.0.5", Files: reportFiles("node-1")},
			wantErr: "run id is required",
		},
		{
			name:    "invalid node",
			command: UploadReportsCommand{RunID: "run-1", Host: "10.0.0.5", Files: reportFiles("node 1")},
			wantErr: "invalid node name",
		},
		{
			name: "unreadable file",
			command: UploadReportsCommand{RunID: "run-1", Host: "10.0.0.5", Files: []port.ReportFile{
				{Node: "node-1", Kind: port.ReportKindMetrics, Path: "/tmp/missing.csv"},
			}},
			wantErr: "failed to read",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			uc := newTestUploadUseCase(&mockArtifactStorage{}, nil)
			_, err := uc.Execute(context.Background(), tc.command)
			if err == nil {
				t.Fatalf("expected error")
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("expected error containing %q, got %q", tc.wantErr, err.Error())
			}
		})
	}
}

func TestUploadReportsUseCase_StorageUploadError(t *testing.T) {
	failKey := "selfmon/10.0.0.5/2026/02/07/run-1/node-1_metric_names.csv"
	storage := &mockArtifactStorage{errAt: map[string]error{failKey: errors.New("boom")}}
	manifests := &mockManifestRepository{}
	uc := newTestUploadUseCase(storage, manifests)

	_, err := uc.Execute(context.Background(), UploadReportsCommand{
		RunID:       "run-1",
		Host:        "10.0.0.5",
		CollectedAt: time.Date(2026, 2, 7, 0, 0, 0, 0, time.UTC),
		Files:       reportFiles("node-1"),
	})
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "failed to upload node-1_metric_names.csv") {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(manifests.saved) != 0 {
		t.Fatalf("expected no manifests on upload failure")
	}
}

func TestUploadReportsUseCase_ManifestError(t *testing.T) {
	manifests := &mockManifestRepository{putErr: errors.New("throttled")}
	uc := newTestUploadUseCase(&mockArtifactStorage{}, manifests)

	_, err := uc.Execute(context.Background(), UploadReportsCommand{
		RunID: "run-1",
		Host:  "10.0.0.5",
		Files: reportFiles("node-1"),
	})
	if err == nil || !strings.Contains(err.Error(), "failed to index reports") {
		t.Fatalf("expected index error, got %v", err)
	}
}
