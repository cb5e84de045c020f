package usecase

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/dreschagin/vrops-selfmon/internal/application/port"
	"github.com/dreschagin/vrops-selfmon/pkg/logger"
)

var (
	nodeNameRegex = regexp.MustCompile(`^[A-Za-z0-9.,_-]{1,255}$`)
	hostRegex     = regexp.MustCompile(`^[A-Za-z0-9.:_-]{1,255}$`)
)

type UploadReportsCommand struct {
	RunID       string
	Host        string
	CollectedAt time.Time
	Files       []port.ReportFile
}

type UploadedReport struct {
	Node  string
	Kind  string
	S3Key string
	URL   string
}

type UploadReportsResult struct {
	UploadedAt time.Time
	Items      []UploadedReport
}

type UploadReportsConfig struct {
	KeyPrefix       string
	ManifestTTLDays int
}

// UploadReportsUseCase uploads exported report files and indexes them by node
type UploadReportsUseCase struct {
	storage   port.ArtifactStorage
	manifests port.ReportManifestRepository
	config    UploadReportsConfig
	logger    *logger.Logger
	readFile  func(string) ([]byte, error)
}

func NewUploadReportsUseCase(
	storage port.ArtifactStorage,
	manifests port.ReportManifestRepository,
	config UploadReportsConfig,
	log *logger.Logger,
) *UploadReportsUseCase {
	return &UploadReportsUseCase{
		storage:   storage,
		manifests: manifests,
		config:    config,
		logger:    log,
		readFile:  os.ReadFile,
	}
}

func (uc *UploadReportsUseCase) Execute(ctx context.Context, cmd UploadReportsCommand) (*UploadReportsResult, error) {
	if uc.storage == nil {
		return nil, fmt.Errorf("report storage is not configured")
	}

	host := strings.TrimSpace(cmd.Host)
	if !hostRegex.MatchString(host) {
		return nil, fmt.Errorf("invalid host")
	}
	if strings.TrimSpace(cmd.RunID) == "" {
		return nil, fmt.Errorf("run id is required")
	}

	collectedAt := cmd.CollectedAt.UTC()
	if collectedAt.IsZero() {
		collectedAt = time.Now().UTC()
	}

	items := make([]UploadedReport, 0, len(cmd.Files))
	manifests := make([]port.ReportManifest, 0, len(cmd.Files))

	for _, file := range cmd.Files {
		if !nodeNameRegex.MatchString(file.Node) {
			return nil, fmt.Errorf("invalid node name: %q", file.Node)
		}

		body, err := uc.readFile(file.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", file.Path, err)
		}

		key := uc.buildS3Key(host, collectedAt, cmd.RunID, filepath.Base(file.Path))
		url, err := uc.storage.PutObject(ctx, key, file.ContentType, body)
		if err != nil {
			uc.logger.Error("Failed to upload report", err,
				"node", file.Node,
				"kind", file.Kind,
				"key", key,
			)
			return nil, fmt.Errorf("failed to upload %s: %w", filepath.Base(file.Path), err)
		}

		items = append(items, UploadedReport{
			Node:  file.Node,
			Kind:  file.Kind,
			S3Key: key,
			URL:   url,
		})

		manifest := port.ReportManifest{
			RunID:        cmd.RunID,
			Host:         host,
			Node:         file.Node,
			Kind:         file.Kind,
			Format:       file.Format,
			S3Key:        key,
			URL:          url,
			ContentType:  file.ContentType,
			SizeBytes:    int64(len(body)),
			CollectedAt:  collectedAt,
			LastModified: time.Now().UTC(),
		}
		if uc.config.ManifestTTLDays > 0 {
			manifest.ExpiresAt = collectedAt.AddDate(0, 0, uc.config.ManifestTTLDays)
		}
		manifests = append(manifests, manifest)
	}

	if uc.manifests != nil && len(manifests) > 0 {
		if err := uc.manifests.PutBatch(ctx, manifests); err != nil {
			return nil, fmt.Errorf("failed to index reports: %w", err)
		}
	}

	return &UploadReportsResult{
		UploadedAt: time.Now().UTC(),
		Items:      items,
	}, nil
}

// buildS3Key returns <prefix>/<host>/<yyyy>/<mm>/<dd>/<runID>/<file>
func (uc *UploadReportsUseCase) buildS3Key(host string, collectedAt time.Time, runID, filename string) string {
	prefix := strings.Trim(uc.config.KeyPrefix, "/")
	if prefix == "" {
		prefix = "selfmon"
	}

	return fmt.Sprintf("%s/%s/%s/%s/%s", prefix, host, collectedAt.Format("2006/01/02"), runID, filename)
}
