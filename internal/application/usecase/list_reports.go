package usecase

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/dreschagin/vrops-selfmon/internal/application/port"
	"github.com/dreschagin/vrops-selfmon/pkg/logger"
)

type ListReportsCommand struct {
	Host   string
	Node   string
	Kind   string
	Limit  int
	Cursor string
	From   time.Time
	To     time.Time
}

type ReportListItem struct {
	RunID        string
	Node         string
	Kind         string
	Format       string
	S3Key        string
	URL          string
	CollectedAt  time.Time
	LastModified time.Time
}

type ListReportsResult struct {
	Items      []ReportListItem
	NextCursor string
}

type ListReportsConfig struct {
	KeyPrefix           string
	DefaultLimit        int
	MaxLimit            int
	FallbackToS3OnError bool
}

type ListReportsUseCase struct {
	storage   port.ArtifactStorage
	manifests port.ReportManifestRepository
	config    ListReportsConfig
	logger    *logger.Logger
}

func NewListReportsUseCase(
	storage port.ArtifactStorage,
	manifests port.ReportManifestRepository,
	config ListReportsConfig,
	log *logger.Logger,
) *ListReportsUseCase {
	if config.DefaultLimit <= 0 {
		config.DefaultLimit = 24
	}
	if config.MaxLimit <= 0 {
		config.MaxLimit = 100
	}
	return &ListReportsUseCase{
		storage:   storage,
		manifests: manifests,
		config:    config,
		logger:    log,
	}
}

func (uc *ListReportsUseCase) Execute(ctx context.Context, cmd ListReportsCommand) (*ListReportsResult, error) {
	node := strings.TrimSpace(cmd.Node)
	if !nodeNameRegex.MatchString(node) {
		return nil, fmt.Errorf("invalid node")
	}

	kind := strings.TrimSpace(cmd.Kind)
	if kind != "" && kind != port.ReportKindMetrics && kind != port.ReportKindNames {
		return nil, fmt.Errorf("invalid kind")
	}

	limit := cmd.Limit
	if limit <= 0 {
		limit = uc.config.DefaultLimit
	}
	if limit > uc.config.MaxLimit {
		limit = uc.config.MaxLimit
	}

	if !cmd.From.IsZero() && !cmd.To.IsZero() && cmd.From.After(cmd.To) {
		return nil, fmt.Errorf("from must be less than or equal to to")
	}

	query := port.ReportListQuery{
		Node:   node,
		Kind:   kind,
		Limit:  limit,
		Cursor: strings.TrimSpace(cmd.Cursor),
		From:   cmd.From.UTC(),
		To:     cmd.To.UTC(),
	}

	if uc.manifests != nil {
		page, err := uc.manifests.ListByNode(ctx, query)
		if err == nil {
			return uc.mapManifestPage(ctx, page), nil
		}

		if !uc.config.FallbackToS3OnError {
			return nil, fmt.Errorf("failed to list reports via manifest index: %w", err)
		}

		if uc.logger != nil {
			uc.logger.Warn("Report manifest index is unavailable, using S3 fallback",
				"node", node,
				"error", err.Error(),
			)
		}
	}

	return uc.listFromS3(ctx, strings.TrimSpace(cmd.Host), query)
}

func (uc *ListReportsUseCase) mapManifestPage(ctx context.Context, page port.ReportListPage) *ListReportsResult {
	items := make([]ReportListItem, 0, len(page.Items))
	for _, record := range page.Items {
		url := record.URL
		if uc.storage != nil {
			if generatedURL, err := uc.storage.GetObjectURL(ctx, record.S3Key); err == nil {
				url = generatedURL
			}
		}

		items = append(items, ReportListItem{
			RunID:        record.RunID,
			Node:         record.Node,
			Kind:         record.Kind,
			Format:       record.Format,
			S3Key:        record.S3Key,
			URL:          url,
			CollectedAt:  record.CollectedAt.UTC(),
			LastModified: record.LastModified.UTC(),
		})
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].CollectedAt.After(items[j].CollectedAt)
	})

	return &ListReportsResult{
		Items:      items,
		NextCursor: page.NextCursor,
	}
}

// listFromS3 scans <prefix>/<host>/ and keeps files named <node>_metrics.* or <node>_metric_names.*
func (uc *ListReportsUseCase) listFromS3(ctx context.Context, host string, query port.ReportListQuery) (*ListReportsResult, error) {
	if uc.storage == nil {
		return nil, fmt.Errorf("report storage is not configured")
	}
	if query.Cursor != "" {
		return nil, fmt.Errorf("cursor pagination requires report manifest index")
	}
	if !hostRegex.MatchString(host) {
		return nil, fmt.Errorf("host is required without report manifest index")
	}

	prefix := strings.Trim(uc.config.KeyPrefix, "/")
	if prefix == "" {
		prefix = "selfmon"
	}

	// over-fetch: the prefix also holds other nodes' files
	objects, err := uc.storage.ListObjects(ctx, fmt.Sprintf("%s/%s/", prefix, host), query.Limit*4)
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}

	filtered := make([]ReportListItem, 0, len(objects))
	for _, object := range objects {
		node, kind, format, ok := parseReportFilename(path.Base(object.Key))
		if !ok || node != query.Node {
			continue
		}
		if query.Kind != "" && kind != query.Kind {
			continue
		}

		item := ReportListItem{
			RunID:        inferRunID(object.Key),
			Node:         node,
			Kind:         kind,
			Format:       format,
			S3Key:        object.Key,
			URL:          object.URL,
			CollectedAt:  inferCollectedDate(object.Key),
			LastModified: object.LastModified.UTC(),
		}
		if !query.From.IsZero() && item.LastModified.Before(query.From) {
			continue
		}
		if !query.To.IsZero() && item.LastModified.After(query.To) {
			continue
		}

		filtered = append(filtered, item)
	}

	sort.Slice(filtered, func(i, j int) bool {
		return filtered[i].LastModified.After(filtered[j].LastModified)
	})

	if len(filtered) > query.Limit {
		filtered = filtered[:query.Limit]
	}

	return &ListReportsResult{Items: filtered}, nil
}

// parseReportFilename splits "<node>_metrics.<ext>" and "<node>_metric_names.<ext>"
func parseReportFilename(filename string) (node, kind, format string, ok bool) {
	ext := path.Ext(filename)
	if ext == "" {
		return "", "", "", false
	}
	base := strings.TrimSuffix(filename, ext)
	format = strings.TrimPrefix(ext, ".")

	switch {
	case strings.HasSuffix(base, "_metric_names"):
		return strings.TrimSuffix(base, "_metric_names"), port.ReportKindNames, format, true
	case strings.HasSuffix(base, "_metrics"):
		return strings.TrimSuffix(base, "_metrics"), port.ReportKindMetrics, format, true
	default:
		return "", "", "", false
	}
}

// inferRunID reads the run segment of <prefix>/<host>/<yyyy>/<mm>/<dd>/<runID>/<file>
func inferRunID(key string) string {
	parts := strings.Split(strings.Trim(key, "/"), "/")
	if len(parts) < 2 {
		return ""
	}
	return parts[len(parts)-2]
}

func inferCollectedDate(key string) time.Time {
	parts := strings.Split(strings.Trim(key, "/"), "/")
	if len(parts) < 5 {
		return time.Time{}
	}
	date := strings.Join(parts[len(parts)-5:len(parts)-2], "/")
	collected, err := time.Parse("2006/01/02", date)
	if err != nil {
		return time.Time{}
	}
	return collected.UTC()
}
