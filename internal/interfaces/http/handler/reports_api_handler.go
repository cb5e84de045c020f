package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dreschagin/vrops-selfmon/internal/application/usecase"
	"github.com/dreschagin/vrops-selfmon/internal/interfaces/http/middleware"
	"github.com/dreschagin/vrops-selfmon/pkg/logger"
)

type ReportsAPIHandler struct {
	listReportsUC *usecase.ListReportsUseCase
	defaultHost   string
	logger        *logger.Logger
}

type reportListResponse struct {
	Items      []reportListItem `json:"items"`
	NextCursor string           `json:"next_cursor,omitempty"`
}

type reportListItem struct {
	RunID        string    `json:"run_id,omitempty"`
	Node         string    `json:"node"`
	Kind         string    `json:"kind"`
	Format       string    `json:"format,omitempty"`
	S3Key        string    `json:"s3_key"`
	URL          string    `json:"url"`
	CollectedAt  time.Time `json:"collected_at"`
	LastModified time.Time `json:"last_modified,omitempty"`
}

// NewReportsAPIHandler creates the handler. defaultHost is used for the S3 listing
// fallback when the request does not name a host.
func NewReportsAPIHandler(listReportsUC *usecase.ListReportsUseCase, defaultHost string, log *logger.Logger) *ReportsAPIHandler {
	return &ReportsAPIHandler{
		listReportsUC: listReportsUC,
		defaultHost:   strings.TrimSpace(defaultHost),
		logger:        log,
	}
}

func (h *ReportsAPIHandler) ListReports(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if h.listReportsUC == nil {
		middleware.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "report storage is not configured"})
		return
	}

	query := r.URL.Query()

	limit := 0
	if raw := strings.TrimSpace(query.Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			http.Error(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	from, err := parseOptionalTime(query.Get("from"))
	if err != nil {
		http.Error(w, "Invalid from, expected RFC3339", http.StatusBadRequest)
		return
	}
	to, err := parseOptionalTime(query.Get("to"))
	if err != nil {
		http.Error(w, "Invalid to, expected RFC3339", http.StatusBadRequest)
		return
	}

	host := strings.TrimSpace(query.Get("host"))
	if host == "" {
		host = h.defaultHost
	}

	result, err := h.listReportsUC.Execute(r.Context(), usecase.ListReportsCommand{
		Host:   host,
		Node:   query.Get("node"),
		Kind:   query.Get("kind"),
		Limit:  limit,
		Cursor: query.Get("cursor"),
		From:   from,
		To:     to,
	})
	if err != nil {
		statusCode := http.StatusBadRequest
		switch {
		case strings.Contains(err.Error(), "not configured"):
			statusCode = http.StatusServiceUnavailable
		case strings.Contains(err.Error(), "failed to"):
			statusCode = http.StatusInternalServerError
			h.logger.Error("Failed to list reports", err, "node", query.Get("node"))
		}
		http.Error(w, err.Error(), statusCode)
		return
	}

	items := make([]reportListItem, 0, len(result.Items))
	for _, item := range result.Items {
		items = append(items, reportListItem{
			RunID:        item.RunID,
			Node:         item.Node,
			Kind:         item.Kind,
			Format:       item.Format,
			S3Key:        item.S3Key,
			URL:          item.URL,
			CollectedAt:  item.CollectedAt,
			LastModified: item.LastModified,
		})
	}

	middleware.WriteJSON(w, http.StatusOK, reportListResponse{
		Items:      items,
		NextCursor: result.NextCursor,
	})
}

func parseOptionalTime(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, raw)
}
