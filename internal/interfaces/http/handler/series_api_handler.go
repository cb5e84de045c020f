package handler

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/dreschagin/vrops-selfmon/internal/application/usecase"
	"github.com/dreschagin/vrops-selfmon/internal/domain/valueobject"
	"github.com/dreschagin/vrops-selfmon/internal/interfaces/http/middleware"
	"github.com/dreschagin/vrops-selfmon/pkg/logger"
)

const defaultSeriesWindow = time.Hour

// SeriesAPIHandler обрабатывает API запросы архивных рядов
type SeriesAPIHandler struct {
	getSeriesHistoryUC *usecase.GetSeriesHistoryUseCase
	maxWindow          time.Duration
	logger             *logger.Logger
	now                func() time.Time
}

// NewSeriesAPIHandler создает новый handler; getSeriesHistoryUC может быть nil, если архив выключен
func NewSeriesAPIHandler(
	getSeriesHistoryUC *usecase.GetSeriesHistoryUseCase,
	maxWindow time.Duration,
	logger *logger.Logger,
) *SeriesAPIHandler {
	if maxWindow <= 0 {
		maxWindow = 30 * 24 * time.Hour
	}

	return &SeriesAPIHandler{
		getSeriesHistoryUC: getSeriesHistoryUC,
		maxWindow:          maxWindow,
		logger:             logger,
		now:                time.Now,
	}
}

// GetSeries возвращает ряд метрики узла за окно ?window= (по умолчанию 1h)
func (h *SeriesAPIHandler) GetSeries(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if h.getSeriesHistoryUC == nil {
		middleware.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "sample archive is not configured"})
		return
	}

	query := r.URL.Query()
	rawNode := strings.TrimSpace(query.Get("node"))
	key := strings.TrimSpace(query.Get("key"))
	if rawNode == "" || key == "" {
		http.Error(w, "Missing required parameters: node, key", http.StatusBadRequest)
		return
	}

	node, ok := parseNodeName(rawNode)
	if !ok {
		http.Error(w, "Invalid node", http.StatusBadRequest)
		return
	}

	window := defaultSeriesWindow
	if raw := strings.TrimSpace(query.Get("window")); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			http.Error(w, "Invalid window format", http.StatusBadRequest)
			return
		}
		window = parsed
	}
	if window <= 0 || window > h.maxWindow {
		http.Error(w, "Window out of allowed range", http.StatusBadRequest)
		return
	}

	timeRange, err := valueobject.NewTimeRangeEndingAt(h.now(), window)
	if err != nil {
		http.Error(w, "Invalid time range", http.StatusBadRequest)
		return
	}

	history, err := h.getSeriesHistoryUC.Execute(r.Context(), node, key, timeRange)
	if err != nil {
		h.logger.Error("Failed to get series history", err, "node", node.String(), "key", key)
		http.Error(w, "Failed to fetch series", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(history); err != nil {
		h.logger.Error("Failed to encode series history response", err)
	}
}

// parseNodeName принимает только уже очищенное имя узла
func parseNodeName(raw string) (valueobject.NodeName, bool) {
	if raw == valueobject.UndefinedNode.String() {
		return valueobject.UndefinedNode, true
	}
	node := valueobject.NewNodeName(raw)
	if node.String() != raw {
		return "", false
	}
	return node, true
}
