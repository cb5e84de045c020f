package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/dreschagin/vrops-selfmon/internal/application/port"
	"github.com/dreschagin/vrops-selfmon/internal/application/usecase"
	"github.com/dreschagin/vrops-selfmon/internal/domain/entity"
	"github.com/dreschagin/vrops-selfmon/internal/interfaces/http/middleware"
	"github.com/dreschagin/vrops-selfmon/internal/scheduler"
	"github.com/dreschagin/vrops-selfmon/pkg/logger"
)

// RunTrigger запускает сбор вне расписания
type RunTrigger interface {
	RunOnce(ctx context.Context) (*entity.RunSummary, error)
	Status() scheduler.Status
}

// RunAPIHandler обрабатывает API запросы запусков сбора
type RunAPIHandler struct {
	getLastRunUC *usecase.GetLastRunUseCase
	trigger      RunTrigger
	// Контекст жизни сервера; ручной запуск не должен отменяться вместе с HTTP запросом
	baseCtx context.Context
	logger  *logger.Logger
}

// NewRunAPIHandler создает новый handler
func NewRunAPIHandler(
	baseCtx context.Context,
	getLastRunUC *usecase.GetLastRunUseCase,
	trigger RunTrigger,
	logger *logger.Logger,
) *RunAPIHandler {
	return &RunAPIHandler{
		getLastRunUC: getLastRunUC,
		trigger:      trigger,
		baseCtx:      baseCtx,
		logger:       logger,
	}
}

// GetLatest возвращает итог последнего запуска
func (h *RunAPIHandler) GetLatest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	summary, err := h.getLastRunUC.Execute(r.Context())
	if err != nil {
		if errors.Is(err, port.ErrStatusNotFound) {
			middleware.WriteJSON(w, http.StatusNotFound, map[string]string{"error": "no runs yet"})
			return
		}
		h.logger.Error("Failed to get last run", err)
		middleware.WriteJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get last run"})
		return
	}

	middleware.WriteJSON(w, http.StatusOK, summary)
}

// Trigger ставит внеочередной запуск; результат приходит через /ws и /api/v1/runs/latest
func (h *RunAPIHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if h.trigger == nil {
		middleware.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "scheduler is not configured"})
		return
	}
	if h.trigger.Status().Running {
		middleware.WriteJSON(w, http.StatusConflict, map[string]string{"error": scheduler.ErrRunInProgress.Error()})
		return
	}

	go func() {
		if _, err := h.trigger.RunOnce(h.baseCtx); errors.Is(err, scheduler.ErrRunInProgress) {
			h.logger.Warn("Manual run skipped, another run is active")
		}
	}()

	h.logger.Info("Manual run requested", "remote_addr", r.RemoteAddr)
	middleware.WriteJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// Status возвращает состояние планировщика
func (h *RunAPIHandler) Status(w http.ResponseWriter, r *http.Request) {
	if h.trigger == nil {
		middleware.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "scheduler is not configured"})
		return
	}
	middleware.WriteJSON(w, http.StatusOK, h.trigger.Status())
}
