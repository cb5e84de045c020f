package http

import (
	"net/http"

	"github.com/dreschagin/vrops-selfmon/internal/interfaces/http/handler"
	"github.com/dreschagin/vrops-selfmon/internal/interfaces/http/middleware"
	"github.com/dreschagin/vrops-selfmon/pkg/config"
	"github.com/dreschagin/vrops-selfmon/pkg/logger"
)

// ReadinessCheck сообщает, готов ли сервис принимать запросы
type ReadinessCheck func() error

// Router настраивает маршруты приложения
type Router struct {
	mux               *http.ServeMux
	runAPIHandler     *handler.RunAPIHandler
	seriesAPIHandler  *handler.SeriesAPIHandler
	reportsAPIHandler *handler.ReportsAPIHandler
	websocketHandler  *handler.WebSocketHandler
	metricsHandler    http.Handler
	httpMetrics       func(http.Handler) http.Handler
	rateLimiter       *middleware.IPRateLimiter
	ready             ReadinessCheck
	security          config.SecurityConfig
	logger            *logger.Logger
}

// NewRouter создает новый router.
// metricsHandler, httpMetrics, rateLimiter и ready могут быть nil.
func NewRouter(
	runAPIHandler *handler.RunAPIHandler,
	seriesAPIHandler *handler.SeriesAPIHandler,
	reportsAPIHandler *handler.ReportsAPIHandler,
	websocketHandler *handler.WebSocketHandler,
	metricsHandler http.Handler,
	httpMetrics func(http.Handler) http.Handler,
	rateLimiter *middleware.IPRateLimiter,
	ready ReadinessCheck,
	security config.SecurityConfig,
	logger *logger.Logger,
) *Router {
	return &Router{
		mux:               http.NewServeMux(),
		runAPIHandler:     runAPIHandler,
		seriesAPIHandler:  seriesAPIHandler,
		reportsAPIHandler: reportsAPIHandler,
		websocketHandler:  websocketHandler,
		metricsHandler:    metricsHandler,
		httpMetrics:       httpMetrics,
		rateLimiter:       rateLimiter,
		ready:             ready,
		security:          security,
		logger:            logger,
	}
}

// Setup настраивает все маршруты
func (rt *Router) Setup() http.Handler {
	// Health endpoints are intentionally unauthenticated for probes.
	rt.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	rt.mux.HandleFunc("GET /readyz", func(w http.ResponseWriter, _ *http.Request) {
		if rt.ready != nil {
			if err := rt.ready(); err != nil {
				http.Error(w, "not ready: "+err.Error(), http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	if rt.metricsHandler != nil {
		rt.mux.Handle("GET /metrics", rt.metricsHandler)
	}

	authMiddleware := middleware.Auth(middleware.AuthConfig{
		Enabled:     rt.security.AuthEnabled,
		BearerToken: rt.security.AuthToken,
	}, rt.logger)

	api := func(h http.HandlerFunc) http.Handler {
		var wrapped http.Handler = h
		wrapped = middleware.Compression(wrapped)
		wrapped = authMiddleware(wrapped)
		if rt.rateLimiter != nil {
			wrapped = middleware.RateLimit(rt.rateLimiter)(wrapped)
		}
		return wrapped
	}

	// WebSocket проверяет токен сам, чтобы принимать ?token= от браузера
	rt.mux.HandleFunc("GET /ws", rt.websocketHandler.HandleConnection)

	// API endpoints
	rt.mux.Handle("GET /api/v1/runs/latest", api(rt.runAPIHandler.GetLatest))
	rt.mux.Handle("GET /api/v1/runs/status", api(rt.runAPIHandler.Status))
	rt.mux.Handle("POST /api/v1/runs", api(rt.runAPIHandler.Trigger))
	rt.mux.Handle("GET /api/v1/series", api(rt.seriesAPIHandler.GetSeries))
	rt.mux.Handle("GET /api/v1/reports", api(rt.reportsAPIHandler.ListReports))

	// Применяем middleware
	var handler http.Handler = rt.mux
	if rt.httpMetrics != nil {
		handler = rt.httpMetrics(handler)
	}
	handler = middleware.Logger(rt.logger)(handler)
	handler = middleware.Recovery(rt.logger)(handler)

	return handler
}
