package handlers

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"golang.org/x/time/rate"

	"fleet-tracking/internal/logging"
)

// RouterConfig wires the HTTP surface.
type RouterConfig struct {
	Positions PositionWriter
	Sessions  SessionLifecycle
	Queries   Queries
	Tokens    TokenResolver

	// WebSocket serves /gps-tracking/ws when set.
	WebSocket http.Handler
	// Metrics serves /metrics when set.
	Metrics http.Handler
	// Health reports readiness for /healthz. Nil means always healthy.
	Health func(ctx context.Context) error

	RateLimit rate.Limit
	RateBurst int

	Logger logging.Logger
}

// NewRouter creates the router with all tracking endpoints.
func NewRouter(cfg RouterConfig) *mux.Router {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 5
	}
	if cfg.RateBurst <= 0 {
		cfg.RateBurst = 10
	}

	h := NewTrackingHandler(cfg.Positions, cfg.Sessions, cfg.Queries, logger)

	r := mux.NewRouter()
	r.Use(logRequests(logger))
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeFailure(w, http.StatusNotFound, "NOT_FOUND", "route not found")
	})

	r.HandleFunc("/healthz", healthz(cfg.Health, logger)).Methods(http.MethodGet)
	if cfg.Metrics != nil {
		r.Handle("/metrics", cfg.Metrics).Methods(http.MethodGet)
	}

	api := r.PathPrefix("/gps-tracking").Subrouter()

	// Read endpoints
	api.HandleFunc("/positions", h.Positions).Methods(http.MethodGet)
	api.HandleFunc("/positions/{workerId}", h.WorkerPosition).Methods(http.MethodGet)
	api.HandleFunc("/history/{workerId}", h.History).Methods(http.MethodGet)
	api.HandleFunc("/active-sessions", h.ActiveSessions).Methods(http.MethodGet)
	if cfg.WebSocket != nil {
		api.Handle("/ws", cfg.WebSocket).Methods(http.MethodGet)
	}

	// Worker endpoints, authenticated and rate limited per worker
	limiter := newWorkerLimiter(cfg.RateLimit, cfg.RateBurst)
	worker := api.NewRoute().Subrouter()
	worker.Use(requireWorker(cfg.Tokens, logger), limiter.middleware)
	worker.HandleFunc("/update-position", h.UpdatePosition).Methods(http.MethodPost)
	worker.HandleFunc("/start-tracking", h.StartTracking).Methods(http.MethodPost)
	worker.HandleFunc("/stop-tracking", h.StopTracking).Methods(http.MethodPost)

	return r
}

func healthz(check func(context.Context) error, logger logging.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			if err := check(r.Context()); err != nil {
				logger.Warn("health check failed", "error", err)
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
