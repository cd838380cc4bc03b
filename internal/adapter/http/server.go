package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ReadinessChecker reports whether the service is ready to serve traffic.
type ReadinessChecker interface {
	CheckReadiness(ctx context.Context) error
}

// Server exposes the bridge operations as JSON endpoints alongside health,
// readiness, and metrics.
type Server struct {
	httpServer *http.Server
	bridge     Bridge
	logger     *slog.Logger

	// Position requests parked behind a settings prompt, by resolution id.
	mu      sync.Mutex
	waiters map[string]chan positionOutcome
}

// NewServer creates the HTTP server and registers all routes.
func NewServer(addr string, ready ReadinessChecker, bridge Bridge, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: maxPositionWait + 5*time.Second,
			IdleTimeout:  60 * time.Second,
		},
		bridge:  bridge,
		logger:  logger,
		waiters: make(map[string]chan positionOutcome),
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", handleReady(ready))
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /geofences", s.handleListGeofences)
	mux.HandleFunc("POST /geofences", s.handleAddGeofences)
	mux.HandleFunc("DELETE /geofences", s.handleRemoveGeofences)
	mux.HandleFunc("GET /geofences/{id}", s.handleGetGeofence)
	mux.HandleFunc("POST /geofences/start", s.handleStartGeofences)
	mux.HandleFunc("POST /geofences/stop", s.handleStopGeofences)

	mux.HandleFunc("GET /location/enabled", s.handleLocationEnabled)
	mux.HandleFunc("GET /location/position", s.handleCurrentPosition)
	mux.HandleFunc("GET /location/resolution", s.handlePendingResolution)
	mux.HandleFunc("POST /location/resolution", s.handleResolveSettings)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func handleReady(checker ReadinessChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := checker.CheckReadiness(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"error":  err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
