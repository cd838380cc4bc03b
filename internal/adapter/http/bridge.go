package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/couchcryptid/geofence-service/internal/bridge"
	"github.com/couchcryptid/geofence-service/internal/domain"
)

// maxPositionWait bounds how long a position request may hold a connection.
const maxPositionWait = 60 * time.Second

// Bridge is the host operation surface served over HTTP.
type Bridge interface {
	StartGeofences(ctx context.Context, cb bridge.Callbacks) error
	StopGeofences(ctx context.Context, cb bridge.Callbacks) error
	AddGeofences(ctx context.Context, gs []domain.Geofence) error
	RemoveGeofences(ctx context.Context) error
	GetGeofence(id string) (domain.Geofence, bool)
	Geofences() []domain.Geofence
	GeofencesActive() bool
	IsLocationEnabled() bool
	GetCurrentPosition(req domain.CurrentPositionRequest, cb bridge.PositionCallbacks) error
	PendingResolution() (bridge.Resolution, bool)
	ResolveSettings(approved bool) error
}

type geofenceList struct {
	Geofences []domain.Geofence `json:"geofences"`
	Active    bool              `json:"active"`
}

type positionOutcome struct {
	position   domain.Position
	failure    *bridge.Failure
	resolution *bridge.Resolution
}

// --- geofences ---

func (s *Server) handleListGeofences(w http.ResponseWriter, _ *http.Request) {
	gs := s.bridge.Geofences()
	if gs == nil {
		gs = []domain.Geofence{}
	}
	writeJSON(w, http.StatusOK, geofenceList{Geofences: gs, Active: s.bridge.GeofencesActive()})
}

func (s *Server) handleGetGeofence(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	g, ok := s.bridge.GetGeofence(id)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Errorf("geofence %q not found", id))
		return
	}
	writeJSON(w, http.StatusOK, g)
}

func (s *Server) handleAddGeofences(w http.ResponseWriter, r *http.Request) {
	var gs []domain.Geofence
	if err := json.NewDecoder(r.Body).Decode(&gs); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode geofences: %w", err))
		return
	}
	if err := s.bridge.AddGeofences(r.Context(), gs); err != nil {
		var verr *bridge.ValidationError
		if errors.As(err, &verr) {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		s.logger.Error("add geofences failed", "error", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int{"added": len(gs)})
}

func (s *Server) handleRemoveGeofences(w http.ResponseWriter, r *http.Request) {
	if err := s.bridge.RemoveGeofences(r.Context()); err != nil {
		s.logger.Error("remove geofences failed", "error", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStartGeofences(w http.ResponseWriter, r *http.Request) {
	s.runOperation(w, r, s.bridge.StartGeofences, "started")
}

func (s *Server) handleStopGeofences(w http.ResponseWriter, r *http.Request) {
	s.runOperation(w, r, s.bridge.StopGeofences, "stopped")
}

// runOperation waits for the continuation of a start or stop.
func (s *Server) runOperation(w http.ResponseWriter, r *http.Request, op func(context.Context, bridge.Callbacks) error, done string) {
	result := make(chan *bridge.Failure, 1)
	err := op(r.Context(), bridge.Callbacks{
		OnSuccess: func() { result <- nil },
		OnFailure: func(f bridge.Failure) { result <- &f },
	})
	if err != nil {
		s.logger.Error("geofence operation failed", "error", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	select {
	case f := <-result:
		if f != nil {
			writeJSON(w, failureStatus(*f), f)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": done, "active": s.bridge.GeofencesActive()})
	case <-r.Context().Done():
		writeError(w, http.StatusGatewayTimeout, r.Context().Err())
	}
}

// --- location ---

func (s *Server) handleLocationEnabled(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"enabled": s.bridge.IsLocationEnabled()})
}

func (s *Server) handleCurrentPosition(w http.ResponseWriter, r *http.Request) {
	var req domain.CurrentPositionRequest
	if v := r.URL.Query().Get("timeout"); v != "" {
		ms, err := strconv.ParseInt(v, 10, 64)
		if err != nil || ms <= 0 {
			writeError(w, http.StatusBadRequest, errors.New("timeout: must be a positive number of milliseconds"))
			return
		}
		req.TimeoutMillis = ms
	}

	results := make(chan positionOutcome, 2)
	err := s.bridge.GetCurrentPosition(req, bridge.PositionCallbacks{
		OnSuccess: func(p domain.Position) { results <- positionOutcome{position: p} },
		OnFailure: func(f bridge.Failure) { results <- positionOutcome{failure: &f} },
		OnResolutionRequired: func(res bridge.Resolution) {
			s.park(res.ID, results)
			results <- positionOutcome{resolution: &res}
		},
	})
	if err != nil {
		s.writeBridgeError(w, err)
		return
	}
	s.awaitPosition(w, r, results)
}

func (s *Server) handlePendingResolution(w http.ResponseWriter, _ *http.Request) {
	res, ok := s.bridge.PendingResolution()
	if !ok {
		writeError(w, http.StatusNotFound, bridge.ErrNoPendingResolution)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleResolveSettings answers the outstanding prompt. When the parked
// request came through this server, the retried request's outcome is returned.
func (s *Server) handleResolveSettings(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Approved *bool `json:"approved"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Approved == nil {
		writeError(w, http.StatusBadRequest, errors.New("approved: required boolean"))
		return
	}

	pending, ok := s.bridge.PendingResolution()
	if !ok {
		writeError(w, http.StatusNotFound, bridge.ErrNoPendingResolution)
		return
	}
	results, parked := s.unpark(pending.ID)

	if err := s.bridge.ResolveSettings(*body.Approved); err != nil {
		s.writeBridgeError(w, err)
		return
	}
	if !parked {
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "resolved"})
		return
	}
	s.awaitPosition(w, r, results)
}

func (s *Server) awaitPosition(w http.ResponseWriter, r *http.Request, results <-chan positionOutcome) {
	ctx, cancel := context.WithTimeout(r.Context(), maxPositionWait)
	defer cancel()

	select {
	case out := <-results:
		switch {
		case out.resolution != nil:
			writeJSON(w, http.StatusAccepted, map[string]any{
				"status":     "resolution_required",
				"resolution": out.resolution,
			})
		case out.failure != nil:
			writeJSON(w, failureStatus(*out.failure), out.failure)
		default:
			writeJSON(w, http.StatusOK, out.position)
		}
	case <-ctx.Done():
		writeError(w, http.StatusGatewayTimeout, ctx.Err())
	}
}

func (s *Server) park(id string, results chan positionOutcome) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.waiters[id] = results
}

func (s *Server) unpark(id string) (chan positionOutcome, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.waiters[id]
	delete(s.waiters, id)
	return ch, ok
}

func (s *Server) writeBridgeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, bridge.ErrResolutionPending):
		writeError(w, http.StatusConflict, err)
	case errors.Is(err, bridge.ErrNoPendingResolution):
		writeError(w, http.StatusNotFound, err)
	default:
		s.logger.Error("bridge call failed", "error", err)
		writeError(w, http.StatusInternalServerError, err)
	}
}

// failureStatus maps a failure payload onto an HTTP status.
func failureStatus(f bridge.Failure) int {
	if f.Platform != nil {
		return http.StatusBadGateway
	}
	switch f.Code {
	case domain.CodePermissionDenied:
		return http.StatusForbidden
	case domain.CodeLocationSettingsFailed:
		return http.StatusConflict
	case domain.CodeLocationDisabled, domain.CodeLocationClientIsNull:
		return http.StatusServiceUnavailable
	case domain.CodeLocationIsNull, domain.CodeCurrentLocationFailed, domain.CodeNetworkError:
		return http.StatusBadGateway
	case domain.CodeLocationTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
