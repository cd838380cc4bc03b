package geofence

import (
	"log/slog"

	"github.com/couchcryptid/geofence-service/internal/domain"
	"github.com/couchcryptid/geofence-service/internal/observability"
	"github.com/couchcryptid/geofence-service/internal/platform"
)

// Engine translates geofences into platform registration batches. It holds no
// state of its own.
type Engine struct {
	client  platform.GeofencingClient
	perms   platform.PermissionChecker
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewEngine creates an Engine submitting to client.
func NewEngine(client platform.GeofencingClient, perms platform.PermissionChecker, logger *slog.Logger, metrics *observability.Metrics) *Engine {
	return &Engine{client: client, perms: perms, logger: logger, metrics: metrics}
}

// TransitionMask ORs the platform bits of every transition g reports.
func TransitionMask(g domain.Geofence) platform.TransitionMask {
	var mask platform.TransitionMask
	for _, t := range g.Transitions() {
		mask |= platform.MaskFor(t)
	}
	return mask
}

// Descriptor builds the platform registration for g. Registrations never
// expire; they are removed explicitly.
func Descriptor(g domain.Geofence) platform.GeofenceDescriptor {
	return platform.GeofenceDescriptor{
		RequestID:      g.ID,
		Latitude:       g.Latitude,
		Longitude:      g.Longitude,
		Radius:         g.Radius,
		LoiteringDelay: g.Loitering(),
		Transitions:    TransitionMask(g),
		Expiration:     platform.NeverExpire,
	}
}

// AddGeofences registers gs as one batch. Without background location
// permission it fails synchronously and the platform is not called.
func (e *Engine) AddGeofences(gs []domain.Geofence, onSuccess func(), onFailure func(error)) {
	if !e.perms.HasBackgroundLocationPermission() {
		e.logger.Warn("background location permission not granted, geofences not registered", "count", len(gs))
		e.metrics.GeofenceOperations.WithLabelValues("add", "error").Inc()
		onFailure(domain.NewLocationError(domain.CodePermissionDenied, nil))
		return
	}

	req := platform.GeofencingRequest{
		Geofences:      make([]platform.GeofenceDescriptor, 0, len(gs)),
		InitialTrigger: 0,
	}
	for _, g := range gs {
		req.Geofences = append(req.Geofences, Descriptor(g))
	}

	e.logger.Debug("registering geofences", "count", len(gs), "geofence_ids", domain.IDs(gs))
	e.client.AddGeofences(req, e.observe("add", onSuccess), e.observeFailure("add", onFailure))
}

// RemoveGeofences unregisters ids as one batch.
func (e *Engine) RemoveGeofences(ids []string, onSuccess func(), onFailure func(error)) {
	e.logger.Debug("removing geofences", "geofence_ids", ids)
	e.client.RemoveGeofences(ids, e.observe("remove", onSuccess), e.observeFailure("remove", onFailure))
}

func (e *Engine) observe(op string, next func()) func() {
	return func() {
		e.metrics.GeofenceOperations.WithLabelValues(op, "success").Inc()
		next()
	}
}

func (e *Engine) observeFailure(op string, next func(error)) func(error) {
	return func(err error) {
		e.metrics.GeofenceOperations.WithLabelValues(op, "error").Inc()
		e.logger.Warn("platform geofence operation failed", "op", op, "error", err)
		next(err)
	}
}
