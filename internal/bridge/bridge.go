// Package bridge is the host-facing surface over the geofence and location
// controllers. It owns the single pending settings-resolution retry.
package bridge

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/couchcryptid/geofence-service/internal/domain"
	"github.com/couchcryptid/geofence-service/internal/platform"
)

var (
	// ErrResolutionPending rejects a position request while a settings
	// resolution is outstanding.
	ErrResolutionPending = errors.New("location settings resolution already pending")
	// ErrNoPendingResolution is returned when there is nothing to resolve.
	ErrNoPendingResolution = errors.New("no location settings resolution pending")
	// ErrNotReady is reported by CheckReadiness before Boot completes.
	ErrNotReady = errors.New("geofences not restored yet")
)

// GeofenceController is the geofence state machine.
type GeofenceController interface {
	Start(ctx context.Context, onSuccess func(), onFailure func(error)) (bool, error)
	Stop(ctx context.Context, onSuccess func(), onFailure func(error)) (bool, error)
	Restart(ctx context.Context, onSuccess func(), onFailure func(error)) (bool, error)
	AddGeofences(ctx context.Context, gs []domain.Geofence) error
	RemoveAllGeofences(ctx context.Context) error
	GetGeofenceByID(id string) (domain.Geofence, bool)
	Geofences() []domain.Geofence
	Active() bool
	SetupReregistration() bool
}

// LocationController acquires single fixes.
type LocationController interface {
	GetCurrentPosition(req domain.CurrentPositionRequest, onSuccess func(domain.Position), onFailure func(error))
	IsLocationEnabled() bool
}

// Callbacks receive the outcome of a geofence operation.
type Callbacks struct {
	OnSuccess func()
	OnFailure func(Failure)
}

// PositionCallbacks receive the outcome of a position request. When
// OnResolutionRequired is nil, a resolvable settings failure is reported as
// LOCATION_SETTINGS_FAILED instead.
type PositionCallbacks struct {
	OnSuccess            func(domain.Position)
	OnFailure            func(Failure)
	OnResolutionRequired func(Resolution)
}

// Resolution identifies an outstanding settings prompt.
type Resolution struct {
	ID        string    `json:"id"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
}

// PendingRetry is a position request parked behind a settings prompt. It is
// set when the prompt is raised and consumed by ResolveSettings.
type PendingRetry struct {
	Resolution Resolution
	Request    domain.CurrentPositionRequest
	Callbacks  PositionCallbacks
}

// Module exposes the host operations.
type Module struct {
	geofences GeofenceController
	location  LocationController
	resolver  platform.SettingsResolver
	logger    *slog.Logger

	mu      sync.Mutex
	pending *PendingRetry
	ready   atomic.Bool
}

// New creates a Module.
func New(geofences GeofenceController, location LocationController, resolver platform.SettingsResolver, logger *slog.Logger) *Module {
	return &Module{
		geofences: geofences,
		location:  location,
		resolver:  resolver,
		logger:    logger,
	}
}

// Boot restores geofences that were active before the process stopped and
// engages periodic re-registration where the platform needs it.
func (m *Module) Boot(ctx context.Context) error {
	scheduled := m.geofences.SetupReregistration()
	restarted, err := m.geofences.Restart(ctx,
		func() { m.logger.Info("geofences restored") },
		func(err error) { m.logger.Warn("geofence restore failed", "error", err) },
	)
	if err != nil {
		return err
	}
	m.logger.Info("bridge ready", "restarted", restarted, "reregistration_scheduled", scheduled)
	m.ready.Store(true)
	return nil
}

// CheckReadiness reports whether Boot has completed.
func (m *Module) CheckReadiness(_ context.Context) error {
	if !m.ready.Load() {
		return ErrNotReady
	}
	return nil
}

// StartGeofences makes the stored geofences live. With nothing stored, it
// succeeds immediately. The returned error is a storage failure.
func (m *Module) StartGeofences(ctx context.Context, cb Callbacks) error {
	dispatched, err := m.geofences.Start(ctx, cb.OnSuccess, m.failureTo(cb.OnFailure))
	if err != nil {
		return err
	}
	if !dispatched {
		cb.OnSuccess()
	}
	return nil
}

// StopGeofences unregisters the stored geofences.
func (m *Module) StopGeofences(ctx context.Context, cb Callbacks) error {
	dispatched, err := m.geofences.Stop(ctx, cb.OnSuccess, m.failureTo(cb.OnFailure))
	if err != nil {
		return err
	}
	if !dispatched {
		cb.OnSuccess()
	}
	return nil
}

// AddGeofences validates and stores geofences. Nothing is registered with the
// platform until StartGeofences.
func (m *Module) AddGeofences(ctx context.Context, gs []domain.Geofence) error {
	for _, g := range gs {
		if err := g.Validate(); err != nil {
			return &ValidationError{ID: g.ID, Err: err}
		}
		if len(g.Transitions()) == 0 {
			m.logger.Warn("geofence has no transitions enabled and will never fire", "geofence_id", g.ID)
		}
	}
	return m.geofences.AddGeofences(ctx, gs)
}

// RemoveGeofences clears the stored set.
func (m *Module) RemoveGeofences(ctx context.Context) error {
	return m.geofences.RemoveAllGeofences(ctx)
}

// GetGeofence looks up a stored geofence.
func (m *Module) GetGeofence(id string) (domain.Geofence, bool) {
	return m.geofences.GetGeofenceByID(id)
}

// Geofences lists the stored set.
func (m *Module) Geofences() []domain.Geofence {
	return m.geofences.Geofences()
}

// GeofencesActive reports the activation flag.
func (m *Module) GeofencesActive() bool {
	return m.geofences.Active()
}

// IsLocationEnabled reports the device location switch.
func (m *Module) IsLocationEnabled() bool {
	return m.location.IsLocationEnabled()
}

// GetCurrentPosition requests one fix. A settings failure the user can
// resolve parks the request as the PendingRetry and calls
// OnResolutionRequired; ResolveSettings then retries or fails it. While a
// retry is parked, new requests are rejected with ErrResolutionPending.
func (m *Module) GetCurrentPosition(req domain.CurrentPositionRequest, cb PositionCallbacks) error {
	m.mu.Lock()
	if m.pending != nil {
		m.mu.Unlock()
		return ErrResolutionPending
	}
	m.mu.Unlock()

	m.requestPosition(req, cb)
	return nil
}

// requestPosition runs one request. A resolvable failure that finds the slot
// taken is reported to cb as LOCATION_SETTINGS_FAILED.
func (m *Module) requestPosition(req domain.CurrentPositionRequest, cb PositionCallbacks) {
	m.location.GetCurrentPosition(req, cb.OnSuccess, func(err error) {
		var apiErr *platform.APIError
		if errors.As(err, &apiErr) && apiErr.ResolutionRequired() && cb.OnResolutionRequired != nil {
			if r, ok := m.park(req, cb, apiErr.Message); ok {
				cb.OnResolutionRequired(r)
				return
			}
			cb.OnFailure(Failure{Code: domain.CodeLocationSettingsFailed, Message: ErrResolutionPending.Error()})
			return
		}
		if apiErr != nil && apiErr.ResolutionRequired() {
			cb.OnFailure(Failure{Code: domain.CodeLocationSettingsFailed, Message: apiErr.Message})
			return
		}
		cb.OnFailure(Classify(err))
	})
}

// PendingResolution returns the outstanding settings prompt, if any.
func (m *Module) PendingResolution() (Resolution, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pending == nil {
		return Resolution{}, false
	}
	return m.pending.Resolution, true
}

// ResolveSettings consumes the PendingRetry. On approval the settings change
// is applied and the request re-runs with its original parameters and
// callbacks; otherwise its OnFailure receives LOCATION_SETTINGS_FAILED.
// The retry is never rejected, even if another request parked in the
// meantime.
func (m *Module) ResolveSettings(approved bool) error {
	m.mu.Lock()
	p := m.pending
	m.pending = nil
	m.mu.Unlock()

	if p == nil {
		return ErrNoPendingResolution
	}

	m.resolver.ResolveSettings(approved)
	m.logger.Info("location settings resolution completed", "resolution_id", p.Resolution.ID, "approved", approved)

	if !approved {
		p.Callbacks.OnFailure(Failure{
			Code:    domain.CodeLocationSettingsFailed,
			Message: "location settings change declined",
		})
		return nil
	}
	m.requestPosition(p.Request, p.Callbacks)
	return nil
}

func (m *Module) park(req domain.CurrentPositionRequest, cb PositionCallbacks, message string) (Resolution, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pending != nil {
		return Resolution{}, false
	}
	r := Resolution{ID: uuid.NewString(), Message: message, CreatedAt: domain.Now()}
	m.pending = &PendingRetry{Resolution: r, Request: req, Callbacks: cb}
	m.logger.Info("location settings resolution required", "resolution_id", r.ID)
	return r, true
}

func (m *Module) failureTo(onFailure func(Failure)) func(error) {
	return func(err error) {
		onFailure(Classify(err))
	}
}
