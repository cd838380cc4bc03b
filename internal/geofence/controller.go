package geofence

import (
	"context"
	"log/slog"

	"github.com/couchcryptid/geofence-service/internal/domain"
	"github.com/couchcryptid/geofence-service/internal/observability"
	"github.com/couchcryptid/geofence-service/internal/platform"
)

// GeofenceEngine submits registration batches to the platform.
type GeofenceEngine interface {
	AddGeofences(gs []domain.Geofence, onSuccess func(), onFailure func(error))
	RemoveGeofences(ids []string, onSuccess func(), onFailure func(error))
}

// Restarter re-submits geofences that were active before a reboot.
type Restarter interface {
	Restart(ctx context.Context, onSuccess func(), onFailure func(error)) (bool, error)
}

// ReRegistrationScheduler arranges for Restart to run again later.
type ReRegistrationScheduler interface {
	ScheduleReRegistration(r Restarter)
}

// Controller drives the ACTIVE/INACTIVE geofence state machine. Platform
// failures reach the caller's onFailure and never roll back the persisted
// activation flag; the re-registration job retries instead.
type Controller struct {
	repo       *Repository
	activation *ActivationStore
	engine     GeofenceEngine
	scheduler  ReRegistrationScheduler
	caps       platform.Capabilities
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewController wires the controller's collaborators.
func NewController(
	repo *Repository,
	activation *ActivationStore,
	engine GeofenceEngine,
	scheduler ReRegistrationScheduler,
	caps platform.Capabilities,
	logger *slog.Logger,
	metrics *observability.Metrics,
) *Controller {
	c := &Controller{
		repo:       repo,
		activation: activation,
		engine:     engine,
		scheduler:  scheduler,
		caps:       caps,
		logger:     logger,
		metrics:    metrics,
	}
	c.metrics.GeofencesRegistered.Set(float64(len(repo.List())))
	c.metrics.GeofencesActive.Set(boolGauge(activation.Active()))
	return c
}

// Start marks geofences active and registers the full set. It returns false,
// without calling either continuation, when there is nothing to register.
// The returned error is a storage failure; the platform call is not made.
func (c *Controller) Start(ctx context.Context, onSuccess func(), onFailure func(error)) (bool, error) {
	geofences := c.repo.List()
	if len(geofences) == 0 {
		c.logger.Warn("starting geofences with none set, skipping")
		return false, nil
	}
	if err := c.setActive(ctx, true); err != nil {
		return false, err
	}
	c.logger.Info("starting geofences", "count", len(geofences))
	c.engine.AddGeofences(geofences, onSuccess, onFailure)
	return true, nil
}

// Stop marks geofences inactive and unregisters them. Like Start, it is a
// no-op on an empty repository.
func (c *Controller) Stop(ctx context.Context, onSuccess func(), onFailure func(error)) (bool, error) {
	geofences := c.repo.List()
	if len(geofences) == 0 {
		c.logger.Warn("stopping geofences with none set, skipping")
		return false, nil
	}
	if err := c.setActive(ctx, false); err != nil {
		return false, err
	}
	ids := domain.IDs(geofences)
	c.logger.Info("stopping geofences", "count", len(ids))
	c.engine.RemoveGeofences(ids, onSuccess, onFailure)
	return true, nil
}

// Restart starts geofences again only if they were left active.
func (c *Controller) Restart(ctx context.Context, onSuccess func(), onFailure func(error)) (bool, error) {
	if !c.activation.Active() {
		c.logger.Debug("geofences inactive, nothing to restart")
		return false, nil
	}
	return c.Start(ctx, onSuccess, onFailure)
}

// AddGeofences declares geofences to monitor. A later Start makes them live.
func (c *Controller) AddGeofences(ctx context.Context, gs []domain.Geofence) error {
	if err := c.repo.Add(ctx, gs); err != nil {
		return err
	}
	c.metrics.GeofencesRegistered.Set(float64(len(c.repo.List())))
	return nil
}

// RemoveAllGeofences clears the repository without touching the platform.
func (c *Controller) RemoveAllGeofences(ctx context.Context) error {
	if err := c.repo.RemoveAll(ctx); err != nil {
		return err
	}
	c.metrics.GeofencesRegistered.Set(0)
	return nil
}

// GetGeofenceByID looks up a stored geofence.
func (c *Controller) GetGeofenceByID(id string) (domain.Geofence, bool) {
	return c.repo.GetByID(id)
}

// Geofences returns the stored set.
func (c *Controller) Geofences() []domain.Geofence {
	return c.repo.List()
}

// Active reports the persisted activation flag.
func (c *Controller) Active() bool {
	return c.activation.Active()
}

// SetupReregistration engages the scheduler on platforms where registrations
// do not reliably survive a reboot. Elsewhere the boot path calls Restart once.
func (c *Controller) SetupReregistration() bool {
	if !c.caps.RequiresScheduledReRegistration() {
		return false
	}
	c.scheduler.ScheduleReRegistration(c)
	return true
}

func (c *Controller) setActive(ctx context.Context, active bool) error {
	if err := c.activation.SetActive(ctx, active); err != nil {
		return err
	}
	c.metrics.GeofencesActive.Set(boolGauge(active))
	return nil
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
