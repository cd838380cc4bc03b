// Package location acquires single position fixes. Every request reports
// exactly one outcome, however many of the provider, the provider's own
// timeout and the local timeout race to complete it.
package location

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/geofence-service/internal/domain"
	"github.com/couchcryptid/geofence-service/internal/observability"
	"github.com/couchcryptid/geofence-service/internal/platform"
)

// Device is the device state consulted before a request reaches the provider.
type Device interface {
	platform.DeviceSettings
	platform.PermissionChecker
}

// Controller runs current-position requests against the platform provider.
type Controller struct {
	client         platform.LocationClient
	device         Device
	caps           platform.Capabilities
	clock          clockwork.Clock
	defaultTimeout time.Duration
	logger         *slog.Logger
	metrics        *observability.Metrics
}

// NewController creates a Controller. client may be nil when the platform
// provider is unavailable; every request then fails with
// LOCATION_CLIENT_IS_NULL.
func NewController(
	client platform.LocationClient,
	device Device,
	caps platform.Capabilities,
	clock clockwork.Clock,
	defaultTimeout time.Duration,
	logger *slog.Logger,
	metrics *observability.Metrics,
) *Controller {
	return &Controller{
		client:         client,
		device:         device,
		caps:           caps,
		clock:          clock,
		defaultTimeout: defaultTimeout,
		logger:         logger,
		metrics:        metrics,
	}
}

// IsLocationEnabled reports the device location switch.
func (c *Controller) IsLocationEnabled() bool {
	return c.device.IsLocationEnabled()
}

// GetCurrentPosition reports one fix to onSuccess or one error to onFailure,
// never both and never twice. Precondition failures are reported before it
// returns, checked in this order: provider unavailable, location disabled,
// permission denied. A failed settings check is passed to onFailure as the
// platform reported it.
func (c *Controller) GetCurrentPosition(req domain.CurrentPositionRequest, onSuccess func(domain.Position), onFailure func(error)) {
	start := c.clock.Now()
	fail := func(err error) {
		c.observe(start, err)
		onFailure(err)
	}

	switch {
	case c.client == nil:
		fail(domain.ErrLocationServiceUnavailable)
		return
	case !c.device.IsLocationEnabled():
		fail(domain.ErrLocationDisabled)
		return
	case !c.device.HasFineOrCoarseLocationPermission():
		fail(domain.ErrPermissionDenied)
		return
	}

	if !c.caps.SupportsSettingsCheck() {
		mode, err := c.device.LocationMode()
		switch {
		case err != nil:
			c.logger.Debug("location mode unreadable, requesting anyway", "error", err)
		case mode != platform.ModeHighAccuracy:
			fail(domain.NewLocationError(domain.CodeLocationSettingsFailed,
				fmt.Errorf("location mode is %s", mode)))
			return
		}
		c.acquire(req, start, onSuccess, onFailure)
		return
	}

	c.client.CheckLocationSettings(
		platform.LocationSettingsRequest{Priority: platform.PriorityHighAccuracy},
		func() { c.acquire(req, start, onSuccess, onFailure) },
		func(err error) {
			c.logger.Debug("location settings check failed", "error", err)
			fail(err)
		},
	)
}

func (c *Controller) acquire(req domain.CurrentPositionRequest, start time.Time, onSuccess func(domain.Position), onFailure func(error)) {
	// Permission can be revoked while the settings check is in flight.
	if !c.device.HasFineOrCoarseLocationPermission() {
		c.logger.Error("missing the required location permissions")
		c.observe(start, domain.ErrPermissionDenied)
		onFailure(domain.ErrPermissionDenied)
		return
	}

	timeout := req.Timeout(c.defaultTimeout)
	r := &request{
		id:        uuid.NewString(),
		start:     start,
		onSuccess: onSuccess,
		onFailure: onFailure,
		c:         c,
	}

	// The timer is armed before the provider is called so every provider
	// callback can stop it.
	r.timer = c.clock.AfterFunc(timeout, r.expire)

	c.logger.Debug("requesting current location", "request_id", r.id, "timeout", timeout)
	c.client.GetCurrentLocation(platform.CurrentLocationRequest{
		ID:          r.id,
		Priority:    platform.PriorityHighAccuracy,
		Granularity: platform.GranularityFine,
		Duration:    timeout,
	}, r.deliver, r.providerFailed)
}

// request is one in-flight acquisition.
type request struct {
	id        string
	start     time.Time
	token     completion
	timer     clockwork.Timer
	onSuccess func(domain.Position)
	onFailure func(error)
	c         *Controller
}

func (r *request) deliver(fix *domain.Position) {
	if !r.token.claim() {
		r.c.logger.Debug("discarding late location result", "request_id", r.id)
		return
	}
	r.timer.Stop()

	if fix == nil || !fix.Valid() {
		r.c.observe(r.start, domain.ErrLocationResultNull)
		r.onFailure(domain.ErrLocationResultNull)
		return
	}
	r.c.observe(r.start, nil)
	r.onSuccess(*fix)
}

func (r *request) providerFailed(err error) {
	if !r.token.claim() {
		r.c.logger.Debug("discarding late location failure", "request_id", r.id, "error", err)
		return
	}
	r.timer.Stop()

	r.c.logger.Error("unable to access current position", "request_id", r.id, "error", err)
	lerr := domain.NewLocationError(domain.CodeCurrentLocationFailed, err)
	r.c.observe(r.start, lerr)
	r.onFailure(lerr)
}

func (r *request) expire() {
	if !r.token.claim() {
		return
	}
	r.c.client.CancelLocationUpdates(r.id)
	r.c.logger.Warn("current location request timed out", "request_id", r.id)
	r.c.observe(r.start, domain.ErrLocationTimeout)
	r.onFailure(domain.ErrLocationTimeout)
}

func (c *Controller) observe(start time.Time, err error) {
	c.metrics.PositionRequestDuration.Observe(c.clock.Since(start).Seconds())
	c.metrics.PositionRequests.WithLabelValues(outcome(err)).Inc()
}

func outcome(err error) string {
	if err == nil {
		return "success"
	}
	if code, ok := domain.CodeOf(err); ok {
		return code.String()
	}
	var apiErr *platform.APIError
	if errors.As(err, &apiErr) {
		return "platform_error"
	}
	return "unknown"
}
