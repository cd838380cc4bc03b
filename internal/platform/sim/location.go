package sim

import (
	"github.com/couchcryptid/geofence-service/internal/domain"
	"github.com/couchcryptid/geofence-service/internal/platform"
)

// CheckLocationSettings succeeds when location is on and, for high-accuracy
// requests, the device is in high-accuracy mode.
func (d *Device) CheckLocationSettings(req platform.LocationSettingsRequest, onSuccess func(), onFailure func(error)) {
	d.mu.Lock()
	satisfied := d.locationEnabled &&
		(req.Priority != platform.PriorityHighAccuracy || (d.modeErr == nil && d.mode == platform.ModeHighAccuracy))
	unresolvable := d.settingsUnresolvable
	d.mu.Unlock()

	go func() {
		switch {
		case satisfied:
			onSuccess()
		case unresolvable:
			onFailure(&platform.APIError{
				StatusCode: platform.StatusSettingsChangeUnavailable,
				Message:    "SETTINGS_CHANGE_UNAVAILABLE",
			})
		default:
			onFailure(&platform.APIError{
				StatusCode: platform.StatusResolutionRequired,
				Message:    "RESOLUTION_REQUIRED",
			})
		}
	}()
}

// GetCurrentLocation answers with the current fix when there is one.
// Otherwise the request waits for UpdateFix and, once req.Duration passes,
// completes with a nil fix.
func (d *Device) GetCurrentLocation(req platform.CurrentLocationRequest, onSuccess func(*domain.Position), onFailure func(error)) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.locationEnabled {
		go onFailure(&platform.APIError{StatusCode: StatusInternalError, Message: "location provider disabled"})
		return
	}
	if d.fix != nil {
		fix := *d.fix
		go onSuccess(&fix)
		return
	}

	id := req.ID
	timer := d.clock.AfterFunc(req.Duration, func() {
		d.mu.Lock()
		pf, ok := d.pending[id]
		delete(d.pending, id)
		d.mu.Unlock()
		if ok {
			pf.onSuccess(nil)
		}
	})
	d.pending[id] = pendingFix{onSuccess: onSuccess, timer: timer}
}

// CancelLocationUpdates drops a pending request without completing it.
func (d *Device) CancelLocationUpdates(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if pf, ok := d.pending[id]; ok {
		pf.timer.Stop()
		delete(d.pending, id)
	}
}

// Pending returns the number of one-shot requests waiting for a fix.
func (d *Device) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}
