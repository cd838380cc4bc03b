package sim

import (
	"fmt"

	"github.com/couchcryptid/geofence-service/internal/domain"
	"github.com/couchcryptid/geofence-service/internal/platform"
)

// AddGeofences registers the batch, replacing regions with the same request
// id. Callbacks run on their own goroutine.
func (d *Device) AddGeofences(req platform.GeofencingRequest, onSuccess func(), onFailure func(error)) {
	d.mu.Lock()
	err := d.addLocked(req)
	d.mu.Unlock()

	go func() {
		if err != nil {
			onFailure(err)
			return
		}
		onSuccess()
	}()
}

func (d *Device) addLocked(req platform.GeofencingRequest) error {
	if d.registrationErr != nil {
		return d.registrationErr
	}
	if !d.locationEnabled || !d.backgroundGranted {
		return &platform.APIError{StatusCode: StatusGeofenceNotAvailable, Message: "GEOFENCE_NOT_AVAILABLE"}
	}

	added := 0
	for _, desc := range req.Geofences {
		if _, ok := d.regions[desc.RequestID]; !ok {
			added++
		}
	}
	if len(d.regions)+added > maxGeofences {
		return &platform.APIError{
			StatusCode: StatusTooManyGeofences,
			Message:    fmt.Sprintf("GEOFENCE_TOO_MANY_GEOFENCES: limit %d", maxGeofences),
		}
	}

	var entered []string
	for _, desc := range req.Geofences {
		d.removeLocked(desc.RequestID)
		r := &region{desc: desc}
		if d.fix != nil && contains(desc, *d.fix) {
			r.inside = true
			if req.InitialTrigger.Has(platform.MaskEnter) && desc.Transitions.Has(platform.MaskEnter) {
				entered = append(entered, desc.RequestID)
			}
			if desc.Transitions.Has(platform.MaskDwell) {
				d.scheduleDwell(r)
			}
		}
		d.regions[desc.RequestID] = r
		d.order = append(d.order, desc.RequestID)
	}

	if len(entered) > 0 {
		d.emit(platform.GeofencingEvent{
			Transition:  domain.TransitionEnter,
			GeofenceIDs: entered,
			Location:    *d.fix,
		})
	}
	return nil
}

// RemoveGeofences unregisters the given ids. Unknown ids are ignored.
func (d *Device) RemoveGeofences(ids []string, onSuccess func(), _ func(error)) {
	d.mu.Lock()
	for _, id := range ids {
		d.removeLocked(id)
	}
	d.mu.Unlock()

	go onSuccess()
}

// UpdateFix moves the device. Pending one-shot requests receive the fix and
// every registered region is re-evaluated.
func (d *Device) UpdateFix(p domain.Position) {
	d.mu.Lock()
	d.fix = &p

	var waiting []pendingFix
	if d.locationEnabled {
		for id, pf := range d.pending {
			pf.timer.Stop()
			waiting = append(waiting, pf)
			delete(d.pending, id)
		}
	}

	var entered, exited []string
	for _, id := range d.order {
		r := d.regions[id]
		inside := contains(r.desc, p)
		switch {
		case inside && !r.inside:
			r.inside = true
			if r.desc.Transitions.Has(platform.MaskEnter) {
				entered = append(entered, id)
			}
			if r.desc.Transitions.Has(platform.MaskDwell) {
				d.scheduleDwell(r)
			}
		case !inside && r.inside:
			r.inside = false
			if r.dwellTimer != nil {
				r.dwellTimer.Stop()
				r.dwellTimer = nil
			}
			if r.desc.Transitions.Has(platform.MaskExit) {
				exited = append(exited, id)
			}
		}
	}
	if len(entered) > 0 {
		d.emit(platform.GeofencingEvent{Transition: domain.TransitionEnter, GeofenceIDs: entered, Location: p})
	}
	if len(exited) > 0 {
		d.emit(platform.GeofencingEvent{Transition: domain.TransitionExit, GeofenceIDs: exited, Location: p})
	}
	d.mu.Unlock()

	for _, pf := range waiting {
		fix := p
		go pf.onSuccess(&fix)
	}
}
