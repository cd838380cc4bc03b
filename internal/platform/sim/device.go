// Package sim is an in-process device that implements the platform ports.
// Fixes are injected with UpdateFix; registered regions are evaluated against
// each fix and crossings are emitted on Events.
package sim

import (
	"log/slog"
	"math"
	"slices"
	"sync"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/geofence-service/internal/domain"
	"github.com/couchcryptid/geofence-service/internal/platform"
)

// Platform status codes the device reports for registration failures.
const (
	StatusInternalError        = 8
	StatusGeofenceNotAvailable = 1000
	StatusTooManyGeofences     = 1001
)

// maxGeofences matches the per-app limit of the platform geofencing service.
const maxGeofences = 100

const eventBuffer = 64

type region struct {
	desc       platform.GeofenceDescriptor
	inside     bool
	dwellTimer clockwork.Timer
}

type pendingFix struct {
	onSuccess func(*domain.Position)
	timer     clockwork.Timer
}

// Device is a simulated handset. The zero value is not usable; call New.
type Device struct {
	mu     sync.Mutex
	clock  clockwork.Clock
	logger *slog.Logger

	fineGranted          bool
	backgroundGranted    bool
	locationEnabled      bool
	mode                 platform.LocationMode
	modeErr              error
	settingsUnresolvable bool
	registrationErr      error

	fix     *domain.Position
	regions map[string]*region
	order   []string
	pending map[string]pendingFix

	events chan platform.GeofencingEvent
}

// Option configures a Device.
type Option func(*Device)

// WithClock sets the clock driving dwell and fix timeouts.
func WithClock(c clockwork.Clock) Option {
	return func(d *Device) { d.clock = c }
}

// WithLogger sets the device logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Device) { d.logger = l }
}

// WithPermissions sets the granted location permissions.
func WithPermissions(fine, background bool) Option {
	return func(d *Device) {
		d.fineGranted = fine
		d.backgroundGranted = background
	}
}

// WithLocationEnabled sets the device location switch.
func WithLocationEnabled(enabled bool) Option {
	return func(d *Device) { d.locationEnabled = enabled }
}

// WithFix sets the initial position.
func WithFix(p domain.Position) Option {
	return func(d *Device) { d.fix = &p }
}

// New returns a device with all permissions granted, location enabled in
// high-accuracy mode, and no fix.
func New(opts ...Option) *Device {
	d := &Device{
		clock:             clockwork.NewRealClock(),
		logger:            slog.Default(),
		fineGranted:       true,
		backgroundGranted: true,
		locationEnabled:   true,
		mode:              platform.ModeHighAccuracy,
		regions:           make(map[string]*region),
		pending:           make(map[string]pendingFix),
		events:            make(chan platform.GeofencingEvent, eventBuffer),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Events delivers geofence crossings for registered regions.
func (d *Device) Events() <-chan platform.GeofencingEvent {
	return d.events
}

// --- device state ---

// SetPermissions changes the granted location permissions.
func (d *Device) SetPermissions(fine, background bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fineGranted = fine
	d.backgroundGranted = background
}

// SetLocationEnabled flips the device location switch.
func (d *Device) SetLocationEnabled(enabled bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.locationEnabled = enabled
}

// SetLocationMode sets the accuracy mode. A non-nil err makes the mode unreadable.
func (d *Device) SetLocationMode(mode platform.LocationMode, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.mode = mode
	d.modeErr = err
}

// SetSettingsChangeUnavailable makes settings checks fail without a resolution.
func (d *Device) SetSettingsChangeUnavailable(unavailable bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.settingsUnresolvable = unavailable
}

// SetRegistrationError makes subsequent AddGeofences calls fail with err.
func (d *Device) SetRegistrationError(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.registrationErr = err
}

// Fix returns the last injected position.
func (d *Device) Fix() (domain.Position, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.fix == nil {
		return domain.Position{}, false
	}
	return *d.fix, true
}

// Registered returns the registered descriptors in registration order.
func (d *Device) Registered() []platform.GeofenceDescriptor {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]platform.GeofenceDescriptor, 0, len(d.order))
	for _, id := range d.order {
		out = append(out, d.regions[id].desc)
	}
	return out
}

// --- platform.PermissionChecker ---

func (d *Device) HasFineOrCoarseLocationPermission() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.fineGranted
}

func (d *Device) HasBackgroundLocationPermission() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.backgroundGranted
}

// --- platform.DeviceSettings ---

func (d *Device) IsLocationEnabled() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.locationEnabled
}

func (d *Device) LocationMode() (platform.LocationMode, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.modeErr != nil {
		return 0, d.modeErr
	}
	if !d.locationEnabled {
		return platform.ModeOff, nil
	}
	return d.mode, nil
}

// --- platform.SettingsResolver ---

// ResolveSettings applies the user's answer to a settings prompt. Approval
// turns location on in high-accuracy mode.
func (d *Device) ResolveSettings(approved bool) {
	if !approved {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.locationEnabled = true
	d.mode = platform.ModeHighAccuracy
	d.modeErr = nil
}

// haversine returns the great-circle distance in meters.
func haversine(a, b domain.Position) float64 {
	const earthRadius = 6371000
	phi1, phi2 := a.Latitude*math.Pi/180, b.Latitude*math.Pi/180
	dPhi, dLambda := (b.Latitude-a.Latitude)*math.Pi/180, (b.Longitude-a.Longitude)*math.Pi/180
	h := math.Sin(dPhi/2)*math.Sin(dPhi/2) + math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	return 2 * earthRadius * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

func contains(desc platform.GeofenceDescriptor, p domain.Position) bool {
	return haversine(domain.Position{Latitude: desc.Latitude, Longitude: desc.Longitude}, p) <= desc.Radius
}

func (d *Device) emit(ev platform.GeofencingEvent) {
	select {
	case d.events <- ev:
	default:
		d.logger.Warn("geofence event buffer full, dropping event",
			"transition", ev.Transition.String(), "geofence_ids", ev.GeofenceIDs)
	}
}

func (d *Device) removeLocked(id string) {
	r, ok := d.regions[id]
	if !ok {
		return
	}
	if r.dwellTimer != nil {
		r.dwellTimer.Stop()
	}
	delete(d.regions, id)
	d.order = slices.DeleteFunc(d.order, func(s string) bool { return s == id })
}

func (d *Device) scheduleDwell(r *region) {
	id := r.desc.RequestID
	r.dwellTimer = d.clock.AfterFunc(r.desc.LoiteringDelay, func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		cur, ok := d.regions[id]
		if !ok || cur != r || !r.inside || d.fix == nil {
			return
		}
		r.dwellTimer = nil
		d.emit(platform.GeofencingEvent{
			Transition:  domain.TransitionDwell,
			GeofenceIDs: []string{id},
			Location:    *d.fix,
		})
	})
}
