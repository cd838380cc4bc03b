// Package platform declares the device services the geofence and location
// controllers delegate to. Every asynchronous call reports through exactly the
// continuations it was given; none block.
package platform

import (
	"errors"
	"fmt"
	"time"

	"github.com/couchcryptid/geofence-service/internal/domain"
)

// TransitionMask is the platform's bit set of transitions to monitor.
type TransitionMask int

const (
	MaskEnter TransitionMask = 1 << iota
	MaskExit
	MaskDwell
)

// MaskFor maps a domain transition to its platform bit.
func MaskFor(t domain.Transition) TransitionMask {
	switch t {
	case domain.TransitionEnter:
		return MaskEnter
	case domain.TransitionExit:
		return MaskExit
	case domain.TransitionDwell:
		return MaskDwell
	default:
		return 0
	}
}

// Has reports whether the mask includes every bit of other.
func (m TransitionMask) Has(other TransitionMask) bool {
	return other != 0 && m&other == other
}

// NeverExpire keeps a geofence registered until it is explicitly removed.
const NeverExpire time.Duration = -1

// GeofenceDescriptor is one region in a platform registration batch.
type GeofenceDescriptor struct {
	RequestID      string
	Latitude       float64
	Longitude      float64
	Radius         float64
	LoiteringDelay time.Duration
	Transitions    TransitionMask
	Expiration     time.Duration
}

// GeofencingRequest is a batch registration. InitialTrigger 0 means a device
// already inside a region does not fire on registration.
type GeofencingRequest struct {
	Geofences      []GeofenceDescriptor
	InitialTrigger TransitionMask
}

// GeofencingEvent is a trigger delivered by the platform once a registered
// region is crossed. Err is set instead of the other fields on failure.
type GeofencingEvent struct {
	Transition  domain.Transition
	GeofenceIDs []string
	Location    domain.Position
	Err         error
}

// GeofencingClient registers and removes geofences in batches.
type GeofencingClient interface {
	AddGeofences(req GeofencingRequest, onSuccess func(), onFailure func(error))
	RemoveGeofences(ids []string, onSuccess func(), onFailure func(error))
}

// Priority of a location request.
type Priority int

const (
	PriorityHighAccuracy Priority = 100
	PriorityBalanced     Priority = 102
)

// Granularity of a location request.
type Granularity int

const (
	GranularityPermissionLevel Granularity = iota
	GranularityCoarse
	GranularityFine
)

// LocationSettingsRequest asks the platform whether device settings satisfy a
// location request of the given priority.
type LocationSettingsRequest struct {
	Priority Priority
}

// CurrentLocationRequest is a one-shot fix request. Duration bounds the
// platform's own attempt.
type CurrentLocationRequest struct {
	ID          string
	Priority    Priority
	Granularity Granularity
	Duration    time.Duration
}

// LocationClient is the platform's fused location provider.
type LocationClient interface {
	CheckLocationSettings(req LocationSettingsRequest, onSuccess func(), onFailure func(error))
	// GetCurrentLocation delivers nil to onSuccess when no fix could be taken.
	GetCurrentLocation(req CurrentLocationRequest, onSuccess func(*domain.Position), onFailure func(error))
	// CancelLocationUpdates stops any further delivery for request id.
	CancelLocationUpdates(id string)
}

// LocationMode is the device's location accuracy setting on legacy platforms.
type LocationMode int

const (
	ModeOff LocationMode = iota
	ModeSensorsOnly
	ModeBatterySaving
	ModeHighAccuracy
)

func (m LocationMode) String() string {
	switch m {
	case ModeOff:
		return "off"
	case ModeSensorsOnly:
		return "sensors_only"
	case ModeBatterySaving:
		return "battery_saving"
	case ModeHighAccuracy:
		return "high_accuracy"
	default:
		return fmt.Sprintf("LocationMode(%d)", int(m))
	}
}

// ErrSettingNotFound is returned when the location mode cannot be read.
var ErrSettingNotFound = errors.New("platform: location mode setting not found")

// DeviceSettings reads device-wide location settings.
type DeviceSettings interface {
	IsLocationEnabled() bool
	LocationMode() (LocationMode, error)
}

// PermissionChecker reports the granted location permissions.
type PermissionChecker interface {
	HasFineOrCoarseLocationPermission() bool
	HasBackgroundLocationPermission() bool
}

// SettingsResolver applies the user's answer to a settings-resolution prompt.
type SettingsResolver interface {
	ResolveSettings(approved bool)
}

// Capabilities describes which platform behaviors are available.
type Capabilities struct {
	APILevel int
}

const (
	apiLevelSettingsCheck   = 28
	apiLevelScheduledReboot = 26
)

// SupportsSettingsCheck is false on legacy platforms, which read the
// location mode directly instead.
func (c Capabilities) SupportsSettingsCheck() bool {
	return c.APILevel >= apiLevelSettingsCheck
}

// RequiresScheduledReRegistration is true where boot broadcasts cannot be
// relied on to restore geofences.
func (c Capabilities) RequiresScheduledReRegistration() bool {
	return c.APILevel >= apiLevelScheduledReboot
}

// Platform status codes carried by APIError.
const (
	StatusResolutionRequired        = 6
	StatusSettingsChangeUnavailable = 8502
)

// APIError is a failure reported by a platform service with a status code.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("platform api error %d: %s", e.StatusCode, e.Message)
}

// ResolutionRequired reports whether the user can fix the failure through a
// settings prompt.
func (e *APIError) ResolutionRequired() bool {
	return e.StatusCode == StatusResolutionRequired
}
