package domain

import (
	"time"

	"github.com/google/uuid"
)

// Coords is the coordinate pair nested in an event location.
type Coords struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// EventLocation is the triggering fix attached to a geofence event.
type EventLocation struct {
	Coords Coords `json:"coords"`
}

// GeofenceEvent is the payload delivered to subscribers when the platform
// reports a transition for a registered geofence.
type GeofenceEvent struct {
	ID         string        `json:"id"`
	Action     string        `json:"action"` // ENTER, EXIT, DWELL
	Identifier string        `json:"identifier"`
	Timestamp  int64         `json:"timestamp"` // unix seconds
	Location   EventLocation `json:"location"`

	// Reverse geocoding enrichment, empty when disabled or unavailable.
	PlaceName        string `json:"place_name,omitempty"`
	FormattedAddress string `json:"formatted_address,omitempty"`
}

// NewGeofenceEvent builds the event for geofence g crossing t at fix, stamped
// with the package clock.
func NewGeofenceEvent(g Geofence, t Transition, fix Position) GeofenceEvent {
	return GeofenceEvent{
		ID:         uuid.NewString(),
		Action:     t.String(),
		Identifier: g.ID,
		Timestamp:  Now().Unix(),
		Location: EventLocation{
			Coords: Coords{Latitude: fix.Latitude, Longitude: fix.Longitude},
		},
	}
}

// Time returns the event timestamp as a time.Time.
func (e GeofenceEvent) Time() time.Time {
	return time.Unix(e.Timestamp, 0).UTC()
}
