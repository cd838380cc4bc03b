package domain

import (
	"context"
	"log/slog"
)

// EnrichWithPlace attaches the place name of the triggering fix to an event.
// A nil geocoder or a failed lookup leaves the event unchanged.
func EnrichWithPlace(ctx context.Context, event GeofenceEvent, geocoder PlaceGeocoder, logger *slog.Logger) GeofenceEvent {
	if geocoder == nil {
		return event
	}

	coords := event.Location.Coords
	if coords.Latitude == 0 && coords.Longitude == 0 {
		return event
	}

	place, err := geocoder.ReverseGeocode(ctx, coords.Latitude, coords.Longitude)
	if err != nil {
		logger.Warn("reverse geocoding failed",
			"event_id", event.ID,
			"geofence_id", event.Identifier,
			"lat", coords.Latitude,
			"lon", coords.Longitude,
			"error", err,
		)
		return event
	}

	event.PlaceName = place.Name
	event.FormattedAddress = place.FormattedAddress
	return event
}
