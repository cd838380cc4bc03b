package dispatch

import (
	"context"
	"log/slog"

	"github.com/couchcryptid/geofence-service/internal/domain"
)

// LogPublisher writes events to the logger. It is the default sink.
type LogPublisher struct {
	logger *slog.Logger
}

// NewLogPublisher creates a LogPublisher.
func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(ctx context.Context, events []domain.GeofenceEvent) error {
	for _, e := range events {
		p.logger.InfoContext(ctx, "geofence event",
			"event_id", e.ID,
			"action", e.Action,
			"geofence_id", e.Identifier,
			"lat", e.Location.Coords.Latitude,
			"lon", e.Location.Coords.Longitude,
			"place", e.PlaceName,
		)
	}
	return nil
}
