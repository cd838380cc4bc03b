// Package dispatch turns platform geofence triggers into published events.
package dispatch

import (
	"context"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/geofence-service/internal/domain"
	"github.com/couchcryptid/geofence-service/internal/observability"
	"github.com/couchcryptid/geofence-service/internal/platform"
)

const (
	initialBackoff = 200 * time.Millisecond
	maxBackoff     = 5 * time.Second
)

// GeofenceLookup resolves a trigger's request ids to stored geofences.
type GeofenceLookup interface {
	GetGeofenceByID(id string) (domain.Geofence, bool)
}

// EventPublisher delivers a batch of events to the configured sink.
type EventPublisher interface {
	Publish(ctx context.Context, events []domain.GeofenceEvent) error
}

// Dispatcher consumes triggers, builds one event per known geofence, and
// publishes each batch, retrying failed publishes with exponential backoff.
type Dispatcher struct {
	lookup    GeofenceLookup
	publisher EventPublisher
	geocoder  domain.PlaceGeocoder
	clock     clockwork.Clock
	logger    *slog.Logger
	metrics   *observability.Metrics
}

// New creates a Dispatcher. Pass a nil geocoder to disable place enrichment.
func New(lookup GeofenceLookup, publisher EventPublisher, geocoder domain.PlaceGeocoder, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *Dispatcher {
	return &Dispatcher{
		lookup:    lookup,
		publisher: publisher,
		geocoder:  geocoder,
		clock:     clock,
		logger:    logger,
		metrics:   metrics,
	}
}

// Run dispatches triggers until the context is cancelled or events closes.
func (d *Dispatcher) Run(ctx context.Context, events <-chan platform.GeofencingEvent) error {
	d.logger.Info("dispatcher started")
	for {
		select {
		case <-ctx.Done():
			d.logger.Info("dispatcher stopping", "reason", ctx.Err())
			return nil
		case ev, ok := <-events:
			if !ok {
				d.logger.Info("dispatcher stopping", "reason", "trigger stream closed")
				return nil
			}
			if !d.handle(ctx, ev) {
				return nil
			}
		}
	}
}

// handle publishes the events for one trigger. Returns false if the
// dispatcher should stop.
func (d *Dispatcher) handle(ctx context.Context, ev platform.GeofencingEvent) bool {
	if ev.Err != nil {
		d.logger.Error("geofencing event error", "error", ev.Err)
		d.metrics.EventsDropped.Inc()
		return true
	}

	batch := d.build(ctx, ev)
	if len(batch) == 0 {
		return true
	}

	backoff := initialBackoff
	for {
		err := d.publisher.Publish(ctx, batch)
		if err == nil {
			break
		}
		if ctx.Err() != nil {
			return false
		}
		d.metrics.EventsFailed.Inc()
		d.logger.Error("publish failed", "error", err, "batch_size", len(batch), "retry_in", backoff)
		if !d.sleep(ctx, backoff) {
			return false
		}
		backoff = nextBackoff(backoff)
	}

	d.metrics.EventsPublished.Add(float64(len(batch)))
	return true
}

func (d *Dispatcher) build(ctx context.Context, ev platform.GeofencingEvent) []domain.GeofenceEvent {
	batch := make([]domain.GeofenceEvent, 0, len(ev.GeofenceIDs))
	for _, id := range ev.GeofenceIDs {
		g, ok := d.lookup.GetGeofenceByID(id)
		if !ok {
			d.logger.Warn("trigger for unknown geofence, dropping", "geofence_id", id, "action", ev.Transition)
			d.metrics.EventsDropped.Inc()
			continue
		}
		event := domain.NewGeofenceEvent(g, ev.Transition, ev.Location)
		batch = append(batch, domain.EnrichWithPlace(ctx, event, d.geocoder, d.logger))
	}
	return batch
}

func (d *Dispatcher) sleep(ctx context.Context, wait time.Duration) bool {
	timer := d.clock.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.Chan():
		return true
	}
}

func nextBackoff(current time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}
