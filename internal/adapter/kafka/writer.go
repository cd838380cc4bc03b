package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/geofence-service/internal/config"
	"github.com/couchcryptid/geofence-service/internal/domain"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Writer publishes geofence events to a Kafka topic.
// It implements dispatch.EventPublisher.
type Writer struct {
	writer messageWriter
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured event topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.KafkaBrokers...),
		Topic:                  cfg.KafkaEventTopic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &Writer{writer: w, logger: logger}
}

// Publish writes the batch in a single WriteMessages call. Events are keyed
// by geofence identifier so a fence's transitions stay ordered within a
// partition.
func (w *Writer) Publish(ctx context.Context, events []domain.GeofenceEvent) error {
	if len(events) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(events))
	for i := range events {
		msg, err := serializeToMessage(events[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("write geofence events: %w", err)
	}
	w.logger.Debug("published geofence events", "count", len(msgs))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

func serializeToMessage(event domain.GeofenceEvent) (kafkago.Message, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize geofence event: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(event.Identifier),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "action", Value: []byte(event.Action)},
			{Key: "occurred_at", Value: []byte(event.Time().Format(time.RFC3339))},
		},
	}, nil
}
