// Package rabbitmq publishes geofence events to a fanout exchange.
package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/couchcryptid/geofence-service/internal/domain"
)

type channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Publisher implements dispatch.EventPublisher over an AMQP channel.
type Publisher struct {
	conn     *amqp.Connection
	ch       channel
	exchange string
	logger   *slog.Logger
}

// Dial connects to url and declares exchange.
func Dial(url, exchange string, logger *slog.Logger) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq connect: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq channel: %w", err)
	}
	p, err := newPublisher(ch, exchange, logger)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	p.conn = conn
	return p, nil
}

func newPublisher(ch channel, exchange string, logger *slog.Logger) (*Publisher, error) {
	if err := ch.ExchangeDeclare(exchange, "fanout", true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	return &Publisher{ch: ch, exchange: exchange, logger: logger}, nil
}

// Publish sends one persistent message per event. The geofence identifier
// travels as the routing key for consumers that rebind to a topic exchange.
func (p *Publisher) Publish(ctx context.Context, events []domain.GeofenceEvent) error {
	for _, e := range events {
		body, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("marshal geofence event: %w", err)
		}
		err = p.ch.PublishWithContext(ctx, p.exchange, e.Identifier, false, false, amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    e.ID,
			Timestamp:    e.Time(),
			Type:         e.Action,
			Body:         body,
		})
		if err != nil {
			return fmt.Errorf("publish geofence event %s: %w", e.ID, err)
		}
	}
	p.logger.Debug("published geofence events", "count", len(events), "exchange", p.exchange)
	return nil
}

// Close releases the channel and connection.
func (p *Publisher) Close() error {
	if err := p.ch.Close(); err != nil {
		return err
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
