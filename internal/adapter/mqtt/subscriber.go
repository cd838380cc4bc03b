// Package mqtt feeds device fixes published over MQTT into the platform.
package mqtt

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/couchcryptid/geofence-service/internal/domain"
)

// TopicPattern matches fixes for any device.
const TopicPattern = "/devices/+/location"

// FixSink receives decoded fixes.
type FixSink interface {
	UpdateFix(p domain.Position)
}

type fixMessage struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Timestamp int64   `json:"timestamp"`
}

// Subscriber consumes location messages and forwards valid ones.
type Subscriber struct {
	client paho.Client
	sink   FixSink
	logger *slog.Logger
}

// Connect dials broker and returns a connected client.
func Connect(broker, clientID string) (paho.Client, error) {
	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true)

	client := paho.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqtt connect: %w", token.Error())
	}
	return client, nil
}

// NewSubscriber creates a Subscriber over a connected client.
func NewSubscriber(client paho.Client, sink FixSink, logger *slog.Logger) *Subscriber {
	return &Subscriber{client: client, sink: sink, logger: logger}
}

// Start subscribes at QoS 1.
func (s *Subscriber) Start() error {
	token := s.client.Subscribe(TopicPattern, 1, s.handleMessage)
	token.Wait()
	return token.Error()
}

// Stop unsubscribes and disconnects, waiting up to 250ms for in-flight work.
func (s *Subscriber) Stop() {
	s.client.Unsubscribe(TopicPattern).Wait()
	s.client.Disconnect(250)
}

func (s *Subscriber) handleMessage(_ paho.Client, msg paho.Message) {
	device := deviceID(msg.Topic())

	var raw fixMessage
	if err := json.Unmarshal(msg.Payload(), &raw); err != nil {
		s.logger.Warn("invalid location message", "topic", msg.Topic(), "error", err)
		return
	}
	if err := validateFix(raw); err != nil {
		s.logger.Warn("rejected location message", "device", device, "error", err)
		return
	}

	s.logger.Debug("device fix received", "device", device, "lat", raw.Latitude, "lon", raw.Longitude)
	s.sink.UpdateFix(domain.Position{Latitude: raw.Latitude, Longitude: raw.Longitude})
}

func validateFix(m fixMessage) error {
	var errs []error
	if m.Latitude < -90 || m.Latitude > 90 {
		errs = append(errs, errors.New("latitude: must be between -90 and 90"))
	}
	if m.Longitude < -180 || m.Longitude > 180 {
		errs = append(errs, errors.New("longitude: must be between -180 and 180"))
	}
	if m.Timestamp < 0 {
		errs = append(errs, errors.New("timestamp: must not be negative"))
	}
	return errors.Join(errs...)
}

// deviceID extracts the wildcard segment of /devices/<id>/location.
func deviceID(topic string) string {
	parts := strings.Split(strings.Trim(topic, "/"), "/")
	if len(parts) == 3 {
		return parts[1]
	}
	return ""
}
