package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/geofence-service/internal/domain"
)

type published struct {
	exchange, key string
	msg           amqp.Publishing
}

type fakeChannel struct {
	declared   []string
	declareErr error
	publishErr error
	sent       []published
	closed     bool
}

func (f *fakeChannel) ExchangeDeclare(name, kind string, _, _, _, _ bool, _ amqp.Table) error {
	f.declared = append(f.declared, name+":"+kind)
	return f.declareErr
}

func (f *fakeChannel) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	if f.publishErr != nil {
		return f.publishErr
	}
	f.sent = append(f.sent, published{exchange: exchange, key: key, msg: msg})
	return nil
}

func (f *fakeChannel) Close() error {
	f.closed = true
	return nil
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestPublisher_DeclaresFanout(t *testing.T) {
	ch := &fakeChannel{}
	_, err := newPublisher(ch, "geofence.events", discard())
	require.NoError(t, err)
	assert.Equal(t, []string{"geofence.events:fanout"}, ch.declared)

	_, err = newPublisher(&fakeChannel{declareErr: errors.New("access refused")}, "x", discard())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "declare exchange")
}

func TestPublisher_Publish(t *testing.T) {
	ch := &fakeChannel{}
	p, err := newPublisher(ch, "geofence.events", discard())
	require.NoError(t, err)

	ts := time.Date(2024, 5, 1, 8, 30, 0, 0, time.UTC)
	event := domain.GeofenceEvent{ID: "evt-9", Action: "DWELL", Identifier: "school", Timestamp: ts.Unix()}
	require.NoError(t, p.Publish(context.Background(), []domain.GeofenceEvent{event}))

	require.Len(t, ch.sent, 1)
	sent := ch.sent[0]
	assert.Equal(t, "geofence.events", sent.exchange)
	assert.Equal(t, "school", sent.key)
	assert.Equal(t, "application/json", sent.msg.ContentType)
	assert.Equal(t, amqp.Persistent, sent.msg.DeliveryMode)
	assert.Equal(t, "evt-9", sent.msg.MessageId)
	assert.Equal(t, "DWELL", sent.msg.Type)
	assert.True(t, ts.Equal(sent.msg.Timestamp))

	var decoded domain.GeofenceEvent
	require.NoError(t, json.Unmarshal(sent.msg.Body, &decoded))
	assert.Equal(t, event, decoded)

	require.NoError(t, p.Close())
	assert.True(t, ch.closed)
}

func TestPublisher_PublishError(t *testing.T) {
	p, err := newPublisher(&fakeChannel{publishErr: amqp.ErrClosed}, "geofence.events", discard())
	require.NoError(t, err)

	err = p.Publish(context.Background(), []domain.GeofenceEvent{{ID: "evt-1", Identifier: "home"}})
	require.ErrorIs(t, err, amqp.ErrClosed)
}
