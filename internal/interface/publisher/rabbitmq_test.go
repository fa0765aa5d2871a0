package publisher

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"fleettrack-service/internal/domain/entity"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type published struct {
	exchange string
	key      string
	msg      amqp.Publishing
}

type fakeChannel struct {
	sent   []published
	closed bool
}

func (f *fakeChannel) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	f.sent = append(f.sent, published{exchange: exchange, key: key, msg: msg})
	return nil
}

func (f *fakeChannel) Close() error {
	f.closed = true
	return nil
}

func TestPublishRoutesByLegAndEvent(t *testing.T) {
	ch := &fakeChannel{}
	p := &RabbitMQPublisher{channel: ch, exchange: "fleet.milestones"}
	at := time.Date(2025, 3, 1, 8, 7, 0, 0, time.UTC)

	err := p.Publish(context.Background(), entity.MilestoneCaptured{
		LoadID:    "abc",
		LoadRef:   "LD-100",
		VehicleID: "T1",
		Leg:       entity.LegDestination,
		Event:     entity.EventArrival,
		Depot:     "Durban Port",
		At:        at,
	})

	require.NoError(t, err)
	require.Len(t, ch.sent, 1)
	assert.Equal(t, "fleet.milestones", ch.sent[0].exchange)
	assert.Equal(t, "milestone.destination.arrival", ch.sent[0].key)
	assert.Equal(t, "application/json", ch.sent[0].msg.ContentType)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(ch.sent[0].msg.Body, &body))
	assert.Equal(t, "LD-100", body["loadRef"])
	assert.Equal(t, "Durban Port", body["depot"])

	require.NoError(t, p.Close())
	assert.True(t, ch.closed)
}

func TestNoopPublisher(t *testing.T) {
	assert.NoError(t, NoopPublisher{}.Publish(context.Background(), entity.MilestoneCaptured{}))
}
