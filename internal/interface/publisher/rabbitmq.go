package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"fleettrack-service/internal/domain/entity"
	"fleettrack-service/internal/domain/repository"

	amqp "github.com/rabbitmq/amqp091-go"
)

const publishTimeout = 5 * time.Second

// channel is the part of *amqp.Channel the publisher uses.
type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// RabbitMQPublisher emits milestone events on a topic exchange
type RabbitMQPublisher struct {
	conn     *amqp.Connection
	mu       sync.Mutex
	channel  channel
	exchange string
}

// NewRabbitMQPublisher opens a channel and declares the topic exchange
func NewRabbitMQPublisher(conn *amqp.Connection, exchange string) (*RabbitMQPublisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		exchange,
		"topic",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		ch.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}

	return &RabbitMQPublisher{
		conn:     conn,
		channel:  ch,
		exchange: exchange,
	}, nil
}

var _ repository.MilestonePublisher = (*RabbitMQPublisher)(nil)

// RoutingKey is milestone.<leg>.<event>
func RoutingKey(event entity.MilestoneCaptured) string {
	return fmt.Sprintf("milestone.%s.%s", event.Leg, event.Event)
}

// Publish sends one captured milestone as JSON
func (p *RabbitMQPublisher) Publish(ctx context.Context, event entity.MilestoneCaptured) error {
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	p.mu.Lock()
	defer p.mu.Unlock()

	return p.channel.PublishWithContext(
		ctx,
		p.exchange,
		RoutingKey(event),
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    event.At,
			Type:         "milestone.captured",
			Body:         body,
		},
	)
}

// Close closes the channel and the connection
func (p *RabbitMQPublisher) Close() error {
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

// NoopPublisher drops events; used when no broker is configured
type NoopPublisher struct{}

var _ repository.MilestonePublisher = NoopPublisher{}

func (NoopPublisher) Publish(context.Context, entity.MilestoneCaptured) error { return nil }
