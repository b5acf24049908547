package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/streadway/amqp"
)

// Outcome event types
const (
	EventMessageSent   = "message.sent"
	EventMessageFailed = "message.failed"
)

// OutcomeEvent describes the terminal result of one queued message
type OutcomeEvent struct {
	Type         string    `json:"type"`
	MessageUUID  uuid.UUID `json:"message_uuid"`
	CampaignUUID uuid.UUID `json:"campaign_uuid"`
	OwnerID      uuid.UUID `json:"owner_id"`
	Target       string    `json:"target_username"`
	HTTPStatus   int       `json:"http_status,omitempty"`
	Error        string    `json:"error,omitempty"`
	Simulated    bool      `json:"simulated"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// OutcomePublisher fans delivery outcomes out to interested consumers
type OutcomePublisher interface {
	Publish(ctx context.Context, event OutcomeEvent) error
	Close() error
}

// NoopOutcomePublisher drops every event
type NoopOutcomePublisher struct{}

func (NoopOutcomePublisher) Publish(ctx context.Context, event OutcomeEvent) error { return nil }
func (NoopOutcomePublisher) Close() error                                         { return nil }

// AMQPOutcomePublisher publishes outcome events to a durable topic exchange.
// The routing key is the event type.
type AMQPOutcomePublisher struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
	mu       sync.Mutex
}

// NewAMQPOutcomePublisher dials the broker and declares the exchange
func NewAMQPOutcomePublisher(url, exchange string) (*AMQPOutcomePublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to broker: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open broker channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		exchange,
		amqp.ExchangeTopic,
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange %s: %w", exchange, err)
	}

	return &AMQPOutcomePublisher{conn: conn, ch: ch, exchange: exchange}, nil
}

// Publish sends the event as a persistent JSON message
func (p *AMQPOutcomePublisher) Publish(ctx context.Context, event OutcomeEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal outcome event: %w", err)
	}

	// amqp channels are not safe for concurrent publishing
	p.mu.Lock()
	defer p.mu.Unlock()

	err = p.ch.Publish(
		p.exchange,
		event.Type,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    event.MessageUUID.String(),
			Timestamp:    event.OccurredAt,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish outcome event: %w", err)
	}
	return nil
}

// Close releases the channel and the connection
func (p *AMQPOutcomePublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.ch.Close(); err != nil {
		p.conn.Close()
		return err
	}
	return p.conn.Close()
}
