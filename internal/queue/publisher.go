package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	QueueBookingCreated    = "booking.created"
	QueueBookingReassigned = "booking.reassigned"
	QueueBookingsReleased  = "booking.released"
)

// Publisher emits booking events to RabbitMQ. Queues are durable and
// messages persistent, so they survive a broker restart. Publish failures
// are returned to the caller, which is expected to log and move on: the
// booking itself has already committed.
type Publisher struct {
	conn *amqp.Connection
	ch   *amqp.Channel
}

func NewPublisher(url string) (*Publisher, error) {
	const op = "queue.NewPublisher"

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	for _, name := range []string{QueueBookingCreated, QueueBookingReassigned, QueueBookingsReleased} {
		if _, err := ch.QueueDeclare(
			name,
			true,  // durable
			false, // autoDelete
			false, // exclusive
			false, // noWait
			nil,
		); err != nil {
			_ = ch.Close()
			_ = conn.Close()
			return nil, fmt.Errorf("%s:%w", op, err)
		}
	}

	return &Publisher{conn: conn, ch: ch}, nil
}

func (p *Publisher) Close() error {
	if err := p.ch.Close(); err != nil {
		_ = p.conn.Close()
		return err
	}
	return p.conn.Close()
}

func (p *Publisher) PublishBookingCreated(ctx context.Context, ev BookingCreatedEvent) error {
	ev.EventID = uuid.NewString()
	return p.publish(ctx, QueueBookingCreated, ev)
}

func (p *Publisher) PublishBookingReassigned(ctx context.Context, ev BookingReassignedEvent) error {
	ev.EventID = uuid.NewString()
	return p.publish(ctx, QueueBookingReassigned, ev)
}

func (p *Publisher) PublishBookingsReleased(ctx context.Context, ev BookingsReleasedEvent) error {
	ev.EventID = uuid.NewString()
	return p.publish(ctx, QueueBookingsReleased, ev)
}

func (p *Publisher) publish(ctx context.Context, queueName string, payload any) error {
	const op = "queue.Publisher.publish"

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}

	if err := p.ch.PublishWithContext(ctx,
		"",        // default exchange
		queueName, // routing key = queue name
		false,     // mandatory
		false,     // immediate
		pub,
	); err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	return nil
}
