package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/avstrong/hotel/internal/hotel"
	"github.com/avstrong/hotel/internal/logger"
)

type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

type Publisher struct {
	conn  io.Closer
	ch    channel
	queue string
	l     *logger.Logger
	now   func() time.Time
}

// Dial connects to the broker and declares queue as durable, so messages
// survive broker restarts.
func Dial(url, queue string, l *logger.Logger) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()

		return nil, fmt.Errorf("open rabbitmq channel: %w", err)
	}

	if _, err := ch.QueueDeclare(
		queue,
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,
	); err != nil {
		_ = ch.Close()
		_ = conn.Close()

		return nil, fmt.Errorf("declare queue %s: %w", queue, err)
	}

	return newPublisher(conn, ch, queue, l), nil
}

func newPublisher(conn io.Closer, ch channel, queue string, l *logger.Logger) *Publisher {
	if l == nil {
		l = logger.Discard()
	}

	return &Publisher{
		conn:  conn,
		ch:    ch,
		queue: queue,
		l:     l.With("queue"),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (p *Publisher) Publish(ctx context.Context, event *hotel.Event) error {
	msg, err := p.publishing(event)
	if err != nil {
		return err
	}

	if err := p.ch.PublishWithContext(ctx,
		"",      // default exchange
		p.queue, // routing key = queue name
		false,   // mandatory
		false,   // immediate
		msg,
	); err != nil {
		return fmt.Errorf("publish event %d to %s: %w", event.ID, p.queue, err)
	}

	p.l.LogInfo("Published event %d (%s) to %s", event.ID, event.Kind, p.queue)

	return nil
}

func (p *Publisher) publishing(event *hotel.Event) (amqp.Publishing, error) {
	body, err := json.Marshal(NewBookingEvent(event))
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("marshal event %d: %w", event.ID, err)
	}

	//nolint:exhaustruct
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    strconv.Itoa(event.ID),
		Type:         string(event.Kind),
		Timestamp:    p.now(),
		Body:         body,
	}, nil
}

func (p *Publisher) Close() error {
	if err := p.ch.Close(); err != nil {
		return fmt.Errorf("close rabbitmq channel: %w", err)
	}

	if p.conn == nil {
		return nil
	}

	if err := p.conn.Close(); err != nil {
		return fmt.Errorf("close rabbitmq connection: %w", err)
	}

	return nil
}
