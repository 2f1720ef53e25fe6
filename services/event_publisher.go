package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Routing keys for booking lifecycle events.
const (
	EventBookingCreated    = "booking.created"
	EventBookingCancelled  = "booking.cancelled"
	EventPaymentPaid       = "payment.paid"
	EventPaymentFailed     = "payment.failed"
	EventReconcileRequired = "payment.reconcile_required"
)

// BookingEvent is the envelope published on the topic exchange.
type BookingEvent struct {
	Event      string `json:"event"`
	Version    int    `json:"version"`
	OccurredAt string `json:"occurred_at"`
	Data       any    `json:"data"`
}

// EventPublisher emits booking lifecycle events to a RabbitMQ topic
// exchange. A nil publisher is valid and drops everything, so the engine
// runs without a broker configured. Publishing is best-effort: failures are
// logged, never propagated into the booking transaction's outcome.
type EventPublisher struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
}

func NewEventPublisher(url, exchange string) (*EventPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	return &EventPublisher{conn: conn, ch: ch, exchange: exchange}, nil
}

func (p *EventPublisher) Publish(ctx context.Context, key string, data any) error {
	if p == nil || p.ch == nil {
		return nil
	}
	body, err := json.Marshal(BookingEvent{
		Event:      key,
		Version:    1,
		OccurredAt: time.Now().UTC().Format(time.RFC3339),
		Data:       data,
	})
	if err != nil {
		return err
	}
	return p.ch.PublishWithContext(ctx, p.exchange, key, false, false, amqp.Publishing{
		ContentType: "application/json",
		Body:        body,
	})
}

// publishAsync fires an event without blocking the caller's flow.
func (p *EventPublisher) publishAsync(key string, data any) {
	if p == nil || p.ch == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := p.Publish(ctx, key, data); err != nil {
			log.Printf("event publish %s failed: %v", key, err)
		}
	}()
}

func (p *EventPublisher) Close() error {
	if p == nil {
		return nil
	}
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
