// Package events carries order lifecycle notifications off the request path.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/georgemunganga/storefront-backend/internal/pkg/logging"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Event types.
const (
	OrderCreated       = "order.created"
	OrderPaid          = "order.paid"
	OrderCancelled     = "order.cancelled"
	OrderStatusChanged = "order.status_changed"
)

// Event is the JSON payload published for an order change.
type Event struct {
	Type          string `json:"type"`
	OrderID       string `json:"order_id"`
	OrderCode     string `json:"order_code"`
	UserID        string `json:"user_id"`
	Status        string `json:"status"`
	PaymentStatus string `json:"payment_status"`
	Total         int64  `json:"total"`
	Reason        string `json:"reason,omitempty"`
	OccurredAt    int64  `json:"occurred_at"`
}

// Publisher delivers events to a sink.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes events keyed by order id so one order's events stay ordered.
type KafkaPublisher struct {
	writer messageWriter
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{writer: &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}}
}

func (p *KafkaPublisher) Publish(ctx context.Context, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	msg := kafka.Message{
		Key:   []byte(ev.OrderID),
		Value: data,
		Time:  time.Now().UTC(),
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(ev.Type)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish %s: %w", ev.Type, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error { return p.writer.Close() }

// LogPublisher only logs events. It is used when no broker is configured.
type LogPublisher struct{}

func (LogPublisher) Publish(ctx context.Context, ev Event) error {
	logging.FromContext(ctx).Info("order_event",
		zap.String("type", ev.Type),
		zap.String("order_id", ev.OrderID),
		zap.String("status", ev.Status),
		zap.String("payment_status", ev.PaymentStatus))
	return nil
}

func (LogPublisher) Close() error { return nil }

// Emitter publishes events asynchronously through a Dispatcher.
type Emitter struct {
	dispatcher *Dispatcher
	publisher  Publisher
}

func NewEmitter(d *Dispatcher, p Publisher) *Emitter {
	return &Emitter{dispatcher: d, publisher: p}
}

// Emit schedules ev for publication and returns immediately.
func (e *Emitter) Emit(ctx context.Context, ev Event) {
	if e == nil {
		return
	}
	if ev.OccurredAt == 0 {
		ev.OccurredAt = time.Now().UnixMilli()
	}
	e.dispatcher.Go(ctx, "publish_"+ev.Type, func(ctx context.Context) error {
		return e.publisher.Publish(ctx, ev)
	})
}
