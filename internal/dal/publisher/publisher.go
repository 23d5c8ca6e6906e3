package publisher

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/corray333/food-ordering/order/internal/dal/rabbitmq"
	"github.com/corray333/food-ordering/order/internal/service/errs"
	"github.com/corray333/food-ordering/order/internal/service/models/event"
	"github.com/corray333/food-ordering/order/internal/service/models/message"
	"github.com/google/uuid"
	"github.com/spf13/viper"
)

// sender is the reliable producer.
type sender interface {
	Send(topic, key string, msg rabbitmq.Message) (*rabbitmq.SendHandle, error)
}

// outboxCleaner removes delivered events from the outbox.
type outboxCleaner interface {
	DeleteByMessageID(ctx context.Context, messageID uuid.UUID) error
}

// EventPublisher publishes committed order events right after commit. The
// event's outbox row is removed once the broker confirms it; otherwise the
// outbox relay delivers it later.
type EventPublisher struct {
	producer   sender
	outbox     outboxCleaner
	topics     rabbitmq.Topics
	ackTimeout time.Duration
	wg         sync.WaitGroup
}

// NewEventPublisher creates a new EventPublisher.
func NewEventPublisher(
	producer sender,
	outbox outboxCleaner,
	topics rabbitmq.Topics,
	ackTimeout time.Duration,
) *EventPublisher {
	return &EventPublisher{
		producer:   producer,
		outbox:     outbox,
		topics:     topics,
		ackTimeout: ackTimeout,
	}
}

// MustNewEventPublisher creates an EventPublisher from configuration.
func MustNewEventPublisher(producer sender, outbox outboxCleaner) *EventPublisher {
	ackTimeoutSeconds := viper.GetInt("rabbitmq.producer.ack_timeout_seconds")
	if ackTimeoutSeconds == 0 {
		ackTimeoutSeconds = 10
	}

	return NewEventPublisher(
		producer,
		outbox,
		rabbitmq.LoadTopics(),
		time.Duration(ackTimeoutSeconds)*time.Second,
	)
}

// Publish sends the event keyed by its order id. It returns once the producer
// accepted the message; the broker acknowledgement is awaited in the background.
func (p *EventPublisher) Publish(ctx context.Context, e event.OrderEvent) error {
	key := e.OrderID().String()

	topic, err := p.topics.For(e.Type())
	if err != nil {
		return &errs.ProducerSubmissionError{Key: key, Err: err}
	}

	payload, err := message.EncodeEvent(e)
	if err != nil {
		return &errs.ProducerSubmissionError{Topic: topic, Key: key, Err: err}
	}

	handle, err := p.producer.Send(topic, key, rabbitmq.Message{
		ID:          e.ID().String(),
		ContentType: message.ContentType,
		Body:        payload,
	})
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "Order event sent", "event_id", e.ID(), "event_type", e.Type(), "order_id", key, "topic", topic)

	p.wg.Add(1)
	go p.awaitDelivery(handle, e)

	return nil
}

func (p *EventPublisher) awaitDelivery(handle *rabbitmq.SendHandle, e event.OrderEvent) {
	defer p.wg.Done()

	ctx, cancel := context.WithTimeout(context.Background(), p.ackTimeout)
	defer cancel()

	if err := handle.Wait(ctx); err != nil {
		slog.Warn("Order event not confirmed, leaving it to the outbox relay",
			"event_id", e.ID(),
			"event_type", e.Type(),
			"order_id", e.OrderID(),
			"error", err,
		)

		return
	}

	if err := p.outbox.DeleteByMessageID(ctx, e.ID()); err != nil {
		slog.Error("Failed to delete delivered event from outbox", "event_id", e.ID(), "error", err)
	}
}

// Shutdown waits for outstanding acknowledgements.
func (p *EventPublisher) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
