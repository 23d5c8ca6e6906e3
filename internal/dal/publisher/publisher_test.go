package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/corray333/food-ordering/order/internal/dal/rabbitmq"
	"github.com/corray333/food-ordering/order/internal/service/errs"
	"github.com/corray333/food-ordering/order/internal/service/models/event"
	"github.com/corray333/food-ordering/order/internal/service/models/message"
	"github.com/corray333/food-ordering/order/internal/service/models/money"
	"github.com/corray333/food-ordering/order/internal/service/models/order"
	"github.com/google/uuid"
	"github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubChannel struct {
	mu         sync.Mutex
	published  []amqp.Publishing
	keys       []string
	publishErr error
	confirms   chan amqp.Confirmation
}

func (s *stubChannel) Confirm(bool) error { return nil }

func (s *stubChannel) NotifyPublish(c chan amqp.Confirmation) chan amqp.Confirmation {
	s.confirms = c

	return c
}

func (s *stubChannel) NotifyClose(c chan *amqp.Error) chan *amqp.Error { return c }

func (s *stubChannel) Publish(_, key string, _, _ bool, msg amqp.Publishing) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.publishErr != nil {
		return s.publishErr
	}
	s.published = append(s.published, msg)
	s.keys = append(s.keys, key)

	return nil
}

func (s *stubChannel) Close() error { return nil }

type recordingOutbox struct {
	mu      sync.Mutex
	deleted []uuid.UUID
}

func (r *recordingOutbox) DeleteByMessageID(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.deleted = append(r.deleted, id)

	return nil
}

func (r *recordingOutbox) Deleted() []uuid.UUID {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]uuid.UUID(nil), r.deleted...)
}

func newEvent(typ event.Type) event.OrderEvent {
	return event.New(uuid.New(), typ, order.Snapshot{
		ID:         uuid.New(),
		TrackingID: uuid.New(),
		Price:      money.MustNewFromString("100.00"),
		Status:     order.StatusPending,
	}, time.Now().UTC())
}

func newTestPublisher(t *testing.T) (*EventPublisher, *stubChannel, *recordingOutbox) {
	t.Helper()

	ch := &stubChannel{}
	producer, err := rabbitmq.NewProducer(ch, "order.events")
	require.NoError(t, err)

	outbox := &recordingOutbox{}

	return NewEventPublisher(producer, outbox, rabbitmq.LoadTopics(), time.Second), ch, outbox
}

func TestEventPublisher_PublishDeletesOutboxRowOnAck(t *testing.T) {
	p, ch, outbox := newTestPublisher(t)
	e := newEvent(event.TypeOrderCreated)

	require.NoError(t, p.Publish(context.Background(), e))

	require.Len(t, ch.published, 1)
	assert.Equal(t, "order.created", ch.keys[0])
	assert.Equal(t, e.ID().String(), ch.published[0].MessageId)
	assert.Equal(t, e.OrderID().String(), ch.published[0].CorrelationId)

	var decoded message.OrderEventMessage
	require.NoError(t, json.Unmarshal(ch.published[0].Body, &decoded))
	assert.Equal(t, e.OrderID(), decoded.OrderID)
	assert.Equal(t, "PENDING", decoded.OrderStatus)

	ch.confirms <- amqp.Confirmation{DeliveryTag: 1, Ack: true}

	require.NoError(t, p.Shutdown(context.Background()))
	assert.Equal(t, []uuid.UUID{e.ID()}, outbox.Deleted())
}

func TestEventPublisher_NackKeepsOutboxRow(t *testing.T) {
	p, ch, outbox := newTestPublisher(t)

	require.NoError(t, p.Publish(context.Background(), newEvent(event.TypeOrderPaid)))

	ch.confirms <- amqp.Confirmation{DeliveryTag: 1, Ack: false}

	require.NoError(t, p.Shutdown(context.Background()))
	assert.Empty(t, outbox.Deleted())
}

func TestEventPublisher_SubmissionFailureIsReturned(t *testing.T) {
	p, ch, outbox := newTestPublisher(t)
	ch.publishErr = errors.New("connection reset")

	err := p.Publish(context.Background(), newEvent(event.TypeOrderCreated))

	var submissionErr *errs.ProducerSubmissionError
	require.ErrorAs(t, err, &submissionErr)
	assert.Equal(t, "order.created", submissionErr.Topic)

	require.NoError(t, p.Shutdown(context.Background()))
	assert.Empty(t, outbox.Deleted())
}
