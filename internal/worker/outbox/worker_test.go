package outbox

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/corray333/food-ordering/order/internal/dal/rabbitmq"
	"github.com/corray333/food-ordering/order/internal/service/models/event"
	"github.com/corray333/food-ordering/order/internal/service/models/outbox"
	"github.com/google/uuid"
	"github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// brokerChannel confirms every publish right away, nacking ids listed in reject.
type brokerChannel struct {
	mu         sync.Mutex
	tag        uint64
	reject     map[string]bool
	publishErr error
	sent       []string
	confirms   chan amqp.Confirmation
}

func (b *brokerChannel) Confirm(bool) error { return nil }

func (b *brokerChannel) NotifyPublish(c chan amqp.Confirmation) chan amqp.Confirmation {
	b.confirms = c

	return c
}

func (b *brokerChannel) NotifyClose(c chan *amqp.Error) chan *amqp.Error { return c }

func (b *brokerChannel) Publish(_, _ string, _, _ bool, msg amqp.Publishing) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.publishErr != nil {
		return b.publishErr
	}

	b.tag++
	b.sent = append(b.sent, msg.MessageId)
	confirmation := amqp.Confirmation{DeliveryTag: b.tag, Ack: !b.reject[msg.MessageId]}
	go func() { b.confirms <- confirmation }()

	return nil
}

func (b *brokerChannel) Close() error { return nil }

type memoryOutbox struct {
	mu       sync.Mutex
	messages []outbox.OutboxMessage
	deleted  []int64
	retried  map[int64]outbox.OutboxMessage
}

func (m *memoryOutbox) Insert(_ context.Context, msg outbox.OutboxMessage) error {
	m.messages = append(m.messages, msg)

	return nil
}

func (m *memoryOutbox) GetPendingMessages(context.Context, int) ([]outbox.OutboxMessage, error) {
	return m.messages, nil
}

func (m *memoryOutbox) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.deleted = append(m.deleted, id)

	return nil
}

func (m *memoryOutbox) DeleteByMessageID(context.Context, uuid.UUID) error { return nil }

func (m *memoryOutbox) UpdateRetry(_ context.Context, id int64, retryCount int, lastError string, nextRetryAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.retried[id] = outbox.OutboxMessage{
		ID:          id,
		RetryCount:  retryCount,
		LastError:   lastError,
		NextRetryAt: nextRetryAt,
	}

	return nil
}

func message(id int64, aggregateID uuid.UUID, typ event.Type) outbox.OutboxMessage {
	return outbox.OutboxMessage{
		ID:          id,
		MessageID:   uuid.New(),
		AggregateID: aggregateID,
		EventType:   typ,
		Payload:     []byte(`{}`),
		ContentType: "application/json",
		MaxRetries:  5,
	}
}

func newTestWorker(t *testing.T, repo *memoryOutbox, ch *brokerChannel) *Worker {
	t.Helper()

	producer, err := rabbitmq.NewProducer(ch, "order.events")
	require.NoError(t, err)

	w := NewWorker(repo, producer, rabbitmq.LoadTopics())
	w.ackTimeout = time.Second

	return w
}

func TestWorker_DeliversAndDeletes(t *testing.T) {
	orderA, orderB := uuid.New(), uuid.New()
	repo := &memoryOutbox{retried: map[int64]outbox.OutboxMessage{}}
	require.NoError(t, repo.Insert(context.Background(), message(1, orderA, event.TypeOrderCreated)))
	require.NoError(t, repo.Insert(context.Background(), message(2, orderB, event.TypeOrderCreated)))
	require.NoError(t, repo.Insert(context.Background(), message(3, orderA, event.TypeOrderPaid)))

	ch := &brokerChannel{reject: map[string]bool{}}
	w := newTestWorker(t, repo, ch)

	w.processMessages(context.Background())

	assert.Equal(t, []int64{1, 2, 3}, repo.deleted)
	assert.Empty(t, repo.retried)
	assert.Equal(t, []string{
		repo.messages[0].MessageID.String(),
		repo.messages[1].MessageID.String(),
		repo.messages[2].MessageID.String(),
	}, ch.sent)
}

func TestWorker_FailureHoldsBackLaterEventsOfSameOrder(t *testing.T) {
	orderA, orderB := uuid.New(), uuid.New()
	repo := &memoryOutbox{retried: map[int64]outbox.OutboxMessage{}}
	first := message(1, orderA, event.TypeOrderCreated)
	require.NoError(t, repo.Insert(context.Background(), first))
	require.NoError(t, repo.Insert(context.Background(), message(2, orderB, event.TypeOrderCreated)))
	require.NoError(t, repo.Insert(context.Background(), message(3, orderA, event.TypeOrderPaid)))

	ch := &brokerChannel{reject: map[string]bool{first.MessageID.String(): true}}
	w := newTestWorker(t, repo, ch)

	before := time.Now()
	w.processMessages(context.Background())

	assert.Equal(t, []int64{2}, repo.deleted)
	require.Contains(t, repo.retried, int64(1))
	assert.NotContains(t, repo.retried, int64(3))
	assert.Len(t, ch.sent, 2)

	retry := repo.retried[1]
	assert.Equal(t, 1, retry.RetryCount)
	assert.Contains(t, retry.LastError, "nacked")
	assert.WithinDuration(t, before.Add(60*time.Second), retry.NextRetryAt, 5*time.Second)
}

func TestWorker_SubmissionFailureSchedulesRetry(t *testing.T) {
	repo := &memoryOutbox{retried: map[int64]outbox.OutboxMessage{}}
	msg := message(7, uuid.New(), event.TypeOrderApproved)
	msg.RetryCount = 2
	require.NoError(t, repo.Insert(context.Background(), msg))

	ch := &brokerChannel{publishErr: errors.New("channel/connection is not open")}
	w := newTestWorker(t, repo, ch)

	before := time.Now()
	w.processMessages(context.Background())

	assert.Empty(t, repo.deleted)
	retry := repo.retried[7]
	assert.Equal(t, 3, retry.RetryCount)
	assert.WithinDuration(t, before.Add(240*time.Second), retry.NextRetryAt, 5*time.Second)
}

func TestWorker_UnknownEventTypeIsRetried(t *testing.T) {
	repo := &memoryOutbox{retried: map[int64]outbox.OutboxMessage{}}
	require.NoError(t, repo.Insert(context.Background(), message(1, uuid.New(), "ORDER_SHIPPED")))

	w := newTestWorker(t, repo, &brokerChannel{reject: map[string]bool{}})

	w.processMessages(context.Background())

	assert.Empty(t, repo.deleted)
	assert.Contains(t, repo.retried, int64(1))
}
