package outbox

import (
	"time"

	"github.com/corray333/food-ordering/order/internal/service/models/event"
	"github.com/corray333/food-ordering/order/internal/service/models/message"
	"github.com/google/uuid"
)

// OutboxMessage is an order event staged for publication in the same
// transaction as the state change it describes.
type OutboxMessage struct {
	ID          int64
	MessageID   uuid.UUID
	AggregateID uuid.UUID
	EventType   event.Type
	Payload     []byte
	ContentType string
	RetryCount  int
	MaxRetries  int
	LastError   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	NextRetryAt time.Time
}

// FromEvent stages an event. The relay picks the row up once nextRetryAt passes.
func FromEvent(e event.OrderEvent, maxRetries int, nextRetryAt time.Time) (OutboxMessage, error) {
	payload, err := message.EncodeEvent(e)
	if err != nil {
		return OutboxMessage{}, err
	}

	now := time.Now().UTC()

	return OutboxMessage{
		MessageID:   e.ID(),
		AggregateID: e.OrderID(),
		EventType:   e.Type(),
		Payload:     payload,
		ContentType: message.ContentType,
		MaxRetries:  maxRetries,
		CreatedAt:   now,
		UpdatedAt:   now,
		NextRetryAt: nextRetryAt,
	}, nil
}
