package ioutboxrepo

import (
	"context"
	"time"

	"github.com/corray333/food-ordering/order/internal/service/models/outbox"
	"github.com/google/uuid"
)

// IOutboxRepository defines the interface for outbox operations.
type IOutboxRepository interface {
	// Insert stages a message in the outbox
	Insert(ctx context.Context, msg outbox.OutboxMessage) error

	// GetPendingMessages retrieves messages that are ready for (re)delivery, oldest first
	GetPendingMessages(ctx context.Context, limit int) ([]outbox.OutboxMessage, error)

	// Delete removes a message from the outbox after successful delivery
	Delete(ctx context.Context, id int64) error

	// DeleteByMessageID removes a message by the id of the event it carries
	DeleteByMessageID(ctx context.Context, messageID uuid.UUID) error

	// UpdateRetry updates retry count and error information
	UpdateRetry(
		ctx context.Context,
		id int64,
		retryCount int,
		lastError string,
		nextRetryAt time.Time,
	) error
}
