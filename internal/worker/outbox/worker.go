package outbox

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/corray333/food-ordering/order/internal/dal/interfaces/ioutboxrepo"
	"github.com/corray333/food-ordering/order/internal/dal/rabbitmq"
	"github.com/corray333/food-ordering/order/internal/service/models/outbox"
	"github.com/google/uuid"
	"github.com/spf13/viper"
)

// sender is the reliable producer.
type sender interface {
	Send(topic, key string, msg rabbitmq.Message) (*rabbitmq.SendHandle, error)
}

// Worker relays staged events from the outbox table to the broker.
type Worker struct {
	outboxRepo   ioutboxrepo.IOutboxRepository
	producer     sender
	topics       rabbitmq.Topics
	pollInterval time.Duration
	batchSize    int
	ackTimeout   time.Duration
	stopCh       chan struct{}
}

// NewWorker creates a new outbox worker.
func NewWorker(
	outboxRepo ioutboxrepo.IOutboxRepository,
	producer sender,
	topics rabbitmq.Topics,
) *Worker {
	pollIntervalSeconds := viper.GetInt("rabbitmq.outbox.poll_interval_seconds")
	if pollIntervalSeconds == 0 {
		pollIntervalSeconds = 10
	}

	batchSize := viper.GetInt("rabbitmq.outbox.batch_size")
	if batchSize == 0 {
		batchSize = 100
	}

	ackTimeoutSeconds := viper.GetInt("rabbitmq.producer.ack_timeout_seconds")
	if ackTimeoutSeconds == 0 {
		ackTimeoutSeconds = 10
	}

	return &Worker{
		outboxRepo:   outboxRepo,
		producer:     producer,
		topics:       topics,
		pollInterval: time.Duration(pollIntervalSeconds) * time.Second,
		batchSize:    batchSize,
		ackTimeout:   time.Duration(ackTimeoutSeconds) * time.Second,
		stopCh:       make(chan struct{}),
	}
}

// Start begins processing messages from the outbox.
func (w *Worker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	slog.Info("Outbox worker started", "poll_interval", w.pollInterval, "batch_size", w.batchSize)

	for {
		select {
		case <-ctx.Done():
			slog.Info("Outbox worker shutting down")

			return
		case <-w.stopCh:
			slog.Info("Outbox worker stopped")

			return
		case <-ticker.C:
			w.processMessages(ctx)
		}
	}
}

// Stop stops the worker.
func (w *Worker) Stop() {
	close(w.stopCh)
}

// processMessages retrieves and relays pending messages from the outbox. Once a
// message of an order fails, later messages of the same order wait for the next
// round so the order's events keep their sequence.
func (w *Worker) processMessages(ctx context.Context) {
	messages, err := w.outboxRepo.GetPendingMessages(ctx, w.batchSize)
	if err != nil {
		slog.Error("Failed to get pending messages from outbox", "error", err)

		return
	}

	if len(messages) == 0 {
		return
	}

	slog.Info("Processing outbox messages", "count", len(messages))

	blocked := make(map[uuid.UUID]struct{})
	for _, msg := range messages {
		if _, ok := blocked[msg.AggregateID]; ok {
			continue
		}

		if err := w.deliver(ctx, msg); err != nil {
			blocked[msg.AggregateID] = struct{}{}
			w.scheduleRetry(ctx, msg, err)

			continue
		}

		// Successfully delivered, delete from outbox
		if err := w.outboxRepo.Delete(ctx, msg.ID); err != nil {
			slog.Error("Failed to delete message from outbox after successful publish",
				"outbox_id", msg.ID,
				"error", err,
			)
		} else {
			slog.Info("Message successfully published and removed from outbox",
				"outbox_id", msg.ID,
				"event_type", msg.EventType,
				"order_id", msg.AggregateID,
			)
		}
	}
}

func (w *Worker) deliver(ctx context.Context, msg outbox.OutboxMessage) error {
	topic, err := w.topics.For(msg.EventType)
	if err != nil {
		return err
	}

	handle, err := w.producer.Send(topic, msg.AggregateID.String(), rabbitmq.Message{
		ID:          msg.MessageID.String(),
		ContentType: msg.ContentType,
		Body:        msg.Payload,
	})
	if err != nil {
		return err
	}

	waitCtx, cancel := context.WithTimeout(ctx, w.ackTimeout)
	defer cancel()

	return handle.Wait(waitCtx)
}

func (w *Worker) scheduleRetry(ctx context.Context, msg outbox.OutboxMessage, cause error) {
	// Update retry count and schedule next retry with exponential backoff
	newRetryCount := msg.RetryCount + 1
	backoffSeconds := math.Pow(2, float64(newRetryCount)) * 30 // 60s, 120s, 240s, etc.
	nextRetryAt := time.Now().UTC().Add(time.Duration(backoffSeconds) * time.Second)

	if newRetryCount >= msg.MaxRetries {
		slog.Error("Outbox message exhausted its retries",
			"outbox_id", msg.ID,
			"message_id", msg.MessageID,
			"order_id", msg.AggregateID,
			"error", cause,
		)
	} else {
		slog.Warn("Failed to publish message from outbox, will retry",
			"outbox_id", msg.ID,
			"retry_count", newRetryCount,
			"next_retry", nextRetryAt,
			"error", cause,
		)
	}

	if err := w.outboxRepo.UpdateRetry(ctx, msg.ID, newRetryCount, cause.Error(), nextRetryAt); err != nil {
		slog.Error("Failed to update retry information", "outbox_id", msg.ID, "error", err)
	}
}
