package inbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/corray333/food-ordering/order/internal/dal/interfaces/iinboxrepo"
	"github.com/corray333/food-ordering/order/internal/service/models/inbox"
	"github.com/corray333/food-ordering/order/internal/service/services/responsesvc"
	"github.com/spf13/viper"
)

// service represents the service layer interface.
type service interface {
	Process(ctx context.Context, kind responsesvc.Kind, payload []byte) error
}

// Worker retries responses stored in the inbox table.
type Worker struct {
	inboxRepo    iinboxrepo.IInboxRepository
	service      service
	kindOf       func(queueName string) (responsesvc.Kind, bool)
	pollInterval time.Duration
	batchSize    int
	stopCh       chan struct{}
}

// NewWorker creates a new inbox worker. kindOf resolves the response kind of a
// stored message from the queue it arrived on.
func NewWorker(
	inboxRepo iinboxrepo.IInboxRepository,
	service service,
	kindOf func(queueName string) (responsesvc.Kind, bool),
) *Worker {
	pollIntervalSeconds := viper.GetInt("rabbitmq.inbox.poll_interval_seconds")
	if pollIntervalSeconds == 0 {
		pollIntervalSeconds = 10
	}

	batchSize := viper.GetInt("rabbitmq.inbox.batch_size")
	if batchSize == 0 {
		batchSize = 100
	}

	return &Worker{
		inboxRepo:    inboxRepo,
		service:      service,
		kindOf:       kindOf,
		pollInterval: time.Duration(pollIntervalSeconds) * time.Second,
		batchSize:    batchSize,
		stopCh:       make(chan struct{}),
	}
}

// Start begins processing messages from the inbox.
func (w *Worker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	slog.Info("Inbox worker started", "poll_interval", w.pollInterval, "batch_size", w.batchSize)

	for {
		select {
		case <-ctx.Done():
			slog.Info("Inbox worker shutting down")

			return
		case <-w.stopCh:
			slog.Info("Inbox worker stopped")

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

// processMessages retrieves and processes pending messages from the inbox.
func (w *Worker) processMessages(ctx context.Context) {
	messages, err := w.inboxRepo.GetPendingMessages(ctx, w.batchSize)
	if err != nil {
		slog.Error("Failed to get pending messages from inbox", "error", err)

		return
	}

	if len(messages) == 0 {
		return
	}

	slog.Info("Processing inbox messages", "count", len(messages))

	for _, msg := range messages {
		err := w.process(ctx, msg)

		switch {
		case err == nil:
			w.delete(ctx, msg, "Message successfully processed and removed from inbox")
		case errors.Is(err, responsesvc.ErrRejected):
			slog.Error("Dropping message that cannot be processed",
				"inbox_id", msg.ID,
				"message_id", msg.MessageID,
				"error", err,
			)
			w.delete(ctx, msg, "Rejected message removed from inbox")
		default:
			w.scheduleRetry(ctx, msg, err)
		}
	}
}

func (w *Worker) process(ctx context.Context, msg inbox.InboxMessage) error {
	kind, ok := w.kindOf(msg.QueueName)
	if !ok {
		return fmt.Errorf("%w: no response kind for queue %q", responsesvc.ErrRejected, msg.QueueName)
	}

	return w.service.Process(ctx, kind, msg.Payload)
}

func (w *Worker) delete(ctx context.Context, msg inbox.InboxMessage, logMsg string) {
	if err := w.inboxRepo.Delete(ctx, msg.ID); err != nil {
		slog.Error("Failed to delete message from inbox",
			"inbox_id", msg.ID,
			"error", err,
		)

		return
	}

	slog.Info(logMsg, "inbox_id", msg.ID, "message_id", msg.MessageID)
}

func (w *Worker) scheduleRetry(ctx context.Context, msg inbox.InboxMessage, cause error) {
	// Update retry count and schedule next retry with exponential backoff
	newRetryCount := msg.RetryCount + 1
	backoffSeconds := math.Pow(2, float64(newRetryCount)) * 30 // 60s, 120s, 240s, etc.
	nextRetryAt := time.Now().UTC().Add(time.Duration(backoffSeconds) * time.Second)

	if newRetryCount >= msg.MaxRetries {
		slog.Error("Inbox message exhausted its retries",
			"inbox_id", msg.ID,
			"message_id", msg.MessageID,
			"queue", msg.QueueName,
			"error", cause,
		)
	} else {
		slog.Warn("Failed to process message from inbox, will retry",
			"inbox_id", msg.ID,
			"retry_count", newRetryCount,
			"next_retry", nextRetryAt,
			"error", cause,
		)
	}

	if err := w.inboxRepo.UpdateRetry(ctx, msg.ID, newRetryCount, cause.Error(), nextRetryAt); err != nil {
		slog.Error("Failed to update retry information", "inbox_id", msg.ID, "error", err)
	}
}
