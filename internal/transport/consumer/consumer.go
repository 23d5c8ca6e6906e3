package consumer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/corray333/food-ordering/order/internal/dal/rabbitmq"
	"github.com/corray333/food-ordering/order/internal/service/models/inbox"
	"github.com/corray333/food-ordering/order/internal/service/services/responsesvc"
	"github.com/google/uuid"
	"github.com/spf13/viper"
	"github.com/streadway/amqp"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"
)

// service represents the service layer interface.
type service interface {
	Process(ctx context.Context, kind responsesvc.Kind, payload []byte) error
}

// inboxStore keeps responses whose processing failed for a later retry.
type inboxStore interface {
	Insert(ctx context.Context, msg inbox.InboxMessage) error
}

// Queue is a response queue and the kind of responses it carries.
type Queue struct {
	Name       string
	RoutingKey string
	Kind       responsesvc.Kind
}

// Consumer represents the RabbitMQ consumer transport for saga responses.
type Consumer struct {
	client          *rabbitmq.Client
	service         service
	inboxRepo       inboxStore
	queues          []Queue
	consumerTag     string
	concurrency     int
	inboxMaxRetries int
	stop            chan struct{}
	stopOnce        sync.Once
	done            chan struct{}
}

// NewConsumer declares the response queues on the topic exchange and creates a Consumer.
func NewConsumer(client *rabbitmq.Client, service service, inboxRepo inboxStore) *Consumer {
	exchange := viper.GetString("rabbitmq.exchange")
	if exchange == "" {
		panic("rabbitmq.exchange is not set in config")
	}

	queues := []Queue{
		{
			Name:       viper.GetString("rabbitmq.queues.payment_response.name"),
			RoutingKey: viper.GetString("rabbitmq.queues.payment_response.routing_key"),
			Kind:       responsesvc.KindPayment,
		},
		{
			Name:       viper.GetString("rabbitmq.queues.restaurant_approval_response.name"),
			RoutingKey: viper.GetString("rabbitmq.queues.restaurant_approval_response.routing_key"),
			Kind:       responsesvc.KindRestaurantApproval,
		},
	}

	for _, q := range queues {
		if q.Name == "" {
			panic(fmt.Sprintf("queue for %s responses is not set in config", q.Kind))
		}

		if _, err := client.DeclareQueue(rabbitmq.DeclareQueueConfig{
			Name:    q.Name,
			Durable: true,
		}); err != nil {
			panic(err)
		}

		if err := client.BindQueue(rabbitmq.BindQueueConfig{
			Queue:      q.Name,
			RoutingKey: q.RoutingKey,
			Exchange:   exchange,
		}); err != nil {
			panic(err)
		}
	}

	concurrency := viper.GetInt("rabbitmq.consumer.concurrency")
	if concurrency == 0 {
		concurrency = 50
	}

	if prefetch := viper.GetInt("rabbitmq.consumer.prefetch"); prefetch > 0 {
		if err := client.Qos(prefetch); err != nil {
			panic(err)
		}
	}

	consumerTag := viper.GetString("rabbitmq.consumer.tag")
	if consumerTag == "" {
		consumerTag = "order-svc"
	}

	maxRetries := viper.GetInt("rabbitmq.inbox.max_retries")
	if maxRetries == 0 {
		maxRetries = 5
	}

	return &Consumer{
		client:          client,
		service:         service,
		inboxRepo:       inboxRepo,
		queues:          queues,
		consumerTag:     consumerTag,
		concurrency:     concurrency,
		inboxMaxRetries: maxRetries,
		stop:            make(chan struct{}),
		done:            make(chan struct{}),
	}
}

// Run starts consuming every response queue until Shutdown or ctx cancellation.
func (c *Consumer) Run(ctx context.Context) error {
	defer close(c.done)

	g := &errgroup.Group{}
	g.SetLimit(c.concurrency)

	var readers sync.WaitGroup
	for _, q := range c.queues {
		msgs, err := c.client.Consume(rabbitmq.ConsumeConfig{
			Queue:    q.Name,
			Consumer: c.tagFor(q),
		})
		if err != nil {
			return fmt.Errorf("failed to consume %s: %w", q.Name, err)
		}

		slog.Info("Consumer started", "queue", q.Name, "consumer_tag", c.tagFor(q))

		readers.Add(1)
		go func(q Queue, msgs <-chan amqp.Delivery) {
			defer readers.Done()

			for {
				select {
				case <-ctx.Done():
					return
				case <-c.stop:
					return
				case msg, ok := <-msgs:
					if !ok {
						slog.Info("Message channel closed", "queue", q.Name)

						return
					}

					g.Go(func() error {
						c.processMessage(ctx, q, msg)

						return nil
					})
				}
			}
		}(q, msgs)
	}

	readers.Wait()
	if err := g.Wait(); err != nil {
		slog.Error("Error processing messages", "error", err)
	}

	return nil
}

func (c *Consumer) tagFor(q Queue) string {
	return c.consumerTag + "-" + string(q.Kind)
}

// processMessage processes a single response. It always settles the delivery.
func (c *Consumer) processMessage(ctx context.Context, q Queue, msg amqp.Delivery) {
	ctx, span := otel.Tracer("consumer").Start(ctx, "Consumer.processMessage")
	defer span.End()

	slog.InfoContext(ctx, "Received message", "queue", q.Name, "delivery_tag", msg.DeliveryTag, "message_id", msg.MessageId)

	err := c.service.Process(ctx, q.Kind, msg.Body)
	switch {
	case err == nil:
		c.ack(ctx, msg)
	case errors.Is(err, responsesvc.ErrRejected):
		slog.ErrorContext(ctx, "Rejecting message", "queue", q.Name, "message_id", msg.MessageId, "error", err)
		// Reject the message without requeuing
		if err := msg.Nack(false, false); err != nil {
			slog.ErrorContext(ctx, "Failed to nack message", "error", err)
		}
	default:
		slog.WarnContext(ctx, "Failed to process message, moving it to inbox", "queue", q.Name, "error", err)
		if err := c.inboxRepo.Insert(ctx, c.toInbox(q, msg, err)); err != nil {
			slog.ErrorContext(ctx, "Failed to store message in inbox, requeueing", "error", err)
			if err := msg.Nack(false, true); err != nil {
				slog.ErrorContext(ctx, "Failed to nack message", "error", err)
			}

			return
		}
		c.ack(ctx, msg)
	}
}

func (c *Consumer) ack(ctx context.Context, msg amqp.Delivery) {
	if err := msg.Ack(false); err != nil {
		slog.ErrorContext(ctx, "Failed to ack message", "error", err)
	}
}

func (c *Consumer) toInbox(q Queue, msg amqp.Delivery, cause error) inbox.InboxMessage {
	messageID := msg.MessageId
	if messageID == "" {
		messageID = uuid.NewSHA1(uuid.NameSpaceOID, append([]byte(q.Name), msg.Body...)).String()
	}

	contentType := msg.ContentType
	if contentType == "" {
		contentType = "application/json"
	}

	now := time.Now().UTC()

	return inbox.InboxMessage{
		MessageID:   messageID,
		QueueName:   q.Name,
		RoutingKey:  msg.RoutingKey,
		Payload:     msg.Body,
		ContentType: contentType,
		MaxRetries:  c.inboxMaxRetries,
		LastError:   cause.Error(),
		CreatedAt:   now,
		UpdatedAt:   now,
		NextRetryAt: now.Add(30 * time.Second),
	}
}

// KindOf returns the response kind carried by the named queue.
func (c *Consumer) KindOf(queueName string) (responsesvc.Kind, bool) {
	for _, q := range c.queues {
		if q.Name == queueName {
			return q.Kind, true
		}
	}

	return "", false
}

// Shutdown gracefully shuts down the consumer.
func (c *Consumer) Shutdown() error {
	slog.Info("Shutting down consumer")
	c.stopOnce.Do(func() {
		close(c.stop)
	})

	for _, q := range c.queues {
		if err := c.client.Cancel(c.tagFor(q)); err != nil {
			slog.Warn("Failed to cancel consumer", "queue", q.Name, "error", err)
		}
	}

	// Wait for processing to finish with timeout
	select {
	case <-c.done:
		slog.Info("Consumer stopped successfully")
	case <-time.After(10 * time.Second):
		slog.Warn("Consumer shutdown timeout")
	}

	return nil
}
