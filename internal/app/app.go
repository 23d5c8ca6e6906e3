package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/corray333/food-ordering/order/internal/dal/cache"
	"github.com/corray333/food-ordering/order/internal/dal/postgres"
	"github.com/corray333/food-ordering/order/internal/dal/publisher"
	"github.com/corray333/food-ordering/order/internal/dal/rabbitmq"
	inboxrepo "github.com/corray333/food-ordering/order/internal/dal/repositories/inbox/postgres"
	outboxrepo "github.com/corray333/food-ordering/order/internal/dal/repositories/outbox/postgres"
	"github.com/corray333/food-ordering/order/internal/otel"
	"github.com/corray333/food-ordering/order/internal/service/services/ordersvc"
	"github.com/corray333/food-ordering/order/internal/service/services/responsesvc"
	"github.com/corray333/food-ordering/order/internal/transport/consumer"
	grpctransport "github.com/corray333/food-ordering/order/internal/transport/grpc"
	httptransport "github.com/corray333/food-ordering/order/internal/transport/http"
	inboxworker "github.com/corray333/food-ordering/order/internal/worker/inbox"
	outboxworker "github.com/corray333/food-ordering/order/internal/worker/outbox"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
)

// App represents the application.
type App struct {
	otelController *otel.OtelController
	postgresClient *postgres.Client
	rabbitClient   *rabbitmq.Client
	redisClient    *cache.Client
	producer       *rabbitmq.Producer
	publisher      *publisher.EventPublisher
	orderSvc       *ordersvc.OrderService
	consumer       *consumer.Consumer
	outboxWorker   *outboxworker.Worker
	inboxWorker    *inboxworker.Worker
	httpTransport  *httptransport.HTTPTransport
	grpcTransport  *grpctransport.GRPCTransport
}

// MustNewApp creates a new application.
func MustNewApp() *App {
	otelController := otel.MustInitOtel()
	postgresClient := postgres.MustNewClient()
	rabbitClient := rabbitmq.MustNewClient()
	redisClient := cache.MustNewClient()

	exchange := viper.GetString("rabbitmq.exchange")
	if exchange == "" {
		panic("rabbitmq.exchange is not set in config")
	}
	if err := rabbitClient.DeclareExchange(rabbitmq.DeclareExchangeConfig{
		Name:    exchange,
		Durable: true,
	}); err != nil {
		panic(err)
	}

	producerChannel, err := rabbitClient.NewChannel()
	if err != nil {
		panic(err)
	}
	producer, err := rabbitmq.NewProducer(producerChannel, exchange)
	if err != nil {
		panic(err)
	}

	outboxRepo := outboxrepo.NewOutboxRepository(postgresClient.Pool())
	inboxRepo := inboxrepo.NewInboxRepository(postgresClient.Pool())

	eventPublisher := publisher.MustNewEventPublisher(producer, outboxRepo)

	orderSvc := ordersvc.MustNewOrderService(
		ordersvc.WithPostgresClient(postgresClient),
		ordersvc.WithEventPublisher(eventPublisher),
	)

	responseSvc := responsesvc.MustNewResponseService(
		responsesvc.WithOrderService(orderSvc),
	)

	responseConsumer := consumer.NewConsumer(rabbitClient, responseSvc, inboxRepo)

	httpTransport := httptransport.NewHTTPTransport(
		orderSvc,
		httptransport.WithIdempotencyCache(redisClient),
	)
	httpTransport.RegisterRoutes()

	grpcTransport := grpctransport.NewGRPCTransport(
		grpctransport.Dependency{Name: "postgres", Ping: postgresClient.Ping},
		grpctransport.Dependency{Name: "rabbitmq", Ping: func(context.Context) error { return rabbitClient.Ping() }},
	)

	return &App{
		otelController: otelController,
		postgresClient: postgresClient,
		rabbitClient:   rabbitClient,
		redisClient:    redisClient,
		producer:       producer,
		publisher:      eventPublisher,
		orderSvc:       orderSvc,
		consumer:       responseConsumer,
		outboxWorker:   outboxworker.NewWorker(outboxRepo, producer, rabbitmq.LoadTopics()),
		inboxWorker:    inboxworker.NewWorker(inboxRepo, responseSvc, responseConsumer.KindOf),
		httpTransport:  httpTransport,
		grpcTransport:  grpcTransport,
	}
}

// Run starts the application.
// Tracks interrupt signal to gracefully shut down the application.
func (a *App) Run() {
	// Create a channel to receive OS signals
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	ctx, cancelWorkers := context.WithCancel(context.Background())
	defer cancelWorkers()

	go func() {
		if err := a.httpTransport.Run(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
		}
	}()

	go func() {
		if err := a.grpcTransport.Run(); err != nil {
			slog.Error("gRPC server error", "error", err)
		}
	}()

	go func() {
		if err := a.consumer.Run(ctx); err != nil {
			slog.Error("Consumer error", "error", err)
		}
	}()

	go a.outboxWorker.Start(ctx)
	go a.inboxWorker.Start(ctx)

	select {
	case <-stop:
		slog.Info("Shutdown signal received")
	case <-a.producer.Stopped():
		slog.Error("Producer channel closed, shutting down")
	}

	a.shutdown(cancelWorkers)
}

func (a *App) shutdown(cancelWorkers context.CancelFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	g := &errgroup.Group{}
	g.Go(func() error {
		if err := a.httpTransport.Shutdown(ctx); err != nil {
			slog.Error("HTTP server shutdown error", "error", err)

			return err
		}
		slog.Info("HTTP server stopped gracefully")

		return nil
	})
	g.Go(func() error {
		if err := a.grpcTransport.Shutdown(ctx); err != nil {
			slog.Error("gRPC server shutdown error", "error", err)

			return err
		}
		slog.Info("gRPC server stopped gracefully")

		return nil
	})
	_ = g.Wait()

	a.outboxWorker.Stop()
	a.inboxWorker.Stop()
	if err := a.consumer.Shutdown(); err != nil {
		slog.Error("Consumer shutdown error", "error", err)
	}
	cancelWorkers()

	if err := a.publisher.Shutdown(ctx); err != nil {
		slog.Warn("Pending deliveries left to the outbox relay", "error", err)
	}

	if err := a.producer.Close(); err != nil {
		slog.Error("Producer close error", "error", err)
	}

	if err := a.rabbitClient.Close(); err != nil {
		slog.Error("RabbitMQ connection close error", "error", err)
	} else {
		slog.Info("RabbitMQ connection closed gracefully")
	}

	a.postgresClient.Close()
	slog.Info("Database connection closed gracefully")

	if err := a.redisClient.Close(); err != nil {
		slog.Error("Redis connection close error", "error", err)
	}

	if err := a.otelController.Shutdown(ctx); err != nil {
		slog.Error("Tracer provider shutdown error", "error", err)
	}

	slog.Info("Application shutdown complete")
}
