package ordersvc

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/corray333/food-ordering/order/internal/dal/interfaces/icustomerrepo"
	"github.com/corray333/food-ordering/order/internal/dal/interfaces/iorderrepo"
	"github.com/corray333/food-ordering/order/internal/dal/interfaces/ioutboxrepo"
	"github.com/corray333/food-ordering/order/internal/dal/interfaces/irestaurantrepo"
	"github.com/corray333/food-ordering/order/internal/dal/postgres"
	"github.com/corray333/food-ordering/order/internal/dal/uow"
	"github.com/corray333/food-ordering/order/internal/service/errs"
	"github.com/corray333/food-ordering/order/internal/service/models/event"
	"github.com/corray333/food-ordering/order/internal/service/models/order"
	"github.com/corray333/food-ordering/order/internal/service/models/orderitem"
	"github.com/corray333/food-ordering/order/internal/service/models/outbox"
	"github.com/corray333/food-ordering/order/internal/service/models/restaurant"
	"github.com/corray333/food-ordering/order/internal/service/services/orderdomain"
	"github.com/google/uuid"
	"github.com/spf13/viper"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// OrderService coordinates the order lifecycle: every use case runs in one
// unit of work, stages its event in the outbox and publishes it after commit.
type OrderService struct {
	pgClient         *postgres.Client
	newUOW           func() unitOfWork
	publisher        eventPublisher
	domain           *orderdomain.DomainService
	outboxMaxRetries int
	outboxGrace      time.Duration
}

type unitOfWork interface {
	Begin(ctx context.Context) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error

	OrderRepository() iorderrepo.IOrderRepository
	CustomerRepository() icustomerrepo.ICustomerRepository
	RestaurantRepository() irestaurantrepo.IRestaurantRepository
	OutboxRepository() ioutboxrepo.IOutboxRepository
}

// eventPublisher sends committed events to the broker.
type eventPublisher interface {
	Publish(ctx context.Context, e event.OrderEvent) error
}

// option is a function that configures the OrderService.
type option func(*OrderService)

// MustNewOrderService creates a new OrderService.
func MustNewOrderService(opts ...option) *OrderService {
	maxRetries := viper.GetInt("rabbitmq.outbox.max_retries")
	if maxRetries == 0 {
		maxRetries = 5
	}

	graceSeconds := viper.GetInt("rabbitmq.outbox.grace_seconds")
	if graceSeconds == 0 {
		graceSeconds = 30
	}

	s := &OrderService{
		outboxMaxRetries: maxRetries,
		outboxGrace:      time.Duration(graceSeconds) * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.newUOW == nil && s.pgClient != nil {
		client := s.pgClient
		s.newUOW = func() unitOfWork { return uow.NewUnitOfWork(client) }
	}
	if s.newUOW == nil {
		panic("order service requires a postgres client or a unit of work factory")
	}
	if s.publisher == nil {
		panic("order service requires an event publisher")
	}
	if s.domain == nil {
		s.domain = orderdomain.NewDomainService()
	}

	return s
}

// WithPostgresClient sets the Postgres client for the OrderService.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithPostgresClient(pgClient *postgres.Client) option {
	return func(s *OrderService) {
		s.pgClient = pgClient
	}
}

// WithUnitOfWorkFactory overrides how units of work are created.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithUnitOfWorkFactory(newUOW func() unitOfWork) option {
	return func(s *OrderService) {
		s.newUOW = newUOW
	}
}

// WithEventPublisher sets the publisher for committed events.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithEventPublisher(publisher eventPublisher) option {
	return func(s *OrderService) {
		s.publisher = publisher
	}
}

// WithDomainService sets the domain service.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithDomainService(domain *orderdomain.DomainService) option {
	return func(s *OrderService) {
		s.domain = domain
	}
}

// WithOutboxPolicy sets the retry budget of staged events and how long the
// relay leaves a fresh event to the post-commit publish.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithOutboxPolicy(maxRetries int, grace time.Duration) option {
	return func(s *OrderService) {
		s.outboxMaxRetries = maxRetries
		s.outboxGrace = grace
	}
}

// CreateOrder validates a new order against the customer and restaurant,
// persists it with its created event and publishes the event.
func (s *OrderService) CreateOrder(
	ctx context.Context,
	cmd CreateOrderCommand,
) (resp *CreateOrderResponse, err error) {
	ctx, span := otel.Tracer("order-svc").Start(ctx, "OrderService.CreateOrder",
		trace.WithAttributes(
			attribute.String("customer.id", cmd.CustomerID.String()),
			attribute.String("restaurant.id", cmd.RestaurantID.String()),
		),
	)
	defer endSpan(span, &err)

	work := s.newUOW()
	if err := work.Begin(ctx); err != nil {
		return nil, err
	}
	defer rollback(ctx, work)

	cust, err := work.CustomerRepository().FindCustomer(ctx, cmd.CustomerID)
	if err != nil {
		return nil, fmt.Errorf("failed to find customer: %w", err)
	}
	if cust == nil {
		slog.WarnContext(ctx, "Could not find customer", "customer_id", cmd.CustomerID)

		return nil, &errs.NotFoundError{Entity: "customer", ID: cmd.CustomerID.String()}
	}

	rest, err := work.RestaurantRepository().FindRestaurantInformation(ctx, probeOf(cmd))
	if err != nil {
		return nil, fmt.Errorf("failed to find restaurant: %w", err)
	}
	if rest == nil {
		slog.WarnContext(ctx, "Could not find restaurant", "restaurant_id", cmd.RestaurantID)

		return nil, &errs.NotFoundError{Entity: "restaurant", ID: cmd.RestaurantID.String()}
	}

	o, err := newOrder(cmd)
	if err != nil {
		return nil, err
	}

	created, err := s.domain.ValidateAndInitializeOrder(o, *rest)
	if err != nil {
		return nil, err
	}

	saved, err := s.saveAndStage(ctx, work, o, created)
	if err != nil {
		return nil, err
	}

	if err := work.Commit(ctx); err != nil {
		return nil, &errs.PersistenceError{Op: "commit order " + saved.ID().String(), Err: err}
	}

	slog.InfoContext(ctx, "Order is created", "order_id", saved.ID(), "tracking_id", saved.TrackingID())

	if err := s.publisher.Publish(ctx, created); err != nil {
		return nil, err
	}

	return &CreateOrderResponse{
		OrderTrackingID: saved.TrackingID(),
		OrderStatus:     saved.Status(),
		Message:         CreateOrderMessage,
	}, nil
}

// TrackOrder returns the public state of an order.
func (s *OrderService) TrackOrder(
	ctx context.Context,
	query TrackOrderQuery,
) (resp *TrackOrderResponse, err error) {
	ctx, span := otel.Tracer("order-svc").Start(ctx, "OrderService.TrackOrder",
		trace.WithAttributes(attribute.String("order.tracking_id", query.OrderTrackingID.String())),
	)
	defer endSpan(span, &err)

	o, err := s.newUOW().OrderRepository().FindByTrackingID(ctx, query.OrderTrackingID)
	if err != nil {
		return nil, fmt.Errorf("failed to find order: %w", err)
	}
	if o == nil {
		return nil, &errs.NotFoundError{Entity: "order", ID: query.OrderTrackingID.String()}
	}

	return &TrackOrderResponse{
		OrderTrackingID: o.TrackingID(),
		OrderStatus:     o.Status(),
		FailureMessages: o.FailureMessages(),
	}, nil
}

// PayOrder records a completed payment.
func (s *OrderService) PayOrder(ctx context.Context, orderID uuid.UUID) error {
	return s.transition(ctx, "PayOrder", orderID, s.domain.PayOrder)
}

// ApproveOrder records the restaurant's approval.
func (s *OrderService) ApproveOrder(ctx context.Context, orderID uuid.UUID) error {
	return s.transition(ctx, "ApproveOrder", orderID, s.domain.ApproveOrder)
}

// CancelOrderPayment starts compensation of a paid order the restaurant rejected.
func (s *OrderService) CancelOrderPayment(ctx context.Context, orderID uuid.UUID, failureMessages []string) error {
	return s.transition(ctx, "CancelOrderPayment", orderID, func(o *order.Order) (event.OrderEvent, error) {
		return s.domain.CancelOrderPayment(o, failureMessages)
	})
}

// CancelOrder cancels an order whose payment failed or was refunded.
func (s *OrderService) CancelOrder(ctx context.Context, orderID uuid.UUID, failureMessages []string) error {
	return s.transition(ctx, "CancelOrder", orderID, func(o *order.Order) (event.OrderEvent, error) {
		return s.domain.CancelOrder(o, failureMessages)
	})
}

func (s *OrderService) transition(
	ctx context.Context,
	operation string,
	orderID uuid.UUID,
	apply func(*order.Order) (event.OrderEvent, error),
) (err error) {
	ctx, span := otel.Tracer("order-svc").Start(ctx, "OrderService."+operation,
		trace.WithAttributes(attribute.String("order.id", orderID.String())),
	)
	defer endSpan(span, &err)

	work := s.newUOW()
	if err := work.Begin(ctx); err != nil {
		return err
	}
	defer rollback(ctx, work)

	o, err := work.OrderRepository().FindByIDForUpdate(ctx, orderID)
	if err != nil {
		return fmt.Errorf("failed to find order: %w", err)
	}
	if o == nil {
		return &errs.NotFoundError{Entity: "order", ID: orderID.String()}
	}

	e, err := apply(o)
	if err != nil {
		return err
	}

	if _, err := s.saveAndStage(ctx, work, o, e); err != nil {
		return err
	}

	if err := work.Commit(ctx); err != nil {
		return &errs.PersistenceError{Op: "commit order " + orderID.String(), Err: err}
	}

	slog.InfoContext(ctx, "Order status changed", "order_id", orderID, "status", o.Status(), "event_type", e.Type())

	return s.publisher.Publish(ctx, e)
}

func (s *OrderService) saveAndStage(
	ctx context.Context,
	work unitOfWork,
	o *order.Order,
	e event.OrderEvent,
) (*order.Order, error) {
	saved, err := work.OrderRepository().Save(ctx, o)
	if err != nil {
		return nil, &errs.PersistenceError{Op: "save order " + o.ID().String(), Err: err}
	}
	if saved == nil {
		slog.ErrorContext(ctx, "Could not save order", "order_id", o.ID())

		return nil, &errs.PersistenceError{Op: "save order " + o.ID().String()}
	}

	msg, err := outbox.FromEvent(e, s.outboxMaxRetries, time.Now().UTC().Add(s.outboxGrace))
	if err != nil {
		return nil, err
	}

	if err := work.OutboxRepository().Insert(ctx, msg); err != nil {
		return nil, &errs.PersistenceError{Op: "stage event " + e.ID().String(), Err: err}
	}

	return saved, nil
}

func newOrder(cmd CreateOrderCommand) (*order.Order, error) {
	items := make([]orderitem.OrderItem, 0, len(cmd.Items))
	for _, it := range cmd.Items {
		item, err := orderitem.New(it.ProductID, it.Quantity, it.Price, it.SubTotal)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}

	return order.New(order.NewParams{
		CustomerID:   cmd.CustomerID,
		RestaurantID: cmd.RestaurantID,
		DeliveryAddress: order.StreetAddress{
			Street:     cmd.Address.Street,
			PostalCode: cmd.Address.PostalCode,
			City:       cmd.Address.City,
		},
		Items: items,
		Price: cmd.Price,
	})
}

func probeOf(cmd CreateOrderCommand) restaurant.Probe {
	ids := make([]uuid.UUID, 0, len(cmd.Items))
	for _, it := range cmd.Items {
		ids = append(ids, it.ProductID)
	}

	return restaurant.Probe{RestaurantID: cmd.RestaurantID, ProductIDs: ids}
}

func rollback(ctx context.Context, work unitOfWork) {
	if err := work.Rollback(context.WithoutCancel(ctx)); err != nil {
		slog.ErrorContext(ctx, "Failed to rollback unit of work", "error", err)
	}
}

func endSpan(span trace.Span, err *error) {
	if *err != nil {
		span.RecordError(*err)
		span.SetStatus(codes.Error, (*err).Error())
	}
	span.End()
}
