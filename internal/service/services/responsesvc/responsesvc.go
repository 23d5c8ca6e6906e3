// Package responsesvc turns payment and restaurant-approval responses into
// order lifecycle transitions.
package responsesvc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/corray333/food-ordering/order/internal/service/errs"
	"github.com/corray333/food-ordering/order/internal/service/models/message"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ErrRejected marks a response that can never be processed. Retrying it is pointless.
var ErrRejected = errors.New("response rejected")

// Kind tells which saga participant sent a response.
type Kind string

const (
	KindPayment            Kind = "payment"
	KindRestaurantApproval Kind = "restaurant_approval"
)

// orderService is the coordinator of the order lifecycle.
type orderService interface {
	PayOrder(ctx context.Context, orderID uuid.UUID) error
	ApproveOrder(ctx context.Context, orderID uuid.UUID) error
	CancelOrderPayment(ctx context.Context, orderID uuid.UUID, failureMessages []string) error
	CancelOrder(ctx context.Context, orderID uuid.UUID, failureMessages []string) error
}

// ResponseService dispatches decoded responses to the coordinator.
type ResponseService struct {
	orders orderService
}

// option is a function that configures the ResponseService.
type option func(*ResponseService)

// MustNewResponseService creates a new ResponseService.
func MustNewResponseService(opts ...option) *ResponseService {
	s := &ResponseService{}
	for _, opt := range opts {
		opt(s)
	}

	if s.orders == nil {
		panic("response service requires an order service")
	}

	return s
}

// WithOrderService sets the order lifecycle coordinator.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithOrderService(orders orderService) option {
	return func(s *ResponseService) {
		s.orders = orders
	}
}

// Process handles one response payload. A redelivered response whose transition
// was already applied is accepted. Errors wrapping ErrRejected are permanent;
// any other error is worth retrying.
func (s *ResponseService) Process(ctx context.Context, kind Kind, payload []byte) error {
	ctx, span := otel.Tracer("order-svc").Start(ctx, "ResponseService.Process",
		trace.WithAttributes(attribute.String("response.kind", string(kind))),
	)
	defer span.End()

	var err error
	switch kind {
	case KindPayment:
		err = s.processPayment(ctx, payload)
	case KindRestaurantApproval:
		err = s.processApproval(ctx, payload)
	default:
		err = fmt.Errorf("%w: unknown response kind %q", ErrRejected, kind)
	}

	var transitionErr *errs.InvalidStateTransitionError
	if errors.As(err, &transitionErr) {
		slog.InfoContext(ctx, "Response already applied, skipping", "kind", kind, "reason", transitionErr.Error())

		return nil
	}

	var notFoundErr *errs.NotFoundError
	if errors.As(err, &notFoundErr) {
		return fmt.Errorf("%w: %w", ErrRejected, err)
	}

	if err != nil {
		span.RecordError(err)
	}

	return err
}

func (s *ResponseService) processPayment(ctx context.Context, payload []byte) error {
	var resp message.PaymentResponse
	if err := json.Unmarshal(payload, &resp); err != nil {
		return fmt.Errorf("%w: failed to decode payment response: %w", ErrRejected, err)
	}
	if resp.OrderID == uuid.Nil {
		return fmt.Errorf("%w: payment response %s has no order id", ErrRejected, resp.ID)
	}

	slog.InfoContext(ctx, "Processing payment response",
		"order_id", resp.OrderID,
		"payment_status", resp.PaymentStatus,
	)

	switch resp.PaymentStatus {
	case message.PaymentCompleted:
		return s.orders.PayOrder(ctx, resp.OrderID)
	case message.PaymentCancelled, message.PaymentFailed:
		return s.orders.CancelOrder(ctx, resp.OrderID, resp.FailureMessages)
	default:
		return fmt.Errorf("%w: unknown payment status %q", ErrRejected, resp.PaymentStatus)
	}
}

func (s *ResponseService) processApproval(ctx context.Context, payload []byte) error {
	var resp message.RestaurantApprovalResponse
	if err := json.Unmarshal(payload, &resp); err != nil {
		return fmt.Errorf("%w: failed to decode restaurant approval response: %w", ErrRejected, err)
	}
	if resp.OrderID == uuid.Nil {
		return fmt.Errorf("%w: restaurant approval response %s has no order id", ErrRejected, resp.ID)
	}

	slog.InfoContext(ctx, "Processing restaurant approval response",
		"order_id", resp.OrderID,
		"approval_status", resp.OrderApprovalStatus,
	)

	switch resp.OrderApprovalStatus {
	case message.ApprovalApproved:
		return s.orders.ApproveOrder(ctx, resp.OrderID)
	case message.ApprovalRejected:
		return s.orders.CancelOrderPayment(ctx, resp.OrderID, resp.FailureMessages)
	default:
		return fmt.Errorf("%w: unknown approval status %q", ErrRejected, resp.OrderApprovalStatus)
	}
}
