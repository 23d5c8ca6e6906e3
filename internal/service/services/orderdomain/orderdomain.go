// Package orderdomain applies the order business rules. It never touches
// storage or the network; identifiers and timestamps come from injected
// generators so results depend only on the inputs.
package orderdomain

import (
	"time"

	"github.com/corray333/food-ordering/order/internal/service/errs"
	"github.com/corray333/food-ordering/order/internal/service/models/event"
	"github.com/corray333/food-ordering/order/internal/service/models/money"
	"github.com/corray333/food-ordering/order/internal/service/models/order"
	"github.com/corray333/food-ordering/order/internal/service/models/restaurant"
	"github.com/google/uuid"
)

// DomainService is a stateless policy object over orders.
type DomainService struct {
	newID func() uuid.UUID
	now   func() time.Time
}

// option is a function that configures the DomainService.
type option func(*DomainService)

// NewDomainService creates a DomainService backed by random UUIDs and the UTC wall clock.
func NewDomainService(opts ...option) *DomainService {
	s := &DomainService{
		newID: uuid.New,
		now:   func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// WithIDGenerator sets the generator for order, tracking and event ids.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithIDGenerator(newID func() uuid.UUID) option {
	return func(s *DomainService) {
		s.newID = newID
	}
}

// WithClock sets the source of event timestamps.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithClock(now func() time.Time) option {
	return func(s *DomainService) {
		s.now = now
	}
}

// ValidateAndInitializeOrder checks a new order against the restaurant snapshot,
// initializes it to PENDING and returns the created event.
func (s *DomainService) ValidateAndInitializeOrder(
	o *order.Order,
	r restaurant.Restaurant,
) (event.OrderEvent, error) {
	if !r.Active {
		return event.OrderEvent{}, errs.NewValidationError(
			"Restaurant with id %s is currently not active!", r.ID)
	}

	itemsTotal := money.Zero
	for _, item := range o.Items() {
		product, ok := r.FindProduct(item.ProductID)
		if !ok || !item.Price.Equal(product.Price) {
			return event.OrderEvent{}, errs.NewValidationError(
				"Order item price: %s is not valid for product: %s", item.Price, item.ProductID)
		}
		itemsTotal = itemsTotal.Add(item.SubTotal)
	}

	if !o.Price().Equal(itemsTotal) {
		return event.OrderEvent{}, order.TotalMismatchError(o.Price(), itemsTotal)
	}

	if err := o.Validate(); err != nil {
		return event.OrderEvent{}, err
	}

	orderID := s.newID()
	trackingID := s.newID()
	for trackingID == orderID {
		trackingID = s.newID()
	}
	if err := o.Initialize(orderID, trackingID); err != nil {
		return event.OrderEvent{}, err
	}

	return s.newEvent(event.TypeOrderCreated, o), nil
}

// PayOrder applies a completed payment.
func (s *DomainService) PayOrder(o *order.Order) (event.OrderEvent, error) {
	if err := o.Pay(); err != nil {
		return event.OrderEvent{}, err
	}

	return s.newEvent(event.TypeOrderPaid, o), nil
}

// ApproveOrder applies the restaurant's approval.
func (s *DomainService) ApproveOrder(o *order.Order) (event.OrderEvent, error) {
	if err := o.Approve(); err != nil {
		return event.OrderEvent{}, err
	}

	return s.newEvent(event.TypeOrderApproved, o), nil
}

// CancelOrderPayment starts compensation of an already paid order.
func (s *DomainService) CancelOrderPayment(
	o *order.Order,
	failureMessages []string,
) (event.OrderEvent, error) {
	if err := o.InitCancel(failureMessages); err != nil {
		return event.OrderEvent{}, err
	}

	return s.newEvent(event.TypeOrderCancelling, o), nil
}

// CancelOrder finishes cancellation of a pending or compensating order.
func (s *DomainService) CancelOrder(
	o *order.Order,
	failureMessages []string,
) (event.OrderEvent, error) {
	if err := o.Cancel(failureMessages); err != nil {
		return event.OrderEvent{}, err
	}

	return s.newEvent(event.TypeOrderCancelled, o), nil
}

func (s *DomainService) newEvent(typ event.Type, o *order.Order) event.OrderEvent {
	return event.New(s.newID(), typ, o.Snapshot(), s.now())
}
