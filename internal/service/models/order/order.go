package order

import (
	"slices"
	"strings"

	"github.com/corray333/food-ordering/order/internal/service/errs"
	"github.com/corray333/food-ordering/order/internal/service/models/money"
	"github.com/corray333/food-ordering/order/internal/service/models/orderitem"
	"github.com/google/uuid"
)

// Status is the lifecycle state of an order.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusPaid       Status = "PAID"
	StatusApproved   Status = "APPROVED"
	StatusCancelling Status = "CANCELLING"
	StatusCancelled  Status = "CANCELLED"
)

// ParseStatus converts a stored status back to a Status.
func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusPending, StatusPaid, StatusApproved, StatusCancelling, StatusCancelled:
		return st, nil
	default:
		return "", errs.NewValidationError("unknown order status: %q", s)
	}
}

// StreetAddress is the delivery address of an order.
type StreetAddress struct {
	Street     string `json:"street"`
	PostalCode string `json:"postalCode"`
	City       string `json:"city"`
}

// NewParams holds the caller-supplied data an order is built from.
type NewParams struct {
	CustomerID      uuid.UUID
	RestaurantID    uuid.UUID
	DeliveryAddress StreetAddress
	Items           []orderitem.OrderItem
	Price           money.Money
}

// Order is the aggregate root of a customer's purchase.
type Order struct {
	id              uuid.UUID
	trackingID      uuid.UUID
	customerID      uuid.UUID
	restaurantID    uuid.UUID
	deliveryAddress StreetAddress
	items           []orderitem.OrderItem
	price           money.Money
	status          Status
	failureMessages []string
	version         int64
}

// New builds an uninitialized order. The declared price is kept as given and
// checked against the items by Validate.
func New(p NewParams) (*Order, error) {
	if p.CustomerID == uuid.Nil {
		return nil, errs.NewValidationError("Order customer id must be set!")
	}
	if p.RestaurantID == uuid.Nil {
		return nil, errs.NewValidationError("Order restaurant id must be set!")
	}
	if len(p.Items) == 0 {
		return nil, errs.NewValidationError("Order must contain at least one item!")
	}
	if p.Price.IsNegative() {
		return nil, errs.NewValidationError("Total price: %s must not be negative!", p.Price)
	}

	return &Order{
		customerID:      p.CustomerID,
		restaurantID:    p.RestaurantID,
		deliveryAddress: p.DeliveryAddress,
		items:           slices.Clone(p.Items),
		price:           p.Price,
	}, nil
}

// Initialize assigns identities and moves a fresh order to PENDING.
func (o *Order) Initialize(orderID, trackingID uuid.UUID) error {
	if o.id != uuid.Nil || o.status != "" {
		return errs.NewValidationError("Order %s is already initialized!", o.id)
	}
	if orderID == uuid.Nil || trackingID == uuid.Nil {
		return errs.NewValidationError("Order id and tracking id must be set!")
	}
	if orderID == trackingID {
		return errs.NewValidationError("Order tracking id must differ from order id!")
	}

	o.id = orderID
	o.trackingID = trackingID
	o.status = StatusPending
	for i := range o.items {
		o.items[i].ID = int64(i + 1)
	}

	return nil
}

// Validate checks the money arithmetic of the order.
func (o *Order) Validate() error {
	if !o.price.IsGreaterThanZero() {
		return errs.NewValidationError("Total price must be greater than zero!")
	}

	itemsTotal := money.Zero
	for _, item := range o.items {
		if !item.IsSubTotalConsistent() {
			return errs.NewValidationError(
				"Order item subtotal: %s is not equal to price: %s x quantity: %d for product: %s",
				item.SubTotal, item.Price, item.Quantity, item.ProductID)
		}
		itemsTotal = itemsTotal.Add(item.SubTotal)
	}

	if !o.price.Equal(itemsTotal) {
		return TotalMismatchError(o.price, itemsTotal)
	}

	return nil
}

// TotalMismatchError builds the error reported when the declared total differs
// from the sum of the item subtotals.
func TotalMismatchError(declared, itemsTotal money.Money) *errs.ValidationError {
	return errs.NewValidationError(
		"Total price: %s is not equal to Order items total price: %s!",
		declared, itemsTotal.Amount().String())
}

// Pay moves PENDING → PAID.
func (o *Order) Pay() error {
	if o.status != StatusPending {
		return &errs.InvalidStateTransitionError{Operation: "pay", From: string(o.status)}
	}
	o.status = StatusPaid

	return nil
}

// Approve moves PAID → APPROVED.
func (o *Order) Approve() error {
	if o.status != StatusPaid {
		return &errs.InvalidStateTransitionError{Operation: "approve", From: string(o.status)}
	}
	o.status = StatusApproved

	return nil
}

// InitCancel moves PAID or APPROVED → CANCELLING and records the reasons.
func (o *Order) InitCancel(failureMessages []string) error {
	if o.status != StatusPaid && o.status != StatusApproved {
		return &errs.InvalidStateTransitionError{Operation: "initCancel", From: string(o.status)}
	}
	o.status = StatusCancelling
	o.appendFailureMessages(failureMessages)

	return nil
}

// Cancel moves PENDING or CANCELLING → CANCELLED, keeping earlier reasons.
func (o *Order) Cancel(failureMessages []string) error {
	if o.status != StatusPending && o.status != StatusCancelling {
		return &errs.InvalidStateTransitionError{Operation: "cancel", From: string(o.status)}
	}
	o.status = StatusCancelled
	o.appendFailureMessages(failureMessages)

	return nil
}

func (o *Order) appendFailureMessages(messages []string) {
	for _, m := range messages {
		if strings.TrimSpace(m) != "" {
			o.failureMessages = append(o.failureMessages, m)
		}
	}
}

func (o *Order) ID() uuid.UUID                  { return o.id }
func (o *Order) TrackingID() uuid.UUID          { return o.trackingID }
func (o *Order) CustomerID() uuid.UUID          { return o.customerID }
func (o *Order) RestaurantID() uuid.UUID        { return o.restaurantID }
func (o *Order) DeliveryAddress() StreetAddress { return o.deliveryAddress }
func (o *Order) Price() money.Money             { return o.price }
func (o *Order) Status() Status                 { return o.status }
func (o *Order) Version() int64                 { return o.version }

// Items returns a copy of the order lines.
func (o *Order) Items() []orderitem.OrderItem {
	return slices.Clone(o.items)
}

// FailureMessages returns a copy of the recorded failure reasons.
func (o *Order) FailureMessages() []string {
	return slices.Clone(o.failureMessages)
}
