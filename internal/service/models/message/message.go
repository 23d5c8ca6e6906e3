package message

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/corray333/food-ordering/order/internal/service/models/event"
	"github.com/corray333/food-ordering/order/internal/service/models/money"
	"github.com/google/uuid"
)

// ContentType of every message the service sends and accepts.
const ContentType = "application/json"

// OrderItemMessage is an order line on the wire.
type OrderItemMessage struct {
	ProductID uuid.UUID   `json:"productId"`
	Quantity  int         `json:"quantity"`
	Price     money.Money `json:"price"`
	SubTotal  money.Money `json:"subTotal"`
}

// OrderEventMessage is the payload sent to downstream services for every order event.
type OrderEventMessage struct {
	EventID         uuid.UUID          `json:"eventId"`
	EventType       event.Type         `json:"eventType"`
	OrderID         uuid.UUID          `json:"orderId"`
	TrackingID      uuid.UUID          `json:"trackingId"`
	CustomerID      uuid.UUID          `json:"customerId"`
	RestaurantID    uuid.UUID          `json:"restaurantId"`
	Price           money.Money        `json:"price"`
	Items           []OrderItemMessage `json:"items"`
	OrderStatus     string             `json:"orderStatus"`
	FailureMessages []string           `json:"failureMessages,omitempty"`
	CreatedAt       time.Time          `json:"createdAt"`
}

// FromEvent maps a domain event to its wire representation.
func FromEvent(e event.OrderEvent) OrderEventMessage {
	snap := e.Order()
	items := make([]OrderItemMessage, len(snap.Items))
	for i, item := range snap.Items {
		items[i] = OrderItemMessage{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Price:     item.Price,
			SubTotal:  item.SubTotal,
		}
	}

	return OrderEventMessage{
		EventID:         e.ID(),
		EventType:       e.Type(),
		OrderID:         snap.ID,
		TrackingID:      snap.TrackingID,
		CustomerID:      snap.CustomerID,
		RestaurantID:    snap.RestaurantID,
		Price:           snap.Price,
		Items:           items,
		OrderStatus:     string(snap.Status),
		FailureMessages: snap.FailureMessages,
		CreatedAt:       e.CreatedAt(),
	}
}

// EncodeEvent serializes a domain event for the broker.
func EncodeEvent(e event.OrderEvent) ([]byte, error) {
	payload, err := json.Marshal(FromEvent(e))
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s event for order %s: %w", e.Type(), e.OrderID(), err)
	}

	return payload, nil
}

// PaymentStatus is reported by the payment service.
type PaymentStatus string

const (
	PaymentCompleted PaymentStatus = "COMPLETED"
	PaymentCancelled PaymentStatus = "CANCELLED"
	PaymentFailed    PaymentStatus = "FAILED"
)

// PaymentResponse is received from the payment service.
type PaymentResponse struct {
	ID              string        `json:"id"`
	SagaID          string        `json:"sagaId"`
	OrderID         uuid.UUID     `json:"orderId"`
	PaymentID       string        `json:"paymentId"`
	CustomerID      uuid.UUID     `json:"customerId"`
	Price           money.Money   `json:"price"`
	PaymentStatus   PaymentStatus `json:"paymentStatus"`
	FailureMessages []string      `json:"failureMessages"`
	CreatedAt       time.Time     `json:"createdAt"`
}

// ApprovalStatus is reported by the restaurant service.
type ApprovalStatus string

const (
	ApprovalApproved ApprovalStatus = "APPROVED"
	ApprovalRejected ApprovalStatus = "REJECTED"
)

// RestaurantApprovalResponse is received from the restaurant service.
type RestaurantApprovalResponse struct {
	ID                  string         `json:"id"`
	SagaID              string         `json:"sagaId"`
	OrderID             uuid.UUID      `json:"orderId"`
	RestaurantID        uuid.UUID      `json:"restaurantId"`
	OrderApprovalStatus ApprovalStatus `json:"orderApprovalStatus"`
	FailureMessages     []string       `json:"failureMessages"`
	CreatedAt           time.Time      `json:"createdAt"`
}
