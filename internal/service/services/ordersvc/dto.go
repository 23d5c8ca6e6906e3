package ordersvc

import (
	"github.com/corray333/food-ordering/order/internal/service/models/money"
	"github.com/corray333/food-ordering/order/internal/service/models/order"
	"github.com/google/uuid"
)

// CreateOrderMessage is returned with every successfully created order.
const CreateOrderMessage = "Order Created successfully"

// OrderAddress is the delivery address of a new order.
type OrderAddress struct {
	Street     string
	PostalCode string
	City       string
}

// OrderItemCommand is one line of a new order.
type OrderItemCommand struct {
	ProductID uuid.UUID
	Quantity  int
	Price     money.Money
	SubTotal  money.Money
}

// CreateOrderCommand is a customer's request to place an order.
type CreateOrderCommand struct {
	CustomerID   uuid.UUID
	RestaurantID uuid.UUID
	Address      OrderAddress
	Price        money.Money
	Items        []OrderItemCommand
}

// CreateOrderResponse describes a created order.
type CreateOrderResponse struct {
	OrderTrackingID uuid.UUID
	OrderStatus     order.Status
	Message         string
}

// TrackOrderQuery asks for the state of an order by its tracking id.
type TrackOrderQuery struct {
	OrderTrackingID uuid.UUID
}

// TrackOrderResponse is the customer-facing state of an order.
type TrackOrderResponse struct {
	OrderTrackingID uuid.UUID
	OrderStatus     order.Status
	FailureMessages []string
}
