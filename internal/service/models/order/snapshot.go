package order

import (
	"slices"

	"github.com/corray333/food-ordering/order/internal/service/models/money"
	"github.com/corray333/food-ordering/order/internal/service/models/orderitem"
	"github.com/google/uuid"
)

// Snapshot is a detached copy of an order's state. Events carry snapshots and
// repositories persist and restore them.
type Snapshot struct {
	ID              uuid.UUID             `json:"id"`
	TrackingID      uuid.UUID             `json:"trackingId"`
	CustomerID      uuid.UUID             `json:"customerId"`
	RestaurantID    uuid.UUID             `json:"restaurantId"`
	DeliveryAddress StreetAddress         `json:"deliveryAddress"`
	Items           []orderitem.OrderItem `json:"items"`
	Price           money.Money           `json:"price"`
	Status          Status                `json:"status"`
	FailureMessages []string              `json:"failureMessages"`
	Version         int64                 `json:"version"`
}

// Snapshot copies the current state of the order.
func (o *Order) Snapshot() Snapshot {
	return Snapshot{
		ID:              o.id,
		TrackingID:      o.trackingID,
		CustomerID:      o.customerID,
		RestaurantID:    o.restaurantID,
		DeliveryAddress: o.deliveryAddress,
		Items:           slices.Clone(o.items),
		Price:           o.price,
		Status:          o.status,
		FailureMessages: slices.Clone(o.failureMessages),
		Version:         o.version,
	}
}

// Restore rebuilds an order from persisted state.
func Restore(s Snapshot) *Order {
	return &Order{
		id:              s.ID,
		trackingID:      s.TrackingID,
		customerID:      s.CustomerID,
		restaurantID:    s.RestaurantID,
		deliveryAddress: s.DeliveryAddress,
		items:           slices.Clone(s.Items),
		price:           s.Price,
		status:          s.Status,
		failureMessages: slices.Clone(s.FailureMessages),
		version:         s.Version,
	}
}
