package iorderrepo

import (
	"context"

	"github.com/corray333/food-ordering/order/internal/service/models/order"
	"github.com/google/uuid"
)

// IOrderRepository is an interface for order postgres repository.
type IOrderRepository interface {
	// Save inserts a new order or updates an existing one guarded by its version.
	// It returns the saved representation carrying the new version.
	Save(ctx context.Context, o *order.Order) (*order.Order, error)
	// FindByIDForUpdate loads an order and locks its row until the transaction ends.
	// A missing order yields nil without error.
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*order.Order, error)
	// FindByTrackingID loads an order by its public tracking id.
	// A missing order yields nil without error.
	FindByTrackingID(ctx context.Context, trackingID uuid.UUID) (*order.Order, error)
}
