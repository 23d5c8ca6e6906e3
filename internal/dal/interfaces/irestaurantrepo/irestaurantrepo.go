package irestaurantrepo

import (
	"context"

	"github.com/corray333/food-ordering/order/internal/service/models/restaurant"
)

// IRestaurantRepository is an interface for the restaurant read model.
type IRestaurantRepository interface {
	// FindRestaurantInformation returns the restaurant's active flag and the products
	// named by the probe, or nil without error when the restaurant does not exist.
	FindRestaurantInformation(ctx context.Context, probe restaurant.Probe) (*restaurant.Restaurant, error)
}
