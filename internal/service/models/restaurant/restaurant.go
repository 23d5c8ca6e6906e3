package restaurant

import (
	"github.com/corray333/food-ordering/order/internal/service/models/money"
	"github.com/google/uuid"
)

// Product is a restaurant product with its current price.
type Product struct {
	ID    uuid.UUID
	Name  string
	Price money.Money
}

// Restaurant is a read-only snapshot used to validate a new order.
// It is fetched per request and never cached.
type Restaurant struct {
	ID       uuid.UUID
	Active   bool
	Products []Product
}

// FindProduct looks up a product of the snapshot by id.
func (r Restaurant) FindProduct(id uuid.UUID) (Product, bool) {
	for _, p := range r.Products {
		if p.ID == id {
			return p, true
		}
	}

	return Product{}, false
}

// Probe carries the ids needed to load a restaurant snapshot.
type Probe struct {
	RestaurantID uuid.UUID
	ProductIDs   []uuid.UUID
}
