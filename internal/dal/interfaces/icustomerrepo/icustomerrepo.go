package icustomerrepo

import (
	"context"

	"github.com/corray333/food-ordering/order/internal/service/models/customer"
	"github.com/google/uuid"
)

// ICustomerRepository is an interface for the customer read model.
type ICustomerRepository interface {
	// FindCustomer returns nil without error when the customer does not exist.
	FindCustomer(ctx context.Context, id uuid.UUID) (*customer.Customer, error)
}
