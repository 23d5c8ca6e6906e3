package customer

import "github.com/google/uuid"

// Customer is referenced by orders for an existence check only.
type Customer struct {
	ID uuid.UUID
}
