package orderitem

import (
	"github.com/corray333/food-ordering/order/internal/service/errs"
	"github.com/corray333/food-ordering/order/internal/service/models/money"
	"github.com/google/uuid"
)

// OrderItem represents one line of an order.
// ID is assigned when the owning order is initialized and is unique only within that order.
type OrderItem struct {
	ID        int64       `json:"id"`
	ProductID uuid.UUID   `json:"productId"`
	Quantity  int         `json:"quantity"`
	Price     money.Money `json:"price"`
	SubTotal  money.Money `json:"subTotal"`
}

// New creates an order item, rejecting non-positive quantities and prices.
func New(productID uuid.UUID, quantity int, price, subTotal money.Money) (OrderItem, error) {
	if productID == uuid.Nil {
		return OrderItem{}, errs.NewValidationError("Order item product id must be set!")
	}
	if quantity <= 0 {
		return OrderItem{}, errs.NewValidationError(
			"Order item quantity: %d is not valid for product: %s", quantity, productID)
	}
	if !price.IsGreaterThanZero() {
		return OrderItem{}, errs.NewValidationError(
			"Order item price: %s is not valid for product: %s", price, productID)
	}
	if subTotal.IsNegative() {
		return OrderItem{}, errs.NewValidationError(
			"Order item subtotal: %s is not valid for product: %s", subTotal, productID)
	}

	return OrderItem{
		ProductID: productID,
		Quantity:  quantity,
		Price:     price,
		SubTotal:  subTotal,
	}, nil
}

// IsSubTotalConsistent reports whether SubTotal == Price × Quantity.
func (i OrderItem) IsSubTotalConsistent() bool {
	return i.Price.Multiply(i.Quantity).Equal(i.SubTotal)
}
