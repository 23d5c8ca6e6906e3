package createorder

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/corray333/food-ordering/order/internal/service/models/money"
	"github.com/corray333/food-ordering/order/internal/service/services/ordersvc"
	"github.com/corray333/food-ordering/order/internal/transport/http/respond"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// IdempotencyHeader carries a client-chosen key that makes order creation retryable.
const IdempotencyHeader = "Idempotency-Key"

// service is an interface for the service layer.
type service interface {
	CreateOrder(ctx context.Context, cmd ordersvc.CreateOrderCommand) (*ordersvc.CreateOrderResponse, error)
}

// cache remembers responses by idempotency key.
type cache interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Get(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, key string) error
	GenerateKey(operation, key string) string
}

var validate = validator.New()

// addressInCreateOrderRequest represents the delivery address in a create order request.
type addressInCreateOrderRequest struct {
	Street     string `json:"street"     validate:"required,max=100"`
	PostalCode string `json:"postalCode" validate:"required,max=10"`
	City       string `json:"city"       validate:"required,max=50"`
}

// itemInCreateOrderRequest represents an item in a create order request.
type itemInCreateOrderRequest struct {
	ProductID string      `json:"productId" validate:"required,uuid"`
	Quantity  int         `json:"quantity"  validate:"gt=0"`
	Price     money.Money `json:"price"`
	SubTotal  money.Money `json:"subTotal"`
}

// createOrderRequest represents a create order request.
type createOrderRequest struct {
	CustomerID   string                      `json:"customerId"   validate:"required,uuid"`
	RestaurantID string                      `json:"restaurantId" validate:"required,uuid"`
	Address      addressInCreateOrderRequest `json:"address"`
	Price        money.Money                 `json:"price"`
	Items        []itemInCreateOrderRequest  `json:"items"        validate:"required,min=1,dive"`
}

// Validate validates the create order request.
func (r *createOrderRequest) Validate() error {
	return validate.Struct(r)
}

// toCommand converts a validated request to ordersvc.CreateOrderCommand.
func (r *createOrderRequest) toCommand() ordersvc.CreateOrderCommand {
	items := make([]ordersvc.OrderItemCommand, len(r.Items))
	for i, item := range r.Items {
		items[i] = ordersvc.OrderItemCommand{
			ProductID: uuid.MustParse(item.ProductID),
			Quantity:  item.Quantity,
			Price:     item.Price,
			SubTotal:  item.SubTotal,
		}
	}

	return ordersvc.CreateOrderCommand{
		CustomerID:   uuid.MustParse(r.CustomerID),
		RestaurantID: uuid.MustParse(r.RestaurantID),
		Address: ordersvc.OrderAddress{
			Street:     r.Address.Street,
			PostalCode: r.Address.PostalCode,
			City:       r.Address.City,
		},
		Price: r.Price,
		Items: items,
	}
}

// createOrderResponse represents a create order response.
type createOrderResponse struct {
	OrderTrackingID string `json:"orderTrackingId"`
	OrderStatus     string `json:"orderStatus"`
	Message         string `json:"message"`
}

// pendingMarker holds an idempotency key while its order is being created.
const pendingMarker = "PENDING"

// CreateOrder handles the create order request. A repeated Idempotency-Key
// replays the stored response instead of creating another order. The key is
// reserved before the order is created, so a concurrent request with the same
// key gets a 409 until the first one finishes.
func CreateOrder(w http.ResponseWriter, r *http.Request, service service, cache cache, ttl time.Duration) {
	ctx := r.Context()

	var cacheKey string
	if key := r.Header.Get(IdempotencyHeader); key != "" && cache != nil {
		cacheKey = cache.GenerateKey("create_order", key)

		if replayStored(w, r, cache, cacheKey) {
			return
		}
	}

	req := createOrderRequest{}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.ErrorContext(ctx, "Error decoding request body for create order", "error", err)
		respond.BadRequest(w, err.Error())

		return
	}

	if err := req.Validate(); err != nil {
		slog.ErrorContext(ctx, "Error validating request body for create order", "error", err)
		respond.BadRequest(w, err.Error())

		return
	}

	if cacheKey != "" {
		reserved, err := cache.SetNX(ctx, cacheKey, pendingMarker, ttl)
		if err != nil {
			slog.WarnContext(ctx, "Failed to reserve idempotency key", "key", cacheKey, "error", err)
		} else if !reserved {
			if !replayStored(w, r, cache, cacheKey) {
				keyInUse(w)
			}

			return
		}
	}

	resp, err := service.CreateOrder(ctx, req.toCommand())
	if err != nil {
		if cacheKey != "" {
			if err := cache.Delete(context.WithoutCancel(ctx), cacheKey); err != nil {
				slog.WarnContext(ctx, "Failed to release idempotency key", "key", cacheKey, "error", err)
			}
		}
		respond.Error(w, r, err)

		return
	}

	body := createOrderResponse{
		OrderTrackingID: resp.OrderTrackingID.String(),
		OrderStatus:     string(resp.OrderStatus),
		Message:         resp.Message,
	}

	if cacheKey != "" {
		if encoded, err := json.Marshal(body); err == nil {
			if err := cache.Set(context.WithoutCancel(ctx), cacheKey, encoded, ttl); err != nil {
				slog.WarnContext(ctx, "Failed to store idempotency key", "key", cacheKey, "error", err)
			}
		}
	}

	respond.JSON(w, http.StatusCreated, body)
}

// replayStored writes the response stored under key, or a 409 while the key is
// still reserved. It reports whether a response was written.
func replayStored(w http.ResponseWriter, r *http.Request, cache cache, key string) bool {
	cached, err := cache.Get(r.Context(), key)
	if err != nil {
		slog.WarnContext(r.Context(), "Failed to read idempotency key", "key", key, "error", err)

		return false
	}

	switch cached {
	case "":
		return false
	case pendingMarker:
		keyInUse(w)
	default:
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Idempotent-Replayed", "true")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(cached))
	}

	return true
}

func keyInUse(w http.ResponseWriter) {
	respond.JSON(w, http.StatusConflict, respond.ErrorBody{
		Code:    "IDEMPOTENCY_KEY_IN_USE",
		Message: "A request with this Idempotency-Key is still being processed",
	})
}
