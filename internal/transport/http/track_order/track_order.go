package trackorder

import (
	"context"
	"net/http"

	"github.com/corray333/food-ordering/order/internal/service/services/ordersvc"
	"github.com/corray333/food-ordering/order/internal/transport/http/respond"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// service is an interface for the service layer.
type service interface {
	TrackOrder(ctx context.Context, query ordersvc.TrackOrderQuery) (*ordersvc.TrackOrderResponse, error)
}

// trackOrderResponse represents a track order response.
type trackOrderResponse struct {
	OrderTrackingID string   `json:"orderTrackingId"`
	OrderStatus     string   `json:"orderStatus"`
	FailureMessages []string `json:"failureMessages"`
}

// TrackOrder handles GET /orders/{trackingId}.
func TrackOrder(w http.ResponseWriter, r *http.Request, service service) {
	trackingID, err := uuid.Parse(chi.URLParam(r, "trackingId"))
	if err != nil {
		respond.BadRequest(w, "invalid tracking id: "+err.Error())

		return
	}

	resp, err := service.TrackOrder(r.Context(), ordersvc.TrackOrderQuery{OrderTrackingID: trackingID})
	if err != nil {
		respond.Error(w, r, err)

		return
	}

	failureMessages := resp.FailureMessages
	if failureMessages == nil {
		failureMessages = []string{}
	}

	respond.JSON(w, http.StatusOK, trackOrderResponse{
		OrderTrackingID: resp.OrderTrackingID.String(),
		OrderStatus:     string(resp.OrderStatus),
		FailureMessages: failureMessages,
	})
}
