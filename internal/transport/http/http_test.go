package httptransport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/corray333/food-ordering/order/internal/service/errs"
	"github.com/corray333/food-ordering/order/internal/service/models/money"
	"github.com/corray333/food-ordering/order/internal/service/models/order"
	"github.com/corray333/food-ordering/order/internal/service/services/ordersvc"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubService struct {
	mu          sync.Mutex
	createCalls []ordersvc.CreateOrderCommand
	createErr   error
	entered     chan struct{}
	release     chan struct{}
	track       *ordersvc.TrackOrderResponse
	trackErr    error
}

func (s *stubService) CreateOrder(_ context.Context, cmd ordersvc.CreateOrderCommand) (*ordersvc.CreateOrderResponse, error) {
	s.mu.Lock()
	s.createCalls = append(s.createCalls, cmd)
	s.mu.Unlock()

	if s.entered != nil {
		s.entered <- struct{}{}
		<-s.release
	}
	if s.createErr != nil {
		return nil, s.createErr
	}

	return &ordersvc.CreateOrderResponse{
		OrderTrackingID: uuid.MustParse("9f1c2b3a-4d5e-4f60-8a7b-1c2d3e4f5a6b"),
		OrderStatus:     order.StatusPending,
		Message:         ordersvc.CreateOrderMessage,
	}, nil
}

func (s *stubService) TrackOrder(context.Context, ordersvc.TrackOrderQuery) (*ordersvc.TrackOrderResponse, error) {
	return s.track, s.trackErr
}

type memoryCache struct {
	mu     sync.Mutex
	values map[string]string
}

func (m *memoryCache) Set(_ context.Context, key string, value any, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.values[key] = cacheString(value)

	return nil
}

func (m *memoryCache) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.values[key]; ok {
		return false, nil
	}
	m.values[key] = cacheString(value)

	return true, nil
}

func (m *memoryCache) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.values[key], nil
}

func (m *memoryCache) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.values, key)

	return nil
}

func (m *memoryCache) GenerateKey(operation, key string) string {
	return "order-svc:" + operation + ":" + key
}

func cacheString(value any) string {
	switch v := value.(type) {
	case []byte:
		return string(v)
	case string:
		return v
	default:
		return ""
	}
}

const createBody = `{
	"customerId": "d215b5f8-0249-4dc5-89a3-51fd148cfb41",
	"restaurantId": "d215b5f8-0249-4dc5-89a3-51fd148cfb45",
	"address": {"street": "street_1", "postalCode": "1000AB", "city": "Paris"},
	"price": 200.00,
	"items": [
		{"productId": "d215b5f8-0249-4dc5-89a3-51fd148cfb48", "quantity": 1, "price": "50.00", "subTotal": "50.00"},
		{"productId": "d215b5f8-0249-4dc5-89a3-51fd148cfb48", "quantity": 3, "price": "50.00", "subTotal": "150.00"}
	]
}`

func newTestTransport(svc *stubService, opts ...option) http.Handler {
	h := NewHTTPTransport(svc, opts...)
	h.RegisterRoutes()

	return h.Handler()
}

func post(t *testing.T, handler http.Handler, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/api/orders", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))

	return body
}

func TestCreateOrder(t *testing.T) {
	svc := &stubService{}
	rec := post(t, newTestTransport(svc), createBody, nil)

	require.Equal(t, http.StatusCreated, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "9f1c2b3a-4d5e-4f60-8a7b-1c2d3e4f5a6b", body["orderTrackingId"])
	assert.Equal(t, "PENDING", body["orderStatus"])
	assert.Equal(t, "Order Created successfully", body["message"])

	require.Len(t, svc.createCalls, 1)
	cmd := svc.createCalls[0]
	assert.Equal(t, uuid.MustParse("d215b5f8-0249-4dc5-89a3-51fd148cfb41"), cmd.CustomerID)
	assert.Equal(t, "Paris", cmd.Address.City)
	assert.True(t, cmd.Price.Equal(money.MustNewFromString("200")))
	require.Len(t, cmd.Items, 2)
	assert.Equal(t, 3, cmd.Items[1].Quantity)
	assert.True(t, cmd.Items[1].SubTotal.Equal(money.MustNewFromString("150")))
}

func TestCreateOrder_BadRequest(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "malformed json", body: `{"customerId":`},
		{name: "invalid customer id", body: strings.Replace(createBody, "d215b5f8-0249-4dc5-89a3-51fd148cfb41", "nope", 1)},
		{name: "no items", body: `{"customerId":"d215b5f8-0249-4dc5-89a3-51fd148cfb41","restaurantId":"d215b5f8-0249-4dc5-89a3-51fd148cfb45","address":{"street":"s","postalCode":"p","city":"c"},"price":1,"items":[]}`},
		{name: "missing address", body: `{"customerId":"d215b5f8-0249-4dc5-89a3-51fd148cfb41","restaurantId":"d215b5f8-0249-4dc5-89a3-51fd148cfb45","price":1,"items":[{"productId":"d215b5f8-0249-4dc5-89a3-51fd148cfb48","quantity":1,"price":1,"subTotal":1}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubService{}
			rec := post(t, newTestTransport(svc), tt.body, nil)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, "BAD_REQUEST", decode(t, rec)["code"])
			assert.Empty(t, svc.createCalls)
		})
	}
}

func TestCreateOrder_ErrorMapping(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		code    string
		message string
	}{
		{
			name:    "validation",
			err:     errs.NewValidationError("Total price: %s is not equal to Order items total price: %s!", "250.00", "200"),
			status:  http.StatusBadRequest,
			code:    "VALIDATION_ERROR",
			message: "Total price: 250.00 is not equal to Order items total price: 200!",
		},
		{
			name:    "not found",
			err:     &errs.NotFoundError{Entity: "customer", ID: "d215b5f8-0249-4dc5-89a3-51fd148cfb41"},
			status:  http.StatusNotFound,
			code:    "NOT_FOUND",
			message: "Could not find customer with customer id : d215b5f8-0249-4dc5-89a3-51fd148cfb41",
		},
		{
			name:    "persistence",
			err:     &errs.PersistenceError{Op: "save order", Err: errors.New("connection reset")},
			status:  http.StatusInternalServerError,
			code:    "INTERNAL_ERROR",
			message: "Unexpected error",
		},
		{
			name:    "producer submission",
			err:     &errs.ProducerSubmissionError{Topic: "order.created", Key: "k", Err: errors.New("closed")},
			status:  http.StatusInternalServerError,
			code:    "INTERNAL_ERROR",
			message: "Unexpected error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := post(t, newTestTransport(&stubService{createErr: tt.err}), createBody, nil)

			assert.Equal(t, tt.status, rec.Code)
			body := decode(t, rec)
			assert.Equal(t, tt.code, body["code"])
			assert.Equal(t, tt.message, body["message"])
		})
	}
}

func TestCreateOrder_IdempotencyKeyReplaysResponse(t *testing.T) {
	svc := &stubService{}
	cache := &memoryCache{values: map[string]string{}}
	handler := newTestTransport(svc, WithIdempotencyCache(cache))
	headers := map[string]string{"Idempotency-Key": "abc"}

	first := post(t, handler, createBody, headers)
	second := post(t, handler, createBody, headers)

	require.Equal(t, http.StatusCreated, first.Code)
	require.Equal(t, http.StatusCreated, second.Code)
	assert.Len(t, svc.createCalls, 1)
	assert.Equal(t, "true", second.Header().Get("Idempotent-Replayed"))
	assert.JSONEq(t, first.Body.String(), second.Body.String())
	assert.Contains(t, cache.values, "order-svc:create_order:abc")
}

func TestCreateOrder_FailedRequestIsNotCached(t *testing.T) {
	svc := &stubService{createErr: &errs.NotFoundError{Entity: "restaurant", ID: "x"}}
	cache := &memoryCache{values: map[string]string{}}
	handler := newTestTransport(svc, WithIdempotencyCache(cache))

	post(t, handler, createBody, map[string]string{"Idempotency-Key": "abc"})
	post(t, handler, createBody, map[string]string{"Idempotency-Key": "abc"})

	assert.Len(t, svc.createCalls, 2)
	assert.Empty(t, cache.values)
}

func TestCreateOrder_ConcurrentSameKeyCreatesOneOrder(t *testing.T) {
	svc := &stubService{entered: make(chan struct{}), release: make(chan struct{})}
	cache := &memoryCache{values: map[string]string{}}
	handler := newTestTransport(svc, WithIdempotencyCache(cache))
	headers := map[string]string{"Idempotency-Key": "abc"}

	firstDone := make(chan *httptest.ResponseRecorder, 1)
	go func() {
		firstDone <- post(t, handler, createBody, headers)
	}()

	select {
	case <-svc.entered:
	case <-time.After(3 * time.Second):
		t.Fatal("first request never reached the service")
	}

	second := post(t, handler, createBody, headers)
	require.Equal(t, http.StatusConflict, second.Code)

	var body struct {
		Code string `json:"code"`
	}
	require.NoError(t, json.Unmarshal(second.Body.Bytes(), &body))
	assert.Equal(t, "IDEMPOTENCY_KEY_IN_USE", body.Code)

	close(svc.release)

	var first *httptest.ResponseRecorder
	select {
	case first = <-firstDone:
	case <-time.After(3 * time.Second):
		t.Fatal("first request did not finish")
	}
	require.Equal(t, http.StatusCreated, first.Code)

	third := post(t, handler, createBody, headers)
	require.Equal(t, http.StatusCreated, third.Code)
	assert.Equal(t, "true", third.Header().Get("Idempotent-Replayed"))
	assert.JSONEq(t, first.Body.String(), third.Body.String())

	svc.mu.Lock()
	defer svc.mu.Unlock()
	assert.Len(t, svc.createCalls, 1)
}

func TestCreateOrder_ReservedKeyIsNotProcessedAgain(t *testing.T) {
	svc := &stubService{}
	cache := &memoryCache{values: map[string]string{"order-svc:create_order:abc": "PENDING"}}
	handler := newTestTransport(svc, WithIdempotencyCache(cache))

	rec := post(t, handler, createBody, map[string]string{"Idempotency-Key": "abc"})

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Empty(t, svc.createCalls)
	assert.Equal(t, "PENDING", cache.values["order-svc:create_order:abc"])
}

func TestCreateOrder_InvalidBodyDoesNotReserveKey(t *testing.T) {
	svc := &stubService{}
	cache := &memoryCache{values: map[string]string{}}
	handler := newTestTransport(svc, WithIdempotencyCache(cache))

	rec := post(t, handler, `{"customerId": "not-a-uuid"}`, map[string]string{"Idempotency-Key": "abc"})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, cache.values)
}

func TestTrackOrder(t *testing.T) {
	trackingID := uuid.MustParse("9f1c2b3a-4d5e-4f60-8a7b-1c2d3e4f5a6b")

	tests := []struct {
		name   string
		path   string
		svc    *stubService
		status int
	}{
		{
			name: "found",
			path: "/api/orders/" + trackingID.String(),
			svc: &stubService{track: &ordersvc.TrackOrderResponse{
				OrderTrackingID: trackingID,
				OrderStatus:     order.StatusCancelled,
				FailureMessages: []string{"closed"},
			}},
			status: http.StatusOK,
		},
		{
			name:   "malformed id",
			path:   "/api/orders/not-a-uuid",
			svc:    &stubService{},
			status: http.StatusBadRequest,
		},
		{
			name:   "unknown order",
			path:   "/api/orders/" + trackingID.String(),
			svc:    &stubService{trackErr: &errs.NotFoundError{Entity: "order", ID: trackingID.String()}},
			status: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			newTestTransport(tt.svc).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))

			assert.Equal(t, tt.status, rec.Code)
			if tt.status == http.StatusOK {
				body := decode(t, rec)
				assert.Equal(t, trackingID.String(), body["orderTrackingId"])
				assert.Equal(t, "CANCELLED", body["orderStatus"])
				assert.Equal(t, []any{"closed"}, body["failureMessages"])
			}
		})
	}
}
