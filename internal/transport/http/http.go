package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/corray333/food-ordering/order/internal/service/services/ordersvc"
	createorder "github.com/corray333/food-ordering/order/internal/transport/http/create_order"
	trackorder "github.com/corray333/food-ordering/order/internal/transport/http/track_order"
	"github.com/corray333/food-ordering/order/pkg/http/middleware/trace"
	"github.com/corray333/food-ordering/order/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/spf13/viper"
)

type service interface {
	CreateOrder(ctx context.Context, cmd ordersvc.CreateOrderCommand) (*ordersvc.CreateOrderResponse, error)
	TrackOrder(ctx context.Context, query ordersvc.TrackOrderQuery) (*ordersvc.TrackOrderResponse, error)
}

type cache interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Get(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, key string) error
	GenerateKey(operation, key string) string
}

type HTTPTransport struct {
	server         *http.Server
	router         *chi.Mux
	service        service
	cache          cache
	idempotencyTTL time.Duration
}

// option is a function that configures the HTTPTransport.
type option func(*HTTPTransport)

// NewHTTPTransport creates a new HTTPTransport.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func NewHTTPTransport(service service, opts ...option) *HTTPTransport {
	router := newRouter()
	server := newServer(router)

	ttlSeconds := viper.GetInt("redis.idempotency_ttl_seconds")
	if ttlSeconds == 0 {
		ttlSeconds = 24 * 60 * 60
	}

	h := &HTTPTransport{
		server:         server,
		router:         router,
		service:        service,
		idempotencyTTL: time.Duration(ttlSeconds) * time.Second,
	}
	for _, opt := range opts {
		opt(h)
	}

	return h
}

// WithIdempotencyCache enables Idempotency-Key handling for order creation.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithIdempotencyCache(c cache) option {
	return func(h *HTTPTransport) {
		h.cache = c
	}
}

func (h *HTTPTransport) Run() error {
	slog.Info("Starting HTTP server", "address", h.server.Addr)

	return h.server.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (h *HTTPTransport) Shutdown(ctx context.Context) error {
	return h.server.Shutdown(ctx)
}

// Handler returns the router.
func (h *HTTPTransport) Handler() http.Handler {
	return h.router
}

// RegisterRoutes registers the routes for the HTTPTransport.
func (h *HTTPTransport) RegisterRoutes() {
	h.router.Route("/api", func(r chi.Router) {
		r.Post("/orders", h.createOrder)
		r.Get("/orders/{trackingId}", h.trackOrder)
	})
}

func (h *HTTPTransport) createOrder(w http.ResponseWriter, r *http.Request) {
	createorder.CreateOrder(w, r, h.service, h.cache, h.idempotencyTTL)
}

func (h *HTTPTransport) trackOrder(w http.ResponseWriter, r *http.Request) {
	trackorder.TrackOrder(w, r, h.service)
}

func newRouter() *chi.Mux {
	router := chi.NewMux()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Use(trace.NewTraceMiddleware)
	router.Use(logger.NewLoggerMiddleware(slog.Default()))

	allowedOrigins := viper.GetStringSlice("server.http.cors.allowed_origins")
	allowedMethods := viper.GetStringSlice("server.http.cors.allowed_methods")
	allowedHeaders := viper.GetStringSlice("server.http.cors.allowed_headers")
	exposedHeaders := viper.GetStringSlice("server.http.cors.exposed_headers")
	allowCredentials := viper.GetBool("server.http.cors.allow_credentials")
	maxAge := viper.GetInt("server.http.cors.max_age")

	c := cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   allowedMethods,
		AllowedHeaders:   allowedHeaders,
		ExposedHeaders:   exposedHeaders,
		AllowCredentials: allowCredentials,
		MaxAge:           maxAge,
	})

	router.Use(c.Handler)

	return router
}

func newServer(router http.Handler) *http.Server {
	return &http.Server{
		Addr:              "0.0.0.0:" + viper.GetString("server.http.port"),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
}
