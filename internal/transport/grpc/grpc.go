package grpctransport

import (
	"context"
	"log/slog"
	"net"
	"time"

	"github.com/spf13/viper"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
)

// ServiceName is the name the order service reports its health under.
const ServiceName = "order.OrderService"

// Dependency is a backing service the order service needs to serve traffic.
type Dependency struct {
	Name string
	Ping func(ctx context.Context) error
}

// GRPCTransport serves the standard gRPC health service. The status follows
// the reachability of the registered dependencies.
type GRPCTransport struct {
	server        *grpc.Server
	listener      net.Listener
	health        *health.Server
	dependencies  []Dependency
	checkInterval time.Duration
	stop          chan struct{}
}

// NewGRPCTransport creates a new GRPCTransport.
func NewGRPCTransport(dependencies ...Dependency) *GRPCTransport {
	listener, err := net.Listen("tcp", ":"+viper.GetString("server.grpc.port"))
	if err != nil {
		panic(err)
	}

	g := newTransport(dependencies...)
	g.listener = listener

	return g
}

func newTransport(dependencies ...Dependency) *GRPCTransport {
	interval := viper.GetInt("server.grpc.health_check_interval_seconds")
	if interval == 0 {
		interval = 5
	}

	healthServer := health.NewServer()
	healthServer.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)

	return &GRPCTransport{
		server:        newGRPCServer(),
		health:        healthServer,
		dependencies:  dependencies,
		checkInterval: time.Duration(interval) * time.Second,
		stop:          make(chan struct{}),
	}
}

// Run starts the gRPC server.
func (g *GRPCTransport) Run() error {
	g.RegisterServices()
	go g.watchDependencies()

	slog.Info("Starting gRPC server", "address", g.listener.Addr().String())

	return g.server.Serve(g.listener)
}

// Shutdown gracefully shuts down the gRPC server.
func (g *GRPCTransport) Shutdown(ctx context.Context) error {
	close(g.stop)
	g.health.Shutdown()

	done := make(chan struct{})
	go func() {
		g.server.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		g.server.Stop()

		return ctx.Err()
	}
}

// RegisterServices registers the gRPC services.
func (g *GRPCTransport) RegisterServices() {
	healthpb.RegisterHealthServer(g.server, g.health)
}

func (g *GRPCTransport) watchDependencies() {
	ticker := time.NewTicker(g.checkInterval)
	defer ticker.Stop()

	g.checkDependencies(context.Background())

	for {
		select {
		case <-g.stop:
			return
		case <-ticker.C:
			g.checkDependencies(context.Background())
		}
	}
}

// checkDependencies pings every dependency and publishes the resulting status.
func (g *GRPCTransport) checkDependencies(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	ctx, cancel := context.WithTimeout(ctx, g.checkInterval)
	defer cancel()

	status := healthpb.HealthCheckResponse_SERVING
	for _, dep := range g.dependencies {
		if err := dep.Ping(ctx); err != nil {
			slog.Warn("Dependency is unavailable", "dependency", dep.Name, "error", err)
			status = healthpb.HealthCheckResponse_NOT_SERVING
		}
	}

	g.health.SetServingStatus(ServiceName, status)
	g.health.SetServingStatus("", status)

	return status
}

// newGRPCServer creates a new gRPC server with default settings.
func newGRPCServer() *grpc.Server {
	keepaliveParams := keepalive.ServerParameters{
		MaxConnectionIdle: time.Duration(
			viper.GetInt("server.grpc.keepalive.max_connection_idle"),
		) * time.Minute,
		MaxConnectionAge: time.Duration(
			viper.GetInt("server.grpc.keepalive.max_connection_age"),
		) * time.Minute,
		MaxConnectionAgeGrace: time.Duration(
			viper.GetInt("server.grpc.keepalive.max_connection_age_grace"),
		) * time.Second,
		Time: time.Duration(
			viper.GetInt("server.grpc.keepalive.time"),
		) * time.Second,
		Timeout: time.Duration(
			viper.GetInt("server.grpc.keepalive.timeout"),
		) * time.Second,
	}

	keepalivePolicy := keepalive.EnforcementPolicy{
		MinTime: time.Duration(
			viper.GetInt("server.grpc.keepalive.min_time"),
		) * time.Second,
		PermitWithoutStream: viper.GetBool("server.grpc.keepalive.permit_without_stream"),
	}

	opts := []grpc.ServerOption{
		grpc.KeepaliveParams(keepaliveParams),
		grpc.KeepaliveEnforcementPolicy(keepalivePolicy),
	}

	return grpc.NewServer(opts...)
}
