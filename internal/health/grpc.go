package health

import (
	"context"
	"net"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the gRPC health service name reported alongside "".
const ServiceName = "classbook"

// GRPCServer serves the standard grpc.health.v1 protocol.
type GRPCServer struct {
	server *grpc.Server
	health *grpchealth.Server
	checks []Check
	logger zerolog.Logger
}

// NewGRPCServer creates a health server. Status starts as NOT_SERVING.
func NewGRPCServer(logger *zerolog.Logger, checks ...Check) *GRPCServer {
	l := zerolog.Nop()
	if logger != nil {
		l = logger.With().Str("component", "grpc_health").Logger()
	}

	s := grpc.NewServer()
	h := grpchealth.NewServer()
	grpc_health_v1.RegisterHealthServer(s, h)

	g := &GRPCServer{server: s, health: h, checks: checks, logger: l}
	g.SetServing(false)
	return g
}

// SetServing updates the overall and service status.
func (g *GRPCServer) SetServing(serving bool) {
	status := grpc_health_v1.HealthCheckResponse_NOT_SERVING
	if serving {
		status = grpc_health_v1.HealthCheckResponse_SERVING
	}
	g.health.SetServingStatus("", status)
	g.health.SetServingStatus(ServiceName, status)
}

// Probe runs the readiness checks once and publishes the outcome.
func (g *GRPCServer) Probe(ctx context.Context) bool {
	name, err := Ready(ctx, g.checks)
	if err != nil {
		g.logger.Warn().Err(err).Str("check", name).Msg("Dependency not ready")
	}
	g.SetServing(err == nil)
	return err == nil
}

// Watch probes immediately and then every interval until ctx is cancelled.
func (g *GRPCServer) Watch(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	g.Probe(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			g.Probe(ctx)
		}
	}
}

// Serve blocks serving on lis.
func (g *GRPCServer) Serve(lis net.Listener) error {
	g.logger.Info().Str("addr", lis.Addr().String()).Msg("gRPC health server listening")
	return g.server.Serve(lis)
}

// Stop marks everything NOT_SERVING and drains open streams.
func (g *GRPCServer) Stop() {
	g.health.Shutdown()
	g.server.GracefulStop()
}
