package worker

import (
	"context"
	"log/slog"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// GRPCHealthServer exposes the standard gRPC health service for
// deployments that probe over gRPC instead of HTTP. It mirrors the
// HTTP readiness state: SERVING after SetReady(true), NOT_SERVING
// otherwise.
type GRPCHealthServer struct {
	addr   string
	logger *slog.Logger
	server *grpc.Server
	health *health.Server
}

// NewGRPCHealthServer builds the server; call Start to serve.
func NewGRPCHealthServer(addr string, logger *slog.Logger) *GRPCHealthServer {
	return &GRPCHealthServer{
		addr:   addr,
		logger: logger,
		health: health.NewServer(),
	}
}

// Start serves health checks until ctx is cancelled. The empty service
// name covers whole-process probes; per-service registration is not
// needed for a single-purpose worker.
func (g *GRPCHealthServer) Start(ctx context.Context) error {
	lis, err := net.Listen("tcp", g.addr)
	if err != nil {
		return err
	}

	g.server = grpc.NewServer()
	healthpb.RegisterHealthServer(g.server, g.health)
	g.health.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)

	errChan := make(chan error, 1)
	go func() {
		g.logger.Info("grpc health server starting", slog.String("addr", g.addr))
		errChan <- g.server.Serve(lis)
	}()

	select {
	case <-ctx.Done():
		g.server.GracefulStop()
		g.logger.Info("grpc health server stopped")
		return nil
	case err := <-errChan:
		if err != nil {
			g.logger.Error("grpc health server failed", slog.Any("error", err))
		}
		return err
	}
}

// SetReady flips the reported serving status.
func (g *GRPCHealthServer) SetReady(ready bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if ready {
		status = healthpb.HealthCheckResponse_SERVING
	}
	g.health.SetServingStatus("", status)
}
