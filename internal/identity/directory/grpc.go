package directory

import (
	"context"
	"log/slog"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// HealthService is the gRPC health service name the directory reports under.
const HealthService = "idsync.directory"

// HealthServer publishes the directory's availability over the standard gRPC
// health protocol so reachability probes do not touch the document API.
type HealthServer struct {
	GRPC   *grpc.Server
	health *health.Server
	remote Directory
	logger *slog.Logger
}

func NewHealthServer(remote Directory, logger *slog.Logger) *HealthServer {
	if logger == nil {
		logger = slog.Default()
	}
	hs := &HealthServer{
		GRPC:   grpc.NewServer(),
		health: health.NewServer(),
		remote: remote,
		logger: logger,
	}
	healthpb.RegisterHealthServer(hs.GRPC, hs.health)
	hs.Refresh(context.Background())
	return hs
}

// Refresh pings the directory and updates the served status.
func (hs *HealthServer) Refresh(ctx context.Context) {
	status := healthpb.HealthCheckResponse_SERVING
	if err := hs.remote.Ping(ctx); err != nil {
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	hs.health.SetServingStatus("", status)
	hs.health.SetServingStatus(HealthService, status)
}

// Serve refreshes the status every interval until ctx is done, serving
// health checks on lis meanwhile.
func (hs *HealthServer) Serve(ctx context.Context, lis net.Listener, interval time.Duration) error {
	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				hs.health.Shutdown()
				hs.GRPC.GracefulStop()
				return
			case <-t.C:
				hs.Refresh(ctx)
			}
		}
	}()

	hs.logger.Info("directory health server listening", "addr", lis.Addr().String())
	return hs.GRPC.Serve(lis)
}
