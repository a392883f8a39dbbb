package connectivity

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Prober performs one verified round trip to the directory.
type Prober interface {
	Probe(ctx context.Context) error
}

type ProberFunc func(ctx context.Context) error

func (f ProberFunc) Probe(ctx context.Context) error { return f(ctx) }

// Pinger is satisfied by directory.Client and directory.Memory.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HTTPProber probes the directory's health route.
type HTTPProber struct {
	Pinger Pinger
}

func (p HTTPProber) Probe(ctx context.Context) error { return p.Pinger.Ping(ctx) }

// GRPCProber asks a grpc_health_v1 server whether Service is serving.
type GRPCProber struct {
	Service string

	conn   *grpc.ClientConn
	client healthpb.HealthClient
}

// NewGRPCProber does not dial; the connection is established lazily on the
// first probe.
func NewGRPCProber(target, service string, opts ...grpc.DialOption) (*GRPCProber, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create health client: %w", err)
	}
	return &GRPCProber{
		Service: service,
		conn:    conn,
		client:  healthpb.NewHealthClient(conn),
	}, nil
}

func (p *GRPCProber) Probe(ctx context.Context) error {
	resp, err := p.client.Check(ctx, &healthpb.HealthCheckRequest{Service: p.Service})
	if err != nil {
		return err
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		return fmt.Errorf("connectivity: %q is %s", p.Service, resp.GetStatus())
	}
	return nil
}

func (p *GRPCProber) Close() error { return p.conn.Close() }
