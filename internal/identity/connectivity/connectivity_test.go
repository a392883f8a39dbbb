package connectivity

import (
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aussiebroadwan/idsync/internal/identity/domain"
	"github.com/aussiebroadwan/idsync/pkg/slogx"
	gnet "github.com/shirou/gopsutil/v4/net"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"
)

func TestQualityOf(t *testing.T) {
	t.Parallel()

	tests := []struct {
		names []string
		want  domain.QualityTier
	}{
		{nil, domain.QualityNone},
		{[]string{"wlan0"}, domain.QualityWiFi},
		{[]string{"wlp2s0"}, domain.QualityWiFi},
		{[]string{"eth0"}, domain.QualityEthernet},
		{[]string{"enp3s0"}, domain.QualityEthernet},
		{[]string{"rmnet_data0"}, domain.QualityCellular},
		{[]string{"wwan0"}, domain.QualityCellular},
		{[]string{"tun0"}, domain.QualityUnknown},
		{[]string{"wwan0", "wlan0"}, domain.QualityWiFi},
		{[]string{"tun0", "wlan0", "eth1"}, domain.QualityEthernet},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, QualityOf(tt.names), "names %v", tt.names)
	}
}

func TestInterfaceDetector(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	fake := func(list gnet.InterfaceStatList, err error) *InterfaceDetector {
		return &InterfaceDetector{list: func(context.Context) (gnet.InterfaceStatList, error) { return list, err }}
	}

	connected, quality, err := fake(gnet.InterfaceStatList{
		{Name: "lo", Flags: []string{"up", "loopback"}},
		{Name: "eth0", Flags: []string{"broadcast"}},
	}, nil).Link(ctx)
	require.NoError(t, err)
	require.False(t, connected, "loopback and down interfaces are not a link")
	require.Equal(t, domain.QualityNone, quality)

	connected, quality, err = fake(gnet.InterfaceStatList{
		{Name: "lo", Flags: []string{"up", "loopback"}},
		{Name: "wlan0", Flags: []string{"up", "broadcast", "multicast"}},
	}, nil).Link(ctx)
	require.NoError(t, err)
	require.True(t, connected)
	require.Equal(t, domain.QualityWiFi, quality)

	_, _, err = fake(nil, errors.New("no /proc")).Link(ctx)
	require.Error(t, err)
}

type switchLink struct{ up atomic.Bool }

func (s *switchLink) Link(context.Context) (bool, domain.QualityTier, error) {
	if !s.up.Load() {
		return false, domain.QualityNone, nil
	}
	return true, domain.QualityEthernet, nil
}

func TestMonitor_ReachabilityImpliesLink(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	link := &switchLink{}
	var probes atomic.Int32
	m := New(link, ProberFunc(func(context.Context) error {
		probes.Add(1)
		return nil
	}), nil, Options{Logger: slogx.Discard()})

	require.False(t, m.IsConnected(ctx))
	require.False(t, m.IsReachable(ctx))
	require.Zero(t, probes.Load(), "no probe without a link")
	require.Equal(t, domain.QualityNone, m.State().Quality)

	link.up.Store(true)
	require.True(t, m.IsConnected(ctx))
	require.True(t, m.IsReachable(ctx))
	require.Equal(t, domain.QualityEthernet, m.State().Quality)
	require.EqualValues(t, 1, probes.Load())
}

func TestMonitor_ProbeFailureAndTimeout(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	m := New(StaticLink{Connected: true, Quality: domain.QualityWiFi}, ProberFunc(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}), nil, Options{ProbeTimeout: 20 * time.Millisecond, Logger: slogx.Discard()})

	st := m.Refresh(ctx)
	require.True(t, st.Connected)
	require.False(t, st.Reachable)
	require.False(t, st.CheckedAt.IsZero())
}

func TestMonitor_Transitions(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	var fail atomic.Bool
	m := New(StaticLink{Connected: true}, ProberFunc(func(context.Context) error {
		if fail.Load() {
			return errors.New("down")
		}
		return nil
	}), nil, Options{Logger: slogx.Discard()})

	ch, unsubscribe := m.Subscribe()
	defer unsubscribe()

	m.Refresh(ctx)
	tr := <-ch
	require.True(t, tr.BecameReachable())

	m.Refresh(ctx)
	select {
	case tr := <-ch:
		t.Fatalf("unexpected transition %+v", tr)
	default:
	}

	fail.Store(true)
	m.Refresh(ctx)
	tr = <-ch
	require.True(t, tr.Previous.Reachable)
	require.False(t, tr.Current.Reachable)
	require.False(t, tr.BecameReachable())
}

func TestMonitor_CoalescesConcurrentProbes(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	release := make(chan struct{})
	var probes atomic.Int32
	m := New(StaticLink{Connected: true}, ProberFunc(func(context.Context) error {
		probes.Add(1)
		<-release
		return nil
	}), nil, Options{Logger: slogx.Discard()})

	var (
		wg        sync.WaitGroup
		reachable atomic.Int32
	)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if m.IsReachable(ctx) {
				reachable.Add(1)
			}
		}()
	}

	require.Eventually(t, func() bool { return probes.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	require.EqualValues(t, 8, reachable.Load())
	require.Less(t, probes.Load(), int32(8))
	require.True(t, m.State().Reachable)
}

func TestGRPCProber(t *testing.T) {
	t.Parallel()

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	p, err := NewGRPCProber("passthrough:///bufnet", "idsync.directory",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	hs.SetServingStatus("idsync.directory", healthpb.HealthCheckResponse_SERVING)
	require.NoError(t, p.Probe(ctx))

	hs.SetServingStatus("idsync.directory", healthpb.HealthCheckResponse_NOT_SERVING)
	require.Error(t, p.Probe(ctx))

	m := New(StaticLink{Connected: true}, p, nil, Options{Logger: slogx.Discard()})
	require.False(t, m.IsReachable(ctx))
}
