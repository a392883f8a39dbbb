package connectivity

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/aussiebroadwan/idsync/internal/identity/domain"
	"github.com/aussiebroadwan/idsync/internal/identity/schedule"
	"golang.org/x/sync/singleflight"
)

// Transition is delivered to subscribers whenever Connected or Reachable
// changes.
type Transition struct {
	Previous domain.ConnectivityState
	Current  domain.ConnectivityState
}

// BecameReachable reports an unreachable to reachable edge.
func (t Transition) BecameReachable() bool {
	return !t.Previous.Reachable && t.Current.Reachable
}

type Options struct {
	ProbeTimeout time.Duration
	Interval     time.Duration
	Logger       *slog.Logger
	Now          func() time.Time
}

// Monitor tracks link state and directory reachability. Reachable is only
// ever true while the link is up.
type Monitor struct {
	link    LinkDetector
	prober  Prober
	timeout time.Duration
	logger  *slog.Logger
	now     func() time.Time

	group singleflight.Group
	loop  *schedule.Loop

	mu    sync.RWMutex
	state domain.ConnectivityState

	subsMu sync.Mutex
	subs   map[chan Transition]struct{}
}

func New(link LinkDetector, prober Prober, sched *schedule.Scheduler, opts Options) *Monitor {
	if opts.ProbeTimeout <= 0 {
		opts.ProbeTimeout = 5 * time.Second
	}
	if opts.Interval <= 0 {
		opts.Interval = 15 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	m := &Monitor{
		link:    link,
		prober:  prober,
		timeout: opts.ProbeTimeout,
		logger:  opts.Logger,
		now:     opts.Now,
		state:   domain.ConnectivityState{Quality: domain.QualityUnknown},
		subs:    make(map[chan Transition]struct{}),
	}
	if sched != nil {
		m.loop = sched.Every("connectivity", opts.Interval, func(ctx context.Context) { m.Refresh(ctx) })
	}
	return m
}

// State returns the last observed state without probing.
func (m *Monitor) State() domain.ConnectivityState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// IsConnected checks the link only.
func (m *Monitor) IsConnected(ctx context.Context) bool {
	connected, _, err := m.link.Link(ctx)
	if err != nil {
		m.logger.Warn("link detection failed", "error", err)
		return false
	}
	return connected
}

// IsReachable performs a fresh probe.
func (m *Monitor) IsReachable(ctx context.Context) bool {
	return m.Refresh(ctx).Reachable
}

// Refresh re-checks link and reachability. Concurrent callers share a single
// probe.
func (m *Monitor) Refresh(ctx context.Context) domain.ConnectivityState {
	v, _, _ := m.group.Do("refresh", func() (any, error) {
		return m.check(ctx), nil
	})
	return v.(domain.ConnectivityState)
}

func (m *Monitor) check(ctx context.Context) domain.ConnectivityState {
	next := domain.ConnectivityState{Quality: domain.QualityNone, CheckedAt: m.now()}

	connected, quality, err := m.link.Link(ctx)
	if err != nil {
		m.logger.Warn("link detection failed", "error", err)
	}
	if connected {
		next.Connected = true
		next.Quality = quality

		pctx, cancel := context.WithTimeout(ctx, m.timeout)
		err := m.prober.Probe(pctx)
		cancel()
		if err != nil {
			m.logger.Debug("directory probe failed", "error", err)
		}
		next.Reachable = err == nil
	}

	m.mu.Lock()
	prev := m.state
	m.state = next
	m.mu.Unlock()

	if prev.Connected != next.Connected || prev.Reachable != next.Reachable {
		m.logger.Info("connectivity changed",
			"connected", next.Connected,
			"reachable", next.Reachable,
			"quality", next.Quality,
		)
		m.publish(Transition{Previous: prev, Current: next})
	}
	return next
}

// Subscribe returns a channel of transitions and a function that
// unsubscribes. Slow subscribers miss transitions rather than block probes.
func (m *Monitor) Subscribe() (<-chan Transition, func()) {
	ch := make(chan Transition, 4)

	m.subsMu.Lock()
	m.subs[ch] = struct{}{}
	m.subsMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.subsMu.Lock()
			delete(m.subs, ch)
			m.subsMu.Unlock()
			close(ch)
		})
	}
}

func (m *Monitor) publish(t Transition) {
	m.subsMu.Lock()
	defer m.subsMu.Unlock()
	for ch := range m.subs {
		select {
		case ch <- t:
		default:
		}
	}
}

// Start begins periodic checks. It is a no-op without a scheduler.
func (m *Monitor) Start() {
	if m.loop != nil {
		m.loop.Start()
	}
}

func (m *Monitor) Stop() {
	if m.loop != nil {
		m.loop.Stop()
	}
}
