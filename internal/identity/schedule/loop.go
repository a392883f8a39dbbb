package schedule

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Loop runs fn once at start and then on every tick until stopped.
type Loop struct {
	Name     string
	Interval time.Duration
	Logger   *slog.Logger

	fn func(ctx context.Context)

	startOnce sync.Once
	stopOnce  sync.Once
	started   chan struct{}
	stopCh    chan struct{}
	doneCh    chan struct{}
}

func NewLoop(name string, interval time.Duration, logger *slog.Logger, fn func(ctx context.Context)) *Loop {
	if interval <= 0 {
		interval = time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Loop{
		Name:     name,
		Interval: interval,
		Logger:   logger,
		fn:       fn,
		started:  make(chan struct{}),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start launches the worker goroutine. Calling it more than once is a no-op.
func (l *Loop) Start() {
	l.startOnce.Do(func() {
		close(l.started)
		go l.run()
		l.Logger.Info("loop started", "loop", l.Name, "interval", l.Interval)
	})
}

// Stop signals the worker and waits for the in-progress tick to finish.
func (l *Loop) Stop() {
	l.stopOnce.Do(func() {
		close(l.stopCh)
		select {
		case <-l.started:
			<-l.doneCh
			l.Logger.Info("loop stopped", "loop", l.Name)
		default:
		}
	})
}

func (l *Loop) run() {
	defer close(l.doneCh)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-l.stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	ticker := time.NewTicker(l.Interval)
	defer ticker.Stop()

	l.fn(ctx)

	for {
		select {
		case <-ticker.C:
			l.fn(ctx)
		case <-l.stopCh:
			return
		}
	}
}
