package schedule

import (
	"context"
	"log/slog"
	"time"
)

// Scheduler bundles the retry policy with timer helpers so every periodic
// or retried job in the process uses the same mechanism.
type Scheduler struct {
	Policy Policy
	Logger *slog.Logger
}

func New(p Policy, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{Policy: p.withDefaults(), Logger: logger}
}

// Every returns a stopped Loop; call Start on it.
func (s *Scheduler) Every(name string, interval time.Duration, fn func(ctx context.Context)) *Loop {
	return NewLoop(name, interval, s.Logger, fn)
}

// After runs fn once after delay. The returned timer can cancel it.
func (s *Scheduler) After(delay time.Duration, fn func()) *time.Timer {
	return time.AfterFunc(delay, fn)
}

func (s *Scheduler) Delay(retryCount int) time.Duration { return s.Policy.Delay(retryCount) }

func (s *Scheduler) Retry(ctx context.Context, attempts int, fn func() error) error {
	return s.Policy.Retry(ctx, attempts, fn)
}
