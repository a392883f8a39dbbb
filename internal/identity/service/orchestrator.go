package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aussiebroadwan/idsync/internal/identity/connectivity"
	"github.com/aussiebroadwan/idsync/internal/identity/domain"
	"github.com/aussiebroadwan/idsync/internal/identity/schedule"
)

// Orchestrator decides when the queue drains: on reconnect after a settle
// delay, on a timer, and on demand. At most one drain runs at a time.
type Orchestrator struct {
	Queue       *Queue
	Monitor     Connectivity
	Scheduler   *schedule.Scheduler
	Logger      *slog.Logger
	SettleDelay time.Duration
	Interval    time.Duration

	emit func(domain.Event)

	running  atomic.Bool
	lastSync atomic.Pointer[time.Time]

	mu          sync.Mutex
	loop        *schedule.Loop
	settle      *time.Timer
	unsubscribe func()
	watchDone   chan struct{}
}

// SyncNow drains once. It returns ErrSyncInProgress if another drain is
// running and ErrDirectoryUnreachable without touching the queue when the
// directory cannot be reached.
func (o *Orchestrator) SyncNow(ctx context.Context) (DrainReport, error) {
	if !o.running.CompareAndSwap(false, true) {
		return DrainReport{}, ErrSyncInProgress
	}
	defer o.running.Store(false)

	if !o.Monitor.IsConnected(ctx) || !o.Monitor.IsReachable(ctx) {
		return DrainReport{}, ErrDirectoryUnreachable
	}

	o.publish(domain.Event{Kind: domain.EventDrainStarted, At: o.Queue.now()})
	report, err := o.Queue.Drain(ctx)
	finished := o.Queue.now()
	o.lastSync.Store(&finished)

	ev := domain.Event{Kind: domain.EventDrainFinished, At: finished}
	if err != nil {
		ev.Err = err.Error()
		o.Logger.Error("drain failed", "error", err)
	} else {
		o.Logger.Info("drain finished",
			"processed", report.Processed,
			"succeeded", report.Succeeded,
			"retried", report.Retried,
			"failed", report.Failed,
			"remaining", report.Remaining,
		)
	}
	o.publish(ev)
	return report, err
}

func (o *Orchestrator) InProgress() bool { return o.running.Load() }

// LastSyncAt is when the last drain finished, nil if none has run.
func (o *Orchestrator) LastSyncAt() *time.Time {
	t := o.lastSync.Load()
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func (o *Orchestrator) publish(e domain.Event) {
	if o.emit != nil {
		o.emit(e)
	}
}

// trigger is the background entry point; overlapping and offline triggers
// are dropped.
func (o *Orchestrator) trigger(ctx context.Context, reason string) {
	_, err := o.SyncNow(ctx)
	switch {
	case err == nil:
	case errors.Is(err, ErrSyncInProgress), errors.Is(err, ErrDirectoryUnreachable):
		o.Logger.Debug("sync trigger skipped", "reason", reason, "error", err)
	default:
		o.Logger.Warn("sync trigger failed", "reason", reason, "error", err)
	}
}

// Start runs the periodic drain and watches for reconnects.
func (o *Orchestrator) Start() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.loop != nil {
		return
	}

	o.loop = o.Scheduler.Every("sync", o.Interval, func(ctx context.Context) {
		o.trigger(ctx, "timer")
	})
	o.loop.Start()

	transitions, unsubscribe := o.Monitor.Subscribe()
	o.unsubscribe = unsubscribe
	o.watchDone = make(chan struct{})
	go o.watch(transitions, o.watchDone)
}

func (o *Orchestrator) watch(transitions <-chan connectivity.Transition, done chan struct{}) {
	defer close(done)
	for t := range transitions {
		if !t.BecameReachable() {
			continue
		}
		o.mu.Lock()
		if o.settle != nil {
			o.settle.Stop()
		}
		o.settle = o.Scheduler.After(o.SettleDelay, func() {
			o.trigger(context.Background(), "reconnect")
		})
		o.mu.Unlock()
	}
}

func (o *Orchestrator) Stop() {
	o.mu.Lock()
	loop, unsubscribe, done := o.loop, o.unsubscribe, o.watchDone
	o.loop, o.unsubscribe, o.watchDone = nil, nil, nil
	o.mu.Unlock()

	if loop == nil {
		return
	}
	loop.Stop()
	unsubscribe()
	<-done

	o.mu.Lock()
	if o.settle != nil {
		o.settle.Stop()
		o.settle = nil
	}
	o.mu.Unlock()
}
