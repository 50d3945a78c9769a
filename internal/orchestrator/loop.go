package orchestrator

import (
	"context"
	"log/slog"
	"time"

	"github.com/felixgeelhaar/fortify/timeout"
	"github.com/sourcegraph/conc/pool"

	"github.com/kazz187/workguild/internal/eventbus"
	"github.com/kazz187/workguild/pkg/panicerr"
)

// Start runs the reactive alert loop and the scheduled jobs until ctx is
// cancelled.
func (o *Orchestrator) Start(ctx context.Context) {
	p := pool.New().WithContext(ctx)
	p.Go(func(ctx context.Context) error {
		o.watchTaskEvents(ctx)
		return nil
	})

	jobs := []struct {
		name     string
		interval time.Duration
		fn       func(ctx context.Context) error
	}{
		{OpAssign, o.schedule.Assign, func(ctx context.Context) error { _, err := o.AssignAll(ctx); return err }},
		{OpRedistribute, o.schedule.Redistribute, func(ctx context.Context) error { _, err := o.Redistribute(ctx); return err }},
		{OpAlertCheck, o.schedule.AlertCheck, func(ctx context.Context) error { _, err := o.CheckAlerts(ctx); return err }},
		{OpAlertCleanup, o.schedule.Cleanup, func(ctx context.Context) error { _, err := o.CleanupAlerts(ctx); return err }},
	}
	for _, job := range jobs {
		if job.interval <= 0 {
			continue
		}
		p.Go(func(ctx context.Context) error {
			o.every(ctx, job.name, job.interval, job.fn)
			return nil
		})
	}

	slog.Info("orchestrator started")
	_ = p.Wait()
	slog.Info("orchestrator stopped")
}

// every runs fn on each tick, bounding each run by the interval itself. The
// limiter runs fn synchronously and cancels its context at the deadline;
// the engine and the stores stop at their next task or storage call, so an
// overrunning run releases the orchestrator lock instead of delaying the
// next tick.
func (o *Orchestrator) every(ctx context.Context, name string, interval time.Duration, fn func(ctx context.Context) error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	limiter := timeout.New[struct{}](timeout.Config{DefaultTimeout: interval})
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			panicerr.Guard(ctx, name, func(ctx context.Context) error {
				_, err := limiter.Execute(ctx, interval, func(ctx context.Context) (struct{}, error) {
					return struct{}{}, fn(ctx)
				})
				return err
			})
		}
	}
}

// watchTaskEvents re-checks alerts after task mutations. Events that pile up
// while a check runs are folded into the next one. Failures are logged and
// never reach the operation that published the event.
func (o *Orchestrator) watchTaskEvents(ctx context.Context) {
	subID, ch := o.eventBus.Subscribe(256, eventbus.TaskMutations...)
	defer o.eventBus.Unsubscribe(subID)

	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-ch:
			if !ok {
				return
			}
			if !drain(ch) {
				return
			}
			panicerr.Guard(ctx, "reactive alert check", func(ctx context.Context) error {
				_, err := o.CheckAlerts(ctx)
				return err
			})
		}
	}
}

// drain discards queued events and reports whether ch is still open.
func drain(ch <-chan *eventbus.Event) bool {
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return false
			}
		default:
			return true
		}
	}
}
