// Package orchestrator is the single entry point to the assignment engine
// and the alert manager. It serializes every run, publishes the resulting
// events, and drives scheduled and reactive runs.
package orchestrator

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/kazz187/workguild/internal/alert"
	"github.com/kazz187/workguild/internal/assignment"
	"github.com/kazz187/workguild/internal/eventbus"
	"github.com/kazz187/workguild/internal/metrics"
	"github.com/kazz187/workguild/internal/notification"
	"github.com/kazz187/workguild/internal/task"
	"github.com/kazz187/workguild/internal/user"
	"github.com/kazz187/workguild/pkg/cerr"
	"github.com/kazz187/workguild/pkg/clog"
)

const (
	OpAssign       = "assign"
	OpRedistribute = "redistribute"
	OpCandidate    = "candidate"
	OpStats        = "stats"
	OpAlertCheck   = "alert_check"
	OpAlertCleanup = "alert_cleanup"
	OpReassign     = "reassign"
)

// Schedule intervals of zero disable the corresponding job.
type Schedule struct {
	Assign       time.Duration
	Redistribute time.Duration
	AlertCheck   time.Duration
	Cleanup      time.Duration
}

type Orchestrator struct {
	// mu gives each run exclusive access to the store.
	mu       sync.Mutex
	eventBus *eventbus.Bus
	engine   *assignment.Engine
	alerts   *alert.Manager
	taskRepo task.Repository
	userRepo user.Repository
	metrics  *metrics.Metrics
	schedule Schedule
	now      func() time.Time
}

type Option func(*Orchestrator)

func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

func New(
	eventBus *eventbus.Bus,
	engine *assignment.Engine,
	alerts *alert.Manager,
	taskRepo task.Repository,
	userRepo user.Repository,
	m *metrics.Metrics,
	schedule Schedule,
	opts ...Option,
) *Orchestrator {
	if m == nil {
		m = metrics.New()
	}
	o := &Orchestrator{
		eventBus: eventBus,
		engine:   engine,
		alerts:   alerts,
		taskRepo: taskRepo,
		userRepo: userRepo,
		metrics:  m,
		schedule: schedule,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// run holds the lock for fn and tags ctx with the operation for logging.
func (o *Orchestrator) run(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	ctx = clog.ContextWithOperation(ctx, op)
	start := time.Now()
	err := fn(ctx)
	o.metrics.ObserveRun(op, start, err)
	if err != nil {
		clog.AddError(ctx, err)
		slog.ErrorContext(ctx, "run failed", "duration", time.Since(start))
	}
	return err
}

func (o *Orchestrator) AssignAll(ctx context.Context) (*assignment.Result, error) {
	var res *assignment.Result
	err := o.run(ctx, OpAssign, func(ctx context.Context) error {
		r, staged, err := o.engine.AssignAllUnassigned(ctx)
		if err != nil {
			return err
		}
		res = r
		o.metrics.AddAssignments(r.Assigned, r.Failed)
		for _, t := range staged {
			o.eventBus.PublishNew(eventbus.TypeTaskAssigned, t.ID, map[string]string{
				"assignee_id": t.AssigneeID,
				"project_id":  t.ProjectID,
			})
		}
		slog.InfoContext(ctx, "auto-assignment finished",
			"assigned", r.Assigned, "failed", r.Failed, "deferred", r.Deferred)
		return nil
	})
	return res, err
}

func (o *Orchestrator) Redistribute(ctx context.Context) (*assignment.RedistributionResult, error) {
	var res *assignment.RedistributionResult
	err := o.run(ctx, OpRedistribute, func(ctx context.Context) error {
		r, _, err := o.engine.Redistribute(ctx)
		if err != nil {
			return err
		}
		res = r
		o.metrics.AddRedistributions(r.Redistributed, r.Failed, r.Skipped)
		for _, tr := range r.Details {
			o.eventBus.PublishNew(eventbus.TypeTaskReassigned, tr.TaskID, map[string]string{
				"from_id": tr.FromID,
				"to_id":   tr.ToID,
				"reason":  tr.Reason,
			})
		}
		slog.InfoContext(ctx, "redistribution finished",
			"redistributed", r.Redistributed, "failed", r.Failed, "skipped", r.Skipped)
		return nil
	})
	return res, err
}

func (o *Orchestrator) FindBestCandidate(ctx context.Context, taskID string) (*assignment.CandidateResult, error) {
	var res *assignment.CandidateResult
	err := o.run(ctx, OpCandidate, func(ctx context.Context) error {
		r, err := o.engine.FindBestCandidate(ctx, taskID)
		res = r
		return err
	})
	return res, err
}

func (o *Orchestrator) Stats(ctx context.Context) (*assignment.Stats, error) {
	var res *assignment.Stats
	err := o.run(ctx, OpStats, func(ctx context.Context) error {
		s, err := o.engine.Stats(ctx)
		res = s
		return err
	})
	return res, err
}

// CheckAlerts runs the workload and delay checks. Alerts created before a
// partial failure are still returned and announced.
func (o *Orchestrator) CheckAlerts(ctx context.Context) ([]*notification.Notification, error) {
	var created []*notification.Notification
	err := o.run(ctx, OpAlertCheck, func(ctx context.Context) error {
		var err error
		created, err = o.alerts.CheckAll(ctx)
		for _, n := range created {
			o.metrics.AddAlertCreated(string(n.Type))
			o.eventBus.PublishNew(eventbus.TypeAlertCreated, n.ID, map[string]string{
				"recipient_id": n.UserID,
				"type":         string(n.Type),
			})
		}
		if len(created) > 0 {
			slog.InfoContext(ctx, "alerts created", "count", len(created))
		}
		return err
	})
	return created, err
}

func (o *Orchestrator) CleanupAlerts(ctx context.Context) (int, error) {
	var removed int
	err := o.run(ctx, OpAlertCleanup, func(ctx context.Context) error {
		var err error
		removed, err = o.alerts.Cleanup(ctx)
		o.metrics.AddAlertsRemoved(removed)
		return err
	})
	return removed, err
}

// ReassignTask records a manual assignment. The task leaves the
// redistribution pool. An empty assigneeID unassigns it.
func (o *Orchestrator) ReassignTask(ctx context.Context, taskID, assigneeID string) (*task.Task, error) {
	var res *task.Task
	err := o.run(ctx, OpReassign, func(ctx context.Context) error {
		t, err := o.taskRepo.Get(ctx, taskID)
		if err != nil {
			return err
		}
		if assigneeID != "" {
			u, err := o.userRepo.Get(ctx, assigneeID)
			if err != nil {
				return err
			}
			if !u.IsAssignable() {
				return cerr.NewError(cerr.FailedPrecondition, "user cannot be assigned tasks", nil)
			}
		}
		previous := t.AssigneeID
		t.SetManualAssignee(assigneeID, o.now())
		if err := o.taskRepo.Update(ctx, t); err != nil {
			return err
		}
		res = t
		o.eventBus.PublishNew(eventbus.TypeTaskUpdated, t.ID, map[string]string{
			"assignee_id":       assigneeID,
			"previous_assignee": previous,
		})
		return nil
	})
	return res, err
}
