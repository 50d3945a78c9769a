// Package assignment picks assignees for unassigned tasks and rebalances
// engine-made assignments away from overloaded users.
//
// Every run reads the task set once, keeps a workload.Index up to date as it
// decides, and commits all task changes in one batch at the end. Runs are
// not safe to execute concurrently against the same store; callers
// serialize them.
package assignment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/felixgeelhaar/fortify/retry"

	"github.com/kazz187/workguild/internal/scoring"
	"github.com/kazz187/workguild/internal/task"
	"github.com/kazz187/workguild/internal/user"
	"github.com/kazz187/workguild/internal/workload"
	"github.com/kazz187/workguild/pkg/cerr"
)

const (
	ReasonNoCandidate     = "no suitable candidate"
	ReasonLoadRebalance   = "load rebalancing"
	ReasonInternalError   = "internal error"
	DefaultMaxTasksPerRun = 200
)

type Engine struct {
	tasks          task.Repository
	users          user.Repository
	scorer         *scoring.Scorer
	maxTasksPerRun int
	retryConfig    retry.Config
	now            func() time.Time
}

type Option func(*Engine)

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func WithMaxTasksPerRun(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxTasksPerRun = n
		}
	}
}

func WithRetryConfig(cfg retry.Config) Option {
	return func(e *Engine) { e.retryConfig = cfg }
}

func NewEngine(tasks task.Repository, users user.Repository, scorer *scoring.Scorer, opts ...Option) *Engine {
	e := &Engine{
		tasks:          tasks,
		users:          users,
		scorer:         scorer,
		maxTasksPerRun: DefaultMaxTasksPerRun,
		retryConfig: retry.Config{
			MaxAttempts:   3,
			InitialDelay:  50 * time.Millisecond,
			BackoffPolicy: retry.BackoffExponential,
		},
		now: time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) policy() workload.Policy {
	return e.scorer.Config().Policy
}

// runState is the per-run snapshot consulted by the scorer.
type runState struct {
	index      *workload.Index
	efficiency map[string]float64
	fallback   float64
	tasks      []*task.Task
	users      []*user.User
}

func (s *runState) Hours(userID string) float64 {
	return s.index.Hours(userID)
}

func (s *runState) Efficiency(userID string) float64 {
	if v, ok := s.efficiency[userID]; ok {
		return v
	}
	return s.fallback
}

func (e *Engine) snapshot(ctx context.Context) (*runState, error) {
	users, err := e.users.List(ctx, user.Assignable)
	if err != nil {
		return nil, fmt.Errorf("failed to list candidate users: %w", err)
	}
	tasks, err := e.tasks.List(ctx, task.Filter{})
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	cfg := e.scorer.Config()
	return &runState{
		index:      workload.NewIndex(cfg.Policy, tasks),
		efficiency: scoring.EfficiencyByUser(tasks, cfg.DefaultEfficiency),
		fallback:   cfg.DefaultEfficiency,
		tasks:      tasks,
		users:      users,
	}, nil
}

// commit writes every staged task in one batch, retrying transient
// failures. A failed commit fails the whole run.
// interrupted reports a cancelled or expired run. The caller abandons its
// staged changes, so an interrupted run commits nothing.
func interrupted(ctx context.Context) error {
	err := ctx.Err()
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.DeadlineExceeded):
		return cerr.NewError(cerr.DeadlineExceeded, "run deadline exceeded", err)
	default:
		return cerr.NewError(cerr.Canceled, "run canceled", err)
	}
}

func (e *Engine) commit(ctx context.Context, staged []*task.Task) error {
	if len(staged) == 0 {
		return nil
	}
	r := retry.New[struct{}](e.retryConfig)
	_, err := r.Do(ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, e.tasks.UpdateBatch(ctx, staged)
	})
	if err != nil {
		return cerr.NewError(cerr.Internal, "failed to commit task changes", err)
	}
	return nil
}
