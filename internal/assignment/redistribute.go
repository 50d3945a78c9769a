package assignment

import (
	"cmp"
	"context"
	"log/slog"
	"slices"

	"github.com/kazz187/workguild/internal/scoring"
	"github.com/kazz187/workguild/internal/task"
	"github.com/kazz187/workguild/internal/user"
	"github.com/kazz187/workguild/pkg/cerr"
	"github.com/kazz187/workguild/pkg/panicerr"
)

// Redistribute moves auto-assigned work from users above the optimal hours
// to users below it.
//
// Overloaded users are visited in id order and every one of their movable
// tasks is offered, lowest priority first. A receiver leaves the pool once it
// reaches the optimal hours and the whole pass ends as soon as nobody is left
// to receive. Manually assigned tasks never move.
func (e *Engine) Redistribute(ctx context.Context) (*RedistributionResult, []*task.Task, error) {
	state, err := e.snapshot(ctx)
	if err != nil {
		return nil, nil, cerr.NewError(cerr.Unavailable, "failed to load assignment state", err)
	}
	policy := e.policy()

	var overloaded, pool []*user.User
	for _, u := range state.users {
		hours := state.index.Hours(u.ID)
		switch {
		case policy.IsOverloaded(hours):
			overloaded = append(overloaded, u)
		case policy.IsUnderloaded(hours):
			pool = append(pool, u)
		}
	}

	byAssignee := make(map[string][]*task.Task)
	for _, t := range state.tasks {
		if t.IsAssigned() && t.IsAutoAssigned && t.Status.IsActive() && t.Hours() > 0 {
			byAssignee[t.AssigneeID] = append(byAssignee[t.AssigneeID], t)
		}
	}

	res := &RedistributionResult{Details: []Transfer{}}
	var staged []*task.Task
	now := e.now()
	moves := 0

outer:
	for _, from := range overloaded {
		movable := byAssignee[from.ID]
		slices.SortStableFunc(movable, func(a, b *task.Task) int {
			if c := cmp.Compare(a.Priority.Rank(), b.Priority.Rank()); c != 0 {
				return c
			}
			return cmp.Compare(a.ID, b.ID)
		})

		for _, t := range movable {
			if len(pool) == 0 || moves >= e.maxTasksPerRun {
				break outer
			}
			if err := interrupted(ctx); err != nil {
				return nil, nil, err
			}

			fits := func(u *user.User) bool {
				return u.ID != from.ID && policy.Fits(state.index.Hours(u.ID), t.Hours())
			}
			var (
				best scoring.Candidate
				ok   bool
			)
			err := panicerr.Try(func() {
				best, ok = e.scorer.Best(t, pool, state, fits)
			})
			if err != nil {
				slog.ErrorContext(ctx, "failed to score task for redistribution", "task_id", t.ID, "error", err)
				res.Failed++
				continue
			}
			if !ok {
				res.Skipped++
				continue
			}

			t.AssignAuto(best.User.ID, now)
			state.index.Move(from.ID, best.User.ID, t.Hours())
			staged = append(staged, t)
			moves++
			res.Redistributed++
			res.Details = append(res.Details, Transfer{
				TaskID:    t.ID,
				TaskTitle: t.Title,
				FromID:    from.ID,
				From:      from.Name,
				ToID:      best.User.ID,
				To:        best.User.Name,
				Score:     best.Total,
				Reason:    ReasonLoadRebalance,
			})

			if !policy.IsUnderloaded(state.index.Hours(best.User.ID)) {
				pool = slices.DeleteFunc(pool, func(u *user.User) bool { return u.ID == best.User.ID })
			}
		}
	}

	if err := e.commit(ctx, staged); err != nil {
		return nil, nil, err
	}
	return res, staged, nil
}
