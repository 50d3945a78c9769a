package assignment

import (
	"cmp"
	"context"
	"log/slog"
	"slices"

	"github.com/kazz187/workguild/internal/scoring"
	"github.com/kazz187/workguild/internal/task"
	"github.com/kazz187/workguild/pkg/cerr"
	"github.com/kazz187/workguild/pkg/panicerr"
)

// FindBestCandidate scores every assignable user for one task without
// changing anything. A task that already has an assignee is scored as if
// its hours were not yet on that assignee's plate.
func (e *Engine) FindBestCandidate(ctx context.Context, taskID string) (*CandidateResult, error) {
	t, err := e.tasks.Get(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if t.Status.IsTerminal() {
		return nil, cerr.NewError(cerr.FailedPrecondition, "task is already closed", nil)
	}
	state, err := e.snapshot(ctx)
	if err != nil {
		return nil, cerr.NewError(cerr.Unavailable, "failed to load assignment state", err)
	}
	if t.IsAssigned() && t.Status.IsActive() {
		state.index.Add(t.AssigneeID, -t.Hours())
	}

	res := &CandidateResult{TaskID: t.ID, TaskTitle: t.Title}
	best, ok := e.scorer.Best(t, state.users, state, nil)
	if !ok {
		res.Reason = ReasonNoCandidate
		return res, nil
	}
	res.Found = true
	res.UserID = best.User.ID
	res.UserName = best.User.Name
	res.Score = ptr(best.Total)
	res.SkillMatch = ptr(best.SkillMatch)
	return res, nil
}

// AssignAllUnassigned gives every open, unassigned task to its best
// candidate. Tasks without a viable candidate are reported, not retried.
// Higher priority tasks pick first; at most maxTasksPerRun are considered.
func (e *Engine) AssignAllUnassigned(ctx context.Context) (*Result, []*task.Task, error) {
	state, err := e.snapshot(ctx)
	if err != nil {
		return nil, nil, cerr.NewError(cerr.Unavailable, "failed to load assignment state", err)
	}

	var pending []*task.Task
	for _, t := range state.tasks {
		if !t.IsAssigned() && !t.Status.IsTerminal() {
			pending = append(pending, t)
		}
	}
	slices.SortStableFunc(pending, func(a, b *task.Task) int {
		if c := cmp.Compare(b.Priority.Rank(), a.Priority.Rank()); c != 0 {
			return c
		}
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})

	res := &Result{Details: []Detail{}}
	if len(pending) > e.maxTasksPerRun {
		res.Deferred = len(pending) - e.maxTasksPerRun
		pending = pending[:e.maxTasksPerRun]
	}

	var staged []*task.Task
	now := e.now()
	for _, t := range pending {
		if err := interrupted(ctx); err != nil {
			return nil, nil, err
		}
		var (
			best scoring.Candidate
			ok   bool
		)
		err := panicerr.Try(func() {
			best, ok = e.scorer.Best(t, state.users, state, nil)
		})
		if err != nil {
			slog.ErrorContext(ctx, "failed to score task", "task_id", t.ID, "error", err)
			res.Failed++
			res.Details = append(res.Details, Detail{TaskID: t.ID, TaskTitle: t.Title, Reason: ReasonInternalError})
			continue
		}
		if !ok {
			res.Failed++
			res.Details = append(res.Details, Detail{TaskID: t.ID, TaskTitle: t.Title, Reason: ReasonNoCandidate})
			continue
		}

		t.AssignAuto(best.User.ID, now)
		state.index.Add(best.User.ID, t.Hours())
		staged = append(staged, t)
		res.Assigned++
		res.Details = append(res.Details, Detail{
			TaskID:     t.ID,
			TaskTitle:  t.Title,
			AssigneeID: best.User.ID,
			AssignedTo: best.User.Name,
			Score:      ptr(best.Total),
			SkillMatch: ptr(best.SkillMatch),
		})
	}

	if err := e.commit(ctx, staged); err != nil {
		return nil, nil, err
	}
	return res, staged, nil
}
