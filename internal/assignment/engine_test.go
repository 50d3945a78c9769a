package assignment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/felixgeelhaar/fortify/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kazz187/workguild/internal/scoring"
	"github.com/kazz187/workguild/internal/task"
	taskrepo "github.com/kazz187/workguild/internal/task/repositoryimpl"
	"github.com/kazz187/workguild/internal/user"
	userrepo "github.com/kazz187/workguild/internal/user/repositoryimpl"
	"github.com/kazz187/workguild/pkg/cerr"
	"github.com/kazz187/workguild/pkg/storage"
)

var fixedNow = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

type fixture struct {
	tasks  task.Repository
	users  user.Repository
	engine *Engine
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	s, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	f := &fixture{
		tasks: taskrepo.NewYAMLRepository(s),
		users: userrepo.NewYAMLRepository(s),
	}
	opts = append([]Option{WithClock(func() time.Time { return fixedNow }), WithRetryConfig(retry.Config{MaxAttempts: 1, InitialDelay: time.Millisecond})}, opts...)
	f.engine = NewEngine(f.tasks, f.users, scoring.NewScorer(scoring.DefaultConfig()), opts...)
	return f
}

func (f *fixture) addUsers(t *testing.T, users ...*user.User) {
	t.Helper()
	for _, u := range users {
		require.NoError(t, f.users.Create(context.Background(), u))
	}
}

func (f *fixture) addTasks(t *testing.T, tasks ...*task.Task) {
	t.Helper()
	for _, tk := range tasks {
		if tk.Status == "" {
			tk.Status = task.StatusTodo
		}
		require.NoError(t, f.tasks.Create(context.Background(), tk))
	}
}

func (f *fixture) get(t *testing.T, id string) *task.Task {
	t.Helper()
	tk, err := f.tasks.Get(context.Background(), id)
	require.NoError(t, err)
	return tk
}

func TestAssignAllUnassigned(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addUsers(t,
		&user.User{ID: "u1", Name: "Alice", Capabilities: user.Collaborator, SkillLevels: map[string]int{"go": 5}},
		&user.User{ID: "u2", Name: "Bob", Capabilities: user.Manager, SkillLevels: map[string]int{"go": 3}},
		&user.User{ID: "pm", Name: "Pat", Capabilities: user.ProjectManager, SkillLevels: map[string]int{"go": 5, "rust": 5}},
	)
	f.addTasks(t,
		&task.Task{ID: "t1", Title: "API", Priority: task.PriorityHigh, RequiredSkillIDs: []string{"go"}, EstimatedHours: 10},
		&task.Task{ID: "t2", Title: "Docs", Priority: task.PriorityLow, EstimatedHours: 5},
		&task.Task{ID: "t3", Title: "FFI", Priority: task.PriorityMedium, RequiredSkillIDs: []string{"rust"}, EstimatedHours: 2},
		&task.Task{ID: "done", Title: "Old", Status: task.StatusCompleted, EstimatedHours: 2},
		&task.Task{ID: "dropped", Title: "Nope", Status: task.StatusCancelled, EstimatedHours: 2},
	)

	res, staged, err := f.engine.AssignAllUnassigned(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Assigned)
	assert.Equal(t, 1, res.Failed)
	assert.Len(t, staged, 2)
	require.Len(t, res.Details, 3)

	assert.Equal(t, "t1", res.Details[0].TaskID)
	assert.Equal(t, "Alice", res.Details[0].AssignedTo)
	require.NotNil(t, res.Details[0].SkillMatch)
	assert.Equal(t, 1.0, *res.Details[0].SkillMatch)

	assert.Equal(t, "t3", res.Details[1].TaskID)
	assert.Equal(t, ReasonNoCandidate, res.Details[1].Reason)
	assert.Nil(t, res.Details[1].Score)

	// t2 sees Alice's new 10h and goes to the idle Bob.
	assert.Equal(t, "t2", res.Details[2].TaskID)
	assert.Equal(t, "u2", res.Details[2].AssigneeID)

	t1 := f.get(t, "t1")
	assert.Equal(t, "u1", t1.AssigneeID)
	assert.True(t, t1.IsAutoAssigned)
	assert.True(t, fixedNow.Equal(t1.UpdatedAt))
	assert.False(t, f.get(t, "t3").IsAssigned())
	assert.False(t, f.get(t, "done").IsAssigned())
	assert.False(t, f.get(t, "dropped").IsAssigned())

	again, _, err := f.engine.AssignAllUnassigned(ctx)
	require.NoError(t, err)
	assert.Zero(t, again.Assigned)
	assert.Equal(t, 1, again.Failed)
}

func TestAssignAllUnassigned_HardCapExcludesCandidate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addUsers(t, &user.User{ID: "u1", Capabilities: user.Collaborator, SkillLevels: map[string]int{"go": 5}})
	f.addTasks(t,
		&task.Task{ID: "busy", AssigneeID: "u1", Status: task.StatusInProgress, EstimatedHours: 30},
		&task.Task{ID: "t1", RequiredSkillIDs: []string{"go"}, EstimatedHours: 10},
	)

	res, _, err := f.engine.AssignAllUnassigned(ctx)
	require.NoError(t, err)
	assert.Zero(t, res.Assigned)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, ReasonNoCandidate, res.Details[0].Reason)

	f.addUsers(t, &user.User{ID: "u2", Capabilities: user.Collaborator, SkillLevels: map[string]int{"go": 3}})
	res, _, err = f.engine.AssignAllUnassigned(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Assigned)
	assert.Equal(t, "u2", f.get(t, "t1").AssigneeID)
}

func TestAssignAllUnassigned_BatchCap(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, WithMaxTasksPerRun(1))
	f.addUsers(t, &user.User{ID: "u1", Capabilities: user.Collaborator})
	f.addTasks(t,
		&task.Task{ID: "a", Priority: task.PriorityLow, EstimatedHours: 1},
		&task.Task{ID: "b", Priority: task.PriorityUrgent, EstimatedHours: 1},
	)

	res, _, err := f.engine.AssignAllUnassigned(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Assigned)
	assert.Equal(t, 1, res.Deferred)
	assert.True(t, f.get(t, "b").IsAssigned())
	assert.False(t, f.get(t, "a").IsAssigned())
}

type failingBatchRepo struct {
	task.Repository
}

func (failingBatchRepo) UpdateBatch(context.Context, []*task.Task) error {
	return errors.New("database is locked")
}

func TestAssignAllUnassigned_CommitFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addUsers(t, &user.User{ID: "u1", Capabilities: user.Collaborator})
	f.addTasks(t, &task.Task{ID: "a", EstimatedHours: 1})

	engine := NewEngine(failingBatchRepo{f.tasks}, f.users, scoring.NewScorer(scoring.DefaultConfig()),
		WithRetryConfig(retry.Config{MaxAttempts: 2, InitialDelay: time.Millisecond}))
	_, _, err := engine.AssignAllUnassigned(ctx)
	require.Error(t, err)
	assert.True(t, cerr.IsCode(err, cerr.Internal))
	assert.False(t, f.get(t, "a").IsAssigned())
}

func TestFindBestCandidate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addUsers(t,
		&user.User{ID: "u1", Name: "Alice", Capabilities: user.Collaborator, SkillLevels: map[string]int{"go": 4}},
		&user.User{ID: "u2", Name: "Bob", Capabilities: user.Collaborator, SkillLevels: map[string]int{"go": 5}},
	)
	f.addTasks(t,
		&task.Task{ID: "mine", AssigneeID: "u2", RequiredSkillIDs: []string{"go"}, EstimatedHours: 30},
		&task.Task{ID: "fresh", RequiredSkillIDs: []string{"go"}, EstimatedHours: 5},
		&task.Task{ID: "closed", Status: task.StatusCompleted},
		&task.Task{ID: "exotic", RequiredSkillIDs: []string{"cobol"}},
	)

	res, err := f.engine.FindBestCandidate(ctx, "fresh")
	require.NoError(t, err)
	assert.True(t, res.Found)
	assert.Equal(t, "u1", res.UserID)
	require.NotNil(t, res.SkillMatch)
	assert.InDelta(t, 2.0/3.0, *res.SkillMatch, 1e-9)

	// Bob's own 30h task does not count against him when it is re-scored.
	res, err = f.engine.FindBestCandidate(ctx, "mine")
	require.NoError(t, err)
	assert.Equal(t, "u2", res.UserID)

	res, err = f.engine.FindBestCandidate(ctx, "exotic")
	require.NoError(t, err)
	assert.False(t, res.Found)
	assert.Equal(t, ReasonNoCandidate, res.Reason)

	_, err = f.engine.FindBestCandidate(ctx, "closed")
	assert.True(t, cerr.IsCode(err, cerr.FailedPrecondition))
	_, err = f.engine.FindBestCandidate(ctx, "missing")
	assert.True(t, cerr.IsCode(err, cerr.NotFound))
}

func TestRedistribute_LowestPriorityFirstUntilReceiverFull(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addUsers(t,
		&user.User{ID: "a", Name: "Overloaded", Capabilities: user.Collaborator},
		&user.User{ID: "b", Name: "Spare", Capabilities: user.Collaborator},
	)
	f.addTasks(t,
		&task.Task{ID: "a-urgent", AssigneeID: "a", IsAutoAssigned: true, Priority: task.PriorityUrgent, EstimatedHours: 30},
		&task.Task{ID: "a-high", AssigneeID: "a", IsAutoAssigned: true, Priority: task.PriorityHigh, EstimatedHours: 8},
		&task.Task{ID: "a-medium", AssigneeID: "a", IsAutoAssigned: true, Priority: task.PriorityMedium, EstimatedHours: 4},
		&task.Task{ID: "a-low", AssigneeID: "a", IsAutoAssigned: true, Priority: task.PriorityLow, EstimatedHours: 3},
		&task.Task{ID: "a-manual", AssigneeID: "a", Priority: task.PriorityLow, EstimatedHours: 1},
		&task.Task{ID: "b-work", AssigneeID: "b", Status: task.StatusInProgress, EstimatedHours: 30},
	)

	res, staged, err := f.engine.Redistribute(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Redistributed)
	assert.Len(t, staged, 2)
	require.Len(t, res.Details, 2)
	assert.Equal(t, "a-low", res.Details[0].TaskID)
	assert.Equal(t, "a-medium", res.Details[1].TaskID)
	for _, d := range res.Details {
		assert.Equal(t, "a", d.FromID)
		assert.Equal(t, "b", d.ToID)
		assert.Equal(t, ReasonLoadRebalance, d.Reason)
	}

	assert.Equal(t, "b", f.get(t, "a-low").AssigneeID)
	assert.True(t, f.get(t, "a-low").IsAutoAssigned)
	assert.Equal(t, "a", f.get(t, "a-high").AssigneeID)
	assert.Equal(t, "a", f.get(t, "a-manual").AssigneeID)

	stats, err := f.engine.Stats(ctx)
	require.NoError(t, err)
	for _, w := range stats.UserWorkloads {
		assert.LessOrEqual(t, w.CurrentWeekHours, 40.0)
	}

	again, _, err := f.engine.Redistribute(ctx)
	require.NoError(t, err)
	assert.Zero(t, again.Redistributed)
}

func TestRedistribute_NeverExceedsCapOrMovesManualWork(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addUsers(t,
		&user.User{ID: "a", Capabilities: user.Collaborator},
		&user.User{ID: "b", Capabilities: user.Manager},
	)
	f.addTasks(t,
		&task.Task{ID: "big", AssigneeID: "a", IsAutoAssigned: true, Priority: task.PriorityLow, EstimatedHours: 12},
		&task.Task{ID: "manual", AssigneeID: "a", Priority: task.PriorityLow, EstimatedHours: 30},
		&task.Task{ID: "b-work", AssigneeID: "b", EstimatedHours: 30},
	)

	res, staged, err := f.engine.Redistribute(ctx)
	require.NoError(t, err)
	assert.Zero(t, res.Redistributed)
	assert.Equal(t, 1, res.Skipped)
	assert.Empty(t, staged)
	assert.Equal(t, "a", f.get(t, "big").AssigneeID)
	assert.Equal(t, "a", f.get(t, "manual").AssigneeID)
}

func TestRedistribute_OffersEveryMovableTask(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addUsers(t,
		&user.User{ID: "a", Capabilities: user.Collaborator},
		&user.User{ID: "b", Capabilities: user.Collaborator},
	)
	f.addTasks(t,
		&task.Task{ID: "a1", AssigneeID: "a", IsAutoAssigned: true, Priority: task.PriorityLow, EstimatedHours: 2},
		&task.Task{ID: "a2", AssigneeID: "a", IsAutoAssigned: true, Priority: task.PriorityMedium, EstimatedHours: 2},
		&task.Task{ID: "a-manual", AssigneeID: "a", Priority: task.PriorityLow, EstimatedHours: 32},
	)

	// a drops to 34h after the first move and still gives the second task.
	res, staged, err := f.engine.Redistribute(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, res.Redistributed)
	assert.Equal(t, "a1", res.Details[0].TaskID)
	assert.Equal(t, "a2", res.Details[1].TaskID)
	assert.Len(t, staged, 2)
	assert.Equal(t, "b", f.get(t, "a1").AssigneeID)
	assert.Equal(t, "b", f.get(t, "a2").AssigneeID)
	assert.Equal(t, "a", f.get(t, "a-manual").AssigneeID)
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addUsers(t,
		&user.User{ID: "a", Name: "Ann", Email: "ann@example.com", Capabilities: user.Collaborator},
		&user.User{ID: "b", Capabilities: user.Manager},
		&user.User{ID: "pm", Capabilities: user.ProjectManager},
	)
	f.addTasks(t,
		&task.Task{ID: "1", AssigneeID: "a", EstimatedHours: 20},
		&task.Task{ID: "2", AssigneeID: "a", Status: task.StatusInProgress, EstimatedHours: 18},
		&task.Task{ID: "3", EstimatedHours: 1},
		&task.Task{ID: "4", Status: task.StatusCompleted},
	)

	stats, err := f.engine.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.UnassignedTasks)
	assert.Equal(t, 1, stats.OverloadedUsers)
	assert.Equal(t, 2, stats.TotalUsers)
	require.Len(t, stats.UserWorkloads, 2)
	ann := stats.UserWorkloads[0]
	assert.Equal(t, "ann@example.com", ann.Email)
	assert.True(t, ann.Overloaded)
	assert.InDelta(t, 95.0, ann.UtilizationPercentage, 1e-9)
	assert.InDelta(t, 2.0, ann.RemainingCapacity, 1e-9)
}

func TestInterrupted(t *testing.T) {
	assert.NoError(t, interrupted(context.Background()))

	canceled, cancel := context.WithCancel(context.Background())
	cancel()
	err := interrupted(canceled)
	assert.True(t, cerr.IsCode(err, cerr.Canceled))
	assert.ErrorIs(t, err, context.Canceled)

	expired, cancelExpired := context.WithTimeout(context.Background(), -time.Second)
	defer cancelExpired()
	err = interrupted(expired)
	assert.True(t, cerr.IsCode(err, cerr.DeadlineExceeded))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
