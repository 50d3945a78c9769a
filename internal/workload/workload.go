// Package workload derives committed hours from the live task set.
package workload

import (
	"context"
	"fmt"

	"github.com/kazz187/workguild/internal/task"
)

type Policy struct {
	MaxWeeklyHours      float64
	OptimalWeeklyHours  float64
	AlertThresholdHours float64
}

func DefaultPolicy() Policy {
	return Policy{
		MaxWeeklyHours:      40,
		OptimalWeeklyHours:  35,
		AlertThresholdHours: 35,
	}
}

// IsOverloaded is strictly above the optimal hours.
func (p Policy) IsOverloaded(hours float64) bool {
	return hours > p.OptimalWeeklyHours
}

func (p Policy) IsUnderloaded(hours float64) bool {
	return hours < p.OptimalWeeklyHours
}

// NeedsAlert is at or above the alert threshold.
func (p Policy) NeedsAlert(hours float64) bool {
	return hours >= p.AlertThresholdHours
}

// Fits reports whether adding hours keeps the total within the hard cap.
func (p Policy) Fits(current, hours float64) bool {
	return current+hours <= p.MaxWeeklyHours
}

type Workload struct {
	UserID                string  `json:"userId"`
	CurrentWeekHours      float64 `json:"currentWeekHours"`
	UtilizationPercentage float64 `json:"utilizationPercentage"`
	RemainingCapacity     float64 `json:"remainingCapacity"`
}

// Compute derives the utilization figures for a user carrying hours.
// Utilization is not capped at 100.
func (p Policy) Compute(userID string, hours float64) Workload {
	if hours < 0 {
		hours = 0
	}
	return Workload{
		UserID:                userID,
		CurrentWeekHours:      hours,
		UtilizationPercentage: hours * 100 / p.MaxWeeklyHours,
		RemainingCapacity:     max(0, p.MaxWeeklyHours-hours),
	}
}

// ActiveHours sums the estimates of tasks in todo or in_progress.
func ActiveHours(tasks []*task.Task) float64 {
	var sum float64
	for _, t := range tasks {
		if t.Status.IsActive() {
			sum += t.Hours()
		}
	}
	return sum
}

type Tracker struct {
	tasks  task.Repository
	policy Policy
}

func NewTracker(tasks task.Repository, policy Policy) *Tracker {
	return &Tracker{tasks: tasks, policy: policy}
}

func (t *Tracker) Policy() Policy {
	return t.policy
}

// Current recomputes a user's workload from the store.
func (t *Tracker) Current(ctx context.Context, userID string) (Workload, error) {
	tasks, err := t.tasks.List(ctx, task.Filter{AssigneeID: userID, Statuses: task.ActiveStatuses})
	if err != nil {
		return Workload{}, fmt.Errorf("failed to list tasks of %s: %w", userID, err)
	}
	return t.policy.Compute(userID, ActiveHours(tasks)), nil
}

// Snapshot builds an Index from one listing of every task.
func (t *Tracker) Snapshot(ctx context.Context) (*Index, []*task.Task, error) {
	tasks, err := t.tasks.List(ctx, task.Filter{})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	return NewIndex(t.policy, tasks), tasks, nil
}
