package assignment

import (
	"context"

	"github.com/kazz187/workguild/pkg/cerr"
)

// Stats summarizes open work and the workload of every assignable user.
func (e *Engine) Stats(ctx context.Context) (*Stats, error) {
	state, err := e.snapshot(ctx)
	if err != nil {
		return nil, cerr.NewError(cerr.Unavailable, "failed to load assignment state", err)
	}
	policy := e.policy()

	stats := &Stats{UserWorkloads: make([]UserWorkload, 0, len(state.users)), TotalUsers: len(state.users)}
	for _, t := range state.tasks {
		if !t.IsAssigned() && !t.Status.IsTerminal() {
			stats.UnassignedTasks++
		}
	}
	for _, u := range state.users {
		w := state.index.Workload(u.ID)
		over := policy.IsOverloaded(w.CurrentWeekHours)
		if over {
			stats.OverloadedUsers++
		}
		stats.UserWorkloads = append(stats.UserWorkloads, UserWorkload{
			Workload:   w,
			Name:       u.Name,
			Email:      u.Email,
			Overloaded: over,
		})
	}
	return stats, nil
}
