package workload

import "github.com/kazz187/workguild/internal/task"

// Index holds per-user committed hours for the duration of one run. It is
// built from a single task listing and updated as the run assigns or moves
// work, so later decisions see earlier ones without re-reading the store.
type Index struct {
	policy Policy
	hours  map[string]float64
}

func NewIndex(policy Policy, tasks []*task.Task) *Index {
	idx := &Index{policy: policy, hours: make(map[string]float64)}
	for _, t := range tasks {
		if t.IsAssigned() && t.Status.IsActive() {
			idx.hours[t.AssigneeID] += t.Hours()
		}
	}
	return idx
}

func (i *Index) Policy() Policy {
	return i.policy
}

func (i *Index) Hours(userID string) float64 {
	return i.hours[userID]
}

func (i *Index) Workload(userID string) Workload {
	return i.policy.Compute(userID, i.hours[userID])
}

func (i *Index) Add(userID string, hours float64) {
	i.hours[userID] += hours
}

func (i *Index) Move(from, to string, hours float64) {
	i.hours[from] -= hours
	if i.hours[from] < 0 {
		i.hours[from] = 0
	}
	i.hours[to] += hours
}
