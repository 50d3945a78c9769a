package task

import (
	"slices"
	"time"
)

type Status string

const (
	StatusTodo       Status = "todo"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

// ActiveStatuses are the statuses whose estimates count toward a workload.
var ActiveStatuses = []Status{StatusTodo, StatusInProgress}

func (s Status) IsActive() bool {
	return s == StatusTodo || s == StatusInProgress
}

func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

func (s Status) Valid() bool {
	return s.IsActive() || s.IsTerminal()
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Rank orders priorities from low (0) to urgent (3). Unknown values rank as
// medium.
func (p Priority) Rank() int {
	switch p {
	case PriorityLow:
		return 0
	case PriorityHigh:
		return 2
	case PriorityUrgent:
		return 3
	default:
		return 1
	}
}

type Task struct {
	ID               string     `yaml:"id" json:"id"`
	ProjectID        string     `yaml:"project_id" json:"projectId"`
	Title            string     `yaml:"title" json:"title"`
	Description      string     `yaml:"description" json:"description"`
	Status           Status     `yaml:"status" json:"status"`
	Priority         Priority   `yaml:"priority" json:"priority"`
	RequiredSkillIDs []string   `yaml:"required_skill_ids" json:"requiredSkillIds"`
	EstimatedHours   float64    `yaml:"estimated_hours" json:"estimatedHours"`
	ActualHours      *float64   `yaml:"actual_hours,omitempty" json:"actualHours,omitempty"`
	AssigneeID       string     `yaml:"assignee_id" json:"assigneeId"`
	IsAutoAssigned   bool       `yaml:"is_auto_assigned" json:"isAutoAssigned"`
	DueDate          *time.Time `yaml:"due_date,omitempty" json:"dueDate,omitempty"`
	CreatedAt        time.Time  `yaml:"created_at" json:"createdAt"`
	UpdatedAt        time.Time  `yaml:"updated_at" json:"updatedAt"`
}

// Hours is the estimate that counts toward a workload. Missing or negative
// estimates count as zero.
func (t *Task) Hours() float64 {
	if t.EstimatedHours < 0 {
		return 0
	}
	return t.EstimatedHours
}

func (t *Task) IsAssigned() bool {
	return t.AssigneeID != ""
}

// IsOverdue reports an assigned, unfinished task whose due date has passed.
func (t *Task) IsOverdue(now time.Time) bool {
	return t.DueDate != nil && t.DueDate.Before(now) && !t.Status.IsTerminal() && t.IsAssigned()
}

// AssignAuto records an assignment chosen by the engine.
func (t *Task) AssignAuto(userID string, now time.Time) {
	t.AssigneeID = userID
	t.IsAutoAssigned = true
	t.UpdatedAt = now
}

// SetManualAssignee records a human choice, which takes the task out of
// redistribution.
func (t *Task) SetManualAssignee(userID string, now time.Time) {
	t.AssigneeID = userID
	t.IsAutoAssigned = false
	t.UpdatedAt = now
}

// Filter narrows a listing. Zero fields do not filter.
type Filter struct {
	ProjectID        string
	AssigneeID       string
	Unassigned       bool
	Statuses         []Status
	AutoAssignedOnly bool
	DueBefore        *time.Time
}

func (f Filter) Matches(t *Task) bool {
	if f.ProjectID != "" && t.ProjectID != f.ProjectID {
		return false
	}
	if f.AssigneeID != "" && t.AssigneeID != f.AssigneeID {
		return false
	}
	if f.Unassigned && t.IsAssigned() {
		return false
	}
	if len(f.Statuses) > 0 && !slices.Contains(f.Statuses, t.Status) {
		return false
	}
	if f.AutoAssignedOnly && !t.IsAutoAssigned {
		return false
	}
	if f.DueBefore != nil && (t.DueDate == nil || !t.DueDate.Before(*f.DueBefore)) {
		return false
	}
	return true
}
