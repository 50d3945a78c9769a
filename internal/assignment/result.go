package assignment

import "github.com/kazz187/workguild/internal/workload"

type Detail struct {
	TaskID     string   `json:"taskId"`
	TaskTitle  string   `json:"taskTitle"`
	AssigneeID string   `json:"assigneeId,omitempty"`
	AssignedTo string   `json:"assignedTo,omitempty"`
	Score      *float64 `json:"score,omitempty"`
	SkillMatch *float64 `json:"skillMatch,omitempty"`
	Reason     string   `json:"reason,omitempty"`
}

type Result struct {
	Assigned int      `json:"assigned"`
	Failed   int      `json:"failed"`
	Details  []Detail `json:"details"`
	// Deferred counts eligible tasks left for a later run by the batch cap.
	Deferred int `json:"deferred"`
}

type Transfer struct {
	TaskID    string  `json:"taskId"`
	TaskTitle string  `json:"taskTitle"`
	FromID    string  `json:"fromId"`
	From      string  `json:"from"`
	ToID      string  `json:"toId"`
	To        string  `json:"to"`
	Score     float64 `json:"score"`
	Reason    string  `json:"reason"`
}

type RedistributionResult struct {
	Redistributed int        `json:"redistributed"`
	Failed        int        `json:"failed"`
	Skipped       int        `json:"skipped"`
	Details       []Transfer `json:"details"`
}

type CandidateResult struct {
	TaskID     string   `json:"taskId"`
	TaskTitle  string   `json:"taskTitle"`
	Found      bool     `json:"found"`
	UserID     string   `json:"userId,omitempty"`
	UserName   string   `json:"userName,omitempty"`
	Score      *float64 `json:"score,omitempty"`
	SkillMatch *float64 `json:"skillMatch,omitempty"`
	Reason     string   `json:"reason,omitempty"`
}

type UserWorkload struct {
	workload.Workload
	Name       string `json:"name"`
	Email      string `json:"email"`
	Overloaded bool   `json:"overloaded"`
}

type Stats struct {
	UnassignedTasks int            `json:"unassignedTasks"`
	OverloadedUsers int            `json:"overloadedUsers"`
	UserWorkloads   []UserWorkload `json:"userWorkloads"`
	TotalUsers      int            `json:"totalUsers"`
}

func ptr(v float64) *float64 {
	return &v
}
