package notification

import (
	"slices"
	"strings"
	"time"
)

type Type string

const (
	TypeWorkloadAlert Type = "workload_alert"
	TypeDelayAlert    Type = "delay_alert"
)

// AlertTypes are the types removed by the retention cleanup.
var AlertTypes = []Type{TypeWorkloadAlert, TypeDelayAlert}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Notification is addressed to UserID, the supervisor being alerted.
// RelatedUserID and RelatedTaskID name what the alert is about.
type Notification struct {
	ID               string    `yaml:"id" json:"id"`
	UserID           string    `yaml:"user_id" json:"userId"`
	Type             Type      `yaml:"type" json:"type"`
	Title            string    `yaml:"title" json:"title"`
	Message          string    `yaml:"message" json:"message"`
	Priority         Priority  `yaml:"priority" json:"priority"`
	IsRead           bool      `yaml:"is_read" json:"isRead"`
	RelatedUserID    string    `yaml:"related_user_id,omitempty" json:"relatedUserId,omitempty"`
	RelatedTaskID    string    `yaml:"related_task_id,omitempty" json:"relatedTaskId,omitempty"`
	RelatedProjectID string    `yaml:"related_project_id,omitempty" json:"relatedProjectId,omitempty"`
	CreatedAt        time.Time `yaml:"created_at" json:"createdAt"`
	UpdatedAt        time.Time `yaml:"updated_at" json:"updatedAt"`
}

// Filter narrows a listing. Zero fields do not filter; CreatedFrom is
// inclusive and CreatedBefore exclusive.
type Filter struct {
	UserID          string
	Types           []Type
	UnreadOnly      bool
	RelatedUserID   string
	RelatedTaskID   string
	MessageContains string
	CreatedFrom     time.Time
	CreatedBefore   time.Time
}

func (f Filter) Matches(n *Notification) bool {
	if f.UserID != "" && n.UserID != f.UserID {
		return false
	}
	if len(f.Types) > 0 && !slices.Contains(f.Types, n.Type) {
		return false
	}
	if f.UnreadOnly && n.IsRead {
		return false
	}
	if f.RelatedUserID != "" && n.RelatedUserID != f.RelatedUserID {
		return false
	}
	if f.RelatedTaskID != "" && n.RelatedTaskID != f.RelatedTaskID {
		return false
	}
	if f.MessageContains != "" && !strings.Contains(n.Message, f.MessageContains) {
		return false
	}
	if !f.CreatedFrom.IsZero() && n.CreatedAt.Before(f.CreatedFrom) {
		return false
	}
	if !f.CreatedBefore.IsZero() && !n.CreatedAt.Before(f.CreatedBefore) {
		return false
	}
	return true
}
