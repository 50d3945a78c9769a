package alert

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/kazz187/workguild/internal/notification"
	"github.com/kazz187/workguild/internal/task"
	"github.com/kazz187/workguild/internal/user"
	"github.com/kazz187/workguild/internal/workload"
)

// subjectKey identifies the user inside an alert message.
func subjectKey(u *user.User) string {
	if u.Email != "" {
		return u.Email
	}
	return "user:" + u.ID
}

// CheckWorkload alerts every supervisor about each assignable user at or
// above the alert threshold. Supervisors are not alerted about themselves.
func (m *Manager) CheckWorkload(ctx context.Context) ([]*notification.Notification, error) {
	assignable, err := m.users.List(ctx, user.Assignable)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	sups, err := m.supervisors(ctx)
	if err != nil {
		return nil, err
	}
	tasks, err := m.tasks.List(ctx, task.Filter{Statuses: task.ActiveStatuses})
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	index := workload.NewIndex(m.policy, tasks)

	now := m.now()
	dayStart, dayEnd := m.day(now)
	var (
		created []*notification.Notification
		errs    []error
	)
	for _, u := range assignable {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		w := index.Workload(u.ID)
		if !m.policy.NeedsAlert(w.CurrentWeekHours) {
			continue
		}
		key := subjectKey(u)
		for _, sup := range sups {
			if sup.ID == u.ID {
				continue
			}
			dup, err := m.exists(ctx, notification.Filter{
				UserID:        sup.ID,
				Types:         []notification.Type{notification.TypeWorkloadAlert},
				RelatedUserID: u.ID,
				CreatedFrom:   dayStart,
				CreatedBefore: dayEnd,
			})
			if err != nil {
				errs = append(errs, err)
				continue
			}
			if dup {
				continue
			}

			n := m.newNotification(sup, notification.TypeWorkloadAlert, notification.PriorityHigh,
				fmt.Sprintf("Workload alert: %s", u.Name),
				fmt.Sprintf("%s (%s) has %.1fh of %.0fh committed this week (%.1f%% utilization). %s",
					u.Name, key, w.CurrentWeekHours, m.policy.MaxWeeklyHours, w.UtilizationPercentage, workloadRecommendation),
				now)
			n.RelatedUserID = u.ID
			if err := m.create(ctx, n); err != nil {
				slog.ErrorContext(ctx, "failed to create workload alert",
					"recipient_id", sup.ID, "user_id", u.ID, "error", err)
				errs = append(errs, err)
				continue
			}
			created = append(created, n)
		}
	}
	return created, errors.Join(errs...)
}
