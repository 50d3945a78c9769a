package alert

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kazz187/workguild/internal/notification"
	"github.com/kazz187/workguild/internal/task"
	"github.com/kazz187/workguild/internal/user"
	"github.com/kazz187/workguild/pkg/cerr"
)

// DaysLate counts whole days elapsed since due.
func DaysLate(due, now time.Time) int {
	if !now.After(due) {
		return 0
	}
	return int(now.Sub(due) / (24 * time.Hour))
}

// CheckDelays alerts every supervisor about each assigned, unfinished task
// whose due date has passed.
func (m *Manager) CheckDelays(ctx context.Context) ([]*notification.Notification, error) {
	now := m.now()
	overdue, err := m.tasks.List(ctx, task.Filter{DueBefore: &now})
	if err != nil {
		return nil, fmt.Errorf("failed to list overdue tasks: %w", err)
	}
	sups, err := m.supervisors(ctx)
	if err != nil {
		return nil, err
	}
	everyone, err := m.users.List(ctx, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	names := make(map[string]string, len(everyone))
	for _, u := range everyone {
		names[u.ID] = u.Name
	}
	projectNames := map[string]string{}

	dayStart, dayEnd := m.day(now)
	var (
		created []*notification.Notification
		errs    []error
	)
	for _, t := range overdue {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if !t.IsOverdue(now) {
			continue
		}
		projectName := m.projectName(ctx, projectNames, t.ProjectID)
		for _, sup := range sups {
			dup, err := m.delayAlertExists(ctx, sup, t, now, dayStart, dayEnd)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			if dup {
				continue
			}

			days := DaysLate(*t.DueDate, now)
			n := m.newNotification(sup, notification.TypeDelayAlert, notification.PriorityUrgent,
				fmt.Sprintf("Delay alert: %s", t.Title),
				fmt.Sprintf("Task %q assigned to %s is %d day(s) overdue (due %s) in project %s.",
					t.Title, names[t.AssigneeID], days, t.DueDate.In(m.location).Format(time.DateOnly), projectName),
				now)
			n.RelatedTaskID = t.ID
			n.RelatedProjectID = t.ProjectID
			if err := m.create(ctx, n); err != nil {
				slog.ErrorContext(ctx, "failed to create delay alert",
					"recipient_id", sup.ID, "task_id", t.ID, "error", err)
				errs = append(errs, err)
				continue
			}
			created = append(created, n)
		}
	}
	return created, errors.Join(errs...)
}

// delayAlertExists applies both duplicate rules: one mentioning the title
// today, or one about the same task within the last 24 hours.
func (m *Manager) delayAlertExists(ctx context.Context, sup *user.User, t *task.Task, now, dayStart, dayEnd time.Time) (bool, error) {
	delayType := []notification.Type{notification.TypeDelayAlert}
	if t.Title != "" {
		dup, err := m.exists(ctx, notification.Filter{
			UserID:          sup.ID,
			Types:           delayType,
			MessageContains: t.Title,
			CreatedFrom:     dayStart,
			CreatedBefore:   dayEnd,
		})
		if err != nil || dup {
			return dup, err
		}
	}
	return m.exists(ctx, notification.Filter{
		UserID:        sup.ID,
		Types:         delayType,
		RelatedTaskID: t.ID,
		CreatedFrom:   now.Add(-delayWindow),
	})
}

func (m *Manager) projectName(ctx context.Context, cache map[string]string, projectID string) string {
	if projectID == "" {
		return "(none)"
	}
	if name, ok := cache[projectID]; ok {
		return name
	}
	name := projectID
	p, err := m.projects.Get(ctx, projectID)
	switch {
	case err == nil:
		name = p.Name
	case !cerr.IsCode(err, cerr.NotFound):
		slog.WarnContext(ctx, "failed to load project for delay alert", "project_id", projectID, "error", err)
	}
	cache[projectID] = name
	return name
}
