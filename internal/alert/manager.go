// Package alert raises workload and delay notifications for supervisors and
// expires them after a retention window.
//
// Every check is safe to repeat: a workload alert is raised at most once per
// (supervisor, user, calendar day) and a delay alert at most once per
// (supervisor, task, calendar day) and never twice for the same task within
// 24 hours.
package alert

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/felixgeelhaar/fortify/retry"
	"github.com/oklog/ulid/v2"

	"github.com/kazz187/workguild/internal/notification"
	"github.com/kazz187/workguild/internal/project"
	"github.com/kazz187/workguild/internal/task"
	"github.com/kazz187/workguild/internal/user"
	"github.com/kazz187/workguild/internal/workload"
	"github.com/kazz187/workguild/pkg/cerr"
)

const (
	DefaultRetention = 7 * 24 * time.Hour

	workloadRecommendation = "Consider redistributing some of their tasks or adjusting deadlines."
	delayWindow            = 24 * time.Hour
)

type Manager struct {
	users         user.Repository
	tasks         task.Repository
	projects      project.Repository
	notifications notification.Repository
	policy        workload.Policy
	retention     time.Duration
	location      *time.Location
	retryConfig   retry.Config
	now           func() time.Time
}

type Option func(*Manager)

func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithLocation sets the time zone whose calendar day bounds deduplication.
func WithLocation(loc *time.Location) Option {
	return func(m *Manager) {
		if loc != nil {
			m.location = loc
		}
	}
}

func WithRetention(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.retention = d
		}
	}
}

func WithRetryConfig(cfg retry.Config) Option {
	return func(m *Manager) { m.retryConfig = cfg }
}

func NewManager(
	users user.Repository,
	tasks task.Repository,
	projects project.Repository,
	notifications notification.Repository,
	policy workload.Policy,
	opts ...Option,
) *Manager {
	m := &Manager{
		users:         users,
		tasks:         tasks,
		projects:      projects,
		notifications: notifications,
		policy:        policy,
		retention:     DefaultRetention,
		location:      time.Local,
		retryConfig: retry.Config{
			MaxAttempts:   3,
			InitialDelay:  50 * time.Millisecond,
			BackoffPolicy: retry.BackoffExponential,
		},
		now: time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// day returns the bounds of the local calendar day containing t.
func (m *Manager) day(t time.Time) (time.Time, time.Time) {
	y, mo, d := t.In(m.location).Date()
	start := time.Date(y, mo, d, 0, 0, 0, 0, m.location)
	return start, start.AddDate(0, 0, 1)
}

func (m *Manager) supervisors(ctx context.Context) ([]*user.User, error) {
	sups, err := m.users.List(ctx, user.Supervisor)
	if err != nil {
		return nil, fmt.Errorf("failed to list supervisors: %w", err)
	}
	return sups, nil
}

func (m *Manager) exists(ctx context.Context, filter notification.Filter) (bool, error) {
	found, err := m.notifications.List(ctx, filter)
	if err != nil {
		return false, err
	}
	return len(found) > 0, nil
}

func (m *Manager) create(ctx context.Context, n *notification.Notification) error {
	r := retry.New[struct{}](m.retryConfig)
	_, err := r.Do(ctx, func(ctx context.Context) (struct{}, error) {
		err := m.notifications.Create(ctx, n)
		if cerr.IsCode(err, cerr.AlreadyExists) {
			return struct{}{}, nil
		}
		return struct{}{}, err
	})
	return err
}

func (m *Manager) newNotification(recipient *user.User, typ notification.Type, priority notification.Priority, title, message string, now time.Time) *notification.Notification {
	return &notification.Notification{
		ID:        ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()).String(),
		UserID:    recipient.ID,
		Type:      typ,
		Title:     title,
		Message:   message,
		Priority:  priority,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// CheckAll runs both checks and returns every alert created. A failure in
// one check does not prevent the other.
func (m *Manager) CheckAll(ctx context.Context) ([]*notification.Notification, error) {
	workloadAlerts, werr := m.CheckWorkload(ctx)
	delayAlerts, derr := m.CheckDelays(ctx)
	return append(workloadAlerts, delayAlerts...), errors.Join(werr, derr)
}

// Cleanup deletes workload and delay alerts older than the retention window
// and returns how many were removed.
func (m *Manager) Cleanup(ctx context.Context) (int, error) {
	cutoff := m.now().Add(-m.retention)
	removed, err := m.notifications.DeleteOlderThan(ctx, notification.AlertTypes, cutoff)
	if err != nil {
		return removed, err
	}
	if removed > 0 {
		slog.InfoContext(ctx, "expired alerts removed", "removed", removed, "cutoff", cutoff)
	}
	return removed, nil
}
