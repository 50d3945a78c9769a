package notification

import (
	"context"
	"time"
)

type Repository interface {
	Create(ctx context.Context, n *Notification) error
	Get(ctx context.Context, id string) (*Notification, error)
	// List returns matching notifications, oldest first.
	List(ctx context.Context, filter Filter) ([]*Notification, error)
	MarkRead(ctx context.Context, id string) (*Notification, error)
	// DeleteOlderThan removes notifications of the given types created
	// before cutoff and returns how many were removed.
	DeleteOlderThan(ctx context.Context, types []Type, cutoff time.Time) (int, error)
}
