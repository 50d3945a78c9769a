package repositoryimpl

import (
	"context"
	"sort"
	"time"

	"github.com/kazz187/workguild/internal/notification"
	"github.com/kazz187/workguild/pkg/storage"
	"github.com/kazz187/workguild/pkg/yamlstore"
)

const notificationsPrefix = "notifications"

type YAMLRepository struct {
	notifications *yamlstore.Collection[notification.Notification]
	now           func() time.Time
}

func NewYAMLRepository(s storage.Storage) *YAMLRepository {
	return &YAMLRepository{
		notifications: yamlstore.New(s, notificationsPrefix, "notification",
			func(n *notification.Notification) string { return n.ID }),
		now: time.Now,
	}
}

func (r *YAMLRepository) Create(ctx context.Context, n *notification.Notification) error {
	return r.notifications.Create(ctx, n)
}

func (r *YAMLRepository) Get(ctx context.Context, id string) (*notification.Notification, error) {
	return r.notifications.Get(ctx, id)
}

func (r *YAMLRepository) List(ctx context.Context, filter notification.Filter) ([]*notification.Notification, error) {
	found, err := r.notifications.All(ctx, filter.Matches)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(found, func(i, j int) bool {
		return found[i].CreatedAt.Before(found[j].CreatedAt)
	})
	return found, nil
}

func (r *YAMLRepository) MarkRead(ctx context.Context, id string) (*notification.Notification, error) {
	n, err := r.notifications.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if n.IsRead {
		return n, nil
	}
	n.IsRead = true
	n.UpdatedAt = r.now()
	if err := r.notifications.Update(ctx, n); err != nil {
		return nil, err
	}
	return n, nil
}

func (r *YAMLRepository) DeleteOlderThan(ctx context.Context, types []notification.Type, cutoff time.Time) (int, error) {
	expired, err := r.notifications.All(ctx, notification.Filter{Types: types, CreatedBefore: cutoff}.Matches)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, n := range expired {
		if err := r.notifications.Delete(ctx, n.ID); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}
