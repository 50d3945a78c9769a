package repositoryimpl

import (
	"context"

	"github.com/kazz187/workguild/internal/pushsubscription"
	"github.com/kazz187/workguild/pkg/storage"
	"github.com/kazz187/workguild/pkg/yamlstore"
)

const pushSubscriptionsPrefix = "push_subscriptions"

type YAMLRepository struct {
	subscriptions *yamlstore.Collection[pushsubscription.Subscription]
}

func NewYAMLRepository(s storage.Storage) *YAMLRepository {
	return &YAMLRepository{
		subscriptions: yamlstore.New(s, pushSubscriptionsPrefix, "push subscription",
			func(s *pushsubscription.Subscription) string { return s.ID }),
	}
}

func (r *YAMLRepository) Create(ctx context.Context, s *pushsubscription.Subscription) error {
	dups, err := r.subscriptions.All(ctx, func(existing *pushsubscription.Subscription) bool {
		return existing.Endpoint == s.Endpoint
	})
	if err != nil {
		return err
	}
	for _, d := range dups {
		if err := r.subscriptions.Delete(ctx, d.ID); err != nil {
			return err
		}
	}
	return r.subscriptions.Create(ctx, s)
}

func (r *YAMLRepository) ListByUser(ctx context.Context, userID string) ([]*pushsubscription.Subscription, error) {
	return r.subscriptions.All(ctx, func(s *pushsubscription.Subscription) bool {
		return s.UserID == userID
	})
}

func (r *YAMLRepository) Delete(ctx context.Context, id string) error {
	return r.subscriptions.Delete(ctx, id)
}
