package pushsubscription

import "context"

type Repository interface {
	// Create stores s, replacing any subscription with the same endpoint.
	Create(ctx context.Context, s *Subscription) error
	ListByUser(ctx context.Context, userID string) ([]*Subscription, error)
	Delete(ctx context.Context, id string) error
}
