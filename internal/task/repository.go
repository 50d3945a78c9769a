package task

import "context"

type Repository interface {
	Create(ctx context.Context, t *Task) error
	Get(ctx context.Context, id string) (*Task, error)
	List(ctx context.Context, filter Filter) ([]*Task, error)
	Update(ctx context.Context, t *Task) error
	// UpdateBatch writes every task or none of them.
	UpdateBatch(ctx context.Context, tasks []*Task) error
	Delete(ctx context.Context, id string) error
}
