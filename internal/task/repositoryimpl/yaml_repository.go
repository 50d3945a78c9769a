package repositoryimpl

import (
	"context"

	"github.com/kazz187/workguild/internal/task"
	"github.com/kazz187/workguild/pkg/storage"
	"github.com/kazz187/workguild/pkg/yamlstore"
)

const tasksPrefix = "tasks"

type YAMLRepository struct {
	tasks *yamlstore.Collection[task.Task]
}

func NewYAMLRepository(s storage.Storage) *YAMLRepository {
	return &YAMLRepository{
		tasks: yamlstore.New(s, tasksPrefix, "task", func(t *task.Task) string { return t.ID }),
	}
}

func (r *YAMLRepository) Create(ctx context.Context, t *task.Task) error {
	return r.tasks.Create(ctx, t)
}

func (r *YAMLRepository) Get(ctx context.Context, id string) (*task.Task, error) {
	return r.tasks.Get(ctx, id)
}

func (r *YAMLRepository) List(ctx context.Context, filter task.Filter) ([]*task.Task, error) {
	return r.tasks.All(ctx, filter.Matches)
}

func (r *YAMLRepository) Update(ctx context.Context, t *task.Task) error {
	return r.tasks.Update(ctx, t)
}

func (r *YAMLRepository) UpdateBatch(ctx context.Context, tasks []*task.Task) error {
	return r.tasks.UpdateBatch(ctx, tasks)
}

func (r *YAMLRepository) Delete(ctx context.Context, id string) error {
	return r.tasks.Delete(ctx, id)
}
