package repositoryimpl

import (
	"context"

	"github.com/kazz187/workguild/internal/user"
	"github.com/kazz187/workguild/pkg/storage"
	"github.com/kazz187/workguild/pkg/yamlstore"
)

const usersPrefix = "users"

type YAMLRepository struct {
	users *yamlstore.Collection[user.User]
}

func NewYAMLRepository(s storage.Storage) *YAMLRepository {
	return &YAMLRepository{
		users: yamlstore.New(s, usersPrefix, "user", func(u *user.User) string { return u.ID }),
	}
}

func (r *YAMLRepository) Create(ctx context.Context, u *user.User) error {
	return r.users.Create(ctx, u)
}

func (r *YAMLRepository) Get(ctx context.Context, id string) (*user.User, error) {
	return r.users.Get(ctx, id)
}

func (r *YAMLRepository) List(ctx context.Context, mask user.Capability) ([]*user.User, error) {
	return r.users.All(ctx, func(u *user.User) bool {
		return mask == 0 || u.Capabilities.HasAny(mask)
	})
}

func (r *YAMLRepository) Update(ctx context.Context, u *user.User) error {
	return r.users.Update(ctx, u)
}

func (r *YAMLRepository) Delete(ctx context.Context, id string) error {
	return r.users.Delete(ctx, id)
}
