package repositoryimpl

import (
	"context"

	"github.com/kazz187/workguild/internal/project"
	"github.com/kazz187/workguild/pkg/storage"
	"github.com/kazz187/workguild/pkg/yamlstore"
)

const projectsPrefix = "projects"

type YAMLRepository struct {
	projects *yamlstore.Collection[project.Project]
}

func NewYAMLRepository(s storage.Storage) *YAMLRepository {
	return &YAMLRepository{
		projects: yamlstore.New(s, projectsPrefix, "project", func(p *project.Project) string { return p.ID }),
	}
}

func (r *YAMLRepository) Create(ctx context.Context, p *project.Project) error {
	return r.projects.Create(ctx, p)
}

func (r *YAMLRepository) Get(ctx context.Context, id string) (*project.Project, error) {
	return r.projects.Get(ctx, id)
}

func (r *YAMLRepository) List(ctx context.Context) ([]*project.Project, error) {
	return r.projects.All(ctx, nil)
}
