package repositoryimpl

import (
	"context"
	"strings"

	"github.com/kazz187/workguild/internal/skill"
	"github.com/kazz187/workguild/pkg/cerr"
	"github.com/kazz187/workguild/pkg/storage"
	"github.com/kazz187/workguild/pkg/yamlstore"
)

const skillsPrefix = "skills"

type YAMLRepository struct {
	skills *yamlstore.Collection[skill.Skill]
}

func NewYAMLRepository(s storage.Storage) *YAMLRepository {
	return &YAMLRepository{
		skills: yamlstore.New(s, skillsPrefix, "skill", func(s *skill.Skill) string { return s.ID }),
	}
}

func (r *YAMLRepository) Create(ctx context.Context, s *skill.Skill) error {
	if _, err := r.FindByName(ctx, s.Name); err == nil {
		return cerr.NewError(cerr.AlreadyExists, "skill name already in use", nil)
	} else if !cerr.IsCode(err, cerr.NotFound) {
		return err
	}
	return r.skills.Create(ctx, s)
}

func (r *YAMLRepository) Get(ctx context.Context, id string) (*skill.Skill, error) {
	return r.skills.Get(ctx, id)
}

func (r *YAMLRepository) List(ctx context.Context) ([]*skill.Skill, error) {
	return r.skills.All(ctx, nil)
}

// FindByName matches case-insensitively.
func (r *YAMLRepository) FindByName(ctx context.Context, name string) (*skill.Skill, error) {
	found, err := r.skills.All(ctx, func(s *skill.Skill) bool {
		return strings.EqualFold(s.Name, name)
	})
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, cerr.NewError(cerr.NotFound, "skill not found", nil)
	}
	return found[0], nil
}

func (r *YAMLRepository) Delete(ctx context.Context, id string) error {
	return r.skills.Delete(ctx, id)
}
