package skill

import "context"

type Repository interface {
	Create(ctx context.Context, s *Skill) error
	Get(ctx context.Context, id string) (*Skill, error)
	List(ctx context.Context) ([]*Skill, error)
	FindByName(ctx context.Context, name string) (*Skill, error)
	Delete(ctx context.Context, id string) error
}
