package user

import "context"

type Repository interface {
	Create(ctx context.Context, u *User) error
	Get(ctx context.Context, id string) (*User, error)
	// List returns users holding any capability in mask, ordered by id. A
	// zero mask returns everyone.
	List(ctx context.Context, mask Capability) ([]*User, error)
	Update(ctx context.Context, u *User) error
	Delete(ctx context.Context, id string) error
}
