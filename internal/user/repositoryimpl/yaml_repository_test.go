package repositoryimpl

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kazz187/workguild/internal/user"
	"github.com/kazz187/workguild/pkg/storage"
)

func TestYAMLRepository_ListByCapability(t *testing.T) {
	ctx := context.Background()
	s, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	repo := NewYAMLRepository(s)

	for _, u := range []*user.User{
		{ID: "u3", Capabilities: user.ProjectManager},
		{ID: "u1", Capabilities: user.Collaborator},
		{ID: "u2", Capabilities: user.Manager},
	} {
		require.NoError(t, repo.Create(ctx, u))
	}

	assignable, err := repo.List(ctx, user.Assignable)
	require.NoError(t, err)
	require.Len(t, assignable, 2)
	assert.Equal(t, "u1", assignable[0].ID)
	assert.Equal(t, "u2", assignable[1].ID)

	supervisors, err := repo.List(ctx, user.Supervisor)
	require.NoError(t, err)
	assert.Len(t, supervisors, 2)

	everyone, err := repo.List(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, everyone, 3)
}
