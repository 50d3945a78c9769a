package user

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestCapabilities(t *testing.T) {
	tests := []struct {
		name       string
		caps       Capability
		assignable bool
		supervisor bool
	}{
		{name: "collaborator", caps: Collaborator, assignable: true},
		{name: "manager", caps: Manager, assignable: true, supervisor: true},
		{name: "project manager", caps: ProjectManager, supervisor: true},
		{name: "collaborator and project manager", caps: Collaborator | ProjectManager, assignable: true, supervisor: true},
		{name: "none"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := &User{Capabilities: tt.caps}
			assert.Equal(t, tt.assignable, u.IsAssignable())
			assert.Equal(t, tt.supervisor, u.IsSupervisor())
		})
	}
}

func TestHasCapability(t *testing.T) {
	c := Collaborator | Manager
	assert.True(t, c.HasCapability(Manager))
	assert.True(t, c.HasCapability(Collaborator|Manager))
	assert.False(t, c.HasCapability(ProjectManager))
	assert.False(t, c.HasCapability(0))
}

func TestCapabilityYAML(t *testing.T) {
	u := User{ID: "u1", Capabilities: Collaborator | ProjectManager, SkillLevels: map[string]int{"go": 4}}
	data, err := yaml.Marshal(&u)
	require.NoError(t, err)
	assert.Contains(t, string(data), "- collaborator\n")
	assert.Contains(t, string(data), "- project_manager\n")

	var back User
	require.NoError(t, yaml.Unmarshal(data, &back))
	assert.Equal(t, u.Capabilities, back.Capabilities)
	assert.Equal(t, 4, back.SkillLevel("go"))
	assert.Zero(t, back.SkillLevel("rust"))

	assert.Error(t, yaml.Unmarshal([]byte("capabilities: [wizard]\n"), &back))
}
