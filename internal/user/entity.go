package user

import (
	"encoding/json"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Capability is a set of roles held by a user.
type Capability uint8

const (
	Collaborator Capability = 1 << iota
	Manager
	ProjectManager
)

var capabilityNames = []struct {
	c    Capability
	name string
}{
	{Collaborator, "collaborator"},
	{Manager, "manager"},
	{ProjectManager, "project_manager"},
}

// Assignable is the mask of capabilities that can receive tasks.
const Assignable = Collaborator | Manager

// Supervisor is the mask of capabilities that receive alerts about others.
const Supervisor = Manager | ProjectManager

func (c Capability) HasCapability(want Capability) bool {
	return want != 0 && c&want == want
}

func (c Capability) HasAny(mask Capability) bool {
	return c&mask != 0
}

func (c Capability) Strings() []string {
	var out []string
	for _, n := range capabilityNames {
		if c&n.c != 0 {
			out = append(out, n.name)
		}
	}
	return out
}

func ParseCapability(name string) (Capability, error) {
	for _, n := range capabilityNames {
		if n.name == name {
			return n.c, nil
		}
	}
	return 0, fmt.Errorf("unknown capability %q", name)
}

func (c Capability) MarshalJSON() ([]byte, error) {
	names := c.Strings()
	if names == nil {
		names = []string{}
	}
	return json.Marshal(names)
}

// MarshalYAML stores capabilities as a list of role names.
func (c Capability) MarshalYAML() (any, error) {
	return c.Strings(), nil
}

func (c *Capability) UnmarshalYAML(value *yaml.Node) error {
	var names []string
	if err := value.Decode(&names); err != nil {
		return err
	}
	*c = 0
	for _, name := range names {
		v, err := ParseCapability(name)
		if err != nil {
			return err
		}
		*c |= v
	}
	return nil
}

type User struct {
	ID           string         `yaml:"id" json:"id"`
	Name         string         `yaml:"name" json:"name"`
	Email        string         `yaml:"email" json:"email"`
	Capabilities Capability     `yaml:"capabilities" json:"capabilities"`
	SkillLevels  map[string]int `yaml:"skill_levels" json:"skillLevels"`
	CreatedAt    time.Time      `yaml:"created_at" json:"createdAt"`
	UpdatedAt    time.Time      `yaml:"updated_at" json:"updatedAt"`
}

func (u *User) HasCapability(c Capability) bool {
	return u.Capabilities.HasCapability(c)
}

// IsAssignable reports whether the user can receive tasks.
func (u *User) IsAssignable() bool {
	return u.Capabilities.HasAny(Assignable)
}

// IsSupervisor reports whether the user receives workload and delay alerts.
// Supervision is global: a supervisor oversees every assignable user.
func (u *User) IsSupervisor() bool {
	return u.Capabilities.HasAny(Supervisor)
}

// SkillLevel returns the proficiency for a skill, zero when absent.
func (u *User) SkillLevel(skillID string) int {
	return u.SkillLevels[skillID]
}
