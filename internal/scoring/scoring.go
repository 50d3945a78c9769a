// Package scoring ranks users as candidates for a task.
//
// A candidate's score is a weighted sum of three signals in [0,1]: how well
// their skill levels cover the task, how much room the task leaves in their
// week, and how closely their past estimates matched reality.
package scoring

import (
	"cmp"
	"slices"

	"github.com/kazz187/workguild/internal/task"
	"github.com/kazz187/workguild/internal/user"
	"github.com/kazz187/workguild/internal/workload"
)

// MaxSkillLevel is the top of the proficiency scale.
const MaxSkillLevel = 5

type Weights struct {
	Skill        float64
	Availability float64
	Efficiency   float64
}

func DefaultWeights() Weights {
	return Weights{Skill: 0.40, Availability: 0.35, Efficiency: 0.25}
}

// Normalized rescales the weights to sum to one. Negative weights are
// treated as zero; an all-zero set falls back to the defaults.
func (w Weights) Normalized() Weights {
	w.Skill = max(0, w.Skill)
	w.Availability = max(0, w.Availability)
	w.Efficiency = max(0, w.Efficiency)
	sum := w.Skill + w.Availability + w.Efficiency
	if sum == 0 {
		return DefaultWeights()
	}
	return Weights{Skill: w.Skill / sum, Availability: w.Availability / sum, Efficiency: w.Efficiency / sum}
}

type Config struct {
	Policy            workload.Policy
	Weights           Weights
	MinimumSkillLevel int
	DefaultEfficiency float64
}

func DefaultConfig() Config {
	return Config{
		Policy:            workload.DefaultPolicy(),
		Weights:           DefaultWeights(),
		MinimumSkillLevel: 3,
		DefaultEfficiency: 0.5,
	}
}

// SkillMatch averages per-skill credit over the required skills. Levels
// below minLevel earn nothing; from minLevel up credit rises linearly to 1
// at MaxSkillLevel. A task with no required skills matches everyone fully.
func SkillMatch(required []string, u *user.User, minLevel int) float64 {
	if len(required) == 0 {
		return 1.0
	}
	floor := float64(minLevel - 1)
	span := MaxSkillLevel - floor
	var sum float64
	for _, skillID := range required {
		level := u.SkillLevel(skillID)
		if level < minLevel || span <= 0 {
			continue
		}
		sum += min(1.0, (float64(level)-floor)/span)
	}
	return sum / float64(len(required))
}

// Availability scores how comfortably taskHours fits on top of current.
//
// Up to the optimal hours the score rewards a light current load. Between
// optimal and max it falls linearly from the value the first branch gives
// at the optimal boundary down to zero at max, so the curve has no jump.
// Anything reaching or passing max scores zero.
func Availability(p workload.Policy, current, taskHours float64) float64 {
	current = max(0, current)
	taskHours = max(0, taskHours)
	newTotal := current + taskHours
	if newTotal > p.MaxWeeklyHours {
		return 0
	}
	if newTotal <= p.OptimalWeeklyHours {
		return clamp01(1 - current/p.OptimalWeeklyHours)
	}
	band := p.MaxWeeklyHours - p.OptimalWeeklyHours
	if band <= 0 {
		return 0
	}
	boundary := clamp01(1 - (p.OptimalWeeklyHours-taskHours)/p.OptimalWeeklyHours)
	return boundary * (p.MaxWeeklyHours - newTotal) / band
}

// Efficiency is the mean of min(1, estimated/actual) over completed tasks
// that carry both figures, or def when there are none.
func Efficiency(history []*task.Task, def float64) float64 {
	var sum float64
	n := 0
	for _, t := range history {
		if t.Status != task.StatusCompleted || t.ActualHours == nil {
			continue
		}
		est, actual := t.EstimatedHours, *t.ActualHours
		if est <= 0 || actual <= 0 {
			continue
		}
		sum += min(1.0, est/actual)
		n++
	}
	if n == 0 {
		return def
	}
	return sum / float64(n)
}

// EfficiencyByUser computes Efficiency for every assignee found in tasks.
// Users absent from the result should be scored with the default.
func EfficiencyByUser(tasks []*task.Task, def float64) map[string]float64 {
	byUser := make(map[string][]*task.Task)
	for _, t := range tasks {
		if t.IsAssigned() && t.Status == task.StatusCompleted {
			byUser[t.AssigneeID] = append(byUser[t.AssigneeID], t)
		}
	}
	out := make(map[string]float64, len(byUser))
	for id, history := range byUser {
		out[id] = Efficiency(history, def)
	}
	return out
}

type Breakdown struct {
	SkillMatch   float64 `json:"skillMatch"`
	Availability float64 `json:"availability"`
	Efficiency   float64 `json:"efficiency"`
	Total        float64 `json:"score"`
}

// Eligible reports whether the candidate may be ranked at all.
func (b Breakdown) Eligible(requiresSkills bool) bool {
	if b.Availability <= 0 || b.Total <= 0 {
		return false
	}
	return !requiresSkills || b.SkillMatch > 0
}

type Scorer struct {
	cfg     Config
	weights Weights
}

func NewScorer(cfg Config) *Scorer {
	return &Scorer{cfg: cfg, weights: cfg.Weights.Normalized()}
}

func (s *Scorer) Config() Config {
	return s.cfg
}

// Score rates u for t given u's current hours and efficiency.
func (s *Scorer) Score(t *task.Task, u *user.User, currentHours, efficiency float64) Breakdown {
	b := Breakdown{
		SkillMatch:   SkillMatch(t.RequiredSkillIDs, u, s.cfg.MinimumSkillLevel),
		Availability: Availability(s.cfg.Policy, currentHours, t.Hours()),
		Efficiency:   clamp01(efficiency),
	}
	b.Total = s.weights.Skill*b.SkillMatch + s.weights.Availability*b.Availability + s.weights.Efficiency*b.Efficiency
	return b
}

type Candidate struct {
	User *user.User
	Breakdown
}

// Inputs supplies the per-user figures a ranking needs.
type Inputs interface {
	Hours(userID string) float64
	Efficiency(userID string) float64
}

// Best returns the highest-scoring eligible candidate for t, ties going to
// the lowest user id. accept, when set, vetoes individual users.
func (s *Scorer) Best(t *task.Task, users []*user.User, in Inputs, accept func(*user.User) bool) (Candidate, bool) {
	ranked := s.Rank(t, users, in, accept)
	if len(ranked) == 0 {
		return Candidate{}, false
	}
	return ranked[0], true
}

// Rank returns every eligible candidate, best first.
func (s *Scorer) Rank(t *task.Task, users []*user.User, in Inputs, accept func(*user.User) bool) []Candidate {
	requiresSkills := len(t.RequiredSkillIDs) > 0
	var out []Candidate
	for _, u := range users {
		if accept != nil && !accept(u) {
			continue
		}
		b := s.Score(t, u, in.Hours(u.ID), in.Efficiency(u.ID))
		if !b.Eligible(requiresSkills) {
			continue
		}
		out = append(out, Candidate{User: u, Breakdown: b})
	}
	slices.SortFunc(out, func(a, b Candidate) int {
		if c := cmp.Compare(b.Total, a.Total); c != 0 {
			return c
		}
		return cmp.Compare(a.User.ID, b.User.ID)
	})
	return out
}

func clamp01(v float64) float64 {
	return min(1, max(0, v))
}
