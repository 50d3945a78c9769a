// Package app wires storage, repositories and services from an Env. Both
// the server and the one-shot CLI build on it.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/kazz187/workguild/internal/alert"
	"github.com/kazz187/workguild/internal/assignment"
	"github.com/kazz187/workguild/internal/config"
	"github.com/kazz187/workguild/internal/eventbus"
	"github.com/kazz187/workguild/internal/metrics"
	"github.com/kazz187/workguild/internal/notification"
	notificationrepo "github.com/kazz187/workguild/internal/notification/repositoryimpl"
	"github.com/kazz187/workguild/internal/orchestrator"
	"github.com/kazz187/workguild/internal/project"
	projectrepo "github.com/kazz187/workguild/internal/project/repositoryimpl"
	"github.com/kazz187/workguild/internal/pushsubscription"
	pushsubrepo "github.com/kazz187/workguild/internal/pushsubscription/repositoryimpl"
	"github.com/kazz187/workguild/internal/scoring"
	"github.com/kazz187/workguild/internal/skill"
	skillrepo "github.com/kazz187/workguild/internal/skill/repositoryimpl"
	"github.com/kazz187/workguild/internal/task"
	taskrepo "github.com/kazz187/workguild/internal/task/repositoryimpl"
	"github.com/kazz187/workguild/internal/user"
	userrepo "github.com/kazz187/workguild/internal/user/repositoryimpl"
	"github.com/kazz187/workguild/internal/workload"
	"github.com/kazz187/workguild/pkg/clog"
	"github.com/kazz187/workguild/pkg/storage"
)

type App struct {
	Env     *config.Env
	Storage storage.Storage
	Bus     *eventbus.Bus
	Metrics *metrics.Metrics

	Tasks         task.Repository
	Users         user.Repository
	Projects      project.Repository
	Skills        skill.Repository
	Notifications notification.Repository
	PushSubs      pushsubscription.Repository

	Tracker      *workload.Tracker
	Engine       *assignment.Engine
	Alerts       *alert.Manager
	Orchestrator *orchestrator.Orchestrator
}

// SetupLogger installs the default logger: colored text for ENV=local,
// JSON otherwise.
func SetupLogger(env *config.Env, w io.Writer) {
	level := env.SlogLevel()
	var handler slog.Handler
	if env.Env == "local" {
		handler = clog.NewTextHandler(w, clog.WithLevel(level))
	} else {
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	}
	slog.SetDefault(slog.New(clog.NewAttributesHandler(handler)))
}

func NewStorage(ctx context.Context, env config.StorageEnv) (storage.Storage, error) {
	switch env.Type {
	case "s3":
		s, err := storage.NewS3Storage(ctx, storage.S3Config{
			Bucket:   env.S3Bucket,
			Prefix:   env.S3Prefix,
			Region:   env.S3Region,
			Endpoint: env.S3Endpoint,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create S3 storage: %w", err)
		}
		return s, nil
	case "sqlite":
		s, err := storage.NewSQLiteStorage(env.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("failed to create SQLite storage: %w", err)
		}
		return s, nil
	case "local", "":
		s, err := storage.NewLocalStorage(env.BaseDir)
		if err != nil {
			return nil, fmt.Errorf("failed to create local storage: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown STORAGE_TYPE %q", env.Type)
	}
}

func Policy(env config.PolicyEnv) workload.Policy {
	return workload.Policy{
		MaxWeeklyHours:      env.MaxWeeklyHours,
		OptimalWeeklyHours:  env.OptimalWeeklyHours,
		AlertThresholdHours: env.AlertThresholdHours,
	}
}

func ScoringConfig(env config.PolicyEnv) scoring.Config {
	return scoring.Config{
		Policy: Policy(env),
		Weights: scoring.Weights{
			Skill:        env.WeightSkill,
			Availability: env.WeightAvailability,
			Efficiency:   env.WeightEfficiency,
		},
		MinimumSkillLevel: env.MinimumSkillLevel,
		DefaultEfficiency: env.DefaultEfficiency,
	}
}

func Schedule(env config.SchedulerEnv) orchestrator.Schedule {
	return orchestrator.Schedule{
		Assign:       env.AssignInterval,
		Redistribute: env.RedistributeInterval,
		AlertCheck:   env.AlertCheckInterval,
		Cleanup:      env.CleanupInterval,
	}
}

// New builds every service on top of store.
func New(env *config.Env, store storage.Storage) (*App, error) {
	loc, err := env.Location()
	if err != nil {
		return nil, err
	}

	a := &App{
		Env:           env,
		Storage:       store,
		Bus:           eventbus.New(),
		Metrics:       metrics.New(),
		Tasks:         taskrepo.NewYAMLRepository(store),
		Users:         userrepo.NewYAMLRepository(store),
		Projects:      projectrepo.NewYAMLRepository(store),
		Skills:        skillrepo.NewYAMLRepository(store),
		Notifications: notificationrepo.NewYAMLRepository(store),
		PushSubs:      pushsubrepo.NewYAMLRepository(store),
	}

	policy := Policy(env.PolicyEnv)
	a.Tracker = workload.NewTracker(a.Tasks, policy)
	a.Engine = assignment.NewEngine(a.Tasks, a.Users, scoring.NewScorer(ScoringConfig(env.PolicyEnv)),
		assignment.WithMaxTasksPerRun(env.MaxTasksPerRun),
	)
	a.Alerts = alert.NewManager(a.Users, a.Tasks, a.Projects, a.Notifications, policy,
		alert.WithLocation(loc),
		alert.WithRetention(env.AlertRetention),
	)
	a.Orchestrator = orchestrator.New(a.Bus, a.Engine, a.Alerts, a.Tasks, a.Users, a.Metrics, Schedule(env.SchedulerEnv))
	return a, nil
}

// Close releases the storage when it holds resources.
func (a *App) Close() error {
	if c, ok := a.Storage.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
