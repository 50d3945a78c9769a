package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/kazz187/workguild/pkg/clog"
)

type BaseEnv struct {
	Env      string `envconfig:"ENV" default:"local"`
	HTTPHost string `envconfig:"HTTP_HOST" default:""`
	HTTPPort string `envconfig:"HTTP_PORT" default:"3200"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	APIKey   string `envconfig:"API_KEY" required:"true"`
	// ShutdownTimeout bounds how long in-flight requests may take to finish.
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
	// Timezone decides where an alert's "today" starts and ends.
	Timezone string `envconfig:"TIMEZONE" default:"Local"`
}

type StorageEnv struct {
	Type    string `envconfig:"STORAGE_TYPE" default:"local"`
	BaseDir string `envconfig:"STORAGE_BASE_DIR" default:".workguild/data"`
	// S3 settings (used when Type == "s3")
	S3Bucket string `envconfig:"S3_BUCKET"`
	S3Prefix string `envconfig:"S3_PREFIX" default:"workguild/"`
	S3Region string `envconfig:"S3_REGION" default:"ap-northeast-1"`
	// S3Endpoint points at an S3-compatible server such as MinIO.
	S3Endpoint string `envconfig:"S3_ENDPOINT"`
	// SQLite settings (used when Type == "sqlite")
	SQLitePath string `envconfig:"SQLITE_PATH" default:".workguild/workguild.db"`
}

type PolicyEnv struct {
	MaxWeeklyHours      float64       `envconfig:"MAX_WEEKLY_HOURS" default:"40"`
	OptimalWeeklyHours  float64       `envconfig:"OPTIMAL_WEEKLY_HOURS" default:"35"`
	AlertThresholdHours float64       `envconfig:"ALERT_THRESHOLD_HOURS" default:"35"`
	MinimumSkillLevel   int           `envconfig:"MINIMUM_SKILL_LEVEL" default:"3"`
	WeightSkill         float64       `envconfig:"WEIGHT_SKILL" default:"0.40"`
	WeightAvailability  float64       `envconfig:"WEIGHT_AVAILABILITY" default:"0.35"`
	WeightEfficiency    float64       `envconfig:"WEIGHT_EFFICIENCY" default:"0.25"`
	DefaultEfficiency   float64       `envconfig:"DEFAULT_EFFICIENCY" default:"0.5"`
	MaxTasksPerRun      int           `envconfig:"MAX_TASKS_PER_RUN" default:"200"`
	AlertRetention      time.Duration `envconfig:"ALERT_RETENTION" default:"168h"`
}

// SchedulerEnv intervals of zero disable the corresponding job.
type SchedulerEnv struct {
	AssignInterval       time.Duration `envconfig:"ASSIGN_INTERVAL" default:"0"`
	RedistributeInterval time.Duration `envconfig:"REDISTRIBUTE_INTERVAL" default:"0"`
	AlertCheckInterval   time.Duration `envconfig:"ALERT_CHECK_INTERVAL" default:"15m"`
	CleanupInterval      time.Duration `envconfig:"CLEANUP_INTERVAL" default:"24h"`
}

type VAPIDEnv struct {
	PublicKey  string `envconfig:"VAPID_PUBLIC_KEY"`
	PrivateKey string `envconfig:"VAPID_PRIVATE_KEY"`
	Contact    string `envconfig:"VAPID_CONTACT" default:"mailto:admin@workguild.local"`
}

type Env struct {
	BaseEnv
	StorageEnv
	PolicyEnv
	SchedulerEnv
	VAPIDEnv
}

const namespace = "WORKGUILD"

func LoadEnv() (*Env, error) {
	var env Env
	if err := envconfig.Process(namespace, &env); err != nil {
		return nil, fmt.Errorf("failed to load env: %w", err)
	}
	if err := env.PolicyEnv.Validate(); err != nil {
		return nil, err
	}
	return &env, nil
}

func (e *BaseEnv) SlogLevel() slog.Level {
	if e == nil {
		return slog.LevelInfo
	}
	return clog.ParseLevel(e.LogLevel)
}

func (e *BaseEnv) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(e.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", e.Timezone, err)
	}
	return loc, nil
}

func (p *PolicyEnv) Validate() error {
	switch {
	case p.MaxWeeklyHours <= 0:
		return fmt.Errorf("MAX_WEEKLY_HOURS must be positive")
	case p.OptimalWeeklyHours <= 0 || p.OptimalWeeklyHours > p.MaxWeeklyHours:
		return fmt.Errorf("OPTIMAL_WEEKLY_HOURS must be in (0, MAX_WEEKLY_HOURS]")
	case p.WeightSkill < 0 || p.WeightAvailability < 0 || p.WeightEfficiency < 0:
		return fmt.Errorf("scoring weights must not be negative")
	case p.WeightSkill+p.WeightAvailability+p.WeightEfficiency == 0:
		return fmt.Errorf("at least one scoring weight must be positive")
	case p.DefaultEfficiency < 0 || p.DefaultEfficiency > 1:
		return fmt.Errorf("DEFAULT_EFFICIENCY must be in [0, 1]")
	case p.MaxTasksPerRun <= 0:
		return fmt.Errorf("MAX_TASKS_PER_RUN must be positive")
	}
	return nil
}
