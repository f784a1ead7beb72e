package config

import (
	"fmt"
	"log/slog"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
)

type Config struct {
	Env  string `env:"ENV" envDefault:"local" validate:"required,oneof=local staging production"`
	Port string `env:"PORT" envDefault:"8080" validate:"required"`

	DataDir   string `env:"DATA_DIR" envDefault:"./data" validate:"required"`
	ConfigDir string `env:"CONFIG_DIR" envDefault:"./config" validate:"required"`

	RedisAddr          string `env:"REDIS_ADDR" envDefault:"localhost:6379" validate:"required"`
	RedisConsumerGroup string `env:"REDIS_CONSUMER_GROUP" envDefault:"run-workers" validate:"required"`

	RunWorkerConcurrency int     `env:"RUN_WORKER_CONCURRENCY" envDefault:"5" validate:"min=1,max=100"`
	SearchRatePerSecond  float64 `env:"SEARCH_RATE_PER_SECOND" envDefault:"5" validate:"min=0.1"`
	EvalWorkers          int     `env:"EVAL_WORKERS" envDefault:"3" validate:"min=1,max=10"`

	DailyQuotaLimit int    `env:"DAILY_QUOTA_LIMIT" envDefault:"1000" validate:"min=1"`
	QuotaResetHour  int    `env:"QUOTA_RESET_HOUR" envDefault:"0" validate:"min=0,max=23"`
	QuotaTimeZone   string `env:"QUOTA_TIMEZONE" envDefault:"UTC" validate:"required"`

	CacheTTLHours       int `env:"CACHE_TTL_HOURS" envDefault:"24" validate:"min=1"`
	RevisitThrottleDays int `env:"REVISIT_THROTTLE_DAYS" envDefault:"7" validate:"min=0"`

	SearchProvider string `env:"JOBATO_SEARCH_PROVIDER" envDefault:"mock" validate:"required,oneof=mock brave google"`
	BraveAPIKey    string `env:"BRAVE_API_KEY" validate:"required_if=SearchProvider brave"`
	GoogleAPIKey   string `env:"GOOGLE_API_KEY" validate:"required_if=SearchProvider google"`
	GoogleCX       string `env:"GOOGLE_CX" validate:"required_if=SearchProvider google"`

	RetrainEnabled  bool   `env:"RETRAIN_ENABLED" envDefault:"true"`
	RetrainSchedule string `env:"RETRAIN_SCHEDULE" envDefault:"30 3 * * *" validate:"required"`
	ArtifactDir     string `env:"ARTIFACT_DIR" envDefault:"./data/artifacts" validate:"required"`

	MetricsPort string `env:"METRICS_PORT" envDefault:"9090"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info" validate:"required,oneof=debug info warn error"`

	JWTSecret string `env:"JWT_SECRET" validate:"required_if=Env production,required_if=Env staging"`
}

func Load() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// SlogLevel converts the LOG_LEVEL string to a slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
