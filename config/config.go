// Package config loads lifecycle service settings from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/alkem-io/server-sub004/lifecycle"
	"github.com/alkem-io/server-sub004/logger"
	"github.com/alkem-io/server-sub004/store/mongo"
	"github.com/alkem-io/server-sub004/store/postgres"
	"github.com/alkem-io/server-sub004/store/redis"
	"github.com/alkem-io/server-sub004/store/sqlite"
	"github.com/alkem-io/server-sub004/telemetry"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

var (
	ErrParsingConfig   = errors.New("failed to parse environment variables into config")
	ErrInvalidConfig   = errors.New("invalid configuration")
	ErrLoadingEnvFiles = errors.New("failed to load env files")
)

// Storage backends.
const (
	StoreMemory   = "memory"
	StoreSQLite   = "sqlite"
	StoreRedis    = "redis"
	StorePostgres = "postgres"
	StoreMongo    = "mongo"
)

// Stores lists every supported backend.
var Stores = []string{StoreMemory, StoreSQLite, StoreRedis, StorePostgres, StoreMongo} //nolint:gochecknoglobals

type Log struct {
	JSON        bool   `env:"LOG_JSON"         envDefault:"false"`
	Level       string `env:"LOG_LEVEL"        envDefault:"info"`
	LegacyLevel string `env:"LEGACY_LOG_LEVEL" envDefault:"info"`
	Output      string `env:"LOG_OUTPUT"       envDefault:"stderr"`
}

type Engine struct {
	MaxAttempts    int           `env:"LIFECYCLE_MAX_ATTEMPTS"     envDefault:"3"`
	RetryBaseDelay time.Duration `env:"LIFECYCLE_RETRY_BASE_DELAY" envDefault:"5ms"`
	BatchWorkers   int           `env:"LIFECYCLE_BATCH_WORKERS"    envDefault:"8"`
	// Directory of extra *.yaml templates registered next to the built-ins.
	TemplateDir string `env:"LIFECYCLE_TEMPLATE_DIR"`
}

// Config is the full service configuration.
type Config struct {
	Log       Log
	Telemetry telemetry.Config
	Engine    Engine

	Store    string `env:"LIFECYCLE_STORE" envDefault:"sqlite"`
	SQLite   sqlite.Config
	Redis    redis.Config
	Postgres postgres.Config
	Mongo    mongo.Config
}

// Load reads the given env files (or ./.env when none are named and it
// exists), then parses the environment into a validated Config.
// Variables already set in the environment win over file values.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		if _, err := os.Stat(".env"); err == nil {
			files = []string{".env"}
		}
	}

	if len(files) > 0 {
		if err := godotenv.Load(files...); err != nil {
			return Config{}, errors.Join(ErrLoadingEnvFiles, err)
		}
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, errors.Join(ErrParsingConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate checks cross-field constraints that struct tags cannot express.
func (c Config) Validate() error {
	if !slices.Contains(Stores, c.Store) {
		return fmt.Errorf("%w: LIFECYCLE_STORE %q is not one of %v", ErrInvalidConfig, c.Store, Stores)
	}

	switch c.Store {
	case StorePostgres:
		if c.Postgres.ConnectionString == "" {
			return fmt.Errorf("%w: LIFECYCLE_PG_URL is required for the postgres store", ErrInvalidConfig)
		}
	case StoreMongo:
		if c.Mongo.ConnectionURL == "" {
			return fmt.Errorf("%w: LIFECYCLE_MONGO_URL is required for the mongo store", ErrInvalidConfig)
		}
	}

	if c.Engine.MaxAttempts < 1 {
		return fmt.Errorf("%w: LIFECYCLE_MAX_ATTEMPTS must be at least 1", ErrInvalidConfig)
	}

	if c.Engine.BatchWorkers < 1 {
		return fmt.Errorf("%w: LIFECYCLE_BATCH_WORKERS must be at least 1", ErrInvalidConfig)
	}

	if _, err := logger.ParseLevel(c.Log.Level); err != nil {
		return errors.Join(ErrInvalidConfig, err)
	}

	if _, err := logger.ParseLevel(c.Log.LegacyLevel); err != nil {
		return errors.Join(ErrInvalidConfig, err)
	}

	if _, err := logger.ParseOutput(c.Log.Output); err != nil {
		return errors.Join(ErrInvalidConfig, err)
	}

	return nil
}

// LoggerOptions translates the log section for logger.ConfigureLogging.
func (c Config) LoggerOptions(subsystem string) (logger.Options, error) {
	level, err := logger.ParseLevel(c.Log.Level)
	if err != nil {
		return logger.Options{}, err
	}

	legacy, err := logger.ParseLevel(c.Log.LegacyLevel)
	if err != nil {
		return logger.Options{}, err
	}

	out, err := logger.ParseOutput(c.Log.Output)
	if err != nil {
		return logger.Options{}, err
	}

	return logger.Options{
		Subsystem:   subsystem,
		JSON:        c.Log.JSON,
		MinLevel:    level,
		LegacyLevel: legacy,
		Output:      out,
	}, nil
}

// EngineOptions translates the engine section into lifecycle options.
func (c Config) EngineOptions() []lifecycle.Option {
	return []lifecycle.Option{
		lifecycle.WithMaxAttempts(c.Engine.MaxAttempts),
		lifecycle.WithRetryBaseDelay(c.Engine.RetryBaseDelay),
		lifecycle.WithBatchWorkers(c.Engine.BatchWorkers),
	}
}

// Registry returns an unfrozen registry holding the built-in templates plus
// any found in Engine.TemplateDir.
func (c Config) Registry() (*lifecycle.Registry, error) {
	reg, err := lifecycle.NewBuiltinRegistry()
	if err != nil {
		return nil, err
	}

	if c.Engine.TemplateDir == "" {
		return reg, nil
	}

	templates, err := lifecycle.LoadTemplatesFromFS(os.DirFS(c.Engine.TemplateDir), ".")
	if err != nil {
		return nil, fmt.Errorf("load templates from %s: %w", c.Engine.TemplateDir, err)
	}

	for _, t := range templates {
		if err := reg.Register(t); err != nil {
			return nil, err
		}
	}

	return reg, nil
}
