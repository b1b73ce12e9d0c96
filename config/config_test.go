package config

import (
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/alkem-io/server-sub004/lifecycle"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv unsets every variable Config reads so host settings cannot leak in.
func clearEnv(t *testing.T) {
	t.Helper()

	for _, name := range []string{
		"LIFECYCLE_STORE", "LIFECYCLE_REDIS_URL", "LIFECYCLE_PG_URL", "LIFECYCLE_MONGO_URL",
		"LIFECYCLE_MAX_ATTEMPTS", "LIFECYCLE_BATCH_WORKERS", "LIFECYCLE_TEMPLATE_DIR",
		"LOG_LEVEL", "LOG_OUTPUT", "LOG_JSON", "OTEL_ENABLED",
	} {
		t.Setenv(name, "")
		require.NoError(t, os.Unsetenv(name))
	}
}

func TestLoadDefaults(t *testing.T) { //nolint:paralleltest
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, StoreSQLite, cfg.Store)
	assert.Equal(t, "lifecycle.db", cfg.SQLite.Path)
	assert.Equal(t, 3, cfg.Engine.MaxAttempts)
	assert.Equal(t, 5*time.Millisecond, cfg.Engine.RetryBaseDelay)
	assert.Equal(t, 8, cfg.Engine.BatchWorkers)
	assert.False(t, cfg.Telemetry.Enabled)
	assert.Equal(t, "lifecycle", cfg.Telemetry.ServiceName)

	opts, err := cfg.LoggerOptions("lifecyclectl")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelInfo, opts.MinLevel)
	assert.Equal(t, os.Stderr, opts.Output)
	assert.Equal(t, "lifecyclectl", opts.Subsystem)

	assert.Len(t, cfg.EngineOptions(), 3)
}

func TestLoadEnvFile(t *testing.T) { //nolint:paralleltest
	clearEnv(t)

	cfg, err := Load("testdata/redis.env")
	require.NoError(t, err)

	assert.Equal(t, StoreRedis, cfg.Store)
	assert.Equal(t, "redis://cache:6379/2", cfg.Redis.URL)
	assert.Equal(t, 5, cfg.Engine.MaxAttempts)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestEnvironmentWinsOverFile(t *testing.T) { //nolint:paralleltest
	clearEnv(t)
	t.Setenv("LIFECYCLE_MAX_ATTEMPTS", "7")

	cfg, err := Load("testdata/redis.env")
	require.NoError(t, err)

	assert.Equal(t, 7, cfg.Engine.MaxAttempts)
}

func TestLoadMissingFile(t *testing.T) { //nolint:paralleltest
	clearEnv(t)

	_, err := Load("testdata/missing.env")
	require.ErrorIs(t, err, ErrLoadingEnvFiles)
}

func TestLoadParseError(t *testing.T) { //nolint:paralleltest
	clearEnv(t)
	t.Setenv("LIFECYCLE_MAX_ATTEMPTS", "many")

	_, err := Load()
	require.ErrorIs(t, err, ErrParsingConfig)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	valid := Config{
		Store:  StoreMemory,
		Log:    Log{Level: "info", LegacyLevel: "info", Output: "stdout"},
		Engine: Engine{MaxAttempts: 3, BatchWorkers: 1},
	}
	require.NoError(t, valid.Validate())

	tests := map[string]func(*Config){
		"unknown store":      func(c *Config) { c.Store = "cassandra" },
		"postgres needs url": func(c *Config) { c.Store = StorePostgres },
		"mongo needs url":    func(c *Config) { c.Store = StoreMongo },
		"zero attempts":      func(c *Config) { c.Engine.MaxAttempts = 0 },
		"zero workers":       func(c *Config) { c.Engine.BatchWorkers = 0 },
		"bad level":          func(c *Config) { c.Log.Level = "loud" },
		"bad output":         func(c *Config) { c.Log.Output = "syslog" },
	}

	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			cfg := valid
			mutate(&cfg)

			require.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}

func TestRegistryWithTemplateDir(t *testing.T) {
	t.Parallel()

	cfg := Config{Engine: Engine{TemplateDir: "testdata"}}

	reg, err := cfg.Registry()
	require.NoError(t, err)

	tmpl, err := reg.Lookup("review-lifecycle")
	require.NoError(t, err)
	assert.Equal(t, []string{"published"}, tmpl.TerminalStates())

	_, err = reg.Lookup(lifecycle.KindEntity)
	require.NoError(t, err)

	cfg.Engine.TemplateDir = "testdata/missing"
	_, err = cfg.Registry()
	require.Error(t, err)
}
