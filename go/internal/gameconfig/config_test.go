package gameconfig

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var configKeys = []string{
	ConfigFileEnv, "PORT", "PUBLIC_URL", "LOG_LEVEL", "HAND_SIZE", "BASE_DURATION_SEC",
	"MIN_PLAYERS", "TICK_INTERVAL_MS", "STATE_SYNC_INTERVAL_SEC", "DEBUG_REWARDS",
	"CATALOG_PATH", "JUDGE_URL", "JUDGE_API_KEY", "JUDGE_TIMEOUT_SEC", "JUDGE_WORKERS",
	"NATS_URL", "NATS_STREAM", "NATS_SUBJECT_PREFIX",
}

// clearEnv blanks every config key for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range configKeys {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, 300*time.Second, cfg.Game.BaseDuration())
	assert.Equal(t, time.Second, cfg.Game.TickInterval())
	assert.Equal(t, 5*time.Second, cfg.Game.StateSyncInterval())
	assert.Equal(t, 10*time.Second, cfg.Judge.Timeout())
	assert.Equal(t, zerolog.InfoLevel, cfg.Level())
}

func TestLoadFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9090")
	t.Setenv("HAND_SIZE", "3")
	t.Setenv("BASE_DURATION_SEC", "120")
	t.Setenv("DEBUG_REWARDS", "true")
	t.Setenv("JUDGE_URL", "http://judge:8000")
	t.Setenv("NATS_URL", "nats://localhost:4222")
	t.Setenv("LOG_LEVEL", "DEBUG")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, 3, cfg.Game.HandSize)
	assert.Equal(t, 120, cfg.Game.BaseDurationSec)
	assert.True(t, cfg.Game.DebugRewards)
	assert.Equal(t, "http://judge:8000", cfg.Judge.URL)
	assert.Equal(t, "nats://localhost:4222", cfg.NATS.URL)
	assert.Equal(t, "CODEBATTLE_EVENTS", cfg.NATS.Stream)
	assert.Equal(t, zerolog.DebugLevel, cfg.Level())
}

func TestMalformedEnvFallsBack(t *testing.T) {
	clearEnv(t)
	t.Setenv("HAND_SIZE", "five")
	t.Setenv("DEBUG_REWARDS", "sometimes")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Game.HandSize)
	assert.False(t, cfg.Game.DebugRewards)
}

func TestFileOverlayThenEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "game.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
port: "7000"
game:
  hand_size: 4
  base_duration_sec: 90
  debug_rewards: true
judge:
  workers: 2
`), 0o600))
	t.Setenv(ConfigFileEnv, path)
	t.Setenv("BASE_DURATION_SEC", "60")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "7000", cfg.Port)
	assert.Equal(t, 4, cfg.Game.HandSize)
	assert.Equal(t, 60, cfg.Game.BaseDurationSec)
	assert.True(t, cfg.Game.DebugRewards)
	assert.Equal(t, 2, cfg.Judge.Workers)
	assert.Equal(t, 2, cfg.Game.MinPlayers)
}

func TestLoadMissingFile(t *testing.T) {
	clearEnv(t)
	t.Setenv(ConfigFileEnv, filepath.Join(t.TempDir(), "missing.yaml"))

	_, err := Load()
	assert.ErrorContains(t, err, "failed to read config file")
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Game.HandSize = 0
	cfg.Judge.Workers = 0
	cfg.LogLevel = "loud"

	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorContains(t, err, "hand size")
	assert.ErrorContains(t, err, "judge workers")
	assert.ErrorContains(t, err, "log level")

	cfg = Default()
	cfg.NATS.URL = "nats://localhost:4222"
	cfg.NATS.Stream = ""
	assert.ErrorContains(t, cfg.Validate(), "nats stream")

	cfg = Default()
	cfg.Game.MinPlayers = 1
	assert.ErrorContains(t, cfg.Validate(), "min players must be at least 2")

	cfg.Game.MinPlayers = 2
	assert.NoError(t, cfg.Validate())
}
