// Package gameconfig loads server settings from the environment, with an
// optional YAML file underneath.
package gameconfig

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// ConfigFileEnv names the optional YAML overlay.
const ConfigFileEnv = "GAME_CONFIG"

// Config holds every server setting.
type Config struct {
	Port      string `yaml:"port"`
	PublicURL string `yaml:"public_url"`
	LogLevel  string `yaml:"log_level"`

	Game  GameConfig  `yaml:"game"`
	Judge JudgeConfig `yaml:"judge"`
	NATS  NATSConfig  `yaml:"nats"`
}

// GameConfig holds the rules and pacing of a room.
type GameConfig struct {
	HandSize             int    `yaml:"hand_size"`
	BaseDurationSec      int    `yaml:"base_duration_sec"`
	MinPlayers           int    `yaml:"min_players"`
	TickIntervalMs       int    `yaml:"tick_interval_ms"`
	StateSyncIntervalSec int    `yaml:"state_sync_interval_sec"`
	DebugRewards         bool   `yaml:"debug_rewards"`
	CatalogPath          string `yaml:"catalog_path"`
}

// JudgeConfig points at the remote code executor.
type JudgeConfig struct {
	URL        string `yaml:"url"`
	APIKey     string `yaml:"api_key"`
	TimeoutSec int    `yaml:"timeout_sec"`
	Workers    int    `yaml:"workers"`
}

// NATSConfig enables the JetStream event relay when URL is set.
type NATSConfig struct {
	URL           string `yaml:"url"`
	Stream        string `yaml:"stream"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Port:     "8080",
		LogLevel: "info",
		Game: GameConfig{
			HandSize:             5,
			BaseDurationSec:      300,
			MinPlayers:           2,
			TickIntervalMs:       1000,
			StateSyncIntervalSec: 5,
		},
		Judge: JudgeConfig{
			TimeoutSec: 10,
			Workers:    8,
		},
		NATS: NATSConfig{
			Stream:        "CODEBATTLE_EVENTS",
			SubjectPrefix: "codebattle.events",
		},
	}
}

// Load builds the config from defaults, the GAME_CONFIG file if set, then
// environment variables, and validates the result.
func Load() (Config, error) {
	cfg := Default()

	if path := os.Getenv(ConfigFileEnv); path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.Port = getEnv("PORT", cfg.Port)
	cfg.PublicURL = getEnv("PUBLIC_URL", cfg.PublicURL)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)

	cfg.Game.HandSize = getEnvAsInt("HAND_SIZE", cfg.Game.HandSize)
	cfg.Game.BaseDurationSec = getEnvAsInt("BASE_DURATION_SEC", cfg.Game.BaseDurationSec)
	cfg.Game.MinPlayers = getEnvAsInt("MIN_PLAYERS", cfg.Game.MinPlayers)
	cfg.Game.TickIntervalMs = getEnvAsInt("TICK_INTERVAL_MS", cfg.Game.TickIntervalMs)
	cfg.Game.StateSyncIntervalSec = getEnvAsInt("STATE_SYNC_INTERVAL_SEC", cfg.Game.StateSyncIntervalSec)
	cfg.Game.DebugRewards = getEnvAsBool("DEBUG_REWARDS", cfg.Game.DebugRewards)
	cfg.Game.CatalogPath = getEnv("CATALOG_PATH", cfg.Game.CatalogPath)

	cfg.Judge.URL = getEnv("JUDGE_URL", cfg.Judge.URL)
	cfg.Judge.APIKey = getEnv("JUDGE_API_KEY", cfg.Judge.APIKey)
	cfg.Judge.TimeoutSec = getEnvAsInt("JUDGE_TIMEOUT_SEC", cfg.Judge.TimeoutSec)
	cfg.Judge.Workers = getEnvAsInt("JUDGE_WORKERS", cfg.Judge.Workers)

	cfg.NATS.URL = getEnv("NATS_URL", cfg.NATS.URL)
	cfg.NATS.Stream = getEnv("NATS_STREAM", cfg.NATS.Stream)
	cfg.NATS.SubjectPrefix = getEnv("NATS_SUBJECT_PREFIX", cfg.NATS.SubjectPrefix)
}

// Validate rejects settings the server cannot run with.
func (c Config) Validate() error {
	var errs []error
	if c.Port == "" {
		errs = append(errs, errors.New("port is required"))
	}
	if _, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel)); err != nil {
		errs = append(errs, fmt.Errorf("log level %q: %w", c.LogLevel, err))
	}
	if c.Game.HandSize < 1 {
		errs = append(errs, fmt.Errorf("hand size must be positive, got %d", c.Game.HandSize))
	}
	if c.Game.BaseDurationSec < 1 {
		errs = append(errs, fmt.Errorf("base duration must be positive, got %d", c.Game.BaseDurationSec))
	}
	if c.Game.MinPlayers < 2 {
		errs = append(errs, fmt.Errorf("min players must be at least 2, got %d", c.Game.MinPlayers))
	}
	if c.Game.TickIntervalMs < 1 {
		errs = append(errs, fmt.Errorf("tick interval must be positive, got %d", c.Game.TickIntervalMs))
	}
	if c.Game.StateSyncIntervalSec < 0 {
		errs = append(errs, fmt.Errorf("state sync interval cannot be negative, got %d", c.Game.StateSyncIntervalSec))
	}
	if c.Judge.TimeoutSec < 1 {
		errs = append(errs, fmt.Errorf("judge timeout must be positive, got %d", c.Judge.TimeoutSec))
	}
	if c.Judge.Workers < 1 {
		errs = append(errs, fmt.Errorf("judge workers must be positive, got %d", c.Judge.Workers))
	}
	if c.NATS.URL != "" && (c.NATS.Stream == "" || c.NATS.SubjectPrefix == "") {
		errs = append(errs, errors.New("nats stream and subject prefix are required when NATS_URL is set"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// Level returns the zerolog level, defaulting to info.
func (c Config) Level() zerolog.Level {
	level, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel))
	if err != nil || level == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return level
}

func (g GameConfig) BaseDuration() time.Duration {
	return time.Duration(g.BaseDurationSec) * time.Second
}

func (g GameConfig) TickInterval() time.Duration {
	return time.Duration(g.TickIntervalMs) * time.Millisecond
}

func (g GameConfig) StateSyncInterval() time.Duration {
	return time.Duration(g.StateSyncIntervalSec) * time.Second
}

func (j JudgeConfig) Timeout() time.Duration {
	return time.Duration(j.TimeoutSec) * time.Second
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
