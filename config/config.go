package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

type Config struct {
	DefaultPlatform string           `toml:"default_platform"`
	DataDir         string           `toml:"data_dir"`
	Log             LogConfig        `toml:"log"`
	History         HistoryConfig    `toml:"history"`
	Platforms       []PlatformConfig `toml:"platforms"`
	Schedules       []ScheduleConfig `toml:"schedules"`
}

type PlatformConfig struct {
	Type    string         `toml:"type"`
	Options map[string]any `toml:"options"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

type HistoryConfig struct {
	Enabled bool   `toml:"enabled"`
	Driver  string `toml:"driver"` // "sqlite" (default) or "postgres"
	DSN     string `toml:"dsn"`
}

// ScheduleConfig is a scheduled send declared in the config file. These run
// for the lifetime of a serve daemon; jobs added via the CLI are persisted
// separately under the data dir.
type ScheduleConfig struct {
	Cron        string `toml:"cron"`
	Platform    string `toml:"platform"`
	Destination string `toml:"destination"`
	Message     string `toml:"message"`
	Description string `toml:"description"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := defaults()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyEnv()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromEnv builds a minimal slack-only config from SLACK_BOT_TOKEN and
// SLACK_CHANNEL, so the tool works in a bare environment with no config
// file, the way the very first version of this bot did.
func FromEnv() (*Config, error) {
	cfg := defaults()
	cfg.applyEnv()
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("no config file and SLACK_BOT_TOKEN is not set")
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		DataDir: defaultDataDir(),
		Log:     LogConfig{Level: "info"},
		History: HistoryConfig{Driver: "sqlite"},
	}
}

func defaultDataDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".slackbot")
	}
	return ".slackbot"
}

// applyEnv fills in a slack platform from the environment when the config
// does not declare one. SLACK_BOT_TOKEN and SLACK_CHANNEL take the role the
// original .env file played.
func (c *Config) applyEnv() {
	for _, p := range c.Platforms {
		if p.Type == "slack" {
			return
		}
	}
	token := os.Getenv("SLACK_BOT_TOKEN")
	if token == "" {
		return
	}
	opts := map[string]any{"bot_token": token}
	if channel := os.Getenv("SLACK_CHANNEL"); channel != "" {
		opts["default_channel"] = channel
	}
	c.Platforms = append(c.Platforms, PlatformConfig{Type: "slack", Options: opts})
}

func (c *Config) validate() error {
	if len(c.Platforms) == 0 {
		return fmt.Errorf("config: at least one platform must be configured")
	}
	seen := make(map[string]bool, len(c.Platforms))
	for i, p := range c.Platforms {
		if p.Type == "" {
			return fmt.Errorf("config: platforms[%d].type is required", i)
		}
		if seen[p.Type] {
			return fmt.Errorf("config: platform %q configured twice", p.Type)
		}
		seen[p.Type] = true
	}
	if c.DefaultPlatform != "" && !seen[c.DefaultPlatform] {
		return fmt.Errorf("config: default_platform %q is not among the configured platforms", c.DefaultPlatform)
	}
	for i, s := range c.Schedules {
		if s.Cron == "" || s.Message == "" {
			return fmt.Errorf("config: schedules[%d] needs both cron and message", i)
		}
	}
	switch c.History.Driver {
	case "", "sqlite", "postgres":
	default:
		return fmt.Errorf("config: history.driver must be sqlite or postgres, got %q", c.History.Driver)
	}
	return nil
}

// Platform returns the entry for the requested type, or the default: the
// configured default_platform, else the only entry, else an error.
func (c *Config) Platform(typ string) (PlatformConfig, error) {
	if typ == "" {
		typ = c.DefaultPlatform
	}
	if typ == "" {
		if len(c.Platforms) == 1 {
			return c.Platforms[0], nil
		}
		return PlatformConfig{}, fmt.Errorf("config: multiple platforms configured, pick one with --platform")
	}
	for _, p := range c.Platforms {
		if p.Type == typ {
			return p, nil
		}
	}
	return PlatformConfig{}, fmt.Errorf("config: platform %q is not configured", typ)
}

// HistoryDSN returns the journal DSN, defaulting the sqlite file into the
// data dir.
func (c *Config) HistoryDSN() string {
	if c.History.DSN != "" {
		return c.History.DSN
	}
	return filepath.Join(c.DataDir, "history.db")
}
