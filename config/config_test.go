package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "slackbot.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
default_platform = "slack"

[log]
level = "debug"

[history]
enabled = true
driver = "sqlite"

[[platforms]]
type = "slack"

[platforms.options]
bot_token = "xoxb-test"
default_channel = "#ops"

[[platforms]]
type = "telegram"

[platforms.options]
token = "123:abc"

[[schedules]]
cron = "0 9 * * 1-5"
platform = "slack"
destination = "#standup"
message = "standup time"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "slack", cfg.DefaultPlatform)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.History.Enabled)
	require.Len(t, cfg.Platforms, 2)
	assert.Equal(t, "xoxb-test", cfg.Platforms[0].Options["bot_token"])
	require.Len(t, cfg.Schedules, 1)
	assert.Equal(t, "standup time", cfg.Schedules[0].Message)
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name:    "no platforms",
			content: `default_platform = "slack"`,
		},
		{
			name: "duplicate platform",
			content: `
[[platforms]]
type = "slack"
[[platforms]]
type = "slack"
`,
		},
		{
			name: "unknown default platform",
			content: `
default_platform = "telegram"
[[platforms]]
type = "slack"
`,
		},
		{
			name: "schedule without message",
			content: `
[[platforms]]
type = "slack"
[[schedules]]
cron = "@hourly"
`,
		},
		{
			name: "bad history driver",
			content: `
[history]
driver = "oracle"
[[platforms]]
type = "slack"
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			assert.Error(t, err)
		})
	}
}

func TestEnvFallback(t *testing.T) {
	t.Setenv("SLACK_BOT_TOKEN", "xoxb-env")
	t.Setenv("SLACK_CHANNEL", "#from-env")

	cfg, err := FromEnv()
	require.NoError(t, err)
	require.Len(t, cfg.Platforms, 1)
	assert.Equal(t, "slack", cfg.Platforms[0].Type)
	assert.Equal(t, "xoxb-env", cfg.Platforms[0].Options["bot_token"])
	assert.Equal(t, "#from-env", cfg.Platforms[0].Options["default_channel"])
}

func TestEnvDoesNotOverrideConfig(t *testing.T) {
	t.Setenv("SLACK_BOT_TOKEN", "xoxb-env")

	path := writeConfig(t, `
[[platforms]]
type = "slack"
[platforms.options]
bot_token = "xoxb-file"
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Len(t, cfg.Platforms, 1)
	assert.Equal(t, "xoxb-file", cfg.Platforms[0].Options["bot_token"])
}

func TestFromEnvWithoutToken(t *testing.T) {
	t.Setenv("SLACK_BOT_TOKEN", "")
	_, err := FromEnv()
	assert.Error(t, err)
}

func TestPlatformResolution(t *testing.T) {
	cfg := &Config{
		Platforms: []PlatformConfig{
			{Type: "slack"},
			{Type: "telegram"},
		},
	}

	t.Run("explicit type", func(t *testing.T) {
		p, err := cfg.Platform("telegram")
		require.NoError(t, err)
		assert.Equal(t, "telegram", p.Type)
	})

	t.Run("ambiguous without default", func(t *testing.T) {
		_, err := cfg.Platform("")
		assert.Error(t, err)
	})

	t.Run("default platform wins", func(t *testing.T) {
		cfg.DefaultPlatform = "telegram"
		p, err := cfg.Platform("")
		require.NoError(t, err)
		assert.Equal(t, "telegram", p.Type)
		cfg.DefaultPlatform = ""
	})

	t.Run("sole platform is implicit default", func(t *testing.T) {
		solo := &Config{Platforms: []PlatformConfig{{Type: "slack"}}}
		p, err := solo.Platform("")
		require.NoError(t, err)
		assert.Equal(t, "slack", p.Type)
	})

	t.Run("unknown type", func(t *testing.T) {
		_, err := cfg.Platform("discord")
		assert.Error(t, err)
	})
}

func TestHistoryDSNDefault(t *testing.T) {
	cfg := &Config{DataDir: "/tmp/sbtest"}
	assert.Equal(t, filepath.Join("/tmp/sbtest", "history.db"), cfg.HistoryDSN())

	cfg.History.DSN = "postgres://x"
	assert.Equal(t, "postgres://x", cfg.HistoryDSN())
}
