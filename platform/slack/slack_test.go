package slack

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRequiresToken(t *testing.T) {
	_, err := New(map[string]any{})
	assert.Error(t, err)

	p, err := New(map[string]any{"bot_token": "xoxb-test"})
	require.NoError(t, err)
	assert.Equal(t, "slack", p.Name())
}

func TestResolveDestination(t *testing.T) {
	p, err := New(map[string]any{"bot_token": "xoxb-test", "default_channel": "#ops"})
	require.NoError(t, err)
	sp := p.(*Platform)

	assert.Equal(t, "#releases", sp.resolve("#releases"))
	assert.Equal(t, "#ops", sp.resolve(""))
}

func TestDescribeAPIError(t *testing.T) {
	tests := []struct {
		code string
		hint string
	}{
		{"missing_scope", "chat:write"},
		{"channel_not_found", "no access"},
		{"not_in_channel", "invite it first"},
		{"invalid_auth", "SLACK_BOT_TOKEN"},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := describeAPIError("#ops", errors.New(tt.code))
			assert.Contains(t, err.Error(), tt.hint)
		})
	}

	t.Run("unknown error wrapped plainly", func(t *testing.T) {
		err := describeAPIError("#ops", errors.New("rate_limited"))
		assert.Contains(t, err.Error(), "rate_limited")
	})
}
