package discord

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gravitylens/slackbot/core"

	"github.com/bwmarrin/discordgo"
)

func init() {
	core.RegisterPlatform("discord", New)
}

const maxDiscordLen = 2000

type Platform struct {
	token          string
	defaultChannel string
	session        *discordgo.Session
}

func New(opts map[string]any) (core.Platform, error) {
	token, _ := opts["token"].(string)
	if token == "" {
		return nil, fmt.Errorf("discord: token is required")
	}
	channel, _ := opts["default_channel"].(string)
	return &Platform{token: token, defaultChannel: channel}, nil
}

func (p *Platform) Name() string { return "discord" }

// Open creates the REST session. Sending does not need the gateway, so no
// websocket connection is opened.
func (p *Platform) Open() error {
	session, err := discordgo.New("Bot " + p.token)
	if err != nil {
		return fmt.Errorf("discord: create session: %w", err)
	}
	p.session = session
	return nil
}

func (p *Platform) Close() error { return nil }

func (p *Platform) Send(ctx context.Context, dest, content string) error {
	channelID := dest
	if channelID == "" {
		channelID = p.defaultChannel
	}
	if channelID == "" {
		return fmt.Errorf("discord: no destination given and no default_channel configured")
	}

	// Discord has a 2000 char limit per message
	for len(content) > 0 {
		chunk := content
		if len(chunk) > maxDiscordLen {
			// Try to split at a newline
			cut := maxDiscordLen
			if idx := lastIndexBefore(content, '\n', cut); idx > 0 {
				cut = idx + 1
			}
			chunk = content[:cut]
			content = content[cut:]
		} else {
			content = ""
		}

		if _, err := p.session.ChannelMessageSend(channelID, chunk, discordgo.WithContext(ctx)); err != nil {
			return fmt.Errorf("discord: send: %w", err)
		}
	}

	slog.Debug("discord: message sent", "channel", channelID)
	return nil
}

func lastIndexBefore(s string, b byte, before int) int {
	for i := before - 1; i >= 0; i-- {
		if s[i] == b {
			return i
		}
	}
	return -1
}
