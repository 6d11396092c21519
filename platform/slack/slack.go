package slack

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/gravitylens/slackbot/core"

	"github.com/slack-go/slack"
)

func init() {
	core.RegisterPlatform("slack", New)
}

type Platform struct {
	token          string
	defaultChannel string
	client         *slack.Client
}

func New(opts map[string]any) (core.Platform, error) {
	token, _ := opts["bot_token"].(string)
	if token == "" {
		return nil, fmt.Errorf("slack: bot_token is required")
	}
	channel, _ := opts["default_channel"].(string)
	if channel == "" {
		channel = "#general"
	}
	return &Platform{token: token, defaultChannel: channel}, nil
}

func (p *Platform) Name() string { return "slack" }

func (p *Platform) Open() error {
	p.client = slack.New(p.token)
	return nil
}

func (p *Platform) Close() error { return nil }

// Format rewrites standard Markdown into mrkdwn before delivery: bold
// markers collapse to single asterisks and pipe tables become aligned code
// blocks, since Slack has no table primitive.
func (p *Platform) Format(text string) string {
	return core.FormatForSlack(text)
}

func (p *Platform) Send(ctx context.Context, dest, text string) error {
	channel := p.resolve(dest)
	_, _, err := p.client.PostMessageContext(ctx, channel, slack.MsgOptionText(text, false))
	if err != nil {
		return describeAPIError(channel, err)
	}
	slog.Debug("slack: message sent", "channel", channel, "chars", len(text))
	return nil
}

// SendBlocks posts a Block Kit payload, with text as the notification
// fallback.
func (p *Platform) SendBlocks(ctx context.Context, dest string, raw json.RawMessage, fallback string) error {
	var blocks slack.Blocks
	if err := json.Unmarshal(raw, &blocks); err != nil {
		return fmt.Errorf("slack: parse blocks: %w", err)
	}

	channel := p.resolve(dest)
	_, _, err := p.client.PostMessageContext(ctx, channel,
		slack.MsgOptionText(fallback, false),
		slack.MsgOptionBlocks(blocks.BlockSet...),
	)
	if err != nil {
		return describeAPIError(channel, err)
	}
	slog.Debug("slack: blocks sent", "channel", channel, "blocks", len(blocks.BlockSet))
	return nil
}

func (p *Platform) resolve(dest string) string {
	if dest != "" {
		return dest
	}
	return p.defaultChannel
}

// describeAPIError attaches a remediation hint to the Slack error codes
// users hit most often.
func describeAPIError(channel string, err error) error {
	switch err.Error() {
	case "missing_scope":
		return fmt.Errorf("slack: %w (the bot token needs the chat:write scope)", err)
	case "channel_not_found":
		return fmt.Errorf("slack: channel %s not found or the bot has no access: %w", channel, err)
	case "not_in_channel":
		return fmt.Errorf("slack: the bot is not a member of %s, invite it first: %w", channel, err)
	case "invalid_auth":
		return fmt.Errorf("slack: %w (check SLACK_BOT_TOKEN / bot_token)", err)
	}
	return fmt.Errorf("slack: send: %w", err)
}
