package line

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gravitylens/slackbot/core"

	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
)

func init() {
	core.RegisterPlatform("line", New)
}

type Platform struct {
	channelToken string
	defaultTo    string
	bot          *messaging_api.MessagingApiAPI
}

func New(opts map[string]any) (core.Platform, error) {
	token, _ := opts["channel_token"].(string)
	if token == "" {
		return nil, fmt.Errorf("line: channel_token is required")
	}
	to, _ := opts["default_to"].(string)
	return &Platform{channelToken: token, defaultTo: to}, nil
}

func (p *Platform) Name() string { return "line" }

func (p *Platform) Open() error {
	bot, err := messaging_api.NewMessagingApiAPI(p.channelToken)
	if err != nil {
		return fmt.Errorf("line: create api client: %w", err)
	}
	p.bot = bot
	return nil
}

func (p *Platform) Close() error { return nil }

// Format strips Markdown entirely: LINE text messages render no markup.
func (p *Platform) Format(text string) string {
	return core.StripMarkdown(text)
}

func (p *Platform) Send(ctx context.Context, dest, content string) error {
	to := dest
	if to == "" {
		to = p.defaultTo
	}
	if to == "" {
		return fmt.Errorf("line: no destination given and no default_to configured")
	}
	if content == "" {
		return nil
	}

	// LINE text message limit is 5000 characters
	for _, text := range splitRunes(content, 5000) {
		_, err := p.bot.PushMessage(
			&messaging_api.PushMessageRequest{
				To: to,
				Messages: []messaging_api.MessageInterface{
					messaging_api.TextMessage{
						Text: text,
					},
				},
			}, "",
		)
		if err != nil {
			return fmt.Errorf("line: push message: %w", err)
		}
	}

	slog.Debug("line: message sent", "to", to, "chars", len(content))
	return nil
}

func splitRunes(s string, maxLen int) []string {
	if len(s) <= maxLen {
		return []string{s}
	}
	var parts []string
	runes := []rune(s)
	for len(runes) > 0 {
		end := maxLen
		if end > len(runes) {
			end = len(runes)
		}
		parts = append(parts, string(runes[:end]))
		runes = runes[end:]
	}
	return parts
}
