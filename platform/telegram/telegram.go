package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/gravitylens/slackbot/core"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

func init() {
	core.RegisterPlatform("telegram", New)
}

type Platform struct {
	token       string
	defaultChat string
	bot         *bot.Bot
}

func New(opts map[string]any) (core.Platform, error) {
	token, _ := opts["token"].(string)
	if token == "" {
		return nil, fmt.Errorf("telegram: token is required")
	}
	chat, _ := opts["default_chat"].(string)
	return &Platform{token: token, defaultChat: chat}, nil
}

func (p *Platform) Name() string { return "telegram" }

func (p *Platform) Open() error {
	b, err := bot.New(p.token, bot.WithSkipGetMe())
	if err != nil {
		return fmt.Errorf("telegram: create bot: %w", err)
	}
	p.bot = b
	return nil
}

func (p *Platform) Close() error { return nil }

func (p *Platform) Send(ctx context.Context, dest, text string) error {
	chatID, err := p.resolve(dest)
	if err != nil {
		return err
	}

	_, err = p.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:    chatID,
		Text:      text,
		ParseMode: models.ParseModeMarkdown,
	})
	if err != nil {
		// Markdown parse failure → retry as plain text
		if strings.Contains(err.Error(), "can't parse") {
			_, err = p.bot.SendMessage(ctx, &bot.SendMessageParams{
				ChatID: chatID,
				Text:   text,
			})
		}
		if err != nil {
			return fmt.Errorf("telegram: send: %w", err)
		}
	}

	slog.Debug("telegram: message sent", "chat", chatID, "chars", len(text))
	return nil
}

// resolve turns a destination into a chat ID: numeric IDs stay numeric,
// @channelname strings pass through.
func (p *Platform) resolve(dest string) (any, error) {
	if dest == "" {
		dest = p.defaultChat
	}
	if dest == "" {
		return nil, fmt.Errorf("telegram: no destination given and no default_chat configured")
	}
	if id, err := strconv.ParseInt(dest, 10, 64); err == nil {
		return id, nil
	}
	return dest, nil
}
