package feishu

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/gravitylens/slackbot/core"

	lark "github.com/larksuite/oapi-sdk-go/v3"
	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
)

func init() {
	core.RegisterPlatform("feishu", New)
}

type Platform struct {
	appID       string
	appSecret   string
	defaultChat string
	client      *lark.Client
}

func New(opts map[string]any) (core.Platform, error) {
	appID, _ := opts["app_id"].(string)
	appSecret, _ := opts["app_secret"].(string)
	if appID == "" || appSecret == "" {
		return nil, fmt.Errorf("feishu: app_id and app_secret are required")
	}
	chat, _ := opts["default_chat"].(string)
	return &Platform{appID: appID, appSecret: appSecret, defaultChat: chat}, nil
}

func (p *Platform) Name() string { return "feishu" }

func (p *Platform) Open() error {
	p.client = lark.NewClient(p.appID, p.appSecret)
	return nil
}

func (p *Platform) Close() error { return nil }

func (p *Platform) Send(ctx context.Context, dest, content string) error {
	chatID := dest
	if chatID == "" {
		chatID = p.defaultChat
	}
	if chatID == "" {
		return fmt.Errorf("feishu: no destination given and no default_chat configured")
	}

	msgType, msgBody := buildContent(content)

	resp, err := p.client.Im.Message.Create(ctx, larkim.NewCreateMessageReqBuilder().
		ReceiveIdType(larkim.ReceiveIdTypeChatId).
		Body(larkim.NewCreateMessageReqBodyBuilder().
			ReceiveId(chatID).
			MsgType(msgType).
			Content(msgBody).
			Build()).
		Build())
	if err != nil {
		return fmt.Errorf("feishu: send api call: %w", err)
	}
	if !resp.Success() {
		return fmt.Errorf("feishu: send failed code=%d msg=%s", resp.Code, resp.Msg)
	}

	slog.Debug("feishu: message sent", "chat", chatID, "type", msgType)
	return nil
}

// buildContent decides between plain text and an interactive card based on
// whether the content carries Markdown the text surface would garble.
func buildContent(content string) (msgType string, body string) {
	if !containsMarkdown(content) {
		b, _ := json.Marshal(map[string]string{"text": content})
		return larkim.MsgTypeText, string(b)
	}
	return larkim.MsgTypeInteractive, cardJSON(adaptCardMarkdown(content))
}

var markdownIndicators = []string{
	"```", "**", "~~", "\n- ", "\n* ", "\n1. ", "\n# ", "---",
}

func containsMarkdown(s string) bool {
	for _, ind := range markdownIndicators {
		if strings.Contains(s, ind) {
			return true
		}
	}
	return false
}

// adaptCardMarkdown converts standard markdown to the card dialect: Feishu
// cards render neither # headings nor > blockquotes, so headings become bold
// lines and quotes become indented text. Code fences are left alone.
func adaptCardMarkdown(s string) string {
	lines := strings.Split(s, "\n")
	inCodeBlock := false

	for i, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			inCodeBlock = !inCodeBlock
			continue
		}
		if inCodeBlock {
			continue
		}

		for level := 6; level >= 1; level-- {
			prefix := strings.Repeat("#", level) + " "
			if strings.HasPrefix(line, prefix) {
				lines[i] = "**" + strings.TrimPrefix(line, prefix) + "**"
				break
			}
		}

		if strings.HasPrefix(line, "> ") {
			lines[i] = "  " + strings.TrimPrefix(line, "> ")
		}
	}

	return strings.Join(lines, "\n")
}

func cardJSON(content string) string {
	card := map[string]any{
		"config": map[string]any{
			"wide_screen_mode": true,
		},
		"elements": []any{
			map[string]any{
				"tag": "div",
				"text": map[string]any{
					"tag":     "lark_md",
					"content": content,
				},
			},
		},
	}
	b, _ := json.Marshal(card)
	return string(b)
}
