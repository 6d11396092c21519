package dingtalk

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gravitylens/slackbot/core"
)

func init() {
	core.RegisterPlatform("dingtalk", New)
}

// Platform posts to a DingTalk group robot webhook. The optional secret
// enables the signed-URL security setting.
type Platform struct {
	webhook string
	secret  string
	client  *http.Client
}

func New(opts map[string]any) (core.Platform, error) {
	webhook, _ := opts["webhook"].(string)
	if webhook == "" {
		return nil, fmt.Errorf("dingtalk: webhook is required")
	}
	secret, _ := opts["secret"].(string)
	return &Platform{webhook: webhook, secret: secret}, nil
}

func (p *Platform) Name() string { return "dingtalk" }

func (p *Platform) Open() error {
	p.client = &http.Client{Timeout: 15 * time.Second}
	return nil
}

func (p *Platform) Close() error { return nil }

// Send posts markdown to the robot webhook. Group robots pin the target
// chat, so dest only overrides the markdown title.
func (p *Platform) Send(ctx context.Context, dest, content string) error {
	title := dest
	if title == "" {
		title = "notification"
	}

	payload := map[string]any{
		"msgtype":  "markdown",
		"markdown": map[string]string{"title": title, "text": content},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("dingtalk: marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.signedURL(), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("dingtalk: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("dingtalk: send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("dingtalk: webhook returned status %d", resp.StatusCode)
	}

	var result struct {
		ErrCode int    `json:"errcode"`
		ErrMsg  string `json:"errmsg"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("dingtalk: decode response: %w", err)
	}
	if result.ErrCode != 0 {
		return fmt.Errorf("dingtalk: webhook error %d: %s", result.ErrCode, result.ErrMsg)
	}

	slog.Debug("dingtalk: message sent", "chars", len(content))
	return nil
}

// signedURL appends timestamp and sign query parameters when a secret is
// configured, per the robot security docs: sign = base64(hmac-sha256(secret,
// "<timestamp>\n<secret>")).
func (p *Platform) signedURL() string {
	if p.secret == "" {
		return p.webhook
	}

	ts := strconv.FormatInt(time.Now().UnixMilli(), 10)
	mac := hmac.New(sha256.New, []byte(p.secret))
	mac.Write([]byte(ts + "\n" + p.secret))
	sign := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	sep := "?"
	if strings.Contains(p.webhook, "?") {
		sep = "&"
	}
	return p.webhook + sep + "timestamp=" + ts + "&sign=" + url.QueryEscape(sign)
}
