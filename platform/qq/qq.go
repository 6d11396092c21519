package qq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gravitylens/slackbot/core"

	"github.com/gorilla/websocket"
)

func init() {
	core.RegisterPlatform("qq", New)
}

// Platform talks to a OneBot v11 implementation (NapCat, LLOneBot, etc.)
// over forward WebSocket. Destinations are "user:<qq>" or "group:<id>"; a
// bare number is treated as a user ID.
type Platform struct {
	wsURL       string // e.g. "ws://127.0.0.1:3001"
	token       string // optional access_token
	defaultDest string
	conn        *websocket.Conn
	mu          sync.Mutex
	echoSeq     atomic.Int64
	echoCh      sync.Map // echo -> chan json.RawMessage
	done        chan struct{}
}

func New(opts map[string]any) (core.Platform, error) {
	wsURL, _ := opts["ws_url"].(string)
	if wsURL == "" {
		wsURL = "ws://127.0.0.1:3001"
	}
	token, _ := opts["token"].(string)
	dest, _ := opts["default_dest"].(string)

	return &Platform{wsURL: wsURL, token: token, defaultDest: dest}, nil
}

func (p *Platform) Name() string { return "qq" }

func (p *Platform) Open() error {
	header := http.Header{}
	if p.token != "" {
		header.Set("Authorization", "Bearer "+p.token)
	}

	conn, _, err := websocket.DefaultDialer.Dial(p.wsURL, header)
	if err != nil {
		return fmt.Errorf("qq: ws connect failed (%s): %w", p.wsURL, err)
	}
	p.conn = conn
	p.done = make(chan struct{})

	slog.Debug("qq: connected to OneBot", "url", p.wsURL)

	go p.readLoop()
	return nil
}

// readLoop routes API responses (frames carrying an echo field) back to
// their callers. Event frames are ignored; this client only sends.
func (p *Platform) readLoop() {
	for {
		_, raw, err := p.conn.ReadMessage()
		if err != nil {
			select {
			case <-p.done:
			default:
				slog.Warn("qq: ws read error", "error", err)
			}
			return
		}

		var payload struct {
			Echo string `json:"echo"`
		}
		if json.Unmarshal(raw, &payload) != nil || payload.Echo == "" {
			continue
		}
		if ch, loaded := p.echoCh.LoadAndDelete(payload.Echo); loaded {
			if dataCh, ok := ch.(chan json.RawMessage); ok {
				dataCh <- raw
			}
		}
	}
}

// Format strips Markdown: OneBot plain messages render no markup.
func (p *Platform) Format(text string) string {
	return core.StripMarkdown(text)
}

func (p *Platform) Send(ctx context.Context, dest, content string) error {
	if dest == "" {
		dest = p.defaultDest
	}
	kind, id, err := parseDest(dest)
	if err != nil {
		return err
	}

	params := map[string]any{"message": content}
	action := "send_private_msg"
	if kind == "group" {
		action = "send_group_msg"
		params["group_id"] = id
	} else {
		params["user_id"] = id
	}

	if _, err := p.callAPI(ctx, action, params); err != nil {
		return err
	}
	slog.Debug("qq: message sent", "dest", dest, "chars", len(content))
	return nil
}

func parseDest(dest string) (kind string, id int64, err error) {
	if dest == "" {
		return "", 0, fmt.Errorf("qq: no destination given and no default_dest configured")
	}
	kind = "user"
	if cut, rest, found := strings.Cut(dest, ":"); found {
		switch cut {
		case "user", "group":
			kind = cut
			dest = rest
		default:
			return "", 0, fmt.Errorf("qq: destination must be user:<id> or group:<id>, got %q", dest)
		}
	}
	id, err = strconv.ParseInt(dest, 10, 64)
	if err != nil {
		return "", 0, fmt.Errorf("qq: invalid destination id %q", dest)
	}
	return kind, id, nil
}

// callAPI performs a OneBot API call over the websocket and waits for the
// response frame carrying the matching echo.
func (p *Platform) callAPI(ctx context.Context, action string, params map[string]any) (map[string]any, error) {
	echo := strconv.FormatInt(p.echoSeq.Add(1), 10)

	req := map[string]any{
		"action": action,
		"echo":   echo,
	}
	if params != nil {
		req["params"] = params
	}

	ch := make(chan json.RawMessage, 1)
	p.echoCh.Store(echo, ch)
	defer p.echoCh.Delete(echo)

	data, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	err = p.conn.WriteMessage(websocket.TextMessage, data)
	p.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("qq: ws write: %w", err)
	}

	select {
	case raw := <-ch:
		var resp struct {
			Status  string          `json:"status"`
			RetCode int             `json:"retcode"`
			Data    json.RawMessage `json:"data"`
		}
		if json.Unmarshal(raw, &resp) != nil {
			return nil, fmt.Errorf("qq: invalid API response")
		}
		if resp.RetCode != 0 {
			return nil, fmt.Errorf("qq: API %s failed (retcode=%d)", action, resp.RetCode)
		}
		var result map[string]any
		json.Unmarshal(resp.Data, &result)
		return result, nil

	case <-ctx.Done():
		return nil, ctx.Err()

	case <-time.After(15 * time.Second):
		return nil, fmt.Errorf("qq: API %s timeout", action)
	}
}

func (p *Platform) Close() error {
	if p.done != nil {
		close(p.done)
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
