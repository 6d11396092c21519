package core

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Outbound is one message on its way to a platform.
type Outbound struct {
	Text        string          `json:"text"`
	Blocks      json.RawMessage `json:"blocks,omitempty"`
	Destination string          `json:"-"`
}

// ParseInput interprets raw pipeline input. A JSON object carrying "text"
// and/or "blocks" is treated as a structured message; anything else falls
// back to plain text. textOnly forces the plain-text path.
func ParseInput(raw []byte, textOnly bool) (*Outbound, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" {
		return nil, fmt.Errorf("empty input")
	}

	if !textOnly && strings.HasPrefix(trimmed, "{") {
		var msg struct {
			Text   string          `json:"text"`
			Blocks json.RawMessage `json:"blocks"`
		}
		if err := json.Unmarshal([]byte(trimmed), &msg); err == nil {
			if msg.Text == "" && len(msg.Blocks) == 0 {
				return nil, fmt.Errorf("json input carries neither text nor blocks")
			}
			return &Outbound{Text: msg.Text, Blocks: msg.Blocks}, nil
		}
		// Not valid JSON after all — treat it as literal text.
	}

	return &Outbound{Text: trimmed}, nil
}
