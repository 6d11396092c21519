package core

import (
	"context"
	"encoding/json"
)

// Platform abstracts an outbound messaging platform (Slack, Telegram, etc.).
type Platform interface {
	Name() string
	// Open establishes the client. It must be called once before Send.
	Open() error
	// Send delivers text to dest. An empty dest means the platform's
	// configured default destination.
	Send(ctx context.Context, dest, text string) error
	Close() error
}

// Formatter is implemented by platforms whose rendering surface needs the
// outgoing Markdown rewritten into a platform dialect before delivery.
type Formatter interface {
	Format(text string) string
}

// BlockSender is implemented by platforms that accept structured block
// payloads in addition to plain text. fallback is shown by clients that
// cannot render blocks (notifications, previews).
type BlockSender interface {
	SendBlocks(ctx context.Context, dest string, blocks json.RawMessage, fallback string) error
}
