package core

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

const maxPlatformMessageLen = 4000

// Dispatcher delivers outbound messages to a single platform. It applies the
// platform's dialect rewrite, chunks long messages at line boundaries,
// retries transient failures, and journals every attempt.
type Dispatcher struct {
	platform Platform
	journal  *History
	retries  int
	backoff  time.Duration
}

func NewDispatcher(p Platform) *Dispatcher {
	return &Dispatcher{platform: p, retries: 2, backoff: time.Second}
}

// SetJournal enables delivery journaling. A nil journal disables it.
func (d *Dispatcher) SetJournal(h *History) { d.journal = h }

// SetRetries overrides the number of retry attempts after a failed send.
func (d *Dispatcher) SetRetries(n int) {
	if n >= 0 {
		d.retries = n
	}
}

func (d *Dispatcher) Platform() Platform { return d.platform }

// Dispatch sends one message. Text goes through the platform's Formatter if
// it implements one; block payloads are handed over untouched.
func (d *Dispatcher) Dispatch(ctx context.Context, msg *Outbound) error {
	if len(msg.Blocks) > 0 {
		return d.dispatchBlocks(ctx, msg)
	}

	text := msg.Text
	if f, ok := d.platform.(Formatter); ok {
		text = f.Format(text)
	}

	for _, chunk := range splitMessage(text, maxPlatformMessageLen) {
		err := d.trySend(ctx, func(c context.Context) error {
			return d.platform.Send(c, msg.Destination, chunk)
		})
		d.record(msg.Destination, len(chunk), err)
		if err != nil {
			return err
		}
		slog.Debug("chunk delivered", "platform", d.platform.Name(), "dest", msg.Destination, "chars", len(chunk))
	}
	return nil
}

func (d *Dispatcher) dispatchBlocks(ctx context.Context, msg *Outbound) error {
	bs, ok := d.platform.(BlockSender)
	if !ok {
		return fmt.Errorf("%s: platform does not accept block payloads", d.platform.Name())
	}
	err := d.trySend(ctx, func(c context.Context) error {
		return bs.SendBlocks(c, msg.Destination, msg.Blocks, msg.Text)
	})
	d.record(msg.Destination, len(msg.Blocks), err)
	return err
}

func (d *Dispatcher) trySend(ctx context.Context, send func(context.Context) error) error {
	var err error
	for attempt := 0; ; attempt++ {
		err = send(ctx)
		if err == nil || attempt >= d.retries {
			return err
		}
		slog.Warn("send failed, retrying",
			"platform", d.platform.Name(), "attempt", attempt+1, "error", err)
		select {
		case <-ctx.Done():
			return err
		case <-time.After(time.Duration(attempt+1) * d.backoff):
		}
	}
}

func (d *Dispatcher) record(dest string, size int, err error) {
	if d.journal == nil {
		return
	}
	if jerr := d.journal.Record(d.platform.Name(), dest, size, err); jerr != nil {
		slog.Warn("journal write failed", "error", jerr)
	}
}

// splitMessage cuts text into chunks of at most maxLen bytes, preferring to
// break at line boundaries.
func splitMessage(text string, maxLen int) []string {
	if len(text) <= maxLen {
		return []string{text}
	}
	var chunks []string
	for len(text) > 0 {
		end := maxLen
		if end > len(text) {
			end = len(text)
		}
		if end < len(text) {
			if idx := strings.LastIndex(text[:end], "\n"); idx > 0 {
				end = idx + 1
			}
		}
		chunks = append(chunks, text[:end])
		text = text[end:]
	}
	return chunks
}
