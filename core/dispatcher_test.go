package core

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePlatform records sends and can fail a configured number of times.
type fakePlatform struct {
	sent     []string
	dests    []string
	failures int
	format   func(string) string
}

func (f *fakePlatform) Name() string { return "fake" }
func (f *fakePlatform) Open() error  { return nil }
func (f *fakePlatform) Close() error { return nil }

func (f *fakePlatform) Send(_ context.Context, dest, text string) error {
	if f.failures > 0 {
		f.failures--
		return fmt.Errorf("transient failure")
	}
	f.sent = append(f.sent, text)
	f.dests = append(f.dests, dest)
	return nil
}

func (f *fakePlatform) Format(text string) string {
	if f.format != nil {
		return f.format(text)
	}
	return text
}

type fakeBlockPlatform struct {
	fakePlatform
	blocks   json.RawMessage
	fallback string
}

func (f *fakeBlockPlatform) SendBlocks(_ context.Context, _ string, blocks json.RawMessage, fallback string) error {
	f.blocks = blocks
	f.fallback = fallback
	return nil
}

func TestDispatchAppliesFormatter(t *testing.T) {
	p := &fakePlatform{format: strings.ToUpper}
	d := NewDispatcher(p)

	err := d.Dispatch(context.Background(), &Outbound{Text: "hello", Destination: "#ch"})
	require.NoError(t, err)
	require.Len(t, p.sent, 1)
	assert.Equal(t, "HELLO", p.sent[0])
	assert.Equal(t, "#ch", p.dests[0])
}

func TestDispatchSplitsLongMessages(t *testing.T) {
	p := &fakePlatform{}
	d := NewDispatcher(p)

	var sb strings.Builder
	for i := 0; i < 500; i++ {
		sb.WriteString("a line of filler text\n")
	}
	text := sb.String()

	err := d.Dispatch(context.Background(), &Outbound{Text: text})
	require.NoError(t, err)
	assert.Greater(t, len(p.sent), 1)
	for _, chunk := range p.sent {
		assert.LessOrEqual(t, len(chunk), maxPlatformMessageLen)
	}
	assert.Equal(t, text, strings.Join(p.sent, ""))
}

func TestDispatchRetriesTransientFailures(t *testing.T) {
	p := &fakePlatform{failures: 2}
	d := NewDispatcher(p)
	d.backoff = time.Millisecond

	err := d.Dispatch(context.Background(), &Outbound{Text: "eventually"})
	require.NoError(t, err)
	require.Len(t, p.sent, 1)
	assert.Equal(t, "eventually", p.sent[0])
}

func TestDispatchGivesUpAfterRetries(t *testing.T) {
	p := &fakePlatform{failures: 10}
	d := NewDispatcher(p)
	d.backoff = time.Millisecond
	d.SetRetries(1)

	err := d.Dispatch(context.Background(), &Outbound{Text: "doomed"})
	assert.Error(t, err)
	assert.Empty(t, p.sent)
}

func TestDispatchBlocksRequireBlockSender(t *testing.T) {
	p := &fakePlatform{}
	d := NewDispatcher(p)

	err := d.Dispatch(context.Background(), &Outbound{Blocks: json.RawMessage(`[{"type":"divider"}]`)})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "block")
}

func TestDispatchBlocksBypassFormatter(t *testing.T) {
	p := &fakeBlockPlatform{}
	p.format = strings.ToUpper
	d := NewDispatcher(p)

	msg := &Outbound{Text: "fallback", Blocks: json.RawMessage(`[{"type":"divider"}]`)}
	err := d.Dispatch(context.Background(), msg)
	require.NoError(t, err)
	assert.Equal(t, "fallback", p.fallback)
	assert.JSONEq(t, `[{"type":"divider"}]`, string(p.blocks))
	assert.Empty(t, p.sent)
}

func TestSplitMessage(t *testing.T) {
	t.Run("short text untouched", func(t *testing.T) {
		chunks := splitMessage("short", 100)
		assert.Equal(t, []string{"short"}, chunks)
	})

	t.Run("prefers line boundaries", func(t *testing.T) {
		chunks := splitMessage("aaa\nbbb\nccc", 8)
		assert.Equal(t, []string{"aaa\nbbb\n", "ccc"}, chunks)
	})

	t.Run("hard split without newlines", func(t *testing.T) {
		chunks := splitMessage(strings.Repeat("x", 10), 4)
		assert.Equal(t, []string{"xxxx", "xxxx", "xx"}, chunks)
	})
}
