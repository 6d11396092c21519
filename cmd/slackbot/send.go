package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/gravitylens/slackbot/config"
	"github.com/gravitylens/slackbot/core"
)

func runSend(args []string) {
	var configPath, platformName string
	var textOnly bool

	var positional []string
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--config":
			if i+1 < len(args) {
				i++
				configPath = args[i]
			}
		case "--platform", "-p":
			if i+1 < len(args) {
				i++
				platformName = args[i]
			}
		case "--text-only":
			textOnly = true
		case "--help", "-h":
			printSendUsage()
			return
		default:
			positional = append(positional, args[i])
		}
	}

	if len(positional) > 1 {
		fmt.Fprintf(os.Stderr, "Error: at most one destination expected, got %d arguments\n", len(positional))
		os.Exit(1)
	}
	dest := ""
	if len(positional) == 1 {
		dest = positional[0]
	}

	raw := readPipeline()

	msg, err := core.ParseInput(raw, textOnly)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	msg.Destination = dest

	cfg := loadConfig(configPath)
	setupLogger(cfg.Log.Level)

	d, cleanup := buildDispatcher(cfg, platformName)
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if err := d.Dispatch(ctx, msg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Fprintf(os.Stderr, "Message sent via %s.\n", d.Platform().Name())
}

// runFmt prints the dialect-transformed message to stdout without sending —
// the transform as a plain filter.
func runFmt(args []string) {
	for _, a := range args {
		if a == "--help" || a == "-h" {
			fmt.Println("Usage: <input> | slackbot fmt\n\nPrint the Slack-dialect rendering of stdin to stdout.")
			return
		}
	}
	raw := readPipeline()
	fmt.Println(core.FormatForSlack(string(raw)))
}

// readPipeline reads stdin, refusing to run on a terminal: this tool is the
// tail end of a pipe.
func readPipeline() []byte {
	if fi, err := os.Stdin.Stat(); err == nil && (fi.Mode()&os.ModeCharDevice) != 0 {
		fmt.Fprintln(os.Stderr, "Error: no input provided; this command expects input via pipeline.")
		fmt.Fprintln(os.Stderr, "Usage: echo 'message' | slackbot [destination]")
		os.Exit(1)
	}

	raw, err := io.ReadAll(os.Stdin)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading input: %v\n", err)
		os.Exit(1)
	}
	return raw
}

// buildDispatcher creates and opens the selected platform and wires the
// delivery journal when enabled. cleanup closes both.
func buildDispatcher(cfg *config.Config, platformName string) (*core.Dispatcher, func()) {
	pc, err := cfg.Platform(platformName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	p, err := core.CreatePlatform(pc.Type, pc.Options)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if err := p.Open(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	d := core.NewDispatcher(p)

	var journal *core.History
	if cfg.History.Enabled {
		if err := os.MkdirAll(cfg.DataDir, 0o755); err == nil {
			journal, err = core.OpenHistory(cfg.History.Driver, cfg.HistoryDSN())
			if err != nil {
				fmt.Fprintf(os.Stderr, "Warning: history journal unavailable: %v\n", err)
			} else {
				d.SetJournal(journal)
			}
		}
	}

	return d, func() {
		p.Close()
		if journal != nil {
			journal.Close()
		}
	}
}

func printSendUsage() {
	fmt.Println(`Usage: <input> | slackbot send [options] [destination]

Send the piped message to a chat platform. JSON input carrying "text" or
"blocks" is sent structured; anything else is Markdown, rewritten into the
platform's dialect first.

Options:
  -p, --platform <type>   Platform to use (default: config default_platform)
      --config <path>     Config file (default: ./slackbot.toml or ~/.slackbot/slackbot.toml)
      --text-only         Treat input as plain text even if it looks like JSON
  -h, --help              Show this help

Examples:
  echo "Build **passed**" | slackbot send "#builds"
  cat table.md | slackbot send -p telegram
  echo '{"blocks":[...]}' | slackbot send "#release"`)
}
