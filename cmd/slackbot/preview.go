package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/gravitylens/slackbot/core"
)

func runPreview(args []string) {
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
			fmt.Println(`Usage: <input> | slackbot preview [options] [destination]

Show the transformed message in a pager before sending.
Keys: enter sends, q aborts, j/k or arrows scroll.

Options are the same as 'slackbot send'.`)
			return
		default:
			positional = append(positional, args[i])
		}
	}
	dest := ""
	if len(positional) > 0 {
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

	rendered := msg.Text
	if len(msg.Blocks) > 0 {
		rendered = string(msg.Blocks)
	} else if f, ok := d.Platform().(core.Formatter); ok {
		rendered = f.Format(rendered)
	}

	// Stdin is the message pipe, so the TUI reads keys from the terminal
	// directly and draws on stderr.
	tty, err := os.Open("/dev/tty")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: preview needs a terminal: %v\n", err)
		os.Exit(1)
	}
	defer tty.Close()

	m := previewModel{
		content:  rendered,
		platform: d.Platform().Name(),
		dest:     dest,
	}
	prog := tea.NewProgram(m, tea.WithInput(tty), tea.WithOutput(os.Stderr))
	final, err := prog.Run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if fm, ok := final.(previewModel); !ok || !fm.confirmed {
		fmt.Fprintln(os.Stderr, "Aborted, nothing sent.")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if err := d.Dispatch(ctx, msg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Fprintf(os.Stderr, "Message sent via %s.\n", d.Platform().Name())
}

var (
	previewTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("15")).
				Background(lipgloss.Color("62")).
				Padding(0, 1)
	previewBodyStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("240")).
				Padding(0, 1)
	previewHelpStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("241"))
)

type previewModel struct {
	content   string
	platform  string
	dest      string
	viewport  viewport.Model
	ready     bool
	confirmed bool
}

func (m previewModel) Init() tea.Cmd {
	return nil
}

func (m previewModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "enter", "y":
			m.confirmed = true
			return m, tea.Quit
		case "q", "esc", "ctrl+c", "n":
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		headerHeight := 2
		footerHeight := 2
		bodyHeight := msg.Height - headerHeight - footerHeight
		if bodyHeight < 1 {
			bodyHeight = 1
		}
		if !m.ready {
			m.viewport = viewport.New(msg.Width-4, bodyHeight)
			m.viewport.SetContent(m.content)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width - 4
			m.viewport.Height = bodyHeight
		}
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m previewModel) View() string {
	if !m.ready {
		return "loading preview..."
	}

	target := m.platform
	if m.dest != "" {
		target += " → " + m.dest
	}
	title := previewTitleStyle.Render("preview: " + target)
	body := previewBodyStyle.Render(m.viewport.View())
	help := previewHelpStyle.Render("enter: send  •  q: abort  •  j/k: scroll")

	return title + "\n" + body + "\n" + help + "\n"
}
