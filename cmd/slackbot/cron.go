package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/gravitylens/slackbot/core"
)

func runCron(args []string) {
	if len(args) == 0 {
		printCronUsage()
		os.Exit(1)
	}

	switch args[0] {
	case "add":
		runCronAdd(args[1:])
	case "list", "ls":
		runCronList(args[1:])
	case "del", "rm":
		runCronDel(args[1:])
	case "--help", "-h", "help":
		printCronUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown cron command: %s\n", args[0])
		printCronUsage()
		os.Exit(1)
	}
}

func runCronAdd(args []string) {
	var configPath, platform, dest, desc, expr string
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
				platform = args[i]
			}
		case "--dest", "-d":
			if i+1 < len(args) {
				i++
				dest = args[i]
			}
		case "--desc":
			if i+1 < len(args) {
				i++
				desc = args[i]
			}
		case "--cron", "-c":
			if i+1 < len(args) {
				i++
				expr = args[i]
			}
		case "--help", "-h":
			printCronUsage()
			return
		default:
			positional = append(positional, args[i])
		}
	}

	// Without an explicit --cron, the leading five positional fields are the
	// schedule: slackbot cron add 0 9 * * 1-5 "standup time"
	if expr == "" {
		if len(positional) < 6 {
			fmt.Fprintln(os.Stderr, "Error: expected '<min> <hour> <dom> <mon> <dow> <message>' or --cron '<expr>' <message>")
			os.Exit(1)
		}
		expr = strings.Join(positional[:5], " ")
		positional = positional[5:]
	}
	if len(positional) == 0 {
		fmt.Fprintln(os.Stderr, "Error: message is required")
		os.Exit(1)
	}
	message := strings.Join(positional, " ")

	req := core.CronAddRequest{
		Platform:    platform,
		Destination: dest,
		CronExpr:    expr,
		Message:     message,
		Description: desc,
	}
	body, _ := json.Marshal(req)

	resp := socketRequest(configPath, http.MethodPost, "/cron/add", bytes.NewReader(body))
	var job core.CronJob
	if err := json.Unmarshal(resp, &job); err != nil {
		fmt.Fprintf(os.Stderr, "Error: unexpected response: %s\n", resp)
		os.Exit(1)
	}
	fmt.Printf("Added job %s: %q at '%s' via %s\n", job.ID, job.Message, job.CronExpr, job.Platform)
}

func runCronList(args []string) {
	var configPath string
	for i := 0; i < len(args); i++ {
		if args[i] == "--config" && i+1 < len(args) {
			i++
			configPath = args[i]
		}
	}

	resp := socketRequest(configPath, http.MethodGet, "/cron/list", nil)
	var jobs []core.CronJob
	if err := json.Unmarshal(resp, &jobs); err != nil {
		fmt.Fprintf(os.Stderr, "Error: unexpected response: %s\n", resp)
		os.Exit(1)
	}
	if len(jobs) == 0 {
		fmt.Println("No cron jobs.")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSCHEDULE\tPLATFORM\tDEST\tENABLED\tLAST RUN\tMESSAGE")
	for _, j := range jobs {
		lastRun := "-"
		if !j.LastRun.IsZero() {
			lastRun = j.LastRun.Format("01-02 15:04")
			if j.LastError != "" {
				lastRun += " (failed)"
			}
		}
		msg := j.Message
		if len(msg) > 40 {
			msg = msg[:37] + "..."
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%v\t%s\t%s\n",
			j.ID, j.CronExpr, j.Platform, j.Destination, j.Enabled, lastRun, msg)
	}
	w.Flush()
}

func runCronDel(args []string) {
	var configPath string
	var positional []string
	for i := 0; i < len(args); i++ {
		if args[i] == "--config" && i+1 < len(args) {
			i++
			configPath = args[i]
			continue
		}
		positional = append(positional, args[i])
	}
	if len(positional) != 1 {
		fmt.Fprintln(os.Stderr, "Usage: slackbot cron del <job-id>")
		os.Exit(1)
	}

	body, _ := json.Marshal(map[string]string{"id": positional[0]})
	socketRequest(configPath, http.MethodPost, "/cron/del", bytes.NewReader(body))
	fmt.Printf("Removed job %s\n", positional[0])
}

// socketRequest performs one HTTP request against the daemon's Unix socket
// and returns the body, exiting with the server's error message on failure.
func socketRequest(configPath, method, path string, body io.Reader) []byte {
	cfg := loadConfig(configPath)
	sock := filepath.Join(cfg.DataDir, "run", "api.sock")

	client := &http.Client{
		Transport: &http.Transport{
			DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
				var d net.Dialer
				return d.DialContext(ctx, "unix", sock)
			},
		},
	}

	req, err := http.NewRequest(method, "http://daemon"+path, body)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := client.Do(req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: cannot reach daemon at %s (is 'slackbot serve' running?): %v\n", sock, err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(os.Stderr, "Error: %s\n", strings.TrimSpace(string(data)))
		os.Exit(1)
	}
	return data
}

func printCronUsage() {
	fmt.Println(`Usage: slackbot cron <command> [options]

Manage scheduled sends on a running 'slackbot serve' daemon.

Commands:
  add [options] <min> <hour> <dom> <mon> <dow> <message>
  add [options] --cron '<expr>' <message>
  list
  del <job-id>

Options for add:
  -p, --platform <type>   Target platform (default: the daemon's only one)
  -d, --dest <dest>       Destination channel/chat
      --desc <text>       Free-form description
      --config <path>     Config file

Examples:
  slackbot cron add 0 9 * * 1-5 "Standup in 15 minutes"
  slackbot cron add --cron '@hourly' -d '#ops' "Heartbeat"
  slackbot cron list
  slackbot cron del a1b2c3d4`)
}
