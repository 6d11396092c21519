package main

import (
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/gravitylens/slackbot/core"
)

func runHistory(args []string) {
	var configPath string
	n := 20
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--config":
			if i+1 < len(args) {
				i++
				configPath = args[i]
			}
		case "--help", "-h":
			fmt.Println("Usage: slackbot history [n]\n\nShow the n most recent deliveries from the journal (default 20).")
			return
		default:
			v, err := strconv.Atoi(args[i])
			if err != nil || v <= 0 {
				fmt.Fprintf(os.Stderr, "Error: invalid count %q\n", args[i])
				os.Exit(1)
			}
			n = v
		}
	}

	cfg := loadConfig(configPath)
	if !cfg.History.Enabled {
		fmt.Fprintln(os.Stderr, "History journal is disabled; set [history] enabled = true in the config.")
		os.Exit(1)
	}

	journal, err := core.OpenHistory(cfg.History.Driver, cfg.HistoryDSN())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer journal.Close()

	entries, err := journal.Recent(n)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if len(entries) == 0 {
		fmt.Println("No deliveries recorded yet.")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tPLATFORM\tDEST\tBYTES\tSTATUS")
	for _, e := range entries {
		status := "ok"
		if !e.OK {
			status = "failed: " + e.Error
		}
		dest := e.Destination
		if dest == "" {
			dest = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
			e.SentAt.Local().Format("2006-01-02 15:04:05"), e.Platform, dest, e.Size, status)
	}
	w.Flush()
}
