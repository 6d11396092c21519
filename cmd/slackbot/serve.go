package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gravitylens/slackbot/core"
)

func runServe(args []string) {
	var configPath string
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--config":
			if i+1 < len(args) {
				i++
				configPath = args[i]
			}
		case "--help", "-h":
			fmt.Println(`Usage: slackbot serve [--config <path>]

Run the scheduler daemon: fires configured and stored cron jobs and exposes
a control API on a local Unix socket for 'slackbot cron' and ad-hoc sends.`)
			return
		}
	}

	cfg := loadConfig(configPath)
	setupLogger(cfg.Log.Level)

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "Error: create data dir: %v\n", err)
		os.Exit(1)
	}

	var journal *core.History
	if cfg.History.Enabled {
		var err error
		journal, err = core.OpenHistory(cfg.History.Driver, cfg.HistoryDSN())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: open history journal: %v\n", err)
			os.Exit(1)
		}
		defer journal.Close()
	}

	// Open every configured platform. A platform that fails to open is
	// skipped with a warning so one bad credential does not take the whole
	// daemon down.
	dispatchers := make(map[string]*core.Dispatcher)
	for _, pc := range cfg.Platforms {
		p, err := core.CreatePlatform(pc.Type, pc.Options)
		if err != nil {
			slog.Warn("skipping platform", "type", pc.Type, "error", err)
			continue
		}
		if err := p.Open(); err != nil {
			slog.Warn("skipping platform", "type", pc.Type, "error", err)
			continue
		}
		defer p.Close()

		d := core.NewDispatcher(p)
		if journal != nil {
			d.SetJournal(journal)
		}
		dispatchers[pc.Type] = d
		slog.Info("platform ready", "type", pc.Type)
	}
	if len(dispatchers) == 0 {
		fmt.Fprintln(os.Stderr, "Error: no platform could be opened")
		os.Exit(1)
	}

	store, err := core.NewCronStore(cfg.DataDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: open cron store: %v\n", err)
		os.Exit(1)
	}
	scheduler := core.NewCronScheduler(store)
	for name, d := range dispatchers {
		scheduler.RegisterDispatcher(name, d)
	}
	for _, s := range cfg.Schedules {
		platform := s.Platform
		if platform == "" {
			pc, err := cfg.Platform("")
			if err != nil {
				slog.Warn("schedule skipped, no platform", "cron", s.Cron, "error", err)
				continue
			}
			platform = pc.Type
		}
		if err := scheduler.AddEphemeral(s.Cron, platform, s.Destination, s.Message); err != nil {
			slog.Warn("schedule skipped", "cron", s.Cron, "error", err)
		}
	}
	if err := scheduler.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: start scheduler: %v\n", err)
		os.Exit(1)
	}
	defer scheduler.Stop()

	api, err := core.NewAPIServer(cfg.DataDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: start api server: %v\n", err)
		os.Exit(1)
	}
	for name, d := range dispatchers {
		api.RegisterDispatcher(name, d)
	}
	api.SetCronScheduler(scheduler)
	if journal != nil {
		api.SetHistory(journal)
	}
	api.Start()
	defer api.Stop()

	slog.Info("daemon running", "socket", api.SocketPath(), "platforms", len(dispatchers))

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	slog.Info("shutting down")
}
