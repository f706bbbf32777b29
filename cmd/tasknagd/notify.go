package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"tasknag/internal/app"
	"tasknag/internal/config"
	"tasknag/internal/notify"
	"tasknag/internal/vault"
	"tasknag/pkg/logx"
)

// runNotify delivers a single notification and exits. It runs detached from
// the daemon (a fired OS timer execs it), so it re-derives the sink and the
// lock state from the config file alone.
func runNotify(args []string) int {
	fs := flag.NewFlagSet("notify", flag.ContinueOnError)
	var (
		title   = fs.String("title", "", "notification title")
		body    = fs.String("body", "", "notification body")
		taskID  = fs.Int64("task-id", 0, "related task id")
		cfgPath = fs.String("config", "./config.yaml", "path to config file")
	)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *title == "" {
		fmt.Fprintln(os.Stderr, "notify: -title is required")
		return 2
	}

	cfg, err := config.NewManager(*cfgPath).Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "notify:", err)
		return 1
	}

	log := logx.NewConsole(cfg.Logging.Level).With(logx.String("comp", "notify-helper"))

	p := notify.Payload{Title: *title, Body: *body, TaskID: *taskID}
	if vault.New(app.DataDir(cfg)).Locked() {
		t, b := notify.EnglishFormatter{}.LockedPlaceholder()
		p = notify.Payload{Title: t, Body: b, TaskID: *taskID}
	}

	snk, err := app.BuildSink(cfg, log)
	if err != nil {
		fmt.Fprintln(os.Stderr, "notify:", err)
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := snk.Send(ctx, p); err != nil {
		fmt.Fprintln(os.Stderr, "notify:", err)
		return 1
	}
	return 0
}
