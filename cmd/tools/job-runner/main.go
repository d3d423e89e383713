// Package main implements the job-runner CLI for running one scheduler tick
// outside the server process.
//
// It is intended for local development, backfills and operational
// debugging. The tick runs with the same wiring as the server (database,
// providers, WhatsApp transport) and its summary is printed as JSON.
//
// Usage:
//
//	go run ./cmd/tools/job-runner -task alerts
//	go run ./cmd/tools/job-runner -task reports -now 2026-01-15T02:00:00Z
//	go run ./cmd/tools/job-runner -task migrate
//	go run ./cmd/tools/job-runner -list
//
// Configuration is read from the environment the same way as the server.
// WhatsApp deliveries only succeed for operators whose session is connected
// in this process, which with the stub transport means auto-confirm.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"plotwatch/internal/app"
	"plotwatch/internal/config"
	"plotwatch/internal/db"
	"plotwatch/internal/scheduler"
)

// taskMigrate applies the schema instead of running a tick.
const taskMigrate scheduler.TaskType = "migrate"

var validTasks = map[scheduler.TaskType]string{
	scheduler.TaskAlerts:  "Dispatch pending alerts whose scheduled time has passed",
	scheduler.TaskReports: "Send due weekly and monthly report notifications",
	taskMigrate:           "Apply the database schema (idempotent)",
}

type options struct {
	task    scheduler.TaskType
	refTime *time.Time
	list    bool
}

func parseArgs(args []string, stderr io.Writer) (options, error) {
	fs := flag.NewFlagSet("job-runner", flag.ContinueOnError)
	fs.SetOutput(stderr)
	task := fs.String("task", "", "Task to execute: alerts, reports or migrate")
	now := fs.String("now", "", "Override the reference time (RFC3339)")
	list := fs.Bool("list", false, "List available tasks and exit")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}

	opts := options{list: *list}
	if opts.list {
		return opts, nil
	}
	if *task == "" {
		return options{}, fmt.Errorf("-task is required")
	}
	opts.task = scheduler.TaskType(*task)
	if _, ok := validTasks[opts.task]; !ok {
		return options{}, fmt.Errorf("unknown task %q (use -list)", *task)
	}
	if *now != "" {
		t, err := time.Parse(time.RFC3339, *now)
		if err != nil {
			return options{}, fmt.Errorf("invalid -now %q: %w", *now, err)
		}
		t = t.UTC()
		opts.refTime = &t
	}
	return opts, nil
}

func main() {
	opts, err := parseArgs(os.Args[1:], os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(2)
	}
	if opts.list {
		printTasks(os.Stdout)
		return
	}
	if err := run(opts); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(opts options) error {
	cfg, err := config.LoadConfig(nil)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	logger := app.NewLogger(os.Stderr, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing: %w", err)
	}
	defer a.Close(context.Background())

	if opts.task == taskMigrate {
		if err := db.ApplySchema(ctx, a.Pool); err != nil {
			return err
		}
		logger.Info("schema applied")
		return nil
	}

	summary, err := a.Loop.RunTask(ctx, scheduler.JobPayload{Task: opts.task, ReferenceTime: opts.refTime})
	if err != nil {
		return fmt.Errorf("task %s failed: %w", opts.task, err)
	}
	return writeSummary(os.Stdout, summary)
}

func writeSummary(w io.Writer, summary scheduler.TickSummary) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(summary)
}

func printTasks(w io.Writer) {
	names := make([]string, 0, len(validTasks))
	for t := range validTasks {
		names = append(names, string(t))
	}
	sort.Strings(names)
	fmt.Fprintln(w, "Available tasks:")
	for _, name := range names {
		fmt.Fprintf(w, "  %-8s %s\n", name, validTasks[scheduler.TaskType(name)])
	}
}
