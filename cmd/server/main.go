// Package main is the entry point for the plotwatch server.
//
// It loads configuration, wires the database, notification channels,
// messaging sessions and monitoring engine, then runs the HTTP server and
// the scheduler loop side by side until SIGINT or SIGTERM. On shutdown the
// HTTP server drains first, then every operator session is closed and the
// pool is released.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"plotwatch/internal/app"
	"plotwatch/internal/config"
)

const shutdownTimeout = 15 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig(nil)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := app.NewLogger(os.Stdout, cfg.LogLevel)
	logger.Info("plotwatch starting",
		"environment", cfg.Environment,
		"version", cfg.Build.Version,
		"commit", cfg.Build.Commit,
		"port", cfg.Server.Port,
		"whatsapp_transport", cfg.Messaging.Transport,
		"email_provider", cfg.Email.Provider,
		"sms_provider", cfg.SMS.Provider,
		"metrics_backend", cfg.Observability.MetricsBackend,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := a.Close(closeCtx); err != nil {
			logger.Error("shutdown cleanup failed", "error", err)
		}
	}()

	srv, err := a.Server()
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.ListenAndServe(gctx, ":"+cfg.Server.Port)
	})
	if cfg.Scheduler.Enabled {
		g.Go(func() error {
			return a.Loop.Run(gctx)
		})
	} else {
		logger.Warn("scheduler disabled; scheduled alerts and reports will not be dispatched")
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("plotwatch stopped cleanly")
	return nil
}
