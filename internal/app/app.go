// Package app is the composition root shared by the server and the
// job-runner. It turns a loaded config.Config into connected components and
// owns their shutdown order.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"plotwatch/internal/api/handlers"
	"plotwatch/internal/config"
	"plotwatch/internal/core"
	"plotwatch/internal/db"
	"plotwatch/internal/messaging"
	"plotwatch/internal/monitoring"
	notifcore "plotwatch/internal/notifications/core"
	"plotwatch/internal/notifications/email"
	"plotwatch/internal/notifications/sms"
	"plotwatch/internal/notifications/whatsapp"
	"plotwatch/internal/scheduler"
	"plotwatch/internal/types"
)

// App holds the wired components of one process.
type App struct {
	Config   *config.Config
	Logger   *slog.Logger
	Pool     *pgxpool.Pool
	Registry *prometheus.Registry

	Alerts    *db.AlertRepository
	Operators *db.OperatorRepository

	Manager    *messaging.Manager
	Dispatcher *notifcore.Dispatcher
	Engine     *monitoring.Engine
	Loop       *scheduler.Loop
}

// New connects to the database and builds every component. The caller owns
// the returned App and must Close it.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	pool, err := newPool(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	a, err := build(ctx, cfg, logger, pool)
	if err != nil {
		pool.Close()
		return nil, err
	}
	a.Pool = pool
	return a, nil
}

func newPool(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL.Unmask())
	if err != nil {
		return nil, fmt.Errorf("parsing database url: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = int32(cfg.MaxConns)
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = int32(cfg.MinConns)
	}
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	poolCfg.HealthCheckPeriod = cfg.HealthCheckPeriod

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating database pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	if cfg.ApplySchema {
		if err := db.ApplySchema(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
	}
	return pool, nil
}

// build wires everything on top of an existing DBTX so tests can use a
// fake store.
func build(ctx context.Context, cfg *config.Config, logger *slog.Logger, store db.DBTX) (*App, error) {
	typedLogger := AdaptLogger(logger)
	httpClient := newHTTPClient()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	metrics, err := newNotificationMetrics(ctx, cfg.Observability, reg, logger)
	if err != nil {
		return nil, err
	}
	emailProvider, err := newEmailProvider(cfg.Email, httpClient, logger)
	if err != nil {
		return nil, err
	}
	smsProvider, err := newSMSProvider(cfg.SMS, httpClient, logger)
	if err != nil {
		return nil, err
	}
	factory, err := newTransportFactory(cfg.Messaging, httpClient, logger)
	if err != nil {
		return nil, err
	}

	plots := db.NewPlotRepository(store)
	alerts := db.NewAlertRepository(store)
	readings := db.NewReadingRepository(store)
	reports := db.NewReportScheduleRepository(store)
	operators := db.NewOperatorRepository(store)

	messagingCfg := messaging.Config{
		DefaultCountryCode: cfg.Messaging.DefaultCountryCode,
		SendTimeout:        cfg.Messaging.SendTimeout,
	}
	manager := messaging.NewManager(factory, operators, types.RealClock{}, typedLogger, messagingCfg)

	timeout := deliveryTimeout(cfg.Scheduler.DeliveryTimeout, messagingCfg.SendBudget(), logger)
	dispatcher := notifcore.NewDispatcher(metrics, typedLogger, timeout,
		whatsapp.NewChannel(manager),
		email.NewChannel(email.ChannelConfig{
			Provider: emailProvider,
			Sender:   types.SenderIdentity{Address: cfg.Email.FromAddress, Name: cfg.Email.FromName},
			Logger:   typedLogger,
		}),
		sms.NewChannel(smsProvider, typedLogger),
	)

	engine := monitoring.NewEngine(monitoring.EngineConfig{
		Readings: readings,
		Alerts:   alerts,
		Plots:    plots,
		Notifier: dispatcher,
		Logger:   logger.With("component", "monitoring"),
	})

	loop := scheduler.NewLoop(scheduler.LoopConfig{
		Alerts:         scheduler.NewAlertDispatcher(alerts, dispatcher, logger.With("component", "alert-dispatcher")),
		Reports:        scheduler.NewReportWorker(reports, plots, dispatcher, logger.With("component", "report-worker")),
		AlertInterval:  cfg.Scheduler.AlertInterval,
		ReportInterval: cfg.Scheduler.ReportInterval,
		Metrics:        metrics,
		Logger:         logger.With("component", "scheduler"),
	})

	return &App{
		Config:     cfg,
		Logger:     logger,
		Registry:   reg,
		Alerts:     alerts,
		Operators:  operators,
		Manager:    manager,
		Dispatcher: dispatcher,
		Engine:     engine,
		Loop:       loop,
	}, nil
}

// deliveryTimeout raises the per-channel deadline to the WhatsApp send budget
// when it is configured shorter, so a slow probe cannot starve the send.
func deliveryTimeout(configured, sendBudget time.Duration, logger *slog.Logger) time.Duration {
	if configured >= sendBudget {
		return configured
	}
	logger.Warn("DELIVERY_TIMEOUT is shorter than the whatsapp send budget, using the budget",
		"delivery_timeout", configured.String(),
		"send_budget", sendBudget.String(),
	)
	return sendBudget
}

// Server builds the HTTP server with every route mounted. It registers the
// HTTP metrics on the App registry, so call it once per App.
func (a *App) Server() (*core.Server, error) {
	srv, err := core.NewServer(a.Logger)
	if err != nil {
		return nil, err
	}
	srv.Metrics = core.NewPrometheusRequestMetrics(a.Registry, "plotwatch")
	srv.RequestTimeout = a.Config.Server.RequestTimeout
	if a.Pool != nil {
		srv.HealthProbes = append(srv.HealthProbes, core.ProbeFunc{ProbeName: "database", Fn: a.Pool.Ping})
	}

	readings := handlers.NewReadingHandler(a.Engine, a.Logger)
	alerts := handlers.NewAlertHandler(a.Engine, a.Alerts, a.Logger)
	sessions := handlers.NewWhatsAppHandler(a.Manager, a.Operators, a.Logger)
	events := handlers.NewTransportEventHandler(a.Manager, types.RealClock{}, a.Logger,
		a.Config.Messaging.BridgeSecret.Unmask(),
		a.Config.Messaging.BridgeSecretPrevious.Unmask(),
	)

	srv.V1RouteRegistrars = append(srv.V1RouteRegistrars,
		readings.RegisterRoutes,
		alerts.RegisterRoutes,
		sessions.RegisterRoutes,
	)
	srv.RootRouteRegistrars = append(srv.RootRouteRegistrars,
		events.RegisterRoutes,
		handlers.MetricsRoute(a.Registry),
	)
	srv.MountRoutes()
	return srv, nil
}

// Close disconnects every session, then releases the pool.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.Manager != nil {
		if err := a.Manager.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("closing sessions: %w", err))
		}
	}
	if a.Pool != nil {
		a.Pool.Close()
	}
	return errors.Join(errs...)
}
