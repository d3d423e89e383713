package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"plotwatch/internal/notifications/core"
	"plotwatch/internal/types"
)

const (
	DefaultAlertInterval  = time.Minute
	DefaultReportInterval = time.Hour
)

// LoopConfig wires a Loop.
type LoopConfig struct {
	Alerts         *AlertDispatcher
	Reports        *ReportWorker
	AlertInterval  time.Duration
	ReportInterval time.Duration
	Clock          types.Clock
	Metrics        core.NotificationMetrics
	Logger         *slog.Logger
}

// Loop drives the alert and report ticks on independent tickers.
//
// Each tick kind has its own guard. A tick that fires while the previous one
// of the same kind is still running is skipped and counted, never queued, so
// the two kinds never block each other.
type Loop struct {
	alerts         *AlertDispatcher
	reports        *ReportWorker
	alertInterval  time.Duration
	reportInterval time.Duration
	clock          types.Clock
	metrics        core.NotificationMetrics
	logger         *slog.Logger

	alertMu  sync.Mutex
	reportMu sync.Mutex
}

// NewLoop creates a Loop. Zero intervals select the defaults.
func NewLoop(cfg LoopConfig) *Loop {
	l := &Loop{
		alerts:         cfg.Alerts,
		reports:        cfg.Reports,
		alertInterval:  cfg.AlertInterval,
		reportInterval: cfg.ReportInterval,
		clock:          cfg.Clock,
		metrics:        cfg.Metrics,
		logger:         cfg.Logger,
	}
	if l.alertInterval <= 0 {
		l.alertInterval = DefaultAlertInterval
	}
	if l.reportInterval <= 0 {
		l.reportInterval = DefaultReportInterval
	}
	if l.clock == nil {
		l.clock = types.RealClock{}
	}
	if l.metrics == nil {
		l.metrics = core.NoopMetrics{}
	}
	if l.logger == nil {
		l.logger = slog.Default()
	}
	return l
}

// Run starts both tickers and blocks until ctx is done. In-flight ticks are
// waited for before Run returns.
func (l *Loop) Run(ctx context.Context) error {
	l.logger.InfoContext(ctx, "scheduler started",
		"alert_interval", l.alertInterval.String(),
		"report_interval", l.reportInterval.String(),
	)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		l.every(ctx, l.alertInterval, func(ctx context.Context) {
			_, _ = l.RunAlertTick(ctx)
		})
	}()
	go func() {
		defer wg.Done()
		l.every(ctx, l.reportInterval, func(ctx context.Context) {
			_, _ = l.RunReportTick(ctx)
		})
	}()
	wg.Wait()

	l.logger.Info("scheduler stopped")
	return nil
}

// every fires fn on each tick in its own goroutine, so a slow run lets the
// next tick hit the guard instead of piling up behind it.
func (l *Loop) every(ctx context.Context, d time.Duration, fn func(context.Context)) {
	ticker := time.NewTicker(d)
	defer ticker.Stop()

	var inflight sync.WaitGroup
	defer inflight.Wait()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			inflight.Add(1)
			go func() {
				defer inflight.Done()
				fn(ctx)
			}()
		}
	}
}

// RunAlertTick runs one alert tick now. It returns ErrTickInProgress when
// another alert tick holds the guard.
func (l *Loop) RunAlertTick(ctx context.Context) (TickSummary, error) {
	return l.runGuarded(ctx, &l.alertMu, TaskAlerts, l.alerts.DispatchDue)
}

// RunReportTick runs one report tick now. It returns ErrTickInProgress when
// another report tick holds the guard.
func (l *Loop) RunReportTick(ctx context.Context) (TickSummary, error) {
	return l.runGuarded(ctx, &l.reportMu, TaskReports, l.reports.ProcessDue)
}

// RunTask runs the tick named by the payload.
func (l *Loop) RunTask(ctx context.Context, p JobPayload) (TickSummary, error) {
	now := l.clock.Now()
	if p.ReferenceTime != nil {
		now = p.ReferenceTime.UTC()
	}
	switch p.Task {
	case TaskAlerts:
		return l.runGuarded(ctx, &l.alertMu, TaskAlerts, func(ctx context.Context, _ time.Time) (TickSummary, error) {
			return l.alerts.DispatchDue(ctx, now)
		})
	case TaskReports:
		return l.runGuarded(ctx, &l.reportMu, TaskReports, func(ctx context.Context, _ time.Time) (TickSummary, error) {
			return l.reports.ProcessDue(ctx, now)
		})
	}
	return TickSummary{}, types.NewAppError(types.ErrCodeValidationInvalidEnum, "unknown task type: "+string(p.Task), nil)
}

func (l *Loop) runGuarded(
	ctx context.Context,
	guard *sync.Mutex,
	kind TaskType,
	fn func(context.Context, time.Time) (TickSummary, error),
) (TickSummary, error) {
	if !guard.TryLock() {
		l.logger.WarnContext(ctx, "tick skipped: previous run still in progress", "kind", string(kind))
		l.metrics.RecordTick(ctx, string(kind), true)
		return TickSummary{Kind: kind}, ErrTickInProgress
	}
	defer guard.Unlock()

	l.metrics.RecordTick(ctx, string(kind), false)
	summary, err := fn(ctx, l.clock.Now())
	if err != nil {
		l.logger.ErrorContext(ctx, "tick failed", "kind", string(kind), "error", err)
	}
	return summary, err
}
