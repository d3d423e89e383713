package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"plotwatch/internal/notifications/core"
	"plotwatch/internal/types"
)

// ReportWorker notifies subscribers whose recurring report is due. Report
// files themselves are produced elsewhere; the worker names the file and
// announces it.
type ReportWorker struct {
	store  ReportStore
	plots  PlotCounter
	notify Notifier
	logger *slog.Logger
}

// NewReportWorker creates a ReportWorker.
func NewReportWorker(store ReportStore, plots PlotCounter, notifier Notifier, logger *slog.Logger) *ReportWorker {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReportWorker{
		store:  store,
		plots:  plots,
		notify: notifier,
		logger: logger,
	}
}

// ReportFileName returns "<type>_report_<YYYY-MM-DD>.<format>".
func ReportFileName(reportType types.ReportType, format string, at time.Time) string {
	return fmt.Sprintf("%s_report_%s.%s", reportType, at.UTC().Format("2006-01-02"), format)
}

// ReportMessage formats the ready notification.
func ReportMessage(reportType types.ReportType, format, fileName string) string {
	return fmt.Sprintf("📂 Your %s %s report is ready: %s", reportType, strings.ToUpper(format), fileName)
}

// ProcessDue handles every schedule due at now. A subscriber with no plots
// is skipped and keeps its last_sent. Everyone else gets one notification
// attempt and has last_sent stamped whether or not it was delivered.
func (w *ReportWorker) ProcessDue(ctx context.Context, now time.Time) (TickSummary, error) {
	summary := TickSummary{Kind: TaskReports, StartedAt: now}

	due, err := w.store.ListDue(ctx, now)
	if err != nil {
		return summary, fmt.Errorf("list due report schedules: %w", err)
	}
	summary.Found = len(due)

	for _, rec := range due {
		if ctx.Err() != nil {
			break
		}
		switch w.processOne(ctx, rec, now) {
		case outcomeDispatched:
			summary.Dispatched++
		case outcomeFailed:
			summary.Failed++
		default:
			summary.Skipped++
		}
	}

	w.logger.InfoContext(ctx, "report tick complete",
		"found", summary.Found,
		"dispatched", summary.Dispatched,
		"failed", summary.Failed,
		"skipped", summary.Skipped,
	)
	return summary, nil
}

func (w *ReportWorker) processOne(ctx context.Context, rec types.ReportRecipient, now time.Time) outcome {
	s := rec.Schedule
	log := w.logger.With("schedule_id", s.ID, "user_id", s.UserID)

	count, err := w.plots.CountByOwner(ctx, s.UserID)
	if err != nil {
		log.ErrorContext(ctx, "failed to count plots", "error", err)
		return outcomeFailed
	}
	if count == 0 {
		log.InfoContext(ctx, "no plots for report subscriber, skipping")
		return outcomeSkipped
	}

	reportID := uuid.NewString()
	fileName := ReportFileName(s.ReportType, s.Format, now)

	report := w.notify.Deliver(ctx, core.DeliveryRequest{
		Recipients: rec.Addresses,
		Message:    ReportMessage(s.ReportType, s.Format, fileName),
		Channels:   []types.ChannelType{types.ChannelWhatsApp},
		OperatorID: s.OperatorID,
	})

	result := outcomeDispatched
	if !report.AnySuccess() {
		log.WarnContext(ctx, "report notification not delivered",
			"report_id", reportID,
			"reference_id", report.ReferenceID,
		)
		result = outcomeFailed
	}

	if err := w.store.UpdateLastSent(ctx, s.ID, now); err != nil {
		log.ErrorContext(ctx, "failed to update report last_sent", "report_id", reportID, "error", err)
		return outcomeFailed
	}

	log.InfoContext(ctx, "report processed",
		"report_id", reportID,
		"file", fileName,
		"plots", count,
	)
	return result
}
