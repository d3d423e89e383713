package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"plotwatch/internal/notifications/core"
	"plotwatch/internal/types"
)

// AlertDispatcher fires scheduled alerts whose time has come.
//
// Each due alert gets exactly one delivery attempt and is then marked sent
// whatever the outcome. There is no retry: a failed send is logged and the
// alert is still considered dispatched.
type AlertDispatcher struct {
	store    AlertStore
	notifier Notifier
	logger   *slog.Logger
}

// NewAlertDispatcher creates an AlertDispatcher.
func NewAlertDispatcher(store AlertStore, notifier Notifier, logger *slog.Logger) *AlertDispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &AlertDispatcher{
		store:    store,
		notifier: notifier,
		logger:   logger,
	}
}

// AlertMessage formats the body of a scheduled or operator-issued alert.
func AlertMessage(plotName, message string) string {
	return fmt.Sprintf("🌱 Alert for %s: %s", plotName, message)
}

// DispatchDue delivers every alert due at now, in scan order. Only a failure
// to list the due alerts is returned; per-alert failures are logged and
// counted.
func (d *AlertDispatcher) DispatchDue(ctx context.Context, now time.Time) (TickSummary, error) {
	summary := TickSummary{Kind: TaskAlerts, StartedAt: now}

	due, err := d.store.ListDue(ctx, now)
	if err != nil {
		return summary, fmt.Errorf("list due alerts: %w", err)
	}
	summary.Found = len(due)
	if len(due) == 0 {
		return summary, nil
	}

	for _, item := range due {
		if ctx.Err() != nil {
			d.logger.WarnContext(ctx, "alert tick interrupted", "remaining", summary.Found-summary.Dispatched-summary.Failed-summary.Skipped)
			break
		}
		switch d.dispatchOne(ctx, item) {
		case outcomeDispatched:
			summary.Dispatched++
		case outcomeFailed:
			summary.Failed++
		default:
			summary.Skipped++
		}
	}

	d.logger.InfoContext(ctx, "alert tick complete",
		"found", summary.Found,
		"dispatched", summary.Dispatched,
		"failed", summary.Failed,
		"skipped", summary.Skipped,
	)
	return summary, nil
}

type outcome int

const (
	outcomeDispatched outcome = iota
	outcomeFailed
	outcomeSkipped
)

func (d *AlertDispatcher) dispatchOne(ctx context.Context, item types.DueAlert) outcome {
	alert := item.Alert
	log := d.logger.With("alert_id", alert.ID, "plot_id", alert.PlotID)

	if item.Contact == nil {
		log.WarnContext(ctx, "due alert has no routable contact, leaving pending",
			"code", string(types.ErrCodeRoutingNoRecipient))
		return outcomeSkipped
	}

	channels := []types.ChannelType{types.ChannelEmail, types.ChannelSMS}
	if alert.CreatedBy != nil {
		channels = append([]types.ChannelType{types.ChannelWhatsApp}, channels...)
	} else {
		log.InfoContext(ctx, "whatsapp skipped for system alert")
	}

	report := d.notifier.Deliver(ctx, core.DeliveryRequest{
		Recipients: item.Contact.Owner,
		Message:    AlertMessage(item.Contact.Plot.Name, alert.Message),
		Subject:    "Alert for " + item.Contact.Plot.Name,
		Channels:   channels,
		OperatorID: alert.CreatedBy,
	})

	marked, err := d.store.MarkSent(ctx, alert.ID)
	if err != nil {
		log.ErrorContext(ctx, "failed to mark alert sent", "error", err)
		return outcomeFailed
	}
	if !marked {
		log.WarnContext(ctx, "alert was already marked sent by another run")
		return outcomeSkipped
	}

	if !report.AnySuccess() {
		log.WarnContext(ctx, "alert dispatched but no channel delivered", "reference_id", report.ReferenceID)
		return outcomeFailed
	}
	return outcomeDispatched
}
