// Package scheduler runs the periodic jobs of the dispatch engine: the alert
// tick that fires scheduled alerts once they are due, and the report tick
// that notifies subscribers of their recurring reports.
//
// Both ticks are driven by Loop in the server binary and can be triggered
// one at a time by the job-runner tool.
package scheduler

import (
	"context"
	"errors"
	"time"

	"plotwatch/internal/notifications/core"
	"plotwatch/internal/types"
)

// TaskType identifies which tick a one-shot invocation runs.
type TaskType string

const (
	TaskAlerts  TaskType = "alerts"
	TaskReports TaskType = "reports"
)

// JobPayload is the input of a one-shot invocation.
type JobPayload struct {
	Task TaskType `json:"task"`
	// ReferenceTime overrides "now" for deterministic runs and backfills. If
	// nil, the clock's time is used.
	ReferenceTime *time.Time `json:"reference_time,omitempty"`
}

// ErrTickInProgress is returned when a tick of the same kind is still
// running. The skipped tick is never queued.
var ErrTickInProgress = errors.New("tick already in progress")

// TickSummary counts what one tick did.
type TickSummary struct {
	Kind       TaskType  `json:"kind"`
	StartedAt  time.Time `json:"started_at"`
	Found      int       `json:"found"`
	Dispatched int       `json:"dispatched"`
	Failed     int       `json:"failed"`
	Skipped    int       `json:"skipped"`
}

// Notifier is the part of the notification Dispatcher the jobs use.
type Notifier interface {
	Deliver(ctx context.Context, req core.DeliveryRequest) core.DeliveryReport
}

// AlertStore is the slice of the alert repository the alert tick needs.
type AlertStore interface {
	// ListDue returns pending alerts with scheduled_time <= now, ordered by
	// (scheduled_time, alert_id).
	ListDue(ctx context.Context, now time.Time) ([]types.DueAlert, error)
	// MarkSent moves a pending alert to sent and reports whether this call
	// made the change.
	MarkSent(ctx context.Context, id int64) (bool, error)
}

// ReportStore is the slice of the report schedule repository the report
// tick needs.
type ReportStore interface {
	ListDue(ctx context.Context, now time.Time) ([]types.ReportRecipient, error)
	UpdateLastSent(ctx context.Context, scheduleID int64, sentAt time.Time) error
}

// PlotCounter counts the plots a user owns.
type PlotCounter interface {
	CountByOwner(ctx context.Context, userID int64) (int, error)
}
