package monitoring

import (
	"context"
	"fmt"
	"strings"
	"time"

	"plotwatch/internal/notifications/core"
	"plotwatch/internal/scheduler"
	"plotwatch/internal/types"
)

// scheduledLayouts are the accepted scheduled_time formats, tried in order.
// The short form carries no zone and is read as UTC.
var scheduledLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04",
}

// CreateAlertInput is an operator-issued alert. An empty ScheduledTime
// dispatches immediately.
type CreateAlertInput struct {
	PlotID        int64           `json:"plot_id" validate:"required,gt=0"`
	Message       string          `json:"message" validate:"required,max=1000"`
	Type          types.AlertType `json:"type,omitempty" validate:"omitempty,oneof=irrigation heat_stress soil_correction general"`
	Priority      types.Priority  `json:"priority,omitempty" validate:"omitempty,oneof=low medium high critical"`
	ScheduledTime string          `json:"scheduled_time,omitempty"`
	CreatedBy     *int64          `json:"created_by,omitempty" validate:"omitempty,gt=0"`
}

// ParseScheduledTime accepts RFC 3339 or "YYYY-MM-DDTHH:MM".
func ParseScheduledTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range scheduledLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, types.NewAppErrorWithDetails(
		types.ErrCodeValidationInvalidTime,
		fmt.Sprintf("invalid scheduled_time %q", s),
		nil,
		map[string]any{"accepted_formats": scheduledLayouts},
	)
}

// CreateAlert stores an operator alert. A scheduled alert is stored pending
// for the alert tick. An immediate alert is dispatched first and stored as
// sent when it has a creator, or active when it does not.
func (e *Engine) CreateAlert(ctx context.Context, in CreateAlertInput) (*types.Alert, error) {
	in.Message = strings.TrimSpace(in.Message)
	if err := types.ValidateStruct(in, types.ErrCodeValidationInvalidEnum); err != nil {
		return nil, err
	}
	if in.Type == "" {
		in.Type = types.AlertTypeGeneral
	}
	if in.Priority == "" {
		in.Priority = types.PriorityMedium
	}

	alert := &types.Alert{
		PlotID:    in.PlotID,
		Message:   in.Message,
		Type:      in.Type,
		Priority:  in.Priority,
		CreatedBy: in.CreatedBy,
	}

	if in.ScheduledTime != "" {
		at, err := ParseScheduledTime(in.ScheduledTime)
		if err != nil {
			return nil, err
		}
		// Resolve the plot now so a bad id fails at creation, not at the tick.
		if _, err := e.plots.GetContact(ctx, in.PlotID); err != nil {
			return nil, err
		}
		alert.ScheduledTime = &at
		alert.Status = types.AlertStatusPending
		if err := e.alerts.Create(ctx, alert); err != nil {
			return nil, err
		}
		e.logger.InfoContext(ctx, "alert scheduled",
			"alert_id", alert.ID,
			"plot_id", alert.PlotID,
			"scheduled_time", at.Format(time.RFC3339),
		)
		return alert, nil
	}

	contact, err := e.plots.GetContact(ctx, in.PlotID)
	if err != nil {
		return nil, err
	}

	report := e.notifier.Deliver(ctx, core.DeliveryRequest{
		Recipients: contact.Owner,
		Message:    scheduler.AlertMessage(contact.Plot.Name, in.Message),
		Subject:    "Alert for " + contact.Plot.Name,
		Channels:   channelsFor(in.CreatedBy),
		OperatorID: in.CreatedBy,
	})

	alert.Status = types.AlertStatusActive
	if in.CreatedBy != nil {
		alert.Status = types.AlertStatusSent
	}
	if err := e.alerts.Create(ctx, alert); err != nil {
		return nil, err
	}

	e.logger.InfoContext(ctx, "alert dispatched",
		"alert_id", alert.ID,
		"plot_id", alert.PlotID,
		"status", string(alert.Status),
		"delivered", report.AnySuccess(),
		"reference_id", report.ReferenceID,
	)
	return alert, nil
}
