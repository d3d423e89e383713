// Package monitoring exposes the synchronous operations of the dispatch
// engine: evaluating a reading, recording one (which may raise and dispatch
// alerts) and creating operator alerts, immediate or scheduled.
package monitoring

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"plotwatch/internal/health"
	"plotwatch/internal/notifications/core"
	"plotwatch/internal/rules"
	"plotwatch/internal/types"
)

// ReadingStore appends readings.
type ReadingStore interface {
	Insert(ctx context.Context, reading types.SensorReading, score int) (int64, error)
}

// AlertWriter persists alerts.
type AlertWriter interface {
	Create(ctx context.Context, a *types.Alert) error
}

// ContactStore resolves a plot and its owner's addresses.
type ContactStore interface {
	GetContact(ctx context.Context, plotID int64) (*types.PlotContact, error)
}

// Notifier is the part of the notification Dispatcher the engine uses.
type Notifier interface {
	Deliver(ctx context.Context, req core.DeliveryRequest) core.DeliveryReport
}

// EngineConfig wires an Engine.
type EngineConfig struct {
	Evaluator *rules.Evaluator
	Readings  ReadingStore
	Alerts    AlertWriter
	Plots     ContactStore
	Notifier  Notifier
	Clock     types.Clock
	Logger    *slog.Logger
}

// Engine implements the exposed monitoring operations.
type Engine struct {
	evaluator *rules.Evaluator
	readings  ReadingStore
	alerts    AlertWriter
	plots     ContactStore
	notifier  Notifier
	clock     types.Clock
	logger    *slog.Logger
}

// NewEngine creates an Engine. A nil Evaluator uses the default rules.
func NewEngine(cfg EngineConfig) *Engine {
	e := &Engine{
		evaluator: cfg.Evaluator,
		readings:  cfg.Readings,
		alerts:    cfg.Alerts,
		plots:     cfg.Plots,
		notifier:  cfg.Notifier,
		clock:     cfg.Clock,
		logger:    cfg.Logger,
	}
	if e.evaluator == nil {
		e.evaluator = rules.NewEvaluator()
	}
	if e.clock == nil {
		e.clock = types.RealClock{}
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	return e
}

// Evaluation is the side-effect free result of scoring a reading.
type Evaluation struct {
	Health         types.HealthResult `json:"health"`
	Drafts         []types.AlertDraft `json:"alerts"`
	Recommendation string             `json:"recommendation,omitempty"`
}

// EvaluateReading validates, scores and evaluates a reading without
// touching the store. species tunes the watering recommendation and may be
// empty.
func (e *Engine) EvaluateReading(reading types.SensorReading, species string) (Evaluation, error) {
	if err := types.ValidateReading(reading); err != nil {
		return Evaluation{}, err
	}
	return Evaluation{
		Health:         health.Score(reading),
		Drafts:         e.evaluator.Evaluate(reading),
		Recommendation: rules.Recommend(species, reading),
	}, nil
}

// RecordResult is what RecordReading persisted and dispatched.
type RecordResult struct {
	LogID int64 `json:"log_id"`
	Evaluation
	Created []*types.Alert `json:"created_alerts"`
}

// RuleAlertMessage formats the body of a rule-generated alert.
func RuleAlertMessage(p types.Priority, plotName, message string) string {
	return fmt.Sprintf("🚨 [%s] %s: %s", strings.ToUpper(string(p)), plotName, message)
}

// RecordReading stores the reading with its health score, then raises one
// immediate alert per matching rule. Each alert is stored as sent and then
// dispatched to the plot owner, on behalf of the plot's assigned operator
// when it has one. An alert that cannot be stored is not sent. A failure on
// one alert is logged and does not stop the others.
func (e *Engine) RecordReading(ctx context.Context, reading types.SensorReading) (*RecordResult, error) {
	if err := types.ValidateReading(reading); err != nil {
		return nil, err
	}
	if reading.RecordedAt.IsZero() {
		reading.RecordedAt = e.clock.Now()
	}

	contact, err := e.plots.GetContact(ctx, reading.PlotID)
	if err != nil {
		return nil, err
	}

	eval, err := e.EvaluateReading(reading, contact.Plot.Species)
	if err != nil {
		return nil, err
	}

	logID, err := e.readings.Insert(ctx, reading, eval.Health.Score)
	if err != nil {
		return nil, err
	}

	log := e.logger.With("plot_id", reading.PlotID, "log_id", logID)
	log.InfoContext(ctx, "reading recorded",
		"health_score", eval.Health.Score,
		"health_status", string(eval.Health.Status),
		"alerts", len(eval.Drafts),
	)

	result := &RecordResult{LogID: logID, Evaluation: eval, Created: make([]*types.Alert, 0, len(eval.Drafts))}
	for _, draft := range eval.Drafts {
		// The row is written before anything is sent so a farmer is never
		// told about an alert the store has no record of.
		alert := &types.Alert{
			PlotID:   reading.PlotID,
			Message:  draft.Message,
			Type:     draft.Type,
			Priority: draft.Priority,
			Status:   types.AlertStatusSent,
		}
		if err := e.alerts.Create(ctx, alert); err != nil {
			log.ErrorContext(ctx, "failed to store rule alert, not sending it", "type", string(draft.Type), "error", err)
			continue
		}
		result.Created = append(result.Created, alert)

		report := e.notifier.Deliver(ctx, core.DeliveryRequest{
			Recipients: contact.Owner,
			Message:    RuleAlertMessage(draft.Priority, contact.Plot.Name, draft.Message),
			Subject:    "Alert for " + contact.Plot.Name,
			Channels:   channelsFor(contact.Plot.OperatorID),
			OperatorID: contact.Plot.OperatorID,
		})
		if !report.AnySuccess() {
			log.WarnContext(ctx, "rule alert not delivered on any channel",
				"alert_id", alert.ID,
				"type", string(draft.Type),
				"reference_id", report.ReferenceID,
			)
		}
	}
	return result, nil
}

// channelsFor returns the channel set of an alert. Without an operator
// there is no session to send WhatsApp through, so it is left out.
func channelsFor(operatorID *int64) []types.ChannelType {
	if operatorID == nil {
		return []types.ChannelType{types.ChannelEmail, types.ChannelSMS}
	}
	return types.AllChannels
}
