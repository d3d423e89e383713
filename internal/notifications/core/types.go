// Package core is the shared notification layer. It owns the Channel
// contract, the Dispatcher that fans one message out over the selected
// channels, and the delivery metrics backends.
package core

import (
	"context"
	"errors"
	"time"

	"plotwatch/internal/types"
)

// ErrNoOperatorContext is returned by channels that can only deliver on
// behalf of a specific operator when the request names none.
var ErrNoOperatorContext = errors.New("no operator context for delivery")

// Reason explains why a channel did not succeed.
type Reason string

const (
	ReasonMissingAddress     Reason = "missing_address"
	ReasonNoOperatorContext  Reason = "no_operator_context"
	ReasonChannelUnavailable Reason = "channel_unavailable"
	ReasonTimeout            Reason = "timeout"
	ReasonFailed             Reason = "failed"
)

// Delivery is the per-channel payload handed to a Channel. Address is already
// resolved for the channel.
type Delivery struct {
	Address       string
	RecipientName string
	Subject       string
	Message       string
	OperatorID    *int64
	ReferenceID   string
}

// Channel delivers one message over one medium. Deliver makes exactly one
// attempt and must honor ctx cancellation where the underlying client allows.
type Channel interface {
	Type() types.ChannelType
	Deliver(ctx context.Context, d Delivery) error
}

// DeliveryRequest fans one message out to a recipient over the listed
// channels. OperatorID is the operator on whose behalf WhatsApp is sent.
type DeliveryRequest struct {
	Recipients types.RecipientAddresses
	Message    string
	Subject    string
	Channels   []types.ChannelType
	OperatorID *int64
}

// ChannelResult is the outcome of one channel. Attempted is false when the
// channel was never invoked or refused the delivery before contacting its
// provider.
type ChannelResult struct {
	Attempted bool          `json:"attempted"`
	Success   bool          `json:"success"`
	Reason    Reason        `json:"reason,omitempty"`
	Error     string        `json:"error,omitempty"`
	Duration  time.Duration `json:"duration_ns,omitempty"`
}

// DeliveryReport is the per-channel result map of one Deliver call.
type DeliveryReport struct {
	ReferenceID string                              `json:"reference_id"`
	Results     map[types.ChannelType]ChannelResult `json:"results"`
}

// AnySuccess reports whether at least one channel delivered.
func (r DeliveryReport) AnySuccess() bool {
	for _, res := range r.Results {
		if res.Success {
			return true
		}
	}
	return false
}

// Succeeded reports whether the given channel delivered.
func (r DeliveryReport) Succeeded(ch types.ChannelType) bool {
	return r.Results[ch].Success
}

// MetricResult is the Result dimension of the DeliveryAttempt metric.
type MetricResult string

const (
	MetricSuccess MetricResult = "success"
	MetricFailed  MetricResult = "failed"
	MetricSkipped MetricResult = "skipped"
)

// NotificationMetrics records delivery outcomes. Implementations must not
// block the caller on a slow backend for long, and never return errors.
type NotificationMetrics interface {
	RecordDelivery(ctx context.Context, channel types.ChannelType, result MetricResult)
	RecordLatency(ctx context.Context, channel types.ChannelType, duration time.Duration)
	RecordTick(ctx context.Context, kind string, skipped bool)
}
