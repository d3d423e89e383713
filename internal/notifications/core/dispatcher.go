package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"plotwatch/internal/types"
)

// DefaultDeliveryTimeout bounds a single channel call when the Dispatcher is
// built with a zero timeout.
const DefaultDeliveryTimeout = 15 * time.Second

// Dispatcher delivers a message over the channels selected per request.
// Every selected channel gets exactly one attempt; a failing channel never
// fails the call as a whole.
type Dispatcher struct {
	channels map[types.ChannelType]Channel
	metrics  NotificationMetrics
	logger   types.Logger
	timeout  time.Duration
}

// NewDispatcher registers the given channels. A later channel with the same
// Type replaces an earlier one. Nil metrics and logger are replaced by no-op
// implementations.
func NewDispatcher(metrics NotificationMetrics, logger types.Logger, timeout time.Duration, channels ...Channel) *Dispatcher {
	if metrics == nil {
		metrics = NoopMetrics{}
	}
	if logger == nil {
		logger = types.NopLogger{}
	}
	if timeout <= 0 {
		timeout = DefaultDeliveryTimeout
	}
	byType := make(map[types.ChannelType]Channel, len(channels))
	for _, ch := range channels {
		byType[ch.Type()] = ch
	}
	return &Dispatcher{
		channels: byType,
		metrics:  metrics,
		logger:   logger,
		timeout:  timeout,
	}
}

// Deliver attempts req.Message on each channel in req.Channels, in order.
// Duplicate channel entries are delivered once.
func (d *Dispatcher) Deliver(ctx context.Context, req DeliveryRequest) DeliveryReport {
	report := DeliveryReport{
		ReferenceID: uuid.NewString(),
		Results:     make(map[types.ChannelType]ChannelResult, len(req.Channels)),
	}
	log := d.logger.With("reference_id", report.ReferenceID)

	for _, ch := range req.Channels {
		if _, seen := report.Results[ch]; seen {
			continue
		}
		res := d.deliverOne(ctx, ch, req, report.ReferenceID)
		report.Results[ch] = res
		d.record(ctx, ch, res)

		switch {
		case res.Success:
			log.Info("notification delivered",
				"channel", string(ch),
				"duration_ms", res.Duration.Milliseconds(),
			)
		case !res.Attempted:
			log.Info("notification channel skipped",
				"channel", string(ch),
				"reason", string(res.Reason),
			)
		default:
			log.Error("notification delivery failed",
				"channel", string(ch),
				"reason", string(res.Reason),
				"error", res.Error,
			)
		}
	}
	return report
}

func (d *Dispatcher) deliverOne(ctx context.Context, ch types.ChannelType, req DeliveryRequest, ref string) ChannelResult {
	channel, ok := d.channels[ch]
	if !ok {
		return ChannelResult{Reason: ReasonChannelUnavailable}
	}
	addr := req.Recipients.For(ch)
	if addr == "" {
		return ChannelResult{Reason: ReasonMissingAddress}
	}

	start := time.Now()
	err := d.call(ctx, channel, Delivery{
		Address:       addr,
		RecipientName: req.Recipients.Name,
		Subject:       req.Subject,
		Message:       req.Message,
		OperatorID:    req.OperatorID,
		ReferenceID:   ref,
	})
	res := ChannelResult{Attempted: true, Duration: time.Since(start)}

	switch {
	case err == nil:
		res.Success = true
	case errors.Is(err, ErrNoOperatorContext):
		res = ChannelResult{Reason: ReasonNoOperatorContext}
	case errors.Is(err, context.DeadlineExceeded), types.IsCode(err, types.ErrCodeDeliveryTimeout):
		res.Reason = ReasonTimeout
		res.Error = err.Error()
	default:
		res.Reason = ReasonFailed
		res.Error = err.Error()
	}
	return res
}

// call runs one channel delivery under the per-call timeout. It returns when
// the deadline passes even if the channel ignores ctx, and converts a panic
// into an error.
func (d *Dispatcher) call(ctx context.Context, channel Channel, del Delivery) error {
	cctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("channel %s panicked: %v", channel.Type(), r)
			}
		}()
		done <- channel.Deliver(cctx, del)
	}()

	select {
	case err := <-done:
		return err
	case <-cctx.Done():
		return types.NewAppError(types.ErrCodeDeliveryTimeout,
			fmt.Sprintf("%s delivery timed out after %s", channel.Type(), d.timeout), cctx.Err())
	}
}

func (d *Dispatcher) record(ctx context.Context, ch types.ChannelType, res ChannelResult) {
	switch {
	case res.Success:
		d.metrics.RecordDelivery(ctx, ch, MetricSuccess)
	case res.Attempted:
		d.metrics.RecordDelivery(ctx, ch, MetricFailed)
	default:
		d.metrics.RecordDelivery(ctx, ch, MetricSkipped)
		return
	}
	d.metrics.RecordLatency(ctx, ch, res.Duration)
}
