package core

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"plotwatch/internal/types"
)

// CloudWatchClient is the slice of the CloudWatch API the metrics backend
// needs.
type CloudWatchClient interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

var _ NotificationMetrics = (*CloudWatchMetrics)(nil)

// CloudWatchMetrics publishes delivery and scheduler metrics to CloudWatch.
//
// Metrics emitted:
//   - DeliveryAttempt: Dims {Channel, Result}, one per channel outcome
//   - DeliveryAttemptLatency: Dims {Channel}, milliseconds per attempted call
//   - SchedulerTick / SchedulerTickSkipped: Dims {TickKind}
//
// Publish failures are logged and swallowed.
type CloudWatchMetrics struct {
	client    CloudWatchClient
	namespace string
	logger    types.Logger
}

// NewCloudWatchMetrics creates a backend publishing under namespace. An empty
// namespace selects types.MetricNamespace.
func NewCloudWatchMetrics(client CloudWatchClient, namespace string, logger types.Logger) *CloudWatchMetrics {
	if namespace == "" {
		namespace = types.MetricNamespace
	}
	if logger == nil {
		logger = types.NopLogger{}
	}
	return &CloudWatchMetrics{
		client:    client,
		namespace: namespace,
		logger:    logger,
	}
}

// RecordDelivery emits DeliveryAttempt{Channel, Result} = 1.
func (m *CloudWatchMetrics) RecordDelivery(ctx context.Context, channel types.ChannelType, result MetricResult) {
	m.put(ctx, cwtypes.MetricDatum{
		MetricName: aws.String(types.MetricDeliveryAttempt),
		Value:      aws.Float64(1),
		Unit:       cwtypes.StandardUnitCount,
		Dimensions: []cwtypes.Dimension{
			dim(types.DimChannel, string(channel)),
			dim(types.DimResult, string(result)),
		},
	}, "channel", string(channel), "result", string(result))
}

// RecordLatency emits the attempt duration in milliseconds.
func (m *CloudWatchMetrics) RecordLatency(ctx context.Context, channel types.ChannelType, duration time.Duration) {
	m.put(ctx, cwtypes.MetricDatum{
		MetricName: aws.String(types.MetricDeliveryLatency),
		Value:      aws.Float64(float64(duration.Milliseconds())),
		Unit:       cwtypes.StandardUnitMilliseconds,
		Dimensions: []cwtypes.Dimension{
			dim(types.DimChannel, string(channel)),
		},
	}, "channel", string(channel), "duration_ms", duration.Milliseconds())
}

// RecordTick counts a scheduler tick run, or a tick skipped because the
// previous run of the same kind was still in progress.
func (m *CloudWatchMetrics) RecordTick(ctx context.Context, kind string, skipped bool) {
	name := types.MetricTickRun
	if skipped {
		name = types.MetricTickSkipped
	}
	m.put(ctx, cwtypes.MetricDatum{
		MetricName: aws.String(name),
		Value:      aws.Float64(1),
		Unit:       cwtypes.StandardUnitCount,
		Dimensions: []cwtypes.Dimension{
			dim(types.DimTickKind, kind),
		},
	}, "tick_kind", kind, "skipped", skipped)
}

func (m *CloudWatchMetrics) put(ctx context.Context, datum cwtypes.MetricDatum, logArgs ...any) {
	input := &cloudwatch.PutMetricDataInput{
		Namespace:  aws.String(m.namespace),
		MetricData: []cwtypes.MetricDatum{datum},
	}
	if _, err := m.client.PutMetricData(ctx, input); err != nil {
		args := append([]any{"error", err.Error(), "metric", aws.ToString(datum.MetricName)}, logArgs...)
		m.logger.Error("failed to publish metric", args...)
	}
}

func dim(name, value string) cwtypes.Dimension {
	return cwtypes.Dimension{Name: aws.String(name), Value: aws.String(value)}
}

// NoopMetrics discards everything. It is the default when no backend is
// configured.
type NoopMetrics struct{}

var _ NotificationMetrics = NoopMetrics{}

func (NoopMetrics) RecordDelivery(context.Context, types.ChannelType, MetricResult) {}
func (NoopMetrics) RecordLatency(context.Context, types.ChannelType, time.Duration) {}
func (NoopMetrics) RecordTick(context.Context, string, bool)                        {}
