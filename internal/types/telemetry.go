package types

// Metric names and dimension keys shared by every metrics backend.
const (
	MetricDeliveryAttempt = "DeliveryAttempt"
	MetricDeliveryLatency = "DeliveryAttemptLatency"
	MetricTickRun         = "SchedulerTick"
	MetricTickSkipped     = "SchedulerTickSkipped"

	DimChannel  = "Channel"
	DimResult   = "Result"
	DimTickKind = "TickKind"

	// MetricNamespace is the default CloudWatch namespace / Prometheus prefix.
	MetricNamespace = "PlotWatch"
)
