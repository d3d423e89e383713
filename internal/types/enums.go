package types

// AlertStatus represents the lifecycle state of an Alert row.
//
// Scheduled alerts start as pending and move to sent exactly once when the
// alert tick dispatches them. Immediate alerts are written as sent (operator
// issued) or active (system issued, no operator context). No state reverts.
type AlertStatus string

const (
	AlertStatusPending AlertStatus = "pending"
	AlertStatusActive  AlertStatus = "active"
	AlertStatusSent    AlertStatus = "sent"
)

// Valid reports whether s is a known alert status.
func (s AlertStatus) Valid() bool {
	switch s {
	case AlertStatusPending, AlertStatusActive, AlertStatusSent:
		return true
	}
	return false
}

// AlertType classifies what condition produced an alert.
type AlertType string

const (
	AlertTypeIrrigation     AlertType = "irrigation"
	AlertTypeHeatStress     AlertType = "heat_stress"
	AlertTypeSoilCorrection AlertType = "soil_correction"
	AlertTypeGeneral        AlertType = "general"
)

// Priority is the urgency of an alert. Priorities are totally ordered
// low < medium < high < critical.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// Rank returns the ordinal of the priority for comparisons. Unknown values
// rank below low.
func (p Priority) Rank() int {
	switch p {
	case PriorityLow:
		return 1
	case PriorityMedium:
		return 2
	case PriorityHigh:
		return 3
	case PriorityCritical:
		return 4
	default:
		return 0
	}
}

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool {
	return p.Rank() > 0
}

// HealthStatus is the band a health score falls into.
type HealthStatus string

const (
	HealthGood     HealthStatus = "Good"
	HealthModerate HealthStatus = "Moderate"
	HealthCritical HealthStatus = "Critical"
)

// Color returns the display color used by dashboards for the band.
func (s HealthStatus) Color() string {
	switch s {
	case HealthGood:
		return "green"
	case HealthModerate:
		return "yellow"
	default:
		return "red"
	}
}

// Code returns the upper-case status code for the band.
func (s HealthStatus) Code() string {
	switch s {
	case HealthGood:
		return "GOOD"
	case HealthModerate:
		return "MODERATE"
	default:
		return "CRITICAL"
	}
}

// ChannelType identifies an outbound notification channel.
type ChannelType string

const (
	ChannelWhatsApp ChannelType = "whatsapp"
	ChannelEmail    ChannelType = "email"
	ChannelSMS      ChannelType = "sms"
)

// AllChannels is the full channel set in delivery order.
var AllChannels = []ChannelType{ChannelWhatsApp, ChannelEmail, ChannelSMS}

// ReportType is the cadence of a recurring report.
type ReportType string

const (
	ReportWeekly  ReportType = "weekly"
	ReportMonthly ReportType = "monthly"
)

// SessionState is a node of the per-operator messaging session FSM.
type SessionState string

const (
	SessionUninitialized   SessionState = "uninitialized"
	SessionAwaitingPairing SessionState = "awaiting_pairing"
	SessionConnected       SessionState = "connected"
	SessionDisconnected    SessionState = "disconnected"
	SessionAuthFailed      SessionState = "auth_failed"
)

// SessionEventType names an inbound transport lifecycle event.
type SessionEventType string

const (
	EventPairingCode  SessionEventType = "pairing_code"
	EventReady        SessionEventType = "ready"
	EventAuthFailure  SessionEventType = "auth_failure"
	EventDisconnected SessionEventType = "disconnected"
)

// UserRole distinguishes plot owners from the operators who look after them.
type UserRole string

const (
	RoleFarmer   UserRole = "farmer"
	RoleOperator UserRole = "botanist"
)
