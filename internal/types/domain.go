package types

import "time"

// Cadence windows per report type.
const (
	WeeklyCadence  = 7 * 24 * time.Hour
	MonthlyCadence = 30 * 24 * time.Hour
)

// SensorReading is a single logging event for a plot. Required measurements
// are pointers so that an absent field can be told apart from a zero value.
// A reading is never mutated after it has been recorded.
type SensorReading struct {
	PlotID         int64     `json:"plot_id" validate:"required,gt=0"`
	RecordedAt     time.Time `json:"recorded_at"`
	SoilMoisture   *float64  `json:"soil_moisture" validate:"required,gte=0,lte=100"`
	SoilPH         *float64  `json:"soil_ph" validate:"required,gte=0,lte=14"`
	Temperature    *float64  `json:"temperature" validate:"required,gte=-50,lte=70"`
	Humidity       *float64  `json:"humidity,omitempty" validate:"omitempty,gte=0,lte=100"`
	NutrientN      *float64  `json:"nutrient_n" validate:"required,gte=0"`
	NutrientP      *float64  `json:"nutrient_p" validate:"required,gte=0"`
	NutrientK      *float64  `json:"nutrient_k" validate:"required,gte=0"`
	GrowthHeightCM *float64  `json:"growth_height_cm,omitempty" validate:"omitempty,gte=0"`
	SunlightLux    *float64  `json:"sunlight_lux,omitempty" validate:"omitempty,gte=0"`
	DiseaseRisk    *string   `json:"disease_risk,omitempty" validate:"omitempty,max=50"`
}

// Value dereferences an optional measurement, returning 0 when absent.
func Value(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

// Float returns a pointer to v. Handy for building readings in code.
func Float(v float64) *float64 { return &v }

// HealthResult is the derived score attached to a reading.
type HealthResult struct {
	Score  int          `json:"score"`
	Status HealthStatus `json:"status"`
	Color  string       `json:"color"`
	Code   string       `json:"code"`
}

// AlertDraft is an unpersisted candidate alert produced by rule evaluation.
type AlertDraft struct {
	Message  string    `json:"message"`
	Type     AlertType `json:"type"`
	Priority Priority  `json:"priority"`
}

// Alert is the persisted alert row.
type Alert struct {
	ID            int64       `json:"alert_id"`
	PlotID        int64       `json:"plot_id"`
	Message       string      `json:"message"`
	Type          AlertType   `json:"type"`
	Priority      Priority    `json:"priority"`
	Status        AlertStatus `json:"status"`
	ScheduledTime *time.Time  `json:"scheduled_time,omitempty"`
	CreatedBy     *int64      `json:"created_by,omitempty"`
	CreatedAt     time.Time   `json:"created_at"`
}

// RecipientAddresses is the per-channel address set of one recipient. Any
// field may be empty; a channel whose address is empty is not attempted.
type RecipientAddresses struct {
	Name     string `json:"name,omitempty"`
	WhatsApp string `json:"whatsapp,omitempty"`
	Email    string `json:"email,omitempty"`
	Phone    string `json:"phone,omitempty"`
}

// For returns the address registered for the given channel.
func (r RecipientAddresses) For(ch ChannelType) string {
	switch ch {
	case ChannelWhatsApp:
		if r.WhatsApp != "" {
			return r.WhatsApp
		}
		// Owners without a dedicated handle are reached on their phone number.
		return r.Phone
	case ChannelEmail:
		return r.Email
	case ChannelSMS:
		return r.Phone
	}
	return ""
}

// Plot is a monitored cultivation unit owned by a farmer.
type Plot struct {
	ID         int64  `json:"plot_id"`
	Name       string `json:"plot_name"`
	Species    string `json:"species,omitempty"`
	OwnerID    int64  `json:"owner_id"`
	OperatorID *int64 `json:"operator_id,omitempty"`
}

// PlotContact joins a plot with its owner's addresses for routing.
type PlotContact struct {
	Plot  Plot               `json:"plot"`
	Owner RecipientAddresses `json:"owner"`
}

// DueAlert is a pending alert whose scheduled time has passed, joined with
// the contact details needed to route it. Contact is nil when the owning
// plot or owner row could not be resolved.
type DueAlert struct {
	Alert   Alert
	Contact *PlotContact
}

// ReportSchedule is a recurring report subscription.
type ReportSchedule struct {
	ID         int64      `json:"schedule_id"`
	UserID     int64      `json:"user_id"`
	OperatorID *int64     `json:"operator_id,omitempty"`
	ReportType ReportType `json:"report_type"`
	Format     string     `json:"format"`
	LastSent   *time.Time `json:"last_sent,omitempty"`
}

// Cadence returns the minimum interval between two dispatches of the
// schedule. Unknown report types fall back to the weekly cadence.
func (s ReportSchedule) Cadence() time.Duration {
	if s.ReportType == ReportMonthly {
		return MonthlyCadence
	}
	return WeeklyCadence
}

// IsDue reports whether the schedule should be dispatched at now.
func (s ReportSchedule) IsDue(now time.Time) bool {
	if s.LastSent == nil {
		return true
	}
	return now.Sub(*s.LastSent) >= s.Cadence()
}

// ReportRecipient joins a due schedule with the subscriber's addresses.
type ReportRecipient struct {
	Schedule  ReportSchedule
	Addresses RecipientAddresses
}

// PairingArtifact is the last pairing payload issued by a transport while a
// session awaits pairing. ImageDataURL is an optional rendered QR image.
type PairingArtifact struct {
	Code         string    `json:"code"`
	ImageDataURL string    `json:"image_data_url,omitempty"`
	IssuedAt     time.Time `json:"issued_at"`
}

// SessionStatus is the externally visible state of an operator's session.
type SessionStatus struct {
	OperatorID int64            `json:"operator_id"`
	State      SessionState     `json:"state"`
	Connected  bool             `json:"connected"`
	Pairing    *PairingArtifact `json:"pairing,omitempty"`
	SessionID  string           `json:"session_id,omitempty"`
}

// SessionEvent is an inbound lifecycle event raised by a transport.
// SessionID, when set, names the session the transport was started for.
type SessionEvent struct {
	Type         SessionEventType `json:"type" validate:"required,oneof=pairing_code ready auth_failure disconnected"`
	SessionID    string           `json:"session_id,omitempty" validate:"omitempty,max=64"`
	PairingCode  string           `json:"pairing_code,omitempty"`
	ImageDataURL string           `json:"image_data_url,omitempty"`
	Reason       string           `json:"reason,omitempty"`
}
