// Package config defines the process configuration for plotwatch.
//
// Configuration is loaded once at startup and is immutable thereafter.
// Values are resolved via a priority chain:
//
//	OS Environment (Highest) -> Dotenv File -> Secret Files (Lowest)
//
// Any missing required value or invalid format fails the load so the process
// exits before serving traffic.
package config

import (
	"time"

	"plotwatch/internal/types"
)

// SecretString is an alias for types.SecretString so configuration secrets
// are redacted when logged.
type SecretString = types.SecretString

// Config is the top-level configuration. Sub-components receive only the
// section they need.
type Config struct {
	Environment string `envconfig:"APP_ENV" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"plotwatch"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`

	// SecretProvider is read before the struct is processed; it is kept here
	// so the setting shows up alongside the rest.
	SecretProvider string `envconfig:"SECRET_PROVIDER" default:"file" validate:"oneof=file env"`

	Server        ServerConfig
	Database      DatabaseConfig
	Scheduler     SchedulerConfig
	Messaging     MessagingConfig
	Email         EmailConfig
	SMS           SMSConfig
	Observability ObservabilityConfig

	// Build Metadata (Injected via ldflags, not Env)
	Build BuildInfo
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port           string        `envconfig:"PORT" default:"8080"`
	RequestTimeout time.Duration `envconfig:"REQUEST_TIMEOUT" default:"30s"`
}

// DatabaseConfig holds database connection and pool tuning parameters.
type DatabaseConfig struct {
	URL SecretString `envconfig:"DATABASE_URL" validate:"required"`

	MaxConns          int           `envconfig:"DB_MAX_CONNS" default:"10"`
	MinConns          int           `envconfig:"DB_MIN_CONNS" default:"2"`
	MaxConnLifetime   time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
	HealthCheckPeriod time.Duration `envconfig:"DB_HEALTH_CHECK_PERIOD" default:"1m"`

	// ApplySchema runs the idempotent DDL at startup.
	ApplySchema bool `envconfig:"DB_APPLY_SCHEMA" default:"false"`
}

// SchedulerConfig holds the periodic job cadence.
type SchedulerConfig struct {
	Enabled         bool          `envconfig:"SCHEDULER_ENABLED" default:"true"`
	AlertInterval   time.Duration `envconfig:"ALERT_TICK_INTERVAL" default:"1m" validate:"gt=0"`
	ReportInterval  time.Duration `envconfig:"REPORT_TICK_INTERVAL" default:"1h" validate:"gt=0"`
	DeliveryTimeout time.Duration `envconfig:"DELIVERY_TIMEOUT" default:"30s" validate:"gt=0"`
}

// MessagingConfig selects and tunes the WhatsApp transport.
type MessagingConfig struct {
	Transport    string       `envconfig:"WHATSAPP_TRANSPORT" default:"stub" validate:"oneof=stub bridge"`
	BridgeURL    string       `envconfig:"WHATSAPP_BRIDGE_URL" validate:"required_if=Transport bridge"`
	BridgeSecret SecretString `envconfig:"WHATSAPP_BRIDGE_SECRET" validate:"required_if=Transport bridge"`

	// BridgeSecretPrevious is still accepted on inbound events during a
	// rotation.
	BridgeSecretPrevious SecretString `envconfig:"WHATSAPP_BRIDGE_SECRET_PREVIOUS"`

	// CallbackBaseURL is where the bridge posts session events.
	CallbackBaseURL string `envconfig:"WHATSAPP_CALLBACK_BASE_URL" validate:"omitempty,url"`

	DefaultCountryCode string        `envconfig:"DEFAULT_COUNTRY_CODE" default:"91" validate:"numeric"`
	SendTimeout        time.Duration `envconfig:"WHATSAPP_SEND_TIMEOUT" default:"15s" validate:"gt=0"`

	// StubAutoConfirm makes the stub transport pair itself immediately.
	StubAutoConfirm bool `envconfig:"WHATSAPP_STUB_AUTO_CONFIRM" default:"true"`
}

// EmailConfig selects and configures the email provider.
type EmailConfig struct {
	Provider       string       `envconfig:"EMAIL_PROVIDER" default:"stub" validate:"oneof=stub sendgrid smtp"`
	SendGridAPIKey SecretString `envconfig:"SENDGRID_API_KEY" validate:"required_if=Provider sendgrid"`
	SMTPHost       string       `envconfig:"SMTP_HOST" validate:"required_if=Provider smtp"`
	SMTPPort       int          `envconfig:"SMTP_PORT" default:"587"`
	SMTPUser       string       `envconfig:"SMTP_USER"`
	SMTPPassword   SecretString `envconfig:"SMTP_PASS"`
	FromAddress    string       `envconfig:"EMAIL_FROM_ADDRESS" default:"alerts@plotwatch.local" validate:"email"`
	FromName       string       `envconfig:"EMAIL_FROM_NAME" default:"Plotwatch Alerts"`
}

// SMSConfig selects and configures the SMS provider.
type SMSConfig struct {
	Provider   string       `envconfig:"SMS_PROVIDER" default:"stub" validate:"oneof=stub gateway"`
	GatewayURL string       `envconfig:"SMS_GATEWAY_URL" validate:"required_if=Provider gateway"`
	User       string       `envconfig:"SMS_GATEWAY_USER"`
	Password   SecretString `envconfig:"SMS_GATEWAY_PASS"`
}

// ObservabilityConfig holds metrics backend settings.
type ObservabilityConfig struct {
	MetricsBackend  string `envconfig:"METRICS_BACKEND" default:"prometheus" validate:"oneof=none prometheus cloudwatch"`
	MetricNamespace string `envconfig:"METRIC_NAMESPACE" default:"Plotwatch"`
	AWSRegion       string `envconfig:"AWS_REGION" default:"us-east-1"`

	// LocalStack Support (Empty in Prod)
	AWSEndpointURL string `envconfig:"AWS_ENDPOINT_URL"`
}

// BuildInfo holds build-time metadata injected via ldflags.
// These values are NOT populated from environment variables.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// ConfigErrorType categorizes configuration loading failures.
type ConfigErrorType string

const (
	// ErrSecretResolution indicates a *_FILE secret could not be read.
	ErrSecretResolution ConfigErrorType = "SECRET_FAILURE"
	// ErrValidation indicates the configuration failed struct validation rules.
	ErrValidation ConfigErrorType = "VALIDATION_FAILED"
	// ErrParsing indicates an environment value could not be parsed into
	// its target type.
	ErrParsing ConfigErrorType = "PARSING_FAILED"
)
