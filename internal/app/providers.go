package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/prometheus/client_golang/prometheus"

	"plotwatch/internal/config"
	"plotwatch/internal/external"
	"plotwatch/internal/messaging"
	notifcore "plotwatch/internal/notifications/core"
)

const outboundHTTPTimeout = 20 * time.Second

// newHTTPClient is shared by every outbound provider.
func newHTTPClient() *http.Client {
	return &http.Client{Timeout: outboundHTTPTimeout}
}

// newEmailProvider selects the email backend named by EMAIL_PROVIDER.
func newEmailProvider(cfg config.EmailConfig, httpClient *http.Client, logger *slog.Logger) (external.EmailProvider, error) {
	switch cfg.Provider {
	case "", "stub":
		return external.NewStubEmailProvider(logger), nil
	case "sendgrid":
		return external.NewSendGridClient(httpClient, external.SendGridClientConfig{
			APIKey: cfg.SendGridAPIKey.Unmask(),
			Logger: logger,
		}), nil
	case "smtp":
		return external.NewSMTPClient(external.SMTPClientConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUser,
			Password: cfg.SMTPPassword,
			Logger:   logger,
		}), nil
	}
	return nil, fmt.Errorf("unknown email provider %q", cfg.Provider)
}

// newSMSProvider selects the SMS backend named by SMS_PROVIDER.
func newSMSProvider(cfg config.SMSConfig, httpClient *http.Client, logger *slog.Logger) (external.SMSProvider, error) {
	switch cfg.Provider {
	case "", "stub":
		return external.NewStubSMSProvider(logger), nil
	case "gateway":
		return external.NewSMSGatewayClient(httpClient, external.SMSGatewayConfig{
			BaseURL:  cfg.GatewayURL,
			Username: cfg.User,
			Password: cfg.Password,
			Logger:   logger,
		}), nil
	}
	return nil, fmt.Errorf("unknown sms provider %q", cfg.Provider)
}

// newTransportFactory selects the WhatsApp transport named by
// WHATSAPP_TRANSPORT.
func newTransportFactory(cfg config.MessagingConfig, httpClient *http.Client, logger *slog.Logger) (messaging.TransportFactory, error) {
	switch cfg.Transport {
	case "", "stub":
		return external.NewStubTransportFactory(logger, cfg.StubAutoConfirm), nil
	case "bridge":
		return external.NewBridgeTransportFactory(httpClient, external.BridgeConfig{
			BaseURL:         cfg.BridgeURL,
			Secret:          cfg.BridgeSecret,
			CallbackBaseURL: cfg.CallbackBaseURL,
			Logger:          logger,
		}), nil
	}
	return nil, fmt.Errorf("unknown whatsapp transport %q", cfg.Transport)
}

// newNotificationMetrics selects the delivery metrics backend. The
// Prometheus backend registers on reg, which the server exposes at /metrics.
func newNotificationMetrics(ctx context.Context, cfg config.ObservabilityConfig, reg prometheus.Registerer, logger *slog.Logger) (notifcore.NotificationMetrics, error) {
	switch cfg.MetricsBackend {
	case "none":
		return notifcore.NoopMetrics{}, nil
	case "", "prometheus":
		return notifcore.NewPrometheusMetrics(reg, "plotwatch"), nil
	case "cloudwatch":
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
		if err != nil {
			return nil, fmt.Errorf("loading AWS config: %w", err)
		}
		client := cloudwatch.NewFromConfig(awsCfg, func(o *cloudwatch.Options) {
			if cfg.AWSEndpointURL != "" {
				o.BaseEndpoint = aws.String(cfg.AWSEndpointURL)
			}
		})
		return notifcore.NewCloudWatchMetrics(client, cfg.MetricNamespace, AdaptLogger(logger)), nil
	}
	return nil, fmt.Errorf("unknown metrics backend %q", cfg.MetricsBackend)
}
