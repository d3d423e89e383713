package external

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"gopkg.in/gomail.v2"

	"plotwatch/internal/types"
)

// SMTPSender is the part of *gomail.Dialer the SMTP client uses.
type SMTPSender interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPClientConfig holds the configuration for creating an SMTPClient.
type SMTPClientConfig struct {
	Host     string
	Port     int
	Username string
	Password types.SecretString
	Logger   *slog.Logger
}

// SMTPClient implements EmailProvider by dialing an SMTP relay per message.
type SMTPClient struct {
	sender SMTPSender
	logger *slog.Logger
}

// NewSMTPClient creates an SMTPClient backed by a gomail dialer.
func NewSMTPClient(cfg SMTPClientConfig) *SMTPClient {
	d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password.Unmask())
	return NewSMTPClientWithSender(d, cfg.Logger)
}

// NewSMTPClientWithSender creates an SMTPClient with a custom sender.
func NewSMTPClientWithSender(sender SMTPSender, logger *slog.Logger) *SMTPClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &SMTPClient{sender: sender, logger: logger}
}

// Send builds a multipart message and hands it to the relay. The generated
// Message-ID is returned as the provider message id. gomail does not accept
// a context, so cancellation is only checked before dialing; the channel
// layer bounds the call with its own deadline.
func (c *SMTPClient) Send(ctx context.Context, input types.SendInput) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", types.NewAppError(types.ErrCodeDeliveryTimeout, "smtp send cancelled", err)
	}

	msgID := fmt.Sprintf("<%s@plotwatch>", uuid.NewString())

	m := gomail.NewMessage()
	m.SetAddressHeader("From", input.From.Address, input.From.Name)
	if input.ToName != "" {
		m.SetAddressHeader("To", input.To, input.ToName)
	} else {
		m.SetHeader("To", input.To)
	}
	m.SetHeader("Subject", input.Subject)
	m.SetHeader("Message-ID", msgID)
	if input.ReferenceID != "" {
		m.SetHeader("X-Reference-Id", input.ReferenceID)
	}
	m.SetBody("text/plain", input.BodyText)
	if input.BodyHTML != "" {
		m.AddAlternative("text/html", input.BodyHTML)
	}

	if err := c.sender.DialAndSend(m); err != nil {
		return "", types.NewAppError(types.ErrCodeUpstreamEmailProvider, "smtp send failed", err)
	}
	c.logger.DebugContext(ctx, "smtp relay accepted email", "provider_msg_id", msgID)
	return msgID, nil
}
