// Package email implements the email notification channel: it renders a
// plain message into a text and HTML body and hands it to a configured
// EmailProvider (SendGrid, SMTP or the logging stub).
package email

import (
	"context"
	"fmt"

	"plotwatch/internal/external"
	"plotwatch/internal/notifications/core"
	"plotwatch/internal/types"
)

// DefaultSubject is used when a delivery carries no subject of its own.
const DefaultSubject = "PlotWatch notification"

var _ core.Channel = (*Channel)(nil)

// Channel delivers over email.
type Channel struct {
	provider external.EmailProvider
	sender   types.SenderIdentity
	logger   types.Logger
}

// ChannelConfig holds the dependencies of a Channel.
type ChannelConfig struct {
	Provider external.EmailProvider
	Sender   types.SenderIdentity
	Logger   types.Logger
}

// NewChannel creates an email Channel.
func NewChannel(cfg ChannelConfig) *Channel {
	logger := cfg.Logger
	if logger == nil {
		logger = types.NopLogger{}
	}
	return &Channel{
		provider: cfg.Provider,
		sender:   cfg.Sender,
		logger:   logger,
	}
}

// Type returns types.ChannelEmail.
func (c *Channel) Type() types.ChannelType {
	return types.ChannelEmail
}

// Deliver sends one email. A blocked recipient is reported as
// ErrRecipientBlocked so callers can tell it apart from a provider outage.
func (c *Channel) Deliver(ctx context.Context, d core.Delivery) error {
	c.logger.Info("attempting email delivery",
		"dest", RedactEmail(d.Address),
		"reference_id", d.ReferenceID,
	)

	subject := d.Subject
	if subject == "" {
		subject = DefaultSubject
	}
	body, err := Render(subject, d.RecipientName, d.Message)
	if err != nil {
		return fmt.Errorf("email channel: %w", err)
	}

	msgID, err := c.provider.Send(ctx, types.SendInput{
		To:          d.Address,
		ToName:      d.RecipientName,
		From:        c.sender,
		Subject:     subject,
		BodyText:    body.Text,
		BodyHTML:    body.HTML,
		ReferenceID: d.ReferenceID,
	})
	if err != nil {
		if IsBlocklistError(err) {
			c.logger.Warn("email recipient blocked by provider",
				"dest", RedactEmail(d.Address),
				"error", err.Error(),
			)
			return fmt.Errorf("%w: %v", ErrRecipientBlocked, err)
		}
		return fmt.Errorf("email channel: %w", err)
	}

	c.logger.Info("email accepted by provider",
		"dest", RedactEmail(d.Address),
		"provider_msg_id", msgID,
	)
	return nil
}
