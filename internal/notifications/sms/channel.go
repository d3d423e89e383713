// Package sms implements the text message notification channel over a
// configured SMSProvider.
package sms

import (
	"context"
	"fmt"

	"plotwatch/internal/external"
	"plotwatch/internal/notifications/core"
	"plotwatch/internal/types"
)

var _ core.Channel = (*Channel)(nil)

// Channel delivers over SMS.
type Channel struct {
	provider external.SMSProvider
	logger   types.Logger
}

// NewChannel creates an SMS Channel.
func NewChannel(provider external.SMSProvider, logger types.Logger) *Channel {
	if logger == nil {
		logger = types.NopLogger{}
	}
	return &Channel{provider: provider, logger: logger}
}

// Type returns types.ChannelSMS.
func (c *Channel) Type() types.ChannelType {
	return types.ChannelSMS
}

// Deliver sends one text message.
func (c *Channel) Deliver(ctx context.Context, d core.Delivery) error {
	msgID, err := c.provider.Send(ctx, types.SMSInput{
		To:          d.Address,
		Body:        d.Message,
		ReferenceID: d.ReferenceID,
	})
	if err != nil {
		return fmt.Errorf("sms channel: %w", err)
	}
	c.logger.Info("sms accepted by provider",
		"dest", RedactPhone(d.Address),
		"provider_msg_id", msgID,
	)
	return nil
}
