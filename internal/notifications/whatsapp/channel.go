// Package whatsapp implements the WhatsApp notification channel. Delivery
// always goes through an operator's own messaging session; the channel never
// picks a session on its own.
package whatsapp

import (
	"context"

	"plotwatch/internal/notifications/core"
	"plotwatch/internal/types"
)

// Sender is the part of messaging.Manager the channel uses.
type Sender interface {
	SendAs(ctx context.Context, operatorID int64, address, message string) bool
}

var _ core.Channel = (*Channel)(nil)

// Channel delivers through the Messaging Session Manager.
type Channel struct {
	sender Sender
}

// NewChannel creates a WhatsApp Channel.
func NewChannel(sender Sender) *Channel {
	return &Channel{sender: sender}
}

// Type returns types.ChannelWhatsApp.
func (c *Channel) Type() types.ChannelType {
	return types.ChannelWhatsApp
}

// Deliver sends the message as d.OperatorID. A missing operator fails with
// core.ErrNoOperatorContext before any session is touched.
func (c *Channel) Deliver(ctx context.Context, d core.Delivery) error {
	if d.OperatorID == nil {
		return core.ErrNoOperatorContext
	}
	if !c.sender.SendAs(ctx, *d.OperatorID, d.Address, d.Message) {
		return types.NewAppError(types.ErrCodeDeliveryFailed, "whatsapp send was not accepted by the operator session", nil).
			WithDetails(map[string]any{"operator_id": *d.OperatorID})
	}
	return nil
}
