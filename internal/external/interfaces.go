package external

import (
	"context"

	"plotwatch/internal/types"
)

// EmailProvider transmits a rendered email and returns the provider's
// message id.
type EmailProvider interface {
	Send(ctx context.Context, input types.SendInput) (providerMsgID string, err error)
}

// SMSProvider transmits a text message and returns the provider's message id.
type SMSProvider interface {
	Send(ctx context.Context, input types.SMSInput) (providerMsgID string, err error)
}

var (
	_ EmailProvider = (*SendGridClient)(nil)
	_ EmailProvider = (*SMTPClient)(nil)
	_ EmailProvider = (*StubEmailProvider)(nil)
	_ SMSProvider   = (*SMSGatewayClient)(nil)
	_ SMSProvider   = (*StubSMSProvider)(nil)
)
