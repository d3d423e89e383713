package external

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"plotwatch/internal/messaging"
	"plotwatch/internal/types"
)

// Stub implementations let the process boot locally without provider
// credentials. They log every call and return predictable values.

// StubEmailProvider implements EmailProvider by logging. Selected with
// EMAIL_PROVIDER=stub.
type StubEmailProvider struct {
	logger *slog.Logger
}

// NewStubEmailProvider creates a new StubEmailProvider.
func NewStubEmailProvider(logger *slog.Logger) *StubEmailProvider {
	return &StubEmailProvider{logger: logger}
}

func (s *StubEmailProvider) Send(ctx context.Context, input types.SendInput) (string, error) {
	s.logger.InfoContext(ctx, "stub: Send email called",
		"subject", input.Subject,
		"from", input.From.Address,
		"reference_id", input.ReferenceID,
	)
	return fmt.Sprintf("msg_stub_%s", input.ReferenceID), nil
}

// StubSMSProvider implements SMSProvider by logging. Selected with
// SMS_PROVIDER=stub.
type StubSMSProvider struct {
	logger *slog.Logger
}

// NewStubSMSProvider creates a new StubSMSProvider.
func NewStubSMSProvider(logger *slog.Logger) *StubSMSProvider {
	return &StubSMSProvider{logger: logger}
}

func (s *StubSMSProvider) Send(ctx context.Context, input types.SMSInput) (string, error) {
	s.logger.InfoContext(ctx, "stub: Send sms called",
		"body_length", len(input.Body),
		"reference_id", input.ReferenceID,
	)
	return fmt.Sprintf("sms_stub_%s", input.ReferenceID), nil
}

// StubTransportFactory builds in-process transports that pair instantly.
// Selected with WHATSAPP_TRANSPORT=stub.
type StubTransportFactory struct {
	logger *slog.Logger
	// AutoConfirm raises ready right after the pairing code. When false the
	// session waits for a ready event through the webhook.
	AutoConfirm bool
}

var _ messaging.TransportFactory = (*StubTransportFactory)(nil)

// NewStubTransportFactory creates a StubTransportFactory.
func NewStubTransportFactory(logger *slog.Logger, autoConfirm bool) *StubTransportFactory {
	return &StubTransportFactory{logger: logger, AutoConfirm: autoConfirm}
}

func (f *StubTransportFactory) New(b messaging.Binding, sink messaging.EventSink) (messaging.Transport, error) {
	return &StubTransport{
		namespace:   b.Namespace,
		sessionID:   b.SessionID,
		sink:        sink,
		autoConfirm: f.AutoConfirm,
		logger:      f.logger.With("operator_id", b.OperatorID),
	}, nil
}

// StubTransport logs sends and reports every address as registered.
type StubTransport struct {
	namespace   string
	sessionID   string
	sink        messaging.EventSink
	autoConfirm bool
	logger      *slog.Logger

	mu   sync.Mutex
	sent int
}

var _ messaging.Transport = (*StubTransport)(nil)

func (t *StubTransport) Start(ctx context.Context) error {
	t.logger.InfoContext(ctx, "stub: transport started", "namespace", t.namespace)
	t.sink(types.SessionEvent{
		Type:        types.EventPairingCode,
		SessionID:   t.sessionID,
		PairingCode: "stub-" + uuid.NewString(),
	})
	if t.autoConfirm {
		t.sink(types.SessionEvent{Type: types.EventReady, SessionID: t.sessionID})
	}
	return nil
}

func (t *StubTransport) Send(ctx context.Context, chatID, body string) error {
	t.mu.Lock()
	t.sent++
	t.mu.Unlock()
	t.logger.InfoContext(ctx, "stub: whatsapp send called",
		"namespace", t.namespace,
		"body_length", len(body),
	)
	return nil
}

func (t *StubTransport) IsRegistered(context.Context, string) (bool, error) {
	return true, nil
}

func (t *StubTransport) Close(ctx context.Context) error {
	t.logger.InfoContext(ctx, "stub: transport closed", "namespace", t.namespace)
	return nil
}

// Sent returns the number of messages sent so far.
func (t *StubTransport) Sent() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sent
}
