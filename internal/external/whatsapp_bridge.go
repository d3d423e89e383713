package external

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"plotwatch/internal/messaging"
	"plotwatch/internal/types"
)

// BridgeConfig configures the WhatsApp bridge transports.
//
// The bridge is a sidecar that hosts one WhatsApp Web client per namespace.
// It reports lifecycle events back by POSTing to CallbackBaseURL +
// "/<operatorID>", which the HTTP adapter routes to Manager.HandleEvent.
type BridgeConfig struct {
	BaseURL         string
	Secret          types.SecretString
	CallbackBaseURL string
	Logger          *slog.Logger
}

// BridgeTransportFactory builds a bridge transport per operator. All
// transports share one BaseClient, so one breaker guards the sidecar.
type BridgeTransportFactory struct {
	base *BaseClient
	cfg  BridgeConfig
}

var _ messaging.TransportFactory = (*BridgeTransportFactory)(nil)

// NewBridgeTransportFactory creates a factory for bridge transports.
func NewBridgeTransportFactory(httpClient *http.Client, cfg BridgeConfig, opts ...BaseClientOption) *BridgeTransportFactory {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	cfg.CallbackBaseURL = strings.TrimSuffix(cfg.CallbackBaseURL, "/")
	return &BridgeTransportFactory{
		base: NewBaseClient(httpClient, BaseClientConfig{
			Name:         "whatsapp-bridge",
			Retry:        NoRetry(),
			UserAgent:    userAgent,
			UpstreamCode: types.ErrCodeUpstreamTransport,
		}, opts...),
		cfg: cfg,
	}
}

// New returns a transport bound to namespace. Events arrive through the
// webhook rather than the sink.
func (f *BridgeTransportFactory) New(b messaging.Binding, _ messaging.EventSink) (messaging.Transport, error) {
	if f.cfg.BaseURL == "" {
		return nil, types.NewAppError(types.ErrCodeUpstreamTransport, "whatsapp bridge url is not configured", nil)
	}
	return &BridgeTransport{
		factory:    f,
		operatorID: b.OperatorID,
		namespace:  b.Namespace,
		sessionID:  b.SessionID,
		logger:     f.cfg.Logger.With("operator_id", b.OperatorID),
	}, nil
}

// BridgeTransport is one operator's session on the bridge.
type BridgeTransport struct {
	factory    *BridgeTransportFactory
	operatorID int64
	namespace  string
	sessionID  string
	logger     *slog.Logger

	closeOnce sync.Once
	closeErr  error
}

var _ messaging.Transport = (*BridgeTransport)(nil)

// bridgeStartRequest opens a namespace. The bridge copies SessionID into
// every event it posts for this start.
type bridgeStartRequest struct {
	CallbackURL string `json:"callback_url,omitempty"`
	SessionID   string `json:"session_id"`
}

type bridgeSendRequest struct {
	ChatID string `json:"chat_id"`
	Body   string `json:"body"`
}

type bridgeRegisteredResponse struct {
	Registered bool `json:"registered"`
}

// Start asks the bridge to open the namespace and begin pairing.
func (t *BridgeTransport) Start(ctx context.Context) error {
	var callback string
	if t.factory.cfg.CallbackBaseURL != "" {
		callback = fmt.Sprintf("%s/%d", t.factory.cfg.CallbackBaseURL, t.operatorID)
	}
	resp, err := t.do(ctx, http.MethodPost, t.path(), bridgeStartRequest{CallbackURL: callback, SessionID: t.sessionID})
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := expectStatus(resp, "start", http.StatusOK, http.StatusCreated, http.StatusAccepted); err != nil {
		return err
	}
	t.logger.InfoContext(ctx, "bridge session opened", "namespace", t.namespace, "session_id", t.sessionID)
	return nil
}

// Send delivers body to chatID.
func (t *BridgeTransport) Send(ctx context.Context, chatID, body string) error {
	resp, err := t.do(ctx, http.MethodPost, t.path("messages"), bridgeSendRequest{ChatID: chatID, Body: body})
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return expectStatus(resp, "send", http.StatusOK, http.StatusCreated, http.StatusAccepted)
}

// IsRegistered asks the bridge whether chatID has a WhatsApp account. Bridges
// without the lookup answer 404 or 501, reported as ErrProbeUnsupported.
func (t *BridgeTransport) IsRegistered(ctx context.Context, chatID string) (bool, error) {
	resp, err := t.do(ctx, http.MethodGet, t.path("contacts", chatID, "registered"), nil,
		http.StatusNotFound, http.StatusNotImplemented)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusNotFound, http.StatusNotImplemented:
		return false, messaging.ErrProbeUnsupported
	case http.StatusOK:
	default:
		return false, expectStatus(resp, "registration probe", http.StatusOK)
	}

	var out bridgeRegisteredResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4<<10)).Decode(&out); err != nil {
		return false, types.NewAppError(types.ErrCodeUpstreamTransport, "unreadable registration probe response", err)
	}
	return out.Registered, nil
}

// Close removes the namespace from the bridge. Later calls return the first
// result without contacting the bridge again.
func (t *BridgeTransport) Close(ctx context.Context) error {
	t.closeOnce.Do(func() {
		resp, err := t.do(ctx, http.MethodDelete, t.path(), nil)
		if err != nil {
			t.closeErr = err
			return
		}
		defer resp.Body.Close()
		if resp.StatusCode == http.StatusNotFound {
			return
		}
		t.closeErr = expectStatus(resp, "close", http.StatusOK, http.StatusNoContent, http.StatusAccepted)
	})
	return t.closeErr
}

func (t *BridgeTransport) path(parts ...string) string {
	segs := append([]string{"sessions", t.namespace}, parts...)
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}
	return "/" + strings.Join(segs, "/")
}

// do sends one bridge request. Statuses in expected are handed back to the
// caller instead of being treated as upstream failures.
func (t *BridgeTransport) do(ctx context.Context, method, path string, payload any, expected ...int) (*http.Response, error) {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to marshal bridge request", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, t.factory.cfg.BaseURL+path, body)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to create bridge request", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if t.factory.cfg.Secret.IsSet() {
		req.Header.Set("Authorization", "Bearer "+t.factory.cfg.Secret.Unmask())
	}
	return t.factory.base.DoExpecting(req, expected...)
}

func expectStatus(resp *http.Response, op string, ok ...int) error {
	for _, code := range ok {
		if resp.StatusCode == code {
			return nil
		}
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
	return types.NewAppError(types.ErrCodeUpstreamTransport,
		fmt.Sprintf("whatsapp bridge %s returned %d: %s", op, resp.StatusCode, strings.TrimSpace(string(raw))), nil)
}
