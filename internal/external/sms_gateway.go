package external

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"plotwatch/internal/types"
)

// DefaultSMSTopic tags messages queued on the gateway.
const DefaultSMSTopic = "plotwatch"

// SMSGatewayConfig holds the configuration for creating an SMSGatewayClient.
type SMSGatewayConfig struct {
	BaseURL  string
	Username string
	Password types.SecretString
	Topic    string
	Logger   *slog.Logger
}

// SMSGatewayClient implements SMSProvider against an HTTP SMS gateway that
// queues messages for its paired devices (POST /messages).
type SMSGatewayClient struct {
	base     *BaseClient
	baseURL  string
	username string
	password types.SecretString
	topic    string
	logger   *slog.Logger
}

// NewSMSGatewayClient creates an SMSGatewayClient. Sends are not retried.
func NewSMSGatewayClient(httpClient *http.Client, cfg SMSGatewayConfig, opts ...BaseClientOption) *SMSGatewayClient {
	base := NewBaseClient(httpClient, BaseClientConfig{
		Name:         "sms-gateway",
		Retry:        NoRetry(),
		UserAgent:    userAgent,
		UpstreamCode: types.ErrCodeUpstreamSMSProvider,
	}, opts...)

	topic := cfg.Topic
	if topic == "" {
		topic = DefaultSMSTopic
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &SMSGatewayClient{
		base:     base,
		baseURL:  strings.TrimSuffix(cfg.BaseURL, "/"),
		username: cfg.Username,
		password: cfg.Password,
		topic:    topic,
		logger:   logger,
	}
}

type queueSMSRequest struct {
	Topic    string `json:"topic"`
	ToNumber string `json:"to_number"`
	Body     string `json:"body"`
}

type queueSMSResponse struct {
	Message string `json:"message"`
	ID      string `json:"id"`
}

type gatewayErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Send queues the message and returns the gateway's message id. The gateway
// answers 201 Created once the message is queued for a device.
func (c *SMSGatewayClient) Send(ctx context.Context, input types.SMSInput) (string, error) {
	body, err := json.Marshal(queueSMSRequest{
		Topic:    c.topic,
		ToNumber: input.To,
		Body:     input.Body,
	})
	if err != nil {
		return "", types.NewAppError(types.ErrCodeInternalUnexpected, "failed to marshal sms request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/messages", bytes.NewReader(body))
	if err != nil {
		return "", types.NewAppError(types.ErrCodeInternalUnexpected, "failed to create sms request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password.Unmask())
	}
	if input.ReferenceID != "" {
		req.Header.Set("X-Reference-Id", input.ReferenceID)
	}

	resp, err := c.base.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		msg := strings.TrimSpace(string(raw))
		var gwErr gatewayErrorResponse
		if json.Unmarshal(raw, &gwErr) == nil {
			if gwErr.Message != "" {
				msg = gwErr.Message
			} else if gwErr.Error != "" {
				msg = gwErr.Error
			}
		}
		return "", types.NewAppError(types.ErrCodeUpstreamSMSProvider,
			fmt.Sprintf("sms gateway error (%d): %s", resp.StatusCode, msg), nil)
	}

	var out queueSMSResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", types.NewAppError(types.ErrCodeUpstreamSMSProvider, "sms gateway returned an unreadable response", err)
	}
	c.logger.DebugContext(ctx, "sms queued on gateway", "provider_msg_id", out.ID)
	return out.ID, nil
}
