package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plotwatch/internal/config"
	"plotwatch/internal/security"
	"plotwatch/internal/types"
)

// stubDB treats every user as an operator and every update as matching one
// row. Queries fail so nothing reads phantom data.
type stubDB struct{}

func (stubDB) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.NewCommandTag("UPDATE 1"), nil
}

func (stubDB) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, errors.New("stubDB: query not supported")
}

func (stubDB) QueryRow(context.Context, string, ...any) pgx.Row {
	return trueRow{}
}

type trueRow struct{}

func (trueRow) Scan(dest ...any) error {
	if len(dest) == 1 {
		if b, ok := dest[0].(*bool); ok {
			*b = true
			return nil
		}
	}
	return pgx.ErrNoRows
}

func testConfig() *config.Config {
	return &config.Config{
		Environment: "local",
		LogLevel:    "error",
		Scheduler: config.SchedulerConfig{
			AlertInterval:   time.Minute,
			ReportInterval:  time.Hour,
			DeliveryTimeout: time.Second,
		},
		Messaging: config.MessagingConfig{
			Transport:          "stub",
			BridgeSecret:       "bridge-secret",
			DefaultCountryCode: "91",
			SendTimeout:        time.Second,
		},
		Email:         config.EmailConfig{Provider: "stub", FromAddress: "alerts@plotwatch.local"},
		SMS:           config.SMSConfig{Provider: "stub"},
		Observability: config.ObservabilityConfig{MetricsBackend: "prometheus"},
	}
}

func newTestApp(t *testing.T, cfg *config.Config) (*App, http.Handler) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	a, err := build(context.Background(), cfg, logger, stubDB{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close(context.Background()) })

	srv, err := a.Server()
	require.NoError(t, err)
	return a, srv.Handler()
}

func TestRouteTable(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	a, err := build(context.Background(), testConfig(), logger, stubDB{})
	require.NoError(t, err)
	defer a.Close(context.Background())

	srv, err := a.Server()
	require.NoError(t, err)

	var got []string
	require.NoError(t, chi.Walk(srv.Router(), func(method, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		got = append(got, method+" "+route)
		return nil
	}))

	for _, want := range []string{
		"GET /health",
		"GET /metrics",
		"POST /internal/transport/events/{operatorID}",
		"POST /v1/readings/evaluate",
		"POST /v1/readings",
		"POST /v1/alerts",
		"GET /v1/plots/{plotID}/alerts",
		"GET /v1/operators/{operatorID}/whatsapp/status",
		"POST /v1/operators/{operatorID}/whatsapp/connect",
		"POST /v1/operators/{operatorID}/whatsapp/disconnect",
	} {
		assert.Contains(t, got, want)
	}
}

func TestPairingThroughSignedEvent(t *testing.T) {
	_, h := newTestApp(t, testConfig())

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/v1/operators/4/whatsapp/connect", nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	body := []byte(`{"type":"ready"}`)
	req := httptest.NewRequest(http.MethodPost, "/internal/transport/events/4", bytes.NewReader(body))
	req.Header.Set(security.SignatureHeader, security.Sign(body, "bridge-secret", time.Now()))
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	assert.Eventually(t, func() bool {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/operators/4/whatsapp/status", nil))
		var resp struct {
			Data types.SessionStatus `json:"data"`
		}
		if json.Unmarshal(w.Body.Bytes(), &resp) != nil {
			return false
		}
		return resp.Data.State == types.SessionConnected
	}, 2*time.Second, 10*time.Millisecond)
}

func TestUnsignedEventRejected(t *testing.T) {
	_, h := newTestApp(t, testConfig())

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/internal/transport/events/4", strings.NewReader(`{"type":"ready"}`)))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestMetricsEndpointExposesRequests(t *testing.T) {
	_, h := newTestApp(t, testConfig())

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "plotwatch_http_requests_total")
	assert.Contains(t, w.Body.String(), "go_goroutines")
}

func TestBuildRejectsUnknownProviders(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"email", func(c *config.Config) { c.Email.Provider = "pigeon" }},
		{"sms", func(c *config.Config) { c.SMS.Provider = "pigeon" }},
		{"transport", func(c *config.Config) { c.Messaging.Transport = "pigeon" }},
		{"metrics", func(c *config.Config) { c.Observability.MetricsBackend = "statsd" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(cfg)
			_, err := build(context.Background(), cfg, logger, stubDB{})
			assert.Error(t, err)
		})
	}
}

func TestProviderSelection(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	client := newHTTPClient()

	emailProvider, err := newEmailProvider(config.EmailConfig{Provider: "smtp", SMTPHost: "localhost", SMTPPort: 25}, client, logger)
	require.NoError(t, err)
	assert.NotNil(t, emailProvider)

	emailProvider, err = newEmailProvider(config.EmailConfig{Provider: "sendgrid", SendGridAPIKey: "SG.x"}, client, logger)
	require.NoError(t, err)
	assert.NotNil(t, emailProvider)

	smsProvider, err := newSMSProvider(config.SMSConfig{Provider: "gateway", GatewayURL: "http://gw"}, client, logger)
	require.NoError(t, err)
	assert.NotNil(t, smsProvider)

	factory, err := newTransportFactory(config.MessagingConfig{Transport: "bridge", BridgeURL: "http://bridge"}, client, logger)
	require.NoError(t, err)
	assert.NotNil(t, factory)
}

func TestNewLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, "warn")

	logger.Info("hidden")
	logger.Warn("shown", "k", "v")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"msg":"shown"`)

	adapted := AdaptLogger(logger).With("component", "test")
	adapted.Error("boom")
	assert.Contains(t, buf.String(), `"component":"test"`)
}

func TestDeliveryTimeoutCoversSendBudget(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, "info")

	assert.Equal(t, 30*time.Second, deliveryTimeout(30*time.Second, 18750*time.Millisecond, logger))
	assert.Empty(t, buf.String())

	assert.Equal(t, 18750*time.Millisecond, deliveryTimeout(10*time.Second, 18750*time.Millisecond, logger))
	assert.Contains(t, buf.String(), "send budget")
}
