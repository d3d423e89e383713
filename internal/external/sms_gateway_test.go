package external

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plotwatch/internal/types"
)

func newTestGateway(t *testing.T, handler http.HandlerFunc) *SMSGatewayClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewSMSGatewayClient(server.Client(), SMSGatewayConfig{
		BaseURL:  server.URL,
		Username: "gw",
		Password: "secret",
		Logger:   discardLogger(),
	}, WithSleepFunc(noopSleep))
}

func TestSMSGateway_Send(t *testing.T) {
	var got queueSMSRequest
	client := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/messages", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "gw", user)
		assert.Equal(t, "secret", pass)
		assert.Equal(t, "ref-2", r.Header.Get("X-Reference-Id"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"message":"Message queued successfully","id":"gw-77"}`))
	})

	id, err := client.Send(context.Background(), types.SMSInput{To: "+919876543210", Body: "soil is dry", ReferenceID: "ref-2"})
	require.NoError(t, err)
	assert.Equal(t, "gw-77", id)
	assert.Equal(t, queueSMSRequest{Topic: DefaultSMSTopic, ToNumber: "+919876543210", Body: "soil is dry"}, got)
}

func TestSMSGateway_SendRejected(t *testing.T) {
	client := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"to_number is required"}`))
	})

	_, err := client.Send(context.Background(), types.SMSInput{Body: "x"})
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrCodeUpstreamSMSProvider))
	assert.Contains(t, err.Error(), "to_number is required")
}

func TestSMSGateway_BadResponse(t *testing.T) {
	client := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`not json`))
	})

	_, err := client.Send(context.Background(), types.SMSInput{To: "1", Body: "x"})
	assert.True(t, types.IsCode(err, types.ErrCodeUpstreamSMSProvider))
}
