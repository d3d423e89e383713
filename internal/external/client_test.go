package external

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plotwatch/internal/types"
)

// noopSleep is a sleep function that does nothing, for fast tests.
func noopSleep(time.Duration) {}

func newTestClient(t *testing.T, cfg BaseClientConfig) *BaseClient {
	t.Helper()
	if cfg.Name == "" {
		cfg.Name = "test"
	}
	return NewBaseClient(&http.Client{Timeout: 5 * time.Second}, cfg, WithSleepFunc(noopSleep))
}

func get(t *testing.T, ctx context.Context, c *BaseClient, url string) (*http.Response, error) {
	t.Helper()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	require.NoError(t, err)
	return c.Do(req)
}

func TestDo_Success(t *testing.T) {
	var gotUA, gotReqID string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotReqID = r.Header.Get("X-Request-Id")
		w.Write([]byte(`{"status":"ok"}`))
	}))
	defer server.Close()

	c := newTestClient(t, BaseClientConfig{UserAgent: "PlotWatch-Test/1.0"})
	resp, err := get(t, types.WithRequestID(context.Background(), "req-1"), c, server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, `{"status":"ok"}`, string(body))
	assert.Equal(t, "PlotWatch-Test/1.0", gotUA)
	assert.Equal(t, "req-1", gotReqID)
	assert.Equal(t, "test", c.Name())
}

func TestDo_NoRetryMakesOneAttempt(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	c := newTestClient(t, BaseClientConfig{Retry: NoRetry(), UpstreamCode: types.ErrCodeUpstreamSMSProvider})
	_, err := get(t, context.Background(), c, server.URL)

	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
	assert.True(t, types.IsCode(err, types.ErrCodeUpstreamUnavailable))
}

func TestDo_RetriesReplayBody(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, "payload", string(body))
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	c := newTestClient(t, BaseClientConfig{Retry: RetryPolicy{MaxRetries: 3, MinWait: time.Millisecond, MaxWait: time.Millisecond}})
	req, err := http.NewRequest(http.MethodPost, server.URL, stringsReader("payload"))
	require.NoError(t, err)

	resp, err := c.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, int32(3), calls.Load())
}

func TestDo_RateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "1")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	var slept []time.Duration
	c := NewBaseClient(nil, BaseClientConfig{
		Name:  "test",
		Retry: RetryPolicy{MaxRetries: 1, MinWait: time.Millisecond, MaxWait: 5 * time.Second},
	}, WithSleepFunc(func(d time.Duration) { slept = append(slept, d) }))

	_, err := get(t, context.Background(), c, server.URL)
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrCodeUpstreamRateLimited))
	assert.Equal(t, []time.Duration{time.Second}, slept)
}

func TestDo_ClientErrorReturnedAsIs(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	c := newTestClient(t, BaseClientConfig{Retry: DefaultRetryPolicy()})
	resp, err := get(t, context.Background(), c, server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestDo_TransportErrorUsesUpstreamCode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := server.URL
	server.Close()

	c := newTestClient(t, BaseClientConfig{UpstreamCode: types.ErrCodeUpstreamTransport})
	_, err := get(t, context.Background(), c, url)

	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrCodeUpstreamTransport))
}

func TestDo_DeadlineMapsToTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	c := newTestClient(t, BaseClientConfig{})
	_, err := get(t, ctx, c, server.URL)

	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrCodeDeliveryTimeout))
}

func TestDo_BreakerOpens(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	c := newTestClient(t, BaseClientConfig{FailureThreshold: 2, OpenTimeout: time.Minute})
	for i := 0; i < 2; i++ {
		_, err := get(t, context.Background(), c, server.URL)
		require.Error(t, err)
	}
	assert.Equal(t, gobreaker.StateOpen, c.State())

	_, err := get(t, context.Background(), c, server.URL)
	require.Error(t, err)
	assert.True(t, errors.Is(err, gobreaker.ErrOpenState))
	assert.Equal(t, int32(2), calls.Load())
}

func TestDoExpecting_ListedStatusIsAnAnswer(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotImplemented)
	}))
	defer server.Close()

	c := newTestClient(t, BaseClientConfig{
		FailureThreshold: 2,
		OpenTimeout:      time.Minute,
		Retry:            RetryPolicy{MaxRetries: 3, MinWait: time.Millisecond, MaxWait: time.Millisecond},
	})
	for i := 0; i < 3; i++ {
		req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, server.URL, nil)
		require.NoError(t, err)
		resp, err := c.DoExpecting(req, http.StatusNotImplemented)
		require.NoError(t, err)
		assert.Equal(t, http.StatusNotImplemented, resp.StatusCode)
		resp.Body.Close()
	}

	assert.Equal(t, int32(3), calls.Load(), "an expected status is never retried")
	assert.Equal(t, gobreaker.StateClosed, c.State())
}

func TestComputeBackoff_Bounds(t *testing.T) {
	c := newTestClient(t, BaseClientConfig{Retry: RetryPolicy{MaxRetries: 5, MinWait: 10 * time.Millisecond, MaxWait: 80 * time.Millisecond}})
	for attempt := 0; attempt < 6; attempt++ {
		d := c.computeBackoff(attempt, nil)
		assert.GreaterOrEqual(t, d, 10*time.Millisecond)
		assert.LessOrEqual(t, d, 80*time.Millisecond)
	}
}
