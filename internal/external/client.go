// Package external is the boundary between plotwatch and third-party
// provider APIs. Outbound HTTP calls go through BaseClient, which applies
// circuit breaking, optional retries and error mapping uniformly.
package external

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/sony/gobreaker/v2"

	"plotwatch/internal/types"
)

const userAgent = "PlotWatch/1.0"

// RetryPolicy configures BaseClient retries on 429 and 5xx responses.
type RetryPolicy struct {
	MaxRetries int
	MinWait    time.Duration
	MaxWait    time.Duration
}

// NoRetry makes each Do a single HTTP attempt. Notification sends use it so
// that one Deliver is one logical attempt.
func NoRetry() RetryPolicy {
	return RetryPolicy{}
}

// DefaultRetryPolicy suits idempotent lifecycle calls.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 2,
		MinWait:    250 * time.Millisecond,
		MaxWait:    5 * time.Second,
	}
}

// BaseClientConfig configures a BaseClient.
type BaseClientConfig struct {
	// Name identifies the circuit breaker and the provider in errors.
	Name string
	// Retry is the retry policy. The zero value disables retries.
	Retry RetryPolicy
	// UserAgent is sent on every request when non-empty.
	UserAgent string
	// UpstreamCode is the error code for transport failures and
	// non-retryable provider errors. Defaults to ErrCodeUpstreamUnavailable.
	UpstreamCode types.ErrorCode
	// FailureThreshold trips the breaker after this many consecutive
	// failures. Defaults to 5.
	FailureThreshold uint32
	// OpenTimeout is how long the breaker stays open. Defaults to 30s.
	OpenTimeout time.Duration
}

// BaseClient wraps an *http.Client with a circuit breaker.
type BaseClient struct {
	client       *http.Client
	breaker      *gobreaker.CircuitBreaker[*http.Response]
	retryPolicy  RetryPolicy
	userAgent    string
	upstreamCode types.ErrorCode
	sleepFn      func(time.Duration)
}

// BaseClientOption is a functional option for configuring a BaseClient.
type BaseClientOption func(*BaseClient)

// WithSleepFunc overrides the sleep between retries. Intended for tests.
func WithSleepFunc(fn func(time.Duration)) BaseClientOption {
	return func(c *BaseClient) {
		c.sleepFn = fn
	}
}

// NewBaseClient creates a BaseClient.
func NewBaseClient(httpClient *http.Client, cfg BaseClientConfig, opts ...BaseClientOption) *BaseClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	threshold := cfg.FailureThreshold
	if threshold == 0 {
		threshold = 5
	}
	openTimeout := cfg.OpenTimeout
	if openTimeout <= 0 {
		openTimeout = 30 * time.Second
	}
	code := cfg.UpstreamCode
	if code == "" {
		code = types.ErrCodeUpstreamUnavailable
	}

	cb := gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     openTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil
		},
	})

	bc := &BaseClient{
		client:       httpClient,
		breaker:      cb,
		retryPolicy:  cfg.Retry,
		userAgent:    cfg.UserAgent,
		upstreamCode: code,
		sleepFn:      time.Sleep,
	}
	for _, opt := range opts {
		opt(bc)
	}
	return bc
}

// Do executes req through the breaker. The request id from the context is
// forwarded as X-Request-Id.
//
// Responses other than 429 and 5xx are returned as-is and the caller closes
// the body. Exhausted retries, an open breaker and transport errors come back
// as *types.AppError.
func (c *BaseClient) Do(req *http.Request) (*http.Response, error) {
	return c.DoExpecting(req)
}

// DoExpecting is Do for calls where some 429/5xx statuses are answers rather
// than failures. A response with a status in expected is returned as-is, is
// not retried and counts as a success for the breaker.
func (c *BaseClient) DoExpecting(req *http.Request, expected ...int) (*http.Response, error) {
	if reqID := types.GetRequestID(req.Context()); reqID != "" {
		req.Header.Set("X-Request-Id", reqID)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	// Snapshot the body so it can be replayed on retries.
	var bodyBytes []byte
	if req.Body != nil {
		var err error
		bodyBytes, err = io.ReadAll(req.Body)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to read request body", err)
		}
		req.Body.Close()
	}

	var lastResp *http.Response
	var lastErr error

	maxAttempts := 1 + c.retryPolicy.MaxRetries
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if bodyBytes != nil {
			req.Body = io.NopCloser(bytes.NewReader(bodyBytes))
			req.ContentLength = int64(len(bodyBytes))
		}

		resp, err := c.breaker.Execute(func() (*http.Response, error) {
			r, doErr := c.client.Do(req)
			if doErr != nil {
				return nil, doErr
			}
			if slices.Contains(expected, r.StatusCode) {
				return r, nil
			}
			if r.StatusCode >= 500 || r.StatusCode == http.StatusTooManyRequests {
				return r, fmt.Errorf("upstream returned %d", r.StatusCode)
			}
			return r, nil
		})
		if err == nil {
			return resp, nil
		}

		lastErr = err
		if resp != nil {
			if attempt < maxAttempts-1 {
				resp.Body.Close()
			} else {
				lastResp = resp
			}
		}

		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			break
		}
		// A cancelled or expired context will not recover on retry.
		if req.Context().Err() != nil {
			break
		}
		if attempt < maxAttempts-1 {
			c.sleepFn(c.computeBackoff(attempt, resp))
		}
	}

	if lastResp != nil {
		lastResp.Body.Close()
	}
	return nil, c.mapError(req, lastResp, lastErr)
}

// computeBackoff honors Retry-After (seconds or HTTP date) and otherwise
// uses exponential backoff with jitter clamped to [MinWait, MaxWait].
func (c *BaseClient) computeBackoff(attempt int, resp *http.Response) time.Duration {
	if resp != nil {
		if retryAfter := resp.Header.Get("Retry-After"); retryAfter != "" {
			if seconds, err := strconv.Atoi(retryAfter); err == nil && seconds > 0 {
				return min(time.Duration(seconds)*time.Second, c.retryPolicy.MaxWait)
			}
			if t, err := http.ParseTime(retryAfter); err == nil {
				wait := time.Until(t)
				if wait <= 0 {
					return c.retryPolicy.MinWait
				}
				return min(wait, c.retryPolicy.MaxWait)
			}
		}
	}

	base := math.Min(
		float64(c.retryPolicy.MinWait)*math.Pow(2, float64(attempt)),
		float64(c.retryPolicy.MaxWait),
	)
	minWait := float64(c.retryPolicy.MinWait)
	if base <= minWait {
		return c.retryPolicy.MinWait
	}
	return time.Duration(minWait + rand.Float64()*(base-minWait))
}

func (c *BaseClient) mapError(req *http.Request, resp *http.Response, err error) *types.AppError {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return types.NewAppError(
			types.ErrCodeUpstreamUnavailable,
			fmt.Sprintf("%s circuit breaker is open", c.breaker.Name()),
			err,
		)
	}
	if ctxErr := req.Context().Err(); errors.Is(ctxErr, context.DeadlineExceeded) {
		return types.NewAppError(
			types.ErrCodeDeliveryTimeout,
			fmt.Sprintf("%s request timed out", c.breaker.Name()),
			err,
		)
	}
	if resp != nil {
		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			return types.NewAppError(
				types.ErrCodeUpstreamRateLimited,
				fmt.Sprintf("%s rate limit exceeded", c.breaker.Name()),
				err,
			)
		case resp.StatusCode >= 500:
			return types.NewAppError(
				types.ErrCodeUpstreamUnavailable,
				fmt.Sprintf("%s returned %d", c.breaker.Name(), resp.StatusCode),
				err,
			)
		}
	}
	return types.NewAppError(
		c.upstreamCode,
		fmt.Sprintf("%s request failed", c.breaker.Name()),
		err,
	)
}

// Name returns the provider name the client was built with.
func (c *BaseClient) Name() string {
	return c.breaker.Name()
}

// State reports the breaker state, e.g. for health probes.
func (c *BaseClient) State() gobreaker.State {
	return c.breaker.State()
}
