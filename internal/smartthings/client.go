// Package smartthings is the rate-limit-aware, authenticated HTTP client for
// the SmartThings cloud REST API.
package smartthings

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/juju/clock"
	"github.com/juju/retry"

	"github.com/asleep-ai/smartthings-mcp/internal/oauth"
	"github.com/asleep-ai/smartthings-mcp/internal/ratelimit"
)

// CredentialSource supplies a valid credential before each request and is
// told when the platform rejects one. *oauth.Manager is the production
// implementation.
type CredentialSource interface {
	EnsureValid(ctx context.Context) (*oauth.Credential, error)
	Invalidate()
}

// RetryPolicy bounds the client's retry loop for transient failures.
type RetryPolicy struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int

	// Delay is the initial inter-attempt delay; it doubles per attempt.
	Delay time.Duration

	// MaxDelay caps the inter-attempt delay.
	MaxDelay time.Duration
}

// DefaultRetryPolicy is three attempts with doubling delay.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		Delay:       1 * time.Second,
		MaxDelay:    30 * time.Second,
	}
}

// ClientConfig configures the API client.
type ClientConfig struct {
	// BaseURL is the API root, e.g. https://api.smartthings.com/v1.
	BaseURL string

	// Credentials supplies bearer credentials.
	Credentials CredentialSource

	// Limiter tracks per-endpoint-class budgets. A fresh tracker is created
	// when nil.
	Limiter *ratelimit.Tracker

	// Retry bounds the retry loop. Zero value means DefaultRetryPolicy.
	Retry RetryPolicy

	// HTTPClient is an optional custom HTTP client.
	HTTPClient *http.Client

	// Clock is an optional clock, for tests.
	Clock clock.Clock
}

// Client issues authenticated requests against the SmartThings API. Before
// every call it obtains a valid credential and honors the tracked rate-limit
// budget; after every call it feeds the response headers back to the tracker.
//
// Retry policy: rate-limit rejections, and for idempotent requests also
// server errors and dropped connections, are retried with doubling delay up
// to the bounded attempt count. A 401 triggers exactly one forced
// refresh-and-retry. Other 4xx are surfaced immediately with the platform
// request identifier. Device commands are never retried after an ambiguous
// failure, a 5xx response or a post-send network error, where the command
// might have already executed.
type Client struct {
	baseURL    string
	creds      CredentialSource
	limiter    *ratelimit.Tracker
	httpClient *http.Client
	retryCfg   RetryPolicy
	clock      clock.Clock
}

// NewClient creates an API client.
func NewClient(cfg ClientConfig) *Client {
	limiter := cfg.Limiter
	if limiter == nil {
		limiter = ratelimit.NewTracker()
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	retryCfg := cfg.Retry
	if retryCfg.MaxAttempts == 0 {
		retryCfg = DefaultRetryPolicy()
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clock.WallClock
	}

	return &Client{
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		creds:      cfg.Credentials,
		limiter:    limiter,
		httpClient: httpClient,
		retryCfg:   retryCfg,
		clock:      clk,
	}
}

// EnsureAuthenticated verifies at startup that a usable credential exists,
// so a misconfigured server fails fast with a clear message instead of on
// the first tool call.
func (c *Client) EnsureAuthenticated(ctx context.Context) error {
	_, err := c.creds.EnsureValid(ctx)
	return err
}

// errAuthRetry signals the one permitted refresh-and-retry after a 401.
var errAuthRetry = errors.New("retrying after credential refresh")

// Do issues method path with the optional JSON body and decodes the JSON
// response into out when out is non-nil. An empty response body with a
// success status is not an error (202 on commands).
func (c *Client) Do(ctx context.Context, method, path string, body, out interface{}) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
	}

	class := ratelimit.Classify(method, path)
	idempotent := method == http.MethodGet

	var authRetried bool
	var lastErr error

	err := retry.Call(retry.CallArgs{
		Func: func() error {
			err := c.attempt(ctx, method, path, class, payload, out)
			if apiErr, ok := err.(*APIError); ok && apiErr.Kind == KindAuth && !authRetried {
				// The token may have died between the expiry check and the
				// send. Force one refresh and try again; a second 401 is
				// authoritative.
				authRetried = true
				c.creds.Invalidate()
				return fmt.Errorf("%w: %w", errAuthRetry, apiErr)
			}
			return err
		},
		IsFatalError: func(err error) bool {
			if ctx.Err() != nil {
				return true
			}
			if errors.Is(err, errAuthRetry) {
				return false
			}
			var apiErr *APIError
			if errors.As(err, &apiErr) {
				switch apiErr.Kind {
				case KindNetwork:
					// Only failures known to precede execution are safe to
					// retry on non-idempotent calls.
					return !idempotent && !preSend(apiErr)
				case KindServer:
					// A 5xx reached the server; the command may already have
					// executed before the error. Rate-limit rejections happen
					// before execution and stay retryable.
					return !idempotent
				}
				return !apiErr.Retryable()
			}
			return true
		},
		NotifyFunc: func(err error, attempt int) {
			lastErr = err
			slog.Debug("Request attempt failed",
				"method", method,
				"path", path,
				"attempt", attempt,
				"error", err.Error(),
			)
		},
		Attempts:    c.retryCfg.MaxAttempts,
		Delay:       c.retryCfg.Delay,
		MaxDelay:    c.retryCfg.MaxDelay,
		BackoffFunc: retry.DoubleDelay,
		Clock:       c.clock,
		Stop:        ctx.Done(),
	})
	if err != nil {
		if retry.IsAttemptsExceeded(err) && lastErr != nil {
			err = lastErr
		}
		// Strip the auth-retry marker so callers see the bare APIError.
		if errors.Is(err, errAuthRetry) {
			var apiErr *APIError
			if errors.As(err, &apiErr) {
				err = apiErr
			}
		}
		return err
	}
	return nil
}

// attempt performs one full request cycle: credential, rate-limit wait,
// send, header observation, decode.
func (c *Client) attempt(ctx context.Context, method, path string, class ratelimit.Class, payload []byte, out interface{}) error {
	cred, err := c.creds.EnsureValid(ctx)
	if err != nil {
		return err
	}

	if err := c.waitForBudget(ctx, class); err != nil {
		return err
	}

	var bodyReader io.Reader
	if payload != nil {
		bodyReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+cred.AccessToken)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-ST-Correlation", uuid.NewString())
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &APIError{
			Kind:    KindNetwork,
			Message: err.Error(),
			Code:    networkErrorCode(err),
		}
	}
	defer resp.Body.Close()

	c.limiter.Observe(class, resp.StatusCode, resp.Header)

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &APIError{Kind: KindNetwork, Message: err.Error()}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newAPIError(resp.StatusCode, respBody)
	}

	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

// waitForBudget sleeps for whatever the tracker demands, abortable by the
// caller's context.
func (c *Client) waitForBudget(ctx context.Context, class ratelimit.Class) error {
	wait := c.limiter.Wait(class)
	if wait <= 0 {
		return nil
	}

	slog.Debug("Waiting for rate-limit window",
		"class", string(class),
		"wait", wait,
	)
	select {
	case <-c.clock.After(wait):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// codePreSendDial marks network failures that happened while dialing, before
// any request bytes could reach the platform.
const codePreSendDial = "dial"

func networkErrorCode(err error) string {
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return codePreSendDial
	}
	return ""
}

// preSend reports whether a network failure is known to have occurred before
// the request was sent, making a retry safe even for device commands.
func preSend(apiErr *APIError) bool {
	return apiErr.Code == codePreSendDial
}
