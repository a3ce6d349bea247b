package oauth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/juju/clock"
)

// FlowConfig configures the browser-based authorization-code flow.
type FlowConfig struct {
	ClientID     string
	ClientSecret string
	AuthorizeURL string
	TokenURL     string

	// RedirectURI must match one registered with the SmartThings app.
	// The local listener binds to its port.
	RedirectURI string

	// Scopes is the space-separated scope list to request.
	Scopes string

	// Timeout bounds the wait for the user to complete authorization in the
	// browser. Expiring fails with ErrAuthTimeout.
	Timeout time.Duration

	// OnAuthURL, when set, receives the authorization URL so the caller can
	// display it. The flow opens the browser regardless; the printed URL is
	// the fallback when that fails.
	OnAuthURL func(authURL string)

	// OpenBrowser overrides how the authorization URL is opened, for tests.
	OpenBrowser func(url string) error

	// HTTPClient is an optional custom HTTP client for the code exchange.
	HTTPClient *http.Client

	// Clock is an optional clock, for tests.
	Clock clock.Clock
}

// BrowserFlow runs the interactive authorization-code flow: it starts a local
// callback listener, sends the user's browser to the SmartThings consent
// page with a fresh anti-forgery state, and exchanges the returned code for
// the initial Credential.
type BrowserFlow struct {
	cfg      FlowConfig
	endpoint *tokenEndpoint
}

// NewBrowserFlow creates the browser-based flow.
func NewBrowserFlow(cfg FlowConfig) *BrowserFlow {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Minute
	}
	if cfg.OpenBrowser == nil {
		cfg.OpenBrowser = OpenBrowser
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clock.WallClock
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	return &BrowserFlow{
		cfg: cfg,
		endpoint: &tokenEndpoint{
			url:          cfg.TokenURL,
			clientID:     cfg.ClientID,
			clientSecret: cfg.ClientSecret,
			httpClient:   httpClient,
			clock:        clk,
		},
	}
}

// Authorize runs the flow to completion and returns the new Credential.
// The caller is responsible for persisting it.
func (f *BrowserFlow) Authorize(ctx context.Context) (*Credential, error) {
	state, err := GenerateState()
	if err != nil {
		return nil, err
	}

	port, err := callbackPort(f.cfg.RedirectURI)
	if err != nil {
		return nil, err
	}

	flowCtx, cancel := context.WithTimeout(ctx, f.cfg.Timeout)
	defer cancel()

	// The listener must be up before the browser opens, or a fast redirect
	// would hit a closed port.
	server := NewCallbackServer(port)
	redirectURI, err := server.Start(flowCtx)
	if err != nil {
		return nil, err
	}
	defer server.Stop()

	authURL := f.buildAuthorizeURL(state)
	if f.cfg.OnAuthURL != nil {
		f.cfg.OnAuthURL(authURL)
	}
	if err := f.cfg.OpenBrowser(authURL); err != nil {
		slog.Warn("Failed to open browser, use the printed URL", "error", err.Error())
	}

	slog.Info("Waiting for authorization callback",
		"redirect_uri", redirectURI,
		"timeout", f.cfg.Timeout,
	)

	result, err := server.WaitForCallback(flowCtx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, ErrAuthTimeout
		}
		return nil, err
	}

	// State verification comes before anything else; a mismatched callback
	// means the code is not ours to exchange.
	if result.State != state {
		slog.Warn("Authorization callback state mismatch",
			"expected_len", len(state),
			"received_len", len(result.State),
		)
		return nil, ErrStateMismatch
	}

	if result.IsError() {
		return nil, &AuthorizationError{
			Code:        result.Error,
			Description: result.ErrorDescription,
		}
	}

	if result.Code == "" {
		return nil, errors.New("callback carried no authorization code")
	}

	cred, err := f.endpoint.ExchangeCode(ctx, result.Code, f.cfg.RedirectURI)
	if err != nil {
		return nil, fmt.Errorf("code exchange failed: %w", err)
	}

	slog.Info("Authorization complete",
		"expires_at", cred.ExpiresAt,
		"scope", cred.Scope,
	)
	return cred, nil
}

// buildAuthorizeURL constructs the consent-page URL with the client identity,
// requested scopes, and anti-forgery state.
func (f *BrowserFlow) buildAuthorizeURL(state string) string {
	params := url.Values{
		"response_type": {"code"},
		"client_id":     {f.cfg.ClientID},
		"redirect_uri":  {f.cfg.RedirectURI},
		"scope":         {f.cfg.Scopes},
		"state":         {state},
	}
	return f.cfg.AuthorizeURL + "?" + params.Encode()
}

// callbackPort extracts the listener port from the redirect URI.
func callbackPort(redirectURI string) (int, error) {
	u, err := url.Parse(redirectURI)
	if err != nil {
		return 0, fmt.Errorf("invalid redirect URI %q: %w", redirectURI, err)
	}
	if u.Port() == "" {
		return DefaultCallbackPort, nil
	}
	port, err := strconv.Atoi(u.Port())
	if err != nil {
		return 0, fmt.Errorf("invalid port in redirect URI %q: %w", redirectURI, err)
	}
	return port, nil
}
