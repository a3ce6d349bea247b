package oauth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/juju/clock"
	"github.com/juju/retry"
	"golang.org/x/sync/singleflight"
)

// refreshRetries controls retries of the refresh exchange itself. Transient
// network and server errors are retried; a rejected grant is not.
const (
	refreshAttempts = 3
	refreshDelay    = 1 * time.Second
	refreshMaxDelay = 10 * time.Second
)

// ManagerConfig configures the credential manager.
type ManagerConfig struct {
	// ClientID and ClientSecret identify the OAuth client. When empty, the
	// manager runs in PAT mode using PersonalAccessToken.
	ClientID     string
	ClientSecret string

	// PersonalAccessToken is the static credential for PAT mode. Ignored
	// when an OAuth client is configured: OAuth takes precedence.
	PersonalAccessToken string

	// TokenURL is the OAuth token endpoint.
	TokenURL string

	// ExpiryMargin is the minimum remaining lifetime before a credential is
	// treated as needing refresh.
	ExpiryMargin time.Duration

	// HTTPClient is an optional custom HTTP client.
	HTTPClient *http.Client

	// Clock is an optional clock, for tests. Defaults to the wall clock.
	Clock clock.Clock
}

// Manager owns the credential lifecycle: it loads the stored credential,
// refreshes it ahead of expiry, and replaces it in the store. At most one
// refresh exchange is in flight at a time; concurrent callers share the
// outcome, since SmartThings invalidates a refresh token after first use.
type Manager struct {
	store    Store
	endpoint *tokenEndpoint
	margin   time.Duration
	clock    clock.Clock
	pat      string
	oauth    bool

	group singleflight.Group

	mu      sync.Mutex
	cached  *Credential
	expired bool // set by Invalidate after an observed 401
}

// NewManager creates a credential manager backed by the given store.
func NewManager(store Store, cfg ManagerConfig) *Manager {
	clk := cfg.Clock
	if clk == nil {
		clk = clock.WallClock
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	margin := cfg.ExpiryMargin
	if margin <= 0 {
		margin = 5 * time.Minute
	}

	return &Manager{
		store: store,
		endpoint: &tokenEndpoint{
			url:          cfg.TokenURL,
			clientID:     cfg.ClientID,
			clientSecret: cfg.ClientSecret,
			httpClient:   httpClient,
			clock:        clk,
		},
		margin: margin,
		clock:  clk,
		pat:    cfg.PersonalAccessToken,
		oauth:  cfg.ClientID != "" && cfg.ClientSecret != "",
	}
}

// EnsureValid returns a credential whose expiry is at least the configured
// margin in the future.
//
// It never falls back to the interactive flow on its own: that requires a
// human at a browser. When no stored credential exists or the refresh token
// has been revoked, it fails with ErrReauthRequired and the caller decides
// whether to run the login flow.
func (m *Manager) EnsureValid(ctx context.Context) (*Credential, error) {
	if !m.oauth {
		return m.ensurePAT()
	}

	// Fast path without triggering a refresh.
	if cred := m.current(); cred != nil {
		return cred, nil
	}

	// All callers needing a refresh funnel through one exchange.
	v, err, _ := m.group.Do("refresh", func() (interface{}, error) {
		// Double-check: another caller may have refreshed while we waited.
		if cred := m.current(); cred != nil {
			return cred, nil
		}
		return m.refresh(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Credential), nil
}

// ensurePAT serves PAT mode: the static token is returned unchanged on every
// call and never refreshed. Past its expiry (if one was ever set) the only
// remedy is manual replacement.
func (m *Manager) ensurePAT() (*Credential, error) {
	cred := staticCredential(m.pat)
	if !cred.ValidFor(m.margin, m.clock.Now()) {
		return nil, fmt.Errorf("%w: personal access token cannot be refreshed", ErrReauthRequired)
	}
	return cred, nil
}

// current returns the cached or stored credential when it is still valid and
// no 401 has invalidated it. Returns nil when a refresh is needed.
func (m *Manager) current() *Credential {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.expired {
		return nil
	}

	if m.cached == nil {
		cred, err := m.store.Load()
		if err != nil {
			slog.Warn("Failed to load stored credential", "error", err.Error())
			return nil
		}
		m.cached = cred
	}

	if m.cached.ValidFor(m.margin, m.clock.Now()) {
		return m.cached
	}
	return nil
}

// refresh exchanges the refresh token for a new credential and persists it.
// Must only run inside the singleflight group.
func (m *Manager) refresh(ctx context.Context) (*Credential, error) {
	prev, err := m.store.Load()
	if err != nil {
		return nil, err
	}
	if prev == nil {
		return nil, fmt.Errorf("%w: no stored credential", ErrReauthRequired)
	}
	if !prev.CanRefresh() {
		return nil, fmt.Errorf("%w: stored credential has no refresh token", ErrReauthRequired)
	}

	slog.Info("Refreshing access token", "expires_at", prev.ExpiresAt)

	var fresh *Credential
	var lastErr error
	err = retry.Call(retry.CallArgs{
		Func: func() error {
			var err error
			fresh, err = m.endpoint.Refresh(ctx, prev)
			return err
		},
		IsFatalError: func(err error) bool {
			var endpointErr *TokenEndpointError
			if errors.As(err, &endpointErr) {
				// 429 from the token endpoint is transient.
				if endpointErr.StatusCode == http.StatusTooManyRequests {
					return false
				}
				return endpointErr.permanent()
			}
			return ctx.Err() != nil
		},
		NotifyFunc: func(err error, attempt int) {
			lastErr = err
			slog.Warn("Token refresh attempt failed",
				"attempt", attempt,
				"error", err.Error(),
			)
		},
		Attempts:    refreshAttempts,
		Delay:       refreshDelay,
		MaxDelay:    refreshMaxDelay,
		BackoffFunc: retry.DoubleDelay,
		Clock:       m.clock,
		Stop:        ctx.Done(),
	})
	if err != nil {
		if retry.IsAttemptsExceeded(err) && lastErr != nil {
			err = lastErr
		}
		var endpointErr *TokenEndpointError
		if errors.As(err, &endpointErr) && endpointErr.permanent() {
			// The grant itself was rejected; the refresh token is gone.
			return nil, fmt.Errorf("%w: %v", ErrReauthRequired, err)
		}
		return nil, fmt.Errorf("token refresh failed: %w", err)
	}

	if err := m.store.Save(fresh); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.cached = fresh
	m.expired = false
	m.mu.Unlock()

	slog.Info("Access token refreshed", "expires_at", fresh.ExpiresAt)
	return fresh, nil
}

// Invalidate marks the current credential as expired so the next EnsureValid
// performs a refresh. Called by the API client when a request comes back 401
// despite the expiry check (a token can die between check and send).
func (m *Manager) Invalidate() {
	if !m.oauth {
		return
	}
	m.mu.Lock()
	m.expired = true
	m.mu.Unlock()
}

// Reload drops the in-memory credential so the next EnsureValid re-reads the
// store. Used when the token file changes on disk (external login).
func (m *Manager) Reload() {
	m.mu.Lock()
	m.cached = nil
	m.expired = false
	m.mu.Unlock()
}

// UsingOAuth reports whether the manager runs in OAuth mode (versus PAT).
func (m *Manager) UsingOAuth() bool {
	return m.oauth
}

// Store exposes the underlying credential store.
func (m *Manager) Store() Store {
	return m.store
}
