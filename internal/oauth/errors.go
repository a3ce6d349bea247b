package oauth

import (
	"errors"
	"fmt"
)

// ErrStoreUnavailable indicates the token store path cannot be read or
// written. Losing the store forces re-authentication, so this is surfaced to
// the operator rather than swallowed.
var ErrStoreUnavailable = errors.New("token store unavailable")

// ErrReauthRequired indicates the refresh token is invalid or missing and a
// human must re-run the interactive authorization flow. It is never retried
// automatically.
var ErrReauthRequired = errors.New("re-authorization required: run 'smartthings-mcp login'")

// ErrAuthTimeout indicates the interactive flow did not complete in time.
var ErrAuthTimeout = errors.New("timed out waiting for authorization")

// ErrStateMismatch indicates the callback carried a state value that does not
// match the one sent in the authorization request. The authorization code is
// discarded without being exchanged.
var ErrStateMismatch = errors.New("state mismatch in authorization callback")

// AuthorizationError is returned when the authorization server rejects the
// interactive flow (user denied consent, invalid client, ...).
type AuthorizationError struct {
	Code        string
	Description string
}

func (e *AuthorizationError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("authorization failed: %s - %s", e.Code, e.Description)
	}
	return fmt.Sprintf("authorization failed: %s", e.Code)
}

// TokenEndpointError is returned when the token endpoint rejects an exchange.
// The OAuth error code distinguishes a revoked refresh token (invalid_grant)
// from transient failures.
type TokenEndpointError struct {
	StatusCode  int
	Code        string
	Description string
}

func (e *TokenEndpointError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("token endpoint returned %d: %s - %s", e.StatusCode, e.Code, e.Description)
	}
	return fmt.Sprintf("token endpoint returned %d", e.StatusCode)
}

// permanent reports whether the exchange failure cannot be fixed by retrying.
func (e *TokenEndpointError) permanent() bool {
	switch e.StatusCode {
	case 400, 401, 403:
		return true
	}
	return false
}
