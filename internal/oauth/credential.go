package oauth

import (
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// Credential is the persisted unit of authentication state. A Credential is
// immutable once issued: refresh produces a new Credential that replaces the
// old one, never an in-place mutation.
//
// The JSON layout matches the token file written by earlier SmartThings MCP
// tooling, so existing token files load unchanged.
type Credential struct {
	// AccessToken is the bearer token attached to API requests.
	AccessToken string `json:"access_token"`

	// RefreshToken is exchanged for a new Credential near expiry.
	// Empty for personal access tokens, which cannot be refreshed.
	RefreshToken string `json:"refresh_token,omitempty"`

	// ExpiresAt is when the access token expires. Zero means the token
	// never expires (PATs).
	ExpiresAt time.Time `json:"expires_at,omitempty"`

	// ObtainedAt is when the credential was issued.
	ObtainedAt time.Time `json:"obtained_at,omitempty"`

	// TokenType is always "Bearer" in practice.
	TokenType string `json:"token_type"`

	// Scope is the space-separated list of scopes granted.
	Scope string `json:"scope,omitempty"`
}

// ValidFor reports whether the credential's access token remains valid for
// at least the given margin. A zero expiry never expires.
func (c *Credential) ValidFor(margin time.Duration, now time.Time) bool {
	if c == nil || c.AccessToken == "" {
		return false
	}
	if c.ExpiresAt.IsZero() {
		return true
	}
	return now.Add(margin).Before(c.ExpiresAt)
}

// CanRefresh reports whether the credential carries a refresh token.
func (c *Credential) CanRefresh() bool {
	return c != nil && c.RefreshToken != ""
}

// Scopes returns the granted scopes as a slice.
func (c *Credential) Scopes() []string {
	if c == nil || c.Scope == "" {
		return nil
	}
	return strings.Fields(c.Scope)
}

// ToOAuth2Token converts the credential to an oauth2.Token.
func (c *Credential) ToOAuth2Token() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  c.AccessToken,
		RefreshToken: c.RefreshToken,
		TokenType:    c.TokenType,
		Expiry:       c.ExpiresAt,
	}
}

// staticCredential wraps a personal access token as a Credential with no
// refresh capability and no expiry.
func staticCredential(pat string) *Credential {
	return &Credential{
		AccessToken: pat,
		TokenType:   "Bearer",
	}
}
