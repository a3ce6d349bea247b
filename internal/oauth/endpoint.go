package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/juju/clock"
)

// defaultExpiresIn is assumed when the token endpoint omits expires_in.
// SmartThings access tokens live 24 hours.
const defaultExpiresIn = 24 * time.Hour

// tokenEndpoint talks to the SmartThings OAuth token endpoint. SmartThings
// requires HTTP Basic client authentication; client credentials never go in
// the form body.
type tokenEndpoint struct {
	url          string
	clientID     string
	clientSecret string
	httpClient   *http.Client
	clock        clock.Clock
}

// tokenResponse is the token endpoint's success body.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	Scope        string `json:"scope"`
}

// tokenErrorResponse is the token endpoint's error body.
type tokenErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// ExchangeCode exchanges an authorization code for an initial Credential.
func (e *tokenEndpoint) ExchangeCode(ctx context.Context, code, redirectURI string) (*Credential, error) {
	form := url.Values{
		"grant_type":   {"authorization_code"},
		"code":         {code},
		"redirect_uri": {redirectURI},
	}
	return e.post(ctx, form, "")
}

// Refresh exchanges a refresh token for a new Credential. If the response
// omits a refresh token or scope, the previous values carry over.
func (e *tokenEndpoint) Refresh(ctx context.Context, prev *Credential) (*Credential, error) {
	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {prev.RefreshToken},
	}
	cred, err := e.post(ctx, form, prev.Scope)
	if err != nil {
		return nil, err
	}
	if cred.RefreshToken == "" {
		cred.RefreshToken = prev.RefreshToken
	}
	return cred, nil
}

func (e *tokenEndpoint) post(ctx context.Context, form url.Values, fallbackScope string) (*Credential, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(e.clientID, e.clientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read token response: %w", err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		endpointErr := &TokenEndpointError{StatusCode: resp.StatusCode}
		var errResp tokenErrorResponse
		if json.Unmarshal(body, &errResp) == nil {
			endpointErr.Code = errResp.Error
			endpointErr.Description = errResp.ErrorDescription
		}
		return nil, endpointErr
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return nil, fmt.Errorf("invalid token response: %w", err)
	}
	if tr.AccessToken == "" {
		return nil, fmt.Errorf("token response missing access_token")
	}

	now := e.clock.Now()
	expiresIn := defaultExpiresIn
	if tr.ExpiresIn > 0 {
		expiresIn = time.Duration(tr.ExpiresIn) * time.Second
	}

	tokenType := tr.TokenType
	if tokenType == "" {
		tokenType = "Bearer"
	}
	scope := tr.Scope
	if scope == "" {
		scope = fallbackScope
	}

	return &Credential{
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
		ExpiresAt:    now.Add(expiresIn),
		ObtainedAt:   now,
		TokenType:    tokenType,
		Scope:        scope,
	}, nil
}
