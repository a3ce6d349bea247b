package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// userConfigDir is the user-scoped configuration directory, relative to $HOME.
const userConfigDir = ".config/smartthings-mcp"

// Default endpoints and flow parameters for the SmartThings cloud.
const (
	DefaultBaseURL      = "https://api.smartthings.com/v1"
	DefaultTokenURL     = "https://api.smartthings.com/oauth/token"
	DefaultAuthorizeURL = "https://api.smartthings.com/oauth/authorize"
	DefaultRedirectURI  = "http://localhost:8080/callback"
	DefaultScopes       = "r:devices:* x:devices:* r:locations:*"
	DefaultTokenFile    = "tokens.json"

	// DefaultExpiryMargin is how long before expiry a token is treated as
	// needing refresh. Refreshing 5 minutes early covers clock skew and
	// long-running tool calls.
	DefaultExpiryMargin = 5 * time.Minute

	// DefaultAuthTimeout bounds the interactive authorization wait.
	DefaultAuthTimeout = 5 * time.Minute

	DefaultHTTPTimeout = 30 * time.Second
)

// RetryConfig controls the API client's retry/backoff behavior.
type RetryConfig struct {
	// MaxAttempts is the total number of attempts per request, including
	// the first one.
	MaxAttempts int `yaml:"maxAttempts"`

	// Delay is the initial delay between attempts. It doubles per attempt.
	Delay time.Duration `yaml:"delay"`

	// MaxDelay caps the per-attempt delay.
	MaxDelay time.Duration `yaml:"maxDelay"`
}

// Config holds all settings for the SmartThings MCP server.
// Values come from the defaults, overridden by the optional config file,
// overridden by environment variables. The config is loaded once at startup
// and read-only afterwards.
type Config struct {
	// ClientID and ClientSecret identify the OAuth client.
	ClientID     string `yaml:"clientId"`
	ClientSecret string `yaml:"clientSecret"`

	// PersonalAccessToken is a static bearer credential used when no OAuth
	// client is configured. When both are present, OAuth wins.
	PersonalAccessToken string `yaml:"personalAccessToken"`

	BaseURL      string `yaml:"baseUrl"`
	TokenURL     string `yaml:"tokenUrl"`
	AuthorizeURL string `yaml:"authorizeUrl"`

	// RedirectURI is where the authorization server sends the browser after
	// consent. The callback port is derived from it.
	RedirectURI string `yaml:"redirectUri"`

	// Scopes is the space-separated OAuth scope list to request.
	Scopes string `yaml:"scopes"`

	// TokenFile is the path of the persisted credential file.
	TokenFile string `yaml:"tokenFile"`

	ExpiryMargin time.Duration `yaml:"expiryMargin"`
	AuthTimeout  time.Duration `yaml:"authTimeout"`
	HTTPTimeout  time.Duration `yaml:"httpTimeout"`

	Retry RetryConfig `yaml:"retry"`

	// NonInteractive disables the browser-based authorization flow.
	// With an empty token store, startup fails fast instead of blocking
	// on a browser that will never appear.
	NonInteractive bool `yaml:"nonInteractive"`

	Debug bool `yaml:"debug"`
}

// DefaultConfigDir returns the user configuration directory.
func DefaultConfigDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, userConfigDir), nil
}

// defaultConfig returns the built-in defaults. TokenFile is left empty here;
// Load resolves it against the user config directory when neither the file
// nor the environment set it.
func defaultConfig() Config {
	return Config{
		BaseURL:      DefaultBaseURL,
		TokenURL:     DefaultTokenURL,
		AuthorizeURL: DefaultAuthorizeURL,
		RedirectURI:  DefaultRedirectURI,
		Scopes:       DefaultScopes,
		ExpiryMargin: DefaultExpiryMargin,
		AuthTimeout:  DefaultAuthTimeout,
		HTTPTimeout:  DefaultHTTPTimeout,
		Retry: RetryConfig{
			MaxAttempts: 3,
			Delay:       1 * time.Second,
			MaxDelay:    30 * time.Second,
		},
	}
}

// HasOAuthClient reports whether an OAuth client identity is configured.
func (c *Config) HasOAuthClient() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

// HasPAT reports whether a personal access token is configured.
func (c *Config) HasPAT() bool {
	return c.PersonalAccessToken != ""
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if !c.HasOAuthClient() && !c.HasPAT() {
		return fmt.Errorf("no credentials configured: set SMARTTHINGS_CLIENT_ID and SMARTTHINGS_CLIENT_SECRET, or SMARTTHINGS_TOKEN")
	}
	if c.ClientID != "" && c.ClientSecret == "" {
		return fmt.Errorf("SMARTTHINGS_CLIENT_ID is set but SMARTTHINGS_CLIENT_SECRET is not")
	}
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry.maxAttempts must be at least 1, got %d", c.Retry.MaxAttempts)
	}
	if c.ExpiryMargin <= 0 {
		return fmt.Errorf("expiryMargin must be positive, got %s", c.ExpiryMargin)
	}
	return nil
}
