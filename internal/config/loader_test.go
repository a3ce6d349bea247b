package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolateHome points the loader at a fresh fake home directory.
func isolateHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	// Make sure ambient SmartThings settings don't leak into the test.
	for _, key := range []string{
		"SMARTTHINGS_CLIENT_ID", "SMARTTHINGS_CLIENT_SECRET", "SMARTTHINGS_TOKEN",
		"SMARTTHINGS_BASE_URL", "SMARTTHINGS_TOKEN_URL", "SMARTTHINGS_AUTHORIZE_URL",
		"SMARTTHINGS_REDIRECT_URI", "SMARTTHINGS_SCOPES", "SMARTTHINGS_TOKEN_FILE",
		"SMARTTHINGS_EXPIRY_MARGIN", "SMARTTHINGS_NON_INTERACTIVE",
	} {
		t.Setenv(key, "")
	}
	return home
}

func writeConfigFile(t *testing.T, home, content string) {
	t.Helper()
	dir := filepath.Join(home, userConfigDir)
	require.NoError(t, os.MkdirAll(dir, 0700))
	require.NoError(t, os.WriteFile(filepath.Join(dir, configFileName), []byte(content), 0600))
}

func TestLoadDefaults(t *testing.T) {
	home := isolateHome(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DefaultBaseURL, cfg.BaseURL)
	assert.Equal(t, DefaultTokenURL, cfg.TokenURL)
	assert.Equal(t, DefaultAuthorizeURL, cfg.AuthorizeURL)
	assert.Equal(t, DefaultRedirectURI, cfg.RedirectURI)
	assert.Equal(t, DefaultScopes, cfg.Scopes)
	assert.Equal(t, DefaultExpiryMargin, cfg.ExpiryMargin)
	assert.Equal(t, filepath.Join(home, userConfigDir, DefaultTokenFile), cfg.TokenFile)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
}

func TestLoadConfigFileOverridesDefaults(t *testing.T) {
	home := isolateHome(t)
	writeConfigFile(t, home, `
clientId: file-client
clientSecret: file-secret
scopes: "r:devices:*"
expiryMargin: 10m
retry:
  maxAttempts: 5
  delay: 2s
  maxDelay: 1m
`)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "file-client", cfg.ClientID)
	assert.Equal(t, "r:devices:*", cfg.Scopes)
	assert.Equal(t, 10*time.Minute, cfg.ExpiryMargin)
	assert.Equal(t, 5, cfg.Retry.MaxAttempts)
	assert.Equal(t, 2*time.Second, cfg.Retry.Delay)
	// Untouched keys keep their defaults.
	assert.Equal(t, DefaultBaseURL, cfg.BaseURL)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	home := isolateHome(t)
	writeConfigFile(t, home, "clientId: file-client\nclientSecret: file-secret\n")

	t.Setenv("SMARTTHINGS_CLIENT_ID", "env-client")
	t.Setenv("SMARTTHINGS_EXPIRY_MARGIN", "2m")
	t.Setenv("SMARTTHINGS_NON_INTERACTIVE", "true")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "env-client", cfg.ClientID)
	assert.Equal(t, "file-secret", cfg.ClientSecret)
	assert.Equal(t, 2*time.Minute, cfg.ExpiryMargin)
	assert.True(t, cfg.NonInteractive)
}

func TestLoadMalformedConfigFile(t *testing.T) {
	home := isolateHome(t)
	writeConfigFile(t, home, "clientId: [not, a, string\n")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadInvalidEnvDurationIgnored(t *testing.T) {
	isolateHome(t)
	t.Setenv("SMARTTHINGS_EXPIRY_MARGIN", "five minutes")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultExpiryMargin, cfg.ExpiryMargin)
}

func TestValidate(t *testing.T) {
	cfg := defaultConfig()
	assert.Error(t, cfg.Validate(), "no credentials must fail validation")

	cfg.PersonalAccessToken = "pat"
	assert.NoError(t, cfg.Validate())

	cfg = defaultConfig()
	cfg.ClientID = "id"
	assert.Error(t, cfg.Validate(), "client id without secret must fail")

	cfg.ClientSecret = "secret"
	assert.NoError(t, cfg.Validate())

	cfg.Retry.MaxAttempts = 0
	assert.Error(t, cfg.Validate())
}

func TestCredentialModeDetection(t *testing.T) {
	cfg := Config{ClientID: "id", ClientSecret: "secret", PersonalAccessToken: "pat"}
	assert.True(t, cfg.HasOAuthClient())
	assert.True(t, cfg.HasPAT())

	cfg = Config{PersonalAccessToken: "pat"}
	assert.False(t, cfg.HasOAuthClient())
	assert.True(t, cfg.HasPAT())
}
