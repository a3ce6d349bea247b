package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const configFileName = "config.yaml"

// Load builds the effective configuration: defaults, overridden by the
// optional config.yaml in the user configuration directory, overridden by
// environment variables. A missing config file is not an error.
func Load() (Config, error) {
	cfg := defaultConfig()

	configDir, err := DefaultConfigDir()
	if err != nil {
		return Config{}, err
	}

	configFilePath := filepath.Join(configDir, configFileName)
	data, err := os.ReadFile(configFilePath)
	switch {
	case errors.Is(err, os.ErrNotExist):
		slog.Debug("No config file found, using defaults",
			"path", configFilePath,
		)
	case err != nil:
		return Config{}, fmt.Errorf("failed to read config file %s: %w", configFilePath, err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config file %s: %w", configFilePath, err)
		}
		slog.Debug("Loaded config file", "path", configFilePath)
	}

	applyEnv(&cfg)

	if cfg.TokenFile == "" {
		cfg.TokenFile = filepath.Join(configDir, DefaultTokenFile)
	}

	return cfg, nil
}

// applyEnv overlays environment variables onto the configuration.
// Environment always wins over the config file.
func applyEnv(cfg *Config) {
	setString(&cfg.ClientID, "SMARTTHINGS_CLIENT_ID")
	setString(&cfg.ClientSecret, "SMARTTHINGS_CLIENT_SECRET")
	setString(&cfg.PersonalAccessToken, "SMARTTHINGS_TOKEN")
	setString(&cfg.BaseURL, "SMARTTHINGS_BASE_URL")
	setString(&cfg.TokenURL, "SMARTTHINGS_TOKEN_URL")
	setString(&cfg.AuthorizeURL, "SMARTTHINGS_AUTHORIZE_URL")
	setString(&cfg.RedirectURI, "SMARTTHINGS_REDIRECT_URI")
	setString(&cfg.Scopes, "SMARTTHINGS_SCOPES")
	setString(&cfg.TokenFile, "SMARTTHINGS_TOKEN_FILE")
	setDuration(&cfg.ExpiryMargin, "SMARTTHINGS_EXPIRY_MARGIN")
	setBool(&cfg.NonInteractive, "SMARTTHINGS_NON_INTERACTIVE")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		slog.Warn("Ignoring invalid duration in environment",
			"key", key,
			"value", v,
			"error", err.Error(),
		)
		return
	}
	*dst = d
}

func setBool(dst *bool, key string) {
	switch os.Getenv(key) {
	case "1", "true", "yes":
		*dst = true
	case "0", "false", "no":
		*dst = false
	}
}
