package cmd

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/asleep-ai/smartthings-mcp/internal/config"
	"github.com/asleep-ai/smartthings-mcp/internal/oauth"
	"github.com/asleep-ai/smartthings-mcp/internal/ratelimit"
	"github.com/asleep-ai/smartthings-mcp/internal/server"
	"github.com/asleep-ai/smartthings-mcp/internal/smartthings"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server on stdio",
		Long: `Run the MCP server, speaking the MCP protocol on stdin/stdout.

Requires a valid credential: either a completed 'smartthings-mcp login' or
a personal access token in SMARTTHINGS_TOKEN. The server watches the token
file, so a login performed in another terminal is picked up without a
restart.`,
		RunE: runServe,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.Debug {
		setupLogging(true)
	}

	store, err := oauth.NewFileStore(cfg.TokenFile)
	if err != nil {
		return err
	}
	manager := oauth.NewManager(store, oauth.ManagerConfig{
		ClientID:            cfg.ClientID,
		ClientSecret:        cfg.ClientSecret,
		PersonalAccessToken: cfg.PersonalAccessToken,
		TokenURL:            cfg.TokenURL,
		ExpiryMargin:        cfg.ExpiryMargin,
		HTTPClient:          &http.Client{Timeout: cfg.HTTPTimeout},
	})

	client := smartthings.NewClient(smartthings.ClientConfig{
		BaseURL:     cfg.BaseURL,
		Credentials: manager,
		Limiter:     ratelimit.NewTracker(),
		Retry: smartthings.RetryPolicy{
			MaxAttempts: cfg.Retry.MaxAttempts,
			Delay:       cfg.Retry.Delay,
			MaxDelay:    cfg.Retry.MaxDelay,
		},
		HTTPClient: &http.Client{Timeout: cfg.HTTPTimeout},
	})

	ctx := cmd.Context()
	if err := client.EnsureAuthenticated(ctx); err != nil {
		return fmt.Errorf("authentication check failed: %w", err)
	}
	slog.Info("Authenticated with SmartThings", "oauth", manager.UsingOAuth())

	if manager.UsingOAuth() {
		watcher := oauth.NewStoreWatcher(cfg.TokenFile, manager.Reload)
		if err := watcher.Start(); err != nil {
			slog.Warn("Token file watcher unavailable", "error", err.Error())
		} else {
			defer watcher.Stop()
		}
	}

	srv := server.New(client, GetVersion())
	return srv.ServeStdio()
}
