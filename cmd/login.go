package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/asleep-ai/smartthings-mcp/internal/config"
	"github.com/asleep-ai/smartthings-mcp/internal/oauth"
)

func newLoginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Authorize with SmartThings in the browser",
		Long: `Run the browser-based OAuth authorization flow.

Opens the SmartThings consent page, waits for the redirect on the local
callback port, exchanges the authorization code, and stores the resulting
tokens for the server to use.`,
		RunE: runLogin,
	}
}

func runLogin(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if !cfg.HasOAuthClient() {
		return fmt.Errorf("login requires an OAuth client: set SMARTTHINGS_CLIENT_ID and SMARTTHINGS_CLIENT_SECRET")
	}
	if cfg.NonInteractive {
		return fmt.Errorf("login is disabled in non-interactive mode")
	}

	flow := oauth.NewBrowserFlow(oauth.FlowConfig{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		AuthorizeURL: cfg.AuthorizeURL,
		TokenURL:     cfg.TokenURL,
		RedirectURI:  cfg.RedirectURI,
		Scopes:       cfg.Scopes,
		Timeout:      cfg.AuthTimeout,
		OnAuthURL: func(authURL string) {
			fmt.Fprintln(cmd.OutOrStdout(), "Opening browser for SmartThings authorization.")
			fmt.Fprintln(cmd.OutOrStdout(), "If it does not open, visit:")
			fmt.Fprintln(cmd.OutOrStdout(), "  "+authURL)
		},
	})

	cred, err := flow.Authorize(cmd.Context())
	if err != nil {
		return fmt.Errorf("authorization failed: %w", err)
	}

	store, err := oauth.NewFileStore(cfg.TokenFile)
	if err != nil {
		return err
	}
	if err := store.Save(cred); err != nil {
		return fmt.Errorf("failed to store tokens: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Logged in. Tokens stored in %s\n", cfg.TokenFile)
	fmt.Fprintf(cmd.OutOrStdout(), "Access token valid until %s\n", cred.ExpiresAt.Local().Format("2006-01-02 15:04:05"))
	return nil
}
