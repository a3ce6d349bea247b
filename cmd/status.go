package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/asleep-ai/smartthings-mcp/internal/config"
	"github.com/asleep-ai/smartthings-mcp/internal/oauth"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the authorization status",
		RunE:  runStatus,
	}
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	if cfg.HasOAuthClient() {
		fmt.Fprintln(out, "Mode:       OAuth client")
	} else if cfg.HasPAT() {
		fmt.Fprintln(out, "Mode:       personal access token")
		fmt.Fprintln(out, "Status:     configured (static token, no expiry tracking)")
		return nil
	} else {
		fmt.Fprintln(out, "Mode:       not configured")
		fmt.Fprintln(out, "Status:     no credentials; set SMARTTHINGS_CLIENT_ID/SMARTTHINGS_CLIENT_SECRET or SMARTTHINGS_TOKEN")
		return nil
	}

	store, err := oauth.NewFileStore(cfg.TokenFile)
	if err != nil {
		return err
	}
	cred, err := store.Load()
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Token file: %s\n", cfg.TokenFile)
	if cred == nil {
		fmt.Fprintln(out, "Status:     not logged in; run 'smartthings-mcp login'")
		return nil
	}

	now := time.Now()
	switch {
	case cred.ValidFor(cfg.ExpiryMargin, now) && cred.ExpiresAt.IsZero():
		fmt.Fprintln(out, "Status:     logged in (token has no recorded expiry)")
	case cred.ValidFor(cfg.ExpiryMargin, now):
		fmt.Fprintf(out, "Status:     logged in, valid until %s\n", cred.ExpiresAt.Local().Format("2006-01-02 15:04:05"))
	case cred.CanRefresh():
		fmt.Fprintln(out, "Status:     access token expired; will refresh on next use")
	default:
		fmt.Fprintln(out, "Status:     expired with no refresh token; run 'smartthings-mcp login'")
	}
	if scopes := cred.Scopes(); len(scopes) > 0 {
		fmt.Fprintf(out, "Scopes:     %v\n", scopes)
	}
	return nil
}
