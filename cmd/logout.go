package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/asleep-ai/smartthings-mcp/internal/config"
	"github.com/asleep-ai/smartthings-mcp/internal/oauth"
)

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the stored tokens",
		RunE:  runLogout,
	}
}

func runLogout(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	store, err := oauth.NewFileStore(cfg.TokenFile)
	if err != nil {
		return err
	}
	if err := store.Delete(); err != nil {
		return fmt.Errorf("failed to remove tokens: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), "Logged out. Stored tokens removed.")
	return nil
}
