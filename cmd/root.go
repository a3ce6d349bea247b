// Package cmd implements the smartthings-mcp command line interface.
package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/asleep-ai/smartthings-mcp/internal/oauth"
)

// Process exit codes. Supervisors key restart and alerting behavior off
// these, so they are part of the interface.
const (
	ExitOK           = 0
	ExitError        = 1
	ExitAuthRequired = 2
	ExitAuthFailed   = 3
)

var (
	version = "dev"

	debugFlag bool
)

// SetVersion sets the version reported by the version command. Called from
// main with the build-time value.
func SetVersion(v string) {
	version = v
}

// GetVersion returns the current version string.
func GetVersion() string {
	return version
}

var rootCmd = &cobra.Command{
	Use:   "smartthings-mcp",
	Short: "MCP server for controlling SmartThings devices",
	Long: `smartthings-mcp exposes SmartThings device control as MCP tools over stdio.

It manages the OAuth token lifecycle (browser login, persisted tokens,
automatic refresh) and respects the SmartThings API rate limits.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogging(debugFlag)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "Enable debug logging")

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newLoginCmd())
	rootCmd.AddCommand(newStatusCmd())
	rootCmd.AddCommand(newLogoutCmd())
	rootCmd.AddCommand(newVersionCmd())
}

// setupLogging configures the process-wide logger. Logs go to stderr: stdout
// carries the MCP protocol.
func setupLogging(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
}

// Execute runs the root command and exits the process with the code the
// failure class maps to.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitCode(err))
	}
}

// exitCode maps an error to a process exit code.
func exitCode(err error) int {
	if errors.Is(err, oauth.ErrReauthRequired) {
		return ExitAuthRequired
	}
	if errors.Is(err, oauth.ErrAuthTimeout) || errors.Is(err, oauth.ErrStateMismatch) {
		return ExitAuthFailed
	}
	var authErr *oauth.AuthorizationError
	if errors.As(err, &authErr) {
		return ExitAuthFailed
	}
	var tokenErr *oauth.TokenEndpointError
	if errors.As(err, &tokenErr) {
		return ExitAuthFailed
	}
	return ExitError
}
