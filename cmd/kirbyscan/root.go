package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/nao1215/kirbyscan/internal/log"
	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for KirbyScan.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "kirbyscan",
		Short: "Concurrent HTTP title scanner for IPv4 ranges",
		Long: `KirbyScan sends an HTTP GET request to every address of an IPv4 range and
reports the response status code and the page title.

Requests can be routed through a list of SOCKS5 proxies. Unreachable proxies
are dropped at startup, and a proxy that times out during the scan is dropped
and the next one is used.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().Bool("log-json", false, "Write logs as JSON")

	cmd.AddCommand(NewScanCmd())
	cmd.AddCommand(NewProxiesCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// getBoolFlag reads a flag from the command or, failing that, the root's
// persistent flags.
func getBoolFlag(cmd *cobra.Command, name string) bool {
	value, err := cmd.Flags().GetBool(name)
	if err != nil {
		value, err = cmd.Root().PersistentFlags().GetBool(name)
		if err != nil {
			return false
		}
	}
	return value
}

// newLogger creates the masking logger on stderr and installs it as the
// slog default.
func newLogger(cmd *cobra.Command) *slog.Logger {
	verbose := getBoolFlag(cmd, "verbose")

	var logger *slog.Logger
	if getBoolFlag(cmd, "log-json") {
		logger = log.NewSecureJSONLogger(cmd.ErrOrStderr(), verbose)
	} else {
		logger = log.NewSecureLogger(cmd.ErrOrStderr(), verbose)
	}
	slog.SetDefault(logger)
	return logger
}
