package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/nao1215/kirbyscan/internal/config"
	"github.com/nao1215/kirbyscan/internal/proxy"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

// NewProxiesCmd creates the proxies command.
func NewProxiesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "proxies",
		Short: "Check the configured SOCKS5 proxies",
		Long: `Proxies checks every proxy listed in the configuration file, the same way
the scan command does at startup, and prints the result.

The proxy marked with "*" is the one a scan would start with. The list is
checked even when use_proxy is false.

Examples:
  # Check the proxies of the default configuration file
  kirbyscan proxies

  # Require a full SOCKS5 handshake
  kirbyscan proxies --proxy-check socks5`,
		Args: cobra.NoArgs,
		RunE: runProxiesCmd,
	}

	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: config.json, .kirbyscan.yaml or the XDG config directory)")
	cmd.Flags().DurationP("timeout", "T", config.DefaultTimeout,
		"Timeout for each proxy check")
	cmd.Flags().String("proxy-check", string(config.ProxyCheckTCP),
		`How proxies are checked: "tcp" or "socks5"`)

	return cmd
}

// runProxiesCmd executes the proxies command.
func runProxiesCmd(cmd *cobra.Command, _ []string) error {
	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return err
	}

	path := config.FindConfigFile(configPath)
	if path == "" {
		if configPath != "" {
			return fmt.Errorf("%w: %s", config.ErrConfigNotFound, configPath)
		}
		return fmt.Errorf("%w (run 'kirbyscan init' to create one)", config.ErrConfigNotFound)
	}

	f, err := config.LoadConfigFile(path)
	if err != nil {
		return err
	}
	cfg := config.NewConfig()
	f.Apply(cfg)

	flags := cmd.Flags()
	if flags.Changed("timeout") {
		if cfg.Timeout, err = flags.GetDuration("timeout"); err != nil {
			return err
		}
	}
	if flags.Changed("proxy-check") {
		check, err := flags.GetString("proxy-check")
		if err != nil {
			return err
		}
		cfg.ProxyCheck = config.ProxyCheck(check)
	}

	cfg.UseProxy = true
	cfg.Proxies = f.ProxyList()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return checkProxies(ctx, cfg, cmd.OutOrStdout(), newLogger(cmd))
}

// checkProxies checks cfg.Proxies and prints one row per proxy.
func checkProxies(ctx context.Context, cfg *config.Config, out io.Writer, logger *slog.Logger) error {
	if len(cfg.Proxies) == 0 {
		fmt.Fprintln(out, "No proxies configured.")
		return nil
	}

	pool := proxy.NewManager(ctx, cfg.Proxies, cfg.Timeout,
		proxy.WithProber(cfg.ProxyCheck.Prober()),
		proxy.WithLogger(logger),
	)
	current, hasCurrent := pool.Current()

	alive := color.New(color.FgGreen)
	dead := color.New(color.FgRed)

	table := tablewriter.NewWriter(out)
	table.Header("", "Proxy", "Auth", "Status")
	for _, r := range pool.Statuses() {
		marker := ""
		if hasCurrent && r.Proxy.Equal(current) {
			marker = "*"
		}
		auth := "no"
		if r.Proxy.HasAuth() {
			auth = "yes"
		}
		status := dead.Sprint(r.Status.String())
		if r.Status == proxy.StatusAlive {
			status = alive.Sprint(r.Status.String())
		}
		if err := table.Append([]string{marker, r.Proxy.Address(), auth, status}); err != nil {
			return err
		}
	}
	if err := table.Render(); err != nil {
		return err
	}

	fmt.Fprintf(out, "\n%d of %d proxies reachable (%s check).\n",
		len(pool.Active()), len(cfg.Proxies), cfg.ProxyCheck)
	if !hasCurrent {
		fmt.Fprintln(out, "Scans will connect directly.")
	}
	return nil
}
