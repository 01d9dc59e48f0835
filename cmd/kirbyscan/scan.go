package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/nao1215/kirbyscan/internal/config"
	"github.com/nao1215/kirbyscan/internal/pipeline"
	"github.com/nao1215/kirbyscan/internal/proxy"
	"github.com/nao1215/kirbyscan/internal/report"
	"github.com/nao1215/kirbyscan/internal/scanner"
	"github.com/nao1215/kirbyscan/internal/target"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

// Positional argument defaults.
const (
	defaultPort = "80"
	defaultURI  = "/"
)

// scanRequest is what to scan, parsed from the positional arguments.
type scanRequest struct {
	// Range is the normalised CIDR block.
	Range string
	Port  uint16
	URI   string
}

// NewScanCmd creates the scan command.
func NewScanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan <ip|cidr> [port] [uri]",
		Short: "Scan an IPv4 range for HTTP servers and their page titles",
		Long: `Scan sends an HTTP GET request to every address of an IPv4 range and prints
the status code and the page title of each response.

A bare address is expanded to its /24 network (see --prefix). The port
defaults to 80 and the URI to "/".

Settings are read from the configuration file (see "kirbyscan init").
Flags override the file.

Examples:
  # Scan 192.168.1.0/24 on port 80
  kirbyscan scan 192.168.1.1

  # Scan a /28 on port 8080 and request /login
  kirbyscan scan 10.0.0.0/28 8080 /login

  # Write a Markdown report while streaming results to the terminal
  kirbyscan scan 10.0.0.0/24 -m -o report.md

  # Print failed targets as well
  kirbyscan scan 10.0.0.0/24 --show-failures`,
		Args: cobra.RangeArgs(1, 3),
		RunE: runScanCmd,
	}

	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: config.json, .kirbyscan.yaml or the XDG config directory)")

	// Scan behavior flags
	cmd.Flags().IntP("threads", "t", 0,
		"Number of concurrent scans (default from the configuration file)")
	cmd.Flags().DurationP("timeout", "T", config.DefaultTimeout,
		"Timeout for each request and each proxy check")
	cmd.Flags().IntP("prefix", "P", config.DefaultPrefix,
		"Prefix length applied to a bare IP address")
	cmd.Flags().String("proxy-check", string(config.ProxyCheckTCP),
		`How proxies are checked at startup: "tcp" or "socks5"`)
	cmd.Flags().String("user-agent", config.DefaultUserAgent,
		"User-Agent header sent with every request")

	// Report flags
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON lines (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output a Markdown report (mutually exclusive with --json)")
	cmd.Flags().StringP("output", "o", "",
		"Write the report to the specified file path (creates directories if needed)")
	cmd.Flags().Bool("show-failures", false,
		"Print targets that did not respond")
	cmd.Flags().Bool("no-progress", false,
		"Disable the progress bar")

	return cmd
}

// runScanCmd executes the scan command.
func runScanCmd(cmd *cobra.Command, args []string) error {
	req, err := parseScanArgs(args)
	if err != nil {
		return err
	}

	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	req.Range, err = target.Normalize(args[0], cfg.DefaultPrefix)
	if err != nil {
		return err
	}

	logger := newLogger(cmd)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runScan(ctx, cfg, req, cmd.OutOrStdout(), cmd.ErrOrStderr(), logger)
}

// parseScanArgs reads port and uri. The range is normalised once the
// configured prefix is known.
func parseScanArgs(args []string) (scanRequest, error) {
	portArg, uriArg := defaultPort, defaultURI
	if len(args) > 1 {
		portArg = args[1]
	}
	if len(args) > 2 {
		uriArg = args[2]
	}

	port, err := target.ParsePort(portArg)
	if err != nil {
		return scanRequest{}, err
	}

	return scanRequest{
		Port: port,
		URI:  target.NormalizeURI(uriArg),
	}, nil
}

// buildConfig loads the configuration file and applies the flags that were
// set explicitly.
func buildConfig(cmd *cobra.Command) (*config.Config, error) {
	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}

	path := config.FindConfigFile(configPath)
	if path == "" {
		if configPath != "" {
			return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, configPath)
		}
		return nil, fmt.Errorf("%w (run 'kirbyscan init' to create one)", config.ErrConfigNotFound)
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("threads") {
		if cfg.Threads, err = flags.GetInt("threads"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("timeout") {
		if cfg.Timeout, err = flags.GetDuration("timeout"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("prefix") {
		if cfg.DefaultPrefix, err = flags.GetInt("prefix"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("proxy-check") {
		check, err := flags.GetString("proxy-check")
		if err != nil {
			return nil, err
		}
		cfg.ProxyCheck = config.ProxyCheck(check)
	}
	if flags.Changed("user-agent") {
		if cfg.UserAgent, err = flags.GetString("user-agent"); err != nil {
			return nil, err
		}
	}

	if cfg.JSONReport, err = flags.GetBool("json"); err != nil {
		return nil, err
	}
	if cfg.MarkdownReport, err = flags.GetBool("markdown"); err != nil {
		return nil, err
	}
	if cfg.ReportFile, err = flags.GetString("output"); err != nil {
		return nil, err
	}
	if cfg.ShowFailures, err = flags.GetBool("show-failures"); err != nil {
		return nil, err
	}
	if cfg.NoProgress, err = flags.GetBool("no-progress"); err != nil {
		return nil, err
	}
	cfg.Verbose = getBoolFlag(cmd, "verbose")

	return cfg, nil
}

// runScan scans req with cfg. Results go to out (or the report file);
// notices, the progress bar and the summary go to errOut.
func runScan(ctx context.Context, cfg *config.Config, req scanRequest, out, errOut io.Writer, logger *slog.Logger) error {
	if recommended, clamped := cfg.NormalizeThreads(runtime.NumCPU()); clamped {
		fmt.Fprintf(errOut, "Threads lowered to %d, the number of CPUs.\n", recommended)
	} else if cfg.Threads < recommended {
		fmt.Fprintf(errOut, "Using %d threads; %d (the number of CPUs) is recommended.\n", cfg.Threads, recommended)
	}

	total, err := target.Count(req.Range)
	if err != nil {
		return err
	}
	addresses, err := target.Enumerate(req.Range)
	if err != nil {
		return err
	}

	logger.Info("starting scan",
		"range", req.Range,
		"port", req.Port,
		"uri", req.URI,
		"targets", total,
		"threads", cfg.Threads,
		"config", cfg.ConfigFilePath,
	)

	opts := []scanner.Option{
		scanner.WithMaxBodySize(cfg.MaxBodySize),
		scanner.WithLogger(logger),
	}
	if proxies := cfg.ActiveProxies(); len(proxies) > 0 {
		pool := proxy.NewManager(ctx, proxies, cfg.Timeout,
			proxy.WithProber(cfg.ProxyCheck.Prober()),
			proxy.WithLogger(logger),
		)
		if current, ok := pool.Current(); ok {
			fmt.Fprintf(errOut, "Using %d of %d proxies, starting with %s.\n",
				len(pool.Active()), len(proxies), current)
		} else {
			fmt.Fprintf(errOut, "None of the %d proxies is reachable; scanning directly.\n", len(proxies))
		}
		opts = append(opts, scanner.WithPool(pool))
	}

	s := scanner.New(scanner.NewHTTPClientFactory(cfg.Timeout, cfg.UserAgent), opts...)

	writer, closeOutput, err := newReportWriter(cfg, req, out)
	if err != nil {
		return err
	}

	var bar *progressbar.ProgressBar
	if !cfg.NoProgress {
		bar = progressbar.NewOptions64(int64(total), //nolint:gosec // at most 2^32 addresses
			progressbar.OptionSetWriter(errOut),
			progressbar.OptionSetDescription("Scanning "+req.Range),
			progressbar.OptionShowCount(),
			progressbar.OptionSetWidth(40),
			progressbar.OptionThrottle(100*time.Millisecond),
			progressbar.OptionClearOnFinish(),
		)
	}

	var writeErr error
	bp := pipeline.NewBatchProcessor(s,
		pipeline.WithConcurrency(cfg.Threads),
		pipeline.WithBatchLogger(logger),
	)
	stats, scanErr := bp.Process(ctx, pipeline.Targets(addresses, req.Port, req.URI), func(r scanner.Result) {
		if bar != nil {
			_ = bar.Clear() //nolint:errcheck // cosmetic
		}
		if err := writer.WriteResult(r); err != nil && writeErr == nil {
			writeErr = err
			logger.Error("failed to write result", "target", r.Target.String(), "error", err)
		}
		if bar != nil {
			_ = bar.Add(1) //nolint:errcheck // cosmetic
		}
	})
	if bar != nil {
		_ = bar.Finish() //nolint:errcheck // cosmetic
	}

	err = errors.Join(writeErr, writer.Close(), closeOutput())

	printSummary(errOut, stats)

	if scanErr != nil {
		return fmt.Errorf("scan interrupted: %w", scanErr)
	}
	if err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

// newReportWriter returns the writer for the configured format. With
// --output the report goes to the file and plain text keeps streaming to out.
// The returned function closes the file.
func newReportWriter(cfg *config.Config, req scanRequest, out io.Writer) (report.Writer, func() error, error) {
	terminal := report.NewTextWriter(out, report.WithFailures(cfg.ShowFailures))
	noop := func() error { return nil }

	dest := out
	closeOutput := noop
	if cfg.ReportFile != "" {
		f, err := openOutput(cfg.ReportFile)
		if err != nil {
			return nil, nil, err
		}
		dest = f
		closeOutput = f.Close
	}

	var formatted report.Writer
	switch {
	case cfg.JSONReport:
		formatted = report.NewJSONWriter(dest)
	case cfg.MarkdownReport:
		formatted = report.NewMarkdownWriter(dest, report.WithScanInfo(report.ScanInfo{
			Range:   req.Range,
			Port:    req.Port,
			URI:     req.URI,
			Started: time.Now(),
		}))
	case cfg.ReportFile != "":
		formatted = report.NewTextWriter(dest,
			report.WithFailures(cfg.ShowFailures),
			report.WithColor(false),
		)
	default:
		return terminal, closeOutput, nil
	}

	if cfg.ReportFile == "" {
		return formatted, closeOutput, nil
	}
	return report.NewMultiWriter(terminal, formatted), closeOutput, nil
}

// openOutput creates path and its parent directories. Reports may reveal
// internal hosts, so the file is readable by the owner only.
func openOutput(path string) (*os.File, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600) //nolint:gosec // User-provided output path is intentional
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, nil
}

// printSummary writes a one-line summary of the batch.
func printSummary(w io.Writer, stats pipeline.Stats) {
	fmt.Fprintf(w, "Scanned %d targets in %s: %d responded, %d failed",
		stats.Total, stats.Elapsed.Round(time.Millisecond), stats.Succeeded, stats.FailedTotal())

	var kinds []string
	for _, kind := range []scanner.Kind{
		scanner.KindRequest,
		scanner.KindResponseBody,
		scanner.KindHTMLParsing,
		scanner.KindUnknown,
	} {
		if n := stats.Failed[kind]; n > 0 {
			kinds = append(kinds, fmt.Sprintf("%s: %d", kind, n))
		}
	}
	if len(kinds) > 0 {
		fmt.Fprintf(w, " (%s)", strings.Join(kinds, ", "))
	}
	fmt.Fprintln(w)
}
