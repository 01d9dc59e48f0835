package config

import (
	"fmt"
	"path/filepath"
	"runtime"
	"time"

	"github.com/adrg/xdg"
	"github.com/nao1215/kirbyscan/internal/proxy"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "kirbyscan"

	// DefaultTimeout bounds each request and each proxy liveness probe.
	DefaultTimeout = 5 * time.Second

	// DefaultUserAgent identifies KirbyScan in HTTP requests so that
	// operators can recognise scanner traffic in their logs.
	DefaultUserAgent = "KirbyScan/1.0 (+https://github.com/nao1215/kirbyscan)"

	// DefaultMaxBodySize limits the maximum response body size to read.
	DefaultMaxBodySize = 5 * 1024 * 1024 // 5MB

	// DefaultPrefix is the prefix length applied to a bare IP address.
	DefaultPrefix = 24
)

// ProxyCheck selects how proxies are probed before the scan starts.
type ProxyCheck string

const (
	// ProxyCheckTCP accepts a proxy that accepts a TCP connection.
	ProxyCheckTCP ProxyCheck = "tcp"

	// ProxyCheckSOCKS5 accepts a proxy only if it completes the SOCKS5
	// method negotiation.
	ProxyCheckSOCKS5 ProxyCheck = "socks5"
)

// Prober returns the prober for the check.
func (p ProxyCheck) Prober() proxy.Prober {
	if p == ProxyCheckSOCKS5 {
		return proxy.SOCKS5Prober{}
	}
	return proxy.TCPProber{}
}

// Config holds all configuration options for KirbyScan.
// It is populated from the configuration file and CLI flags and passed
// through the application rather than kept in global state.
type Config struct {
	// UseProxy routes requests through Proxies. When false the proxy list is
	// dropped, whatever the file contains.
	UseProxy bool

	// Threads is the number of targets scanned concurrently.
	Threads int

	// Timeout applies to each request and each proxy probe.
	Timeout time.Duration

	// Proxies is the ordered proxy list. Later entries are preferred.
	Proxies []proxy.Proxy

	// UserAgent is the User-Agent header sent with HTTP requests.
	UserAgent string

	// ProxyCheck selects the liveness probe.
	ProxyCheck ProxyCheck

	// MaxBodySize is the maximum response body size in bytes to read.
	// Set to 0 to use the default (5MB).
	MaxBodySize int64

	// DefaultPrefix is appended to a target given as a bare address.
	DefaultPrefix int

	// Verbose enables detailed log output using slog.LevelDebug.
	// When false, only warnings and errors are logged.
	Verbose bool

	// JSONReport writes JSON lines instead of text.
	// Mutually exclusive with MarkdownReport.
	JSONReport bool

	// MarkdownReport writes a Markdown report instead of text.
	// Mutually exclusive with JSONReport.
	MarkdownReport bool

	// ReportFile is the output file path for the report.
	// When set, the report is written to this file instead of stdout.
	ReportFile string

	// ShowFailures prints failed targets in text output.
	ShowFailures bool

	// NoProgress disables the progress bar.
	NoProgress bool

	// ConfigFilePath is the configuration file that was loaded.
	ConfigFilePath string
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		Threads:       runtime.NumCPU(),
		Timeout:       DefaultTimeout,
		UserAgent:     DefaultUserAgent,
		ProxyCheck:    ProxyCheckTCP,
		MaxBodySize:   DefaultMaxBodySize,
		DefaultPrefix: DefaultPrefix,
	}
}

// XDGConfigDir returns the XDG config directory for KirbyScan.
// On Linux: ~/.config/kirbyscan
// On macOS: ~/Library/Application Support/kirbyscan
// On Windows: %APPDATA%\kirbyscan
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// ActiveProxies returns the proxies to use: none unless UseProxy is set.
func (c *Config) ActiveProxies() []proxy.Proxy {
	if !c.UseProxy {
		return nil
	}
	return c.Proxies
}

// NormalizeThreads compares Threads with the available parallelism. More
// threads than CPUs are clamped down and clamped is true. Fewer threads are
// kept; recommended is what the caller may suggest to the user.
func (c *Config) NormalizeThreads(parallelism int) (recommended int, clamped bool) {
	if parallelism <= 0 {
		return c.Threads, false
	}
	if c.Threads > parallelism {
		c.Threads = parallelism
		return parallelism, true
	}
	return parallelism, false
}

// Validate checks if the configuration is valid.
// It returns the first error found; configuration errors are fatal.
func (c *Config) Validate() error {
	if c.Threads <= 0 {
		return ErrInvalidThreads
	}

	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}

	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}

	if c.ProxyCheck != ProxyCheckTCP && c.ProxyCheck != ProxyCheckSOCKS5 {
		return fmt.Errorf("%w: %q", ErrInvalidProxyCheck, c.ProxyCheck)
	}

	if c.DefaultPrefix < 0 || c.DefaultPrefix > 32 {
		return ErrInvalidPrefix
	}

	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}

	for i, p := range c.ActiveProxies() {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("proxies[%d]: %w", i, err)
		}
	}

	return nil
}
