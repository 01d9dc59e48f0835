package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/nao1215/kirbyscan/internal/proxy"
	"gopkg.in/yaml.v3"
)

// Configuration file names, in search order.
const (
	// LegacyConfigFile is the file name earlier releases read from the
	// current directory.
	LegacyConfigFile = "config.json"

	// DefaultConfigFile is the file name looked up in the current directory.
	DefaultConfigFile = ".kirbyscan.yaml"

	// XDGConfigFile is the file name inside XDGConfigDir.
	XDGConfigFile = "config.yaml"
)

// File is the on-disk configuration. Pointer fields distinguish a missing
// key from a zero value, so only keys present in the file override defaults.
type File struct {
	UseProxy    *bool       `yaml:"use_proxy"`
	Threads     *int        `yaml:"threads"`
	Timeout     *int        `yaml:"timeout"` // seconds
	Proxies     []FileProxy `yaml:"proxies"`
	UserAgent   string      `yaml:"user_agent"`
	ProxyCheck  string      `yaml:"proxy_check"`
	MaxBodySize *int64      `yaml:"max_body_size"`

	// Keys of the legacy config.json.
	LegacyProxy   *bool `yaml:"proxy"`
	LegacyThreads *int  `yaml:"hilos"`
}

// FileProxy is a proxy entry. "ip" is accepted in place of "host".
type FileProxy struct {
	Host     string `yaml:"host"`
	IP       string `yaml:"ip"`
	Port     uint16 `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// Proxy converts the entry.
func (fp FileProxy) Proxy() proxy.Proxy {
	host := fp.Host
	if host == "" {
		host = fp.IP
	}
	return proxy.Proxy{
		Host:     host,
		Port:     fp.Port,
		Username: fp.Username,
		Password: fp.Password,
	}
}

// LoadConfigFile reads and parses the configuration file at path.
//
// A missing file is ErrConfigNotFound, an unreadable one
// ErrConfigInaccessible, and malformed content ErrConfigParse.
func LoadConfigFile(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-provided config path is intentional
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return nil, fmt.Errorf("%w: %s: %w", ErrConfigInaccessible, path, err)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrConfigParse, path, err)
	}

	return &f, nil
}

// Apply copies the values present in the file onto cfg.
func (f *File) Apply(cfg *Config) {
	switch {
	case f.UseProxy != nil:
		cfg.UseProxy = *f.UseProxy
	case f.LegacyProxy != nil:
		cfg.UseProxy = *f.LegacyProxy
	}

	switch {
	case f.Threads != nil:
		cfg.Threads = *f.Threads
	case f.LegacyThreads != nil:
		cfg.Threads = *f.LegacyThreads
	}

	if f.Timeout != nil {
		cfg.Timeout = time.Duration(*f.Timeout) * time.Second
	}
	if f.UserAgent != "" {
		cfg.UserAgent = f.UserAgent
	}
	if f.ProxyCheck != "" {
		cfg.ProxyCheck = ProxyCheck(f.ProxyCheck)
	}
	if f.MaxBodySize != nil {
		cfg.MaxBodySize = *f.MaxBodySize
	}

	cfg.Proxies = nil
	if cfg.UseProxy {
		cfg.Proxies = f.ProxyList()
	}
}

// ProxyList returns every proxy entry of the file, whether or not use_proxy
// is set.
func (f *File) ProxyList() []proxy.Proxy {
	proxies := make([]proxy.Proxy, 0, len(f.Proxies))
	for _, fp := range f.Proxies {
		proxies = append(proxies, fp.Proxy())
	}
	return proxies
}

// Load returns the defaults overridden by the file at path.
func Load(path string) (*Config, error) {
	f, err := LoadConfigFile(path)
	if err != nil {
		return nil, err
	}

	cfg := NewConfig()
	f.Apply(cfg)
	cfg.ConfigFilePath = path
	return cfg, nil
}

// FindConfigFile searches for the configuration file in the following order:
// 1. If configPath is specified, use it directly
// 2. config.json in the current directory
// 3. .kirbyscan.yaml in the current directory
// 4. config.yaml in XDGConfigDir
//
// Returns the path to the configuration file if found, or empty string if not found.
func FindConfigFile(configPath string) string {
	// If explicit path is provided, use it
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		return ""
	}

	// Check current directory
	if cwd, err := os.Getwd(); err == nil {
		for _, name := range []string{LegacyConfigFile, DefaultConfigFile} {
			candidate := filepath.Join(cwd, name)
			if _, err := os.Stat(candidate); err == nil {
				return candidate
			}
		}
	}

	// Check XDG config directory
	xdgConfig := filepath.Join(XDGConfigDir(), XDGConfigFile)
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig
	}

	return ""
}
