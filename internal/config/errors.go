package config

import "errors"

// Configuration errors.
// These errors are returned by the loader and by Config.Validate(). Every
// one of them is fatal: nothing is scanned with a configuration that failed
// to load or validate.
var (
	// ErrConfigNotFound is returned when no configuration file exists.
	ErrConfigNotFound = errors.New("configuration file not found")

	// ErrConfigInaccessible is returned when the configuration file exists
	// but cannot be read, e.g. because of its permissions.
	ErrConfigInaccessible = errors.New("configuration file is not accessible")

	// ErrConfigParse is returned when the configuration file is not valid
	// YAML or JSON, or a value has the wrong type.
	ErrConfigParse = errors.New("failed to parse configuration file")

	// ErrInvalidThreads is returned when the number of threads is not positive.
	ErrInvalidThreads = errors.New("invalid threads: must be positive")

	// ErrInvalidTimeout is returned when the timeout is not positive.
	// A timeout of zero or negative would cause immediate connection failures.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidMaxBodySize is returned when the max body size is negative.
	// A negative body size is invalid; use 0 to use the default limit.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")

	// ErrInvalidProxyCheck is returned for an unknown proxy_check value.
	ErrInvalidProxyCheck = errors.New("invalid proxy_check: must be \"tcp\" or \"socks5\"")

	// ErrInvalidPrefix is returned when the default prefix is not in 0..32.
	ErrInvalidPrefix = errors.New("invalid prefix: must be between 0 and 32")

	// ErrConflictingReportFormats is returned when both --json and --markdown
	// are specified. Only one output format can be used at a time.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")
)
