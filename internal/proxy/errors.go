package proxy

import "errors"

// Proxy errors.
var (
	// ErrInvalidProxy is returned when a configured proxy has no host or a zero port.
	ErrInvalidProxy = errors.New("invalid proxy: host and port (1-65535) are required")

	// ErrProxyNotSOCKS5 is returned when the endpoint answers but does not
	// speak SOCKS5 or refuses every offered authentication method.
	ErrProxyNotSOCKS5 = errors.New("proxy is not a SOCKS5 proxy")

	// ErrProxyCannotConnect is returned when no TCP connection could be made.
	ErrProxyCannotConnect = errors.New("cannot connect to proxy")

	// ErrProxyTimeout is returned when the liveness probe ran out of time.
	ErrProxyTimeout = errors.New("timeout connecting to proxy")
)

// Status is the outcome of a liveness probe.
type Status int

const (
	// StatusAlive means the proxy accepted the probe.
	StatusAlive Status = iota

	// StatusWrongType means the endpoint is reachable but is not a usable SOCKS5 proxy.
	StatusWrongType

	// StatusCannotConnect means the TCP connection was refused or failed.
	StatusCannotConnect

	// StatusTimeout means the probe did not complete within its timeout.
	StatusTimeout
)

// String returns a human-readable description of the status.
func (s Status) String() string {
	switch s {
	case StatusAlive:
		return "alive"
	case StatusWrongType:
		return "wrong type (not SOCKS5)"
	case StatusCannotConnect:
		return "cannot connect"
	case StatusTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Err returns the error matching this status, or nil when the proxy is alive.
func (s Status) Err() error {
	switch s {
	case StatusAlive:
		return nil
	case StatusWrongType:
		return ErrProxyNotSOCKS5
	case StatusCannotConnect:
		return ErrProxyCannotConnect
	case StatusTimeout:
		return ErrProxyTimeout
	default:
		return errors.New("unknown proxy status")
	}
}
