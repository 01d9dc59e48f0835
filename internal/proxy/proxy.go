package proxy

import (
	"context"
	"net"
	"strconv"
	"time"
)

// Proxy describes a SOCKS5 proxy endpoint.
//
// Two proxies are the same proxy when host and port match; credentials are
// not part of the identity.
type Proxy struct {
	// Host is an IP address or host name.
	Host string `yaml:"host" json:"host"`

	// Port is the SOCKS5 listening port.
	Port uint16 `yaml:"port" json:"port"`

	// Username and Password enable RFC 1929 authentication when Username is set.
	Username string `yaml:"username,omitempty" json:"username,omitempty"`
	Password string `yaml:"password,omitempty" json:"-"`
}

// Address returns the proxy address in "host:port" form.
func (p Proxy) Address() string {
	return net.JoinHostPort(p.Host, strconv.Itoa(int(p.Port)))
}

// String implements fmt.Stringer. Credentials are never included.
func (p Proxy) String() string {
	return p.Address()
}

// Equal reports whether p and other denote the same endpoint.
func (p Proxy) Equal(other Proxy) bool {
	return p.Host == other.Host && p.Port == other.Port
}

// HasAuth reports whether username/password authentication is configured.
func (p Proxy) HasAuth() bool {
	return p.Username != ""
}

// Validate checks that the proxy has a host and a non-zero port.
func (p Proxy) Validate() error {
	if p.Host == "" || p.Port == 0 {
		return ErrInvalidProxy
	}
	return nil
}

// IsAlive reports whether a TCP connection to the proxy can be established
// within timeout.
func (p Proxy) IsAlive(ctx context.Context, timeout time.Duration) bool {
	return TCPProber{}.Probe(ctx, p, timeout) == StatusAlive
}
