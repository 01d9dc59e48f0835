package scanner

import (
	"net"
	"strconv"
	"time"
)

// Target is one address to probe.
type Target struct {
	// Address is an IP address or host name.
	Address string

	// Port is the HTTP port.
	Port uint16

	// URI is the request path, starting with "/".
	URI string
}

// HostPort returns "address:port", bracketing IPv6 addresses.
func (t Target) HostPort() string {
	return net.JoinHostPort(t.Address, strconv.Itoa(int(t.Port)))
}

// URL returns the URL the target is probed at.
func (t Target) URL() string {
	return "http://" + t.HostPort() + t.URI
}

// String returns "address:port/uri".
func (t Target) String() string {
	return t.HostPort() + t.URI
}

// Result is the outcome of scanning one target. It is created once and not
// modified afterwards.
type Result struct {
	Target Target

	// StatusCode is the HTTP status of the response. Zero when the scan failed
	// before a response arrived.
	StatusCode int

	// Title is the text of the first <title> element. HasTitle tells an empty
	// title apart from a missing one.
	Title    string
	HasTitle bool

	// Err is nil on success. Otherwise it wraps ErrRequest, ErrResponseBody
	// or ErrHTMLParsing.
	Err error

	// Proxy is the proxy address used by the last attempt, empty for a
	// direct connection.
	Proxy string

	// Attempts is the number of requests issued.
	Attempts int

	// Elapsed is the wall time of the whole scan including retries.
	Elapsed time.Duration
}

// OK reports whether the scan succeeded.
func (r Result) OK() bool {
	return r.Err == nil
}

// Kind returns the failure kind, KindNone on success.
func (r Result) Kind() Kind {
	return KindOf(r.Err)
}
