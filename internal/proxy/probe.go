package proxy

import (
	"context"
	"errors"
	"io"
	"net"
	"os"
	"time"
)

// SOCKS5 protocol constants used by the handshake probe.
const (
	socks5Version      = 0x05
	socks5AuthNone     = 0x00
	socks5AuthPassword = 0x02
	socks5AuthNoAccept = 0xFF

	// RFC 1929 sub-negotiation version and success status.
	socks5AuthVersion = 0x01
	socks5AuthSuccess = 0x00
)

// Prober checks whether a proxy is usable.
type Prober interface {
	// Probe checks p and must return within timeout.
	Probe(ctx context.Context, p Proxy, timeout time.Duration) Status
}

// ProberFunc adapts an ordinary function to the Prober interface.
type ProberFunc func(ctx context.Context, p Proxy, timeout time.Duration) Status

// Probe calls f(ctx, p, timeout).
func (f ProberFunc) Probe(ctx context.Context, p Proxy, timeout time.Duration) Status {
	return f(ctx, p, timeout)
}

// TCPProber treats a proxy as alive when a TCP connection to it succeeds.
type TCPProber struct{}

// Probe implements Prober.
func (TCPProber) Probe(ctx context.Context, p Proxy, timeout time.Duration) Status {
	conn, status := dial(ctx, p, timeout)
	if conn != nil {
		_ = conn.Close() //nolint:errcheck // probe connection only
	}
	return status
}

// SOCKS5Prober connects to the proxy and performs the SOCKS5 method
// negotiation. The proxy is alive only if it answers with version 5 and
// selects one of the offered methods. When the proxy has credentials the
// username/password method is offered too, and the credentials must be
// accepted; a rejection is reported as StatusWrongType.
type SOCKS5Prober struct{}

// Probe implements Prober.
func (SOCKS5Prober) Probe(ctx context.Context, p Proxy, timeout time.Duration) Status {
	conn, status := dial(ctx, p, timeout)
	if status != StatusAlive {
		return status
	}
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(timeout)); err != nil {
		return StatusCannotConnect
	}

	greeting := []byte{socks5Version, 0x01, socks5AuthNone}
	if p.HasAuth() {
		greeting = []byte{socks5Version, 0x02, socks5AuthNone, socks5AuthPassword}
	}
	if _, err := conn.Write(greeting); err != nil {
		return StatusCannotConnect
	}

	// Server answers with version + selected method.
	resp := make([]byte, 2)
	if _, err := io.ReadFull(conn, resp); err != nil {
		return readFailureStatus(err)
	}
	if resp[0] != socks5Version {
		return StatusWrongType
	}

	switch resp[1] {
	case socks5AuthNone:
		return StatusAlive
	case socks5AuthPassword:
		if !p.HasAuth() {
			return StatusWrongType
		}
		return authenticate(conn, p)
	case socks5AuthNoAccept:
		return StatusWrongType
	default:
		return StatusWrongType
	}
}

// authenticate runs the RFC 1929 username/password sub-negotiation.
func authenticate(conn net.Conn, p Proxy) Status {
	if len(p.Username) > 255 || len(p.Password) > 255 {
		return StatusWrongType
	}

	req := make([]byte, 0, 3+len(p.Username)+len(p.Password))
	req = append(req, socks5AuthVersion, byte(len(p.Username)))
	req = append(req, p.Username...)
	req = append(req, byte(len(p.Password)))
	req = append(req, p.Password...)
	if _, err := conn.Write(req); err != nil {
		return StatusCannotConnect
	}

	resp := make([]byte, 2)
	if _, err := io.ReadFull(conn, resp); err != nil {
		return readFailureStatus(err)
	}
	if resp[0] != socks5AuthVersion || resp[1] != socks5AuthSuccess {
		return StatusWrongType
	}
	return StatusAlive
}

// dial opens a TCP connection to the proxy bounded by timeout.
func dial(ctx context.Context, p Proxy, timeout time.Duration) (net.Conn, Status) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", p.Address())
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) || isTimeout(err) {
			return nil, StatusTimeout
		}
		return nil, StatusCannotConnect
	}
	return conn, StatusAlive
}

// readFailureStatus maps a failed handshake read to a status. A peer that
// closes the connection or sends garbage is not a SOCKS5 proxy.
func readFailureStatus(err error) Status {
	if isTimeout(err) {
		return StatusTimeout
	}
	return StatusWrongType
}

func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
