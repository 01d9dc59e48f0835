package scanner

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/nao1215/kirbyscan/internal/proxy"
	xproxy "golang.org/x/net/proxy"
)

// Doer sends an HTTP request. *http.Client implements it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientFactory returns the client used for an attempt. A nil proxy asks for
// a direct client.
type ClientFactory interface {
	Client(p *proxy.Proxy) (Doer, error)
}

// HTTPClientFactory builds *http.Client values with a fixed timeout and
// User-Agent, routed through a SOCKS5 proxy when one is given. Clients are
// cached per proxy address and shared between goroutines.
type HTTPClientFactory struct {
	timeout   time.Duration
	userAgent string

	mu      sync.Mutex
	clients map[string]*http.Client
}

// NewHTTPClientFactory creates a factory whose clients time out after
// timeout and send userAgent with every request.
func NewHTTPClientFactory(timeout time.Duration, userAgent string) *HTTPClientFactory {
	return &HTTPClientFactory{
		timeout:   timeout,
		userAgent: userAgent,
		clients:   make(map[string]*http.Client),
	}
}

// Client implements ClientFactory.
func (f *HTTPClientFactory) Client(p *proxy.Proxy) (Doer, error) {
	key := ""
	if p != nil {
		key = p.Address()
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if client, ok := f.clients[key]; ok {
		return client, nil
	}

	client, err := f.newClient(p)
	if err != nil {
		return nil, err
	}
	f.clients[key] = client
	return client, nil
}

// newClient builds a client. Every target is a different host, so
// keep-alives are disabled and no idle connections pile up.
func (f *HTTPClientFactory) newClient(p *proxy.Proxy) (*http.Client, error) {
	transport := &http.Transport{
		DisableKeepAlives:     true,
		DisableCompression:    true,
		ResponseHeaderTimeout: f.timeout,
	}

	if p != nil {
		var auth *xproxy.Auth
		if p.HasAuth() {
			auth = &xproxy.Auth{User: p.Username, Password: p.Password}
		}

		dialer, err := xproxy.SOCKS5("tcp", p.Address(), auth, xproxy.Direct)
		if err != nil {
			return nil, fmt.Errorf("failed to create SOCKS5 dialer for %s: %w", p.Address(), err)
		}

		if cd, ok := dialer.(xproxy.ContextDialer); ok {
			transport.DialContext = cd.DialContext
		} else {
			transport.DialContext = func(_ context.Context, network, addr string) (net.Conn, error) {
				return dialer.Dial(network, addr)
			}
		}
	} else {
		transport.DialContext = (&net.Dialer{Timeout: f.timeout}).DialContext
	}

	return &http.Client{
		Transport: &headerInjectingTransport{
			base:    transport,
			headers: map[string]string{"User-Agent": f.userAgent},
		},
		Timeout: f.timeout,
	}, nil
}

// headerInjectingTransport sets fixed headers on every outgoing request,
// redirects included.
type headerInjectingTransport struct {
	base    http.RoundTripper
	headers map[string]string
}

// RoundTrip implements http.RoundTripper.
func (t *headerInjectingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	for key, value := range t.headers {
		if value != "" {
			clone.Header.Set(key, value)
		}
	}
	return t.base.RoundTrip(clone)
}

// IsTimeout reports whether err is a timeout. Only timeouts are retried.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
