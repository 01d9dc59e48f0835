package scanner

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/nao1215/kirbyscan/internal/proxy"
)

// timeoutError is a net.Error that reports a timeout.
type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

// step is one scripted reply of a fakeDoer.
type step func(req *http.Request) (*http.Response, error)

func respond(status int, body string) step {
	return func(req *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: status,
			Header:     http.Header{"Content-Type": []string{"text/html; charset=utf-8"}},
			Body:       io.NopCloser(strings.NewReader(body)),
			Request:    req,
		}, nil
	}
}

func fail(err error) step {
	return func(*http.Request) (*http.Response, error) {
		return nil, err
	}
}

// fakeFactory hands out clients that replay steps in order and records
// which proxy each client was built for ("" for direct).
type fakeFactory struct {
	mu        sync.Mutex
	steps     []step
	requests  int
	requested []string
}

func newFakeFactory(steps ...step) *fakeFactory {
	return &fakeFactory{steps: steps}
}

func (f *fakeFactory) Client(p *proxy.Proxy) (Doer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	via := ""
	if p != nil {
		via = p.Address()
	}
	f.requested = append(f.requested, via)
	return fakeDoer{factory: f}, nil
}

func (f *fakeFactory) requestCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests
}

type fakeDoer struct {
	factory *fakeFactory
}

func (d fakeDoer) Do(req *http.Request) (*http.Response, error) {
	f := d.factory
	f.mu.Lock()
	if f.requests >= len(f.steps) {
		f.mu.Unlock()
		return nil, errors.New("unexpected request")
	}
	next := f.steps[f.requests]
	f.requests++
	f.mu.Unlock()

	return next(req)
}

// fakePool is a Pool over a fixed list that discards from the end.
type fakePool struct {
	mu       sync.Mutex
	proxies  []proxy.Proxy
	discards int
}

func (p *fakePool) Current() (proxy.Proxy, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.proxies) == 0 {
		return proxy.Proxy{}, false
	}
	return p.proxies[len(p.proxies)-1], true
}

func (p *fakePool) DiscardCurrent() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.discards++
	if len(p.proxies) > 0 {
		p.proxies = p.proxies[:len(p.proxies)-1]
	}
}

func (p *fakePool) discardCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.discards
}

// failingBody returns an error on the first Read.
type failingBody struct{}

func (failingBody) Read([]byte) (int, error) { return 0, errors.New("connection reset") }
func (failingBody) Close() error             { return nil }

// socks5Server is a minimal SOCKS5 proxy (no auth, CONNECT only) used to
// check that requests are really routed through the configured proxy.
type socks5Server struct {
	ln       net.Listener
	connects atomic.Int64
}

func startSOCKS5Server(t *testing.T) *socks5Server {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	s := &socks5Server{ln: ln}
	t.Cleanup(func() { _ = ln.Close() }) //nolint:errcheck

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go s.handle(conn)
		}
	}()

	return s
}

func (s *socks5Server) proxy(t *testing.T) proxy.Proxy {
	t.Helper()

	host, portStr, err := net.SplitHostPort(s.ln.Addr().String())
	if err != nil {
		t.Fatalf("bad listener address: %v", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatalf("bad listener port: %v", err)
	}
	return proxy.Proxy{Host: host, Port: uint16(port)}
}

func (s *socks5Server) handle(conn net.Conn) {
	defer conn.Close()

	header := make([]byte, 2)
	if _, err := io.ReadFull(conn, header); err != nil {
		return
	}
	methods := make([]byte, header[1])
	if _, err := io.ReadFull(conn, methods); err != nil {
		return
	}
	if _, err := conn.Write([]byte{0x05, 0x00}); err != nil {
		return
	}

	req := make([]byte, 4)
	if _, err := io.ReadFull(conn, req); err != nil {
		return
	}

	var host string
	switch req[3] {
	case 0x01:
		addr := make([]byte, 4)
		if _, err := io.ReadFull(conn, addr); err != nil {
			return
		}
		host = net.IP(addr).String()
	case 0x03:
		n := make([]byte, 1)
		if _, err := io.ReadFull(conn, n); err != nil {
			return
		}
		name := make([]byte, n[0])
		if _, err := io.ReadFull(conn, name); err != nil {
			return
		}
		host = string(name)
	case 0x04:
		addr := make([]byte, 16)
		if _, err := io.ReadFull(conn, addr); err != nil {
			return
		}
		host = net.IP(addr).String()
	default:
		return
	}

	portBytes := make([]byte, 2)
	if _, err := io.ReadFull(conn, portBytes); err != nil {
		return
	}
	port := binary.BigEndian.Uint16(portBytes)

	upstream, err := (&net.Dialer{}).DialContext(context.Background(), "tcp",
		net.JoinHostPort(host, strconv.Itoa(int(port))))
	if err != nil {
		_, _ = conn.Write([]byte{0x05, 0x05, 0x00, 0x01, 0, 0, 0, 0, 0, 0}) //nolint:errcheck
		return
	}
	defer upstream.Close()

	s.connects.Add(1)
	if _, err := conn.Write([]byte{0x05, 0x00, 0x00, 0x01, 0, 0, 0, 0, 0, 0}); err != nil {
		return
	}

	done := make(chan struct{}, 2)
	go func() {
		_, _ = io.Copy(upstream, conn) //nolint:errcheck
		done <- struct{}{}
	}()
	go func() {
		_, _ = io.Copy(conn, upstream) //nolint:errcheck
		done <- struct{}{}
	}()
	<-done
}
