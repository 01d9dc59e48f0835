package scanner

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/nao1215/kirbyscan/internal/proxy"
)

// MaxAttempts is the number of requests a Scanner issues per target at most.
const MaxAttempts = 2

// DefaultMaxBodySize is the default limit on how much of a response body is read.
const DefaultMaxBodySize = 5 * 1024 * 1024

// Pool is the part of proxy.Manager a Scanner needs.
type Pool interface {
	Current() (proxy.Proxy, bool)
	DiscardCurrent()
}

// Scanner probes targets. A single Scanner may be used from many goroutines,
// and many Scanners may share one Pool.
type Scanner struct {
	clients     ClientFactory
	pool        Pool
	maxBodySize int64
	logger      *slog.Logger
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithPool routes requests through the pool's current proxy and enables
// failover on timeouts. Without a pool every request is direct.
func WithPool(pool Pool) Option {
	return func(s *Scanner) {
		s.pool = pool
	}
}

// WithMaxBodySize limits how many bytes of the response body are read.
func WithMaxBodySize(size int64) Option {
	return func(s *Scanner) {
		if size > 0 {
			s.maxBodySize = size
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scanner) {
		s.logger = logger
	}
}

// New creates a Scanner that obtains its HTTP clients from clients.
func New(clients ClientFactory, opts ...Option) *Scanner {
	s := &Scanner{
		clients:     clients,
		maxBodySize: DefaultMaxBodySize,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	// Guard against a typed nil *proxy.Manager hiding in the interface.
	if m, ok := s.pool.(*proxy.Manager); ok && m == nil {
		s.pool = nil
	}
	return s
}

// state is a step of the per-target scan.
type state int

const (
	// stateConnect issues the next request, or fails when attempts are used up.
	stateConnect state = iota

	// stateFailover discards the current proxy after a timeout.
	stateFailover

	// stateParse reads the body and extracts the title.
	stateParse

	// stateDone ends the scan; the result is final.
	stateDone
)

// scan holds the mutable state of one Scan call.
type scan struct {
	target   Target
	client   Doer
	rebuild  bool
	response *http.Response
	lastErr  error
	result   Result
}

// Scan probes target and returns its result. It never panics on network
// errors; every failure is reported through Result.Err.
func (s *Scanner) Scan(ctx context.Context, target Target) Result {
	start := time.Now()
	sc := &scan{
		target:  target,
		rebuild: true,
		result:  Result{Target: target},
	}

	for st := stateConnect; st != stateDone; {
		switch st {
		case stateConnect:
			st = s.connect(ctx, sc)
		case stateFailover:
			st = s.failover(sc)
		case stateParse:
			st = s.parse(sc)
		default:
			st = stateDone
		}
	}

	sc.result.Elapsed = time.Since(start)
	return sc.result
}

// connect sends one request. A response moves on to parsing, a timeout to
// failover, and anything else ends the scan.
func (s *Scanner) connect(ctx context.Context, sc *scan) state {
	if sc.result.Attempts >= MaxAttempts {
		sc.result.Err = fmt.Errorf("%w: %d attempts exhausted: %w", ErrRequest, sc.result.Attempts, sc.lastErr)
		return stateDone
	}

	if sc.rebuild || sc.client == nil {
		client, via, err := s.client()
		if err != nil {
			sc.result.Err = fmt.Errorf("%w: %w", ErrRequest, err)
			return stateDone
		}
		sc.client = client
		sc.result.Proxy = via
		sc.rebuild = false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sc.target.URL(), nil)
	if err != nil {
		sc.result.Err = fmt.Errorf("%w: %w", ErrRequest, err)
		return stateDone
	}

	sc.result.Attempts++
	resp, err := sc.client.Do(req)
	if err != nil {
		sc.lastErr = err
		if IsTimeout(err) {
			s.logger.Debug("request timed out",
				"target", sc.target.String(),
				"attempt", sc.result.Attempts,
				"proxy", sc.result.Proxy,
			)
			return stateFailover
		}
		sc.result.Err = fmt.Errorf("%w: %w", ErrRequest, err)
		return stateDone
	}

	sc.response = resp
	return stateParse
}

// failover drops the proxy that timed out and asks for a new client on the
// next attempt.
func (s *Scanner) failover(sc *scan) state {
	if s.pool != nil {
		s.pool.DiscardCurrent()
		sc.rebuild = true
	}
	return stateConnect
}

// parse reads the body and extracts the title. Nothing here is retried:
// the connection itself succeeded.
func (s *Scanner) parse(sc *scan) state {
	resp := sc.response
	defer resp.Body.Close()

	sc.result.StatusCode = resp.StatusCode

	body, err := io.ReadAll(io.LimitReader(resp.Body, s.maxBodySize))
	if err != nil {
		sc.result.Err = fmt.Errorf("%w: %w", ErrResponseBody, err)
		return stateDone
	}

	title, ok, err := ExtractTitle(body, resp.Header.Get("Content-Type"))
	if err != nil {
		sc.result.Err = err
		return stateDone
	}
	sc.result.Title = title
	sc.result.HasTitle = ok

	return stateDone
}

// client returns a client bound to the pool's current proxy, or a direct
// client, and the proxy address it goes through.
func (s *Scanner) client() (Doer, string, error) {
	if s.pool != nil {
		if p, ok := s.pool.Current(); ok {
			client, err := s.clients.Client(&p)
			return client, p.Address(), err
		}
	}
	client, err := s.clients.Client(nil)
	return client, "", err
}
