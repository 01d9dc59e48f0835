package proxy

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// none marks the absence of a current proxy.
const none = -1

// Selector picks the next current proxy from the active candidates, which
// are given in configuration order. It returns an index into candidates, or
// a negative number to select nothing. It is only called with at least one
// candidate.
type Selector func(candidates []Proxy) int

// SelectLast selects the last active proxy. It is the default policy and
// keeps proxy selection deterministic for a given configuration order.
func SelectLast(candidates []Proxy) int {
	return len(candidates) - 1
}

// SelectFirst selects the first active proxy.
func SelectFirst(_ []Proxy) int {
	return 0
}

// ProbeResult is the liveness status of a configured proxy, recorded when the
// Manager was built.
type ProbeResult struct {
	Proxy  Proxy
	Status Status
}

// entry is one configured proxy and whether it is still usable.
type entry struct {
	proxy  Proxy
	status Status
	active bool
}

// Manager owns the proxy pool and tracks which proxy new scans should use.
// It is safe for concurrent use.
type Manager struct {
	mu sync.RWMutex

	// entries holds every configured proxy in configuration order. The slice
	// itself never changes after construction; only active flags flip from
	// true to false.
	entries []entry

	// current indexes entries, or is none. When it is not none,
	// entries[current].active is true.
	current int

	selector    Selector
	prober      Prober
	parallelism int
	logger      *slog.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithSelector overrides the selection policy (default SelectLast).
func WithSelector(s Selector) Option {
	return func(m *Manager) {
		if s != nil {
			m.selector = s
		}
	}
}

// WithProber overrides the liveness probe (default TCPProber).
func WithProber(p Prober) Option {
	return func(m *Manager) {
		if p != nil {
			m.prober = p
		}
	}
}

// WithProbeParallelism limits how many proxies are probed at once during
// construction. Default is 16.
func WithProbeParallelism(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.parallelism = n
		}
	}
}

// WithLogger sets the logger used to report pool changes.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// NewManager probes every proxy and returns a Manager whose active pool holds
// the reachable ones. It blocks until all probes have finished; each probe is
// bounded by timeout. If no proxy is reachable the Manager has no current
// proxy and callers connect directly.
func NewManager(ctx context.Context, proxies []Proxy, timeout time.Duration, opts ...Option) *Manager {
	m := &Manager{
		entries:     make([]entry, len(proxies)),
		current:     none,
		selector:    SelectLast,
		prober:      TCPProber{},
		parallelism: 16,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.parallelism)
	for i, p := range proxies {
		g.Go(func() error {
			status := m.prober.Probe(gctx, p, timeout)
			// Each goroutine owns entries[i]; no lock needed before Wait.
			m.entries[i] = entry{proxy: p, status: status, active: status == StatusAlive}
			m.logger.Debug("proxy probed", "proxy", p.Address(), "status", status.String())
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // probes never return errors

	m.current = m.selectLocked()
	if m.current == none {
		m.logger.Warn("no reachable proxy, scanning directly", "configured", len(proxies))
	} else {
		m.logger.Info("proxy pool ready",
			"configured", len(proxies),
			"active", m.activeCountLocked(),
			"current", m.entries[m.current].proxy.Address(),
		)
	}

	return m
}

// Current returns a copy of the proxy new scans should use. The boolean is
// false when no proxy is left.
func (m *Manager) Current() (Proxy, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.current == none {
		return Proxy{}, false
	}
	return m.entries[m.current].proxy, true
}

// DiscardCurrent removes the current proxy from the active pool and selects
// a replacement with the selection policy. When the pool becomes empty there
// is no current proxy afterwards. It does nothing if there is no current
// proxy.
func (m *Manager) DiscardCurrent() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == none {
		return
	}

	discarded := m.entries[m.current].proxy
	m.entries[m.current].active = false
	m.current = m.selectLocked()

	if m.current == none {
		m.logger.Warn("proxy discarded, pool exhausted; falling back to direct connections",
			"proxy", discarded.Address())
		return
	}
	m.logger.Info("proxy discarded",
		"proxy", discarded.Address(),
		"next", m.entries[m.current].proxy.Address(),
		"remaining", m.activeCountLocked(),
	)
}

// Active returns the active proxies in configuration order.
func (m *Manager) Active() []Proxy {
	m.mu.RLock()
	defer m.mu.RUnlock()

	active, _ := m.activeLocked()
	return active
}

// All returns every configured proxy in configuration order.
func (m *Manager) All() []Proxy {
	m.mu.RLock()
	defer m.mu.RUnlock()

	all := make([]Proxy, len(m.entries))
	for i, e := range m.entries {
		all[i] = e.proxy
	}
	return all
}

// Statuses returns the probe result of every configured proxy.
func (m *Manager) Statuses() []ProbeResult {
	m.mu.RLock()
	defer m.mu.RUnlock()

	results := make([]ProbeResult, len(m.entries))
	for i, e := range m.entries {
		results[i] = ProbeResult{Proxy: e.proxy, Status: e.status}
	}
	return results
}

// selectLocked applies the selector to the active entries and returns an
// index into entries. The caller must hold the write lock, or be the
// constructor.
func (m *Manager) selectLocked() int {
	candidates, positions := m.activeLocked()
	if len(candidates) == 0 {
		return none
	}

	i := m.selector(candidates)
	if i < 0 || i >= len(candidates) {
		return none
	}
	return positions[i]
}

// activeLocked returns the active proxies and, for each, its index in entries.
func (m *Manager) activeLocked() ([]Proxy, []int) {
	candidates := make([]Proxy, 0, len(m.entries))
	positions := make([]int, 0, len(m.entries))
	for i, e := range m.entries {
		if e.active {
			candidates = append(candidates, e.proxy)
			positions = append(positions, i)
		}
	}
	return candidates, positions
}

func (m *Manager) activeCountLocked() int {
	n := 0
	for _, e := range m.entries {
		if e.active {
			n++
		}
	}
	return n
}
