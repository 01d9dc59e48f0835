package pipeline

import (
	"context"
	"iter"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/nao1215/kirbyscan/internal/scanner"
	"golang.org/x/sync/errgroup"
)

// Scanner scans a single target. *scanner.Scanner implements it.
type Scanner interface {
	Scan(ctx context.Context, target scanner.Target) scanner.Result
}

// Stats summarises a batch.
type Stats struct {
	// Total is the number of targets scanned.
	Total int

	// Succeeded is the number of scans that got a response.
	Succeeded int

	// Failed counts failed scans by kind.
	Failed map[scanner.Kind]int

	// Elapsed is the wall time of the batch.
	Elapsed time.Duration
}

// FailedTotal returns the number of failed scans of any kind.
func (s Stats) FailedTotal() int {
	n := 0
	for _, count := range s.Failed {
		n += count
	}
	return n
}

// record adds r to the stats.
func (s *Stats) record(r scanner.Result) {
	s.Total++
	if r.OK() {
		s.Succeeded++
		return
	}
	s.Failed[r.Kind()]++
}

// BatchProcessor scans many targets with bounded concurrency.
type BatchProcessor struct {
	scanner     Scanner
	concurrency int
	logger      *slog.Logger
}

// BatchOption configures a BatchProcessor.
type BatchOption func(*BatchProcessor)

// WithBatchLogger sets a custom logger for batch processing.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchProcessor) {
		b.logger = logger
	}
}

// WithConcurrency sets the maximum number of concurrent scans.
// The default is the number of CPUs.
func WithConcurrency(n int) BatchOption {
	return func(b *BatchProcessor) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// NewBatchProcessor creates a BatchProcessor that scans with s.
func NewBatchProcessor(s Scanner, opts ...BatchOption) *BatchProcessor {
	bp := &BatchProcessor{
		scanner:     s,
		concurrency: runtime.NumCPU(),
	}

	for _, opt := range opts {
		opt(bp)
	}

	if bp.logger == nil {
		bp.logger = slog.Default()
	}

	return bp
}

// Process scans every target and calls callback once per result. Calls to
// callback are serialised, so it may write to a shared sink without its own
// locking.
//
// Scan failures are counted in the returned Stats and never abort the batch.
// The error is ctx.Err(): non-nil when the batch was cancelled, in which
// case the stats cover only the targets dispatched before that.
func (bp *BatchProcessor) Process(
	ctx context.Context,
	targets iter.Seq[scanner.Target],
	callback func(scanner.Result),
) (Stats, error) {
	bp.logger.Info("starting batch processing", "concurrency", bp.concurrency)

	start := time.Now()
	stats := Stats{Failed: make(map[scanner.Kind]int)}
	var mu sync.Mutex

	// Running scans are not interrupted by cancellation; they are bounded by
	// the request timeout.
	scanCtx := context.WithoutCancel(ctx)

	var g errgroup.Group
	g.SetLimit(bp.concurrency)

	for target := range targets {
		if ctx.Err() != nil {
			break
		}

		g.Go(func() error {
			result := bp.scanner.Scan(scanCtx, target)

			if !result.OK() {
				bp.logger.Debug("scan failed",
					"target", target.String(),
					"kind", result.Kind().String(),
					"error", result.Err,
				)
			}

			mu.Lock()
			defer mu.Unlock()
			stats.record(result)
			if callback != nil {
				callback(result)
			}
			return nil
		})
	}

	_ = g.Wait() //nolint:errcheck // workers never return errors

	stats.Elapsed = time.Since(start)
	bp.logger.Info("batch processing complete",
		"total", stats.Total,
		"succeeded", stats.Succeeded,
		"failed", stats.FailedTotal(),
		"elapsed", stats.Elapsed,
	)

	return stats, ctx.Err()
}

// Targets pairs every address with port and uri.
func Targets(addresses iter.Seq[string], port uint16, uri string) iter.Seq[scanner.Target] {
	return func(yield func(scanner.Target) bool) {
		for addr := range addresses {
			if !yield(scanner.Target{Address: addr, Port: port, URI: uri}) {
				return
			}
		}
	}
}
