package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nao1215/kirbyscan/internal/scanner"
)

// mockScanner scans by calling scanFunc, or succeeds immediately.
type mockScanner struct {
	scanFunc func(ctx context.Context, target scanner.Target) scanner.Result
}

func (m *mockScanner) Scan(ctx context.Context, target scanner.Target) scanner.Result {
	if m.scanFunc != nil {
		return m.scanFunc(ctx, target)
	}
	return scanner.Result{Target: target, StatusCode: 200, Attempts: 1}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// addresses yields n addresses of 192.0.2.0/24.
func addresses(n int) func(yield func(string) bool) {
	return func(yield func(string) bool) {
		for i := range n {
			if !yield(fmt.Sprintf("192.0.2.%d", i)) {
				return
			}
		}
	}
}

func TestNewBatchProcessor(t *testing.T) {
	t.Parallel()

	t.Run("applies WithConcurrency option", func(t *testing.T) {
		t.Parallel()

		bp := NewBatchProcessor(&mockScanner{}, WithConcurrency(5))
		if bp.concurrency != 5 {
			t.Errorf("expected concurrency 5, got %d", bp.concurrency)
		}
	})

	t.Run("ignores non-positive concurrency", func(t *testing.T) {
		t.Parallel()

		bp := NewBatchProcessor(&mockScanner{}, WithConcurrency(0))
		if bp.concurrency < 1 {
			t.Errorf("expected positive default concurrency, got %d", bp.concurrency)
		}
	})

	t.Run("nil logger falls back to default", func(t *testing.T) {
		t.Parallel()

		bp := NewBatchProcessor(&mockScanner{}, WithBatchLogger(nil))
		if bp.logger == nil {
			t.Error("expected non-nil logger")
		}
	})
}

func TestBatchProcessorProcess(t *testing.T) {
	t.Parallel()

	t.Run("scans every target once", func(t *testing.T) {
		t.Parallel()

		var mu sync.Mutex
		seen := make(map[string]int)

		bp := NewBatchProcessor(&mockScanner{}, WithConcurrency(4), WithBatchLogger(quietLogger()))
		stats, err := bp.Process(context.Background(), Targets(addresses(20), 80, "/"),
			func(r scanner.Result) {
				mu.Lock()
				seen[r.Target.Address]++
				mu.Unlock()
			})

		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if stats.Total != 20 || stats.Succeeded != 20 {
			t.Errorf("expected 20 total and succeeded, got %+v", stats)
		}
		if len(seen) != 20 {
			t.Errorf("expected 20 distinct targets, got %d", len(seen))
		}
		for addr, n := range seen {
			if n != 1 {
				t.Errorf("%s scanned %d times", addr, n)
			}
		}
	})

	t.Run("respects concurrency limit", func(t *testing.T) {
		t.Parallel()

		var current, maxSeen atomic.Int32
		s := &mockScanner{scanFunc: func(_ context.Context, target scanner.Target) scanner.Result {
			n := current.Add(1)
			for {
				old := maxSeen.Load()
				if n <= old || maxSeen.CompareAndSwap(old, n) {
					break
				}
			}
			time.Sleep(20 * time.Millisecond)
			current.Add(-1)
			return scanner.Result{Target: target, StatusCode: 200}
		}}

		bp := NewBatchProcessor(s, WithConcurrency(3), WithBatchLogger(quietLogger()))
		if _, err := bp.Process(context.Background(), Targets(addresses(15), 80, "/"), nil); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if maxSeen.Load() > 3 {
			t.Errorf("max concurrent was %d, expected <= 3", maxSeen.Load())
		}
	})

	t.Run("callback calls are serialised", func(t *testing.T) {
		t.Parallel()

		var inside atomic.Int32
		var overlapped atomic.Bool

		bp := NewBatchProcessor(&mockScanner{}, WithConcurrency(8), WithBatchLogger(quietLogger()))
		_, err := bp.Process(context.Background(), Targets(addresses(50), 80, "/"),
			func(scanner.Result) {
				if inside.Add(1) > 1 {
					overlapped.Store(true)
				}
				time.Sleep(time.Millisecond)
				inside.Add(-1)
			})

		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if overlapped.Load() {
			t.Error("callback was entered concurrently")
		}
	})

	t.Run("failures are counted by kind and do not stop the batch", func(t *testing.T) {
		t.Parallel()

		s := &mockScanner{scanFunc: func(_ context.Context, target scanner.Target) scanner.Result {
			switch target.Address {
			case "192.0.2.1":
				return scanner.Result{Target: target, Err: fmt.Errorf("%w: refused", scanner.ErrRequest)}
			case "192.0.2.2":
				return scanner.Result{Target: target, Err: fmt.Errorf("%w: reset", scanner.ErrResponseBody)}
			case "192.0.2.3":
				return scanner.Result{Target: target, Err: fmt.Errorf("%w: timeout", scanner.ErrRequest)}
			}
			return scanner.Result{Target: target, StatusCode: 200}
		}}

		bp := NewBatchProcessor(s, WithConcurrency(2), WithBatchLogger(quietLogger()))
		stats, err := bp.Process(context.Background(), Targets(addresses(6), 80, "/"), nil)

		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if stats.Total != 6 {
			t.Errorf("expected 6 total, got %d", stats.Total)
		}
		if stats.Succeeded != 3 {
			t.Errorf("expected 3 succeeded, got %d", stats.Succeeded)
		}
		if stats.Failed[scanner.KindRequest] != 2 {
			t.Errorf("expected 2 request errors, got %d", stats.Failed[scanner.KindRequest])
		}
		if stats.Failed[scanner.KindResponseBody] != 1 {
			t.Errorf("expected 1 body error, got %d", stats.Failed[scanner.KindResponseBody])
		}
		if stats.FailedTotal() != 3 {
			t.Errorf("expected 3 failures, got %d", stats.FailedTotal())
		}
	})

	t.Run("cancellation stops dispatch", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		var started atomic.Int32

		s := &mockScanner{scanFunc: func(ctx context.Context, target scanner.Target) scanner.Result {
			started.Add(1)
			time.Sleep(30 * time.Millisecond)
			if ctx.Err() != nil {
				return scanner.Result{Target: target, Err: ctx.Err()}
			}
			return scanner.Result{Target: target, StatusCode: 200}
		}}

		go func() {
			time.Sleep(50 * time.Millisecond)
			cancel()
		}()

		bp := NewBatchProcessor(s, WithConcurrency(2), WithBatchLogger(quietLogger()))
		stats, err := bp.Process(ctx, Targets(addresses(100), 80, "/"), nil)

		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
		if started.Load() >= 100 {
			t.Error("expected some targets not to be dispatched")
		}
		if stats.Succeeded != stats.Total {
			t.Errorf("running scans should complete: %d of %d succeeded", stats.Succeeded, stats.Total)
		}
	})
}

func TestTargets(t *testing.T) {
	t.Parallel()

	got := slices.Collect(Targets(addresses(3), 8080, "/admin"))
	if len(got) != 3 {
		t.Fatalf("expected 3 targets, got %d", len(got))
	}
	for i, target := range got {
		expected := scanner.Target{Address: fmt.Sprintf("192.0.2.%d", i), Port: 8080, URI: "/admin"}
		if target != expected {
			t.Errorf("target %d = %+v, expected %+v", i, target, expected)
		}
	}
}
