// Package aggregation implements the sub-threshold trade coalescing
// buffer: activities too small to execute on their own are grouped by
// leader/market/side and flushed, notional-weighted, once their window
// elapses.
package aggregation

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/polycopy/pipeline/internal/domain"
)

// Buffer holds one worker's in-flight aggregations. It belongs entirely
// to Tier B — each worker owns its own Buffer and never shares it.
type Buffer struct {
	mu          sync.Mutex
	trades      map[string]*domain.AggregatedTrade
	minTotalUSD float64
	windowMs    int64
	flushing    atomic.Bool
}

// New creates an empty Buffer. window is the coalescing window; a
// contribution is eligible to flush once windowMs have elapsed since the
// group's first contribution.
func New(minTotalUSD float64, window time.Duration) *Buffer {
	return &Buffer{
		trades:      make(map[string]*domain.AggregatedTrade),
		minTotalUSD: minTotalUSD,
		windowMs:    window.Milliseconds(),
	}
}

// Add records a contribution, starting a new group if one does not
// already exist for a's aggregation key.
func (b *Buffer) Add(a domain.Activity, nowMs int64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	key := a.AggregationKey()
	if t, ok := b.trades[key]; ok {
		t.Add(a, nowMs)
		return
	}
	b.trades[key] = domain.NewAggregatedTrade(key, a, nowMs)
}

// Flush sweeps every group whose window has elapsed, returning a
// synthetic Activity for each that met the minimum notional. Groups that
// did not meet the minimum are dropped and logged, not carried forward.
// A Flush call that overlaps a still-running one is a no-op — the second
// tick's work is picked up by the one already in flight.
func (b *Buffer) Flush(nowMs int64) []domain.Activity {
	if !b.flushing.CompareAndSwap(false, true) {
		return nil
	}
	defer b.flushing.Store(false)

	b.mu.Lock()
	defer b.mu.Unlock()

	var ready []domain.Activity
	for key, t := range b.trades {
		if !t.Ready(nowMs, b.windowMs) {
			continue
		}
		if t.MeetsMinimum(b.minTotalUSD) {
			ready = append(ready, t.Synthesize())
		} else {
			slog.Debug("aggregation: dropping below-minimum group",
				"key", key, "total_usd", t.TotalUSDCSize, "contributions", len(t.Contributions))
		}
		delete(b.trades, key)
	}
	return ready
}

// Len reports the number of groups currently buffered, used by the
// diagnostics reporter.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.trades)
}

// Run ticks Flush every interval until ctx is cancelled, invoking onReady
// for each synthetic activity a flush produces.
func (b *Buffer) Run(ctx context.Context, interval time.Duration, onReady func(domain.Activity)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, a := range b.Flush(time.Now().UnixMilli()) {
				onReady(a)
			}
		}
	}
}
