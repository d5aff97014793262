// Package monitor implements the leader-activity poller: it polls the
// configured leader addresses on a fixed cadence, drops stale and
// duplicate activities, and publishes the rest to the Activity
// Distributor.
package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/polycopy/pipeline/internal/dedup"
	"github.com/polycopy/pipeline/internal/distributor"
	"github.com/polycopy/pipeline/internal/domain"
	"github.com/polycopy/pipeline/internal/ports"
)

// positionCacheTTL is how long a leader's cached positions are trusted
// before the next best-effort refresh.
const positionCacheTTL = 60 * time.Second

// Config controls a single Monitor's poll cadence and staleness window.
type Config struct {
	UserAddresses []string
	FetchInterval time.Duration
	TooOld        time.Duration
	DedupCacheTTL time.Duration
	DedupCacheMax int
	RatePerSecond float64 // per-address throttle; <= 0 uses 2 per second
}

// Monitor polls a fixed set of leader addresses and feeds accepted
// activities into a Distributor. It owns the dedup cache and an optional
// best-effort position cache; everything it touches lives on Tier A.
type Monitor struct {
	cfg       Config
	feed      ports.ActivityFeedClient
	positions ports.PositionsClient // optional; nil disables the position cache
	cache     *dedup.Cache
	dist      *distributor.Distributor

	limiters map[string]*rate.Limiter

	posMu        sync.Mutex
	posCache     map[string][]ports.Position
	posFetchedAt map[string]time.Time
}

// New builds a Monitor. positions may be nil if no position cache is
// wanted; feed and dist are required.
func New(cfg Config, feed ports.ActivityFeedClient, positions ports.PositionsClient, dist *distributor.Distributor) *Monitor {
	limiters := make(map[string]*rate.Limiter, len(cfg.UserAddresses))
	perSec := cfg.RatePerSecond
	if perSec <= 0 {
		perSec = 2
	}
	for _, addr := range cfg.UserAddresses {
		limiters[addr] = rate.NewLimiter(rate.Limit(perSec), 1)
	}

	return &Monitor{
		cfg:          cfg,
		feed:         feed,
		positions:    positions,
		cache:        dedup.New(cfg.DedupCacheTTL, cfg.DedupCacheMax),
		dist:         dist,
		limiters:     limiters,
		posCache:     make(map[string][]ports.Position),
		posFetchedAt: make(map[string]time.Time),
	}
}

// Run polls every address once, then every cfg.FetchInterval, until ctx is
// cancelled.
func (m *Monitor) Run(ctx context.Context) error {
	slog.Info("monitor starting", "addresses", len(m.cfg.UserAddresses), "interval", m.cfg.FetchInterval)

	m.runCycle(ctx)

	ticker := time.NewTicker(m.cfg.FetchInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("monitor stopped")
			return nil
		case <-ticker.C:
			m.runCycle(ctx)
		}
	}
}

// runCycle polls every configured address once. A single address's
// failure never stops the others.
func (m *Monitor) runCycle(ctx context.Context) {
	for _, addr := range m.cfg.UserAddresses {
		if err := m.pollAddress(ctx, addr); err != nil {
			slog.Warn("monitor: poll failed", "address", addr, "err", err)
		}
		m.refreshPositions(ctx, addr)
	}
}

// pollAddress fetches one address's recent activity, then filters, dedups,
// and publishes each accepted entry.
func (m *Monitor) pollAddress(ctx context.Context, addr string) error {
	if limiter, ok := m.limiters[addr]; ok {
		if err := limiter.Wait(ctx); err != nil {
			return fmt.Errorf("monitor.pollAddress: rate limiter: %w", err)
		}
	}

	activities, err := m.feed.FetchActivity(ctx, addr)
	if err != nil {
		return fmt.Errorf("monitor.pollAddress: fetch %s: %w", addr, err)
	}

	now := time.Now().UnixMilli()
	for _, a := range activities {
		m.handleActivity(a, now)
	}
	return nil
}

// handleActivity applies the age filter and dedup check and, if the
// activity survives both, publishes it.
func (m *Monitor) handleActivity(a domain.Activity, nowMs int64) {
	if m.cfg.TooOld > 0 && nowMs-a.TimestampMs > m.cfg.TooOld.Milliseconds() {
		slog.Debug("monitor: dropping stale activity", "tx", a.TransactionHash, "age_ms", nowMs-a.TimestampMs)
		return
	}

	if !m.cache.CheckAndRemember(a.DedupKey()) {
		slog.Debug("monitor: dropping duplicate activity", "tx", a.TransactionHash)
		return
	}

	qa := domain.QueueActivity{Activity: a, DetectedAtMs: nowMs}
	if err := m.dist.Publish(qa); err != nil {
		slog.Warn("monitor: publish failed", "tx", a.TransactionHash, "err", err)
	}
}

// refreshPositions is a best-effort cache refresh, run inline after each
// address's poll: a failed fetch is logged and leaves the previous
// snapshot in place, and an unchanged snapshot does not log anything new.
func (m *Monitor) refreshPositions(ctx context.Context, addr string) {
	if m.positions == nil {
		return
	}

	m.posMu.Lock()
	last := m.posFetchedAt[addr]
	m.posMu.Unlock()
	if time.Since(last) < positionCacheTTL {
		return
	}

	fresh, err := m.positions.FetchPositions(ctx, addr)
	if err != nil {
		slog.Debug("monitor: position cache refresh failed", "address", addr, "err", err)
		return
	}

	m.posMu.Lock()
	defer m.posMu.Unlock()
	changed := !reflect.DeepEqual(m.posCache[addr], fresh)
	m.posCache[addr] = fresh
	m.posFetchedAt[addr] = time.Now()
	if changed {
		slog.Debug("monitor: position cache updated", "address", addr, "positions", len(fresh))
	}
}

// LeaderPositions returns the last cached snapshot for addr, or nil if
// none has been fetched yet.
func (m *Monitor) LeaderPositions(addr string) []ports.Position {
	m.posMu.Lock()
	defer m.posMu.Unlock()
	return m.posCache[addr]
}

// CacheSize reports the dedup cache's current entry count, used by the
// diagnostics reporter.
func (m *Monitor) CacheSize() int {
	return m.cache.Size()
}
