package consensus

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"SigPulse/internal/domain/models"
	enginemetrics "SigPulse/internal/service/metrics"
	"SigPulse/pkg/cache"
)

type cacheEntry struct {
	snap *models.TimeframeSnapshot
	exp  time.Time
}

// SnapshotCache is a TTL store of trend snapshots keyed by (symbol, timeframe).
// Snapshots are immutable; a refresh replaces the entry atomically, so a
// reader holding a snapshot never observes mutation. Expired entries are
// evicted lazily on read.
type SnapshotCache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry

	ttls       map[models.Timeframe]time.Duration
	defaultTTL time.Duration

	hits    atomic.Int64
	misses  atomic.Int64
	expired atomic.Int64

	// Optional shared L2 so multiple instances reuse fetched snapshots.
	l2 cache.Service
}

// NewSnapshotCache creates the cache with per-timeframe TTLs. A nil ttls map
// falls back to the standard per-timeframe durations.
func NewSnapshotCache(ttls map[models.Timeframe]time.Duration, defaultTTL time.Duration) *SnapshotCache {
	if ttls == nil {
		ttls = models.DefaultTTLs()
	}
	if defaultTTL <= 0 {
		defaultTTL = models.DefaultSnapshotTTL
	}
	return &SnapshotCache{
		entries:    make(map[string]cacheEntry),
		ttls:       ttls,
		defaultTTL: defaultTTL,
	}
}

// SetL2 attaches a shared cache layer (e.g. Redis) consulted on local misses.
func (c *SnapshotCache) SetL2(svc cache.Service) { c.l2 = svc }

// TTL returns the validity duration for a timeframe.
func (c *SnapshotCache) TTL(tf models.Timeframe) time.Duration {
	if ttl, ok := c.ttls[tf]; ok {
		return ttl
	}
	return c.defaultTTL
}

// Get returns the snapshot for (symbol, tf) if it is still within TTL.
func (c *SnapshotCache) Get(ctx context.Context, symbol string, tf models.Timeframe) (*models.TimeframeSnapshot, bool) {
	key := snapshotKey(symbol, tf)

	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	now := time.Now()
	if ok {
		if now.Before(e.exp) {
			c.hits.Add(1)
			enginemetrics.CacheEvents.WithLabelValues("hit").Inc()
			return e.snap, true
		}
		c.mu.Lock()
		// Re-check: a concurrent Put may have refreshed the entry.
		if cur, still := c.entries[key]; still && !now.Before(cur.exp) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		c.expired.Add(1)
		enginemetrics.CacheEvents.WithLabelValues("expired").Inc()
		return nil, false
	}

	if snap, ok := c.l2Get(ctx, key, now); ok {
		c.hits.Add(1)
		enginemetrics.CacheEvents.WithLabelValues("l2_hit").Inc()
		return snap, true
	}

	c.misses.Add(1)
	enginemetrics.CacheEvents.WithLabelValues("miss").Inc()
	return nil, false
}

// Put stores a freshly fetched snapshot, replacing any previous entry.
func (c *SnapshotCache) Put(ctx context.Context, snap *models.TimeframeSnapshot) {
	if snap == nil {
		return
	}
	key := snapshotKey(snap.Symbol, snap.Timeframe)
	ttl := c.TTL(snap.Timeframe)
	e := cacheEntry{snap: snap, exp: snap.FetchedAt.Add(ttl)}

	c.mu.Lock()
	c.entries[key] = e
	c.mu.Unlock()

	if c.l2 != nil {
		// Best effort; the local entry is authoritative.
		_ = c.l2.Set(ctx, key, snap, ttl)
	}
}

// Invalidate drops all cached timeframes for a symbol.
func (c *SnapshotCache) Invalidate(ctx context.Context, symbol string) {
	c.mu.Lock()
	for _, tf := range []models.Timeframe{models.TF15m, models.TF1h, models.TF4h, models.TF1d} {
		delete(c.entries, snapshotKey(symbol, tf))
	}
	c.mu.Unlock()
	if c.l2 != nil {
		_ = c.l2.DeleteByPattern(ctx, fmt.Sprintf("consensus:%s:*", symbol))
	}
}

// Stats returns effectiveness counters and the live entry count.
func (c *SnapshotCache) Stats() models.CacheStats {
	c.mu.RLock()
	entries := len(c.entries)
	c.mu.RUnlock()
	return models.CacheStats{
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
		Expired: c.expired.Load(),
		Entries: entries,
	}
}

func (c *SnapshotCache) l2Get(ctx context.Context, key string, now time.Time) (*models.TimeframeSnapshot, bool) {
	if c.l2 == nil {
		return nil, false
	}
	var snap models.TimeframeSnapshot
	if err := c.l2.Get(ctx, key, &snap); err != nil {
		return nil, false
	}
	if now.Sub(snap.FetchedAt) > c.TTL(snap.Timeframe) {
		return nil, false
	}
	c.mu.Lock()
	c.entries[key] = cacheEntry{snap: &snap, exp: snap.FetchedAt.Add(c.TTL(snap.Timeframe))}
	c.mu.Unlock()
	return &snap, true
}

func snapshotKey(symbol string, tf models.Timeframe) string {
	return fmt.Sprintf("consensus:%s:%s", symbol, tf)
}
