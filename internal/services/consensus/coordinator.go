package consensus

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"SigPulse/internal/domain/models"
	domsvc "SigPulse/internal/domain/service"
	enginemetrics "SigPulse/internal/service/metrics"
	applogger "SigPulse/pkg/logger"
)

// CoordinatorConfig bounds the fetch fan-out and its adaptive timeout.
type CoordinatorConfig struct {
	MaxWorkers    int
	BaseTimeout   time.Duration
	TimeoutBuffer time.Duration
	LatencyWindow int
}

// DefaultCoordinatorConfig returns the standard fetch coordination setup.
func DefaultCoordinatorConfig() CoordinatorConfig {
	return CoordinatorConfig{
		MaxWorkers:    4,
		BaseTimeout:   80 * time.Millisecond,
		TimeoutBuffer: 20 * time.Millisecond,
		LatencyWindow: 50,
	}
}

func (c CoordinatorConfig) validate() error {
	if c.MaxWorkers <= 0 {
		return fmt.Errorf("max workers must be positive, got %d", c.MaxWorkers)
	}
	if c.BaseTimeout <= 0 {
		return fmt.Errorf("base timeout must be positive, got %v", c.BaseTimeout)
	}
	return nil
}

// Coordinator fills snapshot cache misses through the injected fetch
// capability with bounded concurrency. All dispatched fetches of one
// evaluation share a single adaptive timeout; a task that outlives it is
// abandoned for that call but may still populate the cache for the next one.
type Coordinator struct {
	cfg     CoordinatorConfig
	cache   *SnapshotCache
	fetcher domsvc.TimeframeFetcher

	mu       sync.Mutex
	lats     []time.Duration
	latIdx   int
	latCount int

	logger *applogger.Logger
}

// NewCoordinator wires the cache and fetch capability together.
func NewCoordinator(cache *SnapshotCache, fetcher domsvc.TimeframeFetcher, cfg CoordinatorConfig) (*Coordinator, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("coordinator config: %w", err)
	}
	if cache == nil || fetcher == nil {
		return nil, fmt.Errorf("coordinator requires cache and fetcher")
	}
	if cfg.TimeoutBuffer <= 0 {
		cfg.TimeoutBuffer = 20 * time.Millisecond
	}
	if cfg.LatencyWindow <= 0 {
		cfg.LatencyWindow = 50
	}
	return &Coordinator{
		cfg:     cfg,
		cache:   cache,
		fetcher: fetcher,
		lats:    make([]time.Duration, cfg.LatencyWindow),
	}, nil
}

// SetLogger attaches a logger for fetch failure reporting.
func (c *Coordinator) SetLogger(l *applogger.Logger) { c.logger = l }

// Cache exposes the underlying snapshot cache (stats endpoint, tests).
func (c *Coordinator) Cache() *SnapshotCache { return c.cache }

type fetchResult struct {
	tf   models.Timeframe
	snap *models.TimeframeSnapshot
}

// EvaluateTimeframes returns the freshest snapshot per requested timeframe,
// fetching whatever the cache cannot serve. Timeframes whose fetch fails or
// exceeds the shared timeout are absent from the result.
func (c *Coordinator) EvaluateTimeframes(ctx context.Context, symbol string, tfs []models.Timeframe) map[models.Timeframe]*models.TimeframeSnapshot {
	out := make(map[models.Timeframe]*models.TimeframeSnapshot, len(tfs))

	var misses []models.Timeframe
	for _, tf := range tfs {
		if snap, ok := c.cache.Get(ctx, symbol, tf); ok {
			out[tf] = snap
		} else {
			misses = append(misses, tf)
		}
	}
	if len(misses) == 0 {
		return out
	}

	timeout := c.AdaptiveTimeout()
	workers := c.cfg.MaxWorkers
	if len(misses) < workers {
		workers = len(misses)
	}

	sem := make(chan struct{}, workers)
	results := make(chan fetchResult, len(misses))
	// Detach fetch lifetimes from the evaluation deadline: an abandoned task
	// keeps running under its own cap and may still warm the cache.
	fetchCtx := context.WithoutCancel(ctx)

	for _, tf := range misses {
		go c.fetchOne(fetchCtx, symbol, tf, 2*timeout+c.cfg.TimeoutBuffer, sem, results)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for pending := len(misses); pending > 0; {
		select {
		case r := <-results:
			pending--
			if r.snap != nil {
				out[r.tf] = r.snap
			}
		case <-timer.C:
			enginemetrics.FetchTimeouts.Inc()
			return out
		case <-ctx.Done():
			return out
		}
	}
	return out
}

func (c *Coordinator) fetchOne(ctx context.Context, symbol string, tf models.Timeframe, limit time.Duration, sem chan struct{}, results chan<- fetchResult) {
	defer func() {
		if r := recover(); r != nil {
			if c.logger != nil {
				c.logger.Error("timeframe fetch panic",
					applogger.String("symbol", symbol),
					applogger.String("timeframe", string(tf)),
					applogger.Any("panic", r),
				)
			}
			results <- fetchResult{tf: tf}
		}
	}()

	sem <- struct{}{}
	defer func() { <-sem }()

	fctx, cancel := context.WithTimeout(ctx, limit)
	defer cancel()

	start := time.Now()
	snap, err := c.fetcher.Fetch(fctx, symbol, tf)
	elapsed := time.Since(start)

	if err != nil || snap == nil {
		enginemetrics.FetchErrors.WithLabelValues(string(tf)).Inc()
		if err != nil && c.logger != nil {
			c.logger.Warn("timeframe fetch failed",
				applogger.String("symbol", symbol),
				applogger.String("timeframe", string(tf)),
				applogger.Error(err),
			)
		}
		results <- fetchResult{tf: tf}
		return
	}

	c.observeLatency(elapsed)
	enginemetrics.FetchLatency.WithLabelValues(string(tf)).Observe(elapsed.Seconds())
	c.cache.Put(ctx, snap)
	results <- fetchResult{tf: tf, snap: snap}
}

func (c *Coordinator) observeLatency(d time.Duration) {
	c.mu.Lock()
	c.lats[c.latIdx] = d
	c.latIdx = (c.latIdx + 1) % len(c.lats)
	if c.latCount < len(c.lats) {
		c.latCount++
	}
	c.mu.Unlock()
}

// AdaptiveTimeout derives the shared evaluation timeout from observed fetch
// latencies: p95 of the recent window plus a fixed buffer, capped at twice
// the base timeout. With no history it falls back to the base timeout.
func (c *Coordinator) AdaptiveTimeout() time.Duration {
	c.mu.Lock()
	n := c.latCount
	sample := make([]time.Duration, n)
	copy(sample, c.lats[:n])
	c.mu.Unlock()

	if n == 0 {
		return c.cfg.BaseTimeout
	}
	sort.Slice(sample, func(i, j int) bool { return sample[i] < sample[j] })
	idx := (n * 95) / 100
	if idx >= n {
		idx = n - 1
	}
	timeout := sample[idx] + c.cfg.TimeoutBuffer
	if max := 2 * c.cfg.BaseTimeout; timeout > max {
		return max
	}
	return timeout
}
