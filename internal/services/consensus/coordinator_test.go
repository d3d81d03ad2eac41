package consensus

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"SigPulse/internal/domain/models"
	domsvc "SigPulse/internal/domain/service"
)

func mustCoordinator(t *testing.T, fetcher domsvc.TimeframeFetcher, cfg CoordinatorConfig) *Coordinator {
	t.Helper()
	c, err := NewCoordinator(NewSnapshotCache(nil, 0), fetcher, cfg)
	if err != nil {
		t.Fatalf("NewCoordinator: %v", err)
	}
	return c
}

func countingFetcher(calls *atomic.Int64) domsvc.TimeframeFetcherFunc {
	return func(ctx context.Context, symbol string, tf models.Timeframe) (*models.TimeframeSnapshot, error) {
		calls.Add(1)
		return &models.TimeframeSnapshot{
			Symbol:     symbol,
			Timeframe:  tf,
			Direction:  models.TrendBullish,
			Strength:   0.7,
			Confidence: 0.9,
			FetchedAt:  time.Now(),
		}, nil
	}
}

var allTimeframes = []models.Timeframe{models.TF15m, models.TF1h, models.TF1d}

func TestCoordinatorFetchesOncePerTTL(t *testing.T) {
	var calls atomic.Int64
	c := mustCoordinator(t, countingFetcher(&calls), DefaultCoordinatorConfig())
	ctx := context.Background()

	out := c.EvaluateTimeframes(ctx, "BTCUSDT", allTimeframes)
	if len(out) != 3 {
		t.Fatalf("expected 3 snapshots, got %d", len(out))
	}
	if calls.Load() != 3 {
		t.Fatalf("expected 3 fetches, got %d", calls.Load())
	}

	// Within TTL the cache serves every timeframe; no further fetches.
	out = c.EvaluateTimeframes(ctx, "BTCUSDT", allTimeframes)
	if len(out) != 3 {
		t.Fatalf("expected 3 cached snapshots, got %d", len(out))
	}
	if calls.Load() != 3 {
		t.Fatalf("cached evaluation must not refetch, calls = %d", calls.Load())
	}
}

func TestCoordinatorDistinctSymbolsFetchSeparately(t *testing.T) {
	var calls atomic.Int64
	c := mustCoordinator(t, countingFetcher(&calls), DefaultCoordinatorConfig())
	ctx := context.Background()

	c.EvaluateTimeframes(ctx, "BTCUSDT", allTimeframes)
	c.EvaluateTimeframes(ctx, "ETHUSDT", allTimeframes)
	if calls.Load() != 6 {
		t.Fatalf("expected 6 fetches across two symbols, got %d", calls.Load())
	}
}

func TestCoordinatorFailedFetchAbsent(t *testing.T) {
	fetcher := domsvc.TimeframeFetcherFunc(func(ctx context.Context, symbol string, tf models.Timeframe) (*models.TimeframeSnapshot, error) {
		if tf == models.TF1h {
			return nil, errors.New("upstream unavailable")
		}
		return &models.TimeframeSnapshot{
			Symbol: symbol, Timeframe: tf,
			Direction: models.TrendBullish, Confidence: 0.9,
			FetchedAt: time.Now(),
		}, nil
	})
	c := mustCoordinator(t, fetcher, DefaultCoordinatorConfig())

	out := c.EvaluateTimeframes(context.Background(), "BTCUSDT", allTimeframes)
	if _, ok := out[models.TF1h]; ok {
		t.Fatalf("failed timeframe must be absent from the result")
	}
	if len(out) != 2 {
		t.Fatalf("expected the 2 healthy timeframes, got %d", len(out))
	}
}

func TestCoordinatorTimeoutSkipsSlowFetch(t *testing.T) {
	cfg := CoordinatorConfig{
		MaxWorkers:    4,
		BaseTimeout:   30 * time.Millisecond,
		TimeoutBuffer: 10 * time.Millisecond,
		LatencyWindow: 50,
	}
	fetcher := domsvc.TimeframeFetcherFunc(func(ctx context.Context, symbol string, tf models.Timeframe) (*models.TimeframeSnapshot, error) {
		if tf == models.TF1d {
			<-ctx.Done()
			return nil, ctx.Err()
		}
		return &models.TimeframeSnapshot{
			Symbol: symbol, Timeframe: tf,
			Direction: models.TrendBullish, Confidence: 0.9,
			FetchedAt: time.Now(),
		}, nil
	})
	c := mustCoordinator(t, fetcher, cfg)

	out := c.EvaluateTimeframes(context.Background(), "BTCUSDT", allTimeframes)
	if _, ok := out[models.TF1d]; ok {
		t.Fatalf("slow timeframe must be skipped after the shared timeout")
	}
	if _, ok := out[models.TF15m]; !ok {
		t.Fatalf("fast timeframes should still be returned")
	}
	if _, ok := out[models.TF1h]; !ok {
		t.Fatalf("fast timeframes should still be returned")
	}
}

func TestCoordinatorAbandonedFetchWarmsCache(t *testing.T) {
	cfg := CoordinatorConfig{
		MaxWorkers:    4,
		BaseTimeout:   25 * time.Millisecond,
		TimeoutBuffer: 50 * time.Millisecond,
		LatencyWindow: 50,
	}
	fetcher := domsvc.TimeframeFetcherFunc(func(ctx context.Context, symbol string, tf models.Timeframe) (*models.TimeframeSnapshot, error) {
		// Slower than the evaluation timeout, faster than the per-task cap.
		select {
		case <-time.After(50 * time.Millisecond):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		return &models.TimeframeSnapshot{
			Symbol: symbol, Timeframe: tf,
			Direction: models.TrendBullish, Confidence: 0.9,
			FetchedAt: time.Now(),
		}, nil
	})
	c := mustCoordinator(t, fetcher, cfg)
	ctx := context.Background()

	out := c.EvaluateTimeframes(ctx, "BTCUSDT", []models.Timeframe{models.TF1h})
	if len(out) != 0 {
		t.Fatalf("first evaluation should time out empty, got %d", len(out))
	}

	// The abandoned task keeps running and populates the cache.
	deadline := time.Now().Add(500 * time.Millisecond)
	for {
		if _, ok := c.Cache().Get(ctx, "BTCUSDT", models.TF1h); ok {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("abandoned fetch never warmed the cache")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestAdaptiveTimeoutFallsBackToBase(t *testing.T) {
	var calls atomic.Int64
	c := mustCoordinator(t, countingFetcher(&calls), DefaultCoordinatorConfig())
	if got := c.AdaptiveTimeout(); got != 80*time.Millisecond {
		t.Fatalf("no history should fall back to base timeout, got %v", got)
	}
}

func TestAdaptiveTimeoutTracksP95(t *testing.T) {
	var calls atomic.Int64
	c := mustCoordinator(t, countingFetcher(&calls), DefaultCoordinatorConfig())

	// 49 fast fetches and one outlier: p95 sits in the fast cluster.
	for i := 0; i < 49; i++ {
		c.observeLatency(10 * time.Millisecond)
	}
	c.observeLatency(500 * time.Millisecond)

	if got := c.AdaptiveTimeout(); got != 30*time.Millisecond {
		t.Fatalf("timeout = %v, want p95 10ms + 20ms buffer", got)
	}
}

func TestAdaptiveTimeoutCapped(t *testing.T) {
	var calls atomic.Int64
	c := mustCoordinator(t, countingFetcher(&calls), DefaultCoordinatorConfig())

	for i := 0; i < 50; i++ {
		c.observeLatency(time.Second)
	}
	if got := c.AdaptiveTimeout(); got != 160*time.Millisecond {
		t.Fatalf("timeout = %v, want cap at twice the base", got)
	}
}

func TestNewCoordinatorRejectsBadConfig(t *testing.T) {
	cache := NewSnapshotCache(nil, 0)
	fetcher := countingFetcher(&atomic.Int64{})

	if _, err := NewCoordinator(cache, fetcher, CoordinatorConfig{MaxWorkers: 0, BaseTimeout: time.Second}); err == nil {
		t.Fatalf("expected error for zero workers")
	}
	if _, err := NewCoordinator(cache, fetcher, CoordinatorConfig{MaxWorkers: 2}); err == nil {
		t.Fatalf("expected error for zero base timeout")
	}
	if _, err := NewCoordinator(nil, fetcher, DefaultCoordinatorConfig()); err == nil {
		t.Fatalf("expected error for nil cache")
	}
}
