package usecase

import (
	"context"
	"errors"
	"math"
	"sync/atomic"
	"testing"
	"time"

	"SigPulse/internal/domain/models"
	domsvc "SigPulse/internal/domain/service"
	"SigPulse/internal/services/consensus"
	"SigPulse/internal/services/indicator"
	"SigPulse/internal/services/volume"
)

var testTimeframes = []models.Timeframe{models.TF15m, models.TF1h, models.TF1d}

func bullishFetcher(calls *atomic.Int64) domsvc.TimeframeFetcherFunc {
	return func(ctx context.Context, symbol string, tf models.Timeframe) (*models.TimeframeSnapshot, error) {
		if calls != nil {
			calls.Add(1)
		}
		return &models.TimeframeSnapshot{
			Symbol:     symbol,
			Timeframe:  tf,
			Direction:  models.TrendBullish,
			Strength:   0.9,
			Confidence: 1.0,
			FetchedAt:  time.Now(),
		}, nil
	}
}

func newTestPipeline(t *testing.T, fetcher domsvc.TimeframeFetcher, requireVolume bool) *SignalPipeline {
	t.Helper()

	indCfg := indicator.DefaultConfig()
	indCfg.CheckMode = indicator.CheckOff

	cache := consensus.NewSnapshotCache(nil, 0)
	coord, err := consensus.NewCoordinator(cache, fetcher, consensus.DefaultCoordinatorConfig())
	if err != nil {
		t.Fatalf("NewCoordinator: %v", err)
	}
	scorer, err := consensus.NewScorer(consensus.DefaultScorerConfig())
	if err != nil {
		t.Fatalf("NewScorer: %v", err)
	}

	p, err := NewSignalPipeline(indCfg, volume.DefaultConfig(), coord, scorer, PipelineConfig{
		Timeframes:                testTimeframes,
		RequireVolumeConfirmation: requireVolume,
	})
	if err != nil {
		t.Fatalf("NewSignalPipeline: %v", err)
	}
	return p
}

// warmSymbol feeds enough ticks for the stochastic window to fill.
func warmSymbol(t *testing.T, p *SignalPipeline, symbol string, n int, vol float64) {
	t.Helper()
	ctx := context.Background()
	base := time.Now().Add(-time.Duration(n) * time.Second)
	for i := 0; i < n; i++ {
		tick := &models.Tick{
			Symbol:    symbol,
			Price:     100 + 5*math.Sin(float64(i)/3),
			Volume:    vol,
			Timestamp: base.Add(time.Duration(i) * time.Second),
		}
		if _, _, err := p.OnTick(ctx, tick); err != nil {
			t.Fatalf("OnTick %d: %v", i, err)
		}
	}
}

func TestPipelineStateProgression(t *testing.T) {
	p := newTestPipeline(t, bullishFetcher(nil), false)

	if got := p.State("BTCUSDT"); got != StateIdle {
		t.Fatalf("state before ticks = %v, want idle", got)
	}

	warmSymbol(t, p, "BTCUSDT", 5, 100)
	if got := p.State("BTCUSDT"); got != StateWarmingUp {
		t.Fatalf("state after 5 ticks = %v, want warming_up", got)
	}

	warmSymbol(t, p, "BTCUSDT", 40, 100)
	if got := p.State("BTCUSDT"); got != StateReady {
		t.Fatalf("state after warmup = %v, want ready", got)
	}

	snap, vm, ok := p.Indicators("BTCUSDT")
	if !ok || snap == nil || !snap.StochReady {
		t.Fatalf("expected ready snapshot, got %+v ok=%v", snap, ok)
	}
	if vm.SampleCount == 0 || vm.AvgVolume == 0 {
		t.Fatalf("expected volume metrics, got %+v", vm)
	}
}

func TestOnTickRejectsInvalid(t *testing.T) {
	p := newTestPipeline(t, bullishFetcher(nil), false)
	ctx := context.Background()

	if _, _, err := p.OnTick(ctx, nil); err == nil {
		t.Fatalf("expected error for nil tick")
	}
	if _, _, err := p.OnTick(ctx, &models.Tick{Price: 100, Timestamp: time.Now()}); err == nil {
		t.Fatalf("expected error for missing symbol")
	}
}

func TestEvaluateSignalApproved(t *testing.T) {
	var calls atomic.Int64
	p := newTestPipeline(t, bullishFetcher(&calls), true)
	warmSymbol(t, p, "BTCUSDT", 40, 100)

	cand := models.Candidate{
		Symbol:    "BTCUSDT",
		Class:     models.SignalOversold,
		Strength:  0.9,
		Price:     95,
		Volume:    250, // 2.5x the rolling average
		Timestamp: time.Now(),
	}
	dec, err := p.EvaluateSignal(context.Background(), cand)
	if err != nil {
		t.Fatalf("EvaluateSignal: %v", err)
	}
	if !dec.Approved {
		t.Fatalf("expected approval, got %+v reasons=%v", dec, dec.Reasons)
	}
	if dec.Volume == nil || !dec.Volume.Confirmed {
		t.Fatalf("expected volume confirmation, got %+v", dec.Volume)
	}
	if dec.Consensus == nil || !dec.Consensus.Approved {
		t.Fatalf("expected consensus approval, got %+v", dec.Consensus)
	}
	if len(dec.Reasons) != 2 {
		t.Fatalf("expected volume and consensus reasons, got %v", dec.Reasons)
	}
	if dec.Confidence <= 0 || dec.Confidence > 1 {
		t.Fatalf("confidence out of range: %v", dec.Confidence)
	}
	if calls.Load() != int64(len(testTimeframes)) {
		t.Fatalf("expected one fetch per timeframe, got %d", calls.Load())
	}
}

func TestEvaluateSignalVolumeGate(t *testing.T) {
	var calls atomic.Int64
	p := newTestPipeline(t, bullishFetcher(&calls), true)
	warmSymbol(t, p, "BTCUSDT", 40, 100)

	cand := models.Candidate{
		Symbol:    "BTCUSDT",
		Class:     models.SignalOversold,
		Strength:  0.9,
		Volume:    50, // well below the confirmation threshold
		Timestamp: time.Now(),
	}
	dec, err := p.EvaluateSignal(context.Background(), cand)
	if err != nil {
		t.Fatalf("EvaluateSignal: %v", err)
	}
	if dec.Approved {
		t.Fatalf("unconfirmed volume must reject when confirmation is required")
	}
	if dec.Consensus != nil {
		t.Fatalf("consensus must be skipped on the volume gate")
	}
	if calls.Load() != 0 {
		t.Fatalf("rejected candidate must not trigger fetches, got %d", calls.Load())
	}
}

func TestEvaluateSignalAdvisoryVolume(t *testing.T) {
	p := newTestPipeline(t, bullishFetcher(nil), false)
	warmSymbol(t, p, "BTCUSDT", 40, 100)

	cand := models.Candidate{
		Symbol:    "BTCUSDT",
		Class:     models.SignalOversold,
		Strength:  1.0,
		Volume:    50,
		Timestamp: time.Now(),
	}
	dec, err := p.EvaluateSignal(context.Background(), cand)
	if err != nil {
		t.Fatalf("EvaluateSignal: %v", err)
	}
	if !dec.Approved {
		t.Fatalf("advisory volume must not block consensus approval: %v", dec.Reasons)
	}
	if dec.Volume == nil || dec.Volume.Confirmed {
		t.Fatalf("volume verdict should be carried as rejected, got %+v", dec.Volume)
	}
	if len(dec.Reasons) != 2 {
		t.Fatalf("expected both verdicts in reasons, got %v", dec.Reasons)
	}
}

func TestEvaluateSignalInFlight(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	var once atomic.Bool
	fetcher := domsvc.TimeframeFetcherFunc(func(ctx context.Context, symbol string, tf models.Timeframe) (*models.TimeframeSnapshot, error) {
		if once.CompareAndSwap(false, true) {
			close(entered)
		}
		select {
		case <-release:
		case <-ctx.Done():
		}
		return nil, errors.New("aborted")
	})
	p := newTestPipeline(t, fetcher, false)
	warmSymbol(t, p, "BTCUSDT", 40, 100)

	cand := models.Candidate{
		Symbol:    "BTCUSDT",
		Class:     models.SignalOversold,
		Strength:  0.9,
		Volume:    250,
		Timestamp: time.Now(),
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = p.EvaluateSignal(context.Background(), cand)
	}()

	<-entered
	if _, err := p.EvaluateSignal(context.Background(), cand); !errors.Is(err, ErrEvaluationInFlight) {
		t.Fatalf("expected ErrEvaluationInFlight, got %v", err)
	}
	if got := p.State("BTCUSDT"); got != StateEvaluating {
		t.Fatalf("state during evaluation = %v, want evaluating", got)
	}

	close(release)
	<-done

	// The guard is released; a fresh evaluation is allowed again.
	if _, err := p.EvaluateSignal(context.Background(), cand); err != nil {
		t.Fatalf("evaluation after release: %v", err)
	}
}

func TestPipelineReset(t *testing.T) {
	var calls atomic.Int64
	p := newTestPipeline(t, bullishFetcher(&calls), false)
	warmSymbol(t, p, "BTCUSDT", 40, 100)
	ctx := context.Background()

	cand := models.Candidate{
		Symbol:    "BTCUSDT",
		Class:     models.SignalOversold,
		Strength:  0.9,
		Volume:    250,
		Timestamp: time.Now(),
	}
	if _, err := p.EvaluateSignal(ctx, cand); err != nil {
		t.Fatalf("EvaluateSignal: %v", err)
	}
	before := calls.Load()

	p.Reset(ctx, "BTCUSDT")
	if got := p.State("BTCUSDT"); got != StateIdle {
		t.Fatalf("state after reset = %v, want idle", got)
	}
	if _, _, ok := p.Indicators("BTCUSDT"); ok {
		t.Fatalf("indicator state must be dropped on reset")
	}

	// Cached snapshots were invalidated: the next evaluation refetches.
	warmSymbol(t, p, "BTCUSDT", 40, 100)
	if _, err := p.EvaluateSignal(ctx, cand); err != nil {
		t.Fatalf("EvaluateSignal after reset: %v", err)
	}
	if calls.Load() != before+int64(len(testTimeframes)) {
		t.Fatalf("expected refetch after reset, calls %d -> %d", before, calls.Load())
	}
}

func TestPipelineSymbols(t *testing.T) {
	p := newTestPipeline(t, bullishFetcher(nil), false)
	warmSymbol(t, p, "BTCUSDT", 3, 100)
	warmSymbol(t, p, "ETHUSDT", 3, 100)

	syms := p.Symbols()
	if len(syms) != 2 {
		t.Fatalf("expected 2 live symbols, got %v", syms)
	}
}

func TestNewSignalPipelineRejectsBadConfig(t *testing.T) {
	cache := consensus.NewSnapshotCache(nil, 0)
	coord, err := consensus.NewCoordinator(cache, bullishFetcher(nil), consensus.DefaultCoordinatorConfig())
	if err != nil {
		t.Fatalf("NewCoordinator: %v", err)
	}
	scorer, err := consensus.NewScorer(consensus.DefaultScorerConfig())
	if err != nil {
		t.Fatalf("NewScorer: %v", err)
	}

	if _, err := NewSignalPipeline(indicator.DefaultConfig(), volume.DefaultConfig(), coord, scorer, PipelineConfig{}); err == nil {
		t.Fatalf("expected error for empty timeframe list")
	}

	badInd := indicator.DefaultConfig()
	badInd.RSIPeriod = 0
	if _, err := NewSignalPipeline(badInd, volume.DefaultConfig(), coord, scorer, PipelineConfig{Timeframes: testTimeframes}); err == nil {
		t.Fatalf("expected error for invalid indicator config")
	}
}
