package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"SigPulse/internal/domain/models"
	enginemetrics "SigPulse/internal/service/metrics"
	"SigPulse/internal/services/consensus"
	"SigPulse/internal/services/indicator"
	"SigPulse/internal/services/volume"
	applogger "SigPulse/pkg/logger"
)

// ErrEvaluationInFlight is returned when a symbol already has an evaluation
// running; callers must serialize evaluations per symbol.
var ErrEvaluationInFlight = errors.New("evaluation already in flight for symbol")

// SymbolState is the pipeline phase of one symbol.
type SymbolState int

const (
	StateIdle SymbolState = iota
	StateWarmingUp
	StateReady
	StateEvaluating
)

func (s SymbolState) String() string {
	switch s {
	case StateWarmingUp:
		return "warming_up"
	case StateReady:
		return "ready"
	case StateEvaluating:
		return "evaluating"
	default:
		return "idle"
	}
}

// PipelineConfig selects the timeframes consulted for consensus and the
// volume gating policy.
type PipelineConfig struct {
	Timeframes []models.Timeframe
	// RequireVolumeConfirmation rejects before consensus when the volume
	// check fails. When false the volume verdict is advisory and carried in
	// the reasons.
	RequireVolumeConfirmation bool
}

type symbolState struct {
	ind        *indicator.StochRSI
	vol        *volume.Profile
	evaluating atomic.Bool
	lastSnap   *models.IndicatorSnapshot
	lastVol    models.VolumeMetrics
}

// SignalPipeline orchestrates indicator updates, volume confirmation and
// multi-timeframe consensus per symbol. Per-symbol state is created lazily on
// first tick and owned by a single logical writer; only the snapshot cache is
// shared across symbols.
type SignalPipeline struct {
	mu      sync.RWMutex
	symbols map[string]*symbolState

	indCfg indicator.Config
	volCfg volume.Config
	coord  *consensus.Coordinator
	scorer *consensus.Scorer
	cfg    PipelineConfig

	logger *applogger.Logger
}

// NewSignalPipeline validates configuration and wires the engine parts.
func NewSignalPipeline(
	indCfg indicator.Config,
	volCfg volume.Config,
	coord *consensus.Coordinator,
	scorer *consensus.Scorer,
	cfg PipelineConfig,
) (*SignalPipeline, error) {
	if len(cfg.Timeframes) == 0 {
		return nil, fmt.Errorf("pipeline config: timeframe list cannot be empty")
	}
	for _, tf := range cfg.Timeframes {
		if !models.IsValidTimeframe(tf) {
			return nil, fmt.Errorf("pipeline config: invalid timeframe %q", tf)
		}
	}
	if coord == nil || scorer == nil {
		return nil, fmt.Errorf("pipeline requires coordinator and scorer")
	}
	// Constructor dry-run so bad periods fail here rather than on first tick.
	if _, err := indicator.NewStochRSI("probe", indCfg); err != nil {
		return nil, err
	}
	if _, err := volume.NewProfile("probe", volCfg); err != nil {
		return nil, err
	}
	return &SignalPipeline{
		symbols: make(map[string]*symbolState),
		indCfg:  indCfg,
		volCfg:  volCfg,
		coord:   coord,
		scorer:  scorer,
		cfg:     cfg,
	}, nil
}

// SetLogger attaches a logger propagated to per-symbol indicator state.
func (p *SignalPipeline) SetLogger(l *applogger.Logger) { p.logger = l }

// CacheStats exposes snapshot cache counters.
func (p *SignalPipeline) CacheStats() models.CacheStats { return p.coord.Cache().Stats() }

func (p *SignalPipeline) state(symbol string) *symbolState {
	p.mu.RLock()
	st := p.symbols[symbol]
	p.mu.RUnlock()
	if st != nil {
		return st
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if st = p.symbols[symbol]; st != nil {
		return st
	}
	// Config was validated at construction; these cannot fail.
	ind, _ := indicator.NewStochRSI(symbol, p.indCfg)
	vol, _ := volume.NewProfile(symbol, p.volCfg)
	if p.logger != nil {
		ind.SetLogger(p.logger)
	}
	st = &symbolState{ind: ind, vol: vol}
	p.symbols[symbol] = st
	return st
}

// OnTick folds one tick into the symbol's indicator and volume state.
// Ticks for a symbol must arrive from a single caller in order.
func (p *SignalPipeline) OnTick(ctx context.Context, t *models.Tick) (*models.IndicatorSnapshot, models.VolumeMetrics, error) {
	if t == nil || t.Symbol == "" {
		return nil, models.VolumeMetrics{}, fmt.Errorf("invalid tick")
	}
	st := p.state(t.Symbol)

	snap, err := st.ind.Update(t.Price, t.Timestamp)
	vm := st.vol.UpdateVolume(t.Volume, t.Timestamp)
	st.lastVol = vm
	if snap != nil {
		st.lastSnap = snap
	}
	if err != nil {
		return snap, vm, fmt.Errorf("indicator update %s: %w", t.Symbol, err)
	}
	return snap, vm, nil
}

// EvaluateSignal confirms a candidate against volume and multi-timeframe
// consensus and returns the combined decision. At most one evaluation per
// symbol runs at a time.
func (p *SignalPipeline) EvaluateSignal(ctx context.Context, cand models.Candidate) (*models.ConfirmedSignal, error) {
	if cand.Symbol == "" {
		return nil, fmt.Errorf("candidate symbol required")
	}
	st := p.state(cand.Symbol)

	if !st.evaluating.CompareAndSwap(false, true) {
		return nil, ErrEvaluationInFlight
	}
	defer st.evaluating.Store(false)

	start := time.Now()
	decision := &models.ConfirmedSignal{
		Symbol:    cand.Symbol,
		Class:     cand.Class,
		Timestamp: start,
	}

	vc := st.vol.ConfirmVolume(cand.Volume, cand.Class, cand.Strength)
	decision.Volume = &vc
	decision.Reasons = append(decision.Reasons, vc.Reason)

	if !vc.Confirmed && p.cfg.RequireVolumeConfirmation {
		p.finish(decision, start)
		return decision, nil
	}

	snaps := p.coord.EvaluateTimeframes(ctx, cand.Symbol, p.cfg.Timeframes)
	cr := p.scorer.Score(cand, snaps)
	decision.Consensus = &cr
	decision.Reasons = append(decision.Reasons, cr.Reason)
	decision.Approved = cr.Approved
	decision.Confidence = cr.Confidence

	p.finish(decision, start)
	return decision, nil
}

func (p *SignalPipeline) finish(d *models.ConfirmedSignal, start time.Time) {
	d.ProcessingTime = time.Since(start)
	outcome := "rejected"
	if d.Approved {
		outcome = "approved"
	}
	enginemetrics.Evaluations.WithLabelValues(outcome).Inc()
	enginemetrics.EvaluationDuration.Observe(d.ProcessingTime.Seconds())
	if p.logger != nil {
		p.logger.Debug("signal evaluated",
			applogger.String("symbol", d.Symbol),
			applogger.String("class", d.Class.String()),
			applogger.Bool("approved", d.Approved),
			applogger.Duration("processing_ms", d.ProcessingTime),
		)
	}
}

// State reports the pipeline phase for a symbol.
func (p *SignalPipeline) State(symbol string) SymbolState {
	p.mu.RLock()
	st := p.symbols[symbol]
	p.mu.RUnlock()
	if st == nil {
		return StateIdle
	}
	if st.evaluating.Load() {
		return StateEvaluating
	}
	if st.lastSnap == nil || !st.lastSnap.StochReady {
		return StateWarmingUp
	}
	return StateReady
}

// Indicators returns the latest indicator snapshot and volume metrics for a
// symbol. The snapshot is nil while warming up.
func (p *SignalPipeline) Indicators(symbol string) (*models.IndicatorSnapshot, models.VolumeMetrics, bool) {
	p.mu.RLock()
	st := p.symbols[symbol]
	p.mu.RUnlock()
	if st == nil {
		return nil, models.VolumeMetrics{}, false
	}
	return st.lastSnap, st.lastVol, true
}

// Reset destroys all state for a symbol and drops its cached snapshots.
func (p *SignalPipeline) Reset(ctx context.Context, symbol string) {
	p.mu.Lock()
	delete(p.symbols, symbol)
	p.mu.Unlock()
	p.coord.Cache().Invalidate(ctx, symbol)
}

// Symbols lists symbols with live state.
func (p *SignalPipeline) Symbols() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]string, 0, len(p.symbols))
	for s := range p.symbols {
		out = append(out, s)
	}
	return out
}
