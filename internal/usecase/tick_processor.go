package usecase

import (
	"context"
	"fmt"

	"SigPulse/internal/domain/models"
	drepo "SigPulse/internal/domain/repository"
	applogger "SigPulse/pkg/logger"
)

// Stochastic bands that trigger candidate evaluation.
const (
	oversoldBand   = 20.0
	overboughtBand = 80.0
)

// TickProcessor folds ticks into the signal pipeline and, when the
// stochastic enters an extreme band, evaluates a candidate and hands the
// decision to the decision processor.
type TickProcessor struct {
	pipeline *SignalPipeline
	decision *DecisionProcessor
	metrics  drepo.Metrics
	logger   *applogger.Logger

	// emitRejected forwards rejected decisions to the backend as well,
	// useful for offline analysis of gate behavior.
	emitRejected bool
}

// NewTickProcessor creates a new TickProcessor instance.
func NewTickProcessor(pipeline *SignalPipeline, decision *DecisionProcessor, metrics drepo.Metrics, emitRejected bool) *TickProcessor {
	return &TickProcessor{
		pipeline:     pipeline,
		decision:     decision,
		metrics:      metrics,
		emitRejected: emitRejected,
	}
}

// SetLogger attaches a logger.
func (p *TickProcessor) SetLogger(l *applogger.Logger) { p.logger = l }

// Decision returns the decision processor for lifecycle management.
func (p *TickProcessor) Decision() *DecisionProcessor { return p.decision }

// Process implements middleware.Proc.
func (p *TickProcessor) Process(ctx context.Context, t *models.Tick) error {
	snap, _, err := p.pipeline.OnTick(ctx, t)
	if err != nil {
		return fmt.Errorf("tick %s: %w", t.Symbol, err)
	}
	if snap == nil || !snap.StochReady {
		return nil
	}

	cand, ok := candidateFrom(snap, t)
	if !ok {
		return nil
	}

	dec, err := p.pipeline.EvaluateSignal(ctx, cand)
	if err != nil {
		if err == ErrEvaluationInFlight {
			// An evaluation for this symbol is already running; this tick's
			// candidate is superseded by it.
			return nil
		}
		p.metrics.RecordError("evaluate")
		return fmt.Errorf("evaluate %s: %w", t.Symbol, err)
	}

	if !dec.Approved && !p.emitRejected {
		return nil
	}
	if err := p.decision.Process(ctx, dec); err != nil {
		return err
	}
	if p.logger != nil && dec.Approved {
		p.logger.Info("signal confirmed",
			applogger.String("symbol", dec.Symbol),
			applogger.String("class", dec.Class.String()),
		)
	}
	return nil
}

// candidateFrom derives an extreme-band candidate from a ready snapshot.
// Strength grows linearly with the depth into the band.
func candidateFrom(snap *models.IndicatorSnapshot, t *models.Tick) (models.Candidate, bool) {
	var class models.SignalClass
	var strength float64

	switch {
	case snap.StochK <= oversoldBand:
		class = models.SignalOversold
		strength = (oversoldBand - snap.StochK) / oversoldBand
	case snap.StochK >= overboughtBand:
		class = models.SignalOverbought
		strength = (snap.StochK - overboughtBand) / (100 - overboughtBand)
	default:
		return models.Candidate{}, false
	}
	if strength > 1 {
		strength = 1
	}

	return models.Candidate{
		Symbol:    t.Symbol,
		Class:     class,
		Strength:  strength,
		Price:     t.Price,
		Volume:    t.Volume,
		Timestamp: t.Timestamp,
	}, true
}
