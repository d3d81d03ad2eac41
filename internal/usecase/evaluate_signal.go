package usecase

import (
	"context"
	"fmt"
	"time"

	"SigPulse/internal/domain/models"
)

// EvaluateUseCase fronts on-demand candidate evaluation, typically from the
// HTTP API. It bounds the evaluation with a timeout and optionally forwards
// the decision to the configured backend.
type EvaluateUseCase struct {
	pipeline     *SignalPipeline
	decision     *DecisionProcessor
	timeout      time.Duration
	emitRejected bool
}

func NewEvaluateUseCase(pipeline *SignalPipeline, decision *DecisionProcessor, emitRejected bool) *EvaluateUseCase {
	return &EvaluateUseCase{
		pipeline:     pipeline,
		decision:     decision,
		timeout:      2 * time.Second,
		emitRejected: emitRejected,
	}
}

type EvaluateParams struct {
	Symbol   string
	Class    models.SignalClass
	Strength float64
	Price    float64
	Volume   float64
}

func (uc *EvaluateUseCase) Evaluate(ctx context.Context, p EvaluateParams) (*models.ConfirmedSignal, error) {
	if p.Symbol == "" {
		return nil, fmt.Errorf("symbol required")
	}
	if p.Strength < 0 || p.Strength > 1 {
		return nil, fmt.Errorf("strength must be in [0,1]")
	}

	ctx, cancel := context.WithTimeout(ctx, uc.timeout)
	defer cancel()

	dec, err := uc.pipeline.EvaluateSignal(ctx, models.Candidate{
		Symbol:    p.Symbol,
		Class:     p.Class,
		Strength:  p.Strength,
		Price:     p.Price,
		Volume:    p.Volume,
		Timestamp: time.Now(),
	})
	if err != nil {
		return nil, err
	}

	if uc.decision != nil && (dec.Approved || uc.emitRejected) {
		if perr := uc.decision.Process(ctx, dec); perr != nil {
			// The decision itself is still valid for the caller.
			dec.Reasons = append(dec.Reasons, "backend_forward_failed")
		}
	}
	return dec, nil
}
