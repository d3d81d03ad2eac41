package usecase

import (
	"context"
	"fmt"
	"time"

	"SigPulse/internal/domain/models"
	drepo "SigPulse/internal/domain/repository"
)

// DecisionProcessor routes confirmed signals to the configured backend.
type DecisionProcessor struct {
	pub     drepo.DecisionPublisher
	store   drepo.DecisionStore
	metrics drepo.Metrics
	backend string
}

// NewDecisionProcessor creates a new DecisionProcessor instance.
func NewDecisionProcessor(
	pub drepo.DecisionPublisher,
	store drepo.DecisionStore,
	metrics drepo.Metrics,
	backend string,
) *DecisionProcessor {
	return &DecisionProcessor{
		pub:     pub,
		store:   store,
		metrics: metrics,
		backend: backend,
	}
}

// Process routes a single decision to the configured backend.
func (p *DecisionProcessor) Process(ctx context.Context, s *models.ConfirmedSignal) error {
	if s == nil {
		return fmt.Errorf("decision is nil")
	}

	start := time.Now()
	var err error

	switch p.backend {
	case "kafka":
		err = p.pub.Publish(ctx, s)
	case "clickhouse":
		err = p.store.Store(ctx, s)
	default:
		err = fmt.Errorf("unknown backend: %s", p.backend)
	}

	if err != nil {
		p.metrics.RecordError("process")
		return fmt.Errorf("process decision: %w", err)
	}

	outcome := "rejected"
	if s.Approved {
		outcome = "approved"
	}
	p.metrics.RecordDecision(p.backend, s.Symbol, outcome)
	p.metrics.RecordLatency("process", time.Since(start).Seconds())

	return nil
}

// ProcessBatch routes multiple decisions in a batch.
func (p *DecisionProcessor) ProcessBatch(ctx context.Context, signals []*models.ConfirmedSignal) error {
	if len(signals) == 0 {
		return nil
	}

	start := time.Now()
	var err error

	switch p.backend {
	case "kafka":
		err = p.pub.PublishBatch(ctx, signals)
	case "clickhouse":
		err = p.store.StoreBatch(ctx, signals)
	default:
		err = fmt.Errorf("unknown backend: %s", p.backend)
	}

	if err != nil {
		p.metrics.RecordError("process_batch")
		return fmt.Errorf("process batch: %w", err)
	}

	for _, s := range signals {
		outcome := "rejected"
		if s.Approved {
			outcome = "approved"
		}
		p.metrics.RecordDecision(p.backend, s.Symbol, outcome)
	}
	p.metrics.RecordLatency("process_batch", time.Since(start).Seconds())

	return nil
}

// Close closes underlying resources if available.
func (p *DecisionProcessor) Close() {
	if p.pub != nil {
		_ = p.pub.Close()
	}
	if p.store != nil {
		_ = p.store.Close()
	}
}
