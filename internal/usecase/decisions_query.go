package usecase

import (
	"context"
	"fmt"
	"time"

	"SigPulse/internal/domain/models"
	drepo "SigPulse/internal/domain/repository"
)

// DecisionsUseCase provides business logic for retrieving past decisions.
type DecisionsUseCase struct {
	store drepo.DecisionStore
}

func NewDecisionsUseCase(store drepo.DecisionStore) *DecisionsUseCase {
	return &DecisionsUseCase{store: store}
}

type GetDecisionsParams struct {
	Symbol string
	From   time.Time
	To     time.Time
	Limit  int
}

type GetDecisionsResult struct {
	Symbol    string
	From      time.Time
	To        time.Time
	Count     int
	Decisions []*models.ConfirmedSignal
}

func (uc *DecisionsUseCase) GetDecisions(ctx context.Context, p GetDecisionsParams) (*GetDecisionsResult, error) {
	if p.Symbol == "" {
		return nil, fmt.Errorf("symbol required")
	}
	if p.From.After(p.To) {
		return nil, fmt.Errorf("from must be <= to")
	}
	if p.Limit <= 0 {
		p.Limit = 1000
	}
	if p.Limit > 10000 {
		p.Limit = 10000
	}

	decisions, err := uc.store.Query(ctx, p.Symbol, p.From, p.To, p.Limit)
	if err != nil {
		return nil, fmt.Errorf("get decisions: %w", err)
	}

	return &GetDecisionsResult{
		Symbol:    p.Symbol,
		From:      p.From,
		To:        p.To,
		Count:     len(decisions),
		Decisions: decisions,
	}, nil
}
