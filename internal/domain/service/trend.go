package service

import (
	"context"

	"SigPulse/internal/domain/models"
)

// TimeframeFetcher retrieves one timeframe's trend snapshot for a symbol.
// The concrete REST/exchange integration lives outside the engine core.
type TimeframeFetcher interface {
	Fetch(ctx context.Context, symbol string, tf models.Timeframe) (*models.TimeframeSnapshot, error)
}

// TimeframeFetcherFunc adapts a function to the TimeframeFetcher interface.
type TimeframeFetcherFunc func(ctx context.Context, symbol string, tf models.Timeframe) (*models.TimeframeSnapshot, error)

func (f TimeframeFetcherFunc) Fetch(ctx context.Context, symbol string, tf models.Timeframe) (*models.TimeframeSnapshot, error) {
	return f(ctx, symbol, tf)
}
