package repository

import (
	"context"
	"time"

	"SigPulse/internal/domain/models"
)

type MarketStream interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context) error
	Read(ctx context.Context) (<-chan *models.Tick, <-chan error)
	Reconnect(ctx context.Context) error
	Close() error
	IsConnected() bool
}

// DecisionPublisher emits confirmed signals to the external strategy consumer.
type DecisionPublisher interface {
	Publish(ctx context.Context, s *models.ConfirmedSignal) error
	PublishBatch(ctx context.Context, signals []*models.ConfirmedSignal) error
	Close() error
}

// DecisionStore persists decisions for audit queries.
type DecisionStore interface {
	Init(ctx context.Context) error
	Store(ctx context.Context, s *models.ConfirmedSignal) error
	StoreBatch(ctx context.Context, signals []*models.ConfirmedSignal) error
	Query(ctx context.Context, symbol string, from, to time.Time, limit int) ([]*models.ConfirmedSignal, error)
	Health(ctx context.Context) error
	Close() error
}

type Metrics interface {
	RecordDecision(backend, symbol, outcome string)
	RecordError(kind string)
	RecordLastPrice(symbol string, price float64)
	RecordLatency(op string, seconds float64)
}
