package middleware

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"SigPulse/internal/domain/models"
)

type stubMetrics struct {
	mu     sync.Mutex
	errors map[string]int
}

func newStubMetrics() *stubMetrics {
	return &stubMetrics{errors: make(map[string]int)}
}

func (m *stubMetrics) RecordDecision(backend, symbol, outcome string) {}
func (m *stubMetrics) RecordLastPrice(symbol string, price float64)  {}
func (m *stubMetrics) RecordLatency(op string, seconds float64)      {}

func (m *stubMetrics) RecordError(kind string) {
	m.mu.Lock()
	m.errors[kind]++
	m.mu.Unlock()
}

func (m *stubMetrics) errorCount(kind string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.errors[kind]
}

type stubProc struct {
	mu    sync.Mutex
	ticks []*models.Tick
	fail  bool
}

func (s *stubProc) Process(ctx context.Context, t *models.Tick) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("downstream unavailable")
	}
	s.ticks = append(s.ticks, t)
	return nil
}

func (s *stubProc) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ticks)
}

func (s *stubProc) setFail(v bool) {
	s.mu.Lock()
	s.fail = v
	s.mu.Unlock()
}

func validTick(symbol string) *models.Tick {
	return &models.Tick{Symbol: symbol, Price: 100, Volume: 10, Timestamp: time.Now()}
}

func TestPipelineForwardsValidTick(t *testing.T) {
	proc := &stubProc{}
	p := NewTickPipeline(proc, newStubMetrics())

	if err := p.Process(context.Background(), validTick("BTCUSDT")); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if proc.count() != 1 {
		t.Fatalf("expected 1 forwarded tick, got %d", proc.count())
	}
}

func TestPipelineRejectsInvalidTicks(t *testing.T) {
	proc := &stubProc{}
	m := newStubMetrics()
	p := NewTickPipeline(proc, m)
	ctx := context.Background()

	cases := []*models.Tick{
		nil,
		{Price: 100, Timestamp: time.Now()},
		{Symbol: "BTCUSDT", Price: 100},
		{Symbol: "BTCUSDT", Price: -1, Timestamp: time.Now()},
		{Symbol: "BTCUSDT", Price: 100, Volume: -5, Timestamp: time.Now()},
	}
	for i, tick := range cases {
		if err := p.Process(ctx, tick); err == nil {
			t.Fatalf("case %d: expected validation error", i)
		}
	}
	if proc.count() != 0 {
		t.Fatalf("invalid ticks must not reach downstream, got %d", proc.count())
	}
	if m.errorCount("pipeline_validate") != len(cases) {
		t.Fatalf("expected %d validation errors, got %d", len(cases), m.errorCount("pipeline_validate"))
	}
}

func TestPipelineThrottlesPerSymbol(t *testing.T) {
	proc := &stubProc{}
	m := newStubMetrics()
	p := NewTickPipeline(proc, m, WithMaxRPS(5))
	ctx := context.Background()

	for i := 0; i < 20; i++ {
		if err := p.Process(ctx, validTick("BTCUSDT")); err != nil {
			t.Fatalf("throttled ticks drop silently, got %v", err)
		}
	}
	if proc.count() > 6 {
		t.Fatalf("expected throttle near 5 rps, forwarded %d", proc.count())
	}
	if m.errorCount("pipeline_throttle") == 0 {
		t.Fatalf("expected throttle events")
	}

	// A different symbol has its own bucket.
	if err := p.Process(ctx, validTick("ETHUSDT")); err != nil {
		t.Fatalf("Process: %v", err)
	}
}

func TestPipelineTransform(t *testing.T) {
	proc := &stubProc{}
	p := NewTickPipeline(proc, newStubMetrics(), WithTransform(func(t *models.Tick) *models.Tick {
		t.Symbol = "X:" + t.Symbol
		return t
	}))

	if err := p.Process(context.Background(), validTick("BTCUSDT")); err != nil {
		t.Fatalf("Process: %v", err)
	}
	proc.mu.Lock()
	sym := proc.ticks[0].Symbol
	proc.mu.Unlock()
	if sym != "X:BTCUSDT" {
		t.Fatalf("transform not applied, got %q", sym)
	}
}

func TestPipelineBuffersOnDownstreamError(t *testing.T) {
	proc := &stubProc{fail: true}
	m := newStubMetrics()
	p := NewTickPipeline(proc, m, WithBufferSize(10))
	ctx := context.Background()

	if err := p.Process(ctx, validTick("BTCUSDT")); err == nil {
		t.Fatalf("expected downstream error")
	}
	if m.errorCount("pipeline_process") != 1 {
		t.Fatalf("expected downstream error recorded")
	}

	// Once downstream recovers, Start flushes the buffered tick.
	proc.setFail(false)
	p.Start(ctx)
	defer p.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for proc.count() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("buffered tick never flushed")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestPipelineBufferFullDrops(t *testing.T) {
	proc := &stubProc{fail: true}
	m := newStubMetrics()
	p := NewTickPipeline(proc, m, WithBufferSize(1), WithMaxRPS(1000))
	ctx := context.Background()

	_ = p.Process(ctx, validTick("BTCUSDT"))
	_ = p.Process(ctx, validTick("BTCUSDT"))
	if m.errorCount("pipeline_buffer_full") != 1 {
		t.Fatalf("expected one buffer-full drop, got %d", m.errorCount("pipeline_buffer_full"))
	}
}

func TestPipelineStopIdempotentStart(t *testing.T) {
	proc := &stubProc{}
	p := NewTickPipeline(proc, newStubMetrics())
	ctx := context.Background()

	p.Start(ctx)
	p.Start(ctx) // second start is a no-op
	p.Stop()
	p.Stop() // second stop must not panic on a closed channel
}
