package indicator

import (
	"math"
	"testing"
	"time"
)

func mustStochRSI(t *testing.T, cfg Config) *StochRSI {
	t.Helper()
	s, err := NewStochRSI("BTCUSDT", cfg)
	if err != nil {
		t.Fatalf("NewStochRSI: %v", err)
	}
	return s
}

func TestStochRSIWarmup(t *testing.T) {
	s := mustStochRSI(t, DefaultConfig())
	ts := time.Now()

	for i := 0; i < 14; i++ {
		snap, err := s.Update(100+float64(i%3), ts)
		if err != nil {
			t.Fatalf("update %d: %v", i, err)
		}
		if snap != nil {
			t.Fatalf("expected nil snapshot during warm-up, got one at update %d", i+1)
		}
	}
	snap, err := s.Update(101, ts)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if snap == nil {
		t.Fatalf("expected first snapshot at update %d", s.UpdateCount())
	}
	if snap.StochReady {
		t.Fatalf("stochastic should not be ready before the rsi window fills")
	}
}

func TestStochRSIConstantPrices(t *testing.T) {
	s := mustStochRSI(t, DefaultConfig())
	ts := time.Now()

	var last float64
	var ready bool
	for i := 0; i < 40; i++ {
		snap, err := s.Update(250, ts)
		if err != nil {
			t.Fatalf("update %d: %v", i, err)
		}
		if snap != nil {
			last = snap.RSI
			if snap.StochReady {
				ready = true
				if snap.StochK != 50 || snap.StochD != 50 {
					t.Fatalf("flat series should clamp stochastic to 50, got K=%v D=%v", snap.StochK, snap.StochD)
				}
			}
		}
	}
	if last != 100 {
		t.Fatalf("flat series should read RSI 100, got %v", last)
	}
	if !ready {
		t.Fatalf("stochastic never became ready")
	}
}

func TestStochRSIRisingThenFalling(t *testing.T) {
	s := mustStochRSI(t, DefaultConfig())
	ts := time.Now()

	price := 100.0
	var rising float64
	for i := 0; i < 40; i++ {
		price += 1
		if snap, _ := s.Update(price, ts); snap != nil {
			rising = snap.RSI
		}
	}
	if rising != 100 {
		t.Fatalf("strictly rising series should read RSI 100, got %v", rising)
	}

	var falling float64
	for i := 0; i < 40; i++ {
		price -= 2
		if snap, _ := s.Update(price, ts); snap != nil {
			falling = snap.RSI
		}
	}
	if falling >= 50 {
		t.Fatalf("after a long decline RSI should be below 50, got %v", falling)
	}
}

func TestStochRSIStochReadyTiming(t *testing.T) {
	cfg := DefaultConfig()
	s := mustStochRSI(t, cfg)
	ts := time.Now()

	// First snapshot at rsiPeriod+1 updates, stochastic after stochPeriod
	// further rsi values.
	wantReady := int64(cfg.RSIPeriod + cfg.StochPeriod)
	price := 100.0
	for i := 0; i < 60; i++ {
		price += math.Sin(float64(i))
		snap, err := s.Update(price, ts)
		if err != nil {
			t.Fatalf("update %d: %v", i, err)
		}
		if snap != nil && snap.StochReady && snap.UpdateCount < wantReady {
			t.Fatalf("stochastic ready too early at update %d", snap.UpdateCount)
		}
		if snap != nil && !snap.StochReady && snap.UpdateCount >= wantReady {
			t.Fatalf("stochastic not ready at update %d", snap.UpdateCount)
		}
	}
}

func TestStochRSIMatchesReplay(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CheckMode = CheckOff
	cfg.CheckWindow = 400
	s := mustStochRSI(t, cfg)
	ts := time.Now()

	prices := make([]float64, 0, 300)
	price := 100.0
	for i := 0; i < 300; i++ {
		price += 3 * math.Sin(float64(i)*0.7)
		prices = append(prices, price)
	}

	var incremental float64
	for _, p := range prices {
		if snap, err := s.Update(p, ts); err != nil {
			t.Fatalf("update: %v", err)
		} else if snap != nil {
			incremental = snap.RSI
		}
	}

	recomputed, ok := ReplayRSI(prices, cfg.RSIPeriod)
	if !ok {
		t.Fatalf("replay should have enough data")
	}
	if diff := math.Abs(incremental - recomputed); diff > 1e-9 {
		t.Fatalf("incremental %v and recomputed %v diverge by %v", incremental, recomputed, diff)
	}
}

func TestStochRSIStrictCheckCleanStream(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CheckMode = CheckStrict
	cfg.CheckInterval = 64
	cfg.CheckWindow = 256
	s := mustStochRSI(t, cfg)
	ts := time.Now()

	price := 100.0
	for i := 0; i < 512; i++ {
		price += 2 * math.Cos(float64(i)*0.3)
		if _, err := s.Update(price, ts); err != nil {
			t.Fatalf("strict cross-check rejected a clean stream at update %d: %v", i+1, err)
		}
	}
}

func TestStochRSIReset(t *testing.T) {
	s := mustStochRSI(t, DefaultConfig())
	ts := time.Now()
	for i := 0; i < 30; i++ {
		_, _ = s.Update(100+float64(i), ts)
	}
	s.Reset()
	if s.UpdateCount() != 0 || s.Warm() {
		t.Fatalf("reset did not return to cold start")
	}
	if snap, _ := s.Update(100, ts); snap != nil {
		t.Fatalf("first update after reset should not produce a snapshot")
	}
}

func TestNewStochRSIRejectsBadPeriods(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RSIPeriod = 0
	if _, err := NewStochRSI("X", cfg); err == nil {
		t.Fatalf("expected error for zero rsi period")
	}
}

func TestParseCheckMode(t *testing.T) {
	if m, err := ParseCheckMode(""); err != nil || m != CheckLog {
		t.Fatalf("empty should default to log, got %v %v", m, err)
	}
	if m, err := ParseCheckMode("strict"); err != nil || m != CheckStrict {
		t.Fatalf("unexpected %v %v", m, err)
	}
	if _, err := ParseCheckMode("bogus"); err == nil {
		t.Fatalf("expected error for bogus mode")
	}
}
