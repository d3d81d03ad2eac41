package volume

import (
	"math"
	"testing"
	"time"

	"SigPulse/internal/domain/models"
)

func mustProfile(t *testing.T, cfg Config) *Profile {
	t.Helper()
	p, err := NewProfile("BTCUSDT", cfg)
	if err != nil {
		t.Fatalf("NewProfile: %v", err)
	}
	return p
}

func fill(p *Profile, vol float64, n int, start time.Time) time.Time {
	ts := start
	for i := 0; i < n; i++ {
		p.UpdateVolume(vol, ts)
		ts = ts.Add(time.Second)
	}
	return ts
}

func TestConfirmVolumeNoHistory(t *testing.T) {
	p := mustProfile(t, DefaultConfig())
	vc := p.ConfirmVolume(5, models.SignalBuy, 0.5)
	if vc.Confirmed {
		t.Fatalf("should not confirm without history")
	}
	if vc.Reason != ReasonInsufficientHistory {
		t.Fatalf("unexpected reason %q", vc.Reason)
	}
}

func TestConfirmVolumeBuyDoubleAverage(t *testing.T) {
	p := mustProfile(t, DefaultConfig())
	fill(p, 1_000_000, 50, time.Now())

	vc := p.ConfirmVolume(2_000_000, models.SignalBuy, 1.0)
	if !vc.Confirmed {
		t.Fatalf("2x average volume should confirm a buy: %+v", vc)
	}
	if vc.Reason != ReasonConfirmed {
		t.Fatalf("unexpected reason %q", vc.Reason)
	}
	if vc.RelativeVolume < 1.99 || vc.RelativeVolume > 2.01 {
		t.Fatalf("unexpected relative volume %v", vc.RelativeVolume)
	}
	if vc.Confidence < 1.0 {
		t.Fatalf("confirmed signal should carry confidence >= 1, got %v", vc.Confidence)
	}
}

func TestConfirmVolumeSellStricterThanBuy(t *testing.T) {
	p := mustProfile(t, DefaultConfig())
	fill(p, 1000, 50, time.Now())

	// 1.3x average clears the adjusted buy threshold but not sell.
	buy := p.ConfirmVolume(1300, models.SignalBuy, 0.5)
	sell := p.ConfirmVolume(1300, models.SignalSell, 0.5)
	if !buy.Confirmed {
		t.Fatalf("buy should confirm at 1.3x: %+v", buy)
	}
	if sell.Confirmed {
		t.Fatalf("sell should not confirm at 1.3x: %+v", sell)
	}
}

func TestConfirmVolumeStrengthScalesThreshold(t *testing.T) {
	p := mustProfile(t, DefaultConfig())
	fill(p, 1000, 50, time.Now())

	weak := p.ConfirmVolume(1100, models.SignalBuy, 1.0)
	strong := p.ConfirmVolume(1100, models.SignalBuy, 0.0)
	// Low strength shrinks the adjusted threshold, so the weaker candidate
	// confirms on volume it could not carry at full conviction.
	if weak.Confirmed {
		t.Fatalf("full-strength candidate should need 1.2x: %+v", weak)
	}
	if !strong.Confirmed {
		t.Fatalf("zero-strength candidate should confirm at 0.96x threshold: %+v", strong)
	}
	if strong.ThresholdUsed >= weak.ThresholdUsed {
		t.Fatalf("threshold should grow with strength: %v vs %v", strong.ThresholdUsed, weak.ThresholdUsed)
	}
}

func TestConfirmVolumeHighConfidenceBoost(t *testing.T) {
	cfg := DefaultConfig()
	p := mustProfile(t, cfg)
	fill(p, 1000, 50, time.Now())

	normal := p.ConfirmVolume(1500, models.SignalBuy, 1.0)
	spike := p.ConfirmVolume(2500, models.SignalBuy, 1.0)
	if !normal.Confirmed || !spike.Confirmed {
		t.Fatalf("both should confirm")
	}
	if spike.Confidence <= normal.Confidence {
		t.Fatalf("spike confidence %v should exceed normal %v", spike.Confidence, normal.Confidence)
	}
	cap := cfg.ConfidenceCap * cfg.ConfidenceBoost
	if spike.Confidence > cap+1e-9 {
		t.Fatalf("confidence %v above cap %v", spike.Confidence, cap)
	}
}

func TestMetricsRollingStats(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LookbackPeriod = 4
	p := mustProfile(t, cfg)

	ts := time.Now()
	for _, v := range []float64{10, 20, 30, 40, 50} {
		p.UpdateVolume(v, ts)
		ts = ts.Add(time.Second)
	}

	m := p.Metrics()
	if m.SampleCount != 4 {
		t.Fatalf("lookback should cap samples at 4, got %d", m.SampleCount)
	}
	// Window is 20,30,40,50.
	if math.Abs(m.AvgVolume-35) > 1e-9 {
		t.Fatalf("unexpected average %v", m.AvgVolume)
	}
	wantStd := math.Sqrt((400.0 + 900 + 1600 + 2500) / 4.0 - 35*35)
	if math.Abs(m.VolumeStdDev-wantStd) > 1e-9 {
		t.Fatalf("unexpected stddev %v, want %v", m.VolumeStdDev, wantStd)
	}
}

func TestPercentileRefreshInterval(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PercentileUpdateInterval = 10 * time.Second
	p := mustProfile(t, cfg)

	start := time.Now()
	m1 := p.UpdateVolume(100, start)
	// Within the interval the breakpoints stay frozen even as data changes.
	m2 := p.UpdateVolume(10_000, start.Add(time.Second))
	if m2.Percentiles != m1.Percentiles {
		t.Fatalf("breakpoints refreshed inside the interval")
	}
	m3 := p.UpdateVolume(10_000, start.Add(11*time.Second))
	if m3.Percentiles == m1.Percentiles {
		t.Fatalf("breakpoints should refresh after the interval")
	}
}

func TestPercentileRankMonotonic(t *testing.T) {
	p := mustProfile(t, DefaultConfig())
	ts := time.Now()
	for i := 1; i <= 200; i++ {
		p.UpdateVolume(float64(i*10), ts.Add(time.Duration(i)*6*time.Second))
	}
	pcts := p.Metrics().Percentiles

	prev := -1.0
	for _, v := range []float64{5, 100, 500, 1000, 1500, 1900, 2500} {
		r := percentileRank(v, pcts)
		if r < prev {
			t.Fatalf("rank not monotonic at %v: %v < %v", v, r, prev)
		}
		if r < 0 || r > 100 {
			t.Fatalf("rank out of bounds at %v: %v", v, r)
		}
		prev = r
	}
}

func TestQuantileInterpolation(t *testing.T) {
	sorted := []float64{10, 20, 30, 40}
	if q := quantile(sorted, 0.5); math.Abs(q-25) > 1e-9 {
		t.Fatalf("unexpected median %v", q)
	}
	if q := quantile(sorted, 0); q != 10 {
		t.Fatalf("unexpected q0 %v", q)
	}
	if q := quantile(sorted, 1); q != 40 {
		t.Fatalf("unexpected q1 %v", q)
	}
}

func TestProfileReset(t *testing.T) {
	p := mustProfile(t, DefaultConfig())
	fill(p, 1000, 50, time.Now())
	p.Reset()
	if p.Metrics().SampleCount != 0 {
		t.Fatalf("reset did not clear window")
	}
	if vc := p.ConfirmVolume(1000, models.SignalBuy, 0.5); vc.Reason != ReasonInsufficientHistory {
		t.Fatalf("reset profile should report insufficient history, got %q", vc.Reason)
	}
}
