package consensus

import (
	"strings"
	"testing"
	"time"

	"SigPulse/internal/domain/models"
)

func mustScorer(t *testing.T) *Scorer {
	t.Helper()
	s, err := NewScorer(DefaultScorerConfig())
	if err != nil {
		t.Fatalf("NewScorer: %v", err)
	}
	return s
}

func trendSnap(tf models.Timeframe, dir models.TrendDirection, conf float64) *models.TimeframeSnapshot {
	return &models.TimeframeSnapshot{
		Symbol:     "BTCUSDT",
		Timeframe:  tf,
		Direction:  dir,
		Strength:   0.8,
		Confidence: conf,
		FetchedAt:  time.Now(),
	}
}

func bullishCandidate(strength float64) models.Candidate {
	return models.Candidate{
		Symbol:    "BTCUSDT",
		Class:     models.SignalOversold,
		Strength:  strength,
		Price:     40000,
		Timestamp: time.Now(),
	}
}

func TestScoreInsufficientData(t *testing.T) {
	s := mustScorer(t)

	res := s.Score(bullishCandidate(1.0), map[models.Timeframe]*models.TimeframeSnapshot{
		models.TF1h: trendSnap(models.TF1h, models.TrendBullish, 1.0),
	})
	if res.Approved {
		t.Fatalf("one timeframe must not approve")
	}
	if res.Reason != ReasonInsufficientData {
		t.Fatalf("reason = %q, want %q", res.Reason, ReasonInsufficientData)
	}
}

func TestScoreNilSnapshotsIgnored(t *testing.T) {
	s := mustScorer(t)

	res := s.Score(bullishCandidate(1.0), map[models.Timeframe]*models.TimeframeSnapshot{
		models.TF15m: trendSnap(models.TF15m, models.TrendBullish, 1.0),
		models.TF1h:  nil,
		models.TF1d:  nil,
	})
	if res.Reason != ReasonInsufficientData {
		t.Fatalf("nil snapshots must not count as data, got %q", res.Reason)
	}
}

func TestScoreFullConsensusHighConfidence(t *testing.T) {
	s := mustScorer(t)

	res := s.Score(bullishCandidate(1.0), map[models.Timeframe]*models.TimeframeSnapshot{
		models.TF15m: trendSnap(models.TF15m, models.TrendBullish, 1.0),
		models.TF1h:  trendSnap(models.TF1h, models.TrendBullish, 1.0),
		models.TF1d:  trendSnap(models.TF1d, models.TrendBullish, 1.0),
	})
	if !res.Approved || !res.ConsensusAchieved {
		t.Fatalf("full agreement should approve: %+v", res)
	}
	if res.AgreementRatio != 1.0 {
		t.Fatalf("ratio = %v, want 1.0", res.AgreementRatio)
	}
	if res.Reason != ReasonHighConfidence {
		t.Fatalf("reason = %q, want %q", res.Reason, ReasonHighConfidence)
	}
	if res.Confidence != 1.0 {
		t.Fatalf("confidence must cap at 1.0, got %v", res.Confidence)
	}
	if len(res.Aligned) != 3 || len(res.Conflicting) != 0 {
		t.Fatalf("unexpected alignment lists: %+v", res)
	}
}

func TestScoreConsensusBelowHighConfidence(t *testing.T) {
	s := mustScorer(t)

	// All aligned at confidence 0.8 gives ratio 0.8: consensus but not high.
	res := s.Score(bullishCandidate(0.9), map[models.Timeframe]*models.TimeframeSnapshot{
		models.TF15m: trendSnap(models.TF15m, models.TrendBullish, 0.8),
		models.TF1h:  trendSnap(models.TF1h, models.TrendBullish, 0.8),
		models.TF1d:  trendSnap(models.TF1d, models.TrendBullish, 0.8),
	})
	if !res.Approved || res.Reason != ReasonConsensus {
		t.Fatalf("expected plain consensus, got %+v", res)
	}
	want := 0.8 * 0.9 * 1.2
	if diff := res.Confidence - want; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("confidence = %v, want %v", res.Confidence, want)
	}
}

func TestScoreConflictLowersRatio(t *testing.T) {
	s := mustScorer(t)

	// 1h (weight 1.5) disagrees: aligned 3.0 of 4.5 gives ratio 0.667,
	// below the consensus threshold.
	snaps := map[models.Timeframe]*models.TimeframeSnapshot{
		models.TF15m: trendSnap(models.TF15m, models.TrendBullish, 1.0),
		models.TF1h:  trendSnap(models.TF1h, models.TrendBearish, 1.0),
		models.TF1d:  trendSnap(models.TF1d, models.TrendBullish, 1.0),
	}

	res := s.Score(bullishCandidate(0.5), snaps)
	if res.Approved {
		t.Fatalf("weak candidate without consensus should be rejected: %+v", res)
	}
	if !strings.HasPrefix(res.Reason, "consensus_not_reached") {
		t.Fatalf("reason = %q", res.Reason)
	}
	if len(res.Conflicting) != 1 || res.Conflicting[0] != models.TF1h {
		t.Fatalf("conflicting = %v, want [1h]", res.Conflicting)
	}
}

func TestScorePartialConsensusStrongCandidate(t *testing.T) {
	s := mustScorer(t)

	// Same 0.667 ratio as the conflict case, but candidate strength 0.9
	// clears the partial branch.
	snaps := map[models.Timeframe]*models.TimeframeSnapshot{
		models.TF15m: trendSnap(models.TF15m, models.TrendBullish, 1.0),
		models.TF1h:  trendSnap(models.TF1h, models.TrendBearish, 1.0),
		models.TF1d:  trendSnap(models.TF1d, models.TrendBullish, 1.0),
	}

	res := s.Score(bullishCandidate(0.9), snaps)
	if !res.Approved || res.Reason != ReasonPartialConsensus {
		t.Fatalf("expected partial consensus approval, got %+v", res)
	}
	if res.ConsensusAchieved {
		t.Fatalf("partial approval must not claim full consensus")
	}
	want := (3.0 / 4.5) * 0.9
	if diff := res.Confidence - want; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("confidence = %v, want %v", res.Confidence, want)
	}
}

func TestScoreNeutralNotConflicting(t *testing.T) {
	s := mustScorer(t)

	// Neutral 1h dilutes the ratio (3.0/4.5) without registering a conflict.
	res := s.Score(bullishCandidate(0.5), map[models.Timeframe]*models.TimeframeSnapshot{
		models.TF15m: trendSnap(models.TF15m, models.TrendBullish, 1.0),
		models.TF1h:  trendSnap(models.TF1h, models.TrendNeutral, 1.0),
		models.TF1d:  trendSnap(models.TF1d, models.TrendBullish, 1.0),
	})
	if res.Approved {
		t.Fatalf("diluted ratio with weak candidate should be rejected: %+v", res)
	}
	if len(res.Conflicting) != 0 {
		t.Fatalf("neutral timeframes are not conflicts: %v", res.Conflicting)
	}
	want := 3.0 / 4.5
	if diff := res.AgreementRatio - want; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("ratio = %v, want %v", res.AgreementRatio, want)
	}
}

func TestScoreBearishCandidateTargetsBearishTrend(t *testing.T) {
	s := mustScorer(t)

	cand := models.Candidate{
		Symbol:    "BTCUSDT",
		Class:     models.SignalOverbought,
		Strength:  1.0,
		Timestamp: time.Now(),
	}
	res := s.Score(cand, map[models.Timeframe]*models.TimeframeSnapshot{
		models.TF15m: trendSnap(models.TF15m, models.TrendBearish, 1.0),
		models.TF1h:  trendSnap(models.TF1h, models.TrendBearish, 1.0),
		models.TF1d:  trendSnap(models.TF1d, models.TrendBearish, 1.0),
	})
	if !res.Approved {
		t.Fatalf("bearish candidate with bearish agreement should approve: %+v", res)
	}
}

func TestNewScorerRejectsBadConfig(t *testing.T) {
	cfg := DefaultScorerConfig()
	cfg.MinimumTimeframes = 0
	if _, err := NewScorer(cfg); err == nil {
		t.Fatalf("expected error for zero minimum timeframes")
	}

	cfg = DefaultScorerConfig()
	cfg.ConsensusThreshold = 1.5
	if _, err := NewScorer(cfg); err == nil {
		t.Fatalf("expected error for out-of-range threshold")
	}
}
