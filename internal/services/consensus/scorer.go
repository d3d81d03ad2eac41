package consensus

import (
	"fmt"
	"sort"

	"SigPulse/internal/domain/models"
)

const (
	ReasonInsufficientData = "insufficient_timeframe_data"
	ReasonConsensus        = "consensus_achieved"
	ReasonHighConfidence   = "high_confidence_consensus"
	ReasonPartialConsensus = "partial_consensus_high_strength"
)

// ScorerConfig holds the agreement thresholds and per-timeframe weights.
// The boost factors are empirical defaults kept overridable.
type ScorerConfig struct {
	ConsensusThreshold      float64
	HighConfidenceThreshold float64
	MinimumTimeframes       int

	PartialRatio    float64
	PartialStrength float64

	ApprovalBoost       float64
	HighConfidenceBoost float64

	Weights       map[models.Timeframe]float64
	DefaultWeight float64
}

// DefaultScorerConfig returns the standard consensus scoring setup.
func DefaultScorerConfig() ScorerConfig {
	return ScorerConfig{
		ConsensusThreshold:      0.75,
		HighConfidenceThreshold: 0.9,
		MinimumTimeframes:       2,
		PartialRatio:            0.6,
		PartialStrength:         0.8,
		ApprovalBoost:           1.2,
		HighConfidenceBoost:     1.1,
		Weights:                 models.DefaultWeights(),
		DefaultWeight:           1.0,
	}
}

func (c ScorerConfig) validate() error {
	if c.MinimumTimeframes <= 0 {
		return fmt.Errorf("minimum timeframes must be positive, got %d", c.MinimumTimeframes)
	}
	if c.ConsensusThreshold <= 0 || c.ConsensusThreshold > 1 {
		return fmt.Errorf("consensus threshold must be in (0,1], got %v", c.ConsensusThreshold)
	}
	return nil
}

// Scorer combines available trend snapshots into a weighted approval verdict.
type Scorer struct {
	cfg ScorerConfig
}

// NewScorer validates the thresholds up front.
func NewScorer(cfg ScorerConfig) (*Scorer, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("scorer config: %w", err)
	}
	if cfg.Weights == nil {
		cfg.Weights = models.DefaultWeights()
	}
	if cfg.DefaultWeight <= 0 {
		cfg.DefaultWeight = 1.0
	}
	return &Scorer{cfg: cfg}, nil
}

func (s *Scorer) weight(tf models.Timeframe) float64 {
	if w, ok := s.cfg.Weights[tf]; ok {
		return w
	}
	return s.cfg.DefaultWeight
}

// Score evaluates timeframe agreement for a candidate. Absent snapshots are
// simply not counted; they never appear in the aligned or conflicting lists.
func (s *Scorer) Score(cand models.Candidate, snaps map[models.Timeframe]*models.TimeframeSnapshot) models.ConsensusResult {
	valid := make([]models.Timeframe, 0, len(snaps))
	for tf, snap := range snaps {
		if snap != nil {
			valid = append(valid, tf)
		}
	}
	sort.Slice(valid, func(i, j int) bool { return valid[i] < valid[j] })

	if len(valid) < s.cfg.MinimumTimeframes {
		return models.ConsensusResult{Reason: ReasonInsufficientData}
	}

	target := models.TrendBearish
	if cand.Class.IsBullish() {
		target = models.TrendBullish
	}

	var alignedWeight, totalWeight float64
	var aligned, conflicting []models.Timeframe
	for _, tf := range valid {
		snap := snaps[tf]
		w := s.weight(tf)
		totalWeight += w
		switch snap.Direction {
		case target:
			alignedWeight += w * clamp01(snap.Confidence)
			aligned = append(aligned, tf)
		case models.TrendNeutral:
			// Counts toward total weight but is not a conflict.
		default:
			conflicting = append(conflicting, tf)
		}
	}

	ratio := 0.0
	if totalWeight > 0 {
		ratio = alignedWeight / totalWeight
	}

	res := models.ConsensusResult{
		AgreementRatio: ratio,
		Aligned:        aligned,
		Conflicting:    conflicting,
	}

	achieved := ratio >= s.cfg.ConsensusThreshold && len(aligned) >= s.cfg.MinimumTimeframes
	res.ConsensusAchieved = achieved

	switch {
	case achieved:
		res.Approved = true
		res.Confidence = capAt(ratio*cand.Strength*s.cfg.ApprovalBoost, 1.0)
		res.Reason = ReasonConsensus
		if ratio >= s.cfg.HighConfidenceThreshold {
			res.Confidence = capAt(res.Confidence*s.cfg.HighConfidenceBoost, 1.0)
			res.Reason = ReasonHighConfidence
		}
	case ratio >= s.cfg.PartialRatio && cand.Strength >= s.cfg.PartialStrength:
		res.Approved = true
		res.Confidence = capAt(ratio*cand.Strength, 1.0)
		res.Reason = ReasonPartialConsensus
	default:
		res.Reason = fmt.Sprintf("consensus_not_reached_ratio_%.2f", ratio)
	}
	return res
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func capAt(v, max float64) float64 {
	if v > max {
		return max
	}
	return v
}
