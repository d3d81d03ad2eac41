package volume

import (
	"fmt"
	"math"
	"time"

	"SigPulse/internal/domain/models"
	"SigPulse/internal/services/indicator"
)

const (
	ReasonConfirmed           = "volume_confirmed"
	ReasonBelowThreshold      = "relative_volume_below_threshold"
	ReasonInsufficientHistory = "insufficient_volume_history"
)

// Config holds the rolling-window and confirmation thresholds. The scaling
// constants are empirical defaults; override them per deployment rather than
// editing call sites.
type Config struct {
	LookbackPeriod           int
	PercentilePeriod         int
	PercentileUpdateInterval time.Duration

	BuyThreshold            float64
	SellThreshold           float64
	HighConfidenceThreshold float64

	ThresholdFloor  float64 // adjusted = threshold * (floor + slope*strength)
	ThresholdSlope  float64
	ConfidenceCap   float64
	ConfidenceBoost float64
}

// DefaultConfig returns the standard volume confirmation setup.
func DefaultConfig() Config {
	return Config{
		LookbackPeriod:           50,
		PercentilePeriod:         500,
		PercentileUpdateInterval: 5 * time.Second,
		BuyThreshold:             1.2,
		SellThreshold:            1.5,
		HighConfidenceThreshold:  2.0,
		ThresholdFloor:           0.8,
		ThresholdSlope:           0.4,
		ConfidenceCap:            2.0,
		ConfidenceBoost:          1.2,
	}
}

func (c Config) validate() error {
	if c.LookbackPeriod <= 0 {
		return fmt.Errorf("lookback period must be positive, got %d", c.LookbackPeriod)
	}
	if c.PercentilePeriod <= 0 {
		return fmt.Errorf("percentile period must be positive, got %d", c.PercentilePeriod)
	}
	if c.PercentileUpdateInterval <= 0 {
		return fmt.Errorf("percentile update interval must be positive, got %v", c.PercentileUpdateInterval)
	}
	if c.BuyThreshold <= 0 || c.SellThreshold <= 0 {
		return fmt.Errorf("thresholds must be positive (buy=%v sell=%v)", c.BuyThreshold, c.SellThreshold)
	}
	return nil
}

// Profile maintains rolling volume statistics for one symbol. Mean and
// variance come from a running sum and sum-of-squares over the lookback
// window; the percentile breakpoints over the longer window refresh at most
// once per PercentileUpdateInterval. Single writer per instance.
type Profile struct {
	cfg    Config
	symbol string

	look  *indicator.Ring
	sumSq float64

	pctWin     *indicator.Ring
	pcts       models.PercentileSet
	pctsAt     time.Time
	pctsValid  bool
	lastUpdate time.Time
}

// NewProfile creates per-symbol volume state. Invalid configuration fails
// here, not at first use.
func NewProfile(symbol string, cfg Config) (*Profile, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("volume config: %w", err)
	}
	return &Profile{
		cfg:    cfg,
		symbol: symbol,
		look:   indicator.NewRing(cfg.LookbackPeriod),
		pctWin: indicator.NewRing(cfg.PercentilePeriod),
	}, nil
}

// UpdateVolume folds one tick's volume into the rolling windows.
func (p *Profile) UpdateVolume(volume float64, ts time.Time) models.VolumeMetrics {
	if evicted, full := p.look.Push(volume); full {
		p.sumSq -= evicted * evicted
	}
	p.sumSq += volume * volume
	p.pctWin.Push(volume)
	p.lastUpdate = ts

	if !p.pctsValid || ts.Sub(p.pctsAt) >= p.cfg.PercentileUpdateInterval {
		p.pcts = computeBreakpoints(p.pctWin.Values())
		p.pctsAt = ts
		p.pctsValid = true
	}

	return p.Metrics()
}

// Metrics returns the current statistic view without mutating state.
func (p *Profile) Metrics() models.VolumeMetrics {
	n := float64(p.look.Len())
	var mean, stddev float64
	if n > 0 {
		mean = p.look.Sum() / n
		variance := p.sumSq/n - mean*mean
		if variance > 0 {
			stddev = math.Sqrt(variance)
		}
	}
	return models.VolumeMetrics{
		AvgVolume:    mean,
		VolumeStdDev: stddev,
		Percentiles:  p.pcts,
		SampleCount:  p.look.Len(),
		LastUpdate:   p.lastUpdate,
	}
}

// ConfirmVolume checks a candidate signal's volume against the rolling
// average. Thresholds are selected by signal class and scaled by the
// candidate strength.
func (p *Profile) ConfirmVolume(volume float64, class models.SignalClass, strength float64) models.VolumeConfirmation {
	avg := 0.0
	if p.look.Len() > 0 {
		avg = p.look.Sum() / float64(p.look.Len())
	}
	if avg <= 0 {
		return models.VolumeConfirmation{Reason: ReasonInsufficientHistory}
	}

	threshold := p.cfg.SellThreshold
	if class.IsBullish() {
		threshold = p.cfg.BuyThreshold
	}
	adjusted := threshold * (p.cfg.ThresholdFloor + p.cfg.ThresholdSlope*clamp01(strength))

	rel := volume / avg
	confidence := rel / adjusted
	if confidence > p.cfg.ConfidenceCap {
		confidence = p.cfg.ConfidenceCap
	}
	if rel >= p.cfg.HighConfidenceThreshold {
		confidence *= p.cfg.ConfidenceBoost
	}

	out := models.VolumeConfirmation{
		Confirmed:      rel >= adjusted,
		RelativeVolume: rel,
		Percentile:     percentileRank(volume, p.pcts),
		Confidence:     confidence,
		ThresholdUsed:  adjusted,
		Reason:         ReasonBelowThreshold,
	}
	if out.Confirmed {
		out.Reason = ReasonConfirmed
	}
	return out
}

// ConfirmRequest is one entry of a batch confirmation.
type ConfirmRequest struct {
	Volume   float64
	Class    models.SignalClass
	Strength float64
}

// ConfirmBatch confirms several candidates against the same window state.
func (p *Profile) ConfirmBatch(reqs []ConfirmRequest) []models.VolumeConfirmation {
	out := make([]models.VolumeConfirmation, len(reqs))
	for i, r := range reqs {
		out[i] = p.ConfirmVolume(r.Volume, r.Class, r.Strength)
	}
	return out
}

// Reset clears all window state.
func (p *Profile) Reset() {
	p.look.Reset()
	p.pctWin.Reset()
	p.sumSq = 0
	p.pcts = models.PercentileSet{}
	p.pctsValid = false
	p.pctsAt = time.Time{}
	p.lastUpdate = time.Time{}
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
