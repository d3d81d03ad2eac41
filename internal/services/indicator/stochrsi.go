package indicator

import (
	"fmt"
	"time"

	"SigPulse/internal/domain/models"
	applogger "SigPulse/pkg/logger"
)

// CheckMode controls the periodic incremental-vs-recompute cross-check.
type CheckMode int

const (
	CheckOff CheckMode = iota
	CheckLog
	CheckStrict
)

// ParseCheckMode converts a config string to a CheckMode.
func ParseCheckMode(s string) (CheckMode, error) {
	switch s {
	case "", "log":
		return CheckLog, nil
	case "off":
		return CheckOff, nil
	case "strict":
		return CheckStrict, nil
	default:
		return CheckOff, fmt.Errorf("invalid check mode %q", s)
	}
}

// Config holds StochRSI periods and cross-check settings.
type Config struct {
	RSIPeriod   int
	StochPeriod int
	KPeriod     int
	DPeriod     int

	CheckMode      CheckMode
	CheckInterval  int64   // updates between cross-checks; 0 disables
	CheckTolerance float64 // max allowed |incremental - recomputed|
	CheckWindow    int     // recent prices retained for recomputation
}

// DefaultConfig returns the standard StochRSI(14,14,3,3) setup with a
// log-only cross-check.
func DefaultConfig() Config {
	return Config{
		RSIPeriod:      14,
		StochPeriod:    14,
		KPeriod:        3,
		DPeriod:        3,
		CheckMode:      CheckLog,
		CheckInterval:  512,
		CheckTolerance: 0.01,
	}
}

func (c Config) validate() error {
	if c.RSIPeriod <= 0 {
		return fmt.Errorf("rsi period must be positive, got %d", c.RSIPeriod)
	}
	if c.StochPeriod <= 0 {
		return fmt.Errorf("stoch period must be positive, got %d", c.StochPeriod)
	}
	if c.KPeriod <= 0 {
		return fmt.Errorf("k period must be positive, got %d", c.KPeriod)
	}
	if c.DPeriod <= 0 {
		return fmt.Errorf("d period must be positive, got %d", c.DPeriod)
	}
	return nil
}

// StochRSI computes Wilder RSI and a stochastic oscillator over the RSI
// stream, incrementally. One instance serves one symbol and must have a
// single writer; updates are O(1) in the total ticks seen.
type StochRSI struct {
	cfg    Config
	symbol string

	prevPrice float64
	updates   int64

	avgGain float64
	avgLoss float64

	rsiWin  *Ring
	kWin    *Ring
	dWin    *Ring
	history *Ring

	logger *applogger.Logger
}

// NewStochRSI creates per-symbol indicator state. Invalid periods fail here,
// not at first use.
func NewStochRSI(symbol string, cfg Config) (*StochRSI, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("indicator config: %w", err)
	}
	if cfg.CheckWindow <= 0 {
		cfg.CheckWindow = 8 * cfg.RSIPeriod
	}
	return &StochRSI{
		cfg:     cfg,
		symbol:  symbol,
		rsiWin:  NewRing(cfg.StochPeriod),
		kWin:    NewRing(cfg.KPeriod),
		dWin:    NewRing(cfg.DPeriod),
		history: NewRing(cfg.CheckWindow),
	}, nil
}

// SetLogger attaches a logger for cross-check reporting.
func (s *StochRSI) SetLogger(l *applogger.Logger) { s.logger = l }

// UpdateCount returns how many prices have been consumed.
func (s *StochRSI) UpdateCount() int64 { return s.updates }

// Warm reports whether RSI warm-up has completed.
func (s *StochRSI) Warm() bool { return s.updates >= int64(s.cfg.RSIPeriod)+1 }

// Update consumes the next price. It returns nil until rsiPeriod+1 prices
// have been seen. In strict check mode a cross-check mismatch is returned as
// an error; in log mode it is logged and processing continues.
func (s *StochRSI) Update(price float64, ts time.Time) (*models.IndicatorSnapshot, error) {
	s.updates++
	s.history.Push(price)
	if s.updates == 1 {
		s.prevPrice = price
		return nil, nil
	}

	delta := price - s.prevPrice
	s.prevPrice = price

	var gain, loss float64
	if delta > 0 {
		gain = delta
	} else {
		loss = -delta
	}

	// Wilder smoothing with factor 1/N.
	n := float64(s.cfg.RSIPeriod)
	s.avgGain = s.avgGain*(1-1/n) + gain/n
	s.avgLoss = s.avgLoss*(1-1/n) + loss/n

	if !s.Warm() {
		return nil, nil
	}

	rsi := rsiValue(s.avgGain, s.avgLoss)
	s.rsiWin.Push(rsi)

	snap := &models.IndicatorSnapshot{
		Symbol:      s.symbol,
		RSI:         rsi,
		Timestamp:   ts,
		UpdateCount: s.updates,
	}

	if s.rsiWin.Full() {
		mn, mx := s.rsiWin.MinMax()
		rawK := 50.0
		if mx > mn {
			rawK = 100 * (rsi - mn) / (mx - mn)
		}
		s.kWin.Push(rawK)
		k := s.kWin.Mean()
		s.dWin.Push(k)

		snap.StochK = k
		snap.StochD = s.dWin.Mean()
		snap.StochReady = true
	}

	if err := s.maybeCrossCheck(rsi); err != nil {
		return snap, err
	}
	return snap, nil
}

// Reset clears all state, returning the instance to cold start.
func (s *StochRSI) Reset() {
	s.prevPrice = 0
	s.updates = 0
	s.avgGain = 0
	s.avgLoss = 0
	s.rsiWin.Reset()
	s.kWin.Reset()
	s.dWin.Reset()
	s.history.Reset()
}

func rsiValue(avgGain, avgLoss float64) float64 {
	// avgLoss == 0 covers the all-flat tie-break: RSI is defined as 100.
	if avgLoss <= 0 {
		return 100
	}
	if avgGain <= 0 {
		return 0
	}
	rsi := 100 - 100/(1+avgGain/avgLoss)
	if rsi < 0 {
		return 0
	}
	if rsi > 100 {
		return 100
	}
	return rsi
}
