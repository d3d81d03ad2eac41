package models

import "time"

// IndicatorSnapshot is the momentum reading after one tick. RSI and the
// stochastic values are in [0,100]. StochReady is false while the RSI window
// backing %K is still filling; %K/%D may reflect partial smoothing until the
// kPeriod/dPeriod windows are full.
type IndicatorSnapshot struct {
	Symbol      string
	RSI         float64
	StochK      float64
	StochD      float64
	StochReady  bool
	Timestamp   time.Time
	UpdateCount int64
}
