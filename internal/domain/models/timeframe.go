package models

import "time"

// Timeframe identifies a trend aggregation window.
type Timeframe string

const (
	TF15m Timeframe = "15m"
	TF1h  Timeframe = "1h"
	TF4h  Timeframe = "4h"
	TF1d  Timeframe = "1d"
)

// IsValidTimeframe returns true if tf is a supported timeframe.
func IsValidTimeframe(tf Timeframe) bool {
	switch tf {
	case TF15m, TF1h, TF4h, TF1d:
		return true
	default:
		return false
	}
}

// NormalizeTimeframe converts a raw string to a valid timeframe (or the default).
func NormalizeTimeframe(s string) Timeframe {
	if s == "" {
		return TF1h
	}
	tf := Timeframe(s)
	if IsValidTimeframe(tf) {
		return tf
	}
	return TF1h
}

// DefaultSnapshotTTL is the cache validity for timeframes without an explicit TTL.
const DefaultSnapshotTTL = 60 * time.Second

// DefaultTTLs returns the per-timeframe cache validity durations. Shorter
// timeframes go stale faster.
func DefaultTTLs() map[Timeframe]time.Duration {
	return map[Timeframe]time.Duration{
		TF15m: 30 * time.Second,
		TF1h:  300 * time.Second,
		TF1d:  1800 * time.Second,
	}
}

// DefaultWeights returns the per-timeframe consensus weights. Longer
// timeframes carry more weight.
func DefaultWeights() map[Timeframe]float64 {
	return map[Timeframe]float64{
		TF15m: 1.0,
		TF1h:  1.5,
		TF1d:  2.0,
	}
}
