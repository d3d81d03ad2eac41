package models

import "time"

// TimeframeSnapshot is one timeframe's trend reading for a symbol.
// Snapshots are immutable once created; a refresh replaces the whole value.
type TimeframeSnapshot struct {
	Symbol     string
	Timeframe  Timeframe
	Direction  TrendDirection
	Strength   float64
	Confidence float64
	FetchedAt  time.Time
}

// ConsensusResult is the multi-timeframe agreement verdict for a candidate.
type ConsensusResult struct {
	Approved          bool
	ConsensusAchieved bool
	AgreementRatio    float64
	Confidence        float64
	Aligned           []Timeframe
	Conflicting       []Timeframe
	Reason            string
}

// ConfirmedSignal is the combined decision emitted to the strategy consumer.
type ConfirmedSignal struct {
	Symbol         string
	Class          SignalClass
	Approved       bool
	Confidence     float64
	Reasons        []string
	Volume         *VolumeConfirmation
	Consensus      *ConsensusResult
	ProcessingTime time.Duration
	Timestamp      time.Time
}

// CacheStats reports snapshot cache effectiveness counters.
type CacheStats struct {
	Hits    int64
	Misses  int64
	Expired int64
	Entries int
}
