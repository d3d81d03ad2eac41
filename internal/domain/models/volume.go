package models

import "time"

// PercentileSet holds cached volume distribution breakpoints.
type PercentileSet struct {
	P25 float64
	P50 float64
	P75 float64
	P90 float64
	P95 float64
}

// VolumeMetrics is the rolling volume statistic view for one symbol.
// Percentiles are refreshed on a timer, not per tick.
type VolumeMetrics struct {
	AvgVolume    float64
	VolumeStdDev float64
	Percentiles  PercentileSet
	SampleCount  int
	LastUpdate   time.Time
}

// VolumeConfirmation is the volume check result for a candidate signal.
type VolumeConfirmation struct {
	Confirmed      bool
	RelativeVolume float64
	Percentile     float64
	Confidence     float64
	ThresholdUsed  float64
	Reason         string
}
