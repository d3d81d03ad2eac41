package models

import "time"

// Tick is a single market update for one symbol. Immutable after creation.
type Tick struct {
	Symbol    string
	Price     float64
	Volume    float64
	Timestamp time.Time
}

// SignalClass enumerates the candidate signal types the engine confirms.
type SignalClass int

const (
	SignalBuy SignalClass = iota
	SignalSell
	SignalOversold
	SignalOverbought
)

// String returns the wire name of the signal class.
func (c SignalClass) String() string {
	switch c {
	case SignalBuy:
		return "buy"
	case SignalSell:
		return "sell"
	case SignalOversold:
		return "oversold"
	case SignalOverbought:
		return "overbought"
	default:
		return "unknown"
	}
}

// ParseSignalClass converts a wire name to a SignalClass.
func ParseSignalClass(s string) (SignalClass, bool) {
	switch s {
	case "buy":
		return SignalBuy, true
	case "sell":
		return SignalSell, true
	case "oversold":
		return SignalOversold, true
	case "overbought":
		return SignalOverbought, true
	default:
		return SignalBuy, false
	}
}

// IsBullish reports whether the class expects upward movement.
func (c SignalClass) IsBullish() bool {
	switch c {
	case SignalBuy, SignalOversold:
		return true
	case SignalSell, SignalOverbought:
		return false
	default:
		return false
	}
}

// TrendDirection is the trend reading of one timeframe.
type TrendDirection int

const (
	TrendNeutral TrendDirection = iota
	TrendBullish
	TrendBearish
)

func (d TrendDirection) String() string {
	switch d {
	case TrendBullish:
		return "bullish"
	case TrendBearish:
		return "bearish"
	default:
		return "neutral"
	}
}

// ParseTrendDirection converts a wire name to a TrendDirection.
func ParseTrendDirection(s string) TrendDirection {
	switch s {
	case "bullish", "up":
		return TrendBullish
	case "bearish", "down":
		return TrendBearish
	default:
		return TrendNeutral
	}
}

// Candidate is a signal proposed by an external strategy, pending confirmation.
type Candidate struct {
	Symbol    string
	Class     SignalClass
	Strength  float64 // strategy conviction in [0,1]
	Price     float64
	Volume    float64
	Timestamp time.Time
}
