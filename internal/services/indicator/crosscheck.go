package indicator

import (
	"fmt"
	"math"

	applogger "SigPulse/pkg/logger"
)

// maybeCrossCheck periodically recomputes RSI from the retained price window
// and compares it against the incremental value. The window-bounded replay
// converges to the incremental result because Wilder smoothing forgets
// exponentially, so any drift above tolerance indicates accumulated error.
func (s *StochRSI) maybeCrossCheck(incremental float64) error {
	if s.cfg.CheckMode == CheckOff || s.cfg.CheckInterval <= 0 {
		return nil
	}
	if s.updates%s.cfg.CheckInterval != 0 {
		return nil
	}

	recomputed, ok := ReplayRSI(s.history.Values(), s.cfg.RSIPeriod)
	if !ok {
		return nil
	}
	diff := math.Abs(recomputed - incremental)
	if diff <= s.cfg.CheckTolerance {
		return nil
	}

	if s.cfg.CheckMode == CheckStrict {
		return fmt.Errorf("rsi cross-check mismatch for %s: incremental=%.4f recomputed=%.4f diff=%.4f",
			s.symbol, incremental, recomputed, diff)
	}
	if s.logger != nil {
		s.logger.Warn("rsi cross-check mismatch",
			applogger.String("symbol", s.symbol),
			applogger.Any("incremental", incremental),
			applogger.Any("recomputed", recomputed),
			applogger.Any("diff", diff),
		)
	}
	return nil
}

// ReplayRSI recomputes RSI from scratch over a price sequence using the same
// Wilder recurrence as the incremental path. It returns false when the
// sequence is too short for warm-up.
func ReplayRSI(prices []float64, period int) (float64, bool) {
	if period <= 0 || len(prices) < period+1 {
		return 0, false
	}
	n := float64(period)
	var avgGain, avgLoss float64
	for i := 1; i < len(prices); i++ {
		delta := prices[i] - prices[i-1]
		var gain, loss float64
		if delta > 0 {
			gain = delta
		} else {
			loss = -delta
		}
		avgGain = avgGain*(1-1/n) + gain/n
		avgLoss = avgLoss*(1-1/n) + loss/n
	}
	return rsiValue(avgGain, avgLoss), true
}
