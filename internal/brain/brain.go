// Package brain turns candle history into a BUY/SELL/WAIT decision. It is a
// pure function over its inputs; the decision loop owns when it runs.
package brain

import (
	"log/slog"

	"github.com/fandresen/trAIding/internal/domain"
	"github.com/fandresen/trAIding/internal/indicator"
)

const (
	trendEMAPeriod = 20
	rsiPeriod      = 14
	buyRSICeiling  = 55
	sellRSIFloor   = 45
)

// Decide combines a higher-timeframe trend filter with lower-timeframe RSI
// momentum: BUY when the 5m close sits above its EMA20 and the 1m RSI is
// rising from below 55, SELL mirrored. Anything else is WAIT.
func Decide(candles1m, candles5m []domain.Candle) domain.Signal {
	ema5m := indicator.EMA(closes(candles5m), trendEMAPeriod)
	if ema5m == nil {
		slog.Debug("brain: not enough 5m data for trend EMA")
		return domain.SignalWait
	}
	lastClose5m := candles5m[len(candles5m)-1].Close
	uptrend := lastClose5m > ema5m[len(ema5m)-1]

	rsi := indicator.RSI(closes(candles1m), rsiPeriod)
	if len(rsi) < 2 {
		slog.Debug("brain: not enough 1m data for RSI momentum")
		return domain.SignalWait
	}
	rsiCur := rsi[len(rsi)-1]
	rsiPrev := rsi[len(rsi)-2]

	switch {
	case uptrend && rsiPrev < buyRSICeiling && rsiCur > rsiPrev:
		return domain.SignalBuy
	case !uptrend && rsiPrev > sellRSIFloor && rsiCur < rsiPrev:
		return domain.SignalSell
	default:
		return domain.SignalWait
	}
}

func closes(candles []domain.Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}
