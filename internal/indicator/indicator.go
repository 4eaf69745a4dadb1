// Package indicator provides technical indicator calculations over candle
// data. All functions are pure: candles in, values out, no retained state.
package indicator

import (
	"math"

	"github.com/fandresen/trAIding/internal/domain"
)

// minCandles is the longest lookback among the computed indicators (MACD slow
// period 26).
const minCandles = 26

// BollingerBands holds the 20-period, 2-stddev band values.
type BollingerBands struct {
	Upper  float64
	Middle float64
	Lower  float64
}

// MACD holds the 12/26/9 moving average convergence divergence values.
type MACD struct {
	Line      float64
	Signal    float64
	Histogram float64
}

// Analysis is the full indicator set computed over one candle series.
type Analysis struct {
	EMAFast8  float64
	EMASlow21 float64
	RSI14     float64
	Bollinger BollingerBands
	MACD      MACD
	OBV       float64
	ATR14     float64
}

// Compute calculates the complete indicator set for a candle series,
// oldest candle first. Returns ok=false when fewer than 26 candles are
// available.
func Compute(candles []domain.Candle) (Analysis, bool) {
	if len(candles) < minCandles {
		return Analysis{}, false
	}

	closes := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
	}

	macdLine, signal := macdSeries(closes)

	return Analysis{
		EMAFast8:  last(EMA(closes, 8)),
		EMASlow21: last(EMA(closes, 21)),
		RSI14:     last(RSI(closes, 14)),
		Bollinger: bollinger(closes, 20, 2),
		MACD: MACD{
			Line:      last(macdLine),
			Signal:    last(signal),
			Histogram: last(macdLine) - last(signal),
		},
		OBV:   OBV(candles),
		ATR14: ATR(candles, 14),
	}, true
}

// EMA returns the exponential moving average series for the given period.
// The result has len(values)-period+1 entries; the first is the SMA seed.
func EMA(values []float64, period int) []float64 {
	if len(values) < period {
		return nil
	}
	k := 2.0 / float64(period+1)

	var seed float64
	for _, v := range values[:period] {
		seed += v
	}
	seed /= float64(period)

	out := make([]float64, 0, len(values)-period+1)
	out = append(out, seed)
	ema := seed
	for _, v := range values[period:] {
		ema = (v-ema)*k + ema
		out = append(out, ema)
	}
	return out
}

// RSI returns the Wilder-smoothed relative strength index series.
func RSI(values []float64, period int) []float64 {
	if len(values) <= period {
		return nil
	}

	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		delta := values[i] - values[i-1]
		if delta > 0 {
			avgGain += delta
		} else {
			avgLoss -= delta
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)

	out := make([]float64, 0, len(values)-period)
	out = append(out, rsiValue(avgGain, avgLoss))

	for i := period + 1; i < len(values); i++ {
		delta := values[i] - values[i-1]
		gain, loss := 0.0, 0.0
		if delta > 0 {
			gain = delta
		} else {
			loss = -delta
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
		out = append(out, rsiValue(avgGain, avgLoss))
	}
	return out
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// ATR returns the latest Wilder-smoothed average true range.
func ATR(candles []domain.Candle, period int) float64 {
	if len(candles) <= period {
		return 0
	}

	trs := make([]float64, 0, len(candles)-1)
	for i := 1; i < len(candles); i++ {
		trs = append(trs, trueRange(candles[i], candles[i-1].Close))
	}

	var atr float64
	for _, tr := range trs[:period] {
		atr += tr
	}
	atr /= float64(period)

	for _, tr := range trs[period:] {
		atr = (atr*float64(period-1) + tr) / float64(period)
	}
	return atr
}

func trueRange(c domain.Candle, prevClose float64) float64 {
	tr := c.High - c.Low
	if v := math.Abs(c.High - prevClose); v > tr {
		tr = v
	}
	if v := math.Abs(c.Low - prevClose); v > tr {
		tr = v
	}
	return tr
}

// OBV returns the latest on-balance volume.
func OBV(candles []domain.Candle) float64 {
	var obv float64
	for i := 1; i < len(candles); i++ {
		switch {
		case candles[i].Close > candles[i-1].Close:
			obv += candles[i].Volume
		case candles[i].Close < candles[i-1].Close:
			obv -= candles[i].Volume
		}
	}
	return obv
}

func bollinger(values []float64, period int, stdDev float64) BollingerBands {
	if len(values) < period {
		return BollingerBands{}
	}
	window := values[len(values)-period:]

	var sum float64
	for _, v := range window {
		sum += v
	}
	mean := sum / float64(period)

	var variance float64
	for _, v := range window {
		variance += (v - mean) * (v - mean)
	}
	sigma := math.Sqrt(variance / float64(period))

	return BollingerBands{
		Upper:  mean + stdDev*sigma,
		Middle: mean,
		Lower:  mean - stdDev*sigma,
	}
}

func macdSeries(values []float64) (macd, signal []float64) {
	fast := EMA(values, 12)
	slow := EMA(values, 26)
	if slow == nil {
		return nil, nil
	}
	// Align: slow starts 14 entries later than fast.
	offset := len(fast) - len(slow)
	macd = make([]float64, len(slow))
	for i := range slow {
		macd[i] = fast[i+offset] - slow[i]
	}
	signal = EMA(macd, 9)
	if signal == nil {
		// Fewer than 9 MACD points: fall back to the raw line.
		signal = macd
	}
	return macd, signal
}

func last(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return values[len(values)-1]
}
