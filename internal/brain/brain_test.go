package brain

import (
	"testing"

	"github.com/fandresen/trAIding/internal/domain"
)

func series(prices []float64) []domain.Candle {
	out := make([]domain.Candle, len(prices))
	for i, p := range prices {
		out[i] = domain.Candle{OpenTime: int64(i) * 60_000, Open: p, High: p, Low: p, Close: p, Volume: 1}
	}
	return out
}

func ramp(n int, start, step float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	return out
}

func TestDecide_WaitWithoutData(t *testing.T) {
	if got := Decide(series(ramp(30, 100, 0)), series(ramp(5, 100, 0))); got != domain.SignalWait {
		t.Errorf("short 5m series: got %s, want WAIT", got)
	}
	if got := Decide(series(ramp(5, 100, 0)), series(ramp(30, 100, 0))); got != domain.SignalWait {
		t.Errorf("short 1m series: got %s, want WAIT", got)
	}
}

func TestDecide_BuyOnUptrendMomentum(t *testing.T) {
	// 5m rising above its EMA, 1m dipping then turning back up keeps RSI
	// below the ceiling while rising.
	c5m := series(ramp(40, 100, 0.5))

	prices1m := ramp(40, 110, -0.2)
	prices1m = append(prices1m, 102.5, 102.9)
	c1m := series(prices1m)

	if got := Decide(c1m, c5m); got != domain.SignalBuy {
		t.Errorf("got %s, want BUY", got)
	}
}

func TestDecide_SellOnDowntrendMomentum(t *testing.T) {
	c5m := series(ramp(40, 120, -0.5))

	prices1m := ramp(40, 100, 0.2)
	prices1m = append(prices1m, 107.5, 107.1)
	c1m := series(prices1m)

	if got := Decide(c1m, c5m); got != domain.SignalSell {
		t.Errorf("got %s, want SELL", got)
	}
}

func TestDecide_WaitAgainstTrend(t *testing.T) {
	// Uptrend on 5m but falling 1m momentum: no trade either way.
	c5m := series(ramp(40, 100, 0.5))
	prices1m := ramp(40, 100, 0.2)
	prices1m = append(prices1m, 107.5, 107.1)
	c1m := series(prices1m)

	if got := Decide(c1m, c5m); got != domain.SignalWait {
		t.Errorf("got %s, want WAIT", got)
	}
}
