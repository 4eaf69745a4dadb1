// Package market builds and stores rolling candle history from raw trade
// ticks. The aggregator and cache hold the only mutable market state in the
// process; all mutation happens on the decision loop goroutine.
package market

import (
	"math"

	"github.com/fandresen/trAIding/internal/domain"
)

// Aggregator folds raw trade ticks into in-progress candles, one builder per
// timeframe. It never touches the cache: when a tick opens a new interval the
// previous candle is returned to the caller as closed, which keeps the
// aggregator identical between live and replay runs.
//
// Callers must filter malformed ticks with ValidTick before Update.
type Aggregator struct {
	builders map[domain.Timeframe]*domain.Candle
}

// NewAggregator creates an empty aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{builders: make(map[domain.Timeframe]*domain.Candle)}
}

// Update applies one tick to the given timeframe. It returns the previously
// in-progress candle iff the tick opened a new interval, nil otherwise.
func (a *Aggregator) Update(tf domain.Timeframe, tick domain.Tick) *domain.Candle {
	intervalMs := tf.IntervalMs()
	if intervalMs == 0 {
		return nil
	}

	openTime := tick.TimestampMs / intervalMs * intervalMs

	cur := a.builders[tf]
	if cur == nil || cur.OpenTime != openTime {
		a.builders[tf] = &domain.Candle{
			OpenTime: openTime,
			Open:     tick.Price,
			High:     tick.Price,
			Low:      tick.Price,
			Close:    tick.Price,
			Volume:   tick.Quantity,
		}
		if cur != nil && cur.OpenTime < openTime {
			return cur
		}
		return nil
	}

	if tick.Price > cur.High {
		cur.High = tick.Price
	}
	if tick.Price < cur.Low {
		cur.Low = tick.Price
	}
	cur.Close = tick.Price
	cur.Volume += tick.Quantity
	return nil
}

// Current returns a copy of the in-progress candle for tf, if any.
func (a *Aggregator) Current(tf domain.Timeframe) (domain.Candle, bool) {
	cur, ok := a.builders[tf]
	if !ok {
		return domain.Candle{}, false
	}
	return *cur, true
}

// ValidTick reports whether a tick carries a finite positive price and a
// finite non-negative quantity.
func ValidTick(t domain.Tick) bool {
	if math.IsNaN(t.Price) || math.IsInf(t.Price, 0) || t.Price <= 0 {
		return false
	}
	if math.IsNaN(t.Quantity) || math.IsInf(t.Quantity, 0) || t.Quantity < 0 {
		return false
	}
	return true
}
