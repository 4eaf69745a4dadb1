package market

import (
	"log/slog"

	"github.com/fandresen/trAIding/internal/domain"
)

type series struct {
	candles  []domain.Candle
	capacity int
}

// Cache is a fixed-capacity FIFO store of closed candles per timeframe.
// It is seeded once from REST history and extended by the decision loop;
// it is not safe for concurrent mutation.
type Cache struct {
	series map[domain.Timeframe]*series
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{series: make(map[domain.Timeframe]*series)}
}

// Initialize replaces the series for tf outright. Used once at startup with
// REST-fetched history; history beyond capacity is trimmed from the head.
func (c *Cache) Initialize(tf domain.Timeframe, candles []domain.Candle, capacity int) {
	s := &series{capacity: capacity}
	if len(candles) > capacity {
		candles = candles[len(candles)-capacity:]
	}
	s.candles = make([]domain.Candle, len(candles))
	copy(s.candles, candles)
	c.series[tf] = s
	slog.Info("candle cache initialized",
		slog.String("timeframe", string(tf)),
		slog.Int("candles", len(s.candles)),
		slog.Int("capacity", capacity))
}

// Append adds a closed candle to the tail, evicting from the head when the
// capacity is exceeded. Appending to an uninitialized timeframe is a no-op;
// consumers gate on Len before using cache contents anyway.
func (c *Cache) Append(tf domain.Timeframe, candle domain.Candle) {
	s, ok := c.series[tf]
	if !ok {
		slog.Warn("append to uninitialized candle cache, ignoring",
			slog.String("timeframe", string(tf)))
		return
	}
	s.candles = append(s.candles, candle)
	if len(s.candles) > s.capacity {
		s.candles = s.candles[1:]
	}
}

// Snapshot returns a copy of the current series for tf, oldest first.
// The copy is safe to retain across later appends.
func (c *Cache) Snapshot(tf domain.Timeframe) []domain.Candle {
	s, ok := c.series[tf]
	if !ok {
		return nil
	}
	out := make([]domain.Candle, len(s.candles))
	copy(out, s.candles)
	return out
}

// Len returns the current series length for tf.
func (c *Cache) Len(tf domain.Timeframe) int {
	s, ok := c.series[tf]
	if !ok {
		return 0
	}
	return len(s.candles)
}
