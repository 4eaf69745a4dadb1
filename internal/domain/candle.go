package domain

import "fmt"

// Timeframe identifies a candle interval ("1m", "5m").
type Timeframe string

const (
	Timeframe1m Timeframe = "1m"
	Timeframe5m Timeframe = "5m"
)

// IntervalMs returns the interval length in milliseconds, or 0 when unknown.
func (tf Timeframe) IntervalMs() int64 {
	switch tf {
	case Timeframe1m:
		return 60_000
	case Timeframe5m:
		return 300_000
	default:
		return 0
	}
}

// Candle is a single OHLCV bar. OpenTime is a Unix millisecond timestamp
// aligned to the interval boundary.
type Candle struct {
	OpenTime int64   `json:"open_time"`
	Open     float64 `json:"open"`
	High     float64 `json:"high"`
	Low      float64 `json:"low"`
	Close    float64 `json:"close"`
	Volume   float64 `json:"volume"`
}

// Validate checks the internal OHLC invariant.
func (c Candle) Validate() error {
	if c.High < c.Open || c.High < c.Close {
		return fmt.Errorf("candle %d: high %f below open/close", c.OpenTime, c.High)
	}
	if c.Low > c.Open || c.Low > c.Close {
		return fmt.Errorf("candle %d: low %f above open/close", c.OpenTime, c.Low)
	}
	if c.Volume < 0 {
		return fmt.Errorf("candle %d: negative volume %f", c.OpenTime, c.Volume)
	}
	return nil
}

// Tick is a single trade from the exchange stream.
type Tick struct {
	Price       float64
	Quantity    float64
	TimestampMs int64
}
