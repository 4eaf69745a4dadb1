package domain

// Side is the direction of a trade or order.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Opposite returns the closing side for a position opened with s.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// Signal is the output of the signal engine.
type Signal string

const (
	SignalBuy  Signal = "BUY"
	SignalSell Signal = "SELL"
	SignalWait Signal = "WAIT"
)

// Trade is one managed position from entry fill to close. Exactly one Trade
// is open at a time; the broker engine creates it and the position monitor
// mutates it when the stop type is upgraded.
type Trade struct {
	ID              string  `json:"id"`
	Symbol          string  `json:"symbol"`
	Side            Side    `json:"side"`
	EntryPrice      float64 `json:"entry_price"`
	ExitPrice       float64 `json:"exit_price"`
	Size            float64 `json:"size"`
	Pnl             float64 `json:"pnl"`
	Timestamp       int64   `json:"timestamp"`
	StopLossPrice   float64 `json:"stop_loss_price,omitempty"`
	TakeProfitPrice float64 `json:"take_profit_price,omitempty"`
	StopLossID      string  `json:"stop_loss_order_id,omitempty"`
	TakeProfitID    string  `json:"take_profit_order_id,omitempty"`
	IsTrailingActive bool   `json:"is_trailing_active"`
}

// IsOpen reports whether the trade has not yet been closed.
func (t *Trade) IsOpen() bool {
	return t.ExitPrice == 0
}
