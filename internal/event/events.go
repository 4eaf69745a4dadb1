// Package event defines the typed messages delivered to the decision loop.
// Stream workers produce them; the loop is the single consumer.
package event

import (
	"sync"

	"github.com/fandresen/trAIding/internal/domain"
)

// Type defines the type of event.
type Type uint16

const (
	EvTradeTick Type = iota + 1
	EvMarkPrice
)

// Event is the interface for all decision-loop events.
type Event interface {
	GetTs() int64
	GetType() Type
}

// TradeTickEvent carries one raw trade from the aggTrade stream.
type TradeTickEvent struct {
	Symbol string      `json:"symbol"`
	Tick   domain.Tick `json:"tick"`
}

func (e *TradeTickEvent) GetTs() int64  { return e.Tick.TimestampMs }
func (e *TradeTickEvent) GetType() Type { return EvTradeTick }

// MarkPriceEvent carries one mark-price update for the managed position.
type MarkPriceEvent struct {
	Symbol string  `json:"symbol"`
	Price  float64 `json:"price"`
	Ts     int64   `json:"ts"`
}

func (e *MarkPriceEvent) GetTs() int64  { return e.Ts }
func (e *MarkPriceEvent) GetType() Type { return EvMarkPrice }

// tradeTickPool recycles TradeTickEvent allocations on the tick hotpath.
var tradeTickPool = sync.Pool{
	New: func() any { return new(TradeTickEvent) },
}

// AcquireTradeTickEvent returns a zeroed event from the pool.
func AcquireTradeTickEvent() *TradeTickEvent {
	return tradeTickPool.Get().(*TradeTickEvent)
}

// ReleaseTradeTickEvent resets the event and returns it to the pool. The
// caller must not touch the event afterwards.
func ReleaseTradeTickEvent(e *TradeTickEvent) {
	*e = TradeTickEvent{}
	tradeTickPool.Put(e)
}
