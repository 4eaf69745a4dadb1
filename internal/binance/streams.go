package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"

	"github.com/fandresen/trAIding/internal/domain"
	"github.com/fandresen/trAIding/internal/event"
	"github.com/fandresen/trAIding/internal/infra"
)

// EventSink receives stream events without blocking. A false return means
// the event was dropped.
type EventSink interface {
	Offer(ev event.Event) bool
}

// TradeStream feeds the aggTrade stream for one symbol into the sink.
type TradeStream struct {
	wsURL  string
	symbol string
	sink   EventSink
	worker *infra.WSWorker
}

// NewTradeStream creates the stream; Start connects it.
func NewTradeStream(wsURL, symbol string) *TradeStream {
	s := &TradeStream{wsURL: strings.TrimRight(wsURL, "/"), symbol: symbol}
	s.worker = infra.NewWSWorker(s)
	return s
}

// Start connects the stream and begins delivering ticks to sink.
func (s *TradeStream) Start(ctx context.Context, sink EventSink) {
	s.sink = sink
	s.worker.Start(ctx)
}

func (s *TradeStream) Stop() { s.worker.Stop() }

func (s *TradeStream) ID() string { return "aggtrade-" + strings.ToLower(s.symbol) }

func (s *TradeStream) URL() string {
	return s.wsURL + "/ws/" + strings.ToLower(s.symbol) + "@aggTrade"
}

func (s *TradeStream) OnConnect(ctx context.Context, conn *websocket.Conn) error { return nil }

type aggTradeMessage struct {
	EventType string `json:"e"`
	Price     string `json:"p"`
	Quantity  string `json:"q"`
	TradeTime int64  `json:"T"`
}

func (s *TradeStream) OnMessage(ctx context.Context, msg []byte) {
	var m aggTradeMessage
	if err := json.Unmarshal(msg, &m); err != nil || m.EventType != "aggTrade" {
		return
	}

	price, err := strconv.ParseFloat(m.Price, 64)
	if err != nil {
		return
	}
	qty, err := strconv.ParseFloat(m.Quantity, 64)
	if err != nil {
		return
	}

	ev := event.AcquireTradeTickEvent()
	ev.Symbol = s.symbol
	ev.Tick = domain.Tick{Price: price, Quantity: qty, TimestampMs: m.TradeTime}
	if !s.sink.Offer(ev) {
		// The sink owns accepted events; dropped ones come back to the pool
		// here.
		event.ReleaseTradeTickEvent(ev)
	}
}

// MarkPriceStream is a long-lived connection that the position monitor
// subscribes to while a trade is managed. It implements manager.PriceFeed.
type MarkPriceStream struct {
	wsURL  string
	sink   EventSink
	worker *infra.WSWorker

	mu     sync.Mutex
	symbol string // active subscription, "" when idle
	nextID atomic.Int64
}

// NewMarkPriceStream creates the stream; Start connects it.
func NewMarkPriceStream(wsURL string) *MarkPriceStream {
	s := &MarkPriceStream{wsURL: strings.TrimRight(wsURL, "/")}
	s.worker = infra.NewWSWorker(s)
	return s
}

// Start connects the stream and begins delivering updates to sink.
func (s *MarkPriceStream) Start(ctx context.Context, sink EventSink) {
	s.sink = sink
	s.worker.Start(ctx)
}

func (s *MarkPriceStream) Stop() { s.worker.Stop() }

func (s *MarkPriceStream) ID() string  { return "markprice" }
func (s *MarkPriceStream) URL() string { return s.wsURL + "/ws" }

// OnConnect restores the active subscription after a reconnect.
func (s *MarkPriceStream) OnConnect(ctx context.Context, conn *websocket.Conn) error {
	s.mu.Lock()
	symbol := s.symbol
	s.mu.Unlock()

	if symbol == "" {
		return nil
	}
	return s.send("SUBSCRIBE", symbol)
}

// Subscribe starts mark-price delivery for symbol.
func (s *MarkPriceStream) Subscribe(symbol string) error {
	s.mu.Lock()
	s.symbol = symbol
	s.mu.Unlock()

	if err := s.send("SUBSCRIBE", symbol); err != nil {
		s.mu.Lock()
		s.symbol = ""
		s.mu.Unlock()
		return fmt.Errorf("subscribe %s: %w", symbol, err)
	}
	return nil
}

// Unsubscribe stops mark-price delivery. Errors are logged, not returned:
// teardown must not fail the caller.
func (s *MarkPriceStream) Unsubscribe(symbol string) {
	s.mu.Lock()
	s.symbol = ""
	s.mu.Unlock()

	if err := s.send("UNSUBSCRIBE", symbol); err != nil {
		slog.Warn("mark price unsubscribe failed", slog.String("symbol", symbol), slog.Any("error", err))
	}
}

func (s *MarkPriceStream) send(method, symbol string) error {
	msg, err := json.Marshal(map[string]any{
		"method": method,
		"params": []string{strings.ToLower(symbol) + "@markPrice@1s"},
		"id":     s.nextID.Add(1),
	})
	if err != nil {
		return err
	}
	return s.worker.Write(websocket.TextMessage, msg)
}

type markPriceMessage struct {
	EventType string `json:"e"`
	EventTime int64  `json:"E"`
	Symbol    string `json:"s"`
	MarkPrice string `json:"p"`
}

func (s *MarkPriceStream) OnMessage(ctx context.Context, msg []byte) {
	var m markPriceMessage
	if err := json.Unmarshal(msg, &m); err != nil || m.EventType != "markPriceUpdate" {
		return
	}

	price, err := strconv.ParseFloat(m.MarkPrice, 64)
	if err != nil {
		return
	}
	s.sink.Offer(&event.MarkPriceEvent{Symbol: m.Symbol, Price: price, Ts: m.EventTime})
}
