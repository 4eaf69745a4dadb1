// Package engine runs the single-threaded decision loop. All mutable trading
// state (aggregator, cache, managed-trade slot) is owned by the loop
// goroutine; workers only ever hand it events.
package engine

import (
	"context"
	"log/slog"

	"github.com/fandresen/trAIding/internal/domain"
	"github.com/fandresen/trAIding/internal/event"
	"github.com/fandresen/trAIding/internal/indicator"
	"github.com/fandresen/trAIding/internal/market"
	"github.com/fandresen/trAIding/internal/metrics"
)

// AccountSource builds a fresh account context. The loop calls it once per
// cycle and never caches the result.
type AccountSource interface {
	Snapshot(ctx context.Context) (domain.AccountContext, error)
}

// RiskGate decides whether the next trade may be opened.
type RiskGate interface {
	Check(acct domain.AccountContext) domain.RiskDecision
}

// Executor opens and protects a position.
type Executor interface {
	Execute(ctx context.Context, side domain.Side, analysis indicator.Analysis, acct domain.AccountContext, entryPrice float64) (*domain.Trade, error)
}

// PositionMonitor watches an open trade and consumes mark-price updates.
type PositionMonitor interface {
	Manage(trade *domain.Trade) error
	Busy() bool
	OnMarkPrice(ctx context.Context, price float64)
}

// SignalFunc computes the trading signal from the live candle views.
type SignalFunc func(candles1m, candles5m []domain.Candle) domain.Signal

// Config carries the loop parameters.
type Config struct {
	Symbol    string
	InboxSize int
	Min1m     int // minimum 1m candles before any decision
	Min5m     int // minimum 5m candles before any decision
}

// Loop is the core single-threaded decision processor. One tick, one cycle;
// ticks arriving while the inbox is full are dropped, never queued behind a
// slow cycle.
type Loop struct {
	cfg   Config
	inbox chan event.Event

	agg   *market.Aggregator
	cache *market.Cache

	account AccountSource
	gate    RiskGate
	exec    Executor
	monitor PositionMonitor
	signal  SignalFunc
}

// NewLoop creates a decision loop around an initialized cache.
func NewLoop(cfg Config, agg *market.Aggregator, cache *market.Cache, account AccountSource, gate RiskGate, exec Executor, monitor PositionMonitor, signal SignalFunc) *Loop {
	if cfg.InboxSize <= 0 {
		cfg.InboxSize = 1
	}
	return &Loop{
		cfg:     cfg,
		inbox:   make(chan event.Event, cfg.InboxSize),
		agg:     agg,
		cache:   cache,
		account: account,
		gate:    gate,
		exec:    exec,
		monitor: monitor,
		signal:  signal,
	}
}

// Offer hands an event to the loop without blocking. It reports whether the
// event was accepted; a full inbox means the loop is mid-cycle and the event
// is dropped.
func (l *Loop) Offer(ev event.Event) bool {
	select {
	case l.inbox <- ev:
		return true
	default:
		metrics.EventsDroppedTotal.WithLabelValues(typeName(ev.GetType())).Inc()
		return false
	}
}

// Run consumes events until ctx is cancelled. It MUST be the only goroutine
// calling into the aggregator, cache and monitor.
func (l *Loop) Run(ctx context.Context) {
	slog.Info("decision loop started",
		slog.String("symbol", l.cfg.Symbol),
		slog.Int("min_1m", l.cfg.Min1m),
		slog.Int("min_5m", l.cfg.Min5m))

	for {
		select {
		case <-ctx.Done():
			slog.Info("decision loop stopping")
			return
		case ev := <-l.inbox:
			l.process(ctx, ev)
		}
	}
}

func (l *Loop) process(ctx context.Context, ev event.Event) {
	switch e := ev.(type) {
	case *event.TradeTickEvent:
		tick := e.Tick
		event.ReleaseTradeTickEvent(e)
		l.onTick(ctx, tick)
	case *event.MarkPriceEvent:
		l.monitor.OnMarkPrice(ctx, e.Price)
	default:
		slog.Warn("unknown event type", slog.Any("type", ev.GetType()))
	}
}

// onTick folds the tick into both timeframes and runs one decision cycle.
func (l *Loop) onTick(ctx context.Context, tick domain.Tick) {
	if !market.ValidTick(tick) {
		slog.Warn("malformed tick dropped",
			slog.Float64("price", tick.Price),
			slog.Float64("qty", tick.Quantity))
		return
	}
	metrics.TicksTotal.WithLabelValues(l.cfg.Symbol).Inc()

	for _, tf := range []domain.Timeframe{domain.Timeframe1m, domain.Timeframe5m} {
		if closed := l.agg.Update(tf, tick); closed != nil {
			l.cache.Append(tf, *closed)
		}
	}

	l.cycle(ctx, tick.Price)
}

// cycle runs one full decision pass against the live view: the cached closed
// candles plus the in-progress candle of each timeframe.
func (l *Loop) cycle(ctx context.Context, price float64) {
	metrics.CyclesTotal.Inc()

	view1m := l.liveView(domain.Timeframe1m)
	view5m := l.liveView(domain.Timeframe5m)
	if len(view1m) < l.cfg.Min1m || len(view5m) < l.cfg.Min5m {
		return
	}

	if l.monitor.Busy() {
		return
	}

	// Signal first: WAIT is the common case and must not cost an account
	// round trip.
	sig := l.signal(view1m, view5m)
	if sig == domain.SignalWait {
		return
	}

	acct, err := l.account.Snapshot(ctx)
	if err != nil {
		slog.Error("account snapshot failed, skipping cycle", slog.Any("error", err))
		return
	}
	if hasOpenPosition(acct, l.cfg.Symbol) {
		return
	}

	decision := l.gate.Check(acct)
	if !decision.IsTradingAllowed {
		metrics.RiskDenialsTotal.Inc()
		slog.Debug("trading denied", slog.String("reason", decision.Reason))
		return
	}

	analysis, ok := indicator.Compute(view1m)
	if !ok {
		return
	}

	acct.PositionSizeUsd = decision.PositionSizeUsd
	trade, err := l.exec.Execute(ctx, domain.Side(sig), analysis, acct, price)
	if err != nil {
		slog.Error("execution failed", slog.String("signal", string(sig)), slog.Any("error", err))
		return
	}
	if trade == nil {
		return
	}

	if err := l.monitor.Manage(trade); err != nil {
		slog.Error("monitor refused trade, stop will stay fixed",
			slog.String("id", trade.ID), slog.Any("error", err))
	}
}

// liveView returns the closed candles plus the in-progress one.
func (l *Loop) liveView(tf domain.Timeframe) []domain.Candle {
	view := l.cache.Snapshot(tf)
	if cur, ok := l.agg.Current(tf); ok {
		view = append(view, cur)
	}
	return view
}

func hasOpenPosition(acct domain.AccountContext, symbol string) bool {
	for _, p := range acct.OpenPositions {
		if p.Symbol == symbol && p.PositionAmt != 0 {
			return true
		}
	}
	return false
}

func typeName(t event.Type) string {
	switch t {
	case event.EvTradeTick:
		return "trade_tick"
	case event.EvMarkPrice:
		return "mark_price"
	default:
		return "unknown"
	}
}
