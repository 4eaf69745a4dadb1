// Package manager actively watches the one open position and upgrades its
// fixed stop to a trailing stop once price has moved halfway to target.
package manager

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/fandresen/trAIding/internal/domain"
	"github.com/fandresen/trAIding/internal/notify"
)

// State is the per-trade monitor state.
type State int

const (
	StateIdle     State = iota // no trade under management
	StateWatching              // subscribed, waiting for the activation price
	StateTrailing              // trailing stop live; terminal for this component
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateWatching:
		return "WATCHING"
	case StateTrailing:
		return "TRAILING_ACTIVE"
	default:
		return "UNKNOWN"
	}
}

// activationFraction is how far toward the take-profit price the market must
// move before the stop is upgraded.
const activationFraction = 0.5

// StopUpgrader swaps a trade's fixed bracket for a trailing stop.
type StopUpgrader interface {
	SwitchToTrailingStop(ctx context.Context, trade *domain.Trade) error
}

// PriceFeed controls the mark-price subscription for a symbol.
type PriceFeed interface {
	Subscribe(symbol string) error
	Unsubscribe(symbol string)
}

// TradeRecorder persists trade mutations.
type TradeRecorder interface {
	UpdateTrade(trade *domain.Trade) error
}

// Monitor manages at most one trade at a time. It is driven exclusively from
// the decision loop goroutine and needs no locking.
type Monitor struct {
	upgrader StopUpgrader
	feed     PriceFeed
	history  TradeRecorder
	notifier notify.Notifier

	state State
	trade *domain.Trade
}

// NewMonitor builds a monitor. history and notifier may be nil.
func NewMonitor(upgrader StopUpgrader, feed PriceFeed, history TradeRecorder, notifier notify.Notifier) *Monitor {
	return &Monitor{upgrader: upgrader, feed: feed, history: history, notifier: notifier}
}

// Manage starts watching a newly opened trade. A second trade while one is
// actively watched violates the single-position invariant and is rejected.
// A previous trade in TRAILING_ACTIVE is terminal for this component and is
// released implicitly.
func (m *Monitor) Manage(trade *domain.Trade) error {
	if m.state == StateWatching {
		return fmt.Errorf("already managing trade %s", m.trade.ID)
	}
	if err := m.feed.Subscribe(trade.Symbol); err != nil {
		return fmt.Errorf("subscribe mark price: %w", err)
	}
	m.trade = trade
	m.state = StateWatching
	slog.Info("managing trade",
		slog.String("id", trade.ID),
		slog.Float64("activation", m.activationPrice()))
	return nil
}

// Busy reports whether a trade is currently under management.
func (m *Monitor) Busy() bool {
	return m.state == StateWatching
}

// StopManaging releases the current trade and tears down the subscription.
func (m *Monitor) StopManaging() {
	if m.trade != nil {
		m.feed.Unsubscribe(m.trade.Symbol)
	}
	m.trade = nil
	m.state = StateIdle
}

// OnMarkPrice processes one mark-price update. When the price has moved at
// least halfway to target in the favorable direction the bracket is replaced
// by a trailing stop, the trade is persisted, and the subscription is torn
// down. On upgrade failure there is no rollback: the original legs may be
// partially cancelled, so the trade is alerted for manual review and
// released.
func (m *Monitor) OnMarkPrice(ctx context.Context, price float64) {
	if m.state != StateWatching || m.trade.IsTrailingActive {
		return
	}

	activation := m.activationPrice()
	triggered := (m.trade.Side == domain.SideBuy && price >= activation) ||
		(m.trade.Side == domain.SideSell && price <= activation)
	if !triggered {
		return
	}

	slog.Info("activation price reached, switching to trailing stop",
		slog.String("id", m.trade.ID),
		slog.Float64("price", price),
		slog.Float64("activation", activation))

	trade := m.trade
	if err := m.upgrader.SwitchToTrailingStop(ctx, trade); err != nil {
		slog.Error("trailing stop upgrade failed", slog.String("id", trade.ID), slog.Any("error", err))
		if m.notifier != nil {
			m.notifier.Notify("Stop Upgrade Failed",
				fmt.Sprintf("Trade %s is in an indeterminate bracket state (%v). Review the open orders manually.", trade.ID, err),
				notify.SeverityHigh)
		}
		m.StopManaging()
		return
	}

	trade.IsTrailingActive = true
	if m.history != nil {
		if err := m.history.UpdateTrade(trade); err != nil {
			slog.Error("failed to persist trailing upgrade", slog.String("id", trade.ID), slog.Any("error", err))
		}
	}

	m.feed.Unsubscribe(trade.Symbol)
	m.state = StateTrailing
	slog.Info("trade handed to exchange-side trailing stop", slog.String("id", trade.ID))
}

// State returns the current monitor state.
func (m *Monitor) State() State {
	return m.state
}

func (m *Monitor) activationPrice() float64 {
	return m.trade.EntryPrice + (m.trade.TakeProfitPrice-m.trade.EntryPrice)*activationFraction
}
