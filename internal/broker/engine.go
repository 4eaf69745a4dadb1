// Package broker turns a trading decision into a guaranteed-consistent set
// of exchange orders: entry plus protective bracket, with a compensating
// close when the bracket cannot be completed.
package broker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fandresen/trAIding/internal/domain"
	"github.com/fandresen/trAIding/internal/indicator"
	"github.com/fandresen/trAIding/internal/metrics"
	"github.com/fandresen/trAIding/internal/notify"
)

// BracketState names the execution state machine so the compensating path is
// an explicit, testable transition rather than nested error handling.
type BracketState int

const (
	BracketNone      BracketState = iota // nothing opened
	BracketOpened                        // entry filled, no protection yet
	BracketProtected                     // SL and TP both live
	BracketFlattened                     // protection failed, position closed
	BracketFailed                        // compensating close failed: manual intervention
)

func (s BracketState) String() string {
	switch s {
	case BracketNone:
		return "NONE"
	case BracketOpened:
		return "OPENED"
	case BracketProtected:
		return "PROTECTED"
	case BracketFlattened:
		return "FLATTENED"
	case BracketFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

const (
	atrStopMultiplier = 1.5
	callTimeout       = 10 * time.Second
)

// TradeRecorder persists trades as they are created and mutated.
type TradeRecorder interface {
	AppendTrade(trade *domain.Trade) error
	UpdateTrade(trade *domain.Trade) error
}

// Config carries the execution parameters of the engine.
type Config struct {
	Symbol               string
	QuantityPrecision    int32
	RiskRewardRatio      float64
	TrailingCallbackRate float64 // percent
}

// Engine places and protects positions through an OrderTransport.
type Engine struct {
	cfg       Config
	transport OrderTransport
	history   TradeRecorder
	notifier  notify.Notifier
}

// NewEngine builds an execution engine. history and notifier may be nil.
func NewEngine(cfg Config, transport OrderTransport, history TradeRecorder, notifier notify.Notifier) *Engine {
	return &Engine{cfg: cfg, transport: transport, history: history, notifier: notifier}
}

// Execute runs the full entry sequence for a BUY/SELL decision. It returns
// the protected Trade, or nil when the trade was declined (undersized) or
// could not be completed. At return the system is in exactly one of three
// states: nothing opened, a protected position (Trade returned), or a
// flattened position with alerting fired.
func (e *Engine) Execute(ctx context.Context, side domain.Side, analysis indicator.Analysis, acct domain.AccountContext, entryPrice float64) (*domain.Trade, error) {
	stopLoss, takeProfit := e.bracketPrices(side, entryPrice, analysis.ATR14)

	quantity := e.roundQuantity(acct.PositionSizeUsd / entryPrice)
	if quantity <= 0 {
		// Declined trade: the risk budget does not buy a representable
		// quantity at this price. Not an error.
		slog.Info("trade declined: quantity rounds to zero",
			slog.Float64("position_usd", acct.PositionSizeUsd),
			slog.Float64("price", entryPrice))
		return nil, nil
	}

	slog.Info("executing trade",
		slog.String("side", string(side)),
		slog.Float64("qty", quantity),
		slog.Float64("entry", entryPrice),
		slog.Float64("stop_loss", stopLoss),
		slog.Float64("take_profit", takeProfit))

	// Step B: entry. A failure here is fatal for the cycle and is not
	// retried; the market may have moved away from the signal.
	entryCtx, cancel := context.WithTimeout(ctx, callTimeout)
	ack, err := e.transport.SubmitOrder(entryCtx, OrderRequest{
		Symbol:        e.cfg.Symbol,
		Side:          side,
		Type:          OrderMarket,
		Quantity:      quantity,
		ClientOrderID: uuid.NewString(),
	})
	cancel()
	if err != nil {
		metrics.OrderFailuresTotal.WithLabelValues(e.cfg.Symbol, "entry").Inc()
		return nil, fmt.Errorf("entry order failed: %w", err)
	}
	metrics.OrdersTotal.WithLabelValues(e.cfg.Symbol, string(side), string(OrderMarket)).Inc()
	state := BracketOpened

	filledQty := ack.OrigQty
	if filledQty == 0 {
		filledQty = quantity
	}
	fillPrice := ack.AvgPrice
	if fillPrice == 0 {
		fillPrice = entryPrice
	}

	trade := &domain.Trade{
		ID:              ack.OrderID,
		Symbol:          e.cfg.Symbol,
		Side:            side,
		EntryPrice:      fillPrice,
		Size:            filledQty,
		Timestamp:       ack.UpdateTime,
		StopLossPrice:   stopLoss,
		TakeProfitPrice: takeProfit,
	}

	// Step C: protective bracket, both legs in parallel, awaited jointly.
	tpID, slID, err := e.placeBracket(ctx, side.Opposite(), filledQty, takeProfit, stopLoss)
	if err != nil {
		metrics.OrderFailuresTotal.WithLabelValues(e.cfg.Symbol, "bracket").Inc()
		state = e.flatten(ctx, side.Opposite(), filledQty, err)
		slog.Error("bracket placement failed",
			slog.String("state", state.String()), slog.Any("error", err))
		return nil, fmt.Errorf("protective orders failed (state %s): %w", state, err)
	}
	state = BracketProtected

	trade.TakeProfitID = tpID
	trade.StopLossID = slID

	if e.history != nil {
		if err := e.history.AppendTrade(trade); err != nil {
			// The position is protected; a history write failure is not worth
			// flattening over. Surface it and carry on.
			slog.Error("failed to record trade", slog.Any("error", err))
		}
	}

	slog.Info("trade protected",
		slog.String("id", trade.ID),
		slog.String("tp_order", tpID),
		slog.String("sl_order", slID))
	return trade, nil
}

// placeBracket submits the take-profit and stop-loss legs concurrently and
// waits for both. Either failing fails the bracket.
func (e *Engine) placeBracket(ctx context.Context, closeSide domain.Side, quantity, takeProfit, stopLoss float64) (tpID, slID string, err error) {
	bracketCtx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	var (
		wg    sync.WaitGroup
		tpErr error
		slErr error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		var ack OrderAck
		ack, tpErr = e.transport.SubmitOrder(bracketCtx, OrderRequest{
			Symbol:        e.cfg.Symbol,
			Side:          closeSide,
			Type:          OrderTakeProfit,
			Quantity:      quantity,
			StopPrice:     takeProfit,
			ReduceOnly:    true,
			ClientOrderID: uuid.NewString(),
		})
		tpID = ack.OrderID
	}()
	go func() {
		defer wg.Done()
		var ack OrderAck
		ack, slErr = e.transport.SubmitOrder(bracketCtx, OrderRequest{
			Symbol:        e.cfg.Symbol,
			Side:          closeSide,
			Type:          OrderStopMarket,
			Quantity:      quantity,
			StopPrice:     stopLoss,
			ReduceOnly:    true,
			ClientOrderID: uuid.NewString(),
		})
		slID = ack.OrderID
	}()
	wg.Wait()

	if tpErr != nil {
		return tpID, slID, fmt.Errorf("take profit leg: %w", tpErr)
	}
	if slErr != nil {
		return tpID, slID, fmt.Errorf("stop loss leg: %w", slErr)
	}
	metrics.OrdersTotal.WithLabelValues(e.cfg.Symbol, string(closeSide), string(OrderTakeProfit)).Inc()
	metrics.OrdersTotal.WithLabelValues(e.cfg.Symbol, string(closeSide), string(OrderStopMarket)).Inc()
	return tpID, slID, nil
}

// flatten executes the compensating close after a bracket failure: the
// position is open and unprotected, so it is closed at market immediately.
func (e *Engine) flatten(ctx context.Context, closeSide domain.Side, quantity float64, cause error) BracketState {
	closeCtx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	_, err := e.transport.SubmitOrder(closeCtx, OrderRequest{
		Symbol:        e.cfg.Symbol,
		Side:          closeSide,
		Type:          OrderMarket,
		Quantity:      quantity,
		ReduceOnly:    true,
		ClientOrderID: uuid.NewString(),
	})
	if err != nil {
		metrics.OrderFailuresTotal.WithLabelValues(e.cfg.Symbol, "compensating_close").Inc()
		e.alert(notify.SeverityHigh, "MANUAL INTERVENTION REQUIRED",
			fmt.Sprintf("Unprotected %s position of %f %s: bracket failed (%v) and compensating close failed (%v). Close it manually NOW.",
				closeSide.Opposite(), quantity, e.cfg.Symbol, cause, err))
		return BracketFailed
	}

	e.alert(notify.SeverityHigh, "Position Flattened",
		fmt.Sprintf("Protective orders failed for %s (%v); position closed at market.", e.cfg.Symbol, cause))
	return BracketFlattened
}

// SwitchToTrailingStop upgrades a protected trade: both bracket legs are
// cancelled and replaced by a trailing stop for the full size. There is no
// rollback on failure; the caller alerts and flags the trade for review.
func (e *Engine) SwitchToTrailingStop(ctx context.Context, trade *domain.Trade) error {
	callCtx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	if err := e.transport.CancelOrder(callCtx, trade.Symbol, trade.StopLossID); err != nil {
		return fmt.Errorf("cancel stop loss %s: %w", trade.StopLossID, err)
	}
	if err := e.transport.CancelOrder(callCtx, trade.Symbol, trade.TakeProfitID); err != nil {
		return fmt.Errorf("cancel take profit %s: %w", trade.TakeProfitID, err)
	}

	_, err := e.transport.SubmitOrder(callCtx, OrderRequest{
		Symbol:        trade.Symbol,
		Side:          trade.Side.Opposite(),
		Type:          OrderTrailingStop,
		Quantity:      trade.Size,
		CallbackRate:  e.cfg.TrailingCallbackRate,
		ReduceOnly:    true,
		ClientOrderID: uuid.NewString(),
	})
	if err != nil {
		return fmt.Errorf("submit trailing stop: %w", err)
	}

	metrics.OrdersTotal.WithLabelValues(trade.Symbol, string(trade.Side.Opposite()), string(OrderTrailingStop)).Inc()
	metrics.TrailingUpgradesTotal.Inc()
	return nil
}

// bracketPrices derives the stop-loss and take-profit levels from the entry
// price and current volatility.
func (e *Engine) bracketPrices(side domain.Side, entryPrice, atr float64) (stopLoss, takeProfit float64) {
	stopDistance := atr * atrStopMultiplier
	if side == domain.SideBuy {
		return entryPrice - stopDistance, entryPrice + stopDistance*e.cfg.RiskRewardRatio
	}
	return entryPrice + stopDistance, entryPrice - stopDistance*e.cfg.RiskRewardRatio
}

// roundQuantity truncates a raw quantity to the instrument's precision.
// Truncation, not rounding: never risk more than the budget allows.
func (e *Engine) roundQuantity(qty float64) float64 {
	d := decimal.NewFromFloat(qty).RoundDown(e.cfg.QuantityPrecision)
	f, _ := d.Float64()
	return f
}

func (e *Engine) alert(severity notify.Severity, title, message string) {
	if e.notifier == nil {
		return
	}
	e.notifier.Notify(title, message, severity)
}
