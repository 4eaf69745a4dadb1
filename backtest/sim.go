package backtest

import (
	"fmt"
	"log/slog"

	"github.com/fandresen/trAIding/internal/domain"
	"github.com/fandresen/trAIding/internal/indicator"
)

// takerFee is charged on both entry and exit notional.
const takerFee = 0.0005

// SimBroker fills a decision against the recorded tick feed: the bracket is
// walked forward until the stop or the target is hit. A trade that never
// resolves before the feed ends is discarded.
type SimBroker struct {
	symbol          string
	riskRewardRatio float64
	nextID          int
}

// NewSimBroker creates a simulated broker for one symbol.
func NewSimBroker(symbol string, riskRewardRatio float64) *SimBroker {
	return &SimBroker{symbol: symbol, riskRewardRatio: riskRewardRatio}
}

// Execute opens a position at entryPrice and scans the future ticks for the
// first bracket touch. The stop sits on the Bollinger band opposite the
// position; the target mirrors the stop distance scaled by the risk/reward
// ratio.
func (b *SimBroker) Execute(side domain.Side, analysis indicator.Analysis, positionSizeUsd, entryPrice float64, entryTs int64, future []domain.Tick) *domain.Trade {
	quantity := positionSizeUsd / entryPrice

	var stopLoss float64
	if side == domain.SideBuy {
		stopLoss = analysis.Bollinger.Lower
	} else {
		stopLoss = analysis.Bollinger.Upper
	}
	stopDistance := entryPrice - stopLoss
	if side == domain.SideSell {
		stopDistance = stopLoss - entryPrice
	}
	if stopDistance <= 0 {
		return nil
	}

	takeProfit := entryPrice + stopDistance*b.riskRewardRatio
	if side == domain.SideSell {
		takeProfit = entryPrice - stopDistance*b.riskRewardRatio
	}

	for _, tick := range future {
		var exit float64
		switch {
		case side == domain.SideBuy && tick.Price <= stopLoss:
			exit = stopLoss
		case side == domain.SideBuy && tick.Price >= takeProfit:
			exit = takeProfit
		case side == domain.SideSell && tick.Price >= stopLoss:
			exit = stopLoss
		case side == domain.SideSell && tick.Price <= takeProfit:
			exit = takeProfit
		default:
			continue
		}
		return b.close(side, entryPrice, exit, quantity, entryTs)
	}
	return nil
}

func (b *SimBroker) close(side domain.Side, entryPrice, exitPrice, quantity float64, ts int64) *domain.Trade {
	grossPnl := (exitPrice - entryPrice) * quantity
	if side == domain.SideSell {
		grossPnl = (entryPrice - exitPrice) * quantity
	}
	fees := (entryPrice + exitPrice) * quantity * takerFee

	b.nextID++
	return &domain.Trade{
		ID:         fmt.Sprintf("sim-%d", b.nextID),
		Symbol:     b.symbol,
		Side:       side,
		EntryPrice: entryPrice,
		ExitPrice:  exitPrice,
		Size:       quantity,
		Pnl:        grossPnl - fees,
		Timestamp:  ts,
	}
}

// SimAccount tracks equity across simulated trades. It stands in for the
// exchange account when the gate and sizing rules run in replay.
type SimAccount struct {
	initial float64
	equity  float64
	trades  []*domain.Trade
}

// NewSimAccount starts the account at startingCapital.
func NewSimAccount(startingCapital float64) *SimAccount {
	return &SimAccount{initial: startingCapital, equity: startingCapital}
}

// AddTrade books a closed trade into equity.
func (a *SimAccount) AddTrade(trade *domain.Trade) {
	a.trades = append(a.trades, trade)
	a.equity += trade.Pnl
}

// Context returns the account view for the next decision cycle. The whole
// replay counts as one trading day.
func (a *SimAccount) Context() domain.AccountContext {
	var realized float64
	for _, t := range a.trades {
		realized += t.Pnl
	}
	return domain.AccountContext{
		Equity:           a.equity,
		AvailableBalance: a.equity,
		RealizedPnlDaily: realized,
		TradeCountDaily:  len(a.trades),
	}
}

// Summary holds the aggregate result of one replay.
type Summary struct {
	InitialEquity float64
	FinalEquity   float64
	TotalPnl      float64
	TotalTrades   int
	WinningTrades int
	LosingTrades  int
	WinRatePct    float64
	AverageWin    float64
	AverageLoss   float64
}

// Summarize computes the aggregate statistics.
func (a *SimAccount) Summarize() Summary {
	s := Summary{
		InitialEquity: a.initial,
		FinalEquity:   a.equity,
		TotalPnl:      a.equity - a.initial,
		TotalTrades:   len(a.trades),
	}

	var winSum, lossSum float64
	for _, t := range a.trades {
		if t.Pnl > 0 {
			s.WinningTrades++
			winSum += t.Pnl
		} else {
			s.LosingTrades++
			lossSum += t.Pnl
		}
	}
	if s.TotalTrades > 0 {
		s.WinRatePct = float64(s.WinningTrades) / float64(s.TotalTrades) * 100
	}
	if s.WinningTrades > 0 {
		s.AverageWin = winSum / float64(s.WinningTrades)
	}
	if s.LosingTrades > 0 {
		s.AverageLoss = lossSum / float64(s.LosingTrades)
	}
	return s
}

// Log writes the summary through the structured logger.
func (s Summary) Log() {
	slog.Info("backtest summary",
		slog.Float64("initial_equity", s.InitialEquity),
		slog.Float64("final_equity", s.FinalEquity),
		slog.Float64("total_pnl", s.TotalPnl),
		slog.Int("trades", s.TotalTrades),
		slog.Int("wins", s.WinningTrades),
		slog.Int("losses", s.LosingTrades),
		slog.Float64("win_rate_pct", s.WinRatePct),
		slog.Float64("average_win", s.AverageWin),
		slog.Float64("average_loss", s.AverageLoss))
}
