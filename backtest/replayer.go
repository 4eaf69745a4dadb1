// Package backtest replays recorded aggTrade ticks through the live decision
// path against a simulated broker and account.
package backtest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/fandresen/trAIding/internal/brain"
	"github.com/fandresen/trAIding/internal/domain"
	"github.com/fandresen/trAIding/internal/indicator"
	"github.com/fandresen/trAIding/internal/infra"
	"github.com/fandresen/trAIding/internal/market"
	"github.com/fandresen/trAIding/internal/risk"
)

// Replayer feeds recorded ticks through the aggregator, cache, signal and
// risk gate exactly as the live loop does, filling against a SimBroker.
type Replayer struct {
	symbol       string
	min1m, min5m int
	cap1m, cap5m int

	gate    *risk.Gate
	broker  *SimBroker
	account *SimAccount
}

// NewReplayer builds a replayer from the live configuration.
func NewReplayer(cfg *infra.Config, startingCapital float64) *Replayer {
	limits := risk.Limits{
		MaxRiskPerTradePct:   cfg.Risk.MaxRiskPerTradePct,
		DailyProfitTargetPct: cfg.Risk.DailyProfitTargetPct,
		DailyLossLimitPct:    cfg.Risk.DailyLossLimitPct,
		RiskRewardRatio:      cfg.Risk.RiskRewardRatio,
		MaxTradesPerDay:      cfg.Risk.MaxTradesPerDay,
	}
	return &Replayer{
		symbol:  cfg.Trading.Symbol,
		min1m:   cfg.Trading.Cache.Min1m,
		min5m:   cfg.Trading.Cache.Min5m,
		cap1m:   cfg.Trading.Cache.Capacity1m,
		cap5m:   cfg.Trading.Cache.Capacity5m,
		gate:    risk.NewGate(limits, nil),
		broker:  NewSimBroker(cfg.Trading.Symbol, cfg.Risk.RiskRewardRatio),
		account: NewSimAccount(startingCapital),
	}
}

// tickRecord matches the recorded aggTrade JSON: price and quantity as
// strings, trade time in ms.
type tickRecord struct {
	Price    string `json:"p"`
	Quantity string `json:"q"`
	Time     int64  `json:"T"`
}

// LoadTicks reads a recorded tick file.
func LoadTicks(path string) ([]domain.Tick, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read ticks: %w", err)
	}

	var records []tickRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parse ticks: %w", err)
	}

	ticks := make([]domain.Tick, 0, len(records))
	for i, rec := range records {
		price, err := strconv.ParseFloat(rec.Price, 64)
		if err != nil {
			return nil, fmt.Errorf("tick %d: price: %w", i, err)
		}
		qty, err := strconv.ParseFloat(rec.Quantity, 64)
		if err != nil {
			return nil, fmt.Errorf("tick %d: quantity: %w", i, err)
		}
		ticks = append(ticks, domain.Tick{Price: price, Quantity: qty, TimestampMs: rec.Time})
	}
	return ticks, nil
}

// Run replays the ticks in order and returns the aggregate result. Fills are
// resolved by scanning forward from each entry, so the full slice is needed
// up front.
func (r *Replayer) Run(ctx context.Context, ticks []domain.Tick) (Summary, error) {
	agg := market.NewAggregator()
	cache := market.NewCache()
	cache.Initialize(domain.Timeframe1m, nil, r.cap1m)
	cache.Initialize(domain.Timeframe5m, nil, r.cap5m)

	for i, tick := range ticks {
		if i%100000 == 0 {
			select {
			case <-ctx.Done():
				return Summary{}, ctx.Err()
			default:
			}
		}

		if !market.ValidTick(tick) {
			continue
		}

		for _, tf := range []domain.Timeframe{domain.Timeframe1m, domain.Timeframe5m} {
			if closed := agg.Update(tf, tick); closed != nil {
				cache.Append(tf, *closed)
			}
		}

		view1m := liveView(cache, agg, domain.Timeframe1m)
		view5m := liveView(cache, agg, domain.Timeframe5m)
		if len(view1m) < r.min1m || len(view5m) < r.min5m {
			continue
		}

		sig := brain.Decide(view1m, view5m)
		if sig == domain.SignalWait {
			continue
		}

		decision := r.gate.Check(r.account.Context())
		if !decision.IsTradingAllowed {
			continue
		}

		analysis, ok := indicator.Compute(view1m)
		if !ok {
			continue
		}

		trade := r.broker.Execute(domain.Side(sig), analysis, decision.PositionSizeUsd, tick.Price, tick.TimestampMs, ticks[i+1:])
		if trade == nil {
			continue
		}

		r.account.AddTrade(trade)
		slog.Debug("simulated trade closed",
			slog.String("side", string(trade.Side)),
			slog.Float64("pnl", trade.Pnl),
			slog.Float64("equity", r.account.equity))
	}

	return r.account.Summarize(), nil
}

func liveView(cache *market.Cache, agg *market.Aggregator, tf domain.Timeframe) []domain.Candle {
	view := cache.Snapshot(tf)
	if cur, ok := agg.Current(tf); ok {
		view = append(view, cur)
	}
	return view
}
