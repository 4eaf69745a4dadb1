// Package app wires the trading bot together and owns its startup and
// shutdown sequence.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/fandresen/trAIding/internal/binance"
	"github.com/fandresen/trAIding/internal/brain"
	"github.com/fandresen/trAIding/internal/broker"
	"github.com/fandresen/trAIding/internal/domain"
	"github.com/fandresen/trAIding/internal/engine"
	"github.com/fandresen/trAIding/internal/history"
	"github.com/fandresen/trAIding/internal/infra"
	"github.com/fandresen/trAIding/internal/manager"
	"github.com/fandresen/trAIding/internal/market"
	"github.com/fandresen/trAIding/internal/metrics"
	"github.com/fandresen/trAIding/internal/notify"
	"github.com/fandresen/trAIding/internal/risk"
)

// App holds the fully wired bot.
type App struct {
	Config  *infra.Config
	History *history.Store
	Client  *binance.Client
	Loop    *engine.Loop

	cache       *market.Cache
	tradeStream *binance.TradeStream
	markStream  *binance.MarkPriceStream
	metricsSrv  *http.Server
}

// New loads the configuration and wires every component. Nothing touches the
// network yet; Run does.
func New(configPath string) (*App, error) {
	cfg, err := infra.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(infra.NewLogger(cfg))

	store, err := history.NewStore(cfg.History.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open history store: %w", err)
	}

	var notifier notify.Notifier
	if cfg.Pushover.APIToken != "" && cfg.Pushover.UserKey != "" {
		notifier = notify.NewPushover(cfg.Pushover.APIToken, cfg.Pushover.UserKey)
	} else {
		slog.Warn("pushover not configured, alerts go to the log only")
	}

	client := binance.NewClient(cfg.Binance.APIURL, cfg.Binance.APIKey, cfg.Binance.APISecret)
	account := binance.NewAccountService(client, store, cfg.Trading.Symbol)

	gate := risk.NewGate(risk.Limits{
		MaxRiskPerTradePct:   cfg.Risk.MaxRiskPerTradePct,
		DailyProfitTargetPct: cfg.Risk.DailyProfitTargetPct,
		DailyLossLimitPct:    cfg.Risk.DailyLossLimitPct,
		RiskRewardRatio:      cfg.Risk.RiskRewardRatio,
		MaxTradesPerDay:      cfg.Risk.MaxTradesPerDay,
	}, notifier)

	execEngine := broker.NewEngine(broker.Config{
		Symbol:               cfg.Trading.Symbol,
		QuantityPrecision:    cfg.Trading.QuantityPrecision,
		RiskRewardRatio:      cfg.Risk.RiskRewardRatio,
		TrailingCallbackRate: cfg.Trading.TrailingCallbackRate,
	}, client, store, notifier)

	markStream := binance.NewMarkPriceStream(cfg.Binance.WSURL)
	monitor := manager.NewMonitor(execEngine, markStream, store, notifier)

	cache := market.NewCache()
	loop := engine.NewLoop(engine.Config{
		Symbol:    cfg.Trading.Symbol,
		InboxSize: 1024,
		Min1m:     cfg.Trading.Cache.Min1m,
		Min5m:     cfg.Trading.Cache.Min5m,
	}, market.NewAggregator(), cache, account, gate, execEngine, monitor, brain.Decide)

	return &App{
		Config:      cfg,
		History:     store,
		Client:      client,
		Loop:        loop,
		cache:       cache,
		tradeStream: binance.NewTradeStream(cfg.Binance.WSURL, cfg.Trading.Symbol),
		markStream:  markStream,
	}, nil
}

// Run seeds the candle caches, starts the loop and the streams, and blocks
// until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	if err := a.seedCaches(ctx); err != nil {
		return err
	}

	if addr := a.Config.Metrics.Addr; addr != "" {
		a.metricsSrv = metrics.Serve(addr)
		slog.Info("metrics endpoint up", slog.String("addr", addr))
	}

	go a.Loop.Run(ctx)
	a.markStream.Start(ctx, a.Loop)
	a.tradeStream.Start(ctx, a.Loop)

	slog.Info("bot operational", slog.String("symbol", a.Config.Trading.Symbol))
	<-ctx.Done()
	return nil
}

// Close tears everything down in reverse start order.
func (a *App) Close() {
	a.tradeStream.Stop()
	a.markStream.Stop()
	if a.metricsSrv != nil {
		a.metricsSrv.Close()
	}
	if err := a.History.Close(); err != nil {
		slog.Warn("history store close failed", slog.Any("error", err))
	}
}

// seedCaches backfills both rolling caches from REST klines so the loop can
// trade as soon as the first live candle closes.
func (a *App) seedCaches(ctx context.Context) error {
	seeds := []struct {
		tf       domain.Timeframe
		capacity int
	}{
		{domain.Timeframe1m, a.Config.Trading.Cache.Capacity1m},
		{domain.Timeframe5m, a.Config.Trading.Cache.Capacity5m},
	}
	for _, seed := range seeds {
		candles, err := a.Client.Klines(ctx, a.Config.Trading.Symbol, seed.tf, seed.capacity)
		if err != nil {
			return fmt.Errorf("seed %s cache: %w", seed.tf, err)
		}
		a.cache.Initialize(seed.tf, candles, seed.capacity)
		slog.Info("cache seeded",
			slog.String("timeframe", string(seed.tf)),
			slog.Int("candles", len(candles)))
	}
	return nil
}
