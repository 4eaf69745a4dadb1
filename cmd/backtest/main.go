package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/fandresen/trAIding/backtest"
	"github.com/fandresen/trAIding/internal/infra"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the configuration file")
	ticksPath := flag.String("ticks", "historical-trades.json", "recorded aggTrade ticks")
	capital := flag.Float64("capital", 100, "starting capital in USD")
	flag.Parse()

	cfg, err := infra.LoadConfig(*configPath)
	if err != nil {
		slog.Error("config load failed", slog.Any("error", err))
		os.Exit(1)
	}
	slog.SetDefault(infra.NewLogger(cfg))

	ticks, err := backtest.LoadTicks(*ticksPath)
	if err != nil {
		slog.Error("tick load failed", slog.Any("error", err))
		os.Exit(1)
	}
	slog.Info("replaying recorded ticks",
		slog.Int("ticks", len(ticks)),
		slog.String("symbol", cfg.Trading.Symbol))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	summary, err := backtest.NewReplayer(cfg, *capital).Run(ctx, ticks)
	if err != nil {
		slog.Error("replay aborted", slog.Any("error", err))
		os.Exit(1)
	}
	summary.Log()
}
