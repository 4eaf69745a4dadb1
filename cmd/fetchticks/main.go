// Command fetchticks downloads aggregated trades for a time range and writes
// them as a replayable tick file for cmd/backtest.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fandresen/trAIding/internal/binance"
	"github.com/fandresen/trAIding/internal/infra"
)

const batchLimit = 1000

func main() {
	configPath := flag.String("config", "config.yaml", "path to the configuration file")
	outPath := flag.String("out", "historical-trades.json", "output tick file")
	days := flag.Int("days", 30, "how many days of history to fetch")
	flag.Parse()

	cfg, err := infra.LoadConfig(*configPath)
	if err != nil {
		slog.Error("config load failed", slog.Any("error", err))
		os.Exit(1)
	}
	slog.SetDefault(infra.NewLogger(cfg))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := binance.NewClient(cfg.Binance.APIURL, "", "")
	symbol := cfg.Trading.Symbol
	start := time.Now().AddDate(0, 0, -*days).UnixMilli()
	end := time.Now().UnixMilli()

	slog.Info("fetching aggregated trades",
		slog.String("symbol", symbol), slog.Int("days", *days))

	var all []binance.AggTrade
	for start < end {
		if ctx.Err() != nil {
			slog.Warn("interrupted, writing partial dataset")
			break
		}

		trades, err := client.AggTrades(ctx, symbol, start, batchLimit)
		if err != nil {
			slog.Error("fetch batch failed", slog.Any("error", err))
			os.Exit(1)
		}
		if len(trades) == 0 {
			break
		}

		all = append(all, trades...)
		start = trades[len(trades)-1].Time + 1

		if len(all)%100000 < batchLimit {
			slog.Info("progress", slog.Int("trades", len(all)),
				slog.Time("at", time.UnixMilli(start)))
		}
	}

	data, err := json.Marshal(all)
	if err != nil {
		slog.Error("marshal failed", slog.Any("error", err))
		os.Exit(1)
	}
	if err := os.WriteFile(*outPath, data, 0o644); err != nil {
		slog.Error("write failed", slog.Any("error", err))
		os.Exit(1)
	}
	slog.Info("tick file written", slog.String("path", *outPath), slog.Int("trades", len(all)))
}
