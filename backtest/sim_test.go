package backtest

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/fandresen/trAIding/internal/domain"
	"github.com/fandresen/trAIding/internal/indicator"
)

func buyAnalysis(lower, upper float64) indicator.Analysis {
	return indicator.Analysis{Bollinger: indicator.BollingerBands{Lower: lower, Upper: upper}}
}

func TestSimBroker_BuyHitsTakeProfit(t *testing.T) {
	broker := NewSimBroker("BTCUSDT", 2.0)

	// Entry 100, stop on the lower band at 95 => distance 5, target 110.
	future := []domain.Tick{
		{Price: 102, TimestampMs: 1},
		{Price: 109.9, TimestampMs: 2},
		{Price: 110.5, TimestampMs: 3},
	}
	trade := broker.Execute(domain.SideBuy, buyAnalysis(95, 105), 200, 100, 0, future)
	if trade == nil {
		t.Fatal("expected a closed trade")
	}
	if trade.ExitPrice != 110 {
		t.Errorf("exit = %f, want take profit 110", trade.ExitPrice)
	}

	// size 2, gross 20, fees (100+110)*2*0.0005 = 0.21
	wantPnl := 20 - 0.21
	if math.Abs(trade.Pnl-wantPnl) > 1e-9 {
		t.Errorf("pnl = %f, want %f", trade.Pnl, wantPnl)
	}
}

func TestSimBroker_BuyHitsStopFirst(t *testing.T) {
	broker := NewSimBroker("BTCUSDT", 2.0)

	future := []domain.Tick{
		{Price: 96, TimestampMs: 1},
		{Price: 94.5, TimestampMs: 2}, // stop at 95 touched here
		{Price: 111, TimestampMs: 3},  // target later is irrelevant
	}
	trade := broker.Execute(domain.SideBuy, buyAnalysis(95, 105), 200, 100, 0, future)
	if trade == nil {
		t.Fatal("expected a closed trade")
	}
	if trade.ExitPrice != 95 {
		t.Errorf("exit = %f, want stop 95", trade.ExitPrice)
	}
	if trade.Pnl >= 0 {
		t.Errorf("stop out must lose money, pnl = %f", trade.Pnl)
	}
}

func TestSimBroker_SellDirection(t *testing.T) {
	broker := NewSimBroker("BTCUSDT", 2.0)

	// Entry 100, stop on the upper band at 104 => distance 4, target 92.
	future := []domain.Tick{
		{Price: 97, TimestampMs: 1},
		{Price: 91.9, TimestampMs: 2},
	}
	trade := broker.Execute(domain.SideSell, buyAnalysis(90, 104), 200, 100, 0, future)
	if trade == nil {
		t.Fatal("expected a closed trade")
	}
	if trade.Side != domain.SideSell || trade.ExitPrice != 92 {
		t.Errorf("trade = %+v", trade)
	}
	if trade.Pnl <= 0 {
		t.Errorf("winning short must profit, pnl = %f", trade.Pnl)
	}
}

func TestSimBroker_UnresolvedTradeDiscarded(t *testing.T) {
	broker := NewSimBroker("BTCUSDT", 2.0)

	future := []domain.Tick{{Price: 101}, {Price: 102}}
	if trade := broker.Execute(domain.SideBuy, buyAnalysis(95, 105), 200, 100, 0, future); trade != nil {
		t.Fatalf("trade should be discarded when the feed ends first: %+v", trade)
	}
}

func TestSimBroker_InvertedStopDiscarded(t *testing.T) {
	broker := NewSimBroker("BTCUSDT", 2.0)

	// Lower band above the entry price: no valid stop distance.
	if trade := broker.Execute(domain.SideBuy, buyAnalysis(101, 105), 200, 100, 0, nil); trade != nil {
		t.Fatalf("expected nil trade, got %+v", trade)
	}
}

func TestSimAccount_Summary(t *testing.T) {
	account := NewSimAccount(100)
	account.AddTrade(&domain.Trade{Pnl: 10})
	account.AddTrade(&domain.Trade{Pnl: -4})
	account.AddTrade(&domain.Trade{Pnl: 6})

	s := account.Summarize()
	if s.FinalEquity != 112 || s.TotalPnl != 12 {
		t.Errorf("equity = %f, pnl = %f", s.FinalEquity, s.TotalPnl)
	}
	if s.WinningTrades != 2 || s.LosingTrades != 1 {
		t.Errorf("wins = %d, losses = %d", s.WinningTrades, s.LosingTrades)
	}
	if math.Abs(s.WinRatePct-200.0/3.0) > 1e-9 {
		t.Errorf("win rate = %f", s.WinRatePct)
	}
	if s.AverageWin != 8 || s.AverageLoss != -4 {
		t.Errorf("avg win = %f, avg loss = %f", s.AverageWin, s.AverageLoss)
	}

	ctx := account.Context()
	if ctx.RealizedPnlDaily != 12 || ctx.TradeCountDaily != 3 {
		t.Errorf("context = %+v", ctx)
	}
}

func TestLoadTicks(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ticks.json")
	data := `[{"p":"50000.5","q":"0.1","T":1700000000000},{"p":"50001","q":"0.2","T":1700000000100}]`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	ticks, err := LoadTicks(path)
	if err != nil {
		t.Fatalf("LoadTicks failed: %v", err)
	}
	if len(ticks) != 2 {
		t.Fatalf("got %d ticks", len(ticks))
	}
	if ticks[0].Price != 50000.5 || ticks[0].Quantity != 0.1 || ticks[0].TimestampMs != 1700000000000 {
		t.Errorf("tick = %+v", ticks[0])
	}

	if _, err := LoadTicks(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}
}
