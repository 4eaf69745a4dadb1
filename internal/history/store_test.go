package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/fandresen/trAIding/internal/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func sampleTrade(id string, ts int64) *domain.Trade {
	return &domain.Trade{
		ID: id, Symbol: "BTCUSDT", Side: domain.SideBuy,
		EntryPrice: 50000, Size: 0.01, Timestamp: ts,
		StopLossPrice: 49000, TakeProfitPrice: 52000,
		StopLossID: "sl-" + id, TakeProfitID: "tp-" + id,
	}
}

func TestStore_AppendAndQueryToday(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	yesterday := now.AddDate(0, 0, -1)
	if err := store.AppendTrade(sampleTrade("old", yesterday.UnixMilli())); err != nil {
		t.Fatalf("Failed to save old trade: %v", err)
	}
	if err := store.AppendTrade(sampleTrade("t1", now.UnixMilli())); err != nil {
		t.Fatalf("Failed to save t1: %v", err)
	}
	if err := store.AppendTrade(sampleTrade("t2", now.UnixMilli())); err != nil {
		t.Fatalf("Failed to save t2: %v", err)
	}

	trades, err := store.TodaysTrades(ctx, now)
	if err != nil {
		t.Fatalf("Failed to query trades: %v", err)
	}
	if len(trades) != 2 {
		t.Fatalf("Expected 2 trades today, got %d", len(trades))
	}
	if trades[0].ID != "t1" || trades[1].ID != "t2" {
		t.Errorf("Wrong trades returned: %s, %s", trades[0].ID, trades[1].ID)
	}
	if trades[0].Side != domain.SideBuy || trades[0].StopLossID != "sl-t1" {
		t.Errorf("Trade fields not round-tripped: %+v", trades[0])
	}
}

func TestStore_UpdateTrade(t *testing.T) {
	store := newTestStore(t)
	now := time.Now()

	trade := sampleTrade("t1", now.UnixMilli())
	if err := store.AppendTrade(trade); err != nil {
		t.Fatalf("Failed to save trade: %v", err)
	}

	trade.IsTrailingActive = true
	trade.ExitPrice = 51000
	trade.Pnl = 10
	if err := store.UpdateTrade(trade); err != nil {
		t.Fatalf("Failed to update trade: %v", err)
	}

	trades, err := store.TodaysTrades(context.Background(), now)
	if err != nil {
		t.Fatalf("Failed to query trades: %v", err)
	}
	if len(trades) != 1 {
		t.Fatalf("Expected 1 trade, got %d", len(trades))
	}
	got := trades[0]
	if !got.IsTrailingActive || got.ExitPrice != 51000 || got.Pnl != 10 {
		t.Errorf("Update not persisted: %+v", got)
	}
}

func TestStore_UpdateUnknownTrade(t *testing.T) {
	store := newTestStore(t)

	err := store.UpdateTrade(sampleTrade("ghost", time.Now().UnixMilli()))
	if err == nil {
		t.Fatal("Expected error updating unknown trade")
	}
}

func TestStore_Capital(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, _, ok, err := store.LatestCapital(ctx); err != nil || ok {
		t.Fatalf("Expected empty capital history, ok=%v err=%v", ok, err)
	}

	if err := store.AppendCapital(ctx, 1000, 1000); err != nil {
		t.Fatalf("Failed to append capital: %v", err)
	}
	if err := store.AppendCapital(ctx, 1050, 2000); err != nil {
		t.Fatalf("Failed to append capital: %v", err)
	}

	equity, ts, ok, err := store.LatestCapital(ctx)
	if err != nil || !ok {
		t.Fatalf("Failed to read capital: ok=%v err=%v", ok, err)
	}
	if equity != 1050 || ts != 2000 {
		t.Errorf("Latest capital = %f at %d, want 1050 at 2000", equity, ts)
	}
}
