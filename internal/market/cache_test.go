package market

import (
	"testing"

	"github.com/fandresen/trAIding/internal/domain"
)

func candleAt(openTime int64) domain.Candle {
	return domain.Candle{OpenTime: openTime, Open: 1, High: 1, Low: 1, Close: 1}
}

func TestCache_AppendEvictsFIFO(t *testing.T) {
	c := NewCache()
	c.Initialize(domain.Timeframe1m, nil, 3)

	for i := int64(0); i < 4; i++ {
		c.Append(domain.Timeframe1m, candleAt(i*60_000))
	}

	got := c.Snapshot(domain.Timeframe1m)
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	// First appended candle evicted, order preserved for the rest.
	if got[0].OpenTime != 60_000 || got[1].OpenTime != 120_000 || got[2].OpenTime != 180_000 {
		t.Errorf("openTimes = %d,%d,%d", got[0].OpenTime, got[1].OpenTime, got[2].OpenTime)
	}
}

func TestCache_SeededAtCapacity(t *testing.T) {
	// Capacity-150 cache seeded full, then one more closed candle appended:
	// still 150 long, oldest gone, newest at the tail.
	const capacity = 150
	seed := make([]domain.Candle, capacity)
	for i := range seed {
		seed[i] = candleAt(int64(i) * 60_000)
	}

	c := NewCache()
	c.Initialize(domain.Timeframe1m, seed, capacity)

	next := candleAt(int64(capacity) * 60_000)
	c.Append(domain.Timeframe1m, next)

	got := c.Snapshot(domain.Timeframe1m)
	if len(got) != capacity {
		t.Fatalf("len = %d, want %d", len(got), capacity)
	}
	if got[0].OpenTime != 60_000 {
		t.Errorf("oldest openTime = %d, want 60000", got[0].OpenTime)
	}
	if got[capacity-1] != next {
		t.Errorf("newest candle = %+v, want %+v", got[capacity-1], next)
	}
}

func TestCache_InitializeTrimsOversizedHistory(t *testing.T) {
	seed := make([]domain.Candle, 10)
	for i := range seed {
		seed[i] = candleAt(int64(i) * 60_000)
	}
	c := NewCache()
	c.Initialize(domain.Timeframe1m, seed, 4)

	got := c.Snapshot(domain.Timeframe1m)
	if len(got) != 4 {
		t.Fatalf("len = %d, want 4", len(got))
	}
	if got[0].OpenTime != 6*60_000 {
		t.Errorf("oldest kept = %d, want most recent 4", got[0].OpenTime)
	}
}

func TestCache_AppendUninitializedIsNoop(t *testing.T) {
	c := NewCache()
	c.Append(domain.Timeframe5m, candleAt(0))
	if c.Len(domain.Timeframe5m) != 0 {
		t.Error("uninitialized append should be ignored")
	}
	if c.Snapshot(domain.Timeframe5m) != nil {
		t.Error("snapshot of uninitialized timeframe should be nil")
	}
}

func TestCache_SnapshotIsCopy(t *testing.T) {
	c := NewCache()
	c.Initialize(domain.Timeframe1m, []domain.Candle{candleAt(0)}, 2)

	snap := c.Snapshot(domain.Timeframe1m)
	snap[0].Close = 999

	if c.Snapshot(domain.Timeframe1m)[0].Close == 999 {
		t.Error("snapshot must not alias internal storage")
	}
}
