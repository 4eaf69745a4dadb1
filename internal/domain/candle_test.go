package domain

import "testing"

func TestCandle_Validate(t *testing.T) {
	tests := []struct {
		name    string
		candle  Candle
		wantErr bool
	}{
		{"valid", Candle{OpenTime: 60000, Open: 10, High: 12, Low: 9, Close: 11, Volume: 3}, false},
		{"flat", Candle{OpenTime: 60000, Open: 10, High: 10, Low: 10, Close: 10}, false},
		{"high below close", Candle{OpenTime: 60000, Open: 10, High: 10.5, Low: 9, Close: 11}, true},
		{"low above open", Candle{OpenTime: 60000, Open: 10, High: 12, Low: 10.5, Close: 11}, true},
		{"negative volume", Candle{OpenTime: 60000, Open: 10, High: 12, Low: 9, Close: 11, Volume: -1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.candle.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestTimeframe_IntervalMs(t *testing.T) {
	if got := Timeframe1m.IntervalMs(); got != 60_000 {
		t.Errorf("1m interval = %d, want 60000", got)
	}
	if got := Timeframe5m.IntervalMs(); got != 300_000 {
		t.Errorf("5m interval = %d, want 300000", got)
	}
	if got := Timeframe("2h").IntervalMs(); got != 0 {
		t.Errorf("unknown interval = %d, want 0", got)
	}
}

func TestSide_Opposite(t *testing.T) {
	if SideBuy.Opposite() != SideSell {
		t.Error("BUY opposite should be SELL")
	}
	if SideSell.Opposite() != SideBuy {
		t.Error("SELL opposite should be BUY")
	}
}
