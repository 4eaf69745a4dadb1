package infra

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/fandresen/trAIding/internal/domain"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	path := writeConfig(t, "app:\n  name: test\n")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Trading.Symbol != "BTCUSDT" {
		t.Errorf("symbol = %s", cfg.Trading.Symbol)
	}
	if cfg.Trading.Cache.Capacity1m != 300 || cfg.Trading.Cache.Min1m != 250 {
		t.Errorf("1m cache = %+v", cfg.Trading.Cache)
	}
	if cfg.Risk.RiskRewardRatio != 2.0 || cfg.Risk.MaxTradesPerDay != 50 {
		t.Errorf("risk = %+v", cfg.Risk)
	}
}

func TestLoadConfig_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
trading:
  symbol: ETHUSDT
  cache:
    capacity_1m: 400
    capacity_5m: 150
    min_1m: 250
    min_5m: 100
risk:
  max_risk_per_trade_pct: 2.5
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Trading.Symbol != "ETHUSDT" {
		t.Errorf("symbol = %s", cfg.Trading.Symbol)
	}
	if cfg.Trading.Cache.Capacity1m != 400 {
		t.Errorf("capacity = %d", cfg.Trading.Cache.Capacity1m)
	}
	if cfg.Risk.MaxRiskPerTradePct != 2.5 {
		t.Errorf("max risk = %f", cfg.Risk.MaxRiskPerTradePct)
	}
	// Untouched sections keep their defaults.
	if cfg.Risk.RiskRewardRatio != 2.0 {
		t.Errorf("rr ratio = %f", cfg.Risk.RiskRewardRatio)
	}
}

func TestLoadConfig_EnvOverridesSecrets(t *testing.T) {
	t.Setenv("TRAIDING_API_KEY", "env-key")
	t.Setenv("TRAIDING_API_SECRET", "env-secret")
	path := writeConfig(t, "binance:\n  api_key: file-key\n")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Binance.APIKey != "env-key" || cfg.Binance.APISecret != "env-secret" {
		t.Errorf("secrets = %s / %s", cfg.Binance.APIKey, cfg.Binance.APISecret)
	}
}

func TestValidate_CapacityBelowMinimum(t *testing.T) {
	// A cache smaller than the signal minimum can never pass the gate.
	path := writeConfig(t, `
trading:
  cache:
    capacity_1m: 150
    capacity_5m: 50
    min_1m: 250
    min_5m: 100
`)

	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected validation error for capacity below minimum")
	}
}

func TestValidate_BadWSURL(t *testing.T) {
	path := writeConfig(t, "binance:\n  ws_url: http://not-a-ws-endpoint\n")

	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected validation error for ws url")
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestConfig_CacheCapacity(t *testing.T) {
	cfg := defaultConfig()
	if cfg.CacheCapacity(domain.Timeframe1m) != 300 {
		t.Errorf("1m capacity = %d", cfg.CacheCapacity(domain.Timeframe1m))
	}
	if cfg.CacheCapacity(domain.Timeframe5m) != 120 {
		t.Errorf("5m capacity = %d", cfg.CacheCapacity(domain.Timeframe5m))
	}
}
