package infra

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/fandresen/trAIding/internal/domain"
)

// Config holds the full application configuration. Secrets are overridden
// from environment variables after the file is parsed.
type Config struct {
	App struct {
		Name string `yaml:"name"`
		Mode string `yaml:"mode"` // "live" or "backtest"
	} `yaml:"app"`

	Binance struct {
		APIURL    string `yaml:"api_url"`
		WSURL     string `yaml:"ws_url"`
		APIKey    string `yaml:"api_key"`
		APISecret string `yaml:"api_secret"`
	} `yaml:"binance"`

	Trading struct {
		Symbol            string `yaml:"symbol"`
		QuantityPrecision int32  `yaml:"quantity_precision"`
		Cache             struct {
			Capacity1m int `yaml:"capacity_1m"`
			Capacity5m int `yaml:"capacity_5m"`
			Min1m      int `yaml:"min_1m"`
			Min5m      int `yaml:"min_5m"`
		} `yaml:"cache"`
		TrailingCallbackRate float64 `yaml:"trailing_callback_rate"` // percent
	} `yaml:"trading"`

	Risk struct {
		MaxRiskPerTradePct   float64 `yaml:"max_risk_per_trade_pct"`
		DailyProfitTargetPct float64 `yaml:"daily_profit_target_pct"`
		DailyLossLimitPct    float64 `yaml:"daily_loss_limit_pct"`
		RiskRewardRatio      float64 `yaml:"risk_reward_ratio"`
		MaxTradesPerDay      int     `yaml:"max_trades_per_day"`
	} `yaml:"risk"`

	Pushover struct {
		APIToken string `yaml:"api_token"`
		UserKey  string `yaml:"user_key"`
	} `yaml:"pushover"`

	History struct {
		DBPath string `yaml:"db_path"`
	} `yaml:"history"`

	Metrics struct {
		Addr string `yaml:"addr"`
	} `yaml:"metrics"`

	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"` // "text" or "json"
	} `yaml:"logging"`
}

// Timeframes returns the two candle intervals the bot maintains.
func (c *Config) Timeframes() []domain.Timeframe {
	return []domain.Timeframe{domain.Timeframe1m, domain.Timeframe5m}
}

// CacheCapacity returns the rolling-cache capacity for a timeframe.
func (c *Config) CacheCapacity(tf domain.Timeframe) int {
	if tf == domain.Timeframe5m {
		return c.Trading.Cache.Capacity5m
	}
	return c.Trading.Cache.Capacity1m
}

// LoadConfig reads and parses the configuration file, applies environment
// overrides, and validates the result. A .env file in the working directory
// is loaded best-effort before the overrides run.
func LoadConfig(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	overrideWithEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func defaultConfig() *Config {
	cfg := &Config{}
	cfg.App.Name = "traiding"
	cfg.App.Mode = "live"
	cfg.Binance.APIURL = "https://fapi.binance.com"
	cfg.Binance.WSURL = "wss://fstream.binance.com/ws"
	cfg.Trading.Symbol = "BTCUSDT"
	cfg.Trading.QuantityPrecision = 4
	cfg.Trading.Cache.Capacity1m = 300
	cfg.Trading.Cache.Capacity5m = 120
	cfg.Trading.Cache.Min1m = 250
	cfg.Trading.Cache.Min5m = 100
	cfg.Trading.TrailingCallbackRate = 0.5
	cfg.Risk.MaxRiskPerTradePct = 1.0
	cfg.Risk.DailyProfitTargetPct = 5.0
	cfg.Risk.DailyLossLimitPct = 3.0
	cfg.Risk.RiskRewardRatio = 2.0
	cfg.Risk.MaxTradesPerDay = 50
	cfg.History.DBPath = "traiding.db"
	cfg.Metrics.Addr = "localhost:9100"
	cfg.Logging.Level = "info"
	cfg.Logging.Format = "text"
	return cfg
}

// Validate checks configuration validity.
func (c *Config) Validate() error {
	if !strings.HasPrefix(c.Binance.WSURL, "ws://") && !strings.HasPrefix(c.Binance.WSURL, "wss://") {
		return fmt.Errorf("invalid Binance WS URL: %s", c.Binance.WSURL)
	}
	if c.Trading.Symbol == "" {
		return fmt.Errorf("trading symbol is required")
	}
	if c.Trading.Cache.Capacity1m <= 0 || c.Trading.Cache.Capacity5m <= 0 {
		return fmt.Errorf("cache capacities must be positive")
	}
	if c.Trading.Cache.Capacity1m < c.Trading.Cache.Min1m || c.Trading.Cache.Capacity5m < c.Trading.Cache.Min5m {
		return fmt.Errorf("cache capacity below signal minimum: the gate could never pass")
	}
	if c.Risk.RiskRewardRatio <= 0 {
		return fmt.Errorf("risk reward ratio must be positive")
	}
	if c.Risk.MaxRiskPerTradePct <= 0 {
		return fmt.Errorf("max risk per trade must be positive")
	}
	return nil
}

// overrideWithEnv applies secret overrides. Environment variables take
// precedence over anything in the config file.
func overrideWithEnv(cfg *Config) {
	if cfg.Binance.APISecret != "" {
		slog.Warn("API secrets found in config file; prefer TRAIDING_API_KEY / TRAIDING_API_SECRET env vars")
	}
	if key := os.Getenv("TRAIDING_API_KEY"); key != "" {
		cfg.Binance.APIKey = key
	}
	if secret := os.Getenv("TRAIDING_API_SECRET"); secret != "" {
		cfg.Binance.APISecret = secret
	}
	if token := os.Getenv("TRAIDING_PUSHOVER_TOKEN"); token != "" {
		cfg.Pushover.APIToken = token
	}
	if user := os.Getenv("TRAIDING_PUSHOVER_USER"); user != "" {
		cfg.Pushover.UserKey = user
	}
}
