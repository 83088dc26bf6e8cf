package config

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"strings"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"

	"github.com/karnagge/bitcoin-trading-bot/internal/backtest"
	"github.com/karnagge/bitcoin-trading-bot/internal/benchmark"
	"github.com/karnagge/bitcoin-trading-bot/internal/logger"
	"github.com/karnagge/bitcoin-trading-bot/internal/model"
	"github.com/karnagge/bitcoin-trading-bot/internal/pipeline"
	"github.com/karnagge/bitcoin-trading-bot/internal/strategy"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Strategy StrategyConfig
	Account  AccountConfig
	DCA      DCAConfig
	Infra    InfraConfig
}

// StrategyConfig holds the signal thresholds.
type StrategyConfig struct {
	RSIOversold     float64 `env:"RSI_OVERSOLD, default=30"`
	RSIOverbought   float64 `env:"RSI_OVERBOUGHT, default=70"`
	VolumeIncrease  float64 `env:"VOLUME_INCREASE_THRESHOLD, default=1.5"`
	VolumeDecrease  float64 `env:"VOLUME_DECREASE_THRESHOLD, default=0.7"`
	BBProximityBuy  float64 `env:"BB_PROXIMITY_BUY, default=1.02"`
	BBProximitySell float64 `env:"BB_PROXIMITY_SELL, default=0.98"`

	// Unset means 3, or 4 with RequireAbove200MA.
	MinConditions     int  `env:"MIN_CONDITION_COUNT"`
	RequireAbove200MA bool `env:"REQUIRE_ABOVE_200MA, default=false"`
}

// AccountConfig holds the backtest account parameters.
type AccountConfig struct {
	InitialBalance     float64 `env:"INITIAL_BALANCE, default=10000"`
	InvestmentFraction float64 `env:"INVESTMENT_FRACTION, default=0.95"`
}

// DCAConfig holds the benchmark parameters.
type DCAConfig struct {
	Amount float64 `env:"DCA_WEEKLY_AMOUNT, default=200"`
	Period string  `env:"DCA_PERIOD, default=weekly"`
}

// InfraConfig holds storage, publication and process settings.
type InfraConfig struct {
	Symbol        string `env:"SYMBOL, default=BTC/USDT"`
	SQLitePath    string `env:"SQLITE_PATH, default=data/bars.db"`
	RedisAddr     string `env:"REDIS_ADDR"` // empty disables publication
	RedisPassword string `env:"REDIS_PASSWORD"`
	MetricsAddr   string `env:"METRICS_ADDR"` // empty disables the metrics server
	LogLevel      string `env:"LOG_LEVEL, default=info"`
	Parallelism   int    `env:"PARALLELISM, default=4"`
}

const minConditionsEnv = "MIN_CONDITION_COUNT"

// Load reads an optional .env file, then the process environment.
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	if err := godotenv.Load(); err == nil {
		log.Printf("[config] loaded .env")
	}
	return load(context.Background(), envconfig.OsLookuper())
}

func load(ctx context.Context, l envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &cfg, Lookuper: l}); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}
	if v, ok := l.Lookup(minConditionsEnv); !ok || strings.TrimSpace(v) == "" {
		cfg.Strategy.MinConditions = strategy.DefaultRules().MinConditions
		if cfg.Strategy.RequireAbove200MA {
			cfg.Strategy.MinConditions = strategy.FilteredRules().MinConditions
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Rules converts the strategy section.
func (c *Config) Rules() strategy.Rules {
	s := c.Strategy
	return strategy.Rules{
		RSIOversold:       s.RSIOversold,
		RSIOverbought:     s.RSIOverbought,
		VolumeIncrease:    s.VolumeIncrease,
		VolumeDecrease:    s.VolumeDecrease,
		BBProximityBuy:    s.BBProximityBuy,
		BBProximitySell:   s.BBProximitySell,
		MinConditions:     s.MinConditions,
		RequireAbove200MA: s.RequireAbove200MA,
	}
}

// Pipeline returns the run configuration.
func (c *Config) Pipeline() pipeline.Config {
	return pipeline.Config{
		Rules: c.Rules(),
		Backtest: backtest.Config{
			InitialBalance:     c.Account.InitialBalance,
			InvestmentFraction: c.Account.InvestmentFraction,
		},
		Benchmark: benchmark.Config{
			Amount: c.DCA.Amount,
			Period: benchmark.Period(c.DCA.Period),
		},
	}
}

// SlogLevel parses LOG_LEVEL.
func (c *Config) SlogLevel() slog.Level {
	lvl, _ := logger.ParseLevel(c.Infra.LogLevel)
	return lvl
}

// Validate rejects out-of-range options with a *model.ConfigError.
func (c *Config) Validate() error {
	if p, err := benchmark.ParsePeriod(c.DCA.Period); err == nil {
		c.DCA.Period = string(p)
	}
	if err := c.Pipeline().Validate(); err != nil {
		return err
	}
	if _, err := logger.ParseLevel(c.Infra.LogLevel); err != nil {
		return &model.ConfigError{Field: "log_level", Reason: err.Error()}
	}
	if c.Infra.Parallelism < 1 {
		return &model.ConfigError{Field: "parallelism", Reason: "must be >= 1"}
	}
	if c.Infra.Symbol == "" {
		return &model.ConfigError{Field: "symbol", Reason: "must not be empty"}
	}
	return nil
}
