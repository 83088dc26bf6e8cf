package config

import (
	"context"
	"errors"
	"testing"

	"github.com/sethvargo/go-envconfig"

	"github.com/karnagge/bitcoin-trading-bot/internal/benchmark"
	"github.com/karnagge/bitcoin-trading-bot/internal/model"
	"github.com/karnagge/bitcoin-trading-bot/internal/pipeline"
)

func loadMap(t *testing.T, env map[string]string) (*Config, error) {
	t.Helper()
	return load(context.Background(), envconfig.MapLookuper(env))
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := loadMap(t, map[string]string{})
	if err != nil {
		t.Fatal(err)
	}
	if got, want := cfg.Pipeline(), pipeline.DefaultConfig(); got != want {
		t.Errorf("defaults = %+v, want %+v", got, want)
	}
	if cfg.Infra.Symbol != "BTC/USDT" || cfg.Infra.SQLitePath != "data/bars.db" || cfg.Infra.Parallelism != 4 {
		t.Errorf("infra defaults = %+v", cfg.Infra)
	}
	if cfg.Infra.RedisAddr != "" || cfg.Infra.MetricsAddr != "" {
		t.Error("redis and metrics must be off by default")
	}
}

func TestLoad_Overrides(t *testing.T) {
	cfg, err := loadMap(t, map[string]string{
		"RSI_OVERSOLD":        "25",
		"INVESTMENT_FRACTION": "1",
		"DCA_PERIOD":          "Monthly",
		"DCA_WEEKLY_AMOUNT":   "50",
		"LOG_LEVEL":           "debug",
	})
	if err != nil {
		t.Fatal(err)
	}
	p := cfg.Pipeline()
	if p.Rules.RSIOversold != 25 || p.Backtest.InvestmentFraction != 1 || p.Benchmark.Amount != 50 {
		t.Errorf("overrides not applied: %+v", p)
	}
	if p.Benchmark.Period != benchmark.Monthly {
		t.Errorf("period = %q", p.Benchmark.Period)
	}
	if cfg.SlogLevel().String() != "DEBUG" {
		t.Errorf("level = %v", cfg.SlogLevel())
	}
}

func TestLoad_MandatoryFilterThreshold(t *testing.T) {
	cfg, err := loadMap(t, map[string]string{"REQUIRE_ABOVE_200MA": "true"})
	if err != nil {
		t.Fatal(err)
	}
	if r := cfg.Rules(); r.MinConditions != 4 || !r.RequireAbove200MA {
		t.Errorf("expected 4-of-6 with filter, got %+v", r)
	}

	cfg, err = loadMap(t, map[string]string{"REQUIRE_ABOVE_200MA": "true", "MIN_CONDITION_COUNT": "5"})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Rules().MinConditions != 5 {
		t.Errorf("explicit count ignored: %d", cfg.Rules().MinConditions)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := map[string]map[string]string{
		"fraction":    {"INVESTMENT_FRACTION": "1.5"},
		"balance":     {"INITIAL_BALANCE": "-10"},
		"rsi order":   {"RSI_OVERSOLD": "80"},
		"count":       {"MIN_CONDITION_COUNT": "6"},
		"zero count":  {"MIN_CONDITION_COUNT": "0"},
		"zero filter": {"MIN_CONDITION_COUNT": "0", "REQUIRE_ABOVE_200MA": "true"},
		"period":      {"DCA_PERIOD": "hourly"},
		"dca amount":  {"DCA_WEEKLY_AMOUNT": "0"},
		"log level":   {"LOG_LEVEL": "loud"},
		"parallelism": {"PARALLELISM": "0"},
	}
	for name, env := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := loadMap(t, env); !errors.Is(err, model.ErrInvalidConfiguration) {
				t.Fatalf("expected ErrInvalidConfiguration, got %v", err)
			}
		})
	}

	if _, err := loadMap(t, map[string]string{"RSI_OVERSOLD": "abc"}); err == nil {
		t.Fatal("expected parse error")
	}
}
