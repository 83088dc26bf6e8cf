package pipeline

import (
	"github.com/karnagge/bitcoin-trading-bot/internal/backtest"
	"github.com/karnagge/bitcoin-trading-bot/internal/benchmark"
	"github.com/karnagge/bitcoin-trading-bot/internal/strategy"
)

// Config is the full parameter set of one run.
type Config struct {
	Rules     strategy.Rules   `json:"rules"`
	Backtest  backtest.Config  `json:"backtest"`
	Benchmark benchmark.Config `json:"benchmark"`
}

// DefaultConfig returns the 3-of-5 rules, a 10000 balance at 95% and a 200/week DCA.
func DefaultConfig() Config {
	return Config{
		Rules:     strategy.DefaultRules(),
		Backtest:  backtest.DefaultConfig(),
		Benchmark: benchmark.DefaultConfig(),
	}
}

// Validate checks every section and returns the first *model.ConfigError.
func (c Config) Validate() error {
	if err := c.Rules.Validate(); err != nil {
		return err
	}
	if err := c.Backtest.Validate(); err != nil {
		return err
	}
	return c.Benchmark.Validate()
}
