// Package backtest replays a signal stream against a single-asset cash account.
//
// The account starts all-cash, buys a fraction of cash on Buy while flat and
// liquidates the whole position on Sell while long. Completed round trips are
// recorded as Trades; the result carries the trade log, summary statistics,
// the per-bar equity curve and the maximum drawdown.
package backtest

import (
	"time"

	"github.com/karnagge/bitcoin-trading-bot/internal/model"
)

// Config holds the account parameters for one run.
type Config struct {
	InitialBalance     float64 `json:"initial_balance"`
	InvestmentFraction float64 `json:"investment_fraction"`
}

// DefaultConfig returns a 10000 balance investing 95% of cash per entry.
func DefaultConfig() Config {
	return Config{InitialBalance: 10000, InvestmentFraction: 0.95}
}

// Validate rejects a non-positive balance or a fraction outside (0,1].
func (c Config) Validate() error {
	if !(c.InitialBalance > 0) {
		return &model.ConfigError{Field: "initial_balance", Reason: "must be > 0"}
	}
	if !(c.InvestmentFraction > 0) || c.InvestmentFraction > 1 {
		return &model.ConfigError{Field: "investment_fraction", Reason: "must be within (0,1]"}
	}
	return nil
}

// Account is the cash/asset state of a run. The zero quantity means flat.
type Account struct {
	Cash     float64 `json:"cash"`
	Quantity float64 `json:"asset_quantity"`
}

// Equity marks the account to price.
func (a Account) Equity(price float64) float64 {
	return a.Cash + a.Quantity*price
}

// Flat reports whether no asset is held.
func (a Account) Flat() bool { return a.Quantity == 0 }

// OpenTrade is a position still held after the last bar.
type OpenTrade struct {
	EntryIndex int       `json:"entry_index"`
	EntryTS    time.Time `json:"entry_ts"`
	EntryPrice float64   `json:"entry_price"`
	Quantity   float64   `json:"quantity"`
	LastPrice  float64   `json:"last_price"`

	// UnrealizedPct is (LastPrice - EntryPrice) / EntryPrice * 100.
	UnrealizedPct float64 `json:"unrealized_pct"`
}

// State is threaded through Apply, one per run.
type State struct {
	Account Account
	open    *OpenTrade
}

// NewState returns an all-cash state.
func NewState(cfg Config) State {
	return State{Account: Account{Cash: cfg.InitialBalance}}
}

// Open returns a copy of the pending entry, if any.
func (s State) Open() (OpenTrade, bool) {
	if s.open == nil {
		return OpenTrade{}, false
	}
	return *s.open, true
}
