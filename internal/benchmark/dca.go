// Package benchmark computes a fixed periodic-investment (DCA) baseline from raw
// bar prices. It is independent of the signal and backtest packages.
package benchmark

import (
	"fmt"
	"math"
	"time"

	"github.com/karnagge/bitcoin-trading-bot/internal/model"
)

// Config sets the amount bought at the start of every period.
type Config struct {
	Amount float64 `json:"weekly_amount"`
	Period Period  `json:"period"`
}

// DefaultConfig buys 200 once a week.
func DefaultConfig() Config {
	return Config{Amount: 200, Period: Weekly}
}

func (c Config) Validate() error {
	if !(c.Amount > 0) || math.IsInf(c.Amount, 0) {
		return &model.ConfigError{Field: "dca_weekly_amount", Reason: "must be a finite value > 0"}
	}
	if _, err := ParsePeriod(string(c.Period)); err != nil {
		return &model.ConfigError{Field: "period", Reason: err.Error()}
	}
	return nil
}

// Entry is one purchase with the running totals after it.
type Entry struct {
	Period         time.Time `json:"period"`
	TS             time.Time `json:"ts"`
	Price          float64   `json:"price"`
	UnitsBought    float64   `json:"units_bought"`
	Invested       float64   `json:"invested"`
	TotalInvested  float64   `json:"total_invested"`
	TotalUnits     float64   `json:"total_units"`
	PortfolioValue float64   `json:"portfolio_value"` // at this entry's price
}

// Result is the benchmark outcome, valued at the last close.
type Result struct {
	Config           Config  `json:"config"`
	Entries          []Entry `json:"entries"`
	TotalInvested    float64 `json:"total_invested"`
	TotalUnits       float64 `json:"total_units"`
	FinalPrice       float64 `json:"final_price"`
	PortfolioValue   float64 `json:"portfolio_value"`
	ReturnPct        float64 `json:"return_pct"`
	AverageCostBasis float64 `json:"average_cost_basis"`
}

// Run buys cfg.Amount at the close of the first bar of every period.
func Run(bars []model.Bar, cfg Config) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("benchmark: no bars: %w", model.ErrInsufficientHistory)
	}

	res := &Result{Config: cfg, Entries: make([]Entry, 0, 64)}
	var (
		current time.Time
		started bool
	)
	for _, b := range bars {
		bucket := cfg.Period.Bucket(b.TS)
		if started && !bucket.After(current) {
			continue
		}
		current, started = bucket, true

		units := cfg.Amount / b.Close
		res.TotalInvested += cfg.Amount
		res.TotalUnits += units
		res.Entries = append(res.Entries, Entry{
			Period:         bucket,
			TS:             b.TS,
			Price:          b.Close,
			UnitsBought:    units,
			Invested:       cfg.Amount,
			TotalInvested:  res.TotalInvested,
			TotalUnits:     res.TotalUnits,
			PortfolioValue: res.TotalUnits * b.Close,
		})
	}

	res.FinalPrice = bars[len(bars)-1].Close
	res.PortfolioValue = res.TotalUnits * res.FinalPrice
	res.ReturnPct = (res.PortfolioValue - res.TotalInvested) / res.TotalInvested * 100
	res.AverageCostBasis = res.TotalInvested / res.TotalUnits
	return res, nil
}
