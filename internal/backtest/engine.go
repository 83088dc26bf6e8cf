package backtest

import (
	"fmt"

	"github.com/karnagge/bitcoin-trading-bot/internal/model"
	"github.com/karnagge/bitcoin-trading-bot/internal/strategy"
)

// Result is the outcome of one backtest run.
type Result struct {
	Config         Config     `json:"config"`
	Account        Account    `json:"account"`
	Trades         []Trade    `json:"trades"`
	OpenTrade      *OpenTrade `json:"open_trade"`
	Equity         []float64  `json:"equity_curve"`
	MaxDrawdownPct float64    `json:"max_drawdown_pct"`
	Stats
}

// Apply processes bar t under direction dir. A Buy is honored only while flat
// and a Sell only while holding; any other combination leaves st unchanged.
// The returned trade is non-nil when a Sell closed a position.
func Apply(cfg Config, st State, bar model.Bar, t int, dir strategy.Direction) (State, *Trade) {
	price := bar.Close
	switch {
	case dir == strategy.Buy && st.Account.Flat():
		invest := st.Account.Cash * cfg.InvestmentFraction
		qty := invest / price
		st.Account.Cash -= invest
		st.Account.Quantity += qty
		st.open = &OpenTrade{
			EntryIndex: t,
			EntryTS:    bar.TS,
			EntryPrice: price,
			Quantity:   qty,
		}
	case dir == strategy.Sell && st.Account.Quantity > 0:
		trade := &Trade{
			ExitIndex: t,
			ExitTS:    bar.TS,
			ExitPrice: price,
			Quantity:  st.Account.Quantity,
		}
		if st.open != nil {
			trade.EntryIndex = st.open.EntryIndex
			trade.EntryTS = st.open.EntryTS
			trade.EntryPrice = st.open.EntryPrice
			trade.PnLPct = (price - st.open.EntryPrice) / st.open.EntryPrice * 100
		}
		st.Account.Cash += st.Account.Quantity * price
		st.Account.Quantity = 0
		st.open = nil
		return st, trade
	}
	return st, nil
}

// Run replays signals over bars, which must be index-aligned.
func Run(bars []model.Bar, signals []strategy.Signal, cfg Config) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(bars) != len(signals) {
		return nil, fmt.Errorf("backtest: %d bars but %d signals", len(bars), len(signals))
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("backtest: %w", model.ErrInsufficientHistory)
	}

	res := &Result{
		Config: cfg,
		Trades: []Trade{},
		Equity: make([]float64, len(bars)),
	}
	st := NewState(cfg)
	dd := drawdown{peak: cfg.InitialBalance}

	for t, bar := range bars {
		var trade *Trade
		st, trade = Apply(cfg, st, bar, t, signals[t].Direction)
		if trade != nil {
			res.Trades = append(res.Trades, *trade)
		}
		res.Equity[t] = st.Account.Equity(bar.Close)
		dd.record(res.Equity[t])
	}

	last := bars[len(bars)-1].Close
	if open, ok := st.Open(); ok {
		open.LastPrice = last
		open.UnrealizedPct = (last - open.EntryPrice) / open.EntryPrice * 100
		res.OpenTrade = &open
	}
	res.Account = st.Account
	res.MaxDrawdownPct = dd.maxPct
	res.Stats = Summarize(res.Trades, cfg.InitialBalance, st.Account.Equity(last))
	return res, nil
}
