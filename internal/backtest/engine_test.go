package backtest

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/karnagge/bitcoin-trading-bot/internal/model"
	"github.com/karnagge/bitcoin-trading-bot/internal/strategy"
)

func assertClose(t *testing.T, label string, got, want, tol float64) {
	t.Helper()
	if math.Abs(got-want) > tol {
		t.Errorf("%s: got %.10f, want %.10f (diff %.2e)", label, got, want, math.Abs(got-want))
	}
}

var start = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func makeBars(closes []float64) []model.Bar {
	bars := make([]model.Bar, len(closes))
	for i, c := range closes {
		bars[i] = model.Bar{TS: start.AddDate(0, 0, i), Open: c, High: c, Low: c, Close: c, Volume: 1}
	}
	return bars
}

func signalsAt(n int, dirs map[int]strategy.Direction) []strategy.Signal {
	out := make([]strategy.Signal, n)
	for i, d := range dirs {
		out[i].Direction = d
	}
	return out
}

// Buy at bar 10 (100), Sell at bar 20 (110), fraction 1, balance 1000.
func TestRun_SingleRoundTrip(t *testing.T) {
	closes := make([]float64, 25)
	for i := range closes {
		closes[i] = 100
	}
	for i := 20; i < 25; i++ {
		closes[i] = 110
	}
	bars := makeBars(closes)
	cfg := Config{InitialBalance: 1000, InvestmentFraction: 1.0}

	st := NewState(cfg)
	st, _ = Apply(cfg, st, bars[10], 10, strategy.Buy)
	assertClose(t, "qty after buy", st.Account.Quantity, 10, 1e-12)
	assertClose(t, "cash after buy", st.Account.Cash, 0, 1e-12)
	st, trade := Apply(cfg, st, bars[20], 20, strategy.Sell)
	if trade == nil {
		t.Fatal("expected a closed trade")
	}
	assertClose(t, "cash after sell", st.Account.Cash, 1100, 1e-9)

	res, err := Run(bars, signalsAt(len(bars), map[int]strategy.Direction{10: strategy.Buy, 20: strategy.Sell}), cfg)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Trades) != 1 || res.OpenTrade != nil {
		t.Fatalf("trades=%d open=%v", len(res.Trades), res.OpenTrade)
	}
	tr := res.Trades[0]
	if tr.EntryIndex != 10 || tr.ExitIndex != 20 || !tr.EntryTS.Equal(bars[10].TS) {
		t.Errorf("unexpected trade anchors: %+v", tr)
	}
	assertClose(t, "pnl_percentage", tr.PnLPct, 10, 1e-9)
	assertClose(t, "return_percentage", res.ReturnPercentage, 10, 1e-9)
	assertClose(t, "profit_loss", res.ProfitLoss, 100, 1e-9)
	assertClose(t, "final_equity", res.FinalEquity, 1100, 1e-9)
	if res.TotalTrades != 1 || res.WinningTrades != 1 || res.WinRate != 100 {
		t.Errorf("stats: %+v", res.Stats)
	}
	assertClose(t, "max drawdown", res.MaxDrawdownPct, 0, 1e-12)
	if res.AvgHolding != 10*24*time.Hour {
		t.Errorf("average holding = %v", res.AvgHolding)
	}
}

func TestRun_NoTradesAllZero(t *testing.T) {
	bars := makeBars([]float64{100, 90, 120})
	res, err := Run(bars, make([]strategy.Signal, 3), DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	s := res.Stats
	if s.TotalTrades != 0 || s.WinRate != 0 || s.TotalReturnPct != 0 || s.AverageReturnPct != 0 {
		t.Fatalf("expected zero stats, got %+v", s)
	}
	if len(s.BestTrades) != 0 || len(s.WorstTrades) != 0 {
		t.Fatal("expected empty rankings")
	}
	if s.FinalEquity != 10000 || s.ProfitLoss != 0 || s.ReturnPercentage != 0 {
		t.Fatalf("expected untouched equity, got %+v", s)
	}
}

func TestRun_IgnoresRedundantSignals(t *testing.T) {
	bars := makeBars([]float64{100, 50, 200, 100, 80})
	dirs := map[int]strategy.Direction{0: strategy.Sell, 1: strategy.Buy, 2: strategy.Buy, 3: strategy.Sell, 4: strategy.Sell}
	cfg := Config{InitialBalance: 1000, InvestmentFraction: 0.5}
	res, err := Run(bars, signalsAt(len(bars), dirs), cfg)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Trades) != 1 {
		t.Fatalf("expected 1 trade, got %d", len(res.Trades))
	}
	// 500 invested at 50 → 10 units, sold at 100.
	assertClose(t, "quantity", res.Trades[0].Quantity, 10, 1e-12)
	assertClose(t, "pnl", res.Trades[0].PnLPct, 100, 1e-9)
	assertClose(t, "cash", res.Account.Cash, 1500, 1e-9)
	assertClose(t, "equity at bar 2", res.Equity[2], 2500, 1e-9)
	// Peak 2500 at bar 2, then 1500 → 40% drawdown.
	assertClose(t, "max drawdown", res.MaxDrawdownPct, 40, 1e-9)
}

func TestRun_OpenTradeMarkedToMarket(t *testing.T) {
	bars := makeBars([]float64{100, 100, 80})
	cfg := Config{InitialBalance: 1000, InvestmentFraction: 0.95}
	res, err := Run(bars, signalsAt(3, map[int]strategy.Direction{1: strategy.Buy}), cfg)
	if err != nil {
		t.Fatal(err)
	}
	if res.OpenTrade == nil {
		t.Fatal("expected open trade")
	}
	assertClose(t, "unrealized", res.OpenTrade.UnrealizedPct, -20, 1e-9)
	// 50 cash + 9.5 units * 80.
	assertClose(t, "final equity", res.FinalEquity, 810, 1e-9)
	assertClose(t, "recomputed", res.Account.Equity(80), res.FinalEquity, 1e-12)
	if res.TotalTrades != 0 {
		t.Fatal("open position must not count as a trade")
	}
}

func TestRun_AccountNeverNegative(t *testing.T) {
	n := 400
	closes := make([]float64, n)
	sigs := make([]strategy.Signal, n)
	for i := range closes {
		closes[i] = 100 + 30*math.Sin(float64(i)/7)
		switch i % 9 {
		case 0, 4:
			sigs[i].Direction = strategy.Buy
		case 2, 7:
			sigs[i].Direction = strategy.Sell
		}
	}
	bars := makeBars(closes)
	cfg := DefaultConfig()
	st := NewState(cfg)
	for i, b := range bars {
		st, _ = Apply(cfg, st, b, i, sigs[i].Direction)
		if st.Account.Cash < 0 || st.Account.Quantity < 0 {
			t.Fatalf("bar %d: negative account %+v", i, st.Account)
		}
	}
	res, err := Run(bars, sigs, cfg)
	if err != nil {
		t.Fatal(err)
	}
	assertClose(t, "final equity", res.FinalEquity, res.Account.Equity(closes[n-1]), 1e-9)
	if res.WinningTrades+res.LosingTrades > res.TotalTrades {
		t.Fatal("win/loss counts exceed trades")
	}
}

func TestSummarize_Rankings(t *testing.T) {
	pnls := []float64{5, -3, 12, 0, -8, 7}
	trades := make([]Trade, len(pnls))
	for i, p := range pnls {
		trades[i] = Trade{ExitIndex: i, PnLPct: p}
	}
	s := Summarize(trades, 1000, 1100)
	if s.WinningTrades != 3 || s.LosingTrades != 2 {
		t.Fatalf("win/loss: %d/%d", s.WinningTrades, s.LosingTrades)
	}
	assertClose(t, "win rate", s.WinRate, 50, 1e-12)
	assertClose(t, "total", s.TotalReturnPct, 13, 1e-12)
	assertClose(t, "average", s.AverageReturnPct, 13.0/6, 1e-12)

	best := []float64{12, 7, 5}
	worst := []float64{-8, -3, 0}
	for i := range best {
		assertClose(t, "best", s.BestTrades[i].PnLPct, best[i], 0)
		assertClose(t, "worst", s.WorstTrades[i].PnLPct, worst[i], 0)
	}
	if trades[0].PnLPct != 5 {
		t.Fatal("input order must not be mutated")
	}
}

func TestConfig_Validate(t *testing.T) {
	bad := []Config{
		{InitialBalance: 0, InvestmentFraction: 0.5},
		{InitialBalance: -1, InvestmentFraction: 0.5},
		{InitialBalance: 100, InvestmentFraction: 0},
		{InitialBalance: 100, InvestmentFraction: -0.1},
		{InitialBalance: 100, InvestmentFraction: 1.01},
		{InitialBalance: math.NaN(), InvestmentFraction: 0.5},
	}
	for _, c := range bad {
		if err := c.Validate(); !errors.Is(err, model.ErrInvalidConfiguration) {
			t.Errorf("%+v: expected ErrInvalidConfiguration, got %v", c, err)
		}
		if _, err := Run(makeBars([]float64{1, 2}), make([]strategy.Signal, 2), c); err == nil {
			t.Errorf("%+v: Run must reject config", c)
		}
	}
	if err := (Config{InitialBalance: 1, InvestmentFraction: 1}).Validate(); err != nil {
		t.Fatalf("fraction 1 must be valid: %v", err)
	}
	if _, err := Run(makeBars([]float64{1, 2}), make([]strategy.Signal, 1), DefaultConfig()); err == nil {
		t.Fatal("expected length mismatch error")
	}
}
