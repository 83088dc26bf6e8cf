package backtest

import (
	"sort"
	"time"
)

// Trade is a completed entry/exit round trip.
type Trade struct {
	EntryIndex int       `json:"entry_index"`
	ExitIndex  int       `json:"exit_index"`
	EntryTS    time.Time `json:"entry_ts"`
	ExitTS     time.Time `json:"exit_ts"`
	EntryPrice float64   `json:"entry_price"`
	ExitPrice  float64   `json:"exit_price"`
	Quantity   float64   `json:"quantity"`
	PnLPct     float64   `json:"pnl_percentage"`
}

// Won reports a strictly positive return.
func (t Trade) Won() bool { return t.PnLPct > 0 }

// Stats summarizes a trade log. Every ratio is 0 when there are no trades.
type Stats struct {
	TotalTrades      int     `json:"total_trades"`
	WinningTrades    int     `json:"winning_trades"`
	LosingTrades     int     `json:"losing_trades"`
	WinRate          float64 `json:"win_rate"`
	TotalReturnPct   float64 `json:"total_return_pct"`
	AverageReturnPct float64 `json:"average_return_pct"`
	BestTrades       []Trade `json:"best_trades"`
	WorstTrades      []Trade `json:"worst_trades"`

	// AvgHolding is the mean time between entry and exit.
	AvgHolding time.Duration `json:"average_trade_duration"`

	FinalEquity      float64 `json:"final_equity"`
	ProfitLoss       float64 `json:"profit_loss"`
	ReturnPercentage float64 `json:"return_percentage"`
}

// rankedCount is how many trades BestTrades and WorstTrades list.
const rankedCount = 3

// Summarize derives Stats from trades and the closing equity.
func Summarize(trades []Trade, initialBalance, finalEquity float64) Stats {
	s := Stats{
		TotalTrades: len(trades),
		BestTrades:  []Trade{},
		WorstTrades: []Trade{},
		FinalEquity: finalEquity,
		ProfitLoss:  finalEquity - initialBalance,
	}
	if initialBalance > 0 {
		s.ReturnPercentage = s.ProfitLoss / initialBalance * 100
	}
	if len(trades) == 0 {
		return s
	}

	var held time.Duration
	for _, t := range trades {
		held += t.ExitTS.Sub(t.EntryTS)
		switch {
		case t.PnLPct > 0:
			s.WinningTrades++
		case t.PnLPct < 0:
			s.LosingTrades++
		}
		s.TotalReturnPct += t.PnLPct
	}
	s.WinRate = float64(s.WinningTrades) / float64(s.TotalTrades) * 100
	s.AverageReturnPct = s.TotalReturnPct / float64(s.TotalTrades)
	s.AvgHolding = held / time.Duration(s.TotalTrades)

	ranked := make([]Trade, len(trades))
	copy(ranked, trades)
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].PnLPct > ranked[j].PnLPct })
	n := rankedCount
	if n > len(ranked) {
		n = len(ranked)
	}
	s.BestTrades = append(s.BestTrades, ranked[:n]...)

	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].PnLPct < ranked[j].PnLPct })
	s.WorstTrades = append(s.WorstTrades, ranked[:n]...)
	return s
}
