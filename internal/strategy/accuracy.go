package strategy

import "github.com/karnagge/bitcoin-trading-bot/internal/model"

// Accuracy summarizes how often a signal's direction matched the next bar's move.
type Accuracy struct {
	TotalSignals   int     `json:"total_signals"`
	BuySignals     int     `json:"buy_signals"`
	SellSignals    int     `json:"sell_signals"`
	Scored         int     `json:"scored"` // signals with a following bar
	Successful     int     `json:"successful"`
	SuccessRatePct float64 `json:"success_rate_pct"`
	AvgRSIBuy      float64 `json:"avg_rsi_buy"`
	AvgRSISell     float64 `json:"avg_rsi_sell"`
}

// ScoreSignals computes Accuracy. A Buy succeeds when the next close is higher,
// a Sell when it is lower. All ratios are 0 when nothing qualifies.
func ScoreSignals(bars []model.Bar, sets []model.IndicatorSet, signals []Signal) Accuracy {
	var a Accuracy
	var rsiBuy, rsiSell float64
	var nRSIBuy, nRSISell int

	n := len(signals)
	if len(bars) < n {
		n = len(bars)
	}
	for t := 0; t < n; t++ {
		sig := signals[t]
		if sig.Direction == Neutral {
			continue
		}
		a.TotalSignals++

		var rsi model.Value
		if t < len(sets) {
			rsi = sets[t].RSI
		}
		if sig.Direction == Buy {
			a.BuySignals++
			if rsi.OK {
				rsiBuy += rsi.V
				nRSIBuy++
			}
		} else {
			a.SellSignals++
			if rsi.OK {
				rsiSell += rsi.V
				nRSISell++
			}
		}

		if t+1 >= len(bars) {
			continue
		}
		a.Scored++
		cur, next := bars[t].Close, bars[t+1].Close
		if (sig.Direction == Buy && next > cur) || (sig.Direction == Sell && next < cur) {
			a.Successful++
		}
	}

	if a.Scored > 0 {
		a.SuccessRatePct = float64(a.Successful) / float64(a.Scored) * 100
	}
	if nRSIBuy > 0 {
		a.AvgRSIBuy = rsiBuy / float64(nRSIBuy)
	}
	if nRSISell > 0 {
		a.AvgRSISell = rsiSell / float64(nRSISell)
	}
	return a
}
