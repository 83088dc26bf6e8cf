package indicator

import (
	"github.com/karnagge/bitcoin-trading-bot/internal/model"
)

// Fixed indicator windows.
const (
	RSIPeriod       = 14
	MACDFast        = 12
	MACDSlow        = 26
	MACDSignal      = 9
	BollingerPeriod = 20
	BollingerK      = 2.0
	TrendFast       = 50
	TrendSlow       = 200
	MomentumPeriod  = 10
	ATRPeriod       = 14

	// MaxWindow is the longest window; every indicator is defined from this bar count on.
	MaxWindow = TrendSlow
)

// Engine computes the full IndicatorSet for one bar series, one bar at a time.
// Designed for single-goroutine usage, no locks needed. An Engine belongs to
// a single series; use a fresh Engine per run.
type Engine struct {
	rsi       *RSI
	macd      *MACD
	bollinger *Bollinger
	smaFast   *SMA
	smaSlow   *SMA
	momentum  *Momentum
	atr       *ATR
	processed int
}

// NewEngine creates an indicator engine with cold (empty) state.
func NewEngine() *Engine {
	return &Engine{
		rsi:       NewRSI(RSIPeriod),
		macd:      NewMACD(MACDFast, MACDSlow, MACDSignal),
		bollinger: NewBollinger(BollingerPeriod, BollingerK),
		smaFast:   NewSMA(TrendFast),
		smaSlow:   NewSMA(TrendSlow),
		momentum:  NewMomentum(MomentumPeriod),
		atr:       NewATR(ATRPeriod),
	}
}

// Next feeds the next bar and returns the indicators as of that bar.
func (e *Engine) Next(bar model.Bar) model.IndicatorSet {
	c := bar.Close
	e.rsi.Update(c)
	e.macd.Update(c)
	e.bollinger.Update(c)
	e.smaFast.Update(c)
	e.smaSlow.Update(c)
	e.momentum.Update(c)
	e.atr.UpdateBar(bar)
	e.processed++

	var set model.IndicatorSet
	set.RSI = e.rsi.Value()
	set.MACD, set.MACDSignal, set.MACDHist = e.macd.Values()
	set.SMA20, set.Std20, set.BollingerUpper, set.BollingerLower = e.bollinger.Values()
	set.SMA50 = e.smaFast.Value()
	set.SMA200 = e.smaSlow.Value()
	set.Momentum = e.momentum.Value()
	set.ATR = e.atr.Value()
	return set
}

// Processed returns the number of bars fed so far.
func (e *Engine) Processed() int { return e.processed }

// Compute returns the IndicatorSet sequence for bars, index-aligned with the input.
// It is a pure function of bars: identical input yields identical output.
func Compute(bars []model.Bar) []model.IndicatorSet {
	e := NewEngine()
	out := make([]model.IndicatorSet, len(bars))
	for i, b := range bars {
		out[i] = e.Next(b)
	}
	return out
}
