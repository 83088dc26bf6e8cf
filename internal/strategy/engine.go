// Package strategy turns indicator-annotated bars into a Buy/Sell/Neutral signal stream.
//
// Each bar is evaluated against a voting rule set: while Flat, the buy predicates
// are counted; while Long, the sell predicates are. A signal fires when the count
// of true predicates reaches Rules.MinConditions, which alternates the position
// between Flat and Long. Evaluation is causal and never looks past the current bar.
package strategy

import (
	"fmt"
	"log/slog"

	"github.com/karnagge/bitcoin-trading-bot/internal/model"
)

// Engine evaluates Rules over a bar series.
type Engine struct {
	rules Rules
	buy   PredicateSet
	sell  PredicateSet
}

// NewEngine validates rules and creates an Engine.
func NewEngine(rules Rules) (*Engine, error) {
	if err := rules.Validate(); err != nil {
		return nil, err
	}
	return &Engine{
		rules: rules,
		buy:   rules.BuyPredicates(),
		sell:  rules.SellPredicates(),
	}, nil
}

// Rules returns the engine's rule configuration.
func (e *Engine) Rules() Rules { return e.rules }

// Run evaluates every bar in order starting from a Flat position and returns
// one signal per bar plus the final state.
func (e *Engine) Run(bars []model.Bar, sets []model.IndicatorSet) ([]Signal, State, error) {
	if len(bars) != len(sets) {
		return nil, State{}, fmt.Errorf("strategy: %d bars but %d indicator sets", len(bars), len(sets))
	}
	signals := make([]Signal, len(bars))
	var st State
	for t := range bars {
		signals[t], st = e.Step(st, bars, sets, t)
	}
	return signals, st, nil
}

// Step evaluates bar t given the state after bar t-1 and returns the signal and
// the next state. Bars where a referenced indicator is Undefined at t or t-1
// yield Neutral and leave the state unchanged.
func (e *Engine) Step(st State, bars []model.Bar, sets []model.IndicatorSet, t int) (Signal, State) {
	sig := Signal{TS: bars[t].TS, Direction: Neutral}

	if !st.Position.Long {
		report, ok := e.Conditions(bars, sets, t, Buy)
		if !ok {
			return sig, st
		}
		if e.rules.RequireAbove200MA && !report.Met(Above200MA) {
			return sig, st
		}
		if report.Triggered.Len() >= e.rules.MinConditions {
			sig.Direction = Buy
			sig.Reasons = report.Triggered
			st.Position = Position{Long: true, EntryPrice: bars[t].Close, EntryTS: bars[t].TS}
			slog.Debug("buy signal", "ts", bars[t].TS, "close", bars[t].Close, "reasons", report.Triggered.String())
		}
		return sig, st
	}

	report, ok := e.Conditions(bars, sets, t, Sell)
	if !ok {
		return sig, st
	}
	if report.Triggered.Len() >= e.rules.MinConditions {
		sig.Direction = Sell
		sig.Reasons = report.Triggered
		st.Position = Position{}
		slog.Debug("sell signal", "ts", bars[t].TS, "close", bars[t].Close, "reasons", report.Triggered.String())
	}
	return sig, st
}

// Conditions evaluates the buy or sell predicate set on bar t. ok is false when
// t == 0 or any indicator the set references is Undefined at t or t-1.
func (e *Engine) Conditions(bars []model.Bar, sets []model.IndicatorSet, t int, side Direction) (ConditionReport, bool) {
	if t < 1 || t >= len(bars) || t >= len(sets) {
		return ConditionReport{}, false
	}
	cur, prev := sets[t], sets[t-1]
	bar, prevBar := bars[t], bars[t-1]

	// Shared inputs for both sides.
	if !allDefined(cur.RSI, cur.MACD, cur.MACDSignal, prev.MACD, prev.MACDSignal, cur.SMA50, cur.SMA200) {
		return ConditionReport{}, false
	}

	r := e.rules
	var report ConditionReport
	mark := func(p Predicate, cond bool) {
		report.Evaluated = report.Evaluated.With(p)
		if cond {
			report.Triggered = report.Triggered.With(p)
		}
	}

	switch side {
	case Buy:
		if !cur.BollingerLower.OK {
			return ConditionReport{}, false
		}
		mark(RSIOversold, cur.RSI.V < r.RSIOversold)
		mark(MACDCrossUp, prev.MACD.V < prev.MACDSignal.V && cur.MACD.V > cur.MACDSignal.V)
		mark(PriceNearBBLow, bar.Close <= cur.BollingerLower.V*r.BBProximityBuy)
		mark(VolumeIncrease, bar.Volume > prevBar.Volume*r.VolumeIncrease)
		mark(Uptrend, cur.SMA50.V > cur.SMA200.V)
		if e.buy.Has(Above200MA) {
			mark(Above200MA, bar.Close > cur.SMA200.V)
		}
	case Sell:
		if !cur.BollingerUpper.OK {
			return ConditionReport{}, false
		}
		mark(RSIOverbought, cur.RSI.V > r.RSIOverbought)
		mark(MACDCrossDown, prev.MACD.V > prev.MACDSignal.V && cur.MACD.V < cur.MACDSignal.V)
		mark(PriceNearBBHigh, bar.Close >= cur.BollingerUpper.V*r.BBProximitySell)
		mark(VolumeDecrease, bar.Volume < prevBar.Volume*r.VolumeDecrease)
		mark(Downtrend, cur.SMA50.V < cur.SMA200.V)
	default:
		return ConditionReport{}, false
	}
	return report, true
}

// Latest returns the signal of the last bar, Neutral included. This is what a
// live consumer acts on.
func Latest(signals []Signal) (Signal, bool) {
	if len(signals) == 0 {
		return Signal{}, false
	}
	return signals[len(signals)-1], true
}

// LastAction returns the most recent Buy or Sell. ok is false when none fired.
func LastAction(signals []Signal) (Signal, bool) {
	for i := len(signals) - 1; i >= 0; i-- {
		if signals[i].Direction != Neutral {
			return signals[i], true
		}
	}
	return Signal{}, false
}

func allDefined(vs ...model.Value) bool {
	for _, v := range vs {
		if !v.OK {
			return false
		}
	}
	return true
}
