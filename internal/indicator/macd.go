package indicator

import "github.com/karnagge/bitcoin-trading-bot/internal/model"

// MACD is the difference of a fast and slow close EMA, smoothed by a signal EMA.
type MACD struct {
	fast   *EMA
	slow   *EMA
	signal *EMA
	line   float64
}

// NewMACD creates a MACD with the given EMA spans (typically 12, 26, 9).
func NewMACD(fast, slow, signal int) *MACD {
	return &MACD{
		fast:   NewEMA(fast),
		slow:   NewEMA(slow),
		signal: NewEMA(signal),
	}
}

func (m *MACD) Update(close float64) {
	m.fast.Update(close)
	m.slow.Update(close)
	m.line = m.fast.current - m.slow.current
	m.signal.Update(m.line)
}

// Values returns the MACD line, its signal line and the histogram.
func (m *MACD) Values() (line, signal, hist model.Value) {
	if !m.signal.Ready() {
		return model.Undefined, model.Undefined, model.Undefined
	}
	sig := m.signal.current
	return model.Defined(m.line), model.Defined(sig), model.Defined(m.line - sig)
}

// Bollinger is a mean ± k·stddev envelope around close.
type Bollinger struct {
	k    float64
	mean *SMA
	std  *StdDev
}

// NewBollinger creates Bollinger Bands over period closes with width k.
func NewBollinger(period int, k float64) *Bollinger {
	return &Bollinger{k: k, mean: NewSMA(period), std: NewStdDev(period)}
}

func (b *Bollinger) Update(close float64) {
	b.mean.Update(close)
	b.std.Update(close)
}

// Values returns the middle band, the deviation, and the upper and lower bands.
func (b *Bollinger) Values() (mid, std, upper, lower model.Value) {
	mid, std = b.mean.Value(), b.std.Value()
	if !mid.OK || !std.OK {
		return mid, std, model.Undefined, model.Undefined
	}
	return mid, std, model.Defined(mid.V + b.k*std.V), model.Defined(mid.V - b.k*std.V)
}
