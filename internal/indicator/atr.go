package indicator

import (
	"math"

	"github.com/karnagge/bitcoin-trading-bot/internal/model"
)

// ATR calculates Average True Range as a simple rolling mean of true range.
// The first bar's true range is high-low only, as no previous close exists.
type ATR struct {
	period    int
	prevClose float64
	hasPrev   bool
	ranges    *SMA
}

// NewATR creates a new ATR indicator with the given period (typically 14).
func NewATR(period int) *ATR {
	return &ATR{period: period, ranges: NewSMA(period)}
}

func (a *ATR) Name() string { return "ATR_" + itoa(a.period) }

// UpdateBar feeds the next bar.
func (a *ATR) UpdateBar(b model.Bar) {
	a.ranges.Update(TrueRange(b, a.prevClose, a.hasPrev))
	a.prevClose = b.Close
	a.hasPrev = true
}

func (a *ATR) Value() model.Value { return a.ranges.Value() }
func (a *ATR) Ready() bool        { return a.ranges.Ready() }

// TrueRange = max(high-low, |high-prevClose|, |low-prevClose|).
func TrueRange(b model.Bar, prevClose float64, hasPrev bool) float64 {
	tr := b.High - b.Low
	if !hasPrev {
		return tr
	}
	return math.Max(tr, math.Max(math.Abs(b.High-prevClose), math.Abs(b.Low-prevClose)))
}
