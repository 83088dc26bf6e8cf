package indicator

import (
	"math"

	"github.com/karnagge/bitcoin-trading-bot/internal/model"
)

// StdDev calculates the sample standard deviation (n-1 denominator) over a
// rolling window. The window is re-scanned on each read, which keeps a
// constant window at exactly zero deviation.
type StdDev struct {
	period int
	buf    []float64
	idx    int
	count  int
}

// NewStdDev creates a rolling sample standard deviation. period must be >= 2.
func NewStdDev(period int) *StdDev {
	return &StdDev{period: period, buf: make([]float64, period)}
}

func (s *StdDev) Name() string { return "STD_" + itoa(s.period) }

func (s *StdDev) Update(x float64) {
	s.buf[s.idx] = x
	s.idx = (s.idx + 1) % s.period
	s.count++
}

func (s *StdDev) Value() model.Value {
	if !s.Ready() {
		return model.Undefined
	}
	var mean float64
	for _, v := range s.buf {
		mean += v
	}
	mean /= float64(s.period)

	var ss float64
	for _, v := range s.buf {
		d := v - mean
		ss += d * d
	}
	return model.Defined(math.Sqrt(ss / float64(s.period-1)))
}

func (s *StdDev) Ready() bool { return s.count >= s.period }
