package indicator

import (
	"github.com/karnagge/bitcoin-trading-bot/internal/model"
)

// SMA calculates Simple Moving Average over a rolling window.
// Uses a preallocated circular buffer and a running sum, O(1) per update.
type SMA struct {
	period  int
	buf     []float64 // preallocated circular buffer
	idx     int       // current write position
	count   int       // total values received
	sum     float64
	nonzero int // non-zero values currently in the window
}

// NewSMA creates a new SMA indicator with the given period.
func NewSMA(period int) *SMA {
	return &SMA{
		period: period,
		buf:    make([]float64, period),
	}
}

func (s *SMA) Name() string { return "SMA_" + itoa(s.period) }

func (s *SMA) Update(x float64) {
	if s.count >= s.period {
		// Subtract the oldest value being overwritten
		old := s.buf[s.idx]
		s.sum -= old
		if old != 0 {
			s.nonzero--
		}
	}

	s.buf[s.idx] = x
	s.sum += x
	if x != 0 {
		s.nonzero++
	}
	s.idx = (s.idx + 1) % s.period
	s.count++
}

// Value returns the window mean. An all-zero window reads exactly 0 so that
// running-sum rounding never leaks into zero checks downstream.
func (s *SMA) Value() model.Value {
	if !s.Ready() {
		return model.Undefined
	}
	if s.nonzero == 0 {
		return model.Defined(0)
	}
	return model.Defined(s.sum / float64(s.period))
}

func (s *SMA) Ready() bool { return s.count >= s.period }

// Reset clears the SMA state for reuse.
func (s *SMA) Reset() {
	s.idx = 0
	s.count = 0
	s.sum = 0
	s.nonzero = 0
	for i := range s.buf {
		s.buf[i] = 0
	}
}

// itoa converts a non-negative int to string without importing strconv.
func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	buf := [20]byte{}
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}
