package indicator

import "github.com/karnagge/bitcoin-trading-bot/internal/model"

// Momentum is the fractional change of close over period bars:
// (close[t] - close[t-period]) / close[t-period].
type Momentum struct {
	period int
	buf    []float64 // last period+1 closes
	idx    int
	count  int
}

// NewMomentum creates a momentum indicator looking back period bars.
func NewMomentum(period int) *Momentum {
	return &Momentum{period: period, buf: make([]float64, period+1)}
}

func (m *Momentum) Name() string { return "MOM_" + itoa(m.period) }

func (m *Momentum) Update(close float64) {
	m.buf[m.idx] = close
	m.idx = (m.idx + 1) % len(m.buf)
	m.count++
}

func (m *Momentum) Value() model.Value {
	if !m.Ready() {
		return model.Undefined
	}
	// After the write, idx points at the oldest slot (period bars back).
	past := m.buf[m.idx]
	latest := m.buf[(m.idx+m.period)%len(m.buf)]
	return model.Defined((latest - past) / past)
}

func (m *Momentum) Ready() bool { return m.count > m.period }
