package indicator

import "github.com/karnagge/bitcoin-trading-bot/internal/model"

// EMA calculates Exponential Moving Average with smoothing 2/(span+1).
// The first input seeds the average directly, so there is no warm-up gap.
// O(1) per update, no window storage needed.
type EMA struct {
	span       int
	multiplier float64
	current    float64
	count      int
}

// NewEMA creates a new EMA indicator with the given span.
func NewEMA(span int) *EMA {
	return &EMA{
		span:       span,
		multiplier: 2.0 / float64(span+1),
	}
}

func (e *EMA) Name() string { return "EMA_" + itoa(e.span) }

func (e *EMA) Update(x float64) {
	e.count++
	if e.count == 1 {
		e.current = x
		return
	}
	// EMA = (x * multiplier) + (EMA_prev * (1 - multiplier))
	e.current = (x * e.multiplier) + (e.current * (1 - e.multiplier))
}

func (e *EMA) Value() model.Value {
	if e.count == 0 {
		return model.Undefined
	}
	return model.Defined(e.current)
}

func (e *EMA) Ready() bool { return e.count > 0 }

// Reset clears the EMA state for reuse.
func (e *EMA) Reset() {
	e.current = 0
	e.count = 0
}
