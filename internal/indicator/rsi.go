package indicator

import "github.com/karnagge/bitcoin-trading-bot/internal/model"

// RSI calculates the Relative Strength Index from simple rolling means of
// gains and losses (not Wilder's smoothing). The first bar contributes a
// zero gain and zero loss, so the first reading appears after period inputs.
type RSI struct {
	period    int
	count     int
	prevClose float64
	gains     *SMA
	losses    *SMA
}

// NewRSI creates a new RSI indicator with the given period (typically 14).
func NewRSI(period int) *RSI {
	return &RSI{
		period: period,
		gains:  NewSMA(period),
		losses: NewSMA(period),
	}
}

func (r *RSI) Name() string { return "RSI_" + itoa(r.period) }

func (r *RSI) Update(close float64) {
	gain, loss := 0.0, 0.0
	if r.count > 0 {
		delta := close - r.prevClose
		if delta > 0 {
			gain = delta
		} else {
			loss = -delta
		}
	}
	r.prevClose = close
	r.count++

	r.gains.Update(gain)
	r.losses.Update(loss)
}

// Value returns the RSI in [0, 100]. A window with no losses reads 100.
func (r *RSI) Value() model.Value {
	if !r.Ready() {
		return model.Undefined
	}
	avgGain := r.gains.Value().V
	avgLoss := r.losses.Value().V
	if avgLoss <= 0 {
		return model.Defined(100)
	}
	if avgGain < 0 {
		avgGain = 0
	}
	rs := avgGain / avgLoss
	return model.Defined(100.0 - (100.0 / (1.0 + rs)))
}

func (r *RSI) Ready() bool { return r.gains.Ready() }
