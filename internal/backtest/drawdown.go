package backtest

// drawdown tracks the running equity peak and the deepest fall from it.
type drawdown struct {
	peak   float64
	maxPct float64
}

func (d *drawdown) record(equity float64) {
	if equity > d.peak {
		d.peak = equity
	}
	if d.peak > 0 {
		if dd := (d.peak - equity) / d.peak * 100; dd > d.maxPct {
			d.maxPct = dd
		}
	}
}
