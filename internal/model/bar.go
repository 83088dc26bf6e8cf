package model

import (
	"math"
	"time"
)

// Bar is one OHLCV observation for a fixed interval. Bars are immutable once
// created and a run's bars must have strictly increasing timestamps.
type Bar struct {
	TS     time.Time `json:"ts"` // interval start (UTC)
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// MinUsableBars is the shortest series a run accepts: one close-to-close delta.
const MinUsableBars = 2

// ValidateBars checks a bar sequence at ingestion. The first problem found is
// returned as an *InputError; nothing is partially accepted.
func ValidateBars(bars []Bar) error {
	if len(bars) < MinUsableBars {
		return insufficient(len(bars))
	}
	for i := range bars {
		b := &bars[i]
		if b.TS.IsZero() {
			return &InputError{Index: i, Field: "ts", Reason: "zero timestamp"}
		}
		if i > 0 && !b.TS.After(bars[i-1].TS) {
			reason := "timestamp not after previous bar"
			if b.TS.Equal(bars[i-1].TS) {
				reason = "duplicate timestamp"
			}
			return &InputError{Index: i, Field: "ts", Reason: reason}
		}
		for _, f := range [...]struct {
			name string
			v    float64
		}{{"open", b.Open}, {"high", b.High}, {"low", b.Low}, {"close", b.Close}} {
			if !finite(f.v) {
				return &InputError{Index: i, Field: f.name, Reason: "non-finite price"}
			}
			if f.v <= 0 {
				return &InputError{Index: i, Field: f.name, Reason: "non-positive price"}
			}
		}
		if !finite(b.Volume) {
			return &InputError{Index: i, Field: "volume", Reason: "non-finite volume"}
		}
		if b.Volume < 0 {
			return &InputError{Index: i, Field: "volume", Reason: "negative volume"}
		}
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
