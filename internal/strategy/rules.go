package strategy

import (
	"github.com/karnagge/bitcoin-trading-bot/internal/model"
)

// Rules configures the predicate thresholds and the voting requirement.
type Rules struct {
	RSIOversold     float64 `json:"rsi_oversold"`
	RSIOverbought   float64 `json:"rsi_overbought"`
	VolumeIncrease  float64 `json:"volume_increase_threshold"`
	VolumeDecrease  float64 `json:"volume_decrease_threshold"`
	BBProximityBuy  float64 `json:"bb_proximity_buy"`
	BBProximitySell float64 `json:"bb_proximity_sell"`

	// MinConditions is the number of true predicates needed to emit a signal.
	MinConditions int `json:"min_condition_count"`

	// RequireAbove200MA adds ABOVE_200MA to the buy set and makes it mandatory.
	RequireAbove200MA bool `json:"require_above_200ma"`
}

// DefaultRules returns the 3-of-5 configuration.
func DefaultRules() Rules {
	return Rules{
		RSIOversold:     30,
		RSIOverbought:   70,
		VolumeIncrease:  1.5,
		VolumeDecrease:  0.7,
		BBProximityBuy:  1.02,
		BBProximitySell: 0.98,
		MinConditions:   3,
	}
}

// FilteredRules returns the 4-of-6 configuration with the mandatory 200-MA filter.
func FilteredRules() Rules {
	r := DefaultRules()
	r.MinConditions = 4
	r.RequireAbove200MA = true
	return r
}

// BuyPredicates is the set evaluated while Flat.
func (r Rules) BuyPredicates() PredicateSet {
	s := SetOf(RSIOversold, MACDCrossUp, PriceNearBBLow, VolumeIncrease, Uptrend)
	if r.RequireAbove200MA {
		s = s.With(Above200MA)
	}
	return s
}

// SellPredicates is the set evaluated while Long.
func (r Rules) SellPredicates() PredicateSet {
	return SetOf(RSIOverbought, MACDCrossDown, PriceNearBBHigh, VolumeDecrease, Downtrend)
}

// Validate rejects out-of-range thresholds with a *model.ConfigError.
func (r Rules) Validate() error {
	switch {
	case r.RSIOversold < 0 || r.RSIOversold > 100:
		return &model.ConfigError{Field: "rsi_oversold", Reason: "must be within [0,100]"}
	case r.RSIOverbought < 0 || r.RSIOverbought > 100:
		return &model.ConfigError{Field: "rsi_overbought", Reason: "must be within [0,100]"}
	case r.RSIOversold >= r.RSIOverbought:
		return &model.ConfigError{Field: "rsi_oversold", Reason: "must be below rsi_overbought"}
	case r.VolumeIncrease <= 0:
		return &model.ConfigError{Field: "volume_increase_threshold", Reason: "must be > 0"}
	case r.VolumeDecrease <= 0:
		return &model.ConfigError{Field: "volume_decrease_threshold", Reason: "must be > 0"}
	case r.BBProximityBuy <= 0:
		return &model.ConfigError{Field: "bb_proximity_buy", Reason: "must be > 0"}
	case r.BBProximitySell <= 0:
		return &model.ConfigError{Field: "bb_proximity_sell", Reason: "must be > 0"}
	case r.MinConditions < 1:
		return &model.ConfigError{Field: "min_condition_count", Reason: "must be >= 1"}
	case r.MinConditions > r.BuyPredicates().Len():
		return &model.ConfigError{Field: "min_condition_count", Reason: "exceeds buy predicate count"}
	case r.MinConditions > r.SellPredicates().Len():
		return &model.ConfigError{Field: "min_condition_count", Reason: "exceeds sell predicate count"}
	}
	return nil
}
