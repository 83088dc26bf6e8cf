package model

import (
	"encoding/json"
	"strconv"
)

// Value is an indicator reading that may be Undefined while its window warms up.
type Value struct {
	V  float64
	OK bool
}

// Undefined is the zero Value.
var Undefined = Value{}

// Defined wraps a computed reading.
func Defined(v float64) Value { return Value{V: v, OK: true} }

// Get returns the reading and whether it is defined.
func (v Value) Get() (float64, bool) { return v.V, v.OK }

// MarshalJSON encodes Undefined as null.
func (v Value) MarshalJSON() ([]byte, error) {
	if !v.OK {
		return []byte("null"), nil
	}
	return strconv.AppendFloat(nil, v.V, 'g', -1, 64), nil
}

// UnmarshalJSON decodes null as Undefined.
func (v *Value) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*v = Undefined
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*v = Defined(f)
	return nil
}

// IndicatorSet holds every indicator for one bar, index-aligned with the bar series.
type IndicatorSet struct {
	RSI            Value `json:"rsi"`
	MACD           Value `json:"macd"`
	MACDSignal     Value `json:"macd_signal"`
	MACDHist       Value `json:"macd_hist"`
	SMA20          Value `json:"sma20"`
	Std20          Value `json:"std20"`
	BollingerUpper Value `json:"bollinger_upper"`
	BollingerLower Value `json:"bollinger_lower"`
	SMA50          Value `json:"sma50"`
	SMA200         Value `json:"sma200"`
	Momentum       Value `json:"momentum"`
	ATR            Value `json:"atr"`
}
