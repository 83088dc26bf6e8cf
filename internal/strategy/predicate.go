package strategy

import (
	"encoding/json"
	"fmt"
	"math/bits"
	"strings"
)

// Predicate is one named rule condition evaluated per bar.
type Predicate uint8

const (
	// Buy side
	RSIOversold Predicate = iota
	MACDCrossUp
	PriceNearBBLow
	VolumeIncrease
	Uptrend
	Above200MA

	// Sell side
	RSIOverbought
	MACDCrossDown
	PriceNearBBHigh
	VolumeDecrease
	Downtrend

	numPredicates
)

var predicateNames = [numPredicates]string{
	RSIOversold:     "RSI_OVERSOLD",
	MACDCrossUp:     "MACD_CROSS_UP",
	PriceNearBBLow:  "PRICE_NEAR_BB_LOW",
	VolumeIncrease:  "VOLUME_INCREASE",
	Uptrend:         "UPTREND",
	Above200MA:      "ABOVE_200MA",
	RSIOverbought:   "RSI_OVERBOUGHT",
	MACDCrossDown:   "MACD_CROSS_DOWN",
	PriceNearBBHigh: "PRICE_NEAR_BB_HIGH",
	VolumeDecrease:  "VOLUME_DECREASE",
	Downtrend:       "DOWNTREND",
}

func (p Predicate) String() string {
	if p >= numPredicates {
		return fmt.Sprintf("PREDICATE(%d)", uint8(p))
	}
	return predicateNames[p]
}

// ParsePredicate maps a reason name back to its Predicate.
func ParsePredicate(name string) (Predicate, error) {
	for i, n := range predicateNames {
		if n == name {
			return Predicate(i), nil
		}
	}
	return 0, fmt.Errorf("unknown predicate %q", name)
}

// PredicateSet is a bit-set of predicates. Iteration order is declaration order.
type PredicateSet uint16

// SetOf builds a set from the given predicates.
func SetOf(ps ...Predicate) PredicateSet {
	var s PredicateSet
	for _, p := range ps {
		s = s.With(p)
	}
	return s
}

func (s PredicateSet) With(p Predicate) PredicateSet { return s | 1<<p }
func (s PredicateSet) Has(p Predicate) bool         { return s&(1<<p) != 0 }
func (s PredicateSet) Len() int                     { return bits.OnesCount16(uint16(s)) }
func (s PredicateSet) Empty() bool                  { return s == 0 }

// Predicates lists the members in declaration order.
func (s PredicateSet) Predicates() []Predicate {
	out := make([]Predicate, 0, s.Len())
	for p := Predicate(0); p < numPredicates; p++ {
		if s.Has(p) {
			out = append(out, p)
		}
	}
	return out
}

// Names lists the member names in declaration order.
func (s PredicateSet) Names() []string {
	ps := s.Predicates()
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.String()
	}
	return out
}

func (s PredicateSet) String() string { return strings.Join(s.Names(), ",") }

// MarshalJSON encodes the set as an ordered array of names.
func (s PredicateSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Names())
}

// UnmarshalJSON decodes an array of names.
func (s *PredicateSet) UnmarshalJSON(data []byte) error {
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return err
	}
	var set PredicateSet
	for _, n := range names {
		p, err := ParsePredicate(n)
		if err != nil {
			return err
		}
		set = set.With(p)
	}
	*s = set
	return nil
}

// ParseReasons decodes the comma-joined form produced by String.
func ParseReasons(s string) (PredicateSet, error) {
	var set PredicateSet
	if s == "" {
		return set, nil
	}
	for _, n := range strings.Split(s, ",") {
		p, err := ParsePredicate(strings.TrimSpace(n))
		if err != nil {
			return 0, err
		}
		set = set.With(p)
	}
	return set, nil
}
