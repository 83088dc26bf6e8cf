package strategy

import (
	"encoding/json"
	"fmt"
	"time"
)

// Direction is the action a signal asks for.
type Direction int8

const (
	Neutral Direction = iota
	Buy
	Sell
)

func (d Direction) String() string {
	switch d {
	case Buy:
		return "BUY"
	case Sell:
		return "SELL"
	default:
		return "NEUTRAL"
	}
}

// ParseDirection is the inverse of Direction.String.
func ParseDirection(s string) (Direction, error) {
	switch s {
	case "NEUTRAL":
		return Neutral, nil
	case "BUY":
		return Buy, nil
	case "SELL":
		return Sell, nil
	}
	return Neutral, fmt.Errorf("unknown direction %q", s)
}

func (d Direction) MarshalJSON() ([]byte, error) { return json.Marshal(d.String()) }

func (d *Direction) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	v, err := ParseDirection(s)
	if err != nil {
		return err
	}
	*d = v
	return nil
}

// Signal is the decision for one bar. Reasons lists the triggered predicates
// for Buy and Sell and is empty for Neutral.
type Signal struct {
	TS        time.Time    `json:"ts"`
	Direction Direction    `json:"direction"`
	Reasons   PredicateSet `json:"reasons"`
}

// Position is the gating state carried across bars: Flat, or Long with the
// entry that opened it. The zero value is Flat.
type Position struct {
	Long       bool      `json:"long"`
	EntryPrice float64   `json:"entry_price,omitempty"`
	EntryTS    time.Time `json:"entry_ts"`
}

// State is the per-run context threaded through Engine.Step.
type State struct {
	Position Position
}

// ConditionReport is the evaluation of one predicate set on one bar.
type ConditionReport struct {
	Evaluated PredicateSet `json:"evaluated"`
	Triggered PredicateSet `json:"triggered"`
}

// Met reports whether predicate p was evaluated and true.
func (c ConditionReport) Met(p Predicate) bool { return c.Triggered.Has(p) }
