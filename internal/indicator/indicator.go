// Package indicator provides streaming technical indicator calculations over bar data.
//
// Every indicator is updated one input at a time and reports an explicit
// model.Value, which stays Undefined until the indicator's window has filled.
// An output at bar t depends only on inputs at bars <= t.
package indicator

import "github.com/karnagge/bitcoin-trading-bot/internal/model"

// Series is the interface for indicators fed with one number per bar.
type Series interface {
	// Name returns the indicator name (e.g., "SMA_20", "EMA_9").
	Name() string

	// Update feeds the next input value.
	Update(x float64)

	// Value returns the current reading, Undefined until Ready.
	Value() model.Value

	// Ready returns true when enough inputs have been accumulated.
	Ready() bool
}
