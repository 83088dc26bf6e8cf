package model

import (
	"context"
	"time"
)

// ── Storage Port Interfaces ──
// These interfaces decouple the pipeline from concrete storage implementations
// (SQLite today). Report persistence and signal publication ports live in the
// pipeline package because they carry pipeline types.

// BarReader loads an ordered bar series for one symbol.
type BarReader interface {
	// ReadBars returns bars with from <= ts <= to ordered by timestamp.
	// A zero from or to leaves that side unbounded.
	ReadBars(ctx context.Context, symbol string, from, to time.Time) ([]Bar, error)

	// Close releases underlying resources.
	Close() error
}

// BarWriter stores bars, replacing existing rows with the same timestamp.
type BarWriter interface {
	SaveBars(ctx context.Context, symbol string, bars []Bar) error

	// Close releases underlying resources.
	Close() error
}
