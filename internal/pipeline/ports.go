package pipeline

import (
	"context"

	"github.com/karnagge/bitcoin-trading-bot/internal/strategy"
)

// ReportWriter persists a finished run.
type ReportWriter interface {
	SaveReport(ctx context.Context, rep *Report) error
}

// SignalPublisher hands the latest signal of a symbol to live-trading consumers.
type SignalPublisher interface {
	PublishSignal(ctx context.Context, symbol string, sig strategy.Signal) error
}
