// Package pipeline runs one backtest end to end:
// validate bars → indicators → signals → backtest → benchmark → accuracy.
//
// A run either returns a complete Report or an error; nothing partial is
// returned. Independent runs share no state and RunBatch executes them
// concurrently.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/karnagge/bitcoin-trading-bot/internal/backtest"
	"github.com/karnagge/bitcoin-trading-bot/internal/benchmark"
	"github.com/karnagge/bitcoin-trading-bot/internal/indicator"
	"github.com/karnagge/bitcoin-trading-bot/internal/logger"
	"github.com/karnagge/bitcoin-trading-bot/internal/metrics"
	"github.com/karnagge/bitcoin-trading-bot/internal/model"
	"github.com/karnagge/bitcoin-trading-bot/internal/strategy"
)

// Report is the structured output of one run.
type Report struct {
	RunID     string    `json:"run_id"`
	Symbol    string    `json:"symbol"`
	StartedAt time.Time `json:"started_at"`
	Config    Config    `json:"config"`

	Bars int       `json:"bars"`
	From time.Time `json:"from"`
	To   time.Time `json:"to"`

	Indicators []model.IndicatorSet `json:"indicators"`
	Signals    []strategy.Signal    `json:"signals"`
	Backtest   *backtest.Result     `json:"backtest"`
	Benchmark  *benchmark.Result    `json:"benchmark"`
	Accuracy   strategy.Accuracy    `json:"accuracy"`

	// Latest is the last bar's signal, Neutral included. Deliver publishes it.
	Latest     strategy.Signal   `json:"latest_signal"`
	// LastAction is the most recent Buy or Sell, nil when none fired. Report only.
	LastAction *strategy.Signal  `json:"last_action,omitempty"`
	Position   strategy.Position `json:"position"`

	Warnings []string `json:"warnings,omitempty"`
}

// ExcessReturnPct is the strategy return minus the DCA return.
func (r *Report) ExcessReturnPct() float64 {
	return r.Backtest.ReturnPercentage - r.Benchmark.ReturnPct
}

// Runner executes runs and optionally records metrics.
type Runner struct {
	metrics *metrics.Metrics
	newID   func() string
	now     func() time.Time
}

// NewRunner creates a Runner. m may be nil.
func NewRunner(m *metrics.Metrics) *Runner {
	return &Runner{
		metrics: m,
		newID:   func() string { return uuid.NewString() },
		now:     time.Now,
	}
}

// Run executes the full pipeline over bars. Configuration and ingestion errors
// are returned before any stage runs.
func (r *Runner) Run(ctx context.Context, symbol string, bars []model.Bar, cfg Config) (*Report, error) {
	start := r.now()
	rep, err := r.run(ctx, symbol, bars, cfg)
	r.metrics.ObserveRun(start, summarize(rep), err)
	return rep, err
}

func (r *Runner) run(ctx context.Context, symbol string, bars []model.Bar, cfg Config) (*Report, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := model.ValidateBars(bars); err != nil {
		return nil, err
	}
	sigEngine, err := strategy.NewEngine(cfg.Rules)
	if err != nil {
		return nil, err
	}

	rep := &Report{
		RunID:     r.newID(),
		Symbol:    symbol,
		StartedAt: r.now().UTC(),
		Config:    cfg,
		Bars:      len(bars),
		From:      bars[0].TS,
		To:        bars[len(bars)-1].TS,
	}
	ctx = logger.WithRunID(ctx, rep.RunID)
	attrs := append(logger.LogWithRun(ctx), "symbol", symbol)

	if len(bars) < indicator.MaxWindow {
		msg := fmt.Sprintf("%d bars is shorter than the %d-bar trend window; SMA200 stays undefined", len(bars), indicator.MaxWindow)
		rep.Warnings = append(rep.Warnings, msg)
		slog.Warn("insufficient history", append(attrs, "bars", len(bars), "window", indicator.MaxWindow)...)
	}

	stage := time.Now()
	rep.Indicators = indicator.Compute(bars)
	r.metrics.ObserveStage("indicators", stage)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	stage = time.Now()
	signals, state, err := sigEngine.Run(bars, rep.Indicators)
	if err != nil {
		return nil, err
	}
	rep.Signals = signals
	rep.Position = state.Position
	rep.Latest, _ = strategy.Latest(signals)
	if act, ok := strategy.LastAction(signals); ok {
		rep.LastAction = &act
	}
	r.metrics.ObserveStage("signals", stage)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	stage = time.Now()
	rep.Backtest, err = backtest.Run(bars, signals, cfg.Backtest)
	if err != nil {
		return nil, fmt.Errorf("backtest: %w", err)
	}
	r.metrics.ObserveStage("backtest", stage)

	stage = time.Now()
	rep.Benchmark, err = benchmark.Run(bars, cfg.Benchmark)
	if err != nil {
		return nil, fmt.Errorf("benchmark: %w", err)
	}
	r.metrics.ObserveStage("benchmark", stage)

	rep.Accuracy = strategy.ScoreSignals(bars, rep.Indicators, signals)

	slog.Info("run complete", append(attrs,
		"bars", rep.Bars,
		"signals", rep.Accuracy.TotalSignals,
		"trades", rep.Backtest.TotalTrades,
		"return_pct", rep.Backtest.ReturnPercentage,
		"dca_return_pct", rep.Benchmark.ReturnPct,
		"max_drawdown_pct", rep.Backtest.MaxDrawdownPct,
	)...)
	return rep, nil
}

func summarize(rep *Report) metrics.RunSummary {
	if rep == nil {
		return metrics.RunSummary{}
	}
	s := metrics.RunSummary{
		Symbol: rep.Symbol,
		Bars:   rep.Bars,
		Buys:   rep.Accuracy.BuySignals,
		Sells:  rep.Accuracy.SellSignals,
	}
	if rep.Backtest != nil {
		s.Trades = rep.Backtest.TotalTrades
		s.Wins = rep.Backtest.WinningTrades
		s.Losses = rep.Backtest.LosingTrades
		s.ReturnPct = rep.Backtest.ReturnPercentage
		s.MaxDrawdownPct = rep.Backtest.MaxDrawdownPct
	}
	if rep.Benchmark != nil {
		s.DCAReturnPct = rep.Benchmark.ReturnPct
	}
	return s
}

// Deliver persists rep with w and publishes its latest signal with p. Either
// may be nil. A publication failure is logged and counted but does not fail
// delivery once the report is stored.
func (r *Runner) Deliver(ctx context.Context, rep *Report, w ReportWriter, p SignalPublisher) error {
	ctx = logger.WithRunID(ctx, rep.RunID)
	if w != nil {
		start := time.Now()
		if err := w.SaveReport(ctx, rep); err != nil {
			return fmt.Errorf("save report: %w", err)
		}
		if r.metrics != nil {
			r.metrics.SQLiteCommitDur.Observe(time.Since(start).Seconds())
		}
	}
	if p != nil {
		start := time.Now()
		if err := p.PublishSignal(ctx, rep.Symbol, rep.Latest); err != nil {
			slog.Error("publish signal failed", append(logger.LogWithRun(ctx), "symbol", rep.Symbol, "error", err)...)
			if r.metrics != nil {
				r.metrics.PublishErrors.Inc()
			}
			return nil
		}
		if r.metrics != nil {
			r.metrics.RedisWriteDur.Observe(time.Since(start).Seconds())
		}
	}
	return nil
}
