package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/karnagge/bitcoin-trading-bot/internal/backtest"
	"github.com/karnagge/bitcoin-trading-bot/internal/model"
	"github.com/karnagge/bitcoin-trading-bot/internal/strategy"

	_ "github.com/mattn/go-sqlite3"
)

// Reader provides read-only access to bars and stored runs.
type Reader struct {
	db *sql.DB
}

// NewReader opens a SQLite connection for reading.
func NewReader(dbPath string) (*Reader, error) {
	db, err := open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite open reader: %w", err)
	}
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(2)

	log.Printf("[sqlite-reader] opened %s", dbPath)
	return &Reader{db: db}, nil
}

// ReadBars returns bars for symbol with from <= ts <= to, ordered by timestamp.
// A zero from or to leaves that side unbounded.
func (r *Reader) ReadBars(ctx context.Context, symbol string, from, to time.Time) ([]model.Bar, error) {
	lo, hi := int64(math.MinInt64), int64(math.MaxInt64)
	if !from.IsZero() {
		lo = from.UnixMilli()
	}
	if !to.IsZero() {
		hi = to.UnixMilli()
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT ts, open, high, low, close, volume
		FROM bars
		WHERE symbol = ? AND ts >= ? AND ts <= ?
		ORDER BY ts ASC
	`, symbol, lo, hi)
	if err != nil {
		return nil, fmt.Errorf("sqlite query bars: %w", err)
	}
	defer rows.Close()

	var bars []model.Bar
	for rows.Next() {
		var b model.Bar
		var tsMs int64
		if err := rows.Scan(&tsMs, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, fmt.Errorf("sqlite scan bars: %w", err)
		}
		b.TS = time.UnixMilli(tsMs).UTC()
		bars = append(bars, b)
	}
	return bars, rows.Err()
}

// RunSummary is a stored row of the runs table.
type RunSummary struct {
	RunID          string
	Symbol         string
	StartedAt      time.Time
	Bars           int
	FinalEquity    float64
	ReturnPct      float64
	DCAReturnPct   float64
	MaxDrawdownPct float64
	TotalTrades    int
	WinRate        float64
	Latest         strategy.Signal
}

// ErrRunNotFound is returned by ReadRun for an unknown run ID.
var ErrRunNotFound = errors.New("run not found")

// ReadRun loads a stored run summary.
func (r *Reader) ReadRun(ctx context.Context, runID string) (RunSummary, error) {
	var (
		s                  RunSummary
		started, latestTS  int64
		direction, reasons string
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT run_id, symbol, started_at, bars, final_equity, return_pct, dca_return_pct,
			max_drawdown_pct, total_trades, win_rate, latest_direction, latest_reasons, latest_ts
		FROM runs WHERE run_id = ?
	`, runID).Scan(&s.RunID, &s.Symbol, &started, &s.Bars, &s.FinalEquity, &s.ReturnPct, &s.DCAReturnPct,
		&s.MaxDrawdownPct, &s.TotalTrades, &s.WinRate, &direction, &reasons, &latestTS)
	if err == sql.ErrNoRows {
		return RunSummary{}, fmt.Errorf("%s: %w", runID, ErrRunNotFound)
	}
	if err != nil {
		return RunSummary{}, fmt.Errorf("sqlite read run: %w", err)
	}
	s.StartedAt = time.UnixMilli(started).UTC()
	s.Latest.TS = time.UnixMilli(latestTS).UTC()
	if s.Latest.Direction, err = strategy.ParseDirection(direction); err != nil {
		return RunSummary{}, err
	}
	if s.Latest.Reasons, err = strategy.ParseReasons(reasons); err != nil {
		return RunSummary{}, err
	}
	return s, nil
}

// ReadTrades loads the trade log of a run in execution order.
func (r *Reader) ReadTrades(ctx context.Context, runID string) ([]backtest.Trade, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT entry_ts, exit_ts, entry_price, exit_price, quantity, pnl_pct
		FROM trades WHERE run_id = ? ORDER BY seq ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("sqlite query trades: %w", err)
	}
	defer rows.Close()

	var trades []backtest.Trade
	for rows.Next() {
		var t backtest.Trade
		var entry, exit int64
		if err := rows.Scan(&entry, &exit, &t.EntryPrice, &t.ExitPrice, &t.Quantity, &t.PnLPct); err != nil {
			return nil, fmt.Errorf("sqlite scan trades: %w", err)
		}
		t.EntryTS = time.UnixMilli(entry).UTC()
		t.ExitTS = time.UnixMilli(exit).UTC()
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// ReadSignals loads the non-neutral signals of a run ordered by timestamp.
func (r *Reader) ReadSignals(ctx context.Context, runID string) ([]strategy.Signal, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT ts, direction, reasons FROM signals WHERE run_id = ? ORDER BY ts ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("sqlite query signals: %w", err)
	}
	defer rows.Close()

	var out []strategy.Signal
	for rows.Next() {
		var (
			s           strategy.Signal
			ts          int64
			dir, reason string
		)
		if err := rows.Scan(&ts, &dir, &reason); err != nil {
			return nil, fmt.Errorf("sqlite scan signals: %w", err)
		}
		s.TS = time.UnixMilli(ts).UTC()
		if s.Direction, err = strategy.ParseDirection(dir); err != nil {
			return nil, err
		}
		if s.Reasons, err = strategy.ParseReasons(reason); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// CountDCAEntries returns the number of stored DCA purchases of a run.
func (r *Reader) CountDCAEntries(ctx context.Context, runID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM dca_entries WHERE run_id = ?`, runID).Scan(&n)
	return n, err
}

// Close closes the reader.
func (r *Reader) Close() error {
	return r.db.Close()
}

var _ model.BarReader = (*Reader)(nil)
