package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"

	"github.com/karnagge/bitcoin-trading-bot/internal/model"
	"github.com/karnagge/bitcoin-trading-bot/internal/pipeline"
	"github.com/karnagge/bitcoin-trading-bot/internal/strategy"

	_ "github.com/mattn/go-sqlite3"
)

// WriterConfig configures the SQLite writer.
type WriterConfig struct {
	DBPath string // path to SQLite database file, e.g. "data/bars.db"
}

// Writer stores bars and run reports. It holds a single connection.
type Writer struct {
	db *sql.DB
}

// DB returns the underlying sql.DB for health checks.
func (w *Writer) DB() *sql.DB { return w.db }

// New creates a new SQLite Writer, initializes the database with WAL mode and schema.
func New(cfg WriterConfig) (*Writer, error) {
	db, err := open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}

	// Set connection pool for single-writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	log.Printf("[sqlite] opened database at %s", cfg.DBPath)
	return &Writer{db: db}, nil
}

func open(path string) (*sql.DB, error) {
	return sql.Open("sqlite3", path+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
}

// Every timestamp column holds Unix milliseconds.
func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS bars (
			symbol TEXT    NOT NULL,
			ts     INTEGER NOT NULL,
			open   REAL    NOT NULL,
			high   REAL    NOT NULL,
			low    REAL    NOT NULL,
			close  REAL    NOT NULL,
			volume REAL    NOT NULL,
			PRIMARY KEY (symbol, ts)
		);

		CREATE TABLE IF NOT EXISTS runs (
			run_id           TEXT    PRIMARY KEY,
			symbol           TEXT    NOT NULL,
			started_at       INTEGER NOT NULL,
			bars             INTEGER NOT NULL,
			from_ts          INTEGER NOT NULL,
			to_ts            INTEGER NOT NULL,
			config           TEXT    NOT NULL,
			final_equity     REAL    NOT NULL,
			profit_loss      REAL    NOT NULL,
			return_pct       REAL    NOT NULL,
			dca_return_pct   REAL    NOT NULL,
			max_drawdown_pct REAL    NOT NULL,
			total_trades     INTEGER NOT NULL,
			win_rate         REAL    NOT NULL,
			success_rate_pct REAL    NOT NULL,
			latest_direction TEXT    NOT NULL,
			latest_reasons   TEXT    NOT NULL,
			latest_ts        INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS trades (
			run_id      TEXT    NOT NULL,
			seq         INTEGER NOT NULL,
			entry_ts    INTEGER NOT NULL,
			exit_ts     INTEGER NOT NULL,
			entry_price REAL    NOT NULL,
			exit_price  REAL    NOT NULL,
			quantity    REAL    NOT NULL,
			pnl_pct     REAL    NOT NULL,
			PRIMARY KEY (run_id, seq)
		);

		CREATE TABLE IF NOT EXISTS signals (
			run_id    TEXT    NOT NULL,
			ts        INTEGER NOT NULL,
			direction TEXT    NOT NULL,
			reasons   TEXT    NOT NULL,
			PRIMARY KEY (run_id, ts)
		);

		CREATE TABLE IF NOT EXISTS dca_entries (
			run_id          TEXT    NOT NULL,
			seq             INTEGER NOT NULL,
			period          INTEGER NOT NULL,
			ts              INTEGER NOT NULL,
			price           REAL    NOT NULL,
			units           REAL    NOT NULL,
			total_invested  REAL    NOT NULL,
			total_units     REAL    NOT NULL,
			portfolio_value REAL    NOT NULL,
			PRIMARY KEY (run_id, seq)
		);
	`)
	return err
}

// SaveBars inserts bars in a single transaction, replacing rows with the same
// timestamp. Bars that collide at millisecond resolution are rejected.
func (w *Writer) SaveBars(ctx context.Context, symbol string, bars []model.Bar) error {
	for i := 1; i < len(bars); i++ {
		if bars[i].TS.UnixMilli() == bars[i-1].TS.UnixMilli() {
			return &model.InputError{Index: i, Field: "ts", Reason: "collides with previous bar at millisecond resolution"}
		}
	}

	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO bars (symbol, ts, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, b := range bars {
		if _, err := stmt.ExecContext(ctx, symbol, b.TS.UnixMilli(), b.Open, b.High, b.Low, b.Close, b.Volume); err != nil {
			tx.Rollback()
			return fmt.Errorf("insert bar %s: %w", b.TS, err)
		}
	}
	return tx.Commit()
}

// SaveReport stores the run summary, its trades, its non-neutral signals and
// its DCA ledger in one transaction.
func (w *Writer) SaveReport(ctx context.Context, rep *pipeline.Report) error {
	cfg, err := json.Marshal(rep.Config)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := saveReport(ctx, tx, rep, string(cfg)); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func saveReport(ctx context.Context, tx *sql.Tx, rep *pipeline.Report, cfg string) error {
	bt, dca := rep.Backtest, rep.Benchmark
	_, err := tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO runs (run_id, symbol, started_at, bars, from_ts, to_ts, config,
			final_equity, profit_loss, return_pct, dca_return_pct, max_drawdown_pct,
			total_trades, win_rate, success_rate_pct, latest_direction, latest_reasons, latest_ts)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rep.RunID, rep.Symbol, rep.StartedAt.UnixMilli(), rep.Bars, rep.From.UnixMilli(), rep.To.UnixMilli(), cfg,
		bt.FinalEquity, bt.ProfitLoss, bt.ReturnPercentage, dca.ReturnPct, bt.MaxDrawdownPct,
		bt.TotalTrades, bt.WinRate, rep.Accuracy.SuccessRatePct,
		rep.Latest.Direction.String(), rep.Latest.Reasons.String(), rep.Latest.TS.UnixMilli())
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	for i, t := range bt.Trades {
		if _, err := tx.ExecContext(ctx, `
			INSERT OR REPLACE INTO trades (run_id, seq, entry_ts, exit_ts, entry_price, exit_price, quantity, pnl_pct)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, rep.RunID, i, t.EntryTS.UnixMilli(), t.ExitTS.UnixMilli(), t.EntryPrice, t.ExitPrice, t.Quantity, t.PnLPct); err != nil {
			return fmt.Errorf("insert trade %d: %w", i, err)
		}
	}

	for _, s := range rep.Signals {
		if s.Direction == strategy.Neutral {
			continue
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT OR REPLACE INTO signals (run_id, ts, direction, reasons) VALUES (?, ?, ?, ?)
		`, rep.RunID, s.TS.UnixMilli(), s.Direction.String(), s.Reasons.String()); err != nil {
			return fmt.Errorf("insert signal %s: %w", s.TS, err)
		}
	}

	for i, e := range dca.Entries {
		if _, err := tx.ExecContext(ctx, `
			INSERT OR REPLACE INTO dca_entries (run_id, seq, period, ts, price, units, total_invested, total_units, portfolio_value)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, rep.RunID, i, e.Period.UnixMilli(), e.TS.UnixMilli(), e.Price, e.UnitsBought, e.TotalInvested, e.TotalUnits, e.PortfolioValue); err != nil {
			return fmt.Errorf("insert dca entry %d: %w", i, err)
		}
	}
	return nil
}

// Close closes the database.
func (w *Writer) Close() error {
	return w.db.Close()
}

var (
	_ model.BarWriter       = (*Writer)(nil)
	_ pipeline.ReportWriter = (*Writer)(nil)
)
