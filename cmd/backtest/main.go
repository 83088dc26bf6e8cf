// cmd/backtest runs the signal strategy and the DCA benchmark over bars stored
// in SQLite and prints a summary.
//
// Usage:
//
//	go run ./cmd/backtest --import=data/btc_1d.csv --symbol=BTC/USDT
//	go run ./cmd/backtest --from=2023-01-01 --to=2024-12-31 --compare --json=report.json
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/karnagge/bitcoin-trading-bot/config"
	"github.com/karnagge/bitcoin-trading-bot/internal/logger"
	"github.com/karnagge/bitcoin-trading-bot/internal/metrics"
	"github.com/karnagge/bitcoin-trading-bot/internal/model"
	"github.com/karnagge/bitcoin-trading-bot/internal/pipeline"
	redisstore "github.com/karnagge/bitcoin-trading-bot/internal/store/redis"
	sqlitestore "github.com/karnagge/bitcoin-trading-bot/internal/store/sqlite"
	"github.com/karnagge/bitcoin-trading-bot/internal/strategy"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[backtest] config: %v", err)
	}
	logger.Init("backtest", cfg.SlogLevel())

	// Flags override the environment for one-off runs.
	symbol := flag.String("symbol", cfg.Infra.Symbol, "Symbol to backtest")
	dbPath := flag.String("db", cfg.Infra.SQLitePath, "Path to SQLite database")
	importPath := flag.String("import", "", "CSV of timestamp,open,high,low,close,volume to load before running")
	fromStr := flag.String("from", "", "First bar date (YYYY-MM-DD or RFC3339, empty=all)")
	toStr := flag.String("to", "", "Last bar date (YYYY-MM-DD or RFC3339, empty=all)")
	compare := flag.Bool("compare", false, "Also run the 4-of-6 variant with the mandatory 200-MA filter")
	jsonPath := flag.String("json", "", "Write the full report(s) as JSON to this file")
	flag.Parse()

	from, err := parseDate(*fromStr)
	if err != nil {
		log.Fatalf("[backtest] --from: %v", err)
	}
	to, err := parseDate(*toStr)
	if err != nil {
		log.Fatalf("[backtest] --to: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	// Metrics
	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics(reg)
	health := metrics.NewHealthStatus(cfg.Infra.RedisAddr != "")
	if cfg.Infra.MetricsAddr != "" {
		srv := metrics.NewServer(cfg.Infra.MetricsAddr, reg, health)
		srv.Start()
		defer srv.Stop(context.Background())
	}

	// Open SQLite
	writer, err := sqlitestore.New(sqlitestore.WriterConfig{DBPath: *dbPath})
	if err != nil {
		log.Fatalf("[backtest] sqlite open failed: %v", err)
	}
	defer writer.Close()
	health.CheckSQLite(ctx, writer.DB())

	reader, err := sqlitestore.NewReader(*dbPath)
	if err != nil {
		log.Fatalf("[backtest] sqlite reader open failed: %v", err)
	}
	defer reader.Close()

	if *importPath != "" {
		n, err := importCSV(ctx, *importPath, *symbol, writer)
		if err != nil {
			log.Fatalf("[backtest] import %s: %v", *importPath, err)
		}
		log.Printf("[backtest] imported %d bars for %s", n, *symbol)
	}

	// Optional Redis publication
	var publisher pipeline.SignalPublisher
	if cfg.Infra.RedisAddr != "" {
		pub, rdb, err := redisstore.New(redisstore.PublisherConfig{
			Addr:     cfg.Infra.RedisAddr,
			Password: cfg.Infra.RedisPassword,
		})
		if err != nil {
			log.Printf("[backtest] redis unavailable, signals will not be published: %v", err)
		} else {
			defer pub.Close()
			health.CheckRedis(ctx, rdb)
			publisher = pub
		}
	}

	bars, err := reader.ReadBars(ctx, *symbol, from, to)
	if err != nil {
		log.Fatalf("[backtest] read bars: %v", err)
	}
	log.Printf("[backtest] loaded %d bars for %s", len(bars), *symbol)

	jobs := []pipeline.Job{{Symbol: *symbol, Bars: bars, Config: cfg.Pipeline()}}
	if *compare {
		filtered := cfg.Pipeline()
		filtered.Rules.RequireAbove200MA = true
		filtered.Rules.MinConditions = strategy.FilteredRules().MinConditions
		jobs = append(jobs, pipeline.Job{Symbol: *symbol, Bars: bars, Config: filtered})
	}

	runner := pipeline.NewRunner(m)
	reports, err := runner.RunBatch(ctx, jobs, cfg.Infra.Parallelism)
	if err != nil {
		exitOnRunError(err)
	}

	if err := deliverReports(ctx, runner, reports, writer, publisher); err != nil {
		log.Fatalf("[backtest] %v", err)
	}
	for _, rep := range reports {
		health.SetLastRun(rep.RunID, time.Now())
		printSummary(rep)
	}

	if *jsonPath != "" {
		if err := writeJSON(*jsonPath, reports); err != nil {
			log.Fatalf("[backtest] write %s: %v", *jsonPath, err)
		}
		log.Printf("[backtest] wrote %s", *jsonPath)
	}
}

// deliverReports stores every report. Only the first one, the configured
// rules, is published; comparison runs share its keys and must not overwrite it.
func deliverReports(ctx context.Context, runner *pipeline.Runner, reports []*pipeline.Report, w pipeline.ReportWriter, p pipeline.SignalPublisher) error {
	for i, rep := range reports {
		pub := p
		if i > 0 {
			pub = nil
		}
		if err := runner.Deliver(ctx, rep, w, pub); err != nil {
			return fmt.Errorf("deliver %s: %w", rep.RunID, err)
		}
	}
	return nil
}

func exitOnRunError(err error) {
	var ie *model.InputError
	var ce *model.ConfigError
	switch {
	case errors.As(err, &ie):
		slog.Error("bars rejected", "index", ie.Index, "field", ie.Field, "reason", ie.Reason)
	case errors.As(err, &ce):
		slog.Error("configuration rejected", "field", ce.Field, "reason", ce.Reason)
	case errors.Is(err, model.ErrInsufficientHistory):
		slog.Error("not enough bars", "error", err)
	default:
		slog.Error("run failed", "error", err)
	}
	os.Exit(1)
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

func writeJSON(path string, reports []*pipeline.Report) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(reports); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func printSummary(rep *pipeline.Report) {
	bt, dca := rep.Backtest, rep.Benchmark
	rules := "3-of-5"
	if rep.Config.Rules.RequireAbove200MA {
		rules = fmt.Sprintf("%d-of-6 +200MA", rep.Config.Rules.MinConditions)
	} else if rep.Config.Rules.MinConditions != 3 {
		rules = fmt.Sprintf("%d-of-5", rep.Config.Rules.MinConditions)
	}

	fmt.Println()
	fmt.Println("╔══════════════════════════════════════════╗")
	fmt.Println("║            BACKTEST COMPLETE             ║")
	fmt.Println("╠══════════════════════════════════════════╣")
	fmt.Printf("║  Symbol:            %-20s ║\n", rep.Symbol)
	fmt.Printf("║  Rules:             %-20s ║\n", rules)
	fmt.Printf("║  Bars:              %-20d ║\n", rep.Bars)
	fmt.Printf("║  Period:            %-20s ║\n", rep.From.Format("2006-01-02")+" → "+rep.To.Format("2006-01-02"))
	fmt.Println("╠══════════════════════════════════════════╣")
	fmt.Printf("║  Trades:            %-20d ║\n", bt.TotalTrades)
	fmt.Printf("║  Win rate:          %-20s ║\n", fmt.Sprintf("%.2f%%", bt.WinRate))
	fmt.Printf("║  Avg trade return:  %-20s ║\n", fmt.Sprintf("%.2f%%", bt.AverageReturnPct))
	fmt.Printf("║  Final equity:      %-20.2f ║\n", bt.FinalEquity)
	fmt.Printf("║  Return:            %-20s ║\n", fmt.Sprintf("%.2f%%", bt.ReturnPercentage))
	fmt.Printf("║  Max drawdown:      %-20s ║\n", fmt.Sprintf("%.2f%%", bt.MaxDrawdownPct))
	fmt.Printf("║  Signal accuracy:   %-20s ║\n", fmt.Sprintf("%.2f%%", rep.Accuracy.SuccessRatePct))
	fmt.Println("╠══════════════════════════════════════════╣")
	fmt.Printf("║  DCA invested:      %-20.2f ║\n", dca.TotalInvested)
	fmt.Printf("║  DCA value:         %-20.2f ║\n", dca.PortfolioValue)
	fmt.Printf("║  DCA return:        %-20s ║\n", fmt.Sprintf("%.2f%%", dca.ReturnPct))
	fmt.Printf("║  Excess vs DCA:     %-20s ║\n", fmt.Sprintf("%+.2f%%", rep.ExcessReturnPct()))
	fmt.Println("╠══════════════════════════════════════════╣")
	fmt.Printf("║  Latest signal:     %-20s ║\n", rep.Latest.Direction.String()+" "+rep.Latest.TS.Format("2006-01-02"))
	if rep.LastAction != nil {
		fmt.Printf("║  Last action:       %-20s ║\n", rep.LastAction.Direction.String()+" "+rep.LastAction.TS.Format("2006-01-02"))
	}
	fmt.Printf("║  Run:               %-20.20s ║\n", rep.RunID)
	fmt.Println("╚══════════════════════════════════════════╝")
	if rep.LastAction != nil && !rep.LastAction.Reasons.Empty() {
		fmt.Printf("  reasons: %s\n", rep.LastAction.Reasons)
	}
	for _, w := range rep.Warnings {
		fmt.Printf("  warning: %s\n", w)
	}
}
