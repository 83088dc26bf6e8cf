package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus metrics for backtest runs.
type Metrics struct {
	RunsTotal     *prometheus.CounterVec   // labels: outcome=ok|error
	RunDuration   prometheus.Histogram     // whole pipeline
	StageDuration *prometheus.HistogramVec // labels: stage
	BarsProcessed prometheus.Counter

	SignalsTotal *prometheus.CounterVec // labels: direction
	TradesTotal  *prometheus.CounterVec // labels: result=win|loss|flat

	// Last computed returns, per symbol.
	ReturnPct   *prometheus.GaugeVec // labels: symbol, series=strategy|dca
	DrawdownPct *prometheus.GaugeVec // labels: symbol

	// Storage/publication
	SQLiteCommitDur prometheus.Histogram
	RedisWriteDur   prometheus.Histogram
	PublishErrors   prometheus.Counter
}

// NewMetrics registers and returns all metrics on reg. A nil reg uses the
// default Prometheus registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "backtest_runs_total",
			Help: "Backtest runs by outcome",
		}, []string{"outcome"}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "backtest_run_duration_seconds",
			Help:    "End-to-end pipeline latency per run",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "backtest_stage_duration_seconds",
			Help:    "Pipeline stage latency (indicators, signals, backtest, benchmark)",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		}, []string{"stage"}),
		BarsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "backtest_bars_processed_total",
			Help: "Bars run through the pipeline",
		}),
		SignalsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "backtest_signals_total",
			Help: "Non-neutral signals emitted by direction",
		}, []string{"direction"}),
		TradesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "backtest_trades_total",
			Help: "Completed trades by result",
		}, []string{"result"}),
		ReturnPct: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "backtest_return_pct",
			Help: "Return of the last run per symbol (strategy vs dca)",
		}, []string{"symbol", "series"}),
		DrawdownPct: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "backtest_max_drawdown_pct",
			Help: "Maximum drawdown of the last run per symbol",
		}, []string{"symbol"}),
		SQLiteCommitDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "backtest_sqlite_commit_duration_seconds",
			Help:    "SQLite report commit latency",
			Buckets: prometheus.DefBuckets,
		}),
		RedisWriteDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "backtest_redis_write_duration_seconds",
			Help:    "Redis signal publication latency",
			Buckets: prometheus.DefBuckets,
		}),
		PublishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "backtest_publish_errors_total",
			Help: "Failed signal publications",
		}),
	}

	reg.MustRegister(
		m.RunsTotal,
		m.RunDuration,
		m.StageDuration,
		m.BarsProcessed,
		m.SignalsTotal,
		m.TradesTotal,
		m.ReturnPct,
		m.DrawdownPct,
		m.SQLiteCommitDur,
		m.RedisWriteDur,
		m.PublishErrors,
	)

	return m
}

// ObserveStage records how long a pipeline stage took. Safe on a nil *Metrics.
func (m *Metrics) ObserveStage(stage string, start time.Time) {
	if m == nil {
		return
	}
	m.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

// RunSummary is what a finished run reports to ObserveRun.
type RunSummary struct {
	Symbol         string
	Bars           int
	Buys, Sells    int
	Wins, Losses   int
	Trades         int
	ReturnPct      float64
	DCAReturnPct   float64
	MaxDrawdownPct float64
}

// ObserveRun records a run outcome. err != nil counts an error run and ignores s.
// Safe on a nil *Metrics.
func (m *Metrics) ObserveRun(start time.Time, s RunSummary, err error) {
	if m == nil {
		return
	}
	m.RunDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		m.RunsTotal.WithLabelValues("error").Inc()
		return
	}
	m.RunsTotal.WithLabelValues("ok").Inc()
	m.BarsProcessed.Add(float64(s.Bars))
	m.SignalsTotal.WithLabelValues("BUY").Add(float64(s.Buys))
	m.SignalsTotal.WithLabelValues("SELL").Add(float64(s.Sells))
	m.TradesTotal.WithLabelValues("win").Add(float64(s.Wins))
	m.TradesTotal.WithLabelValues("loss").Add(float64(s.Losses))
	m.TradesTotal.WithLabelValues("flat").Add(float64(s.Trades - s.Wins - s.Losses))
	m.ReturnPct.WithLabelValues(s.Symbol, "strategy").Set(s.ReturnPct)
	m.ReturnPct.WithLabelValues(s.Symbol, "dca").Set(s.DCAReturnPct)
	m.DrawdownPct.WithLabelValues(s.Symbol).Set(s.MaxDrawdownPct)
}
