package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/karnagge/bitcoin-trading-bot/internal/metrics"
	"github.com/karnagge/bitcoin-trading-bot/internal/model"
	"github.com/karnagge/bitcoin-trading-bot/internal/strategy"
)

var day0 = time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)

// market builds a deterministic oscillating daily series with drift.
func market(n int) []model.Bar {
	bars := make([]model.Bar, n)
	for i := range bars {
		x := float64(i)
		c := 20000 + 3000*math.Sin(x/23) + 900*math.Sin(x/6.1) + 4*x
		v := 500 + 400*math.Abs(math.Sin(x/3.3))
		bars[i] = model.Bar{TS: day0.AddDate(0, 0, i), Open: c * 0.995, High: c * 1.01, Low: c * 0.99, Close: c, Volume: v}
	}
	return bars
}

func fixedRunner(m *metrics.Metrics) *Runner {
	r := NewRunner(m)
	r.newID = func() string { return "run-fixed" }
	return r
}

func TestRun_FullReport(t *testing.T) {
	bars := market(700)
	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics(reg)

	rep, err := fixedRunner(m).Run(context.Background(), "BTC/USDT", bars, DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	if rep.RunID != "run-fixed" || rep.Symbol != "BTC/USDT" || rep.Bars != 700 {
		t.Fatalf("unexpected header: %+v", rep)
	}
	if !rep.From.Equal(bars[0].TS) || !rep.To.Equal(bars[699].TS) {
		t.Errorf("range = %s..%s", rep.From, rep.To)
	}
	if len(rep.Indicators) != len(bars) || len(rep.Signals) != len(bars) {
		t.Fatalf("outputs not index-aligned: %d indicators, %d signals", len(rep.Indicators), len(rep.Signals))
	}
	if len(rep.Warnings) != 0 {
		t.Errorf("unexpected warnings: %v", rep.Warnings)
	}

	last := bars[len(bars)-1].Close
	if got := rep.Backtest.Account.Equity(last); math.Abs(got-rep.Backtest.FinalEquity) > 1e-9 {
		t.Errorf("final equity %v not recomputable from account (%v)", rep.Backtest.FinalEquity, got)
	}
	if (rep.Backtest.OpenTrade != nil) != rep.Position.Long {
		t.Errorf("open trade %v disagrees with position %+v", rep.Backtest.OpenTrade, rep.Position)
	}
	lastBar := rep.Signals[len(rep.Signals)-1]
	if rep.Latest != lastBar || !rep.Latest.TS.Equal(bars[699].TS) {
		t.Errorf("latest = %+v, want the last bar's signal %+v", rep.Latest, lastBar)
	}
	if act, ok := strategy.LastAction(rep.Signals); ok != (rep.LastAction != nil) || (ok && *rep.LastAction != act) {
		t.Errorf("last action = %v, want %+v", rep.LastAction, act)
	}
	if rep.Benchmark.TotalInvested <= 0 || len(rep.Benchmark.Entries) == 0 {
		t.Errorf("benchmark not computed: %+v", rep.Benchmark)
	}
	wantExcess := rep.Backtest.ReturnPercentage - rep.Benchmark.ReturnPct
	if rep.ExcessReturnPct() != wantExcess {
		t.Errorf("excess = %v", rep.ExcessReturnPct())
	}
	buys, sells := 0, 0
	for _, s := range rep.Signals {
		switch s.Direction {
		case strategy.Buy:
			buys++
		case strategy.Sell:
			sells++
		}
	}
	if rep.Accuracy.BuySignals != buys || rep.Accuracy.SellSignals != sells {
		t.Errorf("accuracy counts %+v vs %d/%d", rep.Accuracy, buys, sells)
	}
	if rep.Backtest.TotalTrades != sells {
		t.Errorf("every sell closes a trade: %d trades, %d sells", rep.Backtest.TotalTrades, sells)
	}

	if got := testutil.ToFloat64(m.RunsTotal.WithLabelValues("ok")); got != 1 {
		t.Errorf("ok runs = %v", got)
	}
	if got := testutil.ToFloat64(m.BarsProcessed); got != 700 {
		t.Errorf("bars processed = %v", got)
	}

	if _, err := json.Marshal(rep); err != nil {
		t.Fatalf("report must be JSON-encodable: %v", err)
	}
}

func TestRun_Deterministic(t *testing.T) {
	bars := market(400)
	r := fixedRunner(nil)
	r.now = func() time.Time { return day0 }
	a, err := r.Run(context.Background(), "X", bars, DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	b, err := r.Run(context.Background(), "X", bars, DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	ja, _ := json.Marshal(a)
	jb, _ := json.Marshal(b)
	if string(ja) != string(jb) {
		t.Fatal("identical inputs produced different reports")
	}
}

func TestRun_ShortSeriesWarns(t *testing.T) {
	rep, err := fixedRunner(nil).Run(context.Background(), "X", market(30), DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	if len(rep.Warnings) != 1 {
		t.Fatalf("expected one warning, got %v", rep.Warnings)
	}
	for i, s := range rep.Signals {
		if s.Direction != strategy.Neutral {
			t.Fatalf("bar %d: no signal may fire before SMA200 warm-up", i)
		}
	}
	if rep.Backtest.TotalTrades != 0 || rep.Backtest.WinRate != 0 {
		t.Errorf("expected zero stats, got %+v", rep.Backtest.Stats)
	}
}

func TestRun_RejectsBadInput(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics(reg)
	r := fixedRunner(m)

	dup := market(50)
	dup[20].TS = dup[19].TS
	neg := market(50)
	neg[7].Close = -1
	badCfg := DefaultConfig()
	badCfg.Backtest.InvestmentFraction = 1.5

	tests := []struct {
		name string
		bars []model.Bar
		cfg  Config
		kind error
	}{
		{"duplicate timestamp", dup, DefaultConfig(), model.ErrMalformedInput},
		{"negative price", neg, DefaultConfig(), model.ErrMalformedInput},
		{"single bar", market(1), DefaultConfig(), model.ErrInsufficientHistory},
		{"empty", nil, DefaultConfig(), model.ErrInsufficientHistory},
		{"bad fraction", market(50), badCfg, model.ErrInvalidConfiguration},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rep, err := r.Run(context.Background(), "X", tt.bars, tt.cfg)
			if !errors.Is(err, tt.kind) {
				t.Fatalf("expected %v, got %v", tt.kind, err)
			}
			if rep != nil {
				t.Fatal("no partial report may be returned")
			}
		})
	}

	var ie *model.InputError
	_, err := r.Run(context.Background(), "X", dup, DefaultConfig())
	if !errors.As(err, &ie) || ie.Index != 20 {
		t.Errorf("expected offending index 20, got %v", err)
	}
	if got := testutil.ToFloat64(m.RunsTotal.WithLabelValues("error")); got != float64(len(tests)+1) {
		t.Errorf("error runs = %v", got)
	}
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := fixedRunner(nil).Run(ctx, "X", market(300), DefaultConfig()); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestRunBatch(t *testing.T) {
	filtered := DefaultConfig()
	filtered.Rules = strategy.FilteredRules()
	jobs := []Job{
		{Symbol: "A", Bars: market(300), Config: DefaultConfig()},
		{Symbol: "B", Bars: market(500), Config: filtered},
		{Symbol: "C", Bars: market(250), Config: DefaultConfig()},
	}
	r := NewRunner(nil)
	reports, err := r.RunBatch(context.Background(), jobs, 2)
	if err != nil {
		t.Fatal(err)
	}
	for i, rep := range reports {
		if rep.Symbol != jobs[i].Symbol || rep.Bars != len(jobs[i].Bars) {
			t.Errorf("report %d out of order: %s", i, rep.Symbol)
		}
		solo, err := r.Run(context.Background(), jobs[i].Symbol, jobs[i].Bars, jobs[i].Config)
		if err != nil {
			t.Fatal(err)
		}
		if solo.Backtest.FinalEquity != rep.Backtest.FinalEquity {
			t.Errorf("job %d: concurrent run differs from sequential run", i)
		}
	}
	if reports[0].RunID == reports[1].RunID {
		t.Error("run ids must be unique")
	}

	jobs[1].Bars = nil
	if _, err := r.RunBatch(context.Background(), jobs, 0); !errors.Is(err, model.ErrInsufficientHistory) {
		t.Fatalf("expected failing job error, got %v", err)
	}
}

type fakeWriter struct {
	saved []*Report
	err   error
}

func (f *fakeWriter) SaveReport(_ context.Context, rep *Report) error {
	if f.err != nil {
		return f.err
	}
	f.saved = append(f.saved, rep)
	return nil
}

type fakePublisher struct {
	mu   sync.Mutex
	sent map[string]strategy.Signal
	err  error
}

func (f *fakePublisher) PublishSignal(_ context.Context, symbol string, sig strategy.Signal) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	if f.sent == nil {
		f.sent = make(map[string]strategy.Signal)
	}
	f.sent[symbol] = sig
	return nil
}

func TestDeliver(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics(reg)
	r := fixedRunner(m)
	rep, err := r.Run(context.Background(), "BTC/USDT", market(260), DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}

	w, p := &fakeWriter{}, &fakePublisher{}
	if err := r.Deliver(context.Background(), rep, w, p); err != nil {
		t.Fatal(err)
	}
	if len(w.saved) != 1 {
		t.Fatalf("report not saved: %d", len(w.saved))
	}
	sent, last := p.sent["BTC/USDT"], rep.Signals[len(rep.Signals)-1]
	if !sent.TS.Equal(last.TS) || sent.Direction != last.Direction || sent.Reasons != last.Reasons {
		t.Fatalf("published %+v, want the last bar's signal %+v", sent, last)
	}

	p.err = errors.New("redis down")
	if err := r.Deliver(context.Background(), rep, w, p); err != nil {
		t.Fatalf("publication failure must not fail delivery: %v", err)
	}
	if got := testutil.ToFloat64(m.PublishErrors); got != 1 {
		t.Errorf("publish errors = %v", got)
	}

	w.err = errors.New("disk full")
	if err := r.Deliver(context.Background(), rep, w, nil); err == nil {
		t.Fatal("expected save error")
	}
	if err := r.Deliver(context.Background(), rep, nil, nil); err != nil {
		t.Fatal(err)
	}
}

func TestConfig_Validate(t *testing.T) {
	c := DefaultConfig()
	if err := c.Validate(); err != nil {
		t.Fatal(err)
	}
	c.Benchmark.Period = "yearly"
	var ce *model.ConfigError
	if err := c.Validate(); !errors.As(err, &ce) || ce.Field != "period" {
		t.Fatalf("expected period error, got %v", err)
	}
	c = DefaultConfig()
	c.Rules.MinConditions = 9
	if err := c.Validate(); !errors.Is(err, model.ErrInvalidConfiguration) {
		t.Fatalf("expected rules error, got %v", err)
	}
}
