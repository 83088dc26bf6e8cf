package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
)

func TestInit(t *testing.T) {
	logger := Init("test-service", slog.LevelInfo)
	if logger == nil {
		t.Fatal("expected non-nil logger")
	}
}

func TestInitWriter_JSONWithService(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	defer slog.SetDefault(prev)

	log := InitWriter(&buf, "backtest", slog.LevelInfo)
	log.Debug("hidden")
	slog.Info("visible", "bars", 3)

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("expected a single JSON record, got %q: %v", buf.String(), err)
	}
	if rec["service"] != "backtest" || rec["msg"] != "visible" || rec["bars"] != float64(3) {
		t.Errorf("unexpected record: %v", rec)
	}
}

func TestRunID_RoundTrip(t *testing.T) {
	ctx := context.Background()

	// No run ID set
	if id := RunID(ctx); id != "" {
		t.Errorf("expected empty run id, got %q", id)
	}

	// Set and retrieve
	ctx = WithRunID(ctx, "run-123")
	if id := RunID(ctx); id != "run-123" {
		t.Errorf("expected 'run-123', got %q", id)
	}
}

func TestLogWithRun(t *testing.T) {
	ctx := context.Background()

	// No run ID
	attrs := LogWithRun(ctx)
	if attrs != nil {
		t.Errorf("expected nil attrs when no run id, got %v", attrs)
	}

	ctx = WithRunID(ctx, "abc-123")
	attrs = LogWithRun(ctx)
	if len(attrs) != 1 {
		t.Fatalf("expected one attr with run id set, got %v", attrs)
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"INFO":  slog.LevelInfo,
		"":      slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	}
	for in, want := range tests {
		got, err := ParseLevel(in)
		if err != nil || got != want {
			t.Errorf("ParseLevel(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseLevel("verbose"); err == nil {
		t.Error("expected error for unknown level")
	}
}
