package main

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/karnagge/bitcoin-trading-bot/internal/model"
)

// importCSV loads timestamp,open,high,low,close,volume rows into w. The
// timestamp column may hold Unix milliseconds, RFC3339 or YYYY-MM-DD. A header
// row is skipped. Rows are validated as a series before anything is written.
func importCSV(ctx context.Context, path, symbol string, w model.BarWriter) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	bars, err := parseBars(f)
	if err != nil {
		return 0, err
	}
	if err := model.ValidateBars(bars); err != nil {
		return 0, err
	}
	if err := w.SaveBars(ctx, symbol, bars); err != nil {
		return 0, err
	}
	return len(bars), nil
}

func parseBars(r io.Reader) ([]model.Bar, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 6
	cr.TrimLeadingSpace = true

	var bars []model.Bar
	for line := 1; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			return bars, nil
		}
		if err != nil {
			return nil, err
		}
		if line == 1 && strings.EqualFold(strings.TrimSpace(rec[0]), "timestamp") {
			continue
		}

		var b model.Bar
		if b.TS, err = parseTimestamp(rec[0]); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		fields := []*float64{&b.Open, &b.High, &b.Low, &b.Close, &b.Volume}
		for i, dst := range fields {
			if *dst, err = strconv.ParseFloat(strings.TrimSpace(rec[i+1]), 64); err != nil {
				return nil, fmt.Errorf("line %d column %d: %w", line, i+2, err)
			}
		}
		bars = append(bars, b)
	}
}

func parseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC(), nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse("2006-01-02 15:04:05", s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}
