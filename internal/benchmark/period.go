package benchmark

import (
	"fmt"
	"strings"
	"time"
)

// Period is the investment cadence.
type Period string

const (
	Daily   Period = "daily"
	Weekly  Period = "weekly"
	Monthly Period = "monthly"
)

// ParsePeriod accepts daily, weekly or monthly (case-insensitive).
func ParsePeriod(s string) (Period, error) {
	switch p := Period(strings.ToLower(strings.TrimSpace(s))); p {
	case Daily, Weekly, Monthly:
		return p, nil
	}
	return "", fmt.Errorf("unknown period %q", s)
}

// Bucket returns the label of the period that contains ts. Bars sharing a
// label belong to the same period.
//
// Weekly periods close on Monday 00:00 UTC and are labeled by that instant,
// so a bar at Monday midnight closes the week that ended with it. Daily
// periods are labeled by their UTC date and monthly ones by the first day of
// the calendar month.
func (p Period) Bucket(ts time.Time) time.Time {
	ts = ts.UTC()
	day := time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC)
	switch p {
	case Daily:
		return day
	case Monthly:
		return time.Date(ts.Year(), ts.Month(), 1, 0, 0, 0, 0, time.UTC)
	default:
		if ts.After(day) {
			day = day.AddDate(0, 0, 1)
		}
		ahead := (int(time.Monday) - int(day.Weekday()) + 7) % 7
		return day.AddDate(0, 0, ahead)
	}
}
