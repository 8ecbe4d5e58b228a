package domain

import (
	"fmt"
	"time"
)

// WeekKey returns the ISO year-week key for t, e.g. "2026-W35". Quotas,
// alerts and the time-gated traffic lights are all scoped by this key.
func WeekKey(t time.Time) string {
	year, week := t.ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week)
}

// WeekStart returns the ISO date (YYYY-MM-DD) of Monday 00:00 of t's week
// in t's location.
func WeekStart(t time.Time) string {
	// time.Weekday puts Sunday at 0; shift so Monday is day 0.
	offset := (int(t.Weekday()) + 6) % 7
	monday := t.AddDate(0, 0, -offset)
	return monday.Format("2006-01-02")
}
