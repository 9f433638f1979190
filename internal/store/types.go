// Package store provides SQLite-backed per-application preferences and
// usage statistics for vnime.
package store

import "time"

// Input methods as stored in the database.
const (
	MethodTelex = 0
	MethodVNI   = 1
)

// AppMethod is the input method remembered for one application.
type AppMethod struct {
	App       string
	Method    int
	UpdatedAt time.Time
}

// DailyStat aggregates committed words for one application on one day.
// Committed text itself is never stored.
type DailyStat struct {
	Day      string // YYYY-MM-DD, local time
	App      string
	Commits  int64
	Restores int64
	Chars    int64
}

// Totals sums a set of daily stats.
type Totals struct {
	Commits  int64
	Restores int64
	Chars    int64
}

// Sum adds up stats.
func Sum(stats []DailyStat) Totals {
	var t Totals
	for _, s := range stats {
		t.Commits += s.Commits
		t.Restores += s.Restores
		t.Chars += s.Chars
	}
	return t
}
