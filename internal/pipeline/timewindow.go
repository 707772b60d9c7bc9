package pipeline

import (
	"time"

	"github.com/bioscout-islamabad/bioscout/internal/model"
)

// Bucket boundaries in whole days.
const (
	weekDays    = 7
	monthDays   = 30
	quarterDays = 90
)

// DaysBetween counts whole UTC calendar days from then to now. Both instants
// are first reduced to their UTC date, so the result does not depend on the
// server's local time zone or on the time of day.
func DaysBetween(then, now time.Time) int {
	a := utcDate(then)
	b := utcDate(now)
	return int(b.Sub(a).Hours() / 24)
}

func utcDate(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// Bucket assigns exactly one recency bucket, the smallest that contains the
// record: ≤7 days week, ≤30 month, ≤90 quarter, otherwise older. Dates in the
// future count as this week; unparseable dates are older.
func Bucket(o model.Observation, now time.Time) model.TimeCategory {
	d, ok := o.ParsedDate()
	if !ok {
		return model.TimeOlder
	}
	switch days := DaysBetween(d, now); {
	case days <= weekDays:
		return model.TimeWeek
	case days <= monthDays:
		return model.TimeMonth
	case days <= quarterDays:
		return model.TimeQuarter
	default:
		return model.TimeOlder
	}
}

// InWindow reports whether the record's bucket equals the window. Buckets are
// mutually exclusive, so "month" does not include this week's records.
// An empty or "all" window matches everything.
func InWindow(o model.Observation, w model.TimeWindow, now time.Time) bool {
	if w == "" || w == model.WindowAll {
		return true
	}
	return string(Bucket(o, now)) == string(w)
}
