// Package calendar holds the date arithmetic used for expiry bookkeeping.
// All expiry comparisons happen on whole days.
package calendar

import "time"

// Day truncates t to midnight UTC of its own calendar date.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// AddDays returns the day n days after the day of t.
func AddDays(t time.Time, n int) time.Time {
	return Day(t).AddDate(0, 0, n)
}

func SameDay(a, b time.Time) bool {
	return Day(a).Equal(Day(b))
}

// Format renders the day of t as YYYY-MM-DD.
func Format(t time.Time) string {
	return t.Format(time.DateOnly)
}
