package utils

import (
	"time"
)

// DaysIn returns the number of days of month m in year y.
func DaysIn(y int, m time.Month, loc *time.Location) int {
	return time.Date(y, m+1, 0, 0, 0, 0, 0, loc).Day()
}

// AddMonthsClamped adds n calendar months keeping the day of month, clamped to
// the last day of the target month. time.AddDate would roll Jan 31 + 1 month
// over into March.
func AddMonthsClamped(t time.Time, n int) time.Time {
	year, month, day := t.Date()
	hour, minute, sec := t.Clock()

	target := time.Date(year, month+time.Month(n), 1, 0, 0, 0, 0, t.Location())
	if last := DaysIn(target.Year(), target.Month(), t.Location()); day > last {
		day = last
	}
	return time.Date(target.Year(), target.Month(), day, hour, minute, sec, t.Nanosecond(), t.Location())
}
