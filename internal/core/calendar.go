package core

import "time"

// StartOfMonth returns the first instant of t's month in t's location.
func StartOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

// EndOfMonth returns the last representable instant of t's month.
func EndOfMonth(t time.Time) time.Time {
	return StartOfMonth(t).AddDate(0, 1, 0).Add(-time.Nanosecond)
}

// MonthRange returns the inclusive [start, end] bounds of t's month.
func MonthRange(t time.Time) (time.Time, time.Time) {
	return StartOfMonth(t), EndOfMonth(t)
}

// PreviousMonth returns the first instant of the month before t's.
func PreviousMonth(t time.Time) time.Time {
	return StartOfMonth(t).AddDate(0, -1, 0)
}

// DaysInMonth returns the number of days of month m in year y.
func DaysInMonth(y int, m time.Month) int {
	return time.Date(y, m+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// DaysLeftInMonth is the last day of now's month minus today's day number.
func DaysLeftInMonth(now time.Time) int {
	return DaysInMonth(now.Year(), now.Month()) - now.Day()
}

// IsNewMonth reports whether current falls in a strictly later calendar month
// than last, judged in current's location. Year boundaries count: Dec 2024 ->
// Jan 2025 is a new month.
func IsNewMonth(last, current time.Time) bool {
	last = last.In(current.Location())
	if current.Year() != last.Year() {
		return current.Year() > last.Year()
	}
	return current.Month() > last.Month()
}
