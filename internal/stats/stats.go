// Package stats holds the attendance arithmetic shared by program statistics
// and trainee reports. Weekends are never eligible; there is no holiday calendar.
package stats

import (
	"math"
	"time"
)

// DismissalThreshold is the percentage under which dismissal is recommended.
const DismissalThreshold = 50.0

// Day truncates t to its calendar date in UTC.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// WeekdayCount returns the number of Mon-Fri dates in [start, end], both inclusive.
func WeekdayCount(start, end time.Time) int {
	start, end = Day(start), Day(end)
	if end.Before(start) {
		return 0
	}
	days := int(end.Sub(start).Hours()/24) + 1
	count := (days / 7) * 5
	wd := start.Weekday()
	for i := 0; i < days%7; i++ {
		if wd != time.Saturday && wd != time.Sunday {
			count++
		}
		wd = (wd + 1) % 7
	}
	return count
}

// Window returns the default statistics range for a program: its start date up
// to the earlier of today and its end date.
func Window(programStart, programEnd, today time.Time) (from, to time.Time) {
	from, to = Day(programStart), Day(programEnd)
	if t := Day(today); t.Before(to) {
		to = t
	}
	return from, to
}

// Percentage is present / (eligible - excused) * 100 rounded to two decimals.
// It is 0 when no days are required.
func Percentage(present, eligible, excused int) float64 {
	required := eligible - excused
	if required <= 0 {
		return 0
	}
	return math.Round(float64(present)/float64(required)*100*100) / 100
}

// WeekdaysInMonth counts Mon-Fri dates in the given month.
func WeekdaysInMonth(year int, month time.Month) int {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	return WeekdayCount(first, first.AddDate(0, 1, -1))
}

// MonthRange returns the first and last day of a month.
func MonthRange(year int, month time.Month) (time.Time, time.Time) {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	return first, first.AddDate(0, 1, -1)
}

// DismissalRecommended reports whether pct is under the threshold.
func DismissalRecommended(pct float64) bool {
	return pct < DismissalThreshold
}
