package voice

import "time"

// periodLayout formats a calendar month as "YYYY-MM"
const periodLayout = "2006-01"

// PeriodKeyAt returns the accounting period containing t.
// Periods are calendar months in UTC so that every replica agrees on rollover.
func PeriodKeyAt(t time.Time) string {
	return t.UTC().Format(periodLayout)
}

// NextPeriodStart returns the first instant of the period after the one containing t
func NextPeriodStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month()+1, 1, 0, 0, 0, 0, time.UTC)
}
