package util

import (
	"time"
)

const DateKeyFormat = "2006-01-02"

// StartOfDay returns midnight of the calendar day containing date in the given location
func StartOfDay(date time.Time, location *time.Location) time.Time {
	local := date.In(location)

	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, location)
}

// DateKey formats the calendar day of date in the given location as an ISO date
func DateKey(date time.Time, location *time.Location) string {
	return date.In(location).Format(DateKeyFormat)
}

// TrailingDays returns the ISO dates of the n days ending on the day containing end, oldest first
func TrailingDays(end time.Time, n int, location *time.Location) []string {
	if n <= 0 {
		return []string{}
	}

	today := StartOfDay(end, location)
	days := make([]string, 0, n)
	for i := n - 1; i >= 0; i-- {
		// Noon keeps AddDate clear of DST transitions around midnight
		day := time.Date(today.Year(), today.Month(), today.Day()-i, 12, 0, 0, 0, location)
		days = append(days, day.Format(DateKeyFormat))
	}

	return days
}
