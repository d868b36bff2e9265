package utils

import "time"

// FormatRFC3339 renders t in UTC with nanosecond precision
func FormatRFC3339(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// WindowStart returns the start of a trailing window of days ending at now
func WindowStart(now time.Time, days int) time.Time {
	return now.UTC().AddDate(0, 0, -days)
}
