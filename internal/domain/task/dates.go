package task

import "time"

// NormalizeIncoming adjusts a user-supplied timestamp that arrived as a bare
// date (midnight). Spoken commands rarely carry a time of day, and midnight is
// almost never what the speaker meant:
//
//   - a bare date defaults to noon,
//   - except a bare date exactly one day ahead of now ("tomorrow"), which
//     inherits the current wall-clock hour and minute.
//
// Timestamps that already carry a time component pass through untouched.
func NormalizeIncoming(t, now time.Time) time.Time {
	if t.Hour() != 0 || t.Minute() != 0 || t.Second() != 0 {
		return t
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	target := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, now.Location())
	if target.Sub(today) == 24*time.Hour {
		return time.Date(t.Year(), t.Month(), t.Day(), now.Hour(), now.Minute(), 0, 0, t.Location())
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 12, 0, 0, 0, t.Location())
}

// ShiftDays returns the absolute distance between two timestamps in whole
// days, rounded to the nearest day.
func ShiftDays(a, b time.Time) int {
	d := b.Sub(a)
	if d < 0 {
		d = -d
	}
	return int((d + 12*time.Hour) / (24 * time.Hour))
}
