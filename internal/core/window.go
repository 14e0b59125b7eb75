package core

import (
	"time"
)

// Default scan window boundaries. Backups typically run overnight, so the
// window anchors to "yesterday evening" through "this morning".
const (
	DefaultWindowStartHour = 16
	DefaultWindowEndHour   = 9
)

// ScanWindow is the inclusive receipt-time range considered for one
// reconciliation run.
type ScanWindow struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls inside the window.
func (w ScanWindow) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

// ComputeScanWindow derives the scan window for "today's" check. The window
// starts yesterday at startHour and ends today at endHour, clamped to now so
// it never extends into the future. Out-of-range hours are replaced by the
// defaults. A configured pair that produces an inverted window is tolerated by
// callers as an empty effective window.
func ComputeScanWindow(now time.Time, startHour, endHour int) ScanWindow {
	startHour = sanitizeHour(startHour, DefaultWindowStartHour)
	endHour = sanitizeHour(endHour, DefaultWindowEndHour)

	yesterday := now.AddDate(0, 0, -1)
	start := time.Date(yesterday.Year(), yesterday.Month(), yesterday.Day(), startHour, 0, 0, 0, now.Location())

	end := time.Date(now.Year(), now.Month(), now.Day(), endHour, 0, 0, 0, now.Location())
	if end.After(now) {
		end = now
	}

	return ScanWindow{Start: start, End: end}
}

// sanitizeHour replaces an hour outside [0,23] with the given default.
func sanitizeHour(hour, fallback int) int {
	if hour < 0 || hour > 23 {
		return fallback
	}
	return hour
}

// sanitizeMinute replaces a minute outside [0,59] with the given default.
func sanitizeMinute(minute, fallback int) int {
	if minute < 0 || minute > 59 {
		return fallback
	}
	return minute
}
