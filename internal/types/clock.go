package types

import "time"

// Clock abstracts time for testability. All time-window logic (rate limit
// windows, calendar-day usage filtering, period bounds) reads the current
// time through a Clock so tests can pin it.
type Clock interface {
	Now() time.Time
}

// RealClock is the production Clock backed by time.Now.
type RealClock struct{}

// Now returns the current UTC time.
func (RealClock) Now() time.Time { return time.Now().UTC() }

// SameCalendarDay reports whether a and b fall on the same UTC calendar day.
// "Daily" quotas are calendar-day scoped, not rolling 24-hour windows.
func SameCalendarDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}
