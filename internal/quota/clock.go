// Package quota holds the pure time arithmetic behind daily usage
// accounting: reset boundaries are UTC midnights, and a counter whose
// reset time has passed rolls forward in a single jump regardless of
// how many days went by.
package quota

import "time"

// NextReset returns the start of the next UTC day after now.
func NextReset(now time.Time) time.Time {
	now = now.UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1)
}

// Due reports whether a rollover is owed: the reset boundary has been
// reached or crossed.
func Due(resetAt, now time.Time) bool {
	return !now.Before(resetAt)
}
