package domain

import "time"

// Interval is a closed date interval [Start, End]. The engine treats rental
// windows as closed intervals: a candidate that starts the same day another
// rental ends is a conflict. The same rule is applied for creation and for
// extension checks.
type Interval struct {
	Start time.Time
	End   time.Time
}

// Valid reports whether the interval has positive length.
func (i Interval) Valid() bool {
	return i.End.After(i.Start)
}

// Overlaps reports whether two closed intervals share at least one instant.
func (i Interval) Overlaps(other Interval) bool {
	return !i.Start.After(other.End) && !i.End.Before(other.Start)
}

// HasConflict reports whether the candidate interval overlaps any of the
// existing intervals. Callers pass only intervals of rentals that still
// occupy the unit (ACTIVE); terminal rentals must be filtered out first.
// Linear scan: per-unit rental counts are small.
func HasConflict(existing []Interval, candidate Interval) bool {
	for _, iv := range existing {
		if candidate.Overlaps(iv) {
			return true
		}
	}
	return false
}
