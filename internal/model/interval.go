package model

import "time"

// Interval is a half-open time range [Start, End).
type Interval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Overlaps reports whether the half-open intervals [aStart, aEnd) and
// [bStart, bEnd) intersect. Every overlap test in the system goes through
// this predicate; half-open treatment means back-to-back ranges do not
// conflict.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && aEnd.After(bStart)
}

// OverlapsInterval reports whether [start, end) intersects iv.
func OverlapsInterval(start, end time.Time, iv Interval) bool {
	return Overlaps(start, end, iv.Start, iv.End)
}
