package domain

import "time"

// DateTimeLayout is the wire format for date-times at the store boundary.
// It is applied on every write and every read so stored values always
// compare consistently.
const DateTimeLayout = "2006-01-02T15:04:05"

// Interval is a closed date-time interval [Start, End].
type Interval struct {
	Start time.Time
	End   time.Time
}

// Overlaps reports whether two closed intervals share at least one instant.
// Boundaries are inclusive on both ends: an interval whose start equals
// another's end overlaps it. Back-to-back bookings on the same instant are
// therefore rejected; this boundary policy is a compatibility requirement.
func (a Interval) Overlaps(b Interval) bool {
	return !a.Start.After(b.End) && !b.Start.After(a.End)
}

// Contains reports whether the instant t falls within the closed interval.
func (a Interval) Contains(t time.Time) bool {
	return !t.Before(a.Start) && !t.After(a.End)
}

// Valid reports whether the interval has positive length.
func (a Interval) Valid() bool {
	return a.Start.Before(a.End)
}

// FormatDateTime renders t in the store wire format.
func FormatDateTime(t time.Time) string {
	return t.Format(DateTimeLayout)
}

// ParseDateTime parses a store wire-format date-time.
func ParseDateTime(s string) (time.Time, error) {
	return time.Parse(DateTimeLayout, s)
}
