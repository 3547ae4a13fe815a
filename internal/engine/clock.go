package engine

import "time"

// Clock abstracts time.Now() to allow deterministic testing.
// It decides what "today" is for notifications and the default calendar month.
type Clock interface {
	Now() time.Time
}

// RealClock implements Clock using the standard time package.
type RealClock struct {
	// Location is the group's time zone; nil means the process local zone.
	Location *time.Location
}

// Now returns the current time in the configured location.
func (c RealClock) Now() time.Time {
	if c.Location != nil {
		return time.Now().In(c.Location)
	}
	return time.Now()
}
