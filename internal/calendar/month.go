// Package calendar renders a month grid where birthday cells show member photos.
//
// Rendering is a pure function of the month, the geometry and the day
// assignment: the package holds no process-wide state, so concurrent callers
// only need distinct output paths.
package calendar

import (
	"errors"
	"fmt"
	"time"

	"github.com/tartampluch/go-birthday-bot/internal/config"
)

// ErrInvalidMonth is returned when a MonthSpec names a month outside 1..12.
var ErrInvalidMonth = errors.New(config.ErrInvalidMonth)

// MonthSpec identifies the month to render.
type MonthSpec struct {
	Year  int
	Month int
}

// Validate rejects months outside 1..12.
func (m MonthSpec) Validate() error {
	if m.Month < 1 || m.Month > 12 {
		return fmt.Errorf("%w: %d", ErrInvalidMonth, m.Month)
	}
	return nil
}

// DaysInMonth follows the Gregorian leap year rule.
func (m MonthSpec) DaysInMonth() int {
	// Day 0 of the next month normalizes to the last day of this one.
	return time.Date(m.Year, time.Month(m.Month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// FirstWeekday returns the weekday of day 1 with Monday=0 .. Sunday=6.
func (m MonthSpec) FirstWeekday() int {
	wd := time.Date(m.Year, time.Month(m.Month), 1, 0, 0, 0, 0, time.UTC).Weekday()
	return (int(wd) + 6) % 7
}

// Shift returns the month delta months away, rolling over years.
func (m MonthSpec) Shift(delta int) MonthSpec {
	t := time.Date(m.Year, time.Month(m.Month)+time.Month(delta), 1, 0, 0, 0, 0, time.UTC)
	return MonthSpec{Year: t.Year(), Month: int(t.Month())}
}
