package bot

import (
	"strconv"
	"strings"
	"time"

	"github.com/tartampluch/go-birthday-bot/internal/config"
)

// DateError carries the translation key explaining a rejected birthday.
type DateError struct {
	Key string
}

func (e *DateError) Error() string { return e.Key }

// ParseBirthday reads a DD.MM.YYYY birthday. Day and month ranges are checked
// before the calendar date itself, and dates after today are rejected.
func ParseBirthday(text string, today time.Time) (time.Time, error) {
	parts := strings.Split(strings.TrimSpace(text), config.BirthdayDateSep)
	if len(parts) != 3 {
		return time.Time{}, &DateError{Key: config.TKeyErrDateFormat}
	}
	nums := make([]int, 3)
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return time.Time{}, &DateError{Key: config.TKeyErrDateFormat}
		}
		nums[i] = n
	}
	day, month, year := nums[0], nums[1], nums[2]

	switch {
	case day > config.MaxDayOfMonth:
		return time.Time{}, &DateError{Key: config.TKeyErrDayRange}
	case month > config.MaxMonth:
		return time.Time{}, &DateError{Key: config.TKeyErrMonthRange}
	case day < 1 || month < 1 || year < 1:
		return time.Time{}, &DateError{Key: config.TKeyErrDateInvalid}
	}

	d := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if d.Day() != day || int(d.Month()) != month {
		// 31.04 or 29.02 of a common year
		return time.Time{}, &DateError{Key: config.TKeyErrDateInvalid}
	}
	todayDate := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
	if d.After(todayDate) {
		return time.Time{}, &DateError{Key: config.TKeyErrDateFuture}
	}
	return d, nil
}
