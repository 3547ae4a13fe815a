package engine

import (
	"fmt"
	"strings"
	"time"

	"github.com/tartampluch/go-birthday-bot/internal/config"
	"github.com/tartampluch/go-birthday-bot/internal/store"
)

// BirthdayLine is the data one caption or notification line is built from.
type BirthdayLine struct {
	Day, Month, Year int
	Name             string
	Username         string
	Age              int
}

// CaptionFormatter turns member records into the calendar caption and the
// daily notification. The templates are injected so they can be localized.
type CaptionFormatter struct {
	Line         func(BirthdayLine) string
	NotifyHeader string
	NotifyLine   func(BirthdayLine) string
	FeedSummary  func(name string) string

	NotSpecified string
	NoUsername   string
}

// DefaultCaptionFormatter uses the built-in Russian formats.
func DefaultCaptionFormatter() CaptionFormatter {
	return CaptionFormatter{
		Line: func(b BirthdayLine) string {
			return fmt.Sprintf(config.FallbackCaptionLine, b.Day, b.Month, b.Year, b.Name, b.Username, b.Age)
		},
		NotifyHeader: config.FallbackNotifyHeader,
		NotifyLine: func(b BirthdayLine) string {
			return fmt.Sprintf(config.FallbackNotifyLine, b.Day, b.Month, b.Year, b.Name, b.Username, b.Age)
		},
		FeedSummary: func(name string) string {
			return fmt.Sprintf(config.FallbackFeedSummary, name)
		},
		NotSpecified: config.FallbackNotSpecified,
		NoUsername:   config.FallbackNoUsername,
	}
}

// AgeTurning returns the age a member born on birth turns on their next
// birthday as seen from today: the completed years plus one.
func AgeTurning(birth, today time.Time) int {
	age := today.Year() - birth.Year()
	if today.Month() < birth.Month() || (today.Month() == birth.Month() && today.Day() < birth.Day()) {
		age--
	}
	return age + 1
}

func (f CaptionFormatter) withDefaults() CaptionFormatter {
	def := DefaultCaptionFormatter()
	if f.Line == nil {
		f.Line = def.Line
	}
	if f.NotifyLine == nil {
		f.NotifyLine = def.NotifyLine
	}
	if f.FeedSummary == nil {
		f.FeedSummary = def.FeedSummary
	}
	if f.NotifyHeader == "" {
		f.NotifyHeader = def.NotifyHeader
	}
	if f.NotSpecified == "" {
		f.NotSpecified = def.NotSpecified
	}
	if f.NoUsername == "" {
		f.NoUsername = def.NoUsername
	}
	return f
}

// DisplayName is the member's name, or the "not specified" placeholder.
func (f CaptionFormatter) DisplayName(r store.Record) string {
	if r.DisplayName != nil {
		return *r.DisplayName
	}
	return f.withDefaults().NotSpecified
}

func (f CaptionFormatter) line(r store.Record, today time.Time) BirthdayLine {
	username := f.NoUsername
	if r.Username != nil {
		username = *r.Username
	}
	b := *r.Birthday
	return BirthdayLine{
		Day:      b.Day(),
		Month:    int(b.Month()),
		Year:     b.Year(),
		Name:     f.DisplayName(r),
		Username: username,
		Age:      AgeTurning(b, today),
	}
}

// Format lists the members born in month, in input order, one line each.
// Records without a birthday are skipped.
func (f CaptionFormatter) Format(records []store.Record, month int, today time.Time) string {
	f = f.withDefaults()
	var sb strings.Builder
	for _, r := range records {
		if !r.HasBirthday() || int(r.Birthday.Month()) != month {
			continue
		}
		sb.WriteString(f.Line(f.line(r, today)))
		sb.WriteString("\n")
	}
	return sb.String()
}

// TodaysBirthdays returns the members whose birthday falls on today's date.
func TodaysBirthdays(records []store.Record, today time.Time) []store.Record {
	var out []store.Record
	for _, r := range records {
		if !r.HasBirthday() {
			continue
		}
		if r.Birthday.Month() == today.Month() && r.Birthday.Day() == today.Day() {
			out = append(out, r)
		}
	}
	return out
}

// NotificationText builds the daily message; ok is false when nobody has a
// birthday today.
func (f CaptionFormatter) NotificationText(records []store.Record, today time.Time) (string, bool) {
	f = f.withDefaults()
	celebrants := TodaysBirthdays(records, today)
	if len(celebrants) == 0 {
		return "", false
	}
	parts := make([]string, 0, len(celebrants)+1)
	parts = append(parts, f.NotifyHeader)
	for _, r := range celebrants {
		parts = append(parts, f.NotifyLine(f.line(r, today)))
	}
	return strings.Join(parts, "\n"), true
}
