package engine

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"time"

	"github.com/emersion/go-ical"
	"github.com/tartampluch/go-birthday-bot/internal/config"
	"github.com/tartampluch/go-birthday-bot/internal/store"
)

// FeedStats summarizes one feed build.
type FeedStats struct {
	Members int
	Events  int
	Today   int
}

// eventUID is stable for a member across rebuilds and profile edits.
func eventUID(userID int64) string {
	hash := sha256.Sum256([]byte(fmt.Sprintf(config.FormatHashInput, userID, config.UIDSalt)))
	return fmt.Sprintf(config.FormatUID, fmt.Sprintf("%x", hash[:config.UIDHashLength]), config.ICalDomain)
}

// BuildFeed encodes one yearly recurring all-day event per member with a
// birthday. When nobody has one, a minimal valid calendar is returned.
func BuildFeed(records []store.Record, now time.Time, captions CaptionFormatter) ([]byte, FeedStats, error) {
	captions = captions.withDefaults()
	stats := FeedStats{Members: len(records)}

	cal := ical.NewCalendar()
	cal.Props.SetText(config.PropVersion, config.ICalVersion)
	cal.Props.SetText(config.PropProdid, config.ICalProdid)
	cal.Props.SetText(config.PropXWRCalName, config.ICalCalName)
	cal.Props.SetText(config.PropCalScale, config.ICalScale)
	cal.Props.SetText(config.PropMethod, config.ICalMethod)

	refreshProp := ical.NewProp(config.PropRefresh)
	refreshProp.SetDuration(config.DefaultICalRefresh)
	cal.Props.Set(refreshProp)

	dtStampProp := ical.NewProp(config.PropDTStamp)
	dtStampProp.SetDateTime(now.UTC())

	for _, r := range records {
		if !r.HasBirthday() {
			slog.Debug(config.MsgSkippedBirthday,
				config.LogKeyComponent, config.CompEngine,
				config.LogKeyUser, r.UserID,
			)
			continue
		}
		birth := *r.Birthday
		name := captions.DisplayName(r)
		if r.DisplayName == nil && r.Username != nil {
			name = "@" + *r.Username
		}

		event := ical.NewEvent()
		event.Props.SetText(config.PropUID, eventUID(r.UserID))
		event.Props.SetText(config.PropSummary, captions.FeedSummary(name))
		event.Props.Set(dtStampProp)

		dtStartProp := ical.NewProp(config.PropDTStart)
		dtStartProp.SetDate(time.Date(birth.Year(), birth.Month(), birth.Day(), 0, 0, 0, 0, time.UTC))
		event.Props.Set(dtStartProp)

		// Set the rule value directly so the encoder does not add VALUE=TEXT.
		rruleProp := ical.NewProp(config.PropRRule)
		rruleProp.Value = config.ICalRRule
		if birth.Month() == time.February && birth.Day() == 29 {
			rruleProp.Value = config.ICalRRuleLeapDay
		}
		event.Props.Set(rruleProp)

		cal.Children = append(cal.Children, event.Component)
		stats.Events++

		if birth.Month() == now.Month() && birth.Day() == now.Day() {
			stats.Today++
			slog.Info(config.MsgBdayToday,
				config.LogKeyComponent, config.CompEngine,
				config.LogKeyName, name,
				config.LogKeyDOB, birth.Format(config.DateFormatFullDash),
			)
		}
	}

	if len(cal.Children) == 0 {
		return []byte(config.StubVCalendar), stats, nil
	}

	var buf bytes.Buffer
	if err := ical.NewEncoder(&buf).Encode(cal); err != nil {
		return nil, stats, fmt.Errorf("%s: %w", config.ErrICalEncode, err)
	}
	return buf.Bytes(), stats, nil
}
