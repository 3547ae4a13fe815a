package engine

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-vcard"
	"github.com/tartampluch/go-birthday-bot/internal/config"
	"github.com/tartampluch/go-birthday-bot/internal/store"
)

// ImportedMember is one roster entry read from a vCard stream.
type ImportedMember struct {
	UserID   int64
	Username string
	Name     string
	Birthday time.Time
}

// Update converts the entry into a store update that leaves the photo alone.
func (m ImportedMember) Update() store.Update {
	u := store.Update{Birthday: store.Set(m.Birthday)}
	if m.Username != "" {
		u.Username = store.Set(m.Username)
	}
	if m.Name != "" {
		u.DisplayName = store.Set(m.Name)
	}
	return u
}

// EncodeVCards writes one vCard 4.0 per member. The Telegram user id is kept
// in X-TELEGRAM-ID so the roster can be imported back.
func EncodeVCards(w io.Writer, records []store.Record) error {
	enc := vcard.NewEncoder(w)
	for _, r := range records {
		card := make(vcard.Card)
		card.SetValue(vcard.FieldVersion, config.VCardVersion)

		fn := store.Value(r.DisplayName)
		if fn == "" {
			fn = store.Value(r.Username)
		}
		if fn == "" {
			fn = strconv.FormatInt(r.UserID, 10)
		}
		card.SetValue(vcard.FieldFormattedName, fn)
		if r.Username != nil {
			card.SetValue(vcard.FieldNickname, *r.Username)
		}
		if r.HasBirthday() {
			card.SetValue(vcard.FieldBirthday, r.Birthday.Format(config.DateFormatFullBasic))
		}
		card.SetValue(config.VCardTelegramID, strconv.FormatInt(r.UserID, 10))

		if err := enc.Encode(card); err != nil {
			return fmt.Errorf("%s: %w", config.ErrVCardEncode, err)
		}
	}
	return nil
}

// DecodeVCards reads roster entries. Cards without a Telegram id or a full
// birth date are logged and skipped.
func DecodeVCards(r io.Reader) ([]ImportedMember, error) {
	dec := vcard.NewDecoder(r)
	var members []ImportedMember
	for {
		card, err := dec.Decode()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return members, fmt.Errorf("%s: %w", config.ErrImport, err)
		}

		id, err := strconv.ParseInt(strings.TrimSpace(card.Value(config.VCardTelegramID)), 10, 64)
		if err != nil {
			slog.Warn(config.MsgImportSkipped,
				config.LogKeyComponent, config.CompEngine,
				config.LogKeyName, card.Value(vcard.FieldFormattedName),
			)
			continue
		}
		birthday, err := parseBirthday(card.Value(vcard.FieldBirthday))
		if err != nil {
			slog.Warn(config.MsgImportSkipped,
				config.LogKeyComponent, config.CompEngine,
				config.LogKeyUser, id,
			)
			continue
		}

		name := card.Value(vcard.FieldFormattedName)
		username := strings.TrimPrefix(card.Value(vcard.FieldNickname), "@")
		if name == username {
			name = ""
		}
		members = append(members, ImportedMember{
			UserID:   id,
			Username: username,
			Name:     name,
			Birthday: birthday,
		})
	}
	return members, nil
}

// parseBirthday accepts the full-date vCard forms. Year-less dates are
// rejected since the age cannot be computed.
func parseBirthday(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, f := range []string{config.DateFormatFullDash, config.DateFormatFullBasic, config.DateFormatRFC3339} {
		if t, err := time.Parse(f, value); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, errors.New(config.ErrDateParse)
}
