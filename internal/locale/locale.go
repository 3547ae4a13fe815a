// Package locale loads the embedded translations and exposes them to the bot,
// the calendar renderer and the caption formatter.
package locale

import (
	"embed"
	"encoding/json"
	"log/slog"
	"strconv"
	"strings"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"github.com/tartampluch/go-birthday-bot/internal/calendar"
	"github.com/tartampluch/go-birthday-bot/internal/config"
	"github.com/tartampluch/go-birthday-bot/internal/engine"
	"golang.org/x/text/language"
)

//go:embed locales/*.json
var localeFS embed.FS

// Bundle holds every embedded translation.
type Bundle struct {
	bundle    *i18n.Bundle
	languages []string
}

// NewBundle loads the embedded active.<lang>.json files. Malformed entries are
// logged and skipped.
func NewBundle() *Bundle {
	bundle := i18n.NewBundle(language.Russian)
	bundle.RegisterUnmarshalFunc("json", json.Unmarshal)
	b := &Bundle{bundle: bundle}

	entries, err := localeFS.ReadDir("locales")
	if err != nil {
		slog.Error(config.ErrLocalesAccess,
			config.LogKeyComponent, config.CompI18n,
			config.LogKeyError, err,
		)
		return b
	}

	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasPrefix(name, "active.") || !strings.HasSuffix(name, ".json") {
			slog.Debug(config.MsgLocaleSkip,
				config.LogKeyComponent, config.CompI18n,
				config.LogKeyFile, name,
			)
			continue
		}

		langCode := strings.TrimSuffix(strings.TrimPrefix(name, "active."), ".json")
		if langCode == "" {
			slog.Warn(config.MsgLocaleBadName,
				config.LogKeyComponent, config.CompI18n,
				config.LogKeyFile, name,
			)
			continue
		}

		if _, err := bundle.LoadMessageFileFS(localeFS, "locales/"+name); err != nil {
			slog.Error(config.ErrLocaleLoad,
				config.LogKeyComponent, config.CompI18n,
				config.LogKeyFile, name,
				config.LogKeyError, err,
			)
			continue
		}
		b.languages = append(b.languages, langCode)
		slog.Debug(config.MsgLocaleLoaded,
			config.LogKeyComponent, config.CompI18n,
			config.LogKeyLang, langCode,
			config.LogKeyFile, name,
		)
	}
	return b
}

// Languages lists the loaded language codes.
func (b *Bundle) Languages() []string { return b.languages }

// Localizer translates keys for one language, falling back to Russian.
type Localizer struct {
	lang string
	loc  *i18n.Localizer
}

// Localizer returns a translator for lang.
func (b *Bundle) Localizer(lang string) *Localizer {
	if lang == "" {
		lang = config.DefaultLanguage
	}
	return &Localizer{lang: lang, loc: i18n.NewLocalizer(b.bundle, lang, config.DefaultLanguage)}
}

// Lang is the requested language code.
func (l *Localizer) Lang() string { return l.lang }

// T translates key with optional template data. Missing keys return the key.
func (l *Localizer) T(key string, data map[string]any) string {
	return l.TOr(key, key, data)
}

// TOr translates key, returning fallback when it is missing.
func (l *Localizer) TOr(key, fallback string, data map[string]any) string {
	if l == nil || l.loc == nil {
		return fallback
	}
	msg, err := l.loc.Localize(&i18n.LocalizeConfig{MessageID: key, TemplateData: data})
	if err != nil {
		slog.Debug(config.MsgTransMissing,
			config.LogKeyComponent, config.CompI18n,
			config.LogKeyKey, key,
			config.LogKeyError, err,
		)
		return fallback
	}
	return msg
}

// CalendarLabels returns the month names, weekday abbreviations and title
// format for the renderer.
func (l *Localizer) CalendarLabels() calendar.Labels {
	labels := calendar.DefaultLabels()
	for i := range labels.MonthNames {
		key := config.TKeyMonthPrefix + strconv.Itoa(i+1)
		labels.MonthNames[i] = l.TOr(key, labels.MonthNames[i], nil)
	}
	for i := range labels.Weekdays {
		key := config.TKeyWeekdayPrefix + strconv.Itoa(i)
		labels.Weekdays[i] = l.TOr(key, labels.Weekdays[i], nil)
	}
	labels.TitleFormat = l.TOr(config.TKeyCalendarTitle, config.FallbackTitle, nil)
	return labels
}

func lineData(b engine.BirthdayLine) map[string]any {
	return map[string]any{
		"Day":      b.Day,
		"Month":    b.Month,
		"Year":     b.Year,
		"Name":     b.Name,
		"Username": b.Username,
		"Age":      b.Age,
	}
}

// CaptionFormatter builds the caption and notification formatter from the
// translated templates.
func (l *Localizer) CaptionFormatter() engine.CaptionFormatter {
	def := engine.DefaultCaptionFormatter()
	return engine.CaptionFormatter{
		Line: func(b engine.BirthdayLine) string {
			return l.TOr(config.TKeyCaptionLine, def.Line(b), lineData(b))
		},
		NotifyHeader: l.TOr(config.TKeyNotifyHeader, def.NotifyHeader, nil),
		NotifyLine: func(b engine.BirthdayLine) string {
			return l.TOr(config.TKeyNotifyLine, def.NotifyLine(b), lineData(b))
		},
		FeedSummary: func(name string) string {
			return l.TOr(config.TKeyFeedSummary, def.FeedSummary(name), map[string]any{"Name": name})
		},
		NotSpecified: l.TOr(config.TKeyNotSpecified, def.NotSpecified, nil),
		NoUsername:   l.TOr(config.TKeyNoUsername, def.NoUsername, nil),
	}
}
