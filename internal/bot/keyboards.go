package bot

import (
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/tartampluch/go-birthday-bot/internal/calendar"
	"github.com/tartampluch/go-birthday-bot/internal/config"
)

func (b *Bot) startKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(tgbotapi.NewKeyboardButtonRow(
		tgbotapi.NewKeyboardButton(b.loc.T(config.TKeyBtnCalendar, nil)),
		tgbotapi.NewKeyboardButton(b.loc.T(config.TKeyBtnProfile, nil)),
	))
	kb.ResizeKeyboard = true
	return kb
}

func (b *Bot) profileKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(tgbotapi.NewKeyboardButtonRow(
		tgbotapi.NewKeyboardButton(b.loc.T(config.TKeyBtnUpdate, nil)),
		tgbotapi.NewKeyboardButton(b.loc.T(config.TKeyBtnCalendar, nil)),
	))
	kb.ResizeKeyboard = true
	return kb
}

func (b *Bot) skipKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(tgbotapi.NewKeyboardButtonRow(
		tgbotapi.NewKeyboardButton(b.loc.T(config.TKeyBtnSkip, nil)),
	))
	kb.ResizeKeyboard = true
	return kb
}

// monthKeyboard links to the previous and next month.
func (b *Bot) monthKeyboard(m calendar.MonthSpec) tgbotapi.InlineKeyboardMarkup {
	prev, next := m.Shift(-1), m.Shift(1)
	return tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData(b.loc.T(config.TKeyBtnPrev, nil), EncodeMonthCallback(prev)),
		tgbotapi.NewInlineKeyboardButtonData(b.loc.T(config.TKeyBtnNext, nil), EncodeMonthCallback(next)),
	))
}

// EncodeMonthCallback formats inline button data as cal:<year>:<month>.
func EncodeMonthCallback(m calendar.MonthSpec) string {
	return strings.Join([]string{
		config.CallbackCalendarPrefix,
		strconv.Itoa(m.Year),
		strconv.Itoa(m.Month),
	}, config.CallbackSeparator)
}

// DecodeMonthCallback parses data produced by EncodeMonthCallback.
func DecodeMonthCallback(data string) (calendar.MonthSpec, error) {
	parts := strings.Split(data, config.CallbackSeparator)
	if len(parts) != 3 || parts[0] != config.CallbackCalendarPrefix {
		return calendar.MonthSpec{}, fmt.Errorf("unknown callback %q", data)
	}
	year, err := strconv.Atoi(parts[1])
	if err != nil {
		return calendar.MonthSpec{}, fmt.Errorf("bad callback year: %w", err)
	}
	month, err := strconv.Atoi(parts[2])
	if err != nil {
		return calendar.MonthSpec{}, fmt.Errorf("bad callback month: %w", err)
	}
	m := calendar.MonthSpec{Year: year, Month: month}
	if err := m.Validate(); err != nil {
		return calendar.MonthSpec{}, err
	}
	return m, nil
}
