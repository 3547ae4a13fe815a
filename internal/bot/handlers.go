package bot

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/skip2/go-qrcode"
	"github.com/tartampluch/go-birthday-bot/internal/calendar"
	"github.com/tartampluch/go-birthday-bot/internal/config"
	"github.com/tartampluch/go-birthday-bot/internal/store"
)

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	userID, chatID := msg.From.ID, msg.Chat.ID

	if msg.IsCommand() {
		slog.Debug(config.MsgCommand,
			config.LogKeyComponent, config.CompBot,
			config.LogKeyCommand, msg.Command(),
			config.LogKeyUser, userID,
		)
		b.sessions.end(userID)
		switch msg.Command() {
		case config.CmdStart:
			b.handleStart(ctx, msg)
		case config.CmdCalendar:
			b.handleCalendar(ctx, chatID, b.currentMonth())
		case config.CmdProfile:
			b.handleProfile(ctx, chatID, userID)
		case config.CmdSubscribe:
			b.handleSubscribe(chatID)
		case config.CmdExport:
			b.handleExport(ctx, chatID)
		}
		return
	}

	if draft, ok := b.sessions.get(userID); ok {
		b.handleDraft(ctx, msg, draft)
		return
	}

	switch strings.TrimSpace(msg.Text) {
	case b.loc.T(config.TKeyBtnCalendar, nil):
		b.handleCalendar(ctx, chatID, b.currentMonth())
	case b.loc.T(config.TKeyBtnProfile, nil):
		b.handleProfile(ctx, chatID, userID)
	case b.loc.T(config.TKeyBtnUpdate, nil):
		b.sessions.begin(userID)
		b.reply(chatID, b.loc.T(config.TKeyMsgAskPhoto, nil), b.skipKeyboard())
	default:
		slog.Debug(config.MsgUpdateIgnored,
			config.LogKeyComponent, config.CompBot,
			config.LogKeyUser, userID,
		)
	}
}

func (b *Bot) currentMonth() calendar.MonthSpec {
	now := b.now()
	return calendar.MonthSpec{Year: now.Year(), Month: int(now.Month())}
}

func (b *Bot) handleStart(ctx context.Context, msg *tgbotapi.Message) {
	b.reply(msg.Chat.ID, b.loc.T(config.TKeyMsgWelcome, nil), b.startKeyboard())

	_, err := b.store.Create(ctx, msg.From.ID, msg.From.UserName)
	switch {
	case errors.Is(err, store.ErrAlreadyExists):
		slog.Debug(config.MsgUserExists,
			config.LogKeyComponent, config.CompBot,
			config.LogKeyUser, msg.From.ID,
		)
	case err != nil:
		slog.Error(config.ErrStoreQuery,
			config.LogKeyComponent, config.CompBot,
			config.LogKeyUser, msg.From.ID,
			config.LogKeyError, err,
		)
	}
}

func escape(s string) string {
	return tgbotapi.EscapeText(tgbotapi.ModeMarkdown, s)
}

func (b *Bot) handleProfile(ctx context.Context, chatID, userID int64) {
	rec, err := b.store.Get(ctx, userID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			slog.Error(config.ErrStoreQuery,
				config.LogKeyComponent, config.CompBot,
				config.LogKeyUser, userID,
				config.LogKeyError, err,
			)
		}
		b.reply(chatID, b.loc.T(config.TKeyMsgNotRegistered, nil), b.startKeyboard())
		return
	}

	notSpecified := b.loc.T(config.TKeyNotSpecified, nil)
	username := "-"
	if rec.Username != nil {
		username = "@" + *rec.Username
	}
	name := notSpecified
	if rec.DisplayName != nil {
		name = *rec.DisplayName
	}
	birthday := notSpecified
	if rec.HasBirthday() {
		birthday = rec.Birthday.Format(config.BirthdayInputLayout)
	}
	text := b.loc.T(config.TKeyMsgProfile, map[string]any{
		"Username": escape(username),
		"Name":     escape(name),
		"Birthday": birthday,
	})

	if rec.PhotoID != nil {
		photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileID(*rec.PhotoID))
		photo.Caption = text
		photo.ParseMode = tgbotapi.ModeMarkdown
		photo.ReplyMarkup = b.profileKeyboard()
		b.send(photo)
		return
	}
	b.reply(chatID, text+"\n"+b.loc.T(config.TKeyMsgNoPhoto, nil), b.profileKeyboard())
}

func (b *Bot) isSkip(msg *tgbotapi.Message) bool {
	return strings.TrimSpace(msg.Text) == b.loc.T(config.TKeyBtnSkip, nil)
}

// handleDraft advances the photo, name, birthday conversation.
func (b *Bot) handleDraft(ctx context.Context, msg *tgbotapi.Message, draft profileDraft) {
	userID, chatID := msg.From.ID, msg.Chat.ID

	switch draft.step {
	case stepPhoto:
		if len(msg.Photo) == 0 && !b.isSkip(msg) {
			b.reply(chatID, b.loc.T(config.TKeyMsgNotPhoto, nil), nil)
			return
		}
		b.sessions.update(userID, func(d *profileDraft) {
			if len(msg.Photo) > 0 {
				// The last size is the largest.
				d.photoID = store.Set(msg.Photo[len(msg.Photo)-1].FileID)
			}
			d.step = stepName
		})
		b.reply(chatID, b.loc.T(config.TKeyMsgAskName, nil), b.skipKeyboard())

	case stepName:
		b.sessions.update(userID, func(d *profileDraft) {
			if !b.isSkip(msg) && strings.TrimSpace(msg.Text) != "" {
				d.name = store.Set(strings.TrimSpace(msg.Text))
			}
			d.step = stepBirthday
		})
		b.reply(chatID, b.loc.T(config.TKeyMsgAskBirthday, nil), b.skipKeyboard())

	case stepBirthday:
		u := store.Update{PhotoID: draft.photoID, DisplayName: draft.name}
		if msg.From.UserName != "" {
			u.Username = store.Set(msg.From.UserName)
		}
		if !b.isSkip(msg) {
			birthday, err := ParseBirthday(msg.Text, b.now())
			if err != nil {
				key := config.TKeyErrDateInvalid
				var de *DateError
				if errors.As(err, &de) {
					key = de.Key
				}
				b.reply(chatID, b.loc.T(config.TKeyMsgBadDate, map[string]any{"Reason": b.loc.T(key, nil)}), nil)
				return
			}
			u.Birthday = store.Set(birthday)
		}
		b.sessions.end(userID)

		if _, err := b.store.Upsert(ctx, userID, u); err != nil {
			slog.Error(config.ErrStoreQuery,
				config.LogKeyComponent, config.CompBot,
				config.LogKeyUser, userID,
				config.LogKeyError, err,
			)
			b.reply(chatID, b.loc.T(config.TKeyMsgSaveFailed, nil), b.startKeyboard())
			return
		}
		slog.Info(config.MsgProfileSaved,
			config.LogKeyComponent, config.CompBot,
			config.LogKeyUser, userID,
		)
		b.reply(chatID, b.loc.T(config.TKeyMsgSaved, nil), b.startKeyboard())
	}
}

func (b *Bot) handleCallback(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	if _, err := b.api.Request(tgbotapi.NewCallback(cq.ID, "")); err != nil {
		slog.Debug(config.ErrBotSend,
			config.LogKeyComponent, config.CompBot,
			config.LogKeyError, err,
		)
	}

	m, err := DecodeMonthCallback(cq.Data)
	if err != nil {
		slog.Debug(config.MsgUpdateIgnored,
			config.LogKeyComponent, config.CompBot,
			config.LogKeyError, err,
		)
		return
	}
	chatID := cq.From.ID
	if cq.Message != nil && cq.Message.Chat != nil {
		chatID = cq.Message.Chat.ID
	}
	b.handleCalendar(ctx, chatID, m)
}

// handleCalendar renders m to a unique file, sends it and removes it.
func (b *Bot) handleCalendar(ctx context.Context, chatID int64, m calendar.MonthSpec) {
	if b.calendar == nil {
		b.reply(chatID, b.loc.T(config.TKeyMsgRenderFailed, nil), nil)
		return
	}
	if !b.limiter.Allow(chatID) {
		slog.Info(config.MsgRateLimited,
			config.LogKeyComponent, config.CompBot,
			config.LogKeyChat, chatID,
		)
		b.reply(chatID, b.loc.T(config.TKeyMsgRateLimited, nil), nil)
		return
	}

	path := filepath.Join(b.renderDir, config.RenderFilePrefix+uuid.NewString()+config.RenderFileExt)
	defer func() { _ = os.Remove(path) }()

	caption, err := b.calendar.RenderMonth(ctx, m.Year, m.Month, path)
	if err != nil {
		slog.Error(config.ErrRender,
			config.LogKeyComponent, config.CompBot,
			config.LogKeyChat, chatID,
			config.LogKeyYear, m.Year,
			config.LogKeyMonth, m.Month,
			config.LogKeyError, err,
		)
		b.reply(chatID, b.loc.T(config.TKeyMsgRenderFailed, nil), nil)
		return
	}
	if caption == "" {
		caption = b.loc.T(config.TKeyMsgNoBirthdays, nil)
	}

	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FilePath(path))
	photo.ReplyMarkup = b.monthKeyboard(m)
	overflow := utf8.RuneCountInString(caption) > config.MaxCaptionLength
	if !overflow {
		photo.Caption = caption
	}
	b.send(photo)
	if overflow {
		b.send(tgbotapi.NewMessage(chatID, caption))
	}
}

func (b *Bot) handleSubscribe(chatID int64) {
	if b.feedURL == "" {
		b.reply(chatID, b.loc.T(config.TKeyMsgNoFeed, nil), nil)
		return
	}
	text := b.loc.T(config.TKeyMsgSubscribe, map[string]any{"URL": b.feedURL})

	png, err := qrcode.Encode(b.feedURL, qrcode.Medium, config.QRCodeSize)
	if err != nil {
		slog.Warn(config.ErrQRCode,
			config.LogKeyComponent, config.CompBot,
			config.LogKeyError, err,
		)
		b.send(tgbotapi.NewMessage(chatID, text))
		return
	}
	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileBytes{Name: config.QRCodeFileName, Bytes: png})
	photo.Caption = text
	b.send(photo)
}

func (b *Bot) handleExport(ctx context.Context, chatID int64) {
	if b.calendar == nil {
		b.reply(chatID, b.loc.T(config.TKeyMsgExportFailed, nil), nil)
		return
	}
	var buf bytes.Buffer
	if err := b.calendar.ExportVCards(ctx, &buf); err != nil {
		slog.Error(config.ErrVCardEncode,
			config.LogKeyComponent, config.CompBot,
			config.LogKeyChat, chatID,
			config.LogKeyError, err,
		)
		b.reply(chatID, b.loc.T(config.TKeyMsgExportFailed, nil), nil)
		return
	}
	b.send(tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{Name: config.ExportFileName, Bytes: buf.Bytes()}))
}
