// Package bot is the Telegram front end: registration, the profile
// conversation, calendar renders, feed subscription and the daily broadcast.
package bot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/tartampluch/go-birthday-bot/internal/config"
	"github.com/tartampluch/go-birthday-bot/internal/locale"
	"github.com/tartampluch/go-birthday-bot/internal/metrics"
	"github.com/tartampluch/go-birthday-bot/internal/store"
)

// API is the subset of *tgbotapi.BotAPI the bot uses.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetFileDirectURL(fileID string) (string, error)
	GetUpdatesChan(cfg tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Calendar is what the bot needs from the engine.
type Calendar interface {
	RenderMonth(ctx context.Context, year, month int, outPath string) (string, error)
	ExportVCards(ctx context.Context, w io.Writer) error
}

// Clock abstracts time.Now() to allow deterministic testing.
type Clock interface {
	Now() time.Time
}

// Options configures a Bot.
type Options struct {
	API      API
	Store    store.Store
	Calendar Calendar
	Localize *locale.Localizer
	Clock    Clock
	// RenderDir receives the temporary calendar images.
	RenderDir string
	// FeedURL is the public iCalendar address; empty disables /subscribe.
	FeedURL string
}

// Bot handles Telegram updates.
type Bot struct {
	api       API
	store     store.Store
	calendar  Calendar
	loc       *locale.Localizer
	clock     Clock
	renderDir string
	feedURL   string

	sessions *sessions
	limiter  *chatLimiter
}

// New validates opts and builds a Bot.
func New(opts Options) (*Bot, error) {
	if opts.API == nil {
		return nil, errors.New(config.ErrBotInit)
	}
	if opts.Store == nil {
		return nil, errors.New(config.ErrStoreRequired)
	}
	return &Bot{
		api:       opts.API,
		store:     opts.Store,
		calendar:  opts.Calendar,
		loc:       opts.Localize,
		clock:     opts.Clock,
		renderDir: opts.RenderDir,
		feedURL:   opts.FeedURL,
		sessions:  newSessions(),
		limiter:   newChatLimiter(config.RenderRateInterval, config.RenderRateBurst),
	}, nil
}

// NewAPI authorizes token against Telegram.
func NewAPI(token string, debug bool) (*tgbotapi.BotAPI, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", config.ErrBotInit, err)
	}
	api.Debug = debug
	slog.Info(config.MsgBotStarted,
		config.LogKeyComponent, config.CompBot,
		config.LogKeyName, api.Self.UserName,
	)
	return api, nil
}

// FileLinker adapts the Telegram file API to engine.FileLinker.
type FileLinker struct {
	API API
}

// FileURL returns the download URL of a Telegram file id.
func (f FileLinker) FileURL(fileID string) (string, error) {
	return f.API.GetFileDirectURL(fileID)
}

func (b *Bot) now() time.Time {
	if b.clock == nil {
		return time.Now()
	}
	return b.clock.Now()
}

// Run long-polls updates until ctx is cancelled. Updates are handled one at a
// time.
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = config.UpdateTimeoutSec
	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			slog.Info(config.MsgBotStopping, config.LogKeyComponent, config.CompBot)
			b.api.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.HandleUpdate(ctx, update)
		}
	}
}

// HandleUpdate dispatches one update.
func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.CallbackQuery != nil:
		metrics.BotUpdates.WithLabelValues(metrics.KindCallback).Inc()
		b.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil && update.Message.From != nil:
		metrics.BotUpdates.WithLabelValues(metrics.KindMessage).Inc()
		b.handleMessage(ctx, update.Message)
	default:
		metrics.BotUpdates.WithLabelValues(metrics.KindUnhandled).Inc()
		slog.Debug(config.MsgUpdateIgnored,
			config.LogKeyComponent, config.CompBot,
			config.LogKeyUpdate, update.UpdateID,
		)
	}
}

// send logs delivery failures; the conversation goes on regardless.
func (b *Bot) send(c tgbotapi.Chattable) {
	if _, err := b.api.Send(c); err != nil {
		slog.Warn(config.ErrBotSend,
			config.LogKeyComponent, config.CompBot,
			config.LogKeyError, err,
		)
	}
}

func (b *Bot) reply(chatID int64, text string, markup any) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	if markup != nil {
		msg.ReplyMarkup = markup
	}
	b.send(msg)
}

// Broadcast sends text to every stored member. Per-member failures are
// logged and counted, never returned.
func (b *Bot) Broadcast(ctx context.Context, text string) (sent, failed int, err error) {
	records, err := b.store.All(ctx)
	if err != nil {
		return 0, 0, err
	}
	for _, r := range records {
		if ctx.Err() != nil {
			return sent, failed, ctx.Err()
		}
		if _, err := b.api.Send(tgbotapi.NewMessage(r.UserID, text)); err != nil {
			failed++
			metrics.NotificationsSent.WithLabelValues(metrics.OutcomeError).Inc()
			slog.Warn(config.ErrBroadcast,
				config.LogKeyComponent, config.CompBot,
				config.LogKeyUser, r.UserID,
				config.LogKeyError, err,
			)
			continue
		}
		sent++
		metrics.NotificationsSent.WithLabelValues(metrics.OutcomeOK).Inc()
	}
	slog.Info(config.MsgBroadcastDone,
		config.LogKeyComponent, config.CompBot,
		config.LogKeySent, sent,
		config.LogKeyFailed, failed,
	)
	return sent, failed, nil
}
