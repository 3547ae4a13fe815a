package bot

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tartampluch/go-birthday-bot/internal/config"
	"github.com/tartampluch/go-birthday-bot/internal/locale"
	"github.com/tartampluch/go-birthday-bot/internal/store"
	"github.com/tartampluch/go-birthday-bot/internal/store/sqlite"
)

// -----------------------------------------------------------------------------
// Fakes
// -----------------------------------------------------------------------------

type fakeAPI struct {
	mu       sync.Mutex
	sent     []tgbotapi.Chattable
	requests []tgbotapi.Chattable
	failFor  map[int64]bool
	updates  chan tgbotapi.Update
	stopped  bool
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{failFor: map[int64]bool{}, updates: make(chan tgbotapi.Update, 8)}
}

func chatOf(c tgbotapi.Chattable) int64 {
	switch v := c.(type) {
	case tgbotapi.MessageConfig:
		return v.ChatID
	case tgbotapi.PhotoConfig:
		return v.ChatID
	case tgbotapi.DocumentConfig:
		return v.ChatID
	}
	return 0
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failFor[chatOf(c)] {
		return tgbotapi.Message{}, errors.New("Forbidden: bot was blocked by the user")
	}
	f.sent = append(f.sent, c)
	return tgbotapi.Message{}, nil
}

func (f *fakeAPI) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeAPI) GetFileDirectURL(fileID string) (string, error) {
	return "https://api.telegram.org/file/botTOKEN/" + fileID, nil
}

func (f *fakeAPI) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return f.updates
}

func (f *fakeAPI) StopReceivingUpdates() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
}

func (f *fakeAPI) last() tgbotapi.Chattable {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		return nil
	}
	return f.sent[len(f.sent)-1]
}

func (f *fakeAPI) lastText(t *testing.T) string {
	t.Helper()
	msg, ok := f.last().(tgbotapi.MessageConfig)
	require.True(t, ok, "last sent item is %T", f.last())
	return msg.Text
}

type fakeCalendar struct {
	caption string
	err     error
	paths   []string
	months  [][2]int
}

func (c *fakeCalendar) RenderMonth(_ context.Context, year, month int, outPath string) (string, error) {
	c.paths = append(c.paths, outPath)
	c.months = append(c.months, [2]int{year, month})
	if c.err != nil {
		return "", c.err
	}
	return c.caption, os.WriteFile(outPath, []byte("png"), 0o600)
}

func (c *fakeCalendar) ExportVCards(_ context.Context, w io.Writer) error {
	if c.err != nil {
		return c.err
	}
	_, err := io.WriteString(w, "BEGIN:VCARD\r\nEND:VCARD\r\n")
	return err
}

type fixedClock time.Time

func (c fixedClock) Now() time.Time { return time.Time(c) }

type harness struct {
	bot   *Bot
	api   *fakeAPI
	cal   *fakeCalendar
	store store.Store
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	st, err := sqlite.Open(filepath.Join(t.TempDir(), "bot.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	api := newFakeAPI()
	cal := &fakeCalendar{caption: "14.2.2003: Anna - @anna (исполняется 22)\n"}
	b, err := New(Options{
		API:       api,
		Store:     st,
		Calendar:  cal,
		Localize:  locale.NewBundle().Localizer("ru"),
		Clock:     fixedClock(time.Date(2025, 2, 10, 12, 0, 0, 0, time.UTC)),
		RenderDir: t.TempDir(),
		FeedURL:   "https://bot.example/birthdays.ics",
	})
	require.NoError(t, err)
	return &harness{bot: b, api: api, cal: cal, store: st}
}

func textMessage(userID int64, username, text string) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{
		From: &tgbotapi.User{ID: userID, UserName: username},
		Chat: &tgbotapi.Chat{ID: userID},
		Text: text,
	}}
}

func command(userID int64, username, cmd string) tgbotapi.Update {
	u := textMessage(userID, username, "/"+cmd)
	u.Message.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(cmd) + 1}}
	return u
}

// -----------------------------------------------------------------------------
// Test Cases
// -----------------------------------------------------------------------------

func TestNew_Validation(t *testing.T) {
	_, err := New(Options{})
	require.Error(t, err)
	_, err = New(Options{API: newFakeAPI()})
	require.Error(t, err)
}

func TestStart_RegistersOnce(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.bot.HandleUpdate(ctx, command(1, "anna", config.CmdStart))
	h.bot.HandleUpdate(ctx, command(1, "anna", config.CmdStart))

	all, err := h.store.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "anna", store.Value(all[0].Username))

	msg := h.api.last().(tgbotapi.MessageConfig)
	assert.Contains(t, msg.Text, "Бот-календарь")
	assert.IsType(t, tgbotapi.ReplyKeyboardMarkup{}, msg.ReplyMarkup)
}

func TestProfileConversation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.bot.HandleUpdate(ctx, command(5, "ivan_p", config.CmdStart))

	h.bot.HandleUpdate(ctx, textMessage(5, "ivan_p", "Обновить свою информацию"))
	assert.Equal(t, "Отправьте вашу фотографию", h.api.lastText(t))

	// Text instead of a photo is rejected and the step repeats.
	h.bot.HandleUpdate(ctx, textMessage(5, "ivan_p", "hello"))
	assert.Contains(t, h.api.lastText(t), "Вы отправили не фотографию")

	photo := textMessage(5, "ivan_p", "")
	photo.Message.Photo = []tgbotapi.PhotoSize{{FileID: "small"}, {FileID: "large"}}
	h.bot.HandleUpdate(ctx, photo)
	assert.Equal(t, "Укажите своё имя", h.api.lastText(t))

	h.bot.HandleUpdate(ctx, textMessage(5, "ivan_p", "Иван"))
	assert.Contains(t, h.api.lastText(t), "DD.MM.YYYY")

	h.bot.HandleUpdate(ctx, textMessage(5, "ivan_p", "31.02.2001"))
	assert.Contains(t, h.api.lastText(t), "Некорректная дата")

	h.bot.HandleUpdate(ctx, textMessage(5, "ivan_p", "14.02.2001"))
	assert.Equal(t, "Вся информация добавлена в ваш профиль.", h.api.lastText(t))

	rec, err := h.store.Get(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, "large", store.Value(rec.PhotoID))
	assert.Equal(t, "Иван", store.Value(rec.DisplayName))
	require.NotNil(t, rec.Birthday)
	assert.Equal(t, time.Date(2001, 2, 14, 0, 0, 0, 0, time.UTC), *rec.Birthday)

	_, open := h.bot.sessions.get(5)
	assert.False(t, open)
}

func TestProfileConversation_SkipKeepsExisting(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	bday := time.Date(1999, 9, 9, 0, 0, 0, 0, time.UTC)
	_, err := h.store.Upsert(ctx, 6, store.Update{
		DisplayName: store.Set("Old"),
		PhotoID:     store.Set("old-photo"),
		Birthday:    store.Set(bday),
	})
	require.NoError(t, err)

	for _, text := range []string{"Обновить свою информацию", "Не указывать", "Не указывать", "Не указывать"} {
		h.bot.HandleUpdate(ctx, textMessage(6, "", text))
	}
	assert.Equal(t, "Вся информация добавлена в ваш профиль.", h.api.lastText(t))

	rec, err := h.store.Get(ctx, 6)
	require.NoError(t, err)
	assert.Equal(t, "Old", store.Value(rec.DisplayName))
	assert.Equal(t, "old-photo", store.Value(rec.PhotoID))
	require.NotNil(t, rec.Birthday)
	assert.True(t, bday.Equal(*rec.Birthday))
}

func TestProfile(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.bot.HandleUpdate(ctx, textMessage(9, "x", "Профиль"))
	assert.Contains(t, h.api.lastText(t), "/start")

	_, err := h.store.Upsert(ctx, 9, store.Update{Username: store.Set("some_user")})
	require.NoError(t, err)
	h.bot.HandleUpdate(ctx, textMessage(9, "some_user", "Профиль"))
	text := h.api.lastText(t)
	assert.Contains(t, text, `@some\_user`)
	assert.Contains(t, text, "_Фотография:_ Не указано")

	_, err = h.store.Upsert(ctx, 9, store.Update{PhotoID: store.Set("pic")})
	require.NoError(t, err)
	h.bot.HandleUpdate(ctx, command(9, "some_user", config.CmdProfile))
	photo, ok := h.api.last().(tgbotapi.PhotoConfig)
	require.True(t, ok)
	assert.Equal(t, tgbotapi.FileID("pic"), photo.File)
}

func TestCalendar_SendsPhotoAndCleansUp(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.bot.HandleUpdate(ctx, textMessage(1, "a", "Посмотреть Календарь"))

	require.Len(t, h.cal.months, 1)
	assert.Equal(t, [2]int{2025, 2}, h.cal.months[0])
	photo, ok := h.api.last().(tgbotapi.PhotoConfig)
	require.True(t, ok)
	assert.Equal(t, h.cal.caption, photo.Caption)

	markup, ok := photo.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	require.True(t, ok)
	require.Len(t, markup.InlineKeyboard[0], 2)
	assert.Equal(t, "cal:2025:1", *markup.InlineKeyboard[0][0].CallbackData)
	assert.Equal(t, "cal:2025:3", *markup.InlineKeyboard[0][1].CallbackData)

	_, err := os.Stat(h.cal.paths[0])
	assert.True(t, os.IsNotExist(err), "render file removed after send")
}

func TestCalendar_UniquePaths(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.bot.HandleUpdate(ctx, command(1, "a", config.CmdCalendar))
	h.bot.HandleUpdate(ctx, command(2, "b", config.CmdCalendar))
	require.Len(t, h.cal.paths, 2)
	assert.NotEqual(t, h.cal.paths[0], h.cal.paths[1])
	assert.True(t, strings.HasPrefix(filepath.Base(h.cal.paths[0]), config.RenderFilePrefix))
}

func TestCalendar_Callback(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.bot.HandleUpdate(ctx, tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb1",
		From:    &tgbotapi.User{ID: 3},
		Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 300}},
		Data:    "cal:2024:12",
	}})

	require.Len(t, h.api.requests, 1, "callback acknowledged")
	require.Len(t, h.cal.months, 1)
	assert.Equal(t, [2]int{2024, 12}, h.cal.months[0])
	assert.Equal(t, int64(300), h.api.last().(tgbotapi.PhotoConfig).ChatID)

	h.bot.HandleUpdate(ctx, tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID: "cb2", From: &tgbotapi.User{ID: 3}, Data: "cal:2024:13",
	}})
	assert.Len(t, h.cal.months, 1, "invalid month is ignored")
}

func TestCalendar_EmptyCaptionAndOverflow(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.cal.caption = ""
	h.bot.HandleUpdate(ctx, command(1, "a", config.CmdCalendar))
	assert.Equal(t, "В этом месяце дней рождения нет", h.api.last().(tgbotapi.PhotoConfig).Caption)

	h.cal.caption = strings.Repeat("x", config.MaxCaptionLength+1)
	h.bot.HandleUpdate(ctx, command(2, "b", config.CmdCalendar))
	assert.Equal(t, h.cal.caption, h.api.lastText(t))
}

func TestCalendar_RenderFailure(t *testing.T) {
	h := newHarness(t)
	h.cal.err = errors.New("boom")

	h.bot.HandleUpdate(context.Background(), command(1, "a", config.CmdCalendar))
	assert.Contains(t, h.api.lastText(t), "Не удалось построить календарь")
}

func TestCalendar_RateLimited(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	for i := 0; i < config.RenderRateBurst; i++ {
		h.bot.HandleUpdate(ctx, command(1, "a", config.CmdCalendar))
	}
	h.bot.HandleUpdate(ctx, command(1, "a", config.CmdCalendar))

	assert.Len(t, h.cal.months, config.RenderRateBurst)
	assert.Contains(t, h.api.lastText(t), "Слишком много запросов")

	// Other chats are unaffected.
	h.bot.HandleUpdate(ctx, command(2, "b", config.CmdCalendar))
	assert.Len(t, h.cal.months, config.RenderRateBurst+1)
}

func TestSubscribe(t *testing.T) {
	h := newHarness(t)
	h.bot.HandleUpdate(context.Background(), command(1, "a", config.CmdSubscribe))

	photo, ok := h.api.last().(tgbotapi.PhotoConfig)
	require.True(t, ok)
	assert.Contains(t, photo.Caption, "https://bot.example/birthdays.ics")
	file, ok := photo.File.(tgbotapi.FileBytes)
	require.True(t, ok)
	assert.True(t, bytes.HasPrefix(file.Bytes, []byte("\x89PNG")))

	h.bot.feedURL = ""
	h.bot.HandleUpdate(context.Background(), command(1, "a", config.CmdSubscribe))
	assert.Equal(t, "Публичный адрес календаря не настроен", h.api.lastText(t))
}

func TestExport(t *testing.T) {
	h := newHarness(t)
	h.bot.HandleUpdate(context.Background(), command(1, "a", config.CmdExport))

	doc, ok := h.api.last().(tgbotapi.DocumentConfig)
	require.True(t, ok)
	file := doc.File.(tgbotapi.FileBytes)
	assert.Equal(t, config.ExportFileName, file.Name)
	assert.Contains(t, string(file.Bytes), "BEGIN:VCARD")
}

func TestBroadcast_SkipsFailures(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	for _, id := range []int64{1, 2, 3} {
		_, err := h.store.Create(ctx, id, "")
		require.NoError(t, err)
	}
	h.api.failFor[2] = true

	sent, failed, err := h.bot.Broadcast(ctx, "🎉")
	require.NoError(t, err)
	assert.Equal(t, 2, sent)
	assert.Equal(t, 1, failed)
	assert.Equal(t, int64(3), h.api.last().(tgbotapi.MessageConfig).ChatID)
}

func TestRun_StopsOnCancel(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- h.bot.Run(ctx) }()

	h.api.updates <- command(1, "a", config.CmdStart)
	require.Eventually(t, func() bool {
		_, err := h.store.Get(context.Background(), 1)
		return err == nil
	}, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return")
	}
	assert.True(t, h.api.stopped)
}

func TestFileLinker(t *testing.T) {
	url, err := FileLinker{API: newFakeAPI()}.FileURL("abc")
	require.NoError(t, err)
	assert.Equal(t, "https://api.telegram.org/file/botTOKEN/abc", url)
}
