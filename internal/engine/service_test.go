package engine_test

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tartampluch/go-birthday-bot/internal/calendar"
	"github.com/tartampluch/go-birthday-bot/internal/config"
	"github.com/tartampluch/go-birthday-bot/internal/engine"
	"github.com/tartampluch/go-birthday-bot/internal/store"
)

// stubPhotos maps users to fixed paths and records the resolution order.
type stubPhotos struct {
	paths map[int64]string
	seen  []int64
}

func (s *stubPhotos) ResolveLocalPath(_ context.Context, rec store.Record) string {
	s.seen = append(s.seen, rec.UserID)
	return s.paths[rec.UserID]
}

func newService(t *testing.T, now time.Time, records ...store.Record) (*engine.Service, *stubPhotos) {
	t.Helper()
	photos := &stubPhotos{paths: map[int64]string{}}
	return &engine.Service{
		Store:    newMemStore(records...),
		Photos:   photos,
		Renderer: calendar.NewRenderer(calendar.DefaultGeometry(), calendar.DefaultLabels()),
		Captions: engine.DefaultCaptionFormatter(),
		Clock:    MockClock{CurrentTime: now},
	}, photos
}

func TestService_RenderMonth(t *testing.T) {
	now := time.Date(2025, 2, 10, 9, 0, 0, 0, time.UTC)
	svc, photos := newService(t, now,
		store.Record{UserID: 1, DisplayName: ptr("Anna"), Username: ptr("anna"), Birthday: date(2003, 2, 14), PhotoID: ptr("a")},
		store.Record{UserID: 2, DisplayName: ptr("Oleg"), Username: ptr("oleg"), Birthday: date(2004, 7, 1)},
		store.Record{UserID: 3, DisplayName: ptr("Ivan"), Username: ptr("ivan"), Birthday: date(2002, 2, 14)},
	)
	dir := t.TempDir()
	red := filepath.Join(dir, "red.png")
	blue := filepath.Join(dir, "blue.png")
	require.NoError(t, imaging.Save(imaging.New(10, 10, color.NRGBA{R: 255, A: 255}), red))
	require.NoError(t, imaging.Save(imaging.New(10, 10, color.NRGBA{B: 255, A: 255}), blue))
	photos.paths[1] = red
	photos.paths[3] = blue

	out := filepath.Join(dir, "out", "feb.png")
	caption, err := svc.RenderMonth(context.Background(), 2025, 2, out)
	require.NoError(t, err)

	assert.Equal(t,
		"14.2.2003: Anna - @anna (исполняется 22)\n14.2.2002: Ivan - @ivan (исполняется 23)\n",
		caption)
	assert.Equal(t, []int64{1, 3}, photos.seen, "only members born in the month are resolved, in store order")

	img, err := imaging.Open(out)
	require.NoError(t, err)
	plan, err := calendar.ComputeGrid(calendar.MonthSpec{Year: 2025, Month: 2}, calendar.DefaultGeometry(), calendar.DefaultLabels())
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, plan.CanvasWidth, plan.CanvasHeight), img.Bounds())

	// Day 14 is split: first member left, second member right.
	week, col, ok := plan.CellOf(14)
	require.True(t, ok)
	origin := plan.CellOrigin(week, col)
	assertColor(t, img, origin.X+10, origin.Y+60, color.NRGBA{R: 255, A: 255})
	assertColor(t, img, origin.X+110, origin.Y+60, color.NRGBA{B: 255, A: 255})
}

func assertColor(t *testing.T, img image.Image, x, y int, want color.NRGBA) {
	t.Helper()
	got := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
	assert.Equalf(t, want, got, "pixel (%d,%d)", x, y)
}

func TestService_RenderMonth_InvalidMonth(t *testing.T) {
	svc, _ := newService(t, time.Now())
	_, err := svc.RenderMonth(context.Background(), 2025, 13, filepath.Join(t.TempDir(), "x.png"))
	assert.ErrorIs(t, err, calendar.ErrInvalidMonth)
}

func TestService_RenderMonthPNG(t *testing.T) {
	svc, _ := newService(t, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		store.Record{UserID: 1, Birthday: date(2000, 6, 3)},
	)

	png, caption, err := svc.RenderMonthPNG(context.Background(), 2025, 6)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, []byte("\x89PNG")))
	assert.Equal(t, "3.6.2000: Не указано - @unknown (исполняется 25)\n", caption)
}

func TestService_TodaysNotification(t *testing.T) {
	now := time.Date(2025, 3, 8, 9, 0, 0, 0, time.UTC)
	svc, _ := newService(t, now, store.Record{UserID: 1, Username: ptr("anna"), Birthday: date(2001, 3, 8)})

	text, ok, err := svc.TodaysNotification(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Contains(t, text, "@anna исполняется 25")

	svc.Clock = MockClock{CurrentTime: now.AddDate(0, 0, 1)}
	_, ok, err = svc.TodaysNotification(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestService_RequiresStore(t *testing.T) {
	svc := &engine.Service{}
	_, _, err := svc.TodaysNotification(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), config.ErrStoreRequired)

	_, err = svc.ImportVCards(context.Background(), strings.NewReader(""))
	require.Error(t, err)
}

func TestService_FeedAndRoster(t *testing.T) {
	svc, _ := newService(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		store.Record{UserID: 1, DisplayName: ptr("Anna"), Username: ptr("anna"), Birthday: date(2003, 2, 14), PhotoID: ptr("keep-me")},
	)
	ctx := context.Background()

	feed, err := svc.Feed(ctx)
	require.NoError(t, err)
	assert.Contains(t, string(feed), "SUMMARY:День рождения: Anna")

	var buf bytes.Buffer
	require.NoError(t, svc.ExportVCards(ctx, &buf))

	// Import into a fresh roster that already knows user 1 with a photo.
	target, _ := newService(t, time.Now(), store.Record{UserID: 1, PhotoID: ptr("keep-me")})
	n, err := target.ImportVCards(ctx, &buf)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	rec, err := target.Store.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Anna", store.Value(rec.DisplayName))
	assert.Equal(t, "keep-me", store.Value(rec.PhotoID))
	require.NotNil(t, rec.Birthday)
	assert.Equal(t, time.Date(2003, 2, 14, 0, 0, 0, 0, time.UTC), *rec.Birthday)
}
