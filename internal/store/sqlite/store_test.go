package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tartampluch/go-birthday-bot/internal/store"
)

type stepClock struct {
	t time.Time
}

func (c *stepClock) now() time.Time {
	c.t = c.t.Add(time.Second)
	return c.t
}

func openTestStore(t *testing.T) (*Store, *stepClock) {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "data", "members.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	clock := &stepClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	s.now = clock.now
	return s, clock
}

func TestOpen_RequiresPath(t *testing.T) {
	_, err := Open("  ")
	require.Error(t, err)
}

func TestOpen_ReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "members.db")
	ctx := context.Background()

	s, err := Open(path)
	require.NoError(t, err)
	_, err = s.Create(ctx, 1, "alice")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	// Migrations are recorded and not re-applied.
	s, err = Open(path)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	rec, err := s.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "alice", store.Value(rec.Username))
}

func TestStore_CreateAndGet(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	rec, err := s.Create(ctx, 42, "bob")
	require.NoError(t, err)
	assert.Equal(t, int64(42), rec.UserID)
	assert.Equal(t, "bob", store.Value(rec.Username))
	assert.Nil(t, rec.Birthday)
	assert.Nil(t, rec.PhotoID)
	assert.False(t, rec.CreatedAt.IsZero())

	_, err = s.Create(ctx, 42, "bob")
	assert.ErrorIs(t, err, store.ErrAlreadyExists)

	_, err = s.Get(ctx, 7)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestStore_CreateWithoutUsername(t *testing.T) {
	s, _ := openTestStore(t)

	rec, err := s.Create(context.Background(), 3, "")
	require.NoError(t, err)
	assert.Nil(t, rec.Username)
}

func TestStore_UpsertTaggedFields(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()
	bday := time.Date(1990, 3, 14, 0, 0, 0, 0, time.UTC)

	_, err := s.Create(ctx, 1, "alice")
	require.NoError(t, err)

	rec, err := s.Upsert(ctx, 1, store.Update{
		DisplayName: store.Set("Alice"),
		Birthday:    store.Set(bday),
		PhotoID:     store.Set("file-1"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Alice", store.Value(rec.DisplayName))

	got, err := s.Get(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, got.Birthday)
	assert.True(t, bday.Equal(*got.Birthday))
	assert.Equal(t, "file-1", store.Value(got.PhotoID))
	assert.Equal(t, "alice", store.Value(got.Username), "kept field survives")

	_, err = s.Upsert(ctx, 1, store.Update{PhotoID: store.Clear[string](), Birthday: store.Clear[time.Time]()})
	require.NoError(t, err)

	got, err = s.Get(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, got.PhotoID)
	assert.Nil(t, got.Birthday)
	assert.Equal(t, "Alice", store.Value(got.DisplayName))
}

func TestStore_UpsertCreatesMissing(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	rec, err := s.Upsert(ctx, 9, store.Update{Username: store.Set("zed")})
	require.NoError(t, err)
	assert.Equal(t, "zed", store.Value(rec.Username))

	got, err := s.Get(ctx, 9)
	require.NoError(t, err)
	assert.Equal(t, rec.CreatedAt, got.CreatedAt)
}

func TestStore_AllInRegistrationOrder(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	for _, id := range []int64{30, 10, 20} {
		_, err := s.Create(ctx, id, "")
		require.NoError(t, err)
	}

	all, err := s.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []int64{30, 10, 20}, []int64{all[0].UserID, all[1].UserID, all[2].UserID})
}

func TestStore_MarkPhotoFetched(t *testing.T) {
	s, clock := openTestStore(t)
	ctx := context.Background()

	_, err := s.Upsert(ctx, 5, store.Update{PhotoID: store.Set("p")})
	require.NoError(t, err)

	rec, err := s.Get(ctx, 5)
	require.NoError(t, err)
	assert.True(t, rec.PhotoStale())

	require.NoError(t, s.MarkPhotoFetched(ctx, 5, clock.now()))
	rec, err = s.Get(ctx, 5)
	require.NoError(t, err)
	require.NotNil(t, rec.PhotoFetchedAt)
	assert.False(t, rec.PhotoStale())

	// A later profile change makes the copy stale again.
	_, err = s.Upsert(ctx, 5, store.Update{PhotoID: store.Set("q")})
	require.NoError(t, err)
	rec, err = s.Get(ctx, 5)
	require.NoError(t, err)
	assert.True(t, rec.PhotoStale())

	assert.ErrorIs(t, s.MarkPhotoFetched(ctx, 999, clock.now()), store.ErrNotFound)
}

func TestStore_CancelledContext(t *testing.T) {
	s, _ := openTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Get(ctx, 1)
	assert.ErrorIs(t, err, context.Canceled)
	_, err = s.All(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
