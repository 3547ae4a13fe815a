package scheduler_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tartampluch/go-birthday-bot/internal/config"
	"github.com/tartampluch/go-birthday-bot/internal/scheduler"
)

// -----------------------------------------------------------------------------
// Mocks
// -----------------------------------------------------------------------------

type MockNotifier struct{ mock.Mock }

func (m *MockNotifier) TodaysNotification(ctx context.Context) (string, bool, error) {
	args := m.Called(ctx)
	return args.String(0), args.Bool(1), args.Error(2)
}

type MockBroadcaster struct{ mock.Mock }

func (m *MockBroadcaster) Broadcast(ctx context.Context, text string) (int, int, error) {
	args := m.Called(ctx, text)
	return args.Int(0), args.Int(1), args.Error(2)
}

type MockFeed struct{ mock.Mock }

func (m *MockFeed) Feed(ctx context.Context) ([]byte, error) {
	args := m.Called(ctx)
	data, _ := args.Get(0).([]byte)
	return data, args.Error(1)
}

type recordingSink struct {
	mu      sync.Mutex
	updates [][]byte
}

func (s *recordingSink) Update(data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates = append(s.updates, data)
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.updates)
}

// -----------------------------------------------------------------------------
// Test Cases
// -----------------------------------------------------------------------------

func TestNew_ValidatesSpecs(t *testing.T) {
	_, err := scheduler.New(scheduler.Options{})
	require.NoError(t, err, "defaults are valid")

	_, err = scheduler.New(scheduler.Options{NotifyCron: "every morning"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), config.ErrSchedule)

	_, err = scheduler.New(scheduler.Options{RefreshCron: "@every 5m"})
	require.NoError(t, err)
}

func TestNotify_Broadcasts(t *testing.T) {
	n, b := new(MockNotifier), new(MockBroadcaster)
	n.On("TodaysNotification", mock.Anything).Return("🎉 @anna", true, nil)
	b.On("Broadcast", mock.Anything, "🎉 @anna").Return(3, 1, nil)

	s, err := scheduler.New(scheduler.Options{Notifier: n, Broadcaster: b})
	require.NoError(t, err)
	require.NoError(t, s.Notify(context.Background()))

	n.AssertExpectations(t)
	b.AssertExpectations(t)
}

func TestNotify_NobodyToday(t *testing.T) {
	n, b := new(MockNotifier), new(MockBroadcaster)
	n.On("TodaysNotification", mock.Anything).Return("", false, nil)

	s, err := scheduler.New(scheduler.Options{Notifier: n, Broadcaster: b})
	require.NoError(t, err)
	require.NoError(t, s.Notify(context.Background()))

	b.AssertNotCalled(t, "Broadcast", mock.Anything, mock.Anything)
}

func TestNotify_Errors(t *testing.T) {
	n, b := new(MockNotifier), new(MockBroadcaster)
	n.On("TodaysNotification", mock.Anything).Return("", false, errors.New("db down")).Once()

	s, err := scheduler.New(scheduler.Options{Notifier: n, Broadcaster: b})
	require.NoError(t, err)
	assert.EqualError(t, s.Notify(context.Background()), "db down")

	n.On("TodaysNotification", mock.Anything).Return("text", true, nil)
	b.On("Broadcast", mock.Anything, "text").Return(0, 0, context.Canceled)
	assert.ErrorIs(t, s.Notify(context.Background()), context.Canceled)
}

func TestRefreshFeed(t *testing.T) {
	feed, sink := new(MockFeed), &recordingSink{}
	feed.On("Feed", mock.Anything).Return([]byte("BEGIN:VCALENDAR"), nil).Once()
	feed.On("Feed", mock.Anything).Return(nil, errors.New("boom"))

	s, err := scheduler.New(scheduler.Options{Feed: feed, Sink: sink})
	require.NoError(t, err)

	require.NoError(t, s.RefreshFeed(context.Background()))
	assert.Equal(t, 1, sink.count())

	err = s.RefreshFeed(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), config.ErrFeedRefresh)
	assert.Equal(t, 1, sink.count(), "failed refresh keeps the previous feed")
}

func TestRefreshFeed_NotConfigured(t *testing.T) {
	s, err := scheduler.New(scheduler.Options{})
	require.NoError(t, err)
	assert.NoError(t, s.RefreshFeed(context.Background()))
	assert.NoError(t, s.Notify(context.Background()))
}

func TestRun_RefreshesOnStartAndStops(t *testing.T) {
	feed, sink := new(MockFeed), &recordingSink{}
	feed.On("Feed", mock.Anything).Return([]byte("BEGIN:VCALENDAR"), nil)

	loc, err := time.LoadLocation("Europe/Moscow")
	require.NoError(t, err)
	s, err := scheduler.New(scheduler.Options{Location: loc, Feed: feed, Sink: sink})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool { return sink.count() == 1 }, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}
