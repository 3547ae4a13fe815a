package bot

import (
	"sync"
	"time"

	"github.com/tartampluch/go-birthday-bot/internal/config"
	"golang.org/x/time/rate"
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// chatLimiter throttles calendar renders per chat.
type chatLimiter struct {
	mu       sync.Mutex
	visitors map[int64]*visitor
	every    rate.Limit
	burst    int
	now      func() time.Time
}

func newChatLimiter(interval time.Duration, burst int) *chatLimiter {
	return &chatLimiter{
		visitors: make(map[int64]*visitor),
		every:    rate.Every(interval),
		burst:    burst,
		now:      time.Now,
	}
}

// Allow reports whether chatID may render now. Idle entries are pruned.
func (l *chatLimiter) Allow(chatID int64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for id, v := range l.visitors {
		if now.Sub(v.lastSeen) > config.LimiterIdleTTL {
			delete(l.visitors, id)
		}
	}

	v, ok := l.visitors[chatID]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.every, l.burst)}
		l.visitors[chatID] = v
	}
	v.lastSeen = now
	return v.limiter.AllowN(now, 1)
}
