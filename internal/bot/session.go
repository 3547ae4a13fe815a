package bot

import (
	"sync"

	"github.com/tartampluch/go-birthday-bot/internal/store"
)

// step is the position in the profile update conversation.
type step int

const (
	stepNone step = iota
	stepPhoto
	stepName
	stepBirthday
)

// profileDraft collects the answers of one conversation. Unset fields are kept.
type profileDraft struct {
	step    step
	photoID store.Field[string]
	name    store.Field[string]
}

// sessions tracks open conversations by user.
type sessions struct {
	mu     sync.Mutex
	drafts map[int64]*profileDraft
}

func newSessions() *sessions {
	return &sessions{drafts: make(map[int64]*profileDraft)}
}

func (s *sessions) begin(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.drafts[userID] = &profileDraft{step: stepPhoto}
}

// get returns a copy of the user's draft.
func (s *sessions) get(userID int64) (profileDraft, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.drafts[userID]
	if !ok {
		return profileDraft{}, false
	}
	return *d, true
}

func (s *sessions) update(userID int64, fn func(d *profileDraft)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d, ok := s.drafts[userID]; ok {
		fn(d)
	}
}

func (s *sessions) end(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.drafts, userID)
}
