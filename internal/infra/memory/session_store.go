package memory

import (
	"sync"
	"time"

	"quiz-attempt-engine/internal/session"
	"github.com/google/uuid"
)

// SessionStore keeps exactly one live attempt per quiz slug. A subsequent
// load for the same slug gets the existing session back, never a silent
// second attempt.
type SessionStore struct {
	threshold float64
	now       func() time.Time

	mu       sync.RWMutex
	sessions map[string]*session.Session
}

func NewSessionStore(threshold float64) *SessionStore {
	return NewSessionStoreWithClock(threshold, time.Now)
}

// NewSessionStoreWithClock is test-only for deterministic timestamps.
func NewSessionStoreWithClock(threshold float64, now func() time.Time) *SessionStore {
	return &SessionStore{
		threshold: threshold,
		now:       now,
		sessions:  make(map[string]*session.Session),
	}
}

func (s *SessionStore) GetOrCreate(slug string) *session.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[slug]; ok {
		return sess
	}
	sess := session.NewWithOptions(uuid.NewString(), s.threshold, s.now)
	s.sessions[slug] = sess
	return sess
}

func (s *SessionStore) Get(slug string) (*session.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[slug]
	return sess, ok
}

func (s *SessionStore) Delete(slug string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, slug)
}
