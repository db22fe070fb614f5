package server

import (
	"sync"

	"github.com/sells-group/bidscout/internal/search"
)

const defaultMaxSessions = 256

// Sessions holds recent search sessions by search id so results can be
// revealed and re-rendered. The oldest session is dropped once max is
// reached.
type Sessions struct {
	mu    sync.Mutex
	max   int
	order []string
	byID  map[string]*search.Session
}

// NewSessions creates a registry holding at most n sessions.
func NewSessions(n int) *Sessions {
	if n <= 0 {
		n = defaultMaxSessions
	}
	return &Sessions{max: n, byID: make(map[string]*search.Session)}
}

// Put stores a session, replacing any with the same id.
func (s *Sessions) Put(sess *search.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[sess.ID]; !ok {
		s.order = append(s.order, sess.ID)
	}
	s.byID[sess.ID] = sess
	for len(s.order) > s.max {
		delete(s.byID, s.order[0])
		s.order = s.order[1:]
	}
}

// Get returns the session for id.
func (s *Sessions) Get(id string) (*search.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.byID[id]
	return sess, ok
}

// Len returns the number of sessions held.
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byID)
}
