package agent

import (
	"sync"
	"time"
)

const (
	// DefaultSessionTTL evicts idle conversations.
	DefaultSessionTTL = 30 * time.Minute
	// maxTurnsPerSession bounds the history fed back into parse prompts.
	maxTurnsPerSession = 20
)

// Turn is one utterance in a conversation.
type Turn struct {
	Role    string    `json:"role"` // "user" or "assistant"
	Content string    `json:"content"`
	At      time.Time `json:"at"`
}

type session struct {
	turns   []Turn
	touched time.Time
}

// SessionStore keeps short-lived per-session transcripts in memory so
// follow-up commands can refer back to earlier answers.
type SessionStore struct {
	mu       sync.Mutex
	ttl      time.Duration
	sessions map[string]*session
	now      func() time.Time
}

func NewSessionStore(ttl time.Duration) *SessionStore {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionStore{
		ttl:      ttl,
		sessions: make(map[string]*session),
		now:      time.Now,
	}
}

// Get returns a copy of the session's transcript, empty for unknown or
// expired sessions.
func (s *SessionStore) Get(id string) []Turn {
	if id == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prune()

	sess, ok := s.sessions[id]
	if !ok {
		return nil
	}
	out := make([]Turn, len(sess.turns))
	copy(out, sess.turns)
	return out
}

// Append records turns on a session, creating it on first use. The
// transcript keeps only the most recent turns.
func (s *SessionStore) Append(id string, turns ...Turn) {
	if id == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prune()

	sess, ok := s.sessions[id]
	if !ok {
		sess = &session{}
		s.sessions[id] = sess
	}
	sess.turns = append(sess.turns, turns...)
	if n := len(sess.turns); n > maxTurnsPerSession {
		sess.turns = sess.turns[n-maxTurnsPerSession:]
	}
	sess.touched = s.now()
}

// Len reports the number of live sessions.
func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prune()
	return len(s.sessions)
}

// prune drops expired sessions. Callers hold the lock.
func (s *SessionStore) prune() {
	cutoff := s.now().Add(-s.ttl)
	for id, sess := range s.sessions {
		if sess.touched.Before(cutoff) {
			delete(s.sessions, id)
		}
	}
}
