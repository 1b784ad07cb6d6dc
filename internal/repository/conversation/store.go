// Package conversation implements the per-session message log. Appends
// are serialized per session; sessions never contend with each other.
package conversation

import (
	"sync"
	"time"

	"github.com/shopdex-io/shopdex/internal/domain"
)

// DefaultMaxLen bounds the number of turns kept per session.
const DefaultMaxLen = 20

// Store is an in-process, append-only conversation log with FIFO
// eviction that preserves system turns.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*session
	maxLen   int
}

type session struct {
	mu    sync.Mutex
	turns []domain.Turn
}

// New creates a conversation store. maxLen <= 0 uses DefaultMaxLen.
func New(maxLen int) *Store {
	if maxLen <= 0 {
		maxLen = DefaultMaxLen
	}
	return &Store{sessions: make(map[string]*session), maxLen: maxLen}
}

// Append adds a turn to the session log, stamping CreatedAt if unset,
// then trims to maxLen keeping system turns and the newest others.
func (s *Store) Append(sessionID string, turn domain.Turn) {
	sess := s.session(sessionID)

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now()
	}
	sess.turns = append(sess.turns, turn)

	if len(sess.turns) <= s.maxLen {
		return
	}

	var system, other []domain.Turn
	for _, t := range sess.turns {
		if t.Role == domain.RoleSystem {
			system = append(system, t)
		} else {
			other = append(other, t)
		}
	}
	keep := s.maxLen - len(system)
	if keep < 0 {
		keep = 0
	}
	if len(other) > keep {
		other = other[len(other)-keep:]
	}
	sess.turns = append(system, other...)
}

// Recent returns the last n turns of a session, oldest first.
func (s *Store) Recent(sessionID string, n int) []domain.Turn {
	sess := s.session(sessionID)

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if n <= 0 || len(sess.turns) == 0 {
		return nil
	}
	start := len(sess.turns) - n
	if start < 0 {
		start = 0
	}
	out := make([]domain.Turn, len(sess.turns)-start)
	copy(out, sess.turns[start:])
	return out
}

// Clear drops a session's history.
func (s *Store) Clear(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
}

func (s *Store) session(id string) *session {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		sess = &session{}
		s.sessions[id] = sess
	}
	return sess
}
