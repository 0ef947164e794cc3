package server

import (
	"sync"

	"github.com/tordrt/metamind/internal/chat"
	"github.com/tordrt/metamind/internal/schema"
)

// entry serializes actions on one session.
type entry struct {
	mu          sync.Mutex
	session     *chat.Session
	diagnostics []schema.Diagnostic
}

// Store keeps sessions in memory for the lifetime of the process.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*entry
}

// NewStore creates an empty session store.
func NewStore() *Store {
	return &Store{sessions: make(map[string]*entry)}
}

// Create adds a new empty session.
func (s *Store) Create() *chat.Session {
	sess := chat.NewSession()
	s.mu.Lock()
	s.sessions[sess.ID] = &entry{session: sess}
	s.mu.Unlock()
	return sess
}

func (s *Store) get(id string) (*entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.sessions[id]
	return e, ok
}

// Delete removes a session and reports whether it existed.
func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return false
	}
	delete(s.sessions, id)
	return true
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
