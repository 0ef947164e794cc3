// Package chat answers follow-up questions about a documented schema, keeping a
// bounded transcript per session.
package chat

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tordrt/metamind/internal/docs"
	"github.com/tordrt/metamind/internal/schema"
)

// Role identifies who produced a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one message of the transcript.
type Turn struct {
	Role Role      `json:"role"`
	Text string    `json:"text"`
	Time time.Time `json:"time"`
}

// Session holds one schema, its documentation and the conversation about it.
// Loading new input replaces all three.
type Session struct {
	ID        string
	CreatedAt time.Time

	mu     sync.RWMutex
	schema *schema.Schema
	docs   []docs.Record
	turns  []Turn
}

// NewSession creates an empty session with a random ID.
func NewSession() *Session {
	return &Session{ID: uuid.NewString(), CreatedAt: time.Now().UTC()}
}

// Load replaces the session's schema and documentation and clears the transcript.
func (s *Session) Load(sch *schema.Schema, records []docs.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.schema = sch
	s.docs = records
	s.turns = nil
}

// SetDocs replaces the documentation records and clears the transcript.
func (s *Session) SetDocs(records []docs.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs = records
	s.turns = nil
}

// Schema returns the loaded schema, or nil before any input was loaded.
func (s *Session) Schema() *schema.Schema {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.schema
}

// Docs returns the documentation records.
func (s *Session) Docs() []docs.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.docs
}

// Turns returns a copy of the transcript, oldest first.
func (s *Session) Turns() []Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Turn, len(s.turns))
	copy(out, s.turns)
	return out
}

func (s *Session) appendTurns(turns ...Turn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = append(s.turns, turns...)
}
