package service

import (
	"sync"

	"github.com/google/uuid"

	"cerebro/internal/llm"
)

// maxHistoryMessages bounds how much conversation history a session keeps.
// Older messages are dropped first so the prompt stays within model limits.
const maxHistoryMessages = 20

// SessionStore keeps per-session conversation history in memory.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string][]llm.Message
}

func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[string][]llm.Message)}
}

// Create allocates a new session and returns its identifier.
func (s *SessionStore) Create() string {
	id := uuid.New().String()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[id] = nil
	return id
}

// History returns a copy of the messages recorded for the session.
// Unknown sessions yield an empty history.
func (s *SessionStore) History(sessionID string) []llm.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	history := s.sessions[sessionID]
	out := make([]llm.Message, len(history))
	copy(out, history)
	return out
}

// Append records a question and its answer on the session, trimming the
// oldest messages when the history grows past the cap.
func (s *SessionStore) Append(sessionID, question, answer string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	history := append(s.sessions[sessionID],
		llm.Message{Role: "user", Content: question},
		llm.Message{Role: "assistant", Content: answer},
	)
	if len(history) > maxHistoryMessages {
		history = history[len(history)-maxHistoryMessages:]
	}
	s.sessions[sessionID] = history
}
