package session

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/hupe1980/agentrouter/core"
)

// MemoryStore is a volatile store keeping sessions in a process local map.
// It is safe for concurrent access. Returned transcripts are copies.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string][]core.Message
}

// NewMemoryStore constructs an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string][]core.Message)}
}

// Create allocates a new random session identifier.
func (s *MemoryStore) Create(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	id := uuid.NewString()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[id] = nil

	return id, nil
}

// Exists reports whether id was created or has history.
func (s *MemoryStore) Exists(_ context.Context, id string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.sessions[id]
	return ok, nil
}

// Append adds messages to a session, creating it lazily.
func (s *MemoryStore) Append(_ context.Context, id string, msgs ...core.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[id] = append(s.sessions[id], msgs...)
	return nil
}

// Messages returns the transcript of id, empty for unknown sessions.
func (s *MemoryStore) Messages(_ context.Context, id string) ([]core.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]core.Message(nil), s.sessions[id]...), nil
}

// Len returns the number of known sessions.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
