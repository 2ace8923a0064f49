package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/hupe1980/agentrouter/core"
)

// CountingStore is an in-memory core.ConversationStore and core.HistoryStore
// that counts calls and hands out sequential identifiers (session-1, ...).
type CountingStore struct {
	mu       sync.Mutex
	sessions map[string][]core.Message
	creates  int
	exists   int
	err      error
}

// NewCountingStore creates an empty store.
func NewCountingStore(known ...string) *CountingStore {
	s := &CountingStore{sessions: make(map[string][]core.Message)}
	for _, id := range known {
		s.sessions[id] = nil
	}
	return s
}

// FailWith makes every subsequent call fail with err.
func (s *CountingStore) FailWith(err error) *CountingStore {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
	return s
}

// Create implements core.ConversationStore.
func (s *CountingStore) Create(_ context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.creates++
	if s.err != nil {
		return "", s.err
	}
	id := fmt.Sprintf("session-%d", s.creates)
	s.sessions[id] = nil
	return id, nil
}

// Exists implements core.ConversationStore.
func (s *CountingStore) Exists(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.exists++
	if s.err != nil {
		return false, s.err
	}
	_, ok := s.sessions[id]
	return ok, nil
}

// Append implements core.HistoryStore. Unknown sessions are created lazily.
func (s *CountingStore) Append(_ context.Context, id string, msgs ...core.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		return s.err
	}
	s.sessions[id] = append(s.sessions[id], msgs...)
	return nil
}

// Messages implements core.HistoryStore.
func (s *CountingStore) Messages(_ context.Context, id string) ([]core.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		return nil, s.err
	}
	return append([]core.Message(nil), s.sessions[id]...), nil
}

// Creates returns the number of Create calls.
func (s *CountingStore) Creates() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.creates
}

// ExistsCalls returns the number of Exists calls.
func (s *CountingStore) ExistsCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exists
}
