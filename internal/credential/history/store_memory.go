package history

import (
	"context"
	"sync"

	id "registra/pkg/domain"
)

// InMemoryStore keeps per-user history in a map guarded by a RWMutex.
// Entries are held newest-first; the cap is enforced inside the same
// critical section as the insert so it can never be observed exceeded.
type InMemoryStore struct {
	mu      sync.RWMutex
	entries map[id.UserID][]Entry
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{entries: make(map[id.UserID][]Entry)}
}

func (s *InMemoryStore) Recent(_ context.Context, userID id.UserID) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Entry{}, s.entries[userID]...), nil
}

func (s *InMemoryStore) Append(_ context.Context, userID id.UserID, entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := append([]Entry{entry}, s.entries[userID]...)
	if len(current) > Cap {
		current = current[:Cap]
	}
	s.entries[userID] = current
	return nil
}

func (s *InMemoryStore) Clear(_ context.Context, userID id.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, userID)
	return nil
}
