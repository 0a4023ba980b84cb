package session

import (
	"context"
	"sync"
)

// Store remembers the connector a session last connected with. The redis
// backed cache.LastWalletStore is the production implementation.
type Store interface {
	Load(ctx context.Context, session string) (string, error)
	Save(ctx context.Context, session, connectorID string) error
	Clear(ctx context.Context, session string) error
}

// MemoryStore is a process local Store.
type MemoryStore struct {
	mu sync.Mutex
	m  map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{m: make(map[string]string)}
}

func (s *MemoryStore) Load(_ context.Context, session string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.m[session], nil
}

func (s *MemoryStore) Save(_ context.Context, session, connectorID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[session] = connectorID
	return nil
}

func (s *MemoryStore) Clear(_ context.Context, session string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, session)
	return nil
}
