package repository

import (
	"context"
	"sync"
)

// MemoryDocumentStore keeps documents in process memory. It is safe for
// concurrent use and is intended for tests and local development.
type MemoryDocumentStore struct {
	mu     sync.RWMutex
	docs   map[string][]byte
	writes int
}

// NewMemoryDocumentStore creates an empty store.
func NewMemoryDocumentStore() *MemoryDocumentStore {
	return &MemoryDocumentStore{docs: make(map[string][]byte)}
}

func (s *MemoryDocumentStore) Load(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	body, ok := s.docs[key]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), body...), nil
}

func (s *MemoryDocumentStore) Save(_ context.Context, key string, body []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[key] = append([]byte(nil), body...)
	s.writes++
	return nil
}

// Writes returns how many times Save has been called.
func (s *MemoryDocumentStore) Writes() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.writes
}
