package state

import (
	"context"
	"sync"
)

// MemoryStore keeps processor state in process memory. State does not survive
// a restart; use the Redis store when durability matters.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string][]byte
}

// NewMemoryStore creates an empty in-memory state store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string][]byte),
	}
}

func (s *MemoryStore) Get(_ context.Context, processorID, partitionKey string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, ok := s.entries[stateKey(processorID, partitionKey)]
	if !ok {
		return nil, nil
	}

	copied := make([]byte, len(value))
	copy(copied, value)

	return copied, nil
}

func (s *MemoryStore) Put(_ context.Context, processorID, partitionKey string, value []byte) error {
	copied := make([]byte, len(value))
	copy(copied, value)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[stateKey(processorID, partitionKey)] = copied

	return nil
}

func (s *MemoryStore) Delete(_ context.Context, processorID, partitionKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, stateKey(processorID, partitionKey))

	return nil
}

func (s *MemoryStore) Close(_ context.Context) error {
	return nil
}

func stateKey(processorID, partitionKey string) string {
	return processorID + "\x00" + partitionKey
}
