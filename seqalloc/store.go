package seqalloc

import (
	"context"
	"sync"
)

// Allocator issues sequence numbers per logical key. Both operations are
// atomic and serializable with respect to concurrent callers sharing a key.
type Allocator interface {
	// Reserve creates a record seeded at fallback if none exists and
	// returns fallback; otherwise it returns the currently stored value
	// and advances it by one.
	Reserve(ctx context.Context, key string, fallback uint64) (uint64, error)

	// Reset idempotently overwrites the stored value, creating the record
	// if absent.
	Reset(ctx context.Context, key string, value uint64) error
}

// Store is the embedded in-memory allocator. A single mutex serializes all
// operations, which is what makes Reserve/Reset atomic per key.
type Store struct {
	mu      sync.Mutex
	records map[string]uint64
}

// NewStore creates an empty allocator store.
func NewStore() *Store {
	return &Store{
		records: make(map[string]uint64),
	}
}

// Reserve implements Allocator.
func (s *Store) Reserve(ctx context.Context, key string, fallback uint64) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, exists := s.records[key]
	if !exists {
		s.records[key] = fallback + 1
		return fallback, nil
	}
	s.records[key] = current + 1
	return current, nil
}

// Reset implements Allocator.
func (s *Store) Reset(ctx context.Context, key string, value uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[key] = value
	return nil
}

// Len returns the number of known keys.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}
