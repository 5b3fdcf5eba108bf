package favorites

import (
	"context"
	"sync"

	"fridgemonster/internal/logging"
)

// Compile-time interface check.
var _ Store = (*MemoryStore)(nil)

// MemoryStore keeps liked ids for the lifetime of the process.
type MemoryStore struct {
	mu  sync.RWMutex
	set Set
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Like adds id. Liking an already liked id keeps its original position.
func (s *MemoryStore) Like(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.set.Add(id) {
		logging.Ctx(ctx).Debug().Str("recipe", id).Msg("liked recipe stored")
	}
	return nil
}

// Unlike removes id. Unknown ids are ignored.
func (s *MemoryStore) Unlike(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.set.Remove(id) {
		logging.Ctx(ctx).Debug().Str("recipe", id).Msg("liked recipe removed")
	}
	return nil
}

// IsLiked reports whether id is liked.
func (s *MemoryStore) IsLiked(ctx context.Context, id string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.set.Contains(id), nil
}

// List returns liked ids in like order.
func (s *MemoryStore) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.set.IDs(), nil
}
