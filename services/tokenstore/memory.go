package tokenstore

import (
	"context"
	"sync"
	"time"
)

var nowFunc = time.Now // mockable

// MemoryStore is a Store for single-instance deployments and tests.
type MemoryStore struct {
	mu      sync.Mutex
	revoked map[string]time.Time
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{revoked: make(map[string]time.Time)}
}

func (s *MemoryStore) Revoke(_ context.Context, id string, until time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.purge()
	if until.After(nowFunc()) {
		s.revoked[id] = until
	}
	return nil
}

func (s *MemoryStore) IsRevoked(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	until, ok := s.revoked[id]
	if !ok {
		return false, nil
	}
	if !until.After(nowFunc()) {
		delete(s.revoked, id)
		return false, nil
	}
	return true, nil
}

// purge drops expired entries; callers hold the lock.
func (s *MemoryStore) purge() {
	now := nowFunc()
	for id, until := range s.revoked {
		if !until.After(now) {
			delete(s.revoked, id)
		}
	}
}
