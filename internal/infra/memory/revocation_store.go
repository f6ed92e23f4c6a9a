package memory

import (
	"context"
	"sync"
	"time"
)

// RevocationStore keeps revoked token ids until their expiry.
type RevocationStore struct {
	mu      sync.Mutex
	clock   func() time.Time
	revoked map[string]time.Time
}

func NewRevocationStore() *RevocationStore {
	return &RevocationStore{clock: time.Now, revoked: make(map[string]time.Time)}
}

func (s *RevocationStore) Revoke(_ context.Context, tokenID string, until time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revoked[tokenID] = until
	s.sweep()
	return nil
}

func (s *RevocationStore) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	until, ok := s.revoked[tokenID]
	if !ok {
		return false, nil
	}
	if !s.clock().Before(until) {
		delete(s.revoked, tokenID)
		return false, nil
	}
	return true, nil
}

func (s *RevocationStore) sweep() {
	now := s.clock()
	for id, until := range s.revoked {
		if !now.Before(until) {
			delete(s.revoked, id)
		}
	}
}
