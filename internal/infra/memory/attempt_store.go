package memory

import (
	"context"
	"sync"
	"time"

	"github.com/NitrousOX/DRS---projekat/internal/domain"
)

// AttemptStore is a process-local attempt store with TTL. Attempts are lost on restart.
type AttemptStore struct {
	mu       sync.Mutex
	clock    func() time.Time
	attempts map[string]expiring[domain.Attempt]
	outcomes map[string]expiring[domain.AttemptOutcome]
}

type expiring[T any] struct {
	value     T
	expiresAt time.Time
}

func NewAttemptStore() *AttemptStore {
	return &AttemptStore{
		clock:    time.Now,
		attempts: make(map[string]expiring[domain.Attempt]),
		outcomes: make(map[string]expiring[domain.AttemptOutcome]),
	}
}

// NewAttemptStoreWithClock is test-only for deterministic expiry.
func NewAttemptStoreWithClock(now func() time.Time) *AttemptStore {
	s := NewAttemptStore()
	s.clock = now
	return s
}

func (s *AttemptStore) Save(_ context.Context, attempt domain.Attempt, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweep()
	s.attempts[attempt.ID] = expiring[domain.Attempt]{value: attempt, expiresAt: s.clock().Add(ttl)}
	return nil
}

func (s *AttemptStore) Get(_ context.Context, id string) (domain.Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.attempts[id]
	if !ok || !s.clock().Before(entry.expiresAt) {
		return domain.Attempt{}, domain.NotFound("attempt")
	}
	return entry.value, nil
}

func (s *AttemptStore) Take(_ context.Context, id string) (domain.Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.attempts[id]
	delete(s.attempts, id)
	if !ok || !s.clock().Before(entry.expiresAt) {
		return domain.Attempt{}, domain.NotFound("attempt")
	}
	return entry.value, nil
}

func (s *AttemptStore) SaveOutcome(_ context.Context, outcome domain.AttemptOutcome, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outcomes[outcome.AttemptID] = expiring[domain.AttemptOutcome]{value: outcome, expiresAt: s.clock().Add(ttl)}
	return nil
}

func (s *AttemptStore) Outcome(_ context.Context, attemptID string) (domain.AttemptOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.outcomes[attemptID]
	if !ok || !s.clock().Before(entry.expiresAt) {
		return domain.AttemptOutcome{}, domain.NotFound("attempt outcome")
	}
	return entry.value, nil
}

func (s *AttemptStore) sweep() {
	now := s.clock()
	for id, entry := range s.attempts {
		if !now.Before(entry.expiresAt) {
			delete(s.attempts, id)
		}
	}
	for id, entry := range s.outcomes {
		if !now.Before(entry.expiresAt) {
			delete(s.outcomes, id)
		}
	}
}
